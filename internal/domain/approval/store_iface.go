package approval

import (
	"context"

	"intranet/internal/domain/directory"
)

// StoreAPI persists documents and their lines. Get and Lock return the full
// aggregate (lines sorted by Seq, references, attachments and payload) or an
// apperr.NotFoundError. WithTx joins a transaction already carried on ctx.
type StoreAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	LockDocument(ctx context.Context, id string) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) error
	ReplaceLines(ctx context.Context, docID string, lines []Line) error
	UpdateLine(ctx context.Context, line Line) error
	// ListPendingLinesFor returns PENDING lines whose effective approver is
	// userID, on documents that are still DRAFT or PENDING.
	ListPendingLinesFor(ctx context.Context, userID string) ([]Line, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)
	CountDocuments(ctx context.Context, filter DocumentFilter) (int, error)
	InsertDelegation(ctx context.Context, d Delegation) error
	ListDelegations(ctx context.Context, approverID string) ([]Delegation, error)
}

type Directory interface {
	Resolve(ctx context.Context, userID string) (directory.User, error)
}
