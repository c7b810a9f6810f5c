package leave

import (
	"context"
	"time"

	"intranet/internal/domain/directory"
)

// StoreAPI persists ledger entries. WithTx joins a transaction already carried
// on ctx, which is how a workflow approval and its deduction commit together.
type StoreAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindLeave(ctx context.Context, userID string, year int) (AnnualLeave, error)
	LockLeave(ctx context.Context, userID string, year int) (AnnualLeave, error)
	InsertLeaveIfAbsent(ctx context.Context, entry AnnualLeave) (bool, error)
	UpdateLeave(ctx context.Context, entry AnnualLeave) error
	InsertAdjustment(ctx context.Context, adj Adjustment) error
	ListAdjustments(ctx context.Context, userID string, year int) ([]Adjustment, error)
	ListLeavesWithDepartment(ctx context.Context, year int) ([]DepartmentEntry, error)
	ListExpiringLeaves(ctx context.Context, from, to time.Time) ([]AnnualLeave, error)
	LeaveUserIDs(ctx context.Context, year int) (map[string]bool, error)
}

// Directory is the slice of the user directory the ledger needs.
type Directory interface {
	Resolve(ctx context.Context, userID string) (directory.User, error)
	ListActive(ctx context.Context) ([]directory.User, error)
}
