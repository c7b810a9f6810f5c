package approval

import (
	"context"
	"strings"

	"intranet/internal/domain/apperr"
)

func (s *Service) GetDocument(ctx context.Context, docID string) (Document, error) {
	if strings.TrimSpace(docID) == "" {
		return Document{}, apperr.NotFound("document", docID)
	}
	return s.store.GetDocument(ctx, docID)
}

// GetDocumentFor returns the document when userID takes part in it as
// drafter, approver, delegate or reference.
func (s *Service) GetDocumentFor(ctx context.Context, docID, userID string) (Document, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return Document{}, err
	}
	if !CanView(doc, userID) {
		return Document{}, apperr.Permission("view document", userID, "not a participant")
	}
	return doc, nil
}

func CanView(doc Document, userID string) bool {
	if userID == "" {
		return false
	}
	if doc.DrafterID == userID {
		return true
	}
	for _, l := range doc.Lines {
		if l.ApproverID == userID || l.DelegatedTo == userID {
			return true
		}
	}
	for _, ref := range doc.References {
		if ref == userID {
			return true
		}
	}
	return false
}

// GetPendingDocuments lists documents waiting on userID, newest first.
func (s *Service) GetPendingDocuments(ctx context.Context, userID string, page Page) (DocumentList, error) {
	return s.list(ctx, DocumentFilter{Status: StatusPending, CurrentApproverID: userID}, page)
}

func (s *Service) GetDraftedDocuments(ctx context.Context, userID string, page Page) (DocumentList, error) {
	return s.list(ctx, DocumentFilter{DrafterID: userID}, page)
}

// SearchDocuments matches keyword against title, content and doc number,
// ignoring case.
func (s *Service) SearchDocuments(ctx context.Context, keyword string, page Page) (DocumentList, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return DocumentList{}, apperr.Validation("keyword", "required")
	}
	return s.list(ctx, DocumentFilter{Keyword: keyword}, page)
}

func (s *Service) CountPendingDocuments(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, apperr.Validation("userId", "required")
	}
	return s.store.CountDocuments(ctx, DocumentFilter{Status: StatusPending, CurrentApproverID: userID})
}

func (s *Service) list(ctx context.Context, filter DocumentFilter, page Page) (DocumentList, error) {
	if filter.CurrentApproverID == "" && filter.DrafterID == "" && filter.Keyword == "" {
		return DocumentList{}, apperr.Validation("filter", "a user or keyword is required")
	}
	page = page.normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset

	total, err := s.store.CountDocuments(ctx, filter)
	if err != nil {
		return DocumentList{}, err
	}
	docs, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return DocumentList{}, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return DocumentList{Documents: docs, Total: total}, nil
}
