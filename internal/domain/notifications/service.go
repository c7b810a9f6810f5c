package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"intranet/internal/domain/apperr"
	"intranet/internal/domain/approval"
	"intranet/internal/domain/leave"
	"intranet/internal/requestctx"
)

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Service struct {
	store       StoreAPI
	users       Directory
	Mailer      Mailer
	DefaultFrom string
	Now         func() time.Time
}

func New(store StoreAPI, users Directory, mailer Mailer) *Service {
	return &Service{store: store, users: users, Mailer: mailer, DefaultFrom: "no-reply@example.com", Now: time.Now}
}

// Create stores an in-app notification and mails it when a mailer is set.
// Mail failures are logged only.
func (s *Service) Create(ctx context.Context, userID, ntype, title, body string) error {
	return s.create(ctx, userID, ntype, title, body, "")
}

func (s *Service) create(ctx context.Context, userID, ntype, title, body, reference string) error {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      ntype,
		Title:     title,
		Body:      body,
		CreatedAt: s.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return err
	}

	if s.Mailer == nil || s.users == nil {
		return nil
	}
	user, err := s.users.Resolve(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err, "user_id", userID)
		return nil
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	msg := Message{
		From:          s.DefaultFrom,
		To:            user.Email,
		RecipientName: user.Name,
		Type:          ntype,
		Subject:       title,
		Body:          body,
		Reference:     reference,
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		slog.Warn("notification email send failed", "err", err, "user_id", userID)
	}
	return nil
}

// Notify turns a committed workflow transition into one notification per
// recipient.
func (s *Service) Notify(ctx context.Context, evt approval.Event) {
	ntype, title, body := render(evt)
	for _, userID := range evt.Recipients {
		if err := s.create(ctx, userID, ntype, title, body, evt.DocNumber); err != nil {
			slog.With(requestctx.LogAttrs(ctx)...).Warn("workflow notification failed", "err", err, "event", evt.Type, "document_id", evt.DocumentID, "user_id", userID)
		}
	}
}

func render(evt approval.Event) (string, string, string) {
	ref := fmt.Sprintf("%s %q", evt.DocNumber, evt.Title)
	switch evt.Type {
	case approval.EventSubmitted, approval.EventAdvanced:
		return TypeApprovalRequested, "Approval requested", "Document " + ref + " is waiting for your approval."
	case approval.EventApproved:
		return TypeDocumentApproved, "Document approved", withComment("Document "+ref+" has been approved.", evt.Comment)
	case approval.EventRejected:
		return TypeDocumentRejected, "Document rejected", withComment("Document "+ref+" has been rejected.", evt.Comment)
	case approval.EventCancelled:
		return TypeDocumentCancelled, "Document cancelled", "Document " + ref + " was cancelled by the drafter."
	case approval.EventDelegated:
		return TypeDocumentDelegated, "Approval delegated to you", "Document " + ref + " was delegated to you and is waiting for your approval."
	}
	return string(evt.Type), "Document update", "Document " + ref + " was updated."
}

func withComment(body, comment string) string {
	if strings.TrimSpace(comment) == "" {
		return body
	}
	return body + " Comment: " + comment
}

// NotifyExpiring tells each owner that the remaining balance of entry
// expires soon.
func (s *Service) NotifyExpiring(ctx context.Context, entries []leave.AnnualLeave) int {
	sent := 0
	for _, e := range entries {
		body := fmt.Sprintf("%s hours (%s days) of your %d annual leave expire on %s.",
			e.RemainingHours.String(), e.RemainingDays().String(), e.Year, e.ExpiryDate.Format("2006-01-02"))
		if err := s.Create(ctx, e.UserID, TypeLeaveExpiring, "Annual leave expiring", body); err != nil {
			slog.Warn("leave expiry notification failed", "err", err, "user_id", e.UserID)
			continue
		}
		sent++
	}
	return sent
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.store.ListNotifications(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Notification{}
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, userID, unreadOnly)
}

// PurgeRead applies the retention window: notifications read more than
// retention ago are deleted. Unread notifications are always kept.
func (s *Service) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperr.Validation("retention", "must be positive")
	}
	return s.store.DeleteReadBefore(ctx, s.Now().UTC().Add(-retention))
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID, s.Now().UTC())
}
