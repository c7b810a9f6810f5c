package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/domain/apperr"
	"intranet/internal/domain/approval"
	"intranet/internal/domain/directory"
	"intranet/internal/domain/leave"
	"intranet/internal/domain/notifications"
	"intranet/internal/store/sqlite"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []notifications.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg notifications.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newService(t *testing.T, mailer notifications.Mailer) (*notifications.Service, context.Context) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	users := directory.NewService(store)
	require.NoError(t, users.Upsert(ctx, directory.User{ID: "u1", Name: "Uma", Email: "uma@example.com", Active: true}))
	require.NoError(t, users.Upsert(ctx, directory.User{ID: "u2", Name: "Ugo", Active: true}))

	svc := notifications.New(store, users, mailer)
	clock := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, ctx
}

func TestNotifyCreatesOnePerRecipient(t *testing.T) {
	mailer := &fakeMailer{}
	svc, ctx := newService(t, mailer)

	svc.Notify(ctx, approval.Event{
		Type:       approval.EventRejected,
		DocumentID: "d1",
		DocNumber:  "DOC-1-abcdef01",
		Title:      "Trip",
		ActorID:    "a1",
		Recipients: []string{"u1", "u2"},
		Comment:    "budget freeze",
	})

	list, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notifications.TypeDocumentRejected, list[0].Type)
	assert.Contains(t, list[0].Body, "DOC-1-abcdef01")
	assert.Contains(t, list[0].Body, "Comment: budget freeze")

	total, err := svc.Count(ctx, "u2", false)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// u2 has no email address
	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, "uma@example.com", sent.To)
	assert.Equal(t, "Uma", sent.RecipientName)
	assert.Equal(t, "Document rejected", sent.Subject)
	assert.Equal(t, notifications.TypeDocumentRejected, sent.Type)
	assert.Equal(t, "DOC-1-abcdef01", sent.Reference)
	assert.Equal(t, list[0].Body, sent.Body)
}

func TestMailFailureDoesNotFailCreate(t *testing.T) {
	svc, ctx := newService(t, &fakeMailer{err: errors.New("smtp down")})

	require.NoError(t, svc.Create(ctx, "u1", notifications.TypeApprovalRequested, "Approval requested", "body"))
	total, err := svc.Count(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMarkRead(t *testing.T) {
	svc, ctx := newService(t, nil)
	require.NoError(t, svc.Create(ctx, "u1", notifications.TypeApprovalRequested, "first", "b"))
	require.NoError(t, svc.Create(ctx, "u1", notifications.TypeApprovalRequested, "second", "b"))

	list, err := svc.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)

	require.NoError(t, svc.MarkRead(ctx, "u1", list[0].ID))
	unread, err := svc.Count(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	assert.ErrorIs(t, svc.MarkRead(ctx, "u2", list[1].ID), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, "u1", "missing"), apperr.ErrNotFound)
}

func TestNotifyExpiring(t *testing.T) {
	svc, ctx := newService(t, nil)
	sent := svc.NotifyExpiring(ctx, []leave.AnnualLeave{{
		UserID:         "u1",
		Year:           2025,
		RemainingHours: decimal.NewFromInt(20),
		ExpiryDate:     time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}})
	assert.Equal(t, 1, sent)

	list, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notifications.TypeLeaveExpiring, list[0].Type)
	assert.Equal(t, "20 hours (2.5 days) of your 2025 annual leave expire on 2025-12-31.", list[0].Body)
}

func TestPurgeReadKeepsUnread(t *testing.T) {
	svc, ctx := newService(t, nil)
	require.NoError(t, svc.Create(ctx, "u1", notifications.TypeDocumentApproved, "old", "read long ago"))
	require.NoError(t, svc.Create(ctx, "u1", notifications.TypeDocumentApproved, "unread", "still unread"))

	list, err := svc.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		if n.Title == "old" {
			require.NoError(t, svc.MarkRead(ctx, "u1", n.ID))
		}
	}

	deleted, err := svc.PurgeRead(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted, "read within the window")

	base := svc.Now()
	svc.Now = func() time.Time { return base.Add(48 * time.Hour) }
	deleted, err = svc.PurgeRead(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	count, err := svc.Count(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.PurgeRead(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
