package notifications

import (
	"context"
	"time"

	"intranet/internal/domain/directory"
)

type StoreAPI interface {
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error)
	// MarkRead returns apperr.NotFoundError when userID owns no such notification.
	MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error
	// DeleteReadBefore removes notifications read before cutoff and returns
	// how many were deleted.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Directory interface {
	Resolve(ctx context.Context, userID string) (directory.User, error)
}
