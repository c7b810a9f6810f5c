package postgres

import (
	"context"
	"fmt"
	"time"

	"intranet/internal/domain/notifications"
)

func (s *Store) CreateNotification(ctx context.Context, n notifications.Notification) error {
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO notifications (id, user_id, type, title, body, created_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, n.ID, n.UserID, n.Type, n.Title, n.Body, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]notifications.Notification, error) {
	rows, err := s.q(ctx).Query(ctx, `
    SELECT id, user_id, type, title, body, read_at, created_at
    FROM notifications
    WHERE user_id = $1
    ORDER BY created_at DESC, id
    LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	query := "SELECT COUNT(1) FROM notifications WHERE user_id = $1"
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	var total int
	if err := s.q(ctx).QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return total, nil
}

func (s *Store) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `
    DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < $1
  `, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	tag, err := s.q(ctx).Exec(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, $1)
    WHERE user_id = $2 AND id = $3
  `, at, userID, notificationID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectOne(tag, "notification", notificationID)
}
