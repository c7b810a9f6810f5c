package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intranet/internal/domain/notifications"
)

func (s *Store) CreateNotification(ctx context.Context, n notifications.Notification) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Type, n.Title, n.Body, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]notifications.Notification, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, type, title, body, read_at, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		var readAt sql.NullString
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &readAt, &createdAt); err != nil {
			return nil, err
		}
		if n.ReadAt, err = parseNullTime(readAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	query := `SELECT COUNT(1) FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	var total int
	if err := s.q(ctx).QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return total, nil
}

func (s *Store) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < ?
	`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE user_id = ? AND id = ?
	`, formatTime(at), userID, notificationID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectOne(res, "notification", notificationID)
}
