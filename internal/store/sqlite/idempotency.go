package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func (s *Store) FindIdempotencyKey(ctx context.Context, userID, endpoint, key string) (string, json.RawMessage, bool, error) {
	var hash, stored string
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT request_hash, response_json
		FROM idempotency_keys
		WHERE user_id = ? AND key = ? AND endpoint = ?
	`, userID, key, endpoint).Scan(&hash, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("find idempotency key: %w", err)
	}
	return hash, json.RawMessage(stored), true, nil
}

// SaveIdempotencyKey stores the response for key. It reports false when the
// key is already bound to a different request hash.
func (s *Store) SaveIdempotencyKey(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage, at time.Time) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, key, endpoint)
		DO UPDATE SET response_json = excluded.response_json
		WHERE idempotency_keys.request_hash = excluded.request_hash
	`, userID, key, endpoint, requestHash, string(response), formatTime(at))
	if err != nil {
		return false, fmt.Errorf("save idempotency key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save idempotency key: %w", err)
	}
	return n > 0, nil
}
