package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) FindIdempotencyKey(ctx context.Context, userID, endpoint, key string) (string, json.RawMessage, bool, error) {
	var hash string
	var stored []byte
	err := s.q(ctx).QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE user_id = $1 AND key = $2 AND endpoint = $3
  `, userID, key, endpoint).Scan(&hash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("find idempotency key: %w", err)
	}
	return hash, stored, true, nil
}

// SaveIdempotencyKey stores the response for key. It reports false when the
// key is already bound to a different request hash.
func (s *Store) SaveIdempotencyKey(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage, at time.Time) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json, created_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET response_json = EXCLUDED.response_json
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, userID, key, endpoint, requestHash, string(response), at)
	if err != nil {
		return false, fmt.Errorf("save idempotency key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
