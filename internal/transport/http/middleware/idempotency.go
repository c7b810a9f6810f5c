package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

const IdempotencyHeader = "Idempotency-Key"

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyStore keeps the first response produced for a (user, endpoint,
// key) triple together with the hash of the request that produced it.
type IdempotencyStore interface {
	FindIdempotencyKey(ctx context.Context, userID, endpoint, key string) (string, json.RawMessage, bool, error)
	SaveIdempotencyKey(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage, at time.Time) (bool, error)
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// CheckIdempotency returns the stored response for key. A key reused with a
// different payload yields ErrIdempotencyConflict.
func CheckIdempotency(ctx context.Context, store IdempotencyStore, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if store == nil || key == "" {
		return nil, false, nil
	}
	storedHash, stored, found, err := store.FindIdempotencyKey(ctx, userID, endpoint, key)
	if err != nil || !found {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func SaveIdempotency(ctx context.Context, store IdempotencyStore, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if store == nil || key == "" {
		return nil
	}
	saved, err := store.SaveIdempotencyKey(ctx, userID, endpoint, key, requestHash, response, time.Now().UTC())
	if err != nil {
		return err
	}
	if !saved {
		return ErrIdempotencyConflict
	}
	return nil
}
