// Package requestctx carries request-scoped identifiers from the transport
// layer down to domain log lines.
package requestctx

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	userIDKey    ctxKey = "user_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	if value, ok := ctx.Value(userIDKey).(string); ok {
		return value
	}
	return ""
}

// LogAttrs returns the slog key/value pairs identifying the request, if any.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := GetUserID(ctx); id != "" {
		attrs = append(attrs, "actor_id", id)
	}
	return attrs
}
