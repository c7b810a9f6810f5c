package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogAttrs(t *testing.T) {
	assert.Empty(t, LogAttrs(context.Background()))

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "u1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "u1", GetUserID(ctx))
	assert.Equal(t, []any{"request_id", "req-1", "actor_id", "u1"}, LogAttrs(ctx))
}
