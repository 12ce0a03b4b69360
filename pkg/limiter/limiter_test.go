package limiter

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiterBurstThenDeny(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLimiter(Policy{TurnsPerMinute: 60, Burst: 2})

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "conv-1")
		require.NoError(t, err)
		assert.True(t, ok, "turn %d within burst should pass", i)
	}

	ok, err := l.Allow(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, ok, "turn past burst should be limited")

	// Buckets are per conversation.
	ok, err = l.Allow(ctx, "conv-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

// Requires a running Redis; skipped otherwise.
func TestRedisLimiterIntegration(t *testing.T) {
	rl := newLocalRedisLimiter(t, Policy{TurnsPerMinute: 60, Burst: 1})
	ctx := context.Background()
	conv := "conv-" + uuid.NewString()

	ok, err := rl.Allow(ctx, conv)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(ctx, conv)
	require.NoError(t, err)
	assert.False(t, ok, "second immediate turn with burst 1 should be limited")
}
