package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newLocalRedisLimiter connects to a local Redis or skips the test.
func newLocalRedisLimiter(t *testing.T, policy Policy) *RedisLimiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("redis not available")
	}

	// Unique key space per run so reruns don't share buckets.
	return NewRedisLimiter(client, policy)
}

func TestRedisLimiterRefill(t *testing.T) {
	rl := newLocalRedisLimiter(t, Policy{TurnsPerMinute: 600, Burst: 1}) // 10/sec
	ctx := context.Background()
	conv := "conv-refill-" + uuid.NewString()

	ok, err := rl.Allow(ctx, conv)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !ok {
		t.Fatal("fresh bucket should allow")
	}

	time.Sleep(150 * time.Millisecond)

	ok, err = rl.Allow(ctx, conv)
	if err != nil {
		t.Fatalf("allow after refill: %v", err)
	}
	if !ok {
		t.Error("bucket should refill within 150ms at 10 turns/sec")
	}
}
