// Package limiter implements the per-conversation turn limiter: a token
// bucket keyed by conversation, Redis-backed for multi-instance deployments
// with an in-process fallback.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Policy defines the turn budget.
type Policy struct {
	TurnsPerMinute int
	Burst          int
}

// DefaultPolicy allows a conversational pace without letting a runaway
// client monopolize the model.
func DefaultPolicy() Policy {
	return Policy{TurnsPerMinute: 20, Burst: 5}
}

func (p Policy) ratePerSec() float64 {
	r := float64(p.TurnsPerMinute) / 60.0
	if r <= 0 {
		r = 1.0
	}
	return r
}

// Limiter decides whether a conversation may take another turn now.
type Limiter interface {
	Allow(ctx context.Context, conversationID string) (bool, error)
}

// LocalLimiter keeps one rate.Limiter per conversation in process. Suitable
// for single-instance deployments and tests.
type LocalLimiter struct {
	mu      sync.Mutex
	policy  Policy
	buckets map[string]*rate.Limiter
}

func NewLocalLimiter(policy Policy) *LocalLimiter {
	return &LocalLimiter{
		policy:  policy,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, conversationID string) (bool, error) {
	l.mu.Lock()
	bucket, ok := l.buckets[conversationID]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(l.policy.ratePerSec()), l.policy.Burst)
		l.buckets[conversationID] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow(), nil
}
