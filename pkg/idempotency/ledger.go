// Package idempotency deduplicates side-effecting tool executions by
// (user, operation, client key). The first recorded outcome for a key is
// immutable: replays get the stored result back even when their parameters
// drifted, which keeps retries from wedging at the cost of strictness. The
// mismatch is logged and counted so client bugs stay observable.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gowebpki/jcs"
	"go.opentelemetry.io/otel/metric"

	"github.com/Mindburn-Labs/steward/pkg/domain"
)

// ErrNotFound is returned by stores when no record exists for a key.
var ErrNotFound = errors.New("idempotency: record not found")

// DefaultTTL bounds how long a recorded outcome is replayed.
const DefaultTTL = 24 * time.Hour

// Record is one stored execution outcome.
type Record struct {
	UserID     string          `json:"user_id"`
	Operation  string          `json:"operation"`
	Key        string          `json:"key"`
	ParamsHash string          `json:"params_hash"`
	Result     json.RawMessage `json:"result"`
	Success    bool            `json:"success"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Store persists idempotency records. Insert must be first-writer-wins:
// a second insert for an existing composite key is a no-op reporting
// inserted=false, enforced by the store's uniqueness guarantee.
type Store interface {
	Get(ctx context.Context, userID, operation, key string) (*Record, error)
	Insert(ctx context.Context, rec *Record) (inserted bool, err error)
	Delete(ctx context.Context, userID, operation, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CheckResult is the outcome of a duplicate check.
type CheckResult struct {
	IsDuplicate bool
	Prior       *Record
}

// Outcome tags an execution result with whether it was replayed.
type Outcome struct {
	Result   *domain.Result
	Replayed bool
}

// Ledger coordinates duplicate checks and outcome recording.
type Ledger struct {
	store     Store
	ttl       time.Duration
	logger    *slog.Logger
	clock     func() time.Time
	conflicts metric.Int64Counter // optional; counts hash mismatches on replay
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL overrides the record TTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) { l.ttl = ttl }
}

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithConflictCounter wires a metric counting replay hash mismatches.
func WithConflictCounter(c metric.Int64Counter) Option {
	return func(l *Ledger) { l.conflicts = c }
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		ttl:    DefaultTTL,
		logger: slog.Default().With("component", "idempotency"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanonicalHash hashes the non-key request parameters: the idempotency key
// itself is stripped, then the map is canonicalized per RFC 8785 so key order
// never changes the hash.
func CanonicalHash(params map[string]any) (string, error) {
	stripped := make(map[string]any, len(params))
	for k, v := range params {
		if k == "idempotency_key" {
			continue
		}
		stripped[k] = v
	}
	raw, err := json.Marshal(stripped)
	if err != nil {
		return "", fmt.Errorf("idempotency: marshal params: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("idempotency: canonicalize params: %w", err)
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// Check looks up the composite key. Expired records are evicted and reported
// as misses. A hash mismatch against the stored parameters is a warning, not
// an error: the stored result is still returned.
func (l *Ledger) Check(ctx context.Context, userID, operation, key string, params map[string]any) (*CheckResult, error) {
	rec, err := l.store.Get(ctx, userID, operation, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &CheckResult{}, nil
		}
		return nil, err
	}

	if l.clock().After(rec.ExpiresAt) {
		if err := l.store.Delete(ctx, userID, operation, key); err != nil {
			l.logger.WarnContext(ctx, "failed to evict expired record",
				"operation", operation, "key", key, "error", err)
		}
		return &CheckResult{}, nil
	}

	hash, err := CanonicalHash(params)
	if err != nil {
		return nil, err
	}
	if hash != rec.ParamsHash {
		l.logger.WarnContext(ctx, "idempotency key replayed with different parameters",
			"user_id", userID, "operation", operation, "key", key,
			"stored_hash", rec.ParamsHash, "request_hash", hash)
		if l.conflicts != nil {
			l.conflicts.Add(ctx, 1)
		}
	}

	return &CheckResult{IsDuplicate: true, Prior: rec}, nil
}

// Record stores an execution outcome. First writer wins: if a record already
// exists for the key, the call is a no-op and the stored outcome stands.
func (l *Ledger) Record(ctx context.Context, userID, operation, key string, params map[string]any, result *domain.Result) error {
	hash, err := CanonicalHash(params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("idempotency: marshal result: %w", err)
	}

	now := l.clock()
	inserted, err := l.store.Insert(ctx, &Record{
		UserID:     userID,
		Operation:  operation,
		Key:        key,
		ParamsHash: hash,
		Result:     raw,
		Success:    result.Success,
		CreatedAt:  now,
		ExpiresAt:  now.Add(l.ttl),
	})
	if err != nil {
		return err
	}
	if !inserted {
		l.logger.InfoContext(ctx, "outcome already recorded, keeping first",
			"user_id", userID, "operation", operation, "key", key)
	}
	return nil
}

// Execute runs perform under idempotency protection. A duplicate key returns
// the prior outcome tagged as replayed without invoking perform. Ledger
// failures fail open: proceeding is better than refusing for operations that
// are already mostly idempotent.
func (l *Ledger) Execute(ctx context.Context, userID, operation, key string, params map[string]any, perform func(ctx context.Context) *domain.Result) (*Outcome, error) {
	if key != "" {
		check, err := l.Check(ctx, userID, operation, key, params)
		if err != nil {
			l.logger.ErrorContext(ctx, "idempotency check failed, proceeding without protection",
				"operation", operation, "key", key, "error", err)
		} else if check.IsDuplicate {
			var prior domain.Result
			if err := json.Unmarshal(check.Prior.Result, &prior); err != nil {
				return nil, fmt.Errorf("idempotency: decode stored result: %w", err)
			}
			return &Outcome{Result: &prior, Replayed: true}, nil
		}
	}

	result := perform(ctx)

	if key != "" {
		if err := l.Record(ctx, userID, operation, key, params, result); err != nil {
			l.logger.ErrorContext(ctx, "failed to record outcome",
				"operation", operation, "key", key, "error", err)
		}
	}
	return &Outcome{Result: result}, nil
}

// SweepExpired bulk-deletes records past their TTL.
func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	return l.store.DeleteExpired(ctx, l.clock())
}
