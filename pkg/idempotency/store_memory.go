package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory Store, for tests and single-process
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[compositeKey]*Record
}

type compositeKey struct {
	userID    string
	operation string
	key       string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[compositeKey]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID, operation, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[compositeKey{userID, operation, key}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Insert(_ context.Context, rec *Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := compositeKey{rec.UserID, rec.Operation, rec.Key}
	if _, exists := s.records[k]; exists {
		return false, nil
	}
	cp := *rec
	s.records[k] = &cp
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, operation, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, compositeKey{userID, operation, key})
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}
