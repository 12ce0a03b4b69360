package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory Store, for tests and single-process
// deployments. It enforces the same version discipline as the SQL store.
type MemoryStore struct {
	mu       sync.RWMutex
	snaps    map[string]*Snapshot
	messages map[string][]Message
	clock    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snaps:    make(map[string]*Snapshot),
		messages: make(map[string][]Message),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for testing.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snap), nil
}

func (s *MemoryStore) Create(_ context.Context, id, userID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{ID: id, UserID: userID, State: StateIdle, Version: 1, UpdatedAt: s.clock()}
	s.snaps[id] = snap
	return copySnapshot(snap), nil
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.snaps[snap.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != snap.Version {
		return ErrVersionConflict
	}

	next := copySnapshot(snap)
	next.Version++
	next.UpdatedAt = s.clock()
	s.snaps[snap.ID] = next
	snap.Version = next.Version
	snap.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[conversationID] = append(s.messages[conversationID], Message{
		Role:      role,
		Content:   content,
		CreatedAt: s.clock(),
	})
	return nil
}

func (s *MemoryStore) History(_ context.Context, conversationID string, n int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func copySnapshot(in *Snapshot) *Snapshot {
	out := *in
	if in.Plan != nil {
		plan := *in.Plan
		plan.Collected = make(map[string]any, len(in.Plan.Collected))
		for k, v := range in.Plan.Collected {
			plan.Collected[k] = v
		}
		plan.Missing = append([]string(nil), in.Plan.Missing...)
		if in.Plan.Params != nil {
			plan.Params = make(map[string]any, len(in.Plan.Params))
			for k, v := range in.Plan.Params {
				plan.Params[k] = v
			}
		}
		out.Plan = &plan
	}
	return &out
}
