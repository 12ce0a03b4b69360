// Package conversation persists per-conversation protocol state and the
// in-flight plan so a conversation survives process restarts. Snapshots carry
// a version counter; saves are conditional writes, so a concurrent turn's
// result is never silently overwritten.
package conversation

import (
	"context"
	"errors"
	"time"
)

// State is the conversation's protocol state. Exactly one at a time;
// transitions only through the orchestrator's state machine.
type State string

const (
	StateIdle                 State = "IDLE"
	StatePlanning             State = "PLANNING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateExecuting            State = "EXECUTING"
)

var (
	// ErrNotFound is returned when no conversation exists for an id.
	ErrNotFound = errors.New("conversation: not found")
	// ErrVersionConflict is returned when a save's expected version does not
	// match the stored one, i.e. a concurrent turn won the race.
	ErrVersionConflict = errors.New("conversation: version conflict")
)

// PendingPlan is the proposed state-changing action attached to a
// conversation while it is not IDLE.
type PendingPlan struct {
	Operation string         `json:"operation"`
	Collected map[string]any `json:"collected"`
	Missing   []string       `json:"missing"`
	Params    map[string]any `json:"params,omitempty"`
}

// Merge folds newly collected values into the plan: new values win on key
// collision, union otherwise. The missing set is replaced wholesale.
func (p *PendingPlan) Merge(collected map[string]any, missing []string) {
	if p.Collected == nil {
		p.Collected = make(map[string]any, len(collected))
	}
	for k, v := range collected {
		p.Collected[k] = v
	}
	p.Missing = missing
}

// Complete reports whether no fields are still missing.
func (p *PendingPlan) Complete() bool {
	return len(p.Missing) == 0
}

// Snapshot is the persisted state of one conversation.
type Snapshot struct {
	ID     string
	UserID string
	State  State
	Plan   *PendingPlan
	// LastPreviewID records the most recent successful charge preview in
	// this conversation; a charge commit requires it.
	LastPreviewID string
	Version       int64
	UpdatedAt     time.Time
}

// Reset collapses the snapshot back to IDLE and clears the plan.
func (s *Snapshot) Reset() {
	s.State = StateIdle
	s.Plan = nil
}

// Message is one persisted conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation snapshots and message history.
type Store interface {
	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Snapshot, error)
	// Create inserts a fresh IDLE snapshot owned by userID.
	Create(ctx context.Context, id, userID string) (*Snapshot, error)
	// Save writes the snapshot conditionally on its version and bumps it.
	// Returns ErrVersionConflict if another turn saved first.
	Save(ctx context.Context, snap *Snapshot) error
	// AppendMessage records one turn of history.
	AppendMessage(ctx context.Context, conversationID, role, content string) error
	// History returns the last n messages, oldest first.
	History(ctx context.Context, conversationID string, n int) ([]Message, error)
}
