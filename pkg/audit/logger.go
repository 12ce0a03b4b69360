// Package audit records structured events for every executed write
// operation. One JSON line per event, prefixed for easy filtering.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/steward/pkg/domain"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventRead     EventType = "READ"
	EventMutation EventType = "MUTATION"
	EventDenied   EventType = "DENIED"
	EventSystem   EventType = "SYSTEM"
)

// Event represents a structured audit record.
type Event struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Type      EventType          `json:"type"`
	Operation string             `json:"operation"`
	Entities  []domain.EntityRef `json:"entities,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, userID, operation string, entities []domain.EntityRef, metadata map[string]any) error
}

// logger writes structured JSON to a configurable Writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, clock: time.Now}
}

func (l *logger) Record(_ context.Context, eventType EventType, userID, operation string, entities []domain.EntityRef, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      eventType,
		Operation: operation,
		Entities:  entities,
		Timestamp: l.clock(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}

// Nop discards every event. Used where auditing is not configured.
type Nop struct{}

func (Nop) Record(context.Context, EventType, string, string, []domain.EntityRef, map[string]any) error {
	return nil
}
