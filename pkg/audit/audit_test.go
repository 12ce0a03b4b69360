package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/steward/pkg/audit"
	"github.com/Mindburn-Labs/steward/pkg/domain"
)

func TestLoggerRecordWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	entities := []domain.EntityRef{{EntityType: "customer", ID: "c-1", Action: "created"}}
	err := logger.Record(context.Background(), audit.EventMutation, "alice", "customers.create", entities, nil)
	require.NoError(t, err)

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "AUDIT: "))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(output, "AUDIT: "))
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))

	assert.Equal(t, audit.EventMutation, event.Type)
	assert.Equal(t, "alice", event.UserID)
	assert.Equal(t, "customers.create", event.Operation)
	require.Len(t, event.Entities, 1)
	assert.Equal(t, "c-1", event.Entities[0].ID)
	// UUID format: 8-4-4-4-12
	assert.Len(t, event.ID, 36)
}

func TestLoggerRecordWithMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	meta := map[string]any{"tier": "pro", "idempotent_replay": true}
	err := logger.Record(context.Background(), audit.EventDenied, "bob", "billing.createCharge", nil, meta)
	require.NoError(t, err)

	jsonPart := strings.TrimPrefix(buf.String(), "AUDIT: ")
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(jsonPart)), &event))

	assert.Equal(t, "pro", event.Metadata["tier"])
	assert.Equal(t, true, event.Metadata["idempotent_replay"])
}
