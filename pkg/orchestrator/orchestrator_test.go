package orchestrator_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/conversation"
	"github.com/Mindburn-Labs/steward/pkg/domain"
	"github.com/Mindburn-Labs/steward/pkg/executor"
	"github.com/Mindburn-Labs/steward/pkg/idempotency"
	"github.com/Mindburn-Labs/steward/pkg/knowledge"
	"github.com/Mindburn-Labs/steward/pkg/llm"
	"github.com/Mindburn-Labs/steward/pkg/orchestrator"
	"github.com/Mindburn-Labs/steward/pkg/registry"
	"github.com/Mindburn-Labs/steward/pkg/store"
	"github.com/Mindburn-Labs/steward/pkg/tiers"
)

type fixture struct {
	orch  *orchestrator.Orchestrator
	exec  *executor.Executor
	convs conversation.Store
	mem   *store.MemoryStore
	model *llm.ScriptedClient
}

// newFixture wires the full pipeline with an in-memory stack and a scripted
// model that replays the given responses in order.
func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	reg, err := registry.New()
	require.NoError(t, err)
	quota, err := billing.NewQuotaChecker("")
	require.NoError(t, err)

	mem := store.NewMemoryStore().WithClock(clock)
	exec := executor.New(executor.Deps{
		Registry:          reg,
		Stores:            mem.Stores(),
		Previews:          mem,
		Ledger:            idempotency.NewLedger(idempotency.NewMemoryStore(), idempotency.WithClock(clock)),
		Quota:             quota,
		Limits:            billing.DefaultLimits(),
		IntegrationActive: true,
		Clock:             clock,
	})

	convs := conversation.NewMemoryStore()
	model := llm.NewScriptedClient(replies...)

	orch := orchestrator.New(orchestrator.Deps{
		Conversations: convs,
		Executor:      exec,
		Registry:      reg,
		Model:         model,
		Knowledge:     knowledge.NewStaticSearcher(),
	})
	return &fixture{orch: orch, exec: exec, convs: convs, mem: mem, model: model}
}

func proTurn(msg string) orchestrator.Turn {
	return orchestrator.Turn{ConversationID: "conv-1", UserID: "alice", Tier: tiers.TierPro, Message: msg}
}

func (f *fixture) seedCustomer(t *testing.T) string {
	t.Helper()
	res := f.exec.Execute(context.Background(), executor.Caller{UserID: "alice", Tier: tiers.TierPro},
		"customers.create", map[string]any{"name": "Acme Plumbing"})
	require.True(t, res.Success)
	return res.Data.(*domain.Customer).ID
}

func (f *fixture) snapshot(t *testing.T) *conversation.Snapshot {
	t.Helper()
	snap, err := f.convs.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	return snap
}

func TestFreeTextYieldsInformativeReply(t *testing.T) {
	f := newFixture(t, "Happy to help! What do you need?")

	reply := f.orch.HandleTurn(context.Background(), proTurn("hello"))
	assert.Equal(t, "Happy to help! What do you need?", reply.Text)
	assert.Equal(t, conversation.StateIdle, reply.State)
}

func TestPlanWithMissingFieldsEntersPlanning(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{},"missing_fields":["name"],"requires_confirmation":true}`)

	reply := f.orch.HandleTurn(context.Background(), proTurn("add a new customer"))
	assert.Equal(t, conversation.StatePlanning, reply.State)
	assert.Contains(t, reply.Text, "name")

	snap := f.snapshot(t)
	require.NotNil(t, snap.Plan)
	assert.Equal(t, "customers.create", snap.Plan.Operation)
}

func TestPlanningExtractionCompletesPlan(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{},"missing_fields":["name"],"requires_confirmation":true}`,
		`{"type":"plan","action":"customers.create","collected_fields":{"name":"Acme Plumbing"},"missing_fields":[],"requires_confirmation":true}`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("add a new customer"))
	reply := f.orch.HandleTurn(ctx, proTurn("the name is Acme Plumbing"))

	assert.Equal(t, conversation.StateAwaitingConfirmation, reply.State)
	assert.Contains(t, reply.Text, "Shall I go ahead")
}

func TestPlanningExtractionFailureKeepsPlan(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{},"missing_fields":["name"],"requires_confirmation":true}`,
		`I could not work that out, sorry.`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("add a new customer"))
	reply := f.orch.HandleTurn(ctx, proTurn("hmm"))

	assert.Equal(t, conversation.StatePlanning, reply.State)
	assert.Contains(t, reply.Text, "name")
	require.NotNil(t, f.snapshot(t).Plan)
}

func TestAmbiguousReplyLeavesConfirmationUnchanged(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{"name":"Acme"},"missing_fields":[],"requires_confirmation":true}`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("add Acme"))

	before := f.snapshot(t)
	reply := f.orch.HandleTurn(ctx, proTurn("what about Wednesday?"))

	assert.Equal(t, conversation.StateAwaitingConfirmation, reply.State)
	assert.Contains(t, reply.Text, "yes or no")

	after := f.snapshot(t)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.Plan, after.Plan)
}

func TestConfirmationExecutesAndClearsPlan(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{"name":"Acme Plumbing"},"missing_fields":[],"requires_confirmation":true}`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("add Acme Plumbing"))
	reply := f.orch.HandleTurn(ctx, proTurn("yes"))

	assert.Equal(t, conversation.StateIdle, reply.State)
	require.NotNil(t, reply.Result)
	assert.True(t, reply.Result.Success)
	assert.Nil(t, f.snapshot(t).Plan)

	n, err := f.mem.CountEntities(ctx, "alice", "customer")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRejectionClearsPlan(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{"name":"Acme"},"missing_fields":[],"requires_confirmation":true}`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("add Acme"))
	reply := f.orch.HandleTurn(ctx, proTurn("no, cancel that"))

	assert.Equal(t, conversation.StateIdle, reply.State)
	assert.Nil(t, f.snapshot(t).Plan)
}

func TestModificationReturnsToPlanning(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"customers.create","collected_fields":{"name":"Acme"},"missing_fields":[],"requires_confirmation":true}`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("add Acme"))
	reply := f.orch.HandleTurn(ctx, proTurn("actually, change the name"))

	assert.Equal(t, conversation.StatePlanning, reply.State)
	require.NotNil(t, f.snapshot(t).Plan)
}

func TestReadToolCallExecutesImmediately(t *testing.T) {
	f := newFixture(t,
		`{"type":"tool_call","tool":"customers.search","params":{"query":"acme"}}`)
	f.seedCustomer(t)

	reply := f.orch.HandleTurn(context.Background(), proTurn("find acme"))
	assert.Equal(t, conversation.StateIdle, reply.State)
	require.NotNil(t, reply.Result)
	assert.True(t, reply.Result.Success)
	assert.Nil(t, f.snapshot(t).Plan)
}

func TestWriteToolCallRequiresConfirmation(t *testing.T) {
	f := newFixture(t,
		`{"type":"tool_call","tool":"customers.create","params":{"name":"Acme"}}`)

	reply := f.orch.HandleTurn(context.Background(), proTurn("create acme right now"))
	assert.Equal(t, conversation.StateAwaitingConfirmation, reply.State)
	assert.Contains(t, reply.Text, "Shall I go ahead")

	n, err := f.mem.CountEntities(context.Background(), "alice", "customer")
	require.NoError(t, err)
	assert.Zero(t, n, "write must not run before confirmation")
}

func TestFreeTierDeniedBeforePlanCreation(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"billing.createCharge","collected_fields":{},"missing_fields":[],"requires_confirmation":true}`)

	turn := orchestrator.Turn{ConversationID: "conv-1", UserID: "alice", Tier: tiers.TierFree, Message: "charge them"}
	reply := f.orch.HandleTurn(context.Background(), turn)

	assert.Equal(t, conversation.StateIdle, reply.State)
	assert.Contains(t, reply.Text, "not available")
	assert.Nil(t, f.snapshot(t).Plan, "gate must deny before any plan is created")
}

func TestChargeCommitRefusedWithoutPreview(t *testing.T) {
	f := newFixture(t,
		`{"type":"plan","action":"billing.createCharge","collected_fields":{},"missing_fields":[],"requires_confirmation":true}`)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("commit the charge"))
	reply := f.orch.HandleTurn(ctx, proTurn("yes"))

	assert.Equal(t, conversation.StateIdle, reply.State)
	assert.Contains(t, reply.Text, "preview")
	assert.Nil(t, reply.Result)
}

func TestPreviewThenCommitFlow(t *testing.T) {
	f := newFixture(t)
	customerID := f.seedCustomer(t)

	f.model = llm.NewScriptedClient(
		fmt.Sprintf(`{"type":"plan","action":"billing.previewCharge","collected_fields":{"customer_id":%q,"value":500,"method":"invoice"},"missing_fields":[],"requires_confirmation":true}`, customerID),
		`{"type":"plan","action":"billing.createCharge","collected_fields":{},"missing_fields":[],"requires_confirmation":true}`,
	)
	f = rewire(t, f)

	ctx := context.Background()
	f.orch.HandleTurn(ctx, proTurn("charge acme 500"))
	reply := f.orch.HandleTurn(ctx, proTurn("yes"))
	require.NotNil(t, reply.Result)
	require.True(t, reply.Result.Success, reply.Result.Error)
	assert.NotEmpty(t, f.snapshot(t).LastPreviewID)

	f.orch.HandleTurn(ctx, proTurn("now commit it"))
	reply = f.orch.HandleTurn(ctx, proTurn("yes, go ahead"))
	require.NotNil(t, reply.Result)
	require.True(t, reply.Result.Success, reply.Result.Error)

	n, err := f.mem.CountEntities(ctx, "alice", "charge")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestExecutingStateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.convs.Create(ctx, "conv-1", "alice")
	require.NoError(t, err)
	snap.State = conversation.StateExecuting
	require.NoError(t, f.convs.Save(ctx, snap))

	reply := f.orch.HandleTurn(ctx, proTurn("are you there?"))
	assert.Equal(t, conversation.StateExecuting, reply.State)
	assert.Contains(t, reply.Text, "moment")
	assert.Zero(t, f.model.Calls(), "busy guard must short-circuit before the model")
}

func TestModelFailureRecoversToIdle(t *testing.T) {
	f := newFixture(t) // exhausted scripted client errors on first call

	reply := f.orch.HandleTurn(context.Background(), proTurn("hello"))
	assert.Equal(t, conversation.StateIdle, reply.State)
	assert.Contains(t, reply.Text, "Sorry")

	snap := f.snapshot(t)
	assert.Equal(t, conversation.StateIdle, snap.State)
	assert.Nil(t, snap.Plan)
}

// rewire rebuilds the orchestrator after swapping the scripted model.
func rewire(t *testing.T, f *fixture) *fixture {
	t.Helper()
	reg, err := registry.New()
	require.NoError(t, err)
	f.orch = orchestrator.New(orchestrator.Deps{
		Conversations: f.convs,
		Executor:      f.exec,
		Registry:      reg,
		Model:         f.model,
	})
	return f
}
