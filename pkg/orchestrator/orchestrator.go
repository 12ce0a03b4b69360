// Package orchestrator runs the per-turn pipeline: limiter, conversation
// load, model call, intent decoding, state machine dispatch, tool execution,
// and snapshot persistence. Any unexpected failure collapses the
// conversation back to IDLE so the user can always escape by typing again.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/conversation"
	"github.com/Mindburn-Labs/steward/pkg/domain"
	"github.com/Mindburn-Labs/steward/pkg/executor"
	"github.com/Mindburn-Labs/steward/pkg/intent"
	"github.com/Mindburn-Labs/steward/pkg/knowledge"
	"github.com/Mindburn-Labs/steward/pkg/limiter"
	"github.com/Mindburn-Labs/steward/pkg/llm"
	"github.com/Mindburn-Labs/steward/pkg/observability"
	"github.com/Mindburn-Labs/steward/pkg/registry"
	"github.com/Mindburn-Labs/steward/pkg/tiers"
)

const (
	busyMessage      = "I'm still working on your previous request. Give me a moment."
	limitedMessage   = "You're sending messages faster than I can handle. Please wait a moment and try again."
	apologyMessage   = "Sorry, something went wrong on my end. Your conversation has been reset; please try again."
	crossedMessage   = "That message crossed with another one in this conversation. Please resend it."
	formatMessage    = "I had trouble putting together a structured response. Could you rephrase that?"
	ambiguousMessage = "I didn't catch whether that's a yes or a no. Please reply with an explicit yes or no."
)

// Turn is one inbound user message.
type Turn struct {
	ConversationID string
	UserID         string
	Tier           tiers.TierID
	Message        string
}

// Reply is what the user sees for one turn, plus the executed result when a
// tool ran.
type Reply struct {
	Text   string
	State  conversation.State
	Result *domain.Result
}

// Deps carries the orchestrator's collaborators. Knowledge, Limiter, and
// Observability are optional.
type Deps struct {
	Conversations conversation.Store
	Executor      *executor.Executor
	Registry      *registry.Registry
	Model         llm.Client
	Knowledge     knowledge.Searcher
	Limiter       limiter.Limiter
	Observability *observability.Provider
	Logger        *slog.Logger
	HistoryWindow int
	KnowledgeTopK int
}

// Orchestrator coordinates one conversation turn at a time.
type Orchestrator struct {
	conversations conversation.Store
	executor      *executor.Executor
	registry      *registry.Registry
	model         llm.Client
	knowledge     knowledge.Searcher
	limiter       limiter.Limiter
	obs           *observability.Provider
	logger        *slog.Logger
	historyWindow int
	knowledgeTopK int
}

// New creates an orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		conversations: deps.Conversations,
		executor:      deps.Executor,
		registry:      deps.Registry,
		model:         deps.Model,
		knowledge:     deps.Knowledge,
		limiter:       deps.Limiter,
		obs:           deps.Observability,
		logger:        deps.Logger,
		historyWindow: deps.HistoryWindow,
		knowledgeTopK: deps.KnowledgeTopK,
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "orchestrator")
	}
	if o.historyWindow <= 0 {
		o.historyWindow = 20
	}
	if o.knowledgeTopK <= 0 {
		o.knowledgeTopK = 3
	}
	return o
}

// HandleTurn processes one inbound message and always produces a reply.
// Unexpected faults are logged with duration and collapse the conversation
// to IDLE; the user never sees an internal error.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) *Reply {
	start := time.Now()
	var done func(error)
	if o.obs != nil {
		ctx, done = o.obs.TrackOperation(ctx, "conversation.turn")
	}

	reply, err := o.handle(ctx, turn)
	if err != nil {
		o.logger.ErrorContext(ctx, "turn failed",
			"conversation_id", turn.ConversationID,
			"user_id", turn.UserID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		o.recoverToIdle(ctx, turn.ConversationID)
		reply = &Reply{Text: apologyMessage, State: conversation.StateIdle}
	}
	if done != nil {
		done(err)
	}
	return reply
}

func (o *Orchestrator) handle(ctx context.Context, turn Turn) (*Reply, error) {
	if o.limiter != nil {
		allowed, err := o.limiter.Allow(ctx, turn.ConversationID)
		if err != nil {
			// The limiter is a soft guard; proceed when it misbehaves.
			o.logger.WarnContext(ctx, "limiter unavailable, proceeding", "error", err)
		} else if !allowed {
			return &Reply{Text: limitedMessage}, nil
		}
	}

	snap, err := o.conversations.Load(ctx, turn.ConversationID)
	if errors.Is(err, conversation.ErrNotFound) {
		snap, err = o.conversations.Create(ctx, turn.ConversationID, turn.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if snap.UserID != turn.UserID {
		return &Reply{Text: "This conversation belongs to another user.", State: snap.State}, nil
	}

	// Soft guard against overlapping turns; not a hard lock.
	if snap.State == conversation.StateExecuting {
		return &Reply{Text: busyMessage, State: snap.State}, nil
	}

	if err := o.conversations.AppendMessage(ctx, turn.ConversationID, llm.RoleUser, turn.Message); err != nil {
		o.logger.WarnContext(ctx, "history append failed", "error", err)
	}

	var reply *Reply
	switch snap.State {
	case conversation.StateIdle:
		reply, err = o.handleIdle(ctx, snap, turn)
	case conversation.StatePlanning:
		reply, err = o.handlePlanning(ctx, snap, turn)
	case conversation.StateAwaitingConfirmation:
		reply, err = o.handleAwaitingConfirmation(ctx, snap, turn)
	default:
		err = fmt.Errorf("conversation %s in unknown state %q", snap.ID, snap.State)
	}
	if err != nil {
		return nil, err
	}

	if appendErr := o.conversations.AppendMessage(ctx, turn.ConversationID, llm.RoleAssistant, reply.Text); appendErr != nil {
		o.logger.WarnContext(ctx, "history append failed", "error", appendErr)
	}
	return reply, nil
}

// handleIdle consults the knowledge base, invokes the model, and dispatches
// the decoded variant.
func (o *Orchestrator) handleIdle(ctx context.Context, snap *conversation.Snapshot, turn Turn) (*Reply, error) {
	var knowledgeContext string
	if o.knowledge != nil {
		hits, err := o.knowledge.Search(ctx, turn.Message, knowledge.SearchOptions{TopK: o.knowledgeTopK})
		if err != nil {
			// Advisory only; a failing knowledge base never blocks the turn.
			o.logger.WarnContext(ctx, "knowledge search failed", "error", err)
		} else {
			knowledgeContext = knowledge.FormatContext(hits)
		}
	}

	history, err := o.conversations.History(ctx, snap.ID, o.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	completion, err := o.model.Complete(ctx, buildMessages(o.systemPrompt(turn.Tier, knowledgeContext), history), nil)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	resp, err := intent.Decode(completion.Content)
	if err != nil {
		// Structured but malformed output: surface a formatting problem
		// rather than treating the payload as conversation text.
		o.logger.WarnContext(ctx, "model response failed schema", "error", err)
		return &Reply{Text: formatMessage, State: snap.State}, nil
	}

	switch {
	case resp.IsPlan():
		return o.acceptPlan(ctx, snap, turn, resp.Plan)
	case resp.IsToolCall():
		return o.acceptToolCall(ctx, snap, turn, resp.ToolCall)
	case resp.IsAskUser():
		text := resp.AskUser.Question
		if len(resp.AskUser.Options) > 0 {
			text += "\nOptions: " + strings.Join(resp.AskUser.Options, ", ")
		}
		return &Reply{Text: text, State: snap.State}, nil
	default:
		return &Reply{Text: resp.Informative.Message, State: snap.State}, nil
	}
}

// acceptPlan admits a decoded plan into the conversation. The permission
// gate runs before any plan is created.
func (o *Orchestrator) acceptPlan(ctx context.Context, snap *conversation.Snapshot, turn Turn, plan *intent.Plan) (*Reply, error) {
	if !o.registry.Allowed(plan.Action, turn.Tier) {
		return &Reply{
			Text:  fmt.Sprintf("The operation %s is not available on your current plan.", plan.Action),
			State: snap.State,
		}, nil
	}

	pending := &conversation.PendingPlan{
		Operation: plan.Action,
		Collected: plan.CollectedFields,
		Missing:   plan.MissingFields,
	}
	snap.Plan = pending

	if pending.Complete() {
		snap.State = conversation.StateAwaitingConfirmation
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: planSummary(pending, o.registry), State: snap.State}, nil
	}

	snap.State = conversation.StatePlanning
	if reply, conflicted := o.save(ctx, snap); conflicted {
		return reply, nil
	}
	return &Reply{
		Text:  "I need a bit more information: " + strings.Join(pending.Missing, ", ") + ".",
		State: snap.State,
	}, nil
}

// acceptToolCall executes reads immediately and converts writes into a plan
// awaiting confirmation.
func (o *Orchestrator) acceptToolCall(ctx context.Context, snap *conversation.Snapshot, turn Turn, call *intent.ToolCall) (*Reply, error) {
	if !o.registry.Allowed(call.Tool, turn.Tier) {
		return &Reply{
			Text:  fmt.Sprintf("The operation %s is not available on your current plan.", call.Tool),
			State: snap.State,
		}, nil
	}

	if intent.IsWriteOperation(call.Tool) {
		snap.Plan = &conversation.PendingPlan{
			Operation: call.Tool,
			Collected: call.Params,
		}
		snap.State = conversation.StateAwaitingConfirmation
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: planSummary(snap.Plan, o.registry), State: snap.State}, nil
	}

	// Reads run immediately; no plan, no state change.
	result := o.executor.Execute(ctx, executor.Caller{UserID: turn.UserID, Tier: turn.Tier}, call.Tool, call.Params)
	return &Reply{Text: renderResult(call.Tool, result), State: snap.State, Result: result}, nil
}

// handlePlanning runs the missing-field extraction loop.
func (o *Orchestrator) handlePlanning(ctx context.Context, snap *conversation.Snapshot, turn Turn) (*Reply, error) {
	if snap.Plan == nil {
		// A plan-less PLANNING state is unrecoverable by design; reset.
		snap.Reset()
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: "Let's start over. What would you like to do?", State: snap.State}, nil
	}

	if ClassifyReply(turn.Message) == ReplyRejection {
		snap.Reset()
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: "Okay, I've cancelled that.", State: snap.State}, nil
	}

	completion, err := o.model.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: extractionPrompt(snap.Plan, turn.Message)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	resp, decodeErr := intent.Decode(completion.Content)
	if decodeErr != nil || !resp.IsPlan() {
		// Extraction failed; the plan stays as it is and we re-prompt for
		// the same fields.
		return &Reply{
			Text:  "I still need: " + strings.Join(snap.Plan.Missing, ", ") + ".",
			State: snap.State,
		}, nil
	}

	snap.Plan.Merge(resp.Plan.CollectedFields, resp.Plan.MissingFields)

	if snap.Plan.Complete() {
		snap.State = conversation.StateAwaitingConfirmation
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: planSummary(snap.Plan, o.registry), State: snap.State}, nil
	}

	if reply, conflicted := o.save(ctx, snap); conflicted {
		return reply, nil
	}
	return &Reply{
		Text:  "Thanks. I still need: " + strings.Join(snap.Plan.Missing, ", ") + ".",
		State: snap.State,
	}, nil
}

// handleAwaitingConfirmation dispatches on the user's reply to a rendered
// plan summary.
func (o *Orchestrator) handleAwaitingConfirmation(ctx context.Context, snap *conversation.Snapshot, turn Turn) (*Reply, error) {
	if snap.Plan == nil {
		snap.Reset()
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: "Let's start over. What would you like to do?", State: snap.State}, nil
	}

	switch ClassifyReply(turn.Message) {
	case ReplyConfirmation:
		return o.executePlan(ctx, snap, turn)
	case ReplyRejection:
		snap.Reset()
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: "Okay, I've cancelled that.", State: snap.State}, nil
	case ReplyModification:
		snap.State = conversation.StatePlanning
		if reply, conflicted := o.save(ctx, snap); conflicted {
			return reply, nil
		}
		return &Reply{Text: "Sure — what would you like to change?", State: snap.State}, nil
	default:
		// Ambiguity never advances the machine: same state, same plan.
		return &Reply{Text: ambiguousMessage, State: snap.State}, nil
	}
}

// executePlan runs the confirmed plan through the executor, guarded by the
// EXECUTING state and, for charge commits, by the preview requirement.
func (o *Orchestrator) executePlan(ctx context.Context, snap *conversation.Snapshot, turn Turn) (*Reply, error) {
	plan := snap.Plan
	params := make(map[string]any, len(plan.Params)+len(plan.Collected))
	for k, v := range plan.Params {
		params[k] = v
	}
	for k, v := range plan.Collected {
		params[k] = v
	}

	if intent.IsChargeCommitOperation(plan.Operation) {
		if snap.LastPreviewID == "" {
			snap.Reset()
			if reply, conflicted := o.save(ctx, snap); conflicted {
				return reply, nil
			}
			return &Reply{
				Text:  "I can't commit a charge without a prior preview in this conversation. Ask me to preview the charge first.",
				State: snap.State,
			}, nil
		}
		if _, ok := params["preview_id"]; !ok {
			params["preview_id"] = snap.LastPreviewID
		}
	}

	snap.State = conversation.StateExecuting
	if reply, conflicted := o.save(ctx, snap); conflicted {
		return reply, nil
	}

	result := o.executor.Execute(ctx, executor.Caller{UserID: turn.UserID, Tier: turn.Tier}, plan.Operation, params)

	if result.Success && plan.Operation == "billing.previewCharge" {
		if preview, ok := result.Data.(*billing.Preview); ok {
			snap.LastPreviewID = preview.ID
		}
	}

	operation := plan.Operation
	snap.Reset()
	if reply, conflicted := o.save(ctx, snap); conflicted {
		return reply, nil
	}
	return &Reply{Text: renderResult(operation, result), State: snap.State, Result: result}, nil
}

// save persists the snapshot. A version conflict means a concurrent turn
// won the race; the transition is rejected and the user asked to retry.
func (o *Orchestrator) save(ctx context.Context, snap *conversation.Snapshot) (*Reply, bool) {
	err := o.conversations.Save(ctx, snap)
	if err == nil {
		return nil, false
	}
	if errors.Is(err, conversation.ErrVersionConflict) {
		o.logger.WarnContext(ctx, "conversation save lost a concurrent race", "conversation_id", snap.ID)
		return &Reply{Text: crossedMessage, State: snap.State}, true
	}
	o.logger.ErrorContext(ctx, "conversation save failed", "conversation_id", snap.ID, "error", err)
	return &Reply{Text: apologyMessage, State: conversation.StateIdle}, true
}

// recoverToIdle force-resets a conversation after an unexpected fault.
func (o *Orchestrator) recoverToIdle(ctx context.Context, conversationID string) {
	snap, err := o.conversations.Load(ctx, conversationID)
	if err != nil {
		return
	}
	snap.Reset()
	if err := o.conversations.Save(ctx, snap); err != nil {
		o.logger.WarnContext(ctx, "recovery save failed", "conversation_id", conversationID, "error", err)
	}
}

// renderResult turns a result envelope into user-facing text.
func renderResult(operation string, result *domain.Result) string {
	if result.Success {
		var b strings.Builder
		b.WriteString("Done.")
		for _, ref := range result.AffectedEntities {
			fmt.Fprintf(&b, " %s %s (%s).", ref.EntityType, ref.Action, ref.ID)
		}
		if operation == "billing.previewCharge" {
			if preview, ok := result.Data.(*billing.Preview); ok {
				if !preview.Valid {
					b.WriteString(" Note: this preview is NOT valid: " + strings.Join(preview.Errors, "; ") + ".")
				}
				for _, w := range preview.Warnings {
					b.WriteString(" Warning: " + w + ".")
				}
			}
		}
		return b.String()
	}

	switch result.ErrorCode {
	case domain.CodeEntityNotFound:
		return "I couldn't find that: " + result.Error
	case domain.CodeEntityNotOwned:
		return "That record doesn't belong to you."
	case domain.CodePlanLimitExceeded:
		return result.Error
	case domain.CodePreviewRequired:
		return "A charge has to be previewed before it can be committed. " + result.Error
	case domain.CodePreviewExpired:
		return "The charge preview has expired. Let's preview it again."
	case domain.CodeIdempotencyConflict:
		return "That charge was already committed; I won't commit it twice."
	case domain.CodeValidation:
		return "That request isn't valid: " + result.Error
	default:
		return apologyMessage
	}
}
