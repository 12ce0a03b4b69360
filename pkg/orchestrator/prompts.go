package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/steward/pkg/conversation"
	"github.com/Mindburn-Labs/steward/pkg/llm"
	"github.com/Mindburn-Labs/steward/pkg/registry"
	"github.com/Mindburn-Labs/steward/pkg/tiers"
)

const systemPromptHeader = `You are Steward, an operations copilot for a field-service business.
You help the user manage customers, work orders, quotes, and charges.

Respond with exactly one JSON object, optionally inside a json code fence.
Use one of these shapes:
- {"type":"plan","action":"<operation>","collected_fields":{...},"missing_fields":[...],"requires_confirmation":true,"message":"..."}
- {"type":"tool_call","tool":"<operation>","params":{...}}
- {"type":"ask_user","question":"...","options":[...]}
- {"type":"informative","message":"..."}

State-changing operations always go through a plan so the user can confirm.
Read operations may be called directly as tool_call.`

// systemPrompt renders the instruction block with the operations the
// caller's tier may use.
func (o *Orchestrator) systemPrompt(tier tiers.TierID, knowledgeContext string) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nAvailable operations:\n")
	for _, op := range o.registry.ListAvailable(tier) {
		fmt.Fprintf(&b, "- %s: %s\n", op.Name, op.Description)
	}
	if knowledgeContext != "" {
		b.WriteString("\n")
		b.WriteString(knowledgeContext)
	}
	return b.String()
}

// extractionPrompt constrains the model to the still-missing plan fields.
func extractionPrompt(plan *conversation.PendingPlan, userReply string) string {
	return fmt.Sprintf(`The user is completing a pending %q action.
Still missing fields: %s.
The user replied: %q

Extract any of the missing field values from the reply. Respond with exactly:
{"type":"plan","action":%q,"collected_fields":{<extracted fields>},"missing_fields":[<fields still not provided>],"requires_confirmation":true}`,
		plan.Operation, strings.Join(plan.Missing, ", "), userReply, plan.Operation)
}

// buildMessages assembles the model context: system prompt, history window
// oldest-first, then the current user message (already part of history).
func buildMessages(system string, history []conversation.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// planSummary renders a pending plan for user confirmation.
func planSummary(plan *conversation.PendingPlan, reg *registry.Registry) string {
	var b strings.Builder
	desc := plan.Operation
	if op, err := reg.Resolve(plan.Operation); err == nil {
		desc = op.Description
	}
	fmt.Fprintf(&b, "Here's what I'm about to do: %s.", desc)
	if len(plan.Collected) > 0 {
		b.WriteString("\nDetails:")
		for k, v := range plan.Collected {
			fmt.Fprintf(&b, "\n- %s: %v", k, v)
		}
	}
	b.WriteString("\nShall I go ahead? (yes/no)")
	return b.String()
}
