// Package intent decodes raw model text into one of four typed response
// variants: plan, tool_call, ask_user, informative. Decoding is total — any
// text that carries no recognizable structured payload becomes an informative
// message rather than an error, so a protocol slip by the model never breaks
// the conversation.
package intent

// Kind tags a decoded response variant.
type Kind string

const (
	KindPlan        Kind = "plan"
	KindToolCall    Kind = "tool_call"
	KindAskUser     Kind = "ask_user"
	KindInformative Kind = "informative"
)

// Plan is a proposed state-changing action awaiting field completion and
// user confirmation.
type Plan struct {
	Action               string         `json:"action"`
	CollectedFields      map[string]any `json:"collected_fields"`
	MissingFields        []string       `json:"missing_fields"`
	SuggestedActions     []string       `json:"suggested_actions"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Message              string         `json:"message,omitempty"`
}

// ToolCall is a direct request to run a named operation.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// AskUser asks the user a clarifying question.
type AskUser struct {
	Question string   `json:"question"`
	Context  string   `json:"context,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Informative is a plain message with optional structured data.
type Informative struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Response is the decoded variant. Exactly one of the variant pointers is
// non-nil, matching Kind.
type Response struct {
	Kind        Kind
	Plan        *Plan
	ToolCall    *ToolCall
	AskUser     *AskUser
	Informative *Informative
}

// IsPlan reports whether r is a plan.
func (r *Response) IsPlan() bool { return r.Kind == KindPlan }

// IsToolCall reports whether r is a tool call.
func (r *Response) IsToolCall() bool { return r.Kind == KindToolCall }

// IsAskUser reports whether r is a question for the user.
func (r *Response) IsAskUser() bool { return r.Kind == KindAskUser }

// IsInformative reports whether r is a plain message.
func (r *Response) IsInformative() bool { return r.Kind == KindInformative }

// IsPlanMissingFields reports whether r is a plan that still needs fields.
func (r *Response) IsPlanMissingFields() bool {
	return r.Kind == KindPlan && len(r.Plan.MissingFields) > 0
}

// IsPlanReadyForConfirmation reports whether r is a plan with all fields
// collected that still wants explicit user confirmation.
func (r *Response) IsPlanReadyForConfirmation() bool {
	return r.Kind == KindPlan && len(r.Plan.MissingFields) == 0 && r.Plan.RequiresConfirmation
}

// writeOperations is the fixed set of mutating operation names.
var writeOperations = map[string]bool{
	"customers.create":      true,
	"workorders.create":     true,
	"quotes.create":         true,
	"billing.previewCharge": true,
	"billing.createCharge":  true,
}

// IsWriteOperation reports whether the named operation mutates state.
func IsWriteOperation(name string) bool {
	return writeOperations[name]
}

// IsChargeCommitOperation reports whether the named operation commits a
// charge and therefore requires a prior preview.
func IsChargeCommitOperation(name string) bool {
	return name == "billing.createCharge"
}
