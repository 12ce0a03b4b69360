package domain

// ErrorCode is a stable, taxonomic result code. Callers branch on codes,
// never on message text.
type ErrorCode string

const (
	CodeEntityNotFound      ErrorCode = "ENTITY_NOT_FOUND"
	CodeEntityNotOwned      ErrorCode = "ENTITY_NOT_OWNED"
	CodeValidation          ErrorCode = "VALIDATION_ERROR"
	CodePlanLimitExceeded   ErrorCode = "PLAN_LIMIT_EXCEEDED"
	CodePreviewRequired     ErrorCode = "PREVIEW_REQUIRED"
	CodePreviewExpired      ErrorCode = "PREVIEW_EXPIRED"
	CodeIdempotencyConflict ErrorCode = "IDEMPOTENCY_CONFLICT"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// EntityRef identifies one entity touched by an operation, for audit.
type EntityRef struct {
	EntityType string `json:"entity_type"`
	ID         string `json:"id"`
	Action     string `json:"action"` // "created" | "read" | "consumed"
}

// Result is the uniform envelope every tool operation returns.
// Business-rule violations are expected outcomes and travel inside the
// envelope; they are never raised as errors.
type Result struct {
	Success          bool        `json:"success"`
	Data             any         `json:"data,omitempty"`
	Error            string      `json:"error,omitempty"`
	ErrorCode        ErrorCode   `json:"error_code,omitempty"`
	AffectedEntities []EntityRef `json:"affected_entities,omitempty"`
}

// OK builds a successful result.
func OK(data any, affected ...EntityRef) *Result {
	return &Result{Success: true, Data: data, AffectedEntities: affected}
}

// Fail builds a failed result with a taxonomic code.
func Fail(code ErrorCode, msg string) *Result {
	return &Result{Success: false, Error: msg, ErrorCode: code}
}
