package executor

// Parameter structs, one per operation. Raw model output is validated
// against the registry schema and decoded into these at the boundary; the
// handlers trust them thereafter.

// SearchParams covers the search operations. CustomerID only applies where
// the schema declares it.
type SearchParams struct {
	Query      string `json:"query,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// GetParams covers the by-id fetch operations.
type GetParams struct {
	ID string `json:"id"`
}

type CustomerCreateParams struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type WorkOrderCreateParams struct {
	CustomerID     string `json:"customer_id"`
	Title          string `json:"title"`
	ScheduledFor   string `json:"scheduled_for,omitempty"` // RFC 3339
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type QuoteCreateParams struct {
	CustomerID     string `json:"customer_id"`
	Title          string `json:"title"`
	Value          int64  `json:"value"` // minor units
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PreviewChargeParams struct {
	CustomerID  string `json:"customer_id"`
	Value       int64  `json:"value"` // minor units
	Method      string `json:"method"`
	DueDate     string `json:"due_date,omitempty"` // RFC 3339
	Description string `json:"description,omitempty"`
}

type CreateChargeParams struct {
	PreviewID      string `json:"preview_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}
