package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/steward/pkg/domain"
)

// DefaultPreviewTTL is how long a preview stays consumable.
const DefaultPreviewTTL = 15 * time.Minute

// ErrPreviewNotFound is returned by stores when no preview exists for an id.
var ErrPreviewNotFound = errors.New("billing: preview not found")

// ErrPreviewConsumed is returned by stores when a consume races a prior one.
var ErrPreviewConsumed = errors.New("billing: preview already consumed")

// Limits bounds charge amounts and preview lifetime. Values are minor
// currency units.
type Limits struct {
	MinValue   int64
	MaxValue   int64
	Currency   string
	PreviewTTL time.Duration
}

// DefaultLimits returns the built-in billing bounds.
func DefaultLimits() Limits {
	return Limits{
		MinValue:   5,
		MaxValue:   5_000_000,
		Currency:   "USD",
		PreviewTTL: DefaultPreviewTTL,
	}
}

// Preview is the first phase of the two-phase charge protocol: a persisted,
// expiring, single-use proposal.
type Preview struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	CustomerID  string     `json:"customer_id"`
	Amount      Money      `json:"amount"`
	Method      string     `json:"method"`
	DueDate     time.Time  `json:"due_date"`
	Description string     `json:"description,omitempty"`
	Valid       bool       `json:"valid"`
	Warnings    []string   `json:"warnings,omitempty"`
	Errors      []string   `json:"errors,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
}

// Expired reports whether the preview is past its TTL at now.
func (p *Preview) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Consumed reports whether the preview has already been committed.
func (p *Preview) Consumed() bool {
	return p.ConsumedAt != nil
}

// PreviewStore persists previews and performs the atomic consume+create.
type PreviewStore interface {
	CreatePreview(ctx context.Context, p *Preview) error
	GetPreview(ctx context.Context, id string) (*Preview, error)
	// ConsumePreviewAndCreateCharge marks the preview consumed and inserts
	// the charge in a single transaction: both land or neither does.
	// Returns ErrPreviewConsumed if the preview was consumed concurrently.
	ConsumePreviewAndCreateCharge(ctx context.Context, previewID string, charge *domain.Charge) error
}

// PreviewInput carries the parameters of a preview request.
type PreviewInput struct {
	OwnerID     string
	CustomerID  string
	Value       int64 // minor units
	Method      string
	DueDate     time.Time
	Description string
}

// BuildPreview validates the input and produces a preview with its validity
// flag, warnings, and errors computed. Only an inactive billing integration
// and a below-minimum amount are hard errors; past due dates and boundary
// amounts warn without invalidating.
func BuildPreview(in PreviewInput, limits Limits, integrationActive bool, now time.Time) *Preview {
	p := &Preview{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		CustomerID:  in.CustomerID,
		Amount:      NewMoney(in.Value, limits.Currency),
		Method:      in.Method,
		DueDate:     in.DueDate,
		Description: in.Description,
		CreatedAt:   now,
		ExpiresAt:   now.Add(limits.PreviewTTL),
	}

	if !integrationActive {
		p.Errors = append(p.Errors, "billing integration is not active")
	}
	if in.Value < limits.MinValue {
		p.Errors = append(p.Errors, fmt.Sprintf("value %d is below the minimum %d", in.Value, limits.MinValue))
	}
	if limits.MaxValue > 0 && in.Value >= limits.MaxValue {
		p.Warnings = append(p.Warnings, fmt.Sprintf("value %d is at or above the maximum %d", in.Value, limits.MaxValue))
	}
	if !in.DueDate.IsZero() && in.DueDate.Before(now) {
		p.Warnings = append(p.Warnings, "due date is in the past")
	}

	p.Valid = len(p.Errors) == 0
	return p
}
