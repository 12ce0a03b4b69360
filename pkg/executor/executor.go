// Package executor runs tool operations against the business data stores.
// Every operation returns the uniform result envelope; business-rule
// violations travel inside it with taxonomic codes and are never raised as
// errors.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/steward/pkg/audit"
	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/domain"
	"github.com/Mindburn-Labs/steward/pkg/idempotency"
	"github.com/Mindburn-Labs/steward/pkg/registry"
	"github.com/Mindburn-Labs/steward/pkg/tiers"
)

// Caller identifies who an operation runs for. Every read and write is
// scoped to the caller's ownership.
type Caller struct {
	UserID string
	Tier   tiers.TierID
}

// Deps carries the executor's collaborators.
type Deps struct {
	Registry          *registry.Registry
	Stores            domain.Stores
	Previews          billing.PreviewStore
	Ledger            *idempotency.Ledger
	Quota             *billing.QuotaChecker
	Limits            billing.Limits
	IntegrationActive bool
	Audit             audit.Logger
	Logger            *slog.Logger
	Clock             func() time.Time
}

// Executor dispatches operation names to handlers.
type Executor struct {
	registry          *registry.Registry
	stores            domain.Stores
	previews          billing.PreviewStore
	ledger            *idempotency.Ledger
	quota             *billing.QuotaChecker
	limits            billing.Limits
	integrationActive bool
	audit             audit.Logger
	logger            *slog.Logger
	clock             func() time.Time
}

// New creates an executor from its dependencies.
func New(deps Deps) *Executor {
	e := &Executor{
		registry:          deps.Registry,
		stores:            deps.Stores,
		previews:          deps.Previews,
		ledger:            deps.Ledger,
		quota:             deps.Quota,
		limits:            deps.Limits,
		integrationActive: deps.IntegrationActive,
		audit:             deps.Audit,
		logger:            deps.Logger,
		clock:             deps.Clock,
	}
	if e.audit == nil {
		e.audit = audit.Nop{}
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "executor")
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// quotaEntity maps create operations to the entity type their quota counts.
var quotaEntity = map[string]string{
	"customers.create":     "customer",
	"workorders.create":    "workorder",
	"quotes.create":        "quote",
	"billing.createCharge": "charge",
}

// Execute runs one operation for the caller. The returned envelope is never
// nil.
func (e *Executor) Execute(ctx context.Context, caller Caller, name string, params map[string]any) *domain.Result {
	op, err := e.registry.Resolve(name)
	if err != nil {
		return domain.Fail(domain.CodeValidation, "unknown operation: "+name)
	}
	if !e.registry.Allowed(name, caller.Tier) {
		return domain.Fail(domain.CodeValidation, "operation "+name+" is not available on your current plan")
	}

	if entity, ok := quotaEntity[name]; ok {
		if res := e.checkQuota(ctx, caller, entity); res != nil {
			return res
		}
	}

	result := e.dispatch(ctx, caller, name, params)

	if op.Effect == registry.EffectWrite && result.Success {
		if err := e.audit.Record(ctx, audit.EventMutation, caller.UserID, name, result.AffectedEntities, nil); err != nil {
			e.logger.WarnContext(ctx, "audit record failed", "operation", name, "error", err)
		}
	}
	return result
}

func (e *Executor) dispatch(ctx context.Context, caller Caller, name string, params map[string]any) *domain.Result {
	switch name {
	case "customers.search":
		return e.customersSearch(ctx, caller, params)
	case "customers.get":
		return e.customersGet(ctx, caller, params)
	case "customers.create":
		return e.customersCreate(ctx, caller, params)
	case "workorders.search":
		return e.workOrdersSearch(ctx, caller, params)
	case "workorders.get":
		return e.workOrdersGet(ctx, caller, params)
	case "workorders.create":
		return e.workOrdersCreate(ctx, caller, params)
	case "quotes.search":
		return e.quotesSearch(ctx, caller, params)
	case "quotes.get":
		return e.quotesGet(ctx, caller, params)
	case "quotes.create":
		return e.quotesCreate(ctx, caller, params)
	case "charges.search":
		return e.chargesSearch(ctx, caller, params)
	case "charges.get":
		return e.chargesGet(ctx, caller, params)
	case "billing.previewCharge":
		return e.previewCharge(ctx, caller, params)
	case "billing.createCharge":
		return e.createCharge(ctx, caller, params)
	default:
		// Registered but unhandled would be a programming error.
		return domain.Fail(domain.CodeInternal, "operation "+name+" has no handler")
	}
}

// checkQuota returns a failure envelope when the caller's plan quota for the
// entity type is exhausted, nil otherwise.
func (e *Executor) checkQuota(ctx context.Context, caller Caller, entityType string) *domain.Result {
	tier := tiers.Get(caller.Tier)
	if tier == nil {
		return domain.Fail(domain.CodeValidation, "unknown subscription tier")
	}

	var limit int64
	switch entityType {
	case "customer":
		limit = tier.Quotas.MaxCustomers
	case "workorder":
		limit = tier.Quotas.MaxWorkOrders
	case "quote":
		limit = tier.Quotas.MaxQuotes
	case "charge":
		limit = tier.Quotas.MaxCharges
	}
	if tiers.IsUnlimited(limit) {
		return nil
	}

	count, err := e.stores.Counter.CountEntities(ctx, caller.UserID, entityType)
	if err != nil {
		e.logger.ErrorContext(ctx, "entity count failed", "entity", entityType, "error", err)
		return domain.Fail(domain.CodeInternal, "could not verify plan quota")
	}

	allowed, err := e.quota.Allows(count, limit)
	if err != nil {
		e.logger.ErrorContext(ctx, "quota predicate failed", "entity", entityType, "error", err)
		return domain.Fail(domain.CodeInternal, "could not verify plan quota")
	}
	if !allowed {
		return domain.Fail(domain.CodePlanLimitExceeded,
			"your plan's "+entityType+" limit has been reached; upgrade to add more")
	}
	return nil
}

// executeIdempotent wraps perform in the ledger when the caller supplied a
// key; without a key the operation runs unprotected.
func (e *Executor) executeIdempotent(ctx context.Context, caller Caller, name, key string, params map[string]any, perform func(ctx context.Context) *domain.Result) *domain.Result {
	outcome, err := e.ledger.Execute(ctx, caller.UserID, name, key, params, perform)
	if err != nil {
		e.logger.ErrorContext(ctx, "idempotent execution failed", "operation", name, "error", err)
		return domain.Fail(domain.CodeInternal, "operation failed, please retry")
	}
	if outcome.Replayed {
		e.logger.InfoContext(ctx, "replayed recorded outcome", "operation", name, "key", key)
	}
	return outcome.Result
}

func newID() string { return uuid.NewString() }
