package executor

import (
	"context"
	"errors"
	"time"

	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/domain"
)

// SearchResult is the data payload of every search operation.
type SearchResult struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
}

func (e *Executor) decodeParams(name string, raw map[string]any, dst any) *domain.Result {
	if err := e.registry.DecodeParams(name, raw, dst); err != nil {
		return domain.Fail(domain.CodeValidation, err.Error())
	}
	return nil
}

// requireCustomer loads a customer scoped to the caller; a miss covers both
// "does not exist" and "owned by someone else", which the owner-scoped query
// cannot distinguish.
func (e *Executor) requireCustomer(ctx context.Context, caller Caller, id string) (*domain.Customer, *domain.Result) {
	c, err := e.stores.Customers.GetCustomer(ctx, id, caller.UserID)
	if err != nil {
		e.logger.ErrorContext(ctx, "customer lookup failed", "customer_id", id, "error", err)
		return nil, domain.Fail(domain.CodeInternal, "customer lookup failed")
	}
	if c == nil {
		return nil, domain.Fail(domain.CodeEntityNotFound, "customer "+id+" not found")
	}
	return c, nil
}

// --- customers ---

func (e *Executor) customersSearch(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p SearchParams
	if fail := e.decodeParams("customers.search", raw, &p); fail != nil {
		return fail
	}
	items, total, err := e.stores.Customers.SearchCustomers(ctx, caller.UserID,
		domain.SearchFilter{Query: p.Query},
		domain.Pagination{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		e.logger.ErrorContext(ctx, "customer search failed", "error", err)
		return domain.Fail(domain.CodeInternal, "search failed")
	}
	return domain.OK(SearchResult{Items: items, Total: total})
}

func (e *Executor) customersGet(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p GetParams
	if fail := e.decodeParams("customers.get", raw, &p); fail != nil {
		return fail
	}
	c, fail := e.requireCustomer(ctx, caller, p.ID)
	if fail != nil {
		return fail
	}
	return domain.OK(c, domain.EntityRef{EntityType: "customer", ID: c.ID, Action: "read"})
}

func (e *Executor) customersCreate(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p CustomerCreateParams
	if fail := e.decodeParams("customers.create", raw, &p); fail != nil {
		return fail
	}

	return e.executeIdempotent(ctx, caller, "customers.create", p.IdempotencyKey, raw, func(ctx context.Context) *domain.Result {
		c := &domain.Customer{
			ID:        newID(),
			OwnerID:   caller.UserID,
			Name:      p.Name,
			Email:     p.Email,
			Phone:     p.Phone,
			CreatedAt: e.clock().UTC(),
		}
		if err := e.stores.Customers.CreateCustomer(ctx, c); err != nil {
			e.logger.ErrorContext(ctx, "customer create failed", "error", err)
			return domain.Fail(domain.CodeInternal, "could not create customer")
		}
		return domain.OK(c, domain.EntityRef{EntityType: "customer", ID: c.ID, Action: "created"})
	})
}

// --- work orders ---

func (e *Executor) workOrdersSearch(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p SearchParams
	if fail := e.decodeParams("workorders.search", raw, &p); fail != nil {
		return fail
	}
	items, total, err := e.stores.WorkOrders.SearchWorkOrders(ctx, caller.UserID,
		domain.SearchFilter{Query: p.Query, CustomerID: p.CustomerID},
		domain.Pagination{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		e.logger.ErrorContext(ctx, "work order search failed", "error", err)
		return domain.Fail(domain.CodeInternal, "search failed")
	}
	return domain.OK(SearchResult{Items: items, Total: total})
}

func (e *Executor) workOrdersGet(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p GetParams
	if fail := e.decodeParams("workorders.get", raw, &p); fail != nil {
		return fail
	}
	w, err := e.stores.WorkOrders.GetWorkOrder(ctx, p.ID, caller.UserID)
	if err != nil {
		e.logger.ErrorContext(ctx, "work order lookup failed", "error", err)
		return domain.Fail(domain.CodeInternal, "lookup failed")
	}
	if w == nil {
		return domain.Fail(domain.CodeEntityNotFound, "work order "+p.ID+" not found")
	}
	return domain.OK(w, domain.EntityRef{EntityType: "workorder", ID: w.ID, Action: "read"})
}

func (e *Executor) workOrdersCreate(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p WorkOrderCreateParams
	if fail := e.decodeParams("workorders.create", raw, &p); fail != nil {
		return fail
	}

	var scheduled *time.Time
	if p.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, p.ScheduledFor)
		if err != nil {
			return domain.Fail(domain.CodeValidation, "scheduled_for must be an RFC 3339 timestamp")
		}
		scheduled = &t
	}

	if _, fail := e.requireCustomer(ctx, caller, p.CustomerID); fail != nil {
		return fail
	}

	return e.executeIdempotent(ctx, caller, "workorders.create", p.IdempotencyKey, raw, func(ctx context.Context) *domain.Result {
		w := &domain.WorkOrder{
			ID:           newID(),
			OwnerID:      caller.UserID,
			CustomerID:   p.CustomerID,
			Title:        p.Title,
			Status:       domain.WorkOrderOpen,
			ScheduledFor: scheduled,
			CreatedAt:    e.clock().UTC(),
		}
		if scheduled != nil {
			w.Status = domain.WorkOrderScheduled
		}
		if err := e.stores.WorkOrders.CreateWorkOrder(ctx, w); err != nil {
			e.logger.ErrorContext(ctx, "work order create failed", "error", err)
			return domain.Fail(domain.CodeInternal, "could not create work order")
		}
		return domain.OK(w, domain.EntityRef{EntityType: "workorder", ID: w.ID, Action: "created"})
	})
}

// --- quotes ---

func (e *Executor) quotesSearch(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p SearchParams
	if fail := e.decodeParams("quotes.search", raw, &p); fail != nil {
		return fail
	}
	items, total, err := e.stores.Quotes.SearchQuotes(ctx, caller.UserID,
		domain.SearchFilter{Query: p.Query, CustomerID: p.CustomerID},
		domain.Pagination{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		e.logger.ErrorContext(ctx, "quote search failed", "error", err)
		return domain.Fail(domain.CodeInternal, "search failed")
	}
	return domain.OK(SearchResult{Items: items, Total: total})
}

func (e *Executor) quotesGet(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p GetParams
	if fail := e.decodeParams("quotes.get", raw, &p); fail != nil {
		return fail
	}
	q, err := e.stores.Quotes.GetQuote(ctx, p.ID, caller.UserID)
	if err != nil {
		e.logger.ErrorContext(ctx, "quote lookup failed", "error", err)
		return domain.Fail(domain.CodeInternal, "lookup failed")
	}
	if q == nil {
		return domain.Fail(domain.CodeEntityNotFound, "quote "+p.ID+" not found")
	}
	return domain.OK(q, domain.EntityRef{EntityType: "quote", ID: q.ID, Action: "read"})
}

func (e *Executor) quotesCreate(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p QuoteCreateParams
	if fail := e.decodeParams("quotes.create", raw, &p); fail != nil {
		return fail
	}
	if _, fail := e.requireCustomer(ctx, caller, p.CustomerID); fail != nil {
		return fail
	}

	return e.executeIdempotent(ctx, caller, "quotes.create", p.IdempotencyKey, raw, func(ctx context.Context) *domain.Result {
		q := &domain.Quote{
			ID:          newID(),
			OwnerID:     caller.UserID,
			CustomerID:  p.CustomerID,
			Title:       p.Title,
			AmountMinor: p.Value,
			Currency:    e.limits.Currency,
			Status:      domain.QuoteDraft,
			CreatedAt:   e.clock().UTC(),
		}
		if err := e.stores.Quotes.CreateQuote(ctx, q); err != nil {
			e.logger.ErrorContext(ctx, "quote create failed", "error", err)
			return domain.Fail(domain.CodeInternal, "could not create quote")
		}
		return domain.OK(q, domain.EntityRef{EntityType: "quote", ID: q.ID, Action: "created"})
	})
}

// --- charges ---

func (e *Executor) chargesSearch(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p SearchParams
	if fail := e.decodeParams("charges.search", raw, &p); fail != nil {
		return fail
	}
	items, total, err := e.stores.Charges.SearchCharges(ctx, caller.UserID,
		domain.SearchFilter{CustomerID: p.CustomerID},
		domain.Pagination{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		e.logger.ErrorContext(ctx, "charge search failed", "error", err)
		return domain.Fail(domain.CodeInternal, "search failed")
	}
	return domain.OK(SearchResult{Items: items, Total: total})
}

func (e *Executor) chargesGet(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p GetParams
	if fail := e.decodeParams("charges.get", raw, &p); fail != nil {
		return fail
	}
	c, err := e.stores.Charges.GetCharge(ctx, p.ID, caller.UserID)
	if err != nil {
		e.logger.ErrorContext(ctx, "charge lookup failed", "error", err)
		return domain.Fail(domain.CodeInternal, "lookup failed")
	}
	if c == nil {
		return domain.Fail(domain.CodeEntityNotFound, "charge "+p.ID+" not found")
	}
	return domain.OK(c, domain.EntityRef{EntityType: "charge", ID: c.ID, Action: "read"})
}

// --- billing two-phase protocol ---

func (e *Executor) previewCharge(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p PreviewChargeParams
	if fail := e.decodeParams("billing.previewCharge", raw, &p); fail != nil {
		return fail
	}

	var dueDate time.Time
	if p.DueDate != "" {
		t, err := time.Parse(time.RFC3339, p.DueDate)
		if err != nil {
			return domain.Fail(domain.CodeValidation, "due_date must be an RFC 3339 timestamp")
		}
		dueDate = t
	}

	if _, fail := e.requireCustomer(ctx, caller, p.CustomerID); fail != nil {
		return fail
	}

	preview := billing.BuildPreview(billing.PreviewInput{
		OwnerID:     caller.UserID,
		CustomerID:  p.CustomerID,
		Value:       p.Value,
		Method:      p.Method,
		DueDate:     dueDate,
		Description: p.Description,
	}, e.limits, e.integrationActive, e.clock().UTC())

	if err := e.previews.CreatePreview(ctx, preview); err != nil {
		e.logger.ErrorContext(ctx, "preview persist failed", "error", err)
		return domain.Fail(domain.CodeInternal, "could not store charge preview")
	}

	// An invalid preview is still a successful preview operation; the
	// validity verdict travels in the data.
	return domain.OK(preview, domain.EntityRef{EntityType: "charge_preview", ID: preview.ID, Action: "created"})
}

func (e *Executor) createCharge(ctx context.Context, caller Caller, raw map[string]any) *domain.Result {
	var p CreateChargeParams
	if fail := e.decodeParams("billing.createCharge", raw, &p); fail != nil {
		return fail
	}

	return e.executeIdempotent(ctx, caller, "billing.createCharge", p.IdempotencyKey, raw, func(ctx context.Context) *domain.Result {
		preview, err := e.previews.GetPreview(ctx, p.PreviewID)
		if err != nil {
			if errors.Is(err, billing.ErrPreviewNotFound) {
				return domain.Fail(domain.CodePreviewRequired, "no charge preview found; preview the charge first")
			}
			e.logger.ErrorContext(ctx, "preview lookup failed", "preview_id", p.PreviewID, "error", err)
			return domain.Fail(domain.CodeInternal, "preview lookup failed")
		}

		// Failure priority: not owned, expired, consumed, not valid.
		now := e.clock().UTC()
		switch {
		case preview.OwnerID != caller.UserID:
			return domain.Fail(domain.CodeEntityNotOwned, "charge preview belongs to another user")
		case preview.Expired(now):
			return domain.Fail(domain.CodePreviewExpired, "charge preview has expired; preview the charge again")
		case preview.Consumed():
			return domain.Fail(domain.CodeIdempotencyConflict, "charge preview was already committed")
		case !preview.Valid:
			return domain.Fail(domain.CodeValidation, "charge preview is not valid: "+joinErrors(preview.Errors))
		}

		charge := &domain.Charge{
			ID:          newID(),
			OwnerID:     caller.UserID,
			CustomerID:  preview.CustomerID,
			AmountMinor: preview.Amount.AmountMinor,
			Currency:    preview.Amount.Currency,
			Method:      preview.Method,
			DueDate:     preview.DueDate,
			Description: preview.Description,
			PreviewID:   preview.ID,
			CreatedAt:   now,
		}

		if err := e.previews.ConsumePreviewAndCreateCharge(ctx, preview.ID, charge); err != nil {
			switch {
			case errors.Is(err, billing.ErrPreviewConsumed):
				return domain.Fail(domain.CodeIdempotencyConflict, "charge preview was already committed")
			case errors.Is(err, billing.ErrPreviewNotFound):
				return domain.Fail(domain.CodePreviewRequired, "no charge preview found; preview the charge first")
			default:
				e.logger.ErrorContext(ctx, "charge commit failed", "preview_id", preview.ID, "error", err)
				return domain.Fail(domain.CodeInternal, "could not commit the charge")
			}
		}

		return domain.OK(charge,
			domain.EntityRef{EntityType: "charge", ID: charge.ID, Action: "created"},
			domain.EntityRef{EntityType: "charge_preview", ID: preview.ID, Action: "consumed"},
		)
	})
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "unknown reason"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}
