// Package domain holds the business entities Steward operates on and the
// narrow store contracts the tool executor reads and writes through.
package domain

import (
	"context"
	"time"
)

// WorkOrderStatus tracks a work order through its lifecycle.
type WorkOrderStatus string

const (
	WorkOrderOpen      WorkOrderStatus = "OPEN"
	WorkOrderScheduled WorkOrderStatus = "SCHEDULED"
	WorkOrderDone      WorkOrderStatus = "DONE"
	WorkOrderCancelled WorkOrderStatus = "CANCELLED"
)

// QuoteStatus tracks a quote through its lifecycle.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "DRAFT"
	QuoteSent     QuoteStatus = "SENT"
	QuoteAccepted QuoteStatus = "ACCEPTED"
	QuoteDeclined QuoteStatus = "DECLINED"
)

// Customer is a client of the business Steward serves.
type Customer struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkOrder is a scheduled unit of field work for a customer.
type WorkOrder struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	CustomerID   string          `json:"customer_id"`
	Title        string          `json:"title"`
	Status       WorkOrderStatus `json:"status"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Quote is a priced proposal for work, in minor currency units.
type Quote struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	CustomerID  string      `json:"customer_id"`
	Title       string      `json:"title"`
	AmountMinor int64       `json:"amount_minor"`
	Currency    string      `json:"currency"`
	Status      QuoteStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Charge is a committed billing record. Charges are only ever created by
// consuming a charge preview; see the billing package.
type Charge struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	CustomerID  string    `json:"customer_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Method      string    `json:"method"`
	DueDate     time.Time `json:"due_date"`
	Description string    `json:"description,omitempty"`
	PreviewID   string    `json:"preview_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchFilter narrows a search. Zero values mean "no constraint".
type SearchFilter struct {
	Query      string
	CustomerID string
}

// Pagination bounds a search result page.
type Pagination struct {
	Limit  int
	Offset int
}

// CustomerStore is the narrow contract for customer records.
// Every read is scoped to the owning user.
type CustomerStore interface {
	SearchCustomers(ctx context.Context, ownerID string, filter SearchFilter, page Pagination) ([]Customer, int64, error)
	GetCustomer(ctx context.Context, id, ownerID string) (*Customer, error)
	CreateCustomer(ctx context.Context, c *Customer) error
}

// WorkOrderStore is the narrow contract for work order records.
type WorkOrderStore interface {
	SearchWorkOrders(ctx context.Context, ownerID string, filter SearchFilter, page Pagination) ([]WorkOrder, int64, error)
	GetWorkOrder(ctx context.Context, id, ownerID string) (*WorkOrder, error)
	CreateWorkOrder(ctx context.Context, w *WorkOrder) error
}

// QuoteStore is the narrow contract for quote records.
type QuoteStore interface {
	SearchQuotes(ctx context.Context, ownerID string, filter SearchFilter, page Pagination) ([]Quote, int64, error)
	GetQuote(ctx context.Context, id, ownerID string) (*Quote, error)
	CreateQuote(ctx context.Context, q *Quote) error
}

// ChargeStore is the narrow contract for committed charges. Creation happens
// only through billing.PreviewStore's transactional consume.
type ChargeStore interface {
	SearchCharges(ctx context.Context, ownerID string, filter SearchFilter, page Pagination) ([]Charge, int64, error)
	GetCharge(ctx context.Context, id, ownerID string) (*Charge, error)
}

// EntityCounter reports how many entities of a type an owner currently has.
// Consulted by plan-quota checks before any create.
type EntityCounter interface {
	CountEntities(ctx context.Context, ownerID, entityType string) (int64, error)
}

// Stores bundles the business data store contracts for injection.
type Stores struct {
	Customers  CustomerStore
	WorkOrders WorkOrderStore
	Quotes     QuoteStore
	Charges    ChargeStore
	Counter    EntityCounter
}
