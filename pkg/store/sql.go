// Package store implements the business data store contracts over
// database/sql. It supports both Postgres and SQLite via standard drivers;
// SQLite is the dev/test default.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/steward/pkg/domain"
)

// SQLStore backs every entity table. One instance implements all of the
// domain store contracts plus billing.PreviewStore.
type SQLStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, clock: time.Now}
}

// WithClock overrides the clock for testing.
func (s *SQLStore) WithClock(clock func() time.Time) *SQLStore {
	s.clock = clock
	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_customers_owner ON customers(owner_id);

CREATE TABLE IF NOT EXISTS work_orders (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	scheduled_for TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_work_orders_owner ON work_orders(owner_id);

CREATE TABLE IF NOT EXISTS quotes (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	title TEXT NOT NULL,
	amount_minor INTEGER NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quotes_owner ON quotes(owner_id);

CREATE TABLE IF NOT EXISTS charges (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	amount_minor INTEGER NOT NULL,
	currency TEXT NOT NULL,
	method TEXT NOT NULL,
	due_date TIMESTAMP NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	preview_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_charges_owner ON charges(owner_id);

CREATE TABLE IF NOT EXISTS charge_previews (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	amount_minor INTEGER NOT NULL,
	currency TEXT NOT NULL,
	method TEXT NOT NULL,
	due_date TIMESTAMP NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	valid BOOLEAN NOT NULL,
	warnings TEXT NOT NULL DEFAULT '',
	errors TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	consumed_at TIMESTAMP
);
`

// Init creates all backing tables.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func normalizePage(page domain.Pagination) domain.Pagination {
	if page.Limit <= 0 || page.Limit > 100 {
		page.Limit = 20
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

// --- customers ---

func (s *SQLStore) SearchCustomers(ctx context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.Customer, int64, error) {
	page = normalizePage(page)
	like := "%" + filter.Query + "%"

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers
		 WHERE owner_id = $1 AND (name LIKE $2 OR email LIKE $2 OR phone LIKE $2)`,
		ownerID, like).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, email, phone, created_at FROM customers
		 WHERE owner_id = $1 AND (name LIKE $2 OR email LIKE $2 OR phone LIKE $2)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		ownerID, like, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) GetCustomer(ctx context.Context, id, ownerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, email, phone, created_at FROM customers
		 WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *SQLStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, owner_id, name, email, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OwnerID, c.Name, c.Email, c.Phone, c.CreatedAt)
	return err
}

// --- work orders ---

func (s *SQLStore) SearchWorkOrders(ctx context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.WorkOrder, int64, error) {
	page = normalizePage(page)
	like := "%" + filter.Query + "%"
	customer := filter.CustomerID

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM work_orders
		 WHERE owner_id = $1 AND title LIKE $2 AND ($3 = '' OR customer_id = $3)`,
		ownerID, like, customer).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, customer_id, title, status, scheduled_for, created_at FROM work_orders
		 WHERE owner_id = $1 AND title LIKE $2 AND ($3 = '' OR customer_id = $3)
		 ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		ownerID, like, customer, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.WorkOrder
	for rows.Next() {
		var w domain.WorkOrder
		var status string
		var scheduled sql.NullTime
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.CustomerID, &w.Title, &status, &scheduled, &w.CreatedAt); err != nil {
			return nil, 0, err
		}
		w.Status = domain.WorkOrderStatus(status)
		if scheduled.Valid {
			t := scheduled.Time
			w.ScheduledFor = &t
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) GetWorkOrder(ctx context.Context, id, ownerID string) (*domain.WorkOrder, error) {
	var w domain.WorkOrder
	var status string
	var scheduled sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, customer_id, title, status, scheduled_for, created_at FROM work_orders
		 WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&w.ID, &w.OwnerID, &w.CustomerID, &w.Title, &status, &scheduled, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Status = domain.WorkOrderStatus(status)
	if scheduled.Valid {
		t := scheduled.Time
		w.ScheduledFor = &t
	}
	return &w, nil
}

func (s *SQLStore) CreateWorkOrder(ctx context.Context, w *domain.WorkOrder) error {
	var scheduled any
	if w.ScheduledFor != nil {
		scheduled = *w.ScheduledFor
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_orders (id, owner_id, customer_id, title, status, scheduled_for, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.OwnerID, w.CustomerID, w.Title, string(w.Status), scheduled, w.CreatedAt)
	return err
}

// --- quotes ---

func (s *SQLStore) SearchQuotes(ctx context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.Quote, int64, error) {
	page = normalizePage(page)
	like := "%" + filter.Query + "%"
	customer := filter.CustomerID

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quotes
		 WHERE owner_id = $1 AND title LIKE $2 AND ($3 = '' OR customer_id = $3)`,
		ownerID, like, customer).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, customer_id, title, amount_minor, currency, status, created_at FROM quotes
		 WHERE owner_id = $1 AND title LIKE $2 AND ($3 = '' OR customer_id = $3)
		 ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		ownerID, like, customer, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Quote
	for rows.Next() {
		var q domain.Quote
		var status string
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.CustomerID, &q.Title, &q.AmountMinor, &q.Currency, &status, &q.CreatedAt); err != nil {
			return nil, 0, err
		}
		q.Status = domain.QuoteStatus(status)
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) GetQuote(ctx context.Context, id, ownerID string) (*domain.Quote, error) {
	var q domain.Quote
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, customer_id, title, amount_minor, currency, status, created_at FROM quotes
		 WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&q.ID, &q.OwnerID, &q.CustomerID, &q.Title, &q.AmountMinor, &q.Currency, &status, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	q.Status = domain.QuoteStatus(status)
	return &q, nil
}

func (s *SQLStore) CreateQuote(ctx context.Context, q *domain.Quote) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (id, owner_id, customer_id, title, amount_minor, currency, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.OwnerID, q.CustomerID, q.Title, q.AmountMinor, q.Currency, string(q.Status), q.CreatedAt)
	return err
}

// --- charges ---

func (s *SQLStore) SearchCharges(ctx context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.Charge, int64, error) {
	page = normalizePage(page)
	customer := filter.CustomerID

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM charges
		 WHERE owner_id = $1 AND ($2 = '' OR customer_id = $2)`,
		ownerID, customer).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, customer_id, amount_minor, currency, method, due_date, description, preview_id, created_at
		 FROM charges
		 WHERE owner_id = $1 AND ($2 = '' OR customer_id = $2)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		ownerID, customer, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Charge
	for rows.Next() {
		var c domain.Charge
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.CustomerID, &c.AmountMinor, &c.Currency,
			&c.Method, &c.DueDate, &c.Description, &c.PreviewID, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) GetCharge(ctx context.Context, id, ownerID string) (*domain.Charge, error) {
	var c domain.Charge
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, customer_id, amount_minor, currency, method, due_date, description, preview_id, created_at
		 FROM charges WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&c.ID, &c.OwnerID, &c.CustomerID, &c.AmountMinor, &c.Currency,
			&c.Method, &c.DueDate, &c.Description, &c.PreviewID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// --- counter ---

var countQueries = map[string]string{
	"customer":  `SELECT COUNT(*) FROM customers WHERE owner_id = $1`,
	"workorder": `SELECT COUNT(*) FROM work_orders WHERE owner_id = $1`,
	"quote":     `SELECT COUNT(*) FROM quotes WHERE owner_id = $1`,
	"charge":    `SELECT COUNT(*) FROM charges WHERE owner_id = $1`,
}

func (s *SQLStore) CountEntities(ctx context.Context, ownerID, entityType string) (int64, error) {
	query, ok := countQueries[entityType]
	if !ok {
		return 0, fmt.Errorf("store: unknown entity type %q", entityType)
	}
	var n int64
	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&n)
	return n, err
}

// Stores bundles the SQL store into the domain contract set.
func (s *SQLStore) Stores() domain.Stores {
	return domain.Stores{
		Customers:  s,
		WorkOrders: s,
		Quotes:     s,
		Charges:    s,
		Counter:    s,
	}
}
