package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/domain"
)

// MemoryStore is the in-process implementation of the business data
// contracts. Used in tests and in the dev profile before a database is
// configured.
type MemoryStore struct {
	mu         sync.RWMutex
	customers  map[string]domain.Customer
	workOrders map[string]domain.WorkOrder
	quotes     map[string]domain.Quote
	charges    map[string]domain.Charge
	previews   map[string]billing.Preview
	clock      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:  make(map[string]domain.Customer),
		workOrders: make(map[string]domain.WorkOrder),
		quotes:     make(map[string]domain.Quote),
		charges:    make(map[string]domain.Charge),
		previews:   make(map[string]billing.Preview),
		clock:      time.Now,
	}
}

// WithClock overrides the clock for testing.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func matches(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page domain.Pagination) []T {
	page = normalizePage(page)
	if page.Offset >= len(items) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

// --- customers ---

func (s *MemoryStore) SearchCustomers(_ context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.Customer, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Customer
	for _, c := range s.customers {
		if c.OwnerID == ownerID && matches(filter.Query, c.Name, c.Email, c.Phone) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (s *MemoryStore) GetCustomer(_ context.Context, id, ownerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok || c.OwnerID != ownerID {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) CreateCustomer(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = *c
	return nil
}

// --- work orders ---

func (s *MemoryStore) SearchWorkOrders(_ context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.WorkOrder, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WorkOrder
	for _, w := range s.workOrders {
		if w.OwnerID != ownerID {
			continue
		}
		if filter.CustomerID != "" && w.CustomerID != filter.CustomerID {
			continue
		}
		if matches(filter.Query, w.Title) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (s *MemoryStore) GetWorkOrder(_ context.Context, id, ownerID string) (*domain.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workOrders[id]
	if !ok || w.OwnerID != ownerID {
		return nil, nil
	}
	return &w, nil
}

func (s *MemoryStore) CreateWorkOrder(_ context.Context, w *domain.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workOrders[w.ID] = *w
	return nil
}

// --- quotes ---

func (s *MemoryStore) SearchQuotes(_ context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.Quote, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Quote
	for _, q := range s.quotes {
		if q.OwnerID != ownerID {
			continue
		}
		if filter.CustomerID != "" && q.CustomerID != filter.CustomerID {
			continue
		}
		if matches(filter.Query, q.Title) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (s *MemoryStore) GetQuote(_ context.Context, id, ownerID string) (*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok || q.OwnerID != ownerID {
		return nil, nil
	}
	return &q, nil
}

func (s *MemoryStore) CreateQuote(_ context.Context, q *domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID] = *q
	return nil
}

// --- charges ---

func (s *MemoryStore) SearchCharges(_ context.Context, ownerID string, filter domain.SearchFilter, page domain.Pagination) ([]domain.Charge, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Charge
	for _, c := range s.charges {
		if c.OwnerID != ownerID {
			continue
		}
		if filter.CustomerID != "" && c.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (s *MemoryStore) GetCharge(_ context.Context, id, ownerID string) (*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charges[id]
	if !ok || c.OwnerID != ownerID {
		return nil, nil
	}
	return &c, nil
}

// --- counter ---

func (s *MemoryStore) CountEntities(_ context.Context, ownerID, entityType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	switch entityType {
	case "customer":
		for _, c := range s.customers {
			if c.OwnerID == ownerID {
				n++
			}
		}
	case "workorder":
		for _, w := range s.workOrders {
			if w.OwnerID == ownerID {
				n++
			}
		}
	case "quote":
		for _, q := range s.quotes {
			if q.OwnerID == ownerID {
				n++
			}
		}
	case "charge":
		for _, c := range s.charges {
			if c.OwnerID == ownerID {
				n++
			}
		}
	}
	return n, nil
}

// --- previews ---

func (s *MemoryStore) CreatePreview(_ context.Context, p *billing.Preview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPreview(_ context.Context, id string) (*billing.Preview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.previews[id]
	if !ok {
		return nil, billing.ErrPreviewNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ConsumePreviewAndCreateCharge(_ context.Context, previewID string, charge *domain.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.previews[previewID]
	if !ok {
		return billing.ErrPreviewNotFound
	}
	if p.ConsumedAt != nil {
		return billing.ErrPreviewConsumed
	}
	now := s.clock().UTC()
	p.ConsumedAt = &now
	s.previews[previewID] = p
	s.charges[charge.ID] = *charge
	return nil
}

// Stores bundles the memory store into the domain contract set.
func (s *MemoryStore) Stores() domain.Stores {
	return domain.Stores{
		Customers:  s,
		WorkOrders: s,
		Quotes:     s,
		Charges:    s,
		Counter:    s,
	}
}
