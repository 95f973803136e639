// Package memstore is an in-memory implementation of the catalog, cart and
// delivery stores, used to run the store handlers without Postgres.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joao-fontenele/waterflow/internal/domain"
)

type cartEntry struct {
	productID string
	quantity  int
	addedAt   time.Time
}

type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	carts    map[string][]cartEntry
	requests map[string]domain.DeliveryRequest
	order    []string
	events   []domain.DeliveryEvent
	err      error
}

func New(products ...domain.Product) *Store {
	s := &Store{
		products: map[string]domain.Product{},
		carts:    map[string][]cartEntry{},
		requests: map[string]domain.DeliveryRequest{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// FailWith makes every subsequent call return err until it is called with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

func (s *Store) ListAll(_ context.Context, category string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Product{}
	for _, p := range s.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if a.Category != b.Category {
			return strings.Compare(a.Category, b.Category)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) List(_ context.Context, customerID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	lines := []domain.CartLine{}
	for _, e := range s.carts[customerID] {
		line := domain.CartLine{ProductID: e.productID, Quantity: e.quantity, AddedAt: e.addedAt}
		if p, ok := s.products[e.productID]; ok {
			line.Product = &p
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Store) Add(_ context.Context, customerID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.products[productID]; !ok {
		return domain.ErrNotFound
	}
	entries := s.carts[customerID]
	if i := slices.IndexFunc(entries, func(e cartEntry) bool { return e.productID == productID }); i >= 0 {
		entries[i].quantity += quantity
		return nil
	}
	s.carts[customerID] = append(entries, cartEntry{productID: productID, quantity: quantity, addedAt: time.Now().UTC()})
	return nil
}

func (s *Store) Remove(_ context.Context, customerID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.carts[customerID] = slices.DeleteFunc(s.carts[customerID], func(e cartEntry) bool { return e.productID == productID })
	return nil
}

func (s *Store) Clear(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.carts, customerID)
	return nil
}

// Deliveries exposes the delivery request half of the store, whose method
// names overlap with the cart ones.
func (s *Store) Deliveries() *Deliveries {
	return &Deliveries{s: s}
}

type Deliveries struct {
	s *Store
}

func (d *Deliveries) Create(_ context.Context, req *domain.DeliveryRequest, event domain.DeliveryEvent) error {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	p, ok := s.products[req.ProductID]
	if !ok {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, req.ProductID)
	}
	req.ProductName = p.Name
	req.UnitPrice = p.Price
	s.requests[req.ID] = *req
	s.order = append(s.order, req.ID)
	s.events = append(s.events, event)
	return nil
}

func (d *Deliveries) GetByID(_ context.Context, id string) (*domain.DeliveryRequest, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// List returns matching requests newest first.
func (d *Deliveries) List(_ context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.DeliveryRequest{}
	for _, id := range slices.Backward(s.order) {
		req := s.requests[id]
		if filter.CustomerID != "" && req.CustomerID != filter.CustomerID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, req.Status) {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (d *Deliveries) UpdateStatus(_ context.Context, id string, status domain.Status, event domain.DeliveryEvent) (bool, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	req, ok := s.requests[id]
	if !ok || req.Status != domain.StatusPending {
		return false, nil
	}
	req.Status = status
	req.UpdatedAt = event.OccurredAt
	s.requests[id] = req
	s.events = append(s.events, event)
	return true, nil
}

func (d *Deliveries) UpdateStage(_ context.Context, id string, from, to domain.Stage, event domain.DeliveryEvent) (bool, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	req, ok := s.requests[id]
	if !ok || req.Stage != from || req.Status != domain.StatusApproved {
		return false, nil
	}
	req.Stage = to
	req.UpdatedAt = event.OccurredAt
	s.requests[id] = req
	s.events = append(s.events, event)
	return true, nil
}

func (d *Deliveries) Events(_ context.Context, id string) ([]domain.DeliveryEvent, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.DeliveryEvent{}
	for _, e := range s.events {
		if e.DeliveryID == id {
			out = append(out, e)
		}
	}
	return out, nil
}
