// Package cart keeps a customer's local cart snapshot reconciled with the
// store. The store is authoritative: every mutation is followed by a full
// re-read, and the snapshot only changes when that read succeeds.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
)

type Store interface {
	GetCart(ctx context.Context, sess session.Session) ([]domain.CartLine, error)
	AddToCart(ctx context.Context, sess session.Session, productID string, quantity int) ([]domain.CartLine, error)
	RemoveFromCart(ctx context.Context, sess session.Session, productID string) error
	ClearCart(ctx context.Context, sess session.Session) error
}

type Cart struct {
	store   Store
	session session.Session
	logger  *slog.Logger

	mu    sync.Mutex
	lines []domain.CartLine
}

func New(store Store, sess session.Session, logger *slog.Logger) *Cart {
	return &Cart{
		store:   store,
		session: sess,
		logger:  logger,
	}
}

func (c *Cart) Session() session.Session {
	return c.session
}

// Add merges quantity into the product's line. quantity must be at least 1.
func (c *Cart) Add(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return &domain.ValidationError{Field: "product_id", Reason: "is required"}
	}
	if quantity < 1 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.AddToCart(ctx, c.session, productID, quantity); err != nil {
		return fmt.Errorf("add %s to cart: %w", productID, err)
	}

	c.logger.Debug("cart item added", "customer_id", c.session.CustomerID, "product_id", productID, "quantity", quantity)
	return c.refresh(ctx)
}

// Remove drops the whole line for productID. Removing an absent product is
// not an error, and an empty productID names no line so nothing is sent.
func (c *Cart) Remove(ctx context.Context, productID string) error {
	if productID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.RemoveFromCart(ctx, c.session, productID); err != nil {
		return fmt.Errorf("remove %s from cart: %w", productID, err)
	}

	return c.refresh(ctx)
}

func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.ClearCart(ctx, c.session); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	c.lines = nil
	return nil
}

func (c *Cart) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.refresh(ctx)
}

func (c *Cart) refresh(ctx context.Context) error {
	lines, err := c.store.GetCart(ctx, c.session)
	if err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	c.lines = lines
	return nil
}

// Lines returns a copy of the snapshot in store order.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.lines)
}

// Total sums the snapshot. Lines whose product did not resolve count as 0.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.lines) == 0
}
