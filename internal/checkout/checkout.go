// Package checkout converts a reconciled cart into delivery requests, one
// per line, created sequentially in cart order.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/waterflow/internal/cart"
	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
)

type Creator interface {
	CreateDeliveryRequest(ctx context.Context, sess session.Session, productID string, quantity int, address string) (*domain.DeliveryRequest, error)
}

type Result struct {
	Requests []domain.DeliveryRequest
}

func (r Result) IDs() []string {
	ids := make([]string, 0, len(r.Requests))
	for _, req := range r.Requests {
		ids = append(ids, req.ID)
	}
	return ids
}

// Error reports a checkout that stopped part way. Requests listed in Created
// were durably created and are not rolled back; the cart is left untouched.
type Error struct {
	Created []string
	Failed  string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checkout failed at product %s after %d created: %v", e.Failed, len(e.Created), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Builder struct {
	creator Creator
	logger  *slog.Logger
}

func NewBuilder(creator Creator, logger *slog.Logger) *Builder {
	return &Builder{creator: creator, logger: logger}
}

// Checkout creates one delivery request per cart line. The cart is cleared
// only after every line succeeded.
func (b *Builder) Checkout(ctx context.Context, c *cart.Cart, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &domain.ValidationError{Field: "address", Reason: "is required"}
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	lines := c.Lines()
	if len(lines) == 0 {
		return nil, &domain.ValidationError{Field: "cart", Reason: "is empty"}
	}

	sess := c.Session()
	result := &Result{Requests: make([]domain.DeliveryRequest, 0, len(lines))}
	for _, line := range lines {
		req, err := b.creator.CreateDeliveryRequest(ctx, sess, line.ProductID, line.Quantity, address)
		if err != nil {
			b.logger.Warn("checkout stopped", "customer_id", sess.CustomerID, "product_id", line.ProductID,
				"created", len(result.Requests), "error", err)
			return nil, &Error{Created: result.IDs(), Failed: line.ProductID, Err: err}
		}
		result.Requests = append(result.Requests, *req)
	}

	b.logger.Info("checkout complete", "customer_id", sess.CustomerID, "requests", len(result.Requests))

	if err := c.Clear(ctx); err != nil {
		return result, fmt.Errorf("delivery requests created but cart not cleared: %w", err)
	}

	return result, nil
}
