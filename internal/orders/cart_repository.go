package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/joao-fontenele/waterflow/internal/domain"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// List returns the customer's lines in insertion order. Lines whose product
// no longer exists are kept with a nil Product.
func (r *CartRepository) List(ctx context.Context, customerID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, c.quantity, c.added_at,
		       p.id, p.name, p.price, p.available, p.category
		FROM cart_items c
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.customer_id = $1
		ORDER BY c.position
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var (
			line      domain.CartLine
			id, name  sql.NullString
			price     sql.NullInt64
			available sql.NullInt64
			category  sql.NullString
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.AddedAt,
			&id, &name, &price, &available, &category); err != nil {
			return nil, err
		}
		if id.Valid {
			line.Product = &domain.Product{
				ID:        id.String,
				Name:      name.String,
				Price:     price.Int64,
				Available: int(available.Int64),
				Category:  category.String,
			}
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Add merges quantity into an existing line for the same product.
func (r *CartRepository) Add(ctx context.Context, customerID, productID string, quantity int) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (customer_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, customerID, productID, quantity, time.Now().UTC())
	return err
}

func (r *CartRepository) Remove(ctx context.Context, customerID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE customer_id = $1 AND product_id = $2
	`, customerID, productID)
	return err
}

func (r *CartRepository) Clear(ctx context.Context, customerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID)
	return err
}
