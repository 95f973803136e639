package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/joao-fontenele/waterflow/internal/domain"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = `id, customer_id, product_id, product_name, quantity, unit_price,
	address, status, stage, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.DeliveryRequest, error) {
	req := &domain.DeliveryRequest{}
	err := row.Scan(&req.ID, &req.CustomerID, &req.ProductID, &req.ProductName, &req.Quantity,
		&req.UnitPrice, &req.Address, &req.Status, &req.Stage, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Create fills the product name and unit price from the catalog row and
// persists the request together with its creation event.
func (r *DeliveryRepository) Create(ctx context.Context, req *domain.DeliveryRequest, event domain.DeliveryEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		SELECT name, price FROM products WHERE id = $1
	`, req.ProductID).Scan(&req.ProductName, &req.UnitPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, req.ProductID)
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO delivery_requests (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.CustomerID, req.ProductID, req.ProductName, req.Quantity, req.UnitPrice,
		req.Address, req.Status, req.Stage, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	req, err := scanDelivery(r.db.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM delivery_requests
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

func (r *DeliveryRepository) List(ctx context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error) {
	var (
		where []string
		args  []any
	)
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + deliveryColumns + ` FROM delivery_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	requests := []domain.DeliveryRequest{}
	for rows.Next() {
		req, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

// UpdateStatus moves a pending request to status. It reports false when the
// request was not pending anymore, leaving it untouched.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, event domain.DeliveryEvent) (bool, error) {
	return r.transition(ctx, event, `
		UPDATE delivery_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'
	`, status, event.OccurredAt, id)
}

// UpdateStage moves an approved request from one stage to the next. It
// reports false when the request is not at from or not approved.
func (r *DeliveryRepository) UpdateStage(ctx context.Context, id string, from, to domain.Stage, event domain.DeliveryEvent) (bool, error) {
	return r.transition(ctx, event, `
		UPDATE delivery_requests SET stage = $1, updated_at = $2
		WHERE id = $3 AND stage = $4 AND status = 'approved'
	`, to, event.OccurredAt, id, from)
}

func (r *DeliveryRepository) transition(ctx context.Context, event domain.DeliveryEvent, query string, args ...any) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *DeliveryRepository) Events(ctx context.Context, id string) ([]domain.DeliveryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, delivery_id, customer_id, type, from_value, to_value, occurred_at
		FROM delivery_events
		WHERE delivery_id = $1
		ORDER BY occurred_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	events := []domain.DeliveryEvent{}
	for rows.Next() {
		var e domain.DeliveryEvent
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.CustomerID, &e.Type, &e.From, &e.To, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, e domain.DeliveryEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_events (id, delivery_id, customer_id, type, from_value, to_value, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.DeliveryID, e.CustomerID, e.Type, e.From, e.To, e.OccurredAt)
	return err
}
