package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// OrderRepository handles order data operations, including the embedded
// progress-state collection stored as a JSON document column.
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order with its seeded progress states.
func (r *OrderRepository) Create(ctx context.Context, order *Order) error {
	statesJSON, err := json.Marshal(order.ProgressStates)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal progress states")
	}

	query := `
		INSERT INTO orders (number, machine_type, description, delivery_date,
		                    client, overall_status_id, progress_states)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		order.Number,
		order.MachineType,
		order.Description,
		order.DeliveryDate,
		order.Client,
		order.OverallStatusID,
		statesJSON,
	).Scan(&order.ID, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create order")
	}
	return nil
}

// GetByID retrieves an order with its parsed progress states.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	query := `
		SELECT id, number, machine_type, description, delivery_date,
		       client, overall_status_id, progress_states, version,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	return order, err
}

// List returns all orders with parsed progress states, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]*Order, error) {
	query := `
		SELECT id, number, machine_type, description, delivery_date,
		       client, overall_status_id, progress_states, version,
		       created_at, updated_at
		FROM orders
		ORDER BY id DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list orders")
	}
	defer rows.Close()

	orders := make([]*Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// IDs returns every order id. The reconciliation sweep iterates this list so
// a single corrupt document cannot abort the whole pass.
func (r *OrderRepository) IDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM orders ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list order ids")
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan order id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateProgressStates persists the whole progress-state collection in one
// write, guarded by the optimistic version read alongside it. A version
// mismatch returns Conflict so the caller can re-read and retry.
func (r *OrderRepository) UpdateProgressStates(ctx context.Context, id int64, states []ProgressState, expectedVersion int64) error {
	statesJSON, err := json.Marshal(states)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal progress states")
	}

	query := `
		UPDATE orders
		SET progress_states = $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
	`

	tag, err := r.db.Exec(ctx, query, id, expectedVersion, statesJSON)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update progress states")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from a lost version race.
		var exists bool
		if scanErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); scanErr == nil && !exists {
			return apperr.NotFound("order", id)
		}
		return apperr.Conflict(fmt.Sprintf("order %d was modified concurrently", id))
	}
	return nil
}

// UpdateHeader updates the order's descriptive fields, leaving the embedded
// progress states untouched.
func (r *OrderRepository) UpdateHeader(ctx context.Context, order *Order) error {
	query := `
		UPDATE orders
		SET number = $2,
		    machine_type = $3,
		    description = $4,
		    delivery_date = $5,
		    client = $6,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		order.ID,
		order.Number,
		order.MachineType,
		order.Description,
		order.DeliveryDate,
		order.Client,
	)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order", order.ID)
	}
	return nil
}

// SetOverallStatus updates the order's overall status. A nil statusID
// clears the assignment.
func (r *OrderRepository) SetOverallStatus(ctx context.Context, id int64, statusID *int64) error {
	query := `
		UPDATE orders
		SET overall_status_id = $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, statusID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to set order status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

// Delete removes an order. The embedded document goes with the row.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete order")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row orderScanner) (*Order, error) {
	order := &Order{}
	var statesJSON []byte

	err := row.Scan(
		&order.ID,
		&order.Number,
		&order.MachineType,
		&order.Description,
		&order.DeliveryDate,
		&order.Client,
		&order.OverallStatusID,
		&statesJSON,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(statesJSON) > 0 {
		if err := json.Unmarshal(statesJSON, &order.ProgressStates); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal,
				fmt.Sprintf("malformed progress states on order %d", order.ID))
		}
	}
	return order, nil
}
