package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// OrderStatusRepository handles the overall order-status catalog.
type OrderStatusRepository struct {
	db *database.DB
}

// NewOrderStatusRepository creates a new OrderStatusRepository.
func NewOrderStatusRepository(db *database.DB) *OrderStatusRepository {
	return &OrderStatusRepository{db: db}
}

// Create inserts a status with the next rank.
func (r *OrderStatusRepository) Create(ctx context.Context, status *OrderStatus) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if status.Rank == 0 {
			if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(rank), 0) + 1 FROM order_statuses`).Scan(&status.Rank); err != nil {
				return apperr.Wrap(err, apperr.CodeInternal, "failed to compute status rank")
			}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO order_statuses (name, rank) VALUES ($1, $2) RETURNING id`,
			status.Name, status.Rank).Scan(&status.ID)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to create order status")
		}
		return nil
	})
}

// GetByID retrieves one status.
func (r *OrderStatusRepository) GetByID(ctx context.Context, id int64) (*OrderStatus, error) {
	status := &OrderStatus{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, rank FROM order_statuses WHERE id = $1`, id).
		Scan(&status.ID, &status.Name, &status.Rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order status", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get order status")
	}
	return status, nil
}

// List returns all statuses by rank.
func (r *OrderStatusRepository) List(ctx context.Context) ([]*OrderStatus, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, rank FROM order_statuses ORDER BY rank, id`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list order statuses")
	}
	defer rows.Close()

	statuses := make([]*OrderStatus, 0)
	for rows.Next() {
		status := &OrderStatus{}
		if err := rows.Scan(&status.ID, &status.Name, &status.Rank); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan order status")
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Rename updates a status name.
func (r *OrderStatusRepository) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE order_statuses SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to rename order status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order status", id)
	}
	return nil
}

// Delete removes a status.
func (r *OrderStatusRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM order_statuses WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete order status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order status", id)
	}
	return nil
}
