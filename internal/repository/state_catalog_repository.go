package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// StateCatalogRepository handles CRUD for the state-definition catalog.
type StateCatalogRepository struct {
	db *database.DB
}

// NewStateCatalogRepository creates a new StateCatalogRepository.
func NewStateCatalogRepository(db *database.DB) *StateCatalogRepository {
	return &StateCatalogRepository{db: db}
}

// Create inserts a definition, assigning the next order_rank within its
// department when rank is zero.
func (r *StateCatalogRepository) Create(ctx context.Context, def *StateDefinition) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if def.OrderRank == 0 {
			rankQuery := `
				SELECT COALESCE(MAX(order_rank), 0) + 1
				FROM state_definitions
				WHERE department_id = $1
			`
			if err := tx.QueryRow(ctx, rankQuery, def.DepartmentID).Scan(&def.OrderRank); err != nil {
				return apperr.Wrap(err, apperr.CodeInternal, "failed to compute state rank")
			}
		}

		query := `
			INSERT INTO state_definitions (department_id, name, order_rank)
			VALUES ($1, $2, $3)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query, def.DepartmentID, def.Name, def.OrderRank).Scan(&def.ID)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to create state definition")
		}
		return nil
	})
}

// GetByID retrieves a definition by primary key.
func (r *StateCatalogRepository) GetByID(ctx context.Context, id int64) (*StateDefinition, error) {
	query := `
		SELECT id, department_id, name, order_rank
		FROM state_definitions
		WHERE id = $1
	`

	def := &StateDefinition{}
	err := r.db.QueryRow(ctx, query, id).Scan(&def.ID, &def.DepartmentID, &def.Name, &def.OrderRank)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("state definition", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get state definition")
	}
	return def, nil
}

// List returns definitions, optionally filtered to one department, ordered
// by department and rank.
func (r *StateCatalogRepository) List(ctx context.Context, departmentID *int64) ([]*StateDefinition, error) {
	query := `
		SELECT id, department_id, name, order_rank
		FROM state_definitions
	`
	args := []any{}
	if departmentID != nil {
		query += ` WHERE department_id = $1`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY department_id, order_rank, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list state definitions")
	}
	defer rows.Close()

	defs := make([]*StateDefinition, 0)
	for rows.Next() {
		def := &StateDefinition{}
		if err := rows.Scan(&def.ID, &def.DepartmentID, &def.Name, &def.OrderRank); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan state definition")
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ExistsByName reports whether the department already has a definition with
// the given name.
func (r *StateCatalogRepository) ExistsByName(ctx context.Context, departmentID int64, name string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM state_definitions
			WHERE department_id = $1 AND name = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, departmentID, name).Scan(&exists); err != nil {
		return false, apperr.Wrap(err, apperr.CodeInternal, "failed to check state name")
	}
	return exists, nil
}

// Rename updates a definition's name.
func (r *StateCatalogRepository) Rename(ctx context.Context, id int64, name string) error {
	query := `UPDATE state_definitions SET name = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, name)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to rename state definition")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("state definition", id)
	}
	return nil
}

// Reorder rewrites the ranks of a department's definitions to follow the
// given id order, 1-based.
func (r *StateCatalogRepository) Reorder(ctx context.Context, departmentID int64, orderedIDs []int64) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE state_definitions
			SET order_rank = $3
			WHERE id = $1 AND department_id = $2
		`
		for i, id := range orderedIDs {
			tag, err := tx.Exec(ctx, query, id, departmentID, i+1)
			if err != nil {
				return apperr.Wrap(err, apperr.CodeInternal, "failed to reorder state definitions")
			}
			if tag.RowsAffected() == 0 {
				return apperr.NotFound("state definition", id)
			}
		}
		return nil
	})
}

// Delete removes a definition. Deleting the active state of some order's
// department is allowed; reconciliation elects a replacement.
func (r *StateCatalogRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM state_definitions WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete state definition")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("state definition", id)
	}
	return nil
}
