package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// DepartmentRepository handles CRUD for departments.
type DepartmentRepository struct {
	db *database.DB
}

// NewDepartmentRepository creates a new DepartmentRepository.
func NewDepartmentRepository(db *database.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// Create inserts a new department.
func (r *DepartmentRepository) Create(ctx context.Context, dept *Department) error {
	query := `
		INSERT INTO departments (name)
		VALUES ($1)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, dept.Name).Scan(&dept.ID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create department")
	}
	return nil
}

// GetByID retrieves a department by primary key.
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*Department, error) {
	query := `SELECT id, name FROM departments WHERE id = $1`

	dept := &Department{}
	err := r.db.QueryRow(ctx, query, id).Scan(&dept.ID, &dept.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("department", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get department")
	}
	return dept, nil
}

// List returns all departments ordered by id.
func (r *DepartmentRepository) List(ctx context.Context) ([]*Department, error) {
	query := `SELECT id, name FROM departments ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list departments")
	}
	defer rows.Close()

	depts := make([]*Department, 0)
	for rows.Next() {
		dept := &Department{}
		if err := rows.Scan(&dept.ID, &dept.Name); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan department")
		}
		depts = append(depts, dept)
	}
	return depts, nil
}

// Rename updates a department's name.
func (r *DepartmentRepository) Rename(ctx context.Context, id int64, name string) error {
	query := `UPDATE departments SET name = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, name)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to rename department")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("department", id)
	}
	return nil
}

// Delete removes a department and cascades its state definitions in one
// transaction. Order instances that referenced those definitions are pruned
// by the reconciliation pass the caller triggers afterwards.
func (r *DepartmentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM state_definitions WHERE department_id = $1`, id); err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to delete department states")
		}
		tag, err := tx.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to delete department")
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("department", id)
		}
		return nil
	})
}
