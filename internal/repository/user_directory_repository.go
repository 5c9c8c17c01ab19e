package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// UserDirectoryRepository reads the user directory: identity, role, assigned
// department, device token and email address.
type UserDirectoryRepository struct {
	db *database.DB
}

// NewUserDirectoryRepository creates a new UserDirectoryRepository.
func NewUserDirectoryRepository(db *database.DB) *UserDirectoryRepository {
	return &UserDirectoryRepository{db: db}
}

const userColumns = `id, name, email, role, department_id, device_token`

// GetByID retrieves one user.
func (r *UserDirectoryRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get user")
	}
	return user, nil
}

// AllIDs returns every user id, used by the lazy preference materialization.
func (r *UserDirectoryRepository) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list user ids")
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan user id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ByDepartment returns the users whose resource is assigned to a department.
func (r *UserDirectoryRepository) ByDepartment(ctx context.Context, departmentID int64) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE department_id = $1 ORDER BY id`
	return r.queryUsers(ctx, query, departmentID)
}

// ByRole returns the users holding a role.
func (r *UserDirectoryRepository) ByRole(ctx context.Context, role string) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`
	return r.queryUsers(ctx, query, role)
}

// SetDeviceToken registers or replaces a user's push device token. A nil
// token clears the registration.
func (r *UserDirectoryRepository) SetDeviceToken(ctx context.Context, userID int64, token *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET device_token = $2 WHERE id = $1`, userID, token)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to set device token")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", userID)
	}
	return nil
}

func (r *UserDirectoryRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to query users")
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan user")
		}
		users = append(users, user)
	}
	return users, nil
}

type userScanner interface {
	Scan(dest ...any) error
}

func scanUser(row userScanner) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.DepartmentID,
		&user.DeviceToken,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
