package repository

import (
	"context"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/database"
)

// RecipientRuleRepository handles CRUD for recipient rules.
type RecipientRuleRepository struct {
	db *database.DB
}

// NewRecipientRuleRepository creates a new RecipientRuleRepository.
func NewRecipientRuleRepository(db *database.DB) *RecipientRuleRepository {
	return &RecipientRuleRepository{db: db}
}

// Create inserts a rule.
func (r *RecipientRuleRepository) Create(ctx context.Context, rule *RecipientRule) error {
	query := `
		INSERT INTO recipient_rules (category, kind, user_id, department_id, role, order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		rule.Category,
		rule.Kind,
		rule.UserID,
		rule.DepartmentID,
		rule.Role,
		rule.OrderID,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create recipient rule")
	}
	return nil
}

// List returns all rules, most specific categories together.
func (r *RecipientRuleRepository) List(ctx context.Context) ([]*RecipientRule, error) {
	query := `
		SELECT id, category, kind, user_id, department_id, role, order_id, created_at
		FROM recipient_rules
		ORDER BY category, id
	`
	return r.queryRules(ctx, query)
}

// ForCategory returns the rules that can apply to one fan-out call: rules of
// the category that are global (order_id null) or scoped to the given order.
func (r *RecipientRuleRepository) ForCategory(ctx context.Context, category string, orderID *int64) ([]*RecipientRule, error) {
	query := `
		SELECT id, category, kind, user_id, department_id, role, order_id, created_at
		FROM recipient_rules
		WHERE category = $1
		  AND (order_id IS NULL OR order_id = $2)
		ORDER BY id
	`
	return r.queryRules(ctx, query, category, orderID)
}

// Delete removes a rule.
func (r *RecipientRuleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recipient_rules WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete recipient rule")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("recipient rule", id)
	}
	return nil
}

func (r *RecipientRuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]*RecipientRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to query recipient rules")
	}
	defer rows.Close()

	rules := make([]*RecipientRule, 0)
	for rows.Next() {
		rule := &RecipientRule{}
		err := rows.Scan(
			&rule.ID,
			&rule.Category,
			&rule.Kind,
			&rule.UserID,
			&rule.DepartmentID,
			&rule.Role,
			&rule.OrderID,
			&rule.CreatedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan recipient rule")
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
