package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// RuleStore loads recipient rules for a category.
type RuleStore interface {
	ForCategory(ctx context.Context, category string, orderID *int64) ([]*repository.RecipientRule, error)
}

// UserDirectory answers who exists and how to reach them.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*repository.User, error)
	AllIDs(ctx context.Context) ([]int64, error)
	ByDepartment(ctx context.Context, departmentID int64) ([]*repository.User, error)
	ByRole(ctx context.Context, role string) ([]*repository.User, error)
}

// RecipientResolver expands the recipient rules of a category into a
// deduplicated set of user ids.
type RecipientResolver struct {
	rules RuleStore
	users UserDirectory
	log   zerolog.Logger
}

func NewRecipientResolver(rules RuleStore, users UserDirectory, log zerolog.Logger) *RecipientResolver {
	return &RecipientResolver{
		rules: rules,
		users: users,
		log:   log.With().Str("component", "recipient_resolver").Logger(),
	}
}

// Resolve expands every rule matching the category and context. Department
// rules outside the event's department and role rules are honored only when
// the context asks for the global audience. Malformed rules are skipped with
// a warning.
func (r *RecipientResolver) Resolve(ctx context.Context, category string, fctx FanoutContext) ([]int64, error) {
	rules, err := r.rules.ForCategory(ctx, category, fctx.OrderID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var out []int64
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, rule := range rules {
		switch rule.Kind {
		case repository.RuleByUser:
			if rule.UserID == nil {
				r.log.Warn().Int64("rule_id", rule.ID).Msg("user rule without user id, skipping")
				continue
			}
			add(*rule.UserID)

		case repository.RuleByDepartment:
			if rule.DepartmentID == nil {
				r.log.Warn().Int64("rule_id", rule.ID).Msg("department rule without department id, skipping")
				continue
			}
			if !fctx.IncludeGlobal && (fctx.DepartmentID == nil || *fctx.DepartmentID != *rule.DepartmentID) {
				continue
			}
			users, err := r.users.ByDepartment(ctx, *rule.DepartmentID)
			if err != nil {
				return nil, err
			}
			for _, u := range users {
				add(u.ID)
			}

		case repository.RuleByRole:
			if rule.Role == nil {
				r.log.Warn().Int64("rule_id", rule.ID).Msg("role rule without role, skipping")
				continue
			}
			if !fctx.IncludeGlobal {
				continue
			}
			users, err := r.users.ByRole(ctx, *rule.Role)
			if err != nil {
				return nil, err
			}
			for _, u := range users {
				add(u.ID)
			}

		default:
			r.log.Warn().Int64("rule_id", rule.ID).Str("kind", string(rule.Kind)).Msg("unknown rule kind, skipping")
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
