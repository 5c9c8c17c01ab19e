package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// InboxStore is the notification repository surface the inbox uses.
type InboxStore interface {
	ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*repository.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
}

// DeviceTokenStore updates a user's push registration.
type DeviceTokenStore interface {
	SetDeviceToken(ctx context.Context, userID int64, token *string) error
}

// InboxService serves a user's persisted notification feed and push
// registration.
type InboxService struct {
	inbox  InboxStore
	tokens DeviceTokenStore
	users  UserDirectory
	log    zerolog.Logger
}

func NewInboxService(inbox InboxStore, tokens DeviceTokenStore, users UserDirectory, log zerolog.Logger) *InboxService {
	return &InboxService{
		inbox:  inbox,
		tokens: tokens,
		users:  users,
		log:    log.With().Str("component", "inbox_service").Logger(),
	}
}

func (s *InboxService) List(ctx context.Context, userID int64, unreadOnly bool) ([]*repository.Notification, error) {
	return s.inbox.ListForUser(ctx, userID, unreadOnly)
}

// MarkRead flags one of the user's notifications as read. Another user's
// notification is not found, not forbidden, to avoid leaking ids.
func (s *InboxService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.inbox.MarkRead(ctx, id, userID)
}

// RegisterDeviceToken stores the push token for a user. An empty token
// clears the registration.
func (s *InboxService) RegisterDeviceToken(ctx context.Context, userID int64, token string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	var t *string
	if token != "" {
		t = &token
	}
	if err := s.tokens.SetDeviceToken(ctx, userID, t); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", userID).Bool("cleared", t == nil).Msg("device token updated")
	return nil
}

// RuleAdminStore is the rule repository surface the admin service uses.
type RuleAdminStore interface {
	Create(ctx context.Context, rule *repository.RecipientRule) error
	List(ctx context.Context) ([]*repository.RecipientRule, error)
	Delete(ctx context.Context, id int64) error
}

// RuleService administers recipient rules.
type RuleService struct {
	rules RuleAdminStore
	log   zerolog.Logger
}

func NewRuleService(rules RuleAdminStore, log zerolog.Logger) *RuleService {
	return &RuleService{
		rules: rules,
		log:   log.With().Str("component", "rule_service").Logger(),
	}
}

type CreateRuleRequest struct {
	Category     string  `json:"category"`
	Kind         string  `json:"kind"`
	UserID       *int64  `json:"user_id"`
	DepartmentID *int64  `json:"department_id"`
	Role         *string `json:"role"`
	OrderID      *int64  `json:"order_id"`
}

// CreateRule validates that the rule carries the target its kind requires.
func (s *RuleService) CreateRule(ctx context.Context, req CreateRuleRequest) (*repository.RecipientRule, error) {
	if req.Category == "" {
		return nil, apperr.InvalidInput("category", "must not be empty")
	}
	kind := repository.RuleKind(req.Kind)
	switch kind {
	case repository.RuleByUser:
		if req.UserID == nil {
			return nil, apperr.InvalidInput("user_id", "required for user rules")
		}
	case repository.RuleByDepartment:
		if req.DepartmentID == nil {
			return nil, apperr.InvalidInput("department_id", "required for department rules")
		}
	case repository.RuleByRole:
		if req.Role == nil || *req.Role == "" {
			return nil, apperr.InvalidInput("role", "required for role rules")
		}
	default:
		return nil, apperr.InvalidInput("kind", "must be one of user, department, role")
	}

	rule := &repository.RecipientRule{
		Category:     req.Category,
		Kind:         kind,
		UserID:       req.UserID,
		DepartmentID: req.DepartmentID,
		Role:         req.Role,
		OrderID:      req.OrderID,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.log.Info().Int64("rule_id", rule.ID).Str("category", rule.Category).Str("kind", string(rule.Kind)).Msg("recipient rule created")
	return rule, nil
}

func (s *RuleService) ListRules(ctx context.Context) ([]*repository.RecipientRule, error) {
	return s.rules.List(ctx)
}

func (s *RuleService) DeleteRule(ctx context.Context, id int64) error {
	return s.rules.Delete(ctx, id)
}
