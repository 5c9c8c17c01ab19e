package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// CatalogStore is the catalog repository surface the admin service uses.
type CatalogStore interface {
	Create(ctx context.Context, def *repository.StateDefinition) error
	GetByID(ctx context.Context, id int64) (*repository.StateDefinition, error)
	List(ctx context.Context, departmentID *int64) ([]*repository.StateDefinition, error)
	ExistsByName(ctx context.Context, departmentID int64, name string) (bool, error)
	Rename(ctx context.Context, id int64, name string) error
	Reorder(ctx context.Context, departmentID int64, orderedIDs []int64) error
	Delete(ctx context.Context, id int64) error
}

// DepartmentStore is the department repository surface the admin service uses.
type DepartmentStore interface {
	Create(ctx context.Context, dept *repository.Department) error
	GetByID(ctx context.Context, id int64) (*repository.Department, error)
	List(ctx context.Context) ([]*repository.Department, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

// OrderStatusStore is the overall-status catalog repository surface.
type OrderStatusStore interface {
	Create(ctx context.Context, status *repository.OrderStatus) error
	GetByID(ctx context.Context, id int64) (*repository.OrderStatus, error)
	List(ctx context.Context) ([]*repository.OrderStatus, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

// ReconcileTrigger requests an asynchronous reconcile sweep. Implemented by
// Sweeper.
type ReconcileTrigger interface {
	Trigger()
}

// StateCatalogService administers departments and their state definitions.
// Every mutation schedules a reconcile sweep so existing orders pick up the
// change.
type StateCatalogService struct {
	catalog     CatalogStore
	departments DepartmentStore
	statuses    OrderStatusStore
	sweeper     ReconcileTrigger
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewStateCatalogService(catalog CatalogStore, departments DepartmentStore, statuses OrderStatusStore, sweeper ReconcileTrigger, log zerolog.Logger) *StateCatalogService {
	return &StateCatalogService{
		catalog:     catalog,
		departments: departments,
		statuses:    statuses,
		sweeper:     sweeper,
		validate:    validator.New(),
		log:         log.With().Str("component", "state_catalog_service").Logger(),
	}
}

func (s *StateCatalogService) trigger() {
	if s.sweeper != nil {
		s.sweeper.Trigger()
	}
}

type CreateDepartmentRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *StateCatalogService) CreateDepartment(ctx context.Context, req CreateDepartmentRequest) (*repository.Department, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid department payload")
	}
	dept := &repository.Department{Name: req.Name}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, err
	}
	s.log.Info().Int64("department_id", dept.ID).Str("name", dept.Name).Msg("department created")
	return dept, nil
}

func (s *StateCatalogService) GetDepartment(ctx context.Context, id int64) (*repository.Department, error) {
	return s.departments.GetByID(ctx, id)
}

func (s *StateCatalogService) ListDepartments(ctx context.Context) ([]*repository.Department, error) {
	return s.departments.List(ctx)
}

func (s *StateCatalogService) RenameDepartment(ctx context.Context, id int64, name string) error {
	if name == "" {
		return apperr.InvalidInput("name", "must not be empty")
	}
	return s.departments.Rename(ctx, id, name)
}

// DeleteDepartment removes the department and its definitions, then sweeps
// so orders drop the orphaned instances.
func (s *StateCatalogService) DeleteDepartment(ctx context.Context, id int64) error {
	if err := s.departments.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("department_id", id).Msg("department deleted")
	s.trigger()
	return nil
}

type CreateStateRequest struct {
	DepartmentID int64  `json:"department_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
}

// CreateDefinition appends a state to the department's sequence. Names are
// unique within a department.
func (s *StateCatalogService) CreateDefinition(ctx context.Context, req CreateStateRequest) (*repository.StateDefinition, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid state payload")
	}
	if _, err := s.departments.GetByID(ctx, req.DepartmentID); err != nil {
		return nil, err
	}
	exists, err := s.catalog.ExistsByName(ctx, req.DepartmentID, req.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.InvalidInput("name", "a state with this name already exists in the department")
	}

	def := &repository.StateDefinition{DepartmentID: req.DepartmentID, Name: req.Name}
	if err := s.catalog.Create(ctx, def); err != nil {
		return nil, err
	}
	s.log.Info().
		Int64("state_id", def.ID).
		Int64("department_id", def.DepartmentID).
		Str("name", def.Name).
		Msg("state definition created")
	s.trigger()
	return def, nil
}

func (s *StateCatalogService) GetDefinition(ctx context.Context, id int64) (*repository.StateDefinition, error) {
	return s.catalog.GetByID(ctx, id)
}

func (s *StateCatalogService) ListDefinitions(ctx context.Context, departmentID *int64) ([]*repository.StateDefinition, error) {
	return s.catalog.List(ctx, departmentID)
}

func (s *StateCatalogService) RenameDefinition(ctx context.Context, id int64, name string) error {
	if name == "" {
		return apperr.InvalidInput("name", "must not be empty")
	}
	def, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if def.Name != name {
		exists, err := s.catalog.ExistsByName(ctx, def.DepartmentID, name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.InvalidInput("name", "a state with this name already exists in the department")
		}
	}
	if err := s.catalog.Rename(ctx, id, name); err != nil {
		return err
	}
	s.trigger()
	return nil
}

// ReorderDefinitions rewrites the department's ranks to match orderedIDs.
func (s *StateCatalogService) ReorderDefinitions(ctx context.Context, departmentID int64, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return apperr.InvalidInput("state_ids", "must not be empty")
	}
	defs, err := s.catalog.List(ctx, &departmentID)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(defs))
	for _, def := range defs {
		known[def.ID] = true
	}
	if len(orderedIDs) != len(defs) {
		return apperr.InvalidInput("state_ids", "must list every state of the department exactly once")
	}
	seen := make(map[int64]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !known[id] || seen[id] {
			return apperr.InvalidInput("state_ids", "must list every state of the department exactly once")
		}
		seen[id] = true
	}
	if err := s.catalog.Reorder(ctx, departmentID, orderedIDs); err != nil {
		return err
	}
	s.log.Info().Int64("department_id", departmentID).Int("states", len(orderedIDs)).Msg("state definitions reordered")
	s.trigger()
	return nil
}

func (s *StateCatalogService) DeleteDefinition(ctx context.Context, id int64) error {
	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("state_id", id).Msg("state definition deleted")
	s.trigger()
	return nil
}

// Overall-status catalog. These labels describe the order as a whole and are
// independent of per-department progress states.

func (s *StateCatalogService) CreateOrderStatus(ctx context.Context, name string) (*repository.OrderStatus, error) {
	if name == "" {
		return nil, apperr.InvalidInput("name", "must not be empty")
	}
	status := &repository.OrderStatus{Name: name}
	if err := s.statuses.Create(ctx, status); err != nil {
		return nil, err
	}
	s.log.Info().Int64("status_id", status.ID).Str("name", status.Name).Msg("order status created")
	return status, nil
}

func (s *StateCatalogService) ListOrderStatuses(ctx context.Context) ([]*repository.OrderStatus, error) {
	return s.statuses.List(ctx)
}

func (s *StateCatalogService) RenameOrderStatus(ctx context.Context, id int64, name string) error {
	if name == "" {
		return apperr.InvalidInput("name", "must not be empty")
	}
	return s.statuses.Rename(ctx, id, name)
}

func (s *StateCatalogService) DeleteOrderStatus(ctx context.Context, id int64) error {
	if err := s.statuses.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("status_id", id).Msg("order status deleted")
	return nil
}
