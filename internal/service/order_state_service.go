package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// transitionRetries bounds the optimistic-concurrency retry loop on order
// progress-state writes.
const transitionRetries = 3

// OrderStore is the subset of the order repository the service depends on.
type OrderStore interface {
	Create(ctx context.Context, order *repository.Order) error
	GetByID(ctx context.Context, id int64) (*repository.Order, error)
	List(ctx context.Context) ([]*repository.Order, error)
	IDs(ctx context.Context) ([]int64, error)
	UpdateProgressStates(ctx context.Context, id int64, states []repository.ProgressState, expectedVersion int64) error
	UpdateHeader(ctx context.Context, order *repository.Order) error
	SetOverallStatus(ctx context.Context, id int64, statusID *int64) error
	Delete(ctx context.Context, id int64) error
}

// CatalogReader reads state definitions without exposing catalog writes.
type CatalogReader interface {
	GetByID(ctx context.Context, id int64) (*repository.StateDefinition, error)
	List(ctx context.Context, departmentID *int64) ([]*repository.StateDefinition, error)
}

// DepartmentReader resolves department names for notification messages.
type DepartmentReader interface {
	GetByID(ctx context.Context, id int64) (*repository.Department, error)
}

// OrderStatusReader validates overall-status assignments.
type OrderStatusReader interface {
	GetByID(ctx context.Context, id int64) (*repository.OrderStatus, error)
}

// FanoutCoordinator delivers a notification to every configured recipient of
// a category. Implemented by FanoutService.
type FanoutCoordinator interface {
	Fanout(ctx context.Context, category, title, message string, fctx FanoutContext) (FanoutStats, error)
}

// OrderStateService owns order lifecycle and the progress-state collection
// embedded in each order.
type OrderStateService struct {
	orders      OrderStore
	catalog     CatalogReader
	departments DepartmentReader
	statuses    OrderStatusReader
	fanout      FanoutCoordinator
	entryLabel  string
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewOrderStateService(
	orders OrderStore,
	catalog CatalogReader,
	departments DepartmentReader,
	statuses OrderStatusReader,
	fanout FanoutCoordinator,
	entryLabel string,
	log zerolog.Logger,
) *OrderStateService {
	return &OrderStateService{
		orders:      orders,
		catalog:     catalog,
		departments: departments,
		statuses:    statuses,
		fanout:      fanout,
		entryLabel:  entryLabel,
		validate:    validator.New(),
		log:         log.With().Str("component", "order_state_service").Logger(),
	}
}

type CreateOrderRequest struct {
	Number          string     `json:"number" validate:"required"`
	MachineType     string     `json:"machine_type" validate:"required"`
	Description     *string    `json:"description"`
	Client          *string    `json:"client"`
	DeliveryDate    *time.Time `json:"delivery_date"`
	OverallStatusID *int64     `json:"overall_status_id"`
}

// CreateOrder persists a new order seeded with one inactive instance per
// catalog definition and the entry state activated in each department.
func (s *OrderStateService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*repository.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid order payload")
	}

	defs, err := s.catalog.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	states, _ := reconcileStates(nil, defs, s.entryLabel)

	order := &repository.Order{
		Number:          req.Number,
		MachineType:     req.MachineType,
		Description:     req.Description,
		Client:          req.Client,
		DeliveryDate:    req.DeliveryDate,
		OverallStatusID: req.OverallStatusID,
		ProgressStates:  states,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("order_id", order.ID).
		Str("number", order.Number).
		Int("states", len(states)).
		Msg("order created")

	go s.emit(CategoryOrderCreated,
		"Nuova commessa",
		fmt.Sprintf("Creata la commessa %s (%s)", order.Number, order.MachineType),
		FanoutContext{OrderID: &order.ID, IncludeGlobal: true})

	return order, nil
}

func (s *OrderStateService) GetOrder(ctx context.Context, id int64) (*repository.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderStateService) ListOrders(ctx context.Context) ([]*repository.Order, error) {
	return s.orders.List(ctx)
}

type UpdateOrderRequest struct {
	Number       string     `json:"number" validate:"required"`
	MachineType  string     `json:"machine_type" validate:"required"`
	Description  *string    `json:"description"`
	Client       *string    `json:"client"`
	DeliveryDate *time.Time `json:"delivery_date"`
}

func (s *OrderStateService) UpdateOrder(ctx context.Context, id int64, req UpdateOrderRequest) (*repository.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid order payload")
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Number = req.Number
	order.MachineType = req.MachineType
	order.Description = req.Description
	order.Client = req.Client
	order.DeliveryDate = req.DeliveryDate
	if err := s.orders.UpdateHeader(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStateService) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("order_id", id).Msg("order deleted")
	return nil
}

// SetOverallStatus assigns the order-wide status and notifies the
// "stato_commessa" audience.
func (s *OrderStateService) SetOverallStatus(ctx context.Context, orderID int64, statusID *int64) error {
	var statusName string
	if statusID != nil {
		status, err := s.statuses.GetByID(ctx, *statusID)
		if err != nil {
			return err
		}
		statusName = status.Name
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.orders.SetOverallStatus(ctx, orderID, statusID); err != nil {
		return err
	}

	s.log.Info().Int64("order_id", orderID).Str("status", statusName).Msg("overall status updated")

	msg := fmt.Sprintf("La commessa %s non ha piu uno stato assegnato", order.Number)
	if statusName != "" {
		msg = fmt.Sprintf("La commessa %s e passata in stato %s", order.Number, statusName)
	}
	go s.emit(CategoryOrderStatus, "Stato commessa aggiornato", msg,
		FanoutContext{OrderID: &orderID, IncludeGlobal: true})
	return nil
}

type TransitionRequest struct {
	OrderID      int64      `json:"order_id" validate:"required"`
	DepartmentID int64      `json:"department_id" validate:"required"`
	StateID      int64      `json:"state_id" validate:"required"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// Transition activates the requested state within its department,
// deactivating the department's other instances. The target must exist in
// the catalog and belong to the requested department. Concurrent writers are
// handled by retrying on version conflict.
func (s *OrderStateService) Transition(ctx context.Context, req TransitionRequest) (*repository.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid transition payload")
	}

	def, err := s.catalog.GetByID(ctx, req.StateID)
	if apperr.IsNotFound(err) {
		return nil, apperr.UnknownState(req.DepartmentID, req.StateID)
	}
	if err != nil {
		return nil, err
	}
	if def.DepartmentID != req.DepartmentID {
		return nil, apperr.UnknownState(req.DepartmentID, req.StateID)
	}

	var order *repository.Order
	for attempt := 0; ; attempt++ {
		order, err = s.orders.GetByID(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}

		states := order.ProgressStates
		idx := -1
		for i, st := range states {
			if st.DepartmentID == req.DepartmentID && st.StateID == req.StateID {
				idx = i
				break
			}
		}
		if idx == -1 {
			states = append(states, repository.ProgressState{
				DepartmentID: def.DepartmentID,
				StateID:      def.ID,
				Name:         def.Name,
				OrderRank:    def.OrderRank,
			})
			idx = len(states) - 1
		}
		if req.StartDate != nil {
			states[idx].StartDate = req.StartDate
		}
		if req.EndDate != nil {
			states[idx].EndDate = req.EndDate
		}
		for i := range states {
			if states[i].DepartmentID == req.DepartmentID {
				states[i].IsActive = i == idx
			}
		}

		err = s.orders.UpdateProgressStates(ctx, order.ID, states, order.Version)
		if err == nil {
			order.ProgressStates = states
			order.Version++
			break
		}
		if !apperr.IsConflict(err) || attempt >= transitionRetries-1 {
			return nil, err
		}
		s.log.Debug().Int64("order_id", req.OrderID).Int("attempt", attempt+1).Msg("transition version conflict, retrying")
	}

	s.log.Info().
		Int64("order_id", order.ID).
		Int64("department_id", req.DepartmentID).
		Int64("state_id", req.StateID).
		Str("state", def.Name).
		Msg("progress state transition")

	deptName := ""
	if dept, derr := s.departments.GetByID(ctx, req.DepartmentID); derr == nil {
		deptName = dept.Name
	}
	departmentID := req.DepartmentID
	orderID := order.ID
	go s.emit(CategoryStateChanged,
		"Avanzamento commessa",
		fmt.Sprintf("Commessa %s, reparto %s: %s", order.Number, deptName, def.Name),
		FanoutContext{OrderID: &orderID, DepartmentID: &departmentID, IncludeGlobal: true})

	return order, nil
}

// UpdateStateDates sets planned start/end dates on every instance of the
// given state definition without touching activation.
func (s *OrderStateService) UpdateStateDates(ctx context.Context, orderID, stateID int64, startDate, endDate *time.Time) (*repository.Order, error) {
	var order *repository.Order
	var err error
	for attempt := 0; ; attempt++ {
		order, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		states := order.ProgressStates
		found := false
		for i := range states {
			if states[i].StateID != stateID {
				continue
			}
			states[i].StartDate = startDate
			states[i].EndDate = endDate
			found = true
		}
		if !found {
			return nil, apperr.NotFound("progress state", stateID)
		}
		err = s.orders.UpdateProgressStates(ctx, orderID, states, order.Version)
		if err == nil {
			order.ProgressStates = states
			order.Version++
			return order, nil
		}
		if !apperr.IsConflict(err) || attempt >= transitionRetries-1 {
			return nil, err
		}
	}
}

// ReconcileOrder realigns one order with the current catalog. Returns whether
// the stored collection changed.
func (s *OrderStateService) ReconcileOrder(ctx context.Context, orderID int64) (bool, error) {
	defs, err := s.catalog.List(ctx, nil)
	if err != nil {
		return false, err
	}

	for attempt := 0; ; attempt++ {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return false, err
		}
		states, changed := reconcileStates(order.ProgressStates, defs, s.entryLabel)
		if !changed {
			return false, nil
		}
		err = s.orders.UpdateProgressStates(ctx, orderID, states, order.Version)
		if err == nil {
			s.log.Info().Int64("order_id", orderID).Msg("order reconciled against catalog")
			return true, nil
		}
		if !apperr.IsConflict(err) || attempt >= transitionRetries-1 {
			return false, err
		}
	}
}

// ReconcileAll sweeps every order. A failing order is logged and skipped so
// one bad row cannot stall the sweep.
func (s *OrderStateService) ReconcileAll(ctx context.Context) error {
	ids, err := s.orders.IDs(ctx)
	if err != nil {
		return err
	}
	reconciled, failed := 0, 0
	for _, id := range ids {
		changed, err := s.ReconcileOrder(ctx, id)
		if err != nil {
			failed++
			s.log.Warn().Err(err).Int64("order_id", id).Msg("reconcile failed for order")
			continue
		}
		if changed {
			reconciled++
		}
	}
	s.log.Info().
		Int("orders", len(ids)).
		Int("reconciled", reconciled).
		Int("failed", failed).
		Msg("reconcile sweep completed")
	return nil
}

// LateState reports a progress state whose planned start date has passed
// while a different state is still active in its department.
type LateState struct {
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	DepartmentID  int64     `json:"department_id"`
	ExpectedState string    `json:"expected_state"`
	ActiveState   string    `json:"active_state"`
	PlannedStart  time.Time `json:"planned_start"`
}

// LateStates scans all orders for instances that should have started by now
// but are not active.
func (s *OrderStateService) LateStates(ctx context.Context, now time.Time) ([]LateState, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []LateState
	for _, order := range orders {
		activeByDept := make(map[int64]string)
		for _, st := range order.ProgressStates {
			if st.IsActive {
				activeByDept[st.DepartmentID] = st.Name
			}
		}
		for _, st := range order.ProgressStates {
			if st.IsActive || st.StartDate == nil || st.StartDate.After(now) {
				continue
			}
			out = append(out, LateState{
				OrderID:       order.ID,
				OrderNumber:   order.Number,
				DepartmentID:  st.DepartmentID,
				ExpectedState: st.Name,
				ActiveState:   activeByDept[st.DepartmentID],
				PlannedStart:  *st.StartDate,
			})
		}
	}
	return out, nil
}

// emit runs a fan-out detached from the request that triggered it. Delivery
// problems are logged, never surfaced to the caller.
func (s *OrderStateService) emit(category, title, message string, fctx FanoutContext) {
	if s.fanout == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.fanout.Fanout(ctx, category, title, message, fctx); err != nil {
		s.log.Warn().Err(err).Str("category", category).Msg("notification fan-out failed")
	}
}
