package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/service"
)

// HTTPHandler exposes the REST API. Handlers stay thin: decode, call the
// service, map the error, encode.
type HTTPHandler struct {
	orders  *service.OrderStateService
	catalog *service.StateCatalogService
	inbox   *service.InboxService
	rules   *service.RuleService
	prefs   *service.PreferenceService
	fanout  service.FanoutCoordinator
	sweeper service.ReconcileTrigger
	log     zerolog.Logger
}

func NewHTTPHandler(
	orders *service.OrderStateService,
	catalog *service.StateCatalogService,
	inbox *service.InboxService,
	rules *service.RuleService,
	prefs *service.PreferenceService,
	fanout service.FanoutCoordinator,
	sweeper service.ReconcileTrigger,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		orders:  orders,
		catalog: catalog,
		inbox:   inbox,
		rules:   rules,
		prefs:   prefs,
		fanout:  fanout,
		sweeper: sweeper,
		log:     log.With().Str("component", "http").Logger(),
	}
}

// Register wires every route onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/departments", h.CreateDepartment)
	mux.HandleFunc("GET /api/departments", h.ListDepartments)
	mux.HandleFunc("GET /api/departments/{id}", h.GetDepartment)
	mux.HandleFunc("PUT /api/departments/{id}", h.RenameDepartment)
	mux.HandleFunc("DELETE /api/departments/{id}", h.DeleteDepartment)
	mux.HandleFunc("GET /api/departments/{id}/states", h.ListDepartmentStates)
	mux.HandleFunc("PUT /api/departments/{id}/states/order", h.ReorderStates)

	mux.HandleFunc("POST /api/states", h.CreateState)
	mux.HandleFunc("GET /api/states", h.ListStates)
	mux.HandleFunc("PUT /api/states/{id}", h.RenameState)
	mux.HandleFunc("DELETE /api/states/{id}", h.DeleteState)

	mux.HandleFunc("POST /api/order-statuses", h.CreateOrderStatus)
	mux.HandleFunc("GET /api/order-statuses", h.ListOrderStatuses)
	mux.HandleFunc("PUT /api/order-statuses/{id}", h.RenameOrderStatus)
	mux.HandleFunc("DELETE /api/order-statuses/{id}", h.DeleteOrderStatus)

	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/late-states", h.LateStates)
	mux.HandleFunc("POST /api/orders/reconcile", h.ReconcileAll)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PUT /api/orders/{id}", h.UpdateOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.DeleteOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.SetOverallStatus)
	mux.HandleFunc("POST /api/orders/{id}/transition", h.Transition)
	mux.HandleFunc("POST /api/orders/{id}/reconcile", h.ReconcileOrder)
	mux.HandleFunc("PUT /api/orders/{id}/states/{stateID}/dates", h.UpdateStateDates)

	mux.HandleFunc("POST /api/notification-rules", h.CreateRule)
	mux.HandleFunc("GET /api/notification-rules", h.ListRules)
	mux.HandleFunc("DELETE /api/notification-rules/{id}", h.DeleteRule)
	mux.HandleFunc("POST /api/notifications/fanout", h.Fanout)

	mux.HandleFunc("GET /api/users/{id}/notifications", h.ListNotifications)
	mux.HandleFunc("PUT /api/users/{id}/notifications/{notificationID}/read", h.MarkNotificationRead)
	mux.HandleFunc("GET /api/users/{id}/preferences", h.ListPreferences)
	mux.HandleFunc("PUT /api/users/{id}/preferences/{category}", h.SetPreference)
	mux.HandleFunc("PUT /api/users/{id}/device-token", h.RegisterDeviceToken)
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Departments

func (h *HTTPHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	dept, err := h.catalog.CreateDepartment(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dept)
}

func (h *HTTPHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.catalog.ListDepartments(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depts)
}

func (h *HTTPHandler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dept, err := h.catalog.GetDepartment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dept)
}

func (h *HTTPHandler) RenameDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.catalog.RenameDepartment(r.Context(), id, req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.DeleteDepartment(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListDepartmentStates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defs, err := h.catalog.ListDefinitions(r.Context(), &id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (h *HTTPHandler) ReorderStates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		StateIDs []int64 `json:"state_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.catalog.ReorderDefinitions(r.Context(), id, req.StateIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// State definitions

func (h *HTTPHandler) CreateState(w http.ResponseWriter, r *http.Request) {
	var req service.CreateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	def, err := h.catalog.CreateDefinition(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (h *HTTPHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	var departmentID *int64
	if raw := r.URL.Query().Get("department_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, r, apperr.InvalidInput("department_id", "must be an integer"))
			return
		}
		departmentID = &id
	}
	defs, err := h.catalog.ListDefinitions(r.Context(), departmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (h *HTTPHandler) RenameState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.catalog.RenameDefinition(r.Context(), id, req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.DeleteDefinition(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Overall-status catalog

func (h *HTTPHandler) CreateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	status, err := h.catalog.CreateOrderStatus(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (h *HTTPHandler) ListOrderStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.catalog.ListOrderStatuses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *HTTPHandler) RenameOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.catalog.RenameOrderStatus(r.Context(), id, req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.DeleteOrderStatus(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Orders

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req service.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	order, err := h.orders.UpdateOrder(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SetOverallStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		StatusID *int64 `json:"status_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.orders.SetOverallStatus(r.Context(), id, req.StatusID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req service.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	req.OrderID = id
	order, err := h.orders.Transition(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) ReconcileOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	changed, err := h.orders.ReconcileOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// ReconcileAll schedules a background sweep rather than blocking the caller
// on every order.
func (h *HTTPHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Trigger()
	w.WriteHeader(http.StatusAccepted)
}

func (h *HTTPHandler) UpdateStateDates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stateID, err := pathID(r, "stateID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		StartDate *time.Time `json:"start_date"`
		EndDate   *time.Time `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	order, err := h.orders.UpdateStateDates(r.Context(), id, stateID, req.StartDate, req.EndDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) LateStates(w http.ResponseWriter, r *http.Request) {
	late, err := h.orders.LateStates(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if late == nil {
		late = []service.LateState{}
	}
	writeJSON(w, http.StatusOK, late)
}

// Recipient rules and manual fan-out

func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	rule, err := h.rules.CreateRule(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListRules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.rules.DeleteRule(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Fanout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category     string `json:"category"`
		Title        string `json:"title"`
		Message      string `json:"message"`
		OrderID      *int64 `json:"order_id"`
		DepartmentID *int64 `json:"department_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	stats, err := h.fanout.Fanout(r.Context(), req.Category, req.Title, req.Message, service.FanoutContext{
		OrderID:       req.OrderID,
		DepartmentID:  req.DepartmentID,
		IncludeGlobal: true,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Per-user inbox and preferences

func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, err := h.inbox.List(r.Context(), userID, unreadOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	notificationID, err := pathID(r, "notificationID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.inbox.MarkRead(r.Context(), notificationID, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.prefs.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *HTTPHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	category := r.PathValue("category")
	var ch service.Channels
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.prefs.SetChannels(r.Context(), userID, category, ch); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.inbox.RegisterDeviceToken(r.Context(), userID, req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helpers

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput(name, "must be a positive integer")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperr.CodeOf(err)),
	})
}
