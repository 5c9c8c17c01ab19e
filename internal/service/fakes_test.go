package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// In-memory fakes standing in for the Postgres repositories and delivery
// gateways. They mimic the repositories' error semantics, including version
// conflicts, so service behavior can be exercised without a database.

type memOrders struct {
	mu        sync.Mutex
	nextID    int64
	orders    map[int64]*repository.Order
	conflicts int              // next N UpdateProgressStates calls fail with a conflict
	failGet   map[int64]error  // GetByID errors per order id
}

func newMemOrders() *memOrders {
	return &memOrders{nextID: 1, orders: make(map[int64]*repository.Order), failGet: make(map[int64]error)}
}

func copyOrder(o *repository.Order) *repository.Order {
	cp := *o
	cp.ProgressStates = append([]repository.ProgressState(nil), o.ProgressStates...)
	return &cp
}

func (m *memOrders) Create(ctx context.Context, order *repository.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextID
	m.nextID++
	order.Version = 1
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *memOrders) GetByID(ctx context.Context, id int64) (*repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failGet[id]; ok {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return copyOrder(o), nil
}

func (m *memOrders) List(ctx context.Context) ([]*repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*repository.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyOrder(m.orders[id]))
	}
	return out, nil
}

func (m *memOrders) IDs(ctx context.Context) ([]int64, error) {
	orders, _ := m.List(ctx)
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (m *memOrders) UpdateProgressStates(ctx context.Context, id int64, states []repository.ProgressState, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.NotFound("order", id)
	}
	if m.conflicts > 0 {
		m.conflicts--
		return apperr.Conflict("order was modified concurrently")
	}
	if o.Version != expectedVersion {
		return apperr.Conflict("order was modified concurrently")
	}
	o.ProgressStates = append([]repository.ProgressState(nil), states...)
	o.Version++
	return nil
}

func (m *memOrders) UpdateHeader(ctx context.Context, order *repository.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[order.ID]
	if !ok {
		return apperr.NotFound("order", order.ID)
	}
	o.Number = order.Number
	o.MachineType = order.MachineType
	o.Description = order.Description
	o.Client = order.Client
	o.DeliveryDate = order.DeliveryDate
	return nil
}

func (m *memOrders) SetOverallStatus(ctx context.Context, id int64, statusID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.NotFound("order", id)
	}
	o.OverallStatusID = statusID
	return nil
}

func (m *memOrders) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return apperr.NotFound("order", id)
	}
	delete(m.orders, id)
	return nil
}

type memCatalog struct {
	mu     sync.Mutex
	nextID int64
	defs   []*repository.StateDefinition
}

func newMemCatalog() *memCatalog {
	return &memCatalog{nextID: 1}
}

func (m *memCatalog) add(departmentID int64, name string, rank int) *repository.StateDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	def := &repository.StateDefinition{ID: m.nextID, DepartmentID: departmentID, Name: name, OrderRank: rank}
	m.nextID++
	m.defs = append(m.defs, def)
	return def
}

func (m *memCatalog) Create(ctx context.Context, def *repository.StateDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	def.ID = m.nextID
	m.nextID++
	rank := 0
	for _, d := range m.defs {
		if d.DepartmentID == def.DepartmentID && d.OrderRank > rank {
			rank = d.OrderRank
		}
	}
	def.OrderRank = rank + 1
	cp := *def
	m.defs = append(m.defs, &cp)
	return nil
}

func (m *memCatalog) GetByID(ctx context.Context, id int64) (*repository.StateDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.defs {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("state definition", id)
}

func (m *memCatalog) List(ctx context.Context, departmentID *int64) ([]*repository.StateDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.StateDefinition
	for _, d := range m.defs {
		if departmentID != nil && d.DepartmentID != *departmentID {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartmentID != out[j].DepartmentID {
			return out[i].DepartmentID < out[j].DepartmentID
		}
		if out[i].OrderRank != out[j].OrderRank {
			return out[i].OrderRank < out[j].OrderRank
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memCatalog) ExistsByName(ctx context.Context, departmentID int64, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.defs {
		if d.DepartmentID == departmentID && d.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCatalog) Rename(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.defs {
		if d.ID == id {
			d.Name = name
			return nil
		}
	}
	return apperr.NotFound("state definition", id)
}

func (m *memCatalog) Reorder(ctx context.Context, departmentID int64, orderedIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for rank, id := range orderedIDs {
		for _, d := range m.defs {
			if d.ID == id && d.DepartmentID == departmentID {
				d.OrderRank = rank + 1
			}
		}
	}
	return nil
}

func (m *memCatalog) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.defs {
		if d.ID == id {
			m.defs = append(m.defs[:i], m.defs[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("state definition", id)
}

type memDepartments struct {
	mu     sync.Mutex
	nextID int64
	depts  map[int64]*repository.Department
}

func newMemDepartments() *memDepartments {
	return &memDepartments{nextID: 1, depts: make(map[int64]*repository.Department)}
}

func (m *memDepartments) add(name string) *repository.Department {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &repository.Department{ID: m.nextID, Name: name}
	m.nextID++
	m.depts[d.ID] = d
	return d
}

func (m *memDepartments) Create(ctx context.Context, dept *repository.Department) error {
	d := m.add(dept.Name)
	dept.ID = d.ID
	return nil
}

func (m *memDepartments) GetByID(ctx context.Context, id int64) (*repository.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.depts[id]
	if !ok {
		return nil, apperr.NotFound("department", id)
	}
	cp := *d
	return &cp, nil
}

func (m *memDepartments) List(ctx context.Context) ([]*repository.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Department
	for _, d := range m.depts {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDepartments) Rename(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.depts[id]
	if !ok {
		return apperr.NotFound("department", id)
	}
	d.Name = name
	return nil
}

func (m *memDepartments) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.depts[id]; !ok {
		return apperr.NotFound("department", id)
	}
	delete(m.depts, id)
	return nil
}

type memStatuses struct {
	mu       sync.Mutex
	nextID   int64
	statuses map[int64]*repository.OrderStatus
}

func newMemStatuses() *memStatuses {
	return &memStatuses{nextID: 1, statuses: make(map[int64]*repository.OrderStatus)}
}

func (m *memStatuses) Create(ctx context.Context, status *repository.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status.ID = m.nextID
	m.nextID++
	status.Rank = len(m.statuses) + 1
	cp := *status
	m.statuses[status.ID] = &cp
	return nil
}

func (m *memStatuses) GetByID(ctx context.Context, id int64) (*repository.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok {
		return nil, apperr.NotFound("order status", id)
	}
	cp := *s
	return &cp, nil
}

func (m *memStatuses) List(ctx context.Context) ([]*repository.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.OrderStatus
	for _, s := range m.statuses {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (m *memStatuses) Rename(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok {
		return apperr.NotFound("order status", id)
	}
	s.Name = name
	return nil
}

func (m *memStatuses) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return apperr.NotFound("order status", id)
	}
	delete(m.statuses, id)
	return nil
}

type fanoutCall struct {
	category string
	title    string
	message  string
	fctx     FanoutContext
}

// captureFanout records fan-out invocations instead of delivering anything.
type captureFanout struct {
	mu    sync.Mutex
	calls []fanoutCall
}

func (c *captureFanout) Fanout(ctx context.Context, category, title, message string, fctx FanoutContext) (FanoutStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fanoutCall{category: category, title: title, message: message, fctx: fctx})
	return FanoutStats{}, nil
}

func (c *captureFanout) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *captureFanout) call(i int) fanoutCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

type memRules struct {
	mu     sync.Mutex
	nextID int64
	rules  []*repository.RecipientRule
}

func newMemRules() *memRules {
	return &memRules{nextID: 1}
}

func (m *memRules) Create(ctx context.Context, rule *repository.RecipientRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = m.nextID
	m.nextID++
	cp := *rule
	m.rules = append(m.rules, &cp)
	return nil
}

func (m *memRules) List(ctx context.Context) ([]*repository.RecipientRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repository.RecipientRule, 0, len(m.rules))
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRules) ForCategory(ctx context.Context, category string, orderID *int64) ([]*repository.RecipientRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.RecipientRule
	for _, r := range m.rules {
		if r.Category != category {
			continue
		}
		if r.OrderID != nil && (orderID == nil || *r.OrderID != *orderID) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRules) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("recipient rule", id)
}

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*repository.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int64]*repository.User)}
}

func (m *memUsers) add(u repository.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.users[u.ID] = &cp
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) AllIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memUsers) ByDepartment(ctx context.Context, departmentID int64) ([]*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.User
	for _, u := range m.users {
		if u.DepartmentID != nil && *u.DepartmentID == departmentID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) ByRole(ctx context.Context, role string) ([]*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.User
	for _, u := range m.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) SetDeviceToken(ctx context.Context, userID int64, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user", userID)
	}
	u.DeviceToken = token
	return nil
}

type memPrefs struct {
	mu   sync.Mutex
	rows map[string]*repository.Preference
}

func newMemPrefs() *memPrefs {
	return &memPrefs{rows: make(map[string]*repository.Preference)}
}

func prefKey(userID int64, category string) string {
	return fmt.Sprintf("%d/%s", userID, category)
}

func (m *memPrefs) Get(ctx context.Context, userID int64, category string) (*repository.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[prefKey(userID, category)]
	if !ok {
		return nil, apperr.NotFound("preference", category)
	}
	cp := *p
	return &cp, nil
}

func (m *memPrefs) ListForUser(ctx context.Context, userID int64) ([]*repository.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Preference
	for _, p := range m.rows {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *memPrefs) Upsert(ctx context.Context, pref *repository.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pref
	m.rows[prefKey(pref.UserID, pref.Category)] = &cp
	return nil
}

func (m *memPrefs) MaterializeDefaults(ctx context.Context, category string, userIDs []int64, viaPush, viaEmail bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		key := prefKey(id, category)
		if _, ok := m.rows[key]; ok {
			continue
		}
		m.rows[key] = &repository.Preference{UserID: id, Category: category, ViaPush: viaPush, ViaEmail: viaEmail}
	}
	return nil
}

type memNotifications struct {
	mu      sync.Mutex
	nextID  int64
	items   []*repository.Notification
	failFor map[int64]error // userID -> Append error
}

func newMemNotifications() *memNotifications {
	return &memNotifications{nextID: 1, failFor: make(map[int64]error)}
}

func (m *memNotifications) Append(ctx context.Context, n *repository.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[n.UserID]; ok {
		return err
	}
	n.ID = m.nextID
	m.nextID++
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *memNotifications) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*repository.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Notification
	for _, n := range m.items {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memNotifications) MarkRead(ctx context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification", id)
}

func (m *memNotifications) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// fakePush records sends and fails for tokens listed in failTokens.
type fakePush struct {
	mu         sync.Mutex
	sent       []string
	failTokens map[string]bool
}

func newFakePush() *fakePush {
	return &fakePush{failTokens: make(map[string]bool)}
}

func (f *fakePush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTokens[token] {
		return fmt.Errorf("push provider rejected token %s", token)
	}
	f.sent = append(f.sent, token)
	return nil
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

// triggerSpy counts sweep requests.
type triggerSpy struct {
	mu    sync.Mutex
	count int
}

func (t *triggerSpy) Trigger() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

func (t *triggerSpy) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
