package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
)

// Memory is an in-memory implementation of every port, used for tests
// and single-process deployments. Production deployments swap in
// row-store backed implementations; the engine only sees the
// interfaces.
type Memory struct {
	mu sync.RWMutex

	nextCustomerID int64
	nextSessionID  int64
	nextEventID    int64
	nextOrderID    int64
	nextItemID     int64
	nextBookingID  int64

	customers map[string]*model.Customer // keyed by chat_id
	sessions  map[int64]*model.Session
	events    []model.Event
	states    map[string][]byte

	products []model.SeenProduct
	services []model.Service
	rooms    []model.Room
	staff    []model.Staff

	orders       map[int64]*model.Order
	ownerByOrder map[int64]int64
	bookings     map[int64]*model.Booking
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]*model.Customer),
		sessions:  make(map[int64]*model.Session),
		states:    make(map[string][]byte),
		orders:    make(map[int64]*model.Order),
		bookings:  make(map[int64]*model.Booking),
	}
}

// SeedCatalog installs products, services, rooms and staff fixtures.
func (m *Memory) SeedCatalog(products []model.SeenProduct, services []model.Service, rooms []model.Room, staff []model.Staff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
	m.services = services
	m.rooms = rooms
	m.staff = staff
}

// FindByChatID implements CustomerRepo.
func (m *Memory) FindByChatID(_ context.Context, chatID string) (*model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[chatID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Create implements CustomerRepo.
func (m *Memory) Create(_ context.Context, chatID string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.customers[chatID]; ok {
		cp := *c
		return &cp, nil
	}
	m.nextCustomerID++
	c := &model.Customer{ID: m.nextCustomerID, ChatID: chatID}
	m.customers[chatID] = c
	cp := *c
	return &cp, nil
}

// UpdateContact implements CustomerRepo.
func (m *Memory) UpdateContact(_ context.Context, customerID int64, name, phone, email, address *string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID != customerID {
			continue
		}
		if name != nil {
			c.Name = name
		}
		if phone != nil {
			c.Phone = phone
		}
		if email != nil {
			c.Email = email
		}
		if address != nil {
			c.Address = address
		}
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// Delete implements CustomerRepo. Sessions, events and state blobs of
// the customer are removed as well.
func (m *Memory) Delete(_ context.Context, chatID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[chatID]
	if !ok {
		return false, nil
	}
	delete(m.customers, chatID)
	for id, s := range m.sessions {
		if s.CustomerID == c.ID {
			delete(m.states, s.ThreadID)
			delete(m.sessions, id)
		}
	}
	kept := m.events[:0]
	for _, e := range m.events {
		if e.CustomerID != c.ID {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return true, nil
}

// ActiveByCustomer implements SessionRepo.
func (m *Memory) ActiveByCustomer(_ context.Context, customerID int64) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.CustomerID == customerID && s.Status == model.SessionActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateSession is exposed as Create on SessionRepo via the Sessions
// view below; the method name avoids clashing with CustomerRepo.Create.
func (m *Memory) createSession(customerID int64, threadID string, now time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSessionID++
	s := &model.Session{
		ID:           m.nextSessionID,
		CustomerID:   customerID,
		ThreadID:     threadID,
		StartedAt:    now.UTC(),
		LastActiveAt: now.UTC(),
		Status:       model.SessionActive,
	}
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *Memory) endSession(sessionID int64, now time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	ended := now.UTC()
	s.Status = model.SessionInactive
	s.EndedAt = &ended
	cp := *s
	return &cp, nil
}

func (m *Memory) touchSession(sessionID int64, now time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	s.LastActiveAt = now.UTC()
	cp := *s
	return &cp, nil
}

// Sessions returns the SessionRepo view of the store.
func (m *Memory) Sessions() SessionRepo { return sessionView{m} }

type sessionView struct{ m *Memory }

func (v sessionView) ActiveByCustomer(ctx context.Context, customerID int64) (*model.Session, error) {
	return v.m.ActiveByCustomer(ctx, customerID)
}

func (v sessionView) Create(_ context.Context, customerID int64, threadID string, now time.Time) (*model.Session, error) {
	return v.m.createSession(customerID, threadID, now)
}

func (v sessionView) End(_ context.Context, sessionID int64, now time.Time) (*model.Session, error) {
	return v.m.endSession(sessionID, now)
}

func (v sessionView) Touch(_ context.Context, sessionID int64, now time.Time) (*model.Session, error) {
	return v.m.touchSession(sessionID, now)
}

// Append implements EventRepo.
func (m *Memory) Append(_ context.Context, event model.Event) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	event.ID = m.nextEventID
	m.events = append(m.events, event)
	cp := event
	return &cp, nil
}

// Events returns a snapshot of the audit log, oldest first.
func (m *Memory) Events() []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Event(nil), m.events...)
}

// Load implements StateStore.
func (m *Memory) Load(_ context.Context, threadID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.states[threadID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

// Save implements StateStore.
func (m *Memory) Save(_ context.Context, threadID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[threadID] = append([]byte(nil), blob...)
	return nil
}

// DeleteState removes a state blob; absent keys are a no-op.
func (m *Memory) DeleteState(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, threadID)
	return nil
}

// States returns the StateStore view of the store.
func (m *Memory) States() StateStore { return stateView{m} }

type stateView struct{ m *Memory }

func (v stateView) Load(ctx context.Context, threadID string) ([]byte, error) {
	return v.m.Load(ctx, threadID)
}

func (v stateView) Save(ctx context.Context, threadID string, blob []byte) error {
	return v.m.Save(ctx, threadID, blob)
}

func (v stateView) Delete(ctx context.Context, threadID string) error {
	return v.m.DeleteState(ctx, threadID)
}

// SearchByKeyword implements ProductRepo.
func (m *Memory) SearchByKeyword(_ context.Context, keyword string, limit int) ([]model.SeenProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(keyword)
	var out []model.SeenProduct
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.ProductName), needle) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// All implements ServiceRepo, RoomRepo and StaffRepo through views.
func (m *Memory) AllServices(_ context.Context) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Service(nil), m.services...), nil
}

func (m *Memory) AllRooms(_ context.Context) ([]model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Room(nil), m.rooms...), nil
}

func (m *Memory) AllStaff(_ context.Context) ([]model.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Staff(nil), m.staff...), nil
}

// ServiceCatalog returns the ServiceRepo view.
func (m *Memory) ServiceCatalog() ServiceRepo { return serviceView{m} }

type serviceView struct{ m *Memory }

func (v serviceView) All(ctx context.Context) ([]model.Service, error) { return v.m.AllServices(ctx) }

// Rooms returns the RoomRepo view.
func (m *Memory) Rooms() RoomRepo { return roomView{m} }

type roomView struct{ m *Memory }

func (v roomView) All(ctx context.Context) ([]model.Room, error) { return v.m.AllRooms(ctx) }

// Staff returns the StaffRepo view.
func (m *Memory) Staff() StaffRepo { return staffView{m} }

type staffView struct{ m *Memory }

func (v staffView) All(ctx context.Context) ([]model.Staff, error) { return v.m.AllStaff(ctx) }

// terminalOrderStatuses cannot be edited anymore.
var terminalOrderStatuses = map[string]struct{}{
	"delivered": {},
	"cancelled": {},
	"returned":  {},
	"refunded":  {},
}

// Orders returns the OrderRepo view.
func (m *Memory) Orders() OrderRepo { return orderView{m} }

type orderView struct{ m *Memory }

func (v orderView) Create(_ context.Context, draft OrderDraft) (*model.Order, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOrderID++
	o := &model.Order{
		OrderID:         m.nextOrderID,
		Status:          draft.Status,
		ShippingFee:     draft.ShippingFee,
		CreatedAt:       time.Now().UTC(),
		ReceiverName:    draft.ReceiverName,
		ReceiverPhone:   draft.ReceiverPhone,
		ReceiverAddress: draft.ReceiverAddress,
		Items:           map[int64]model.OrderItem{},
	}
	m.orders[o.OrderID] = o
	m.orderOwners(o.OrderID, draft.CustomerID)
	cp := cloneOrder(o)
	return &cp, nil
}

// orderOwners records ownership; kept as a map on the order id.
func (m *Memory) orderOwners(orderID, customerID int64) {
	if m.ownerByOrder == nil {
		m.ownerByOrder = make(map[int64]int64)
	}
	m.ownerByOrder[orderID] = customerID
}

func (v orderView) AddItems(_ context.Context, orderID int64, items []ItemDraft) ([]model.OrderItem, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	var out []model.OrderItem
	var total int64
	for _, it := range items {
		m.nextItemID++
		item := model.OrderItem{
			ItemID:       m.nextItemID,
			ProductDesID: it.ProductDesID,
			Quantity:     it.Quantity,
			Price:        it.Price,
			Subtotal:     it.Subtotal,
		}
		for _, p := range m.products {
			if p.ProductDesID == it.ProductDesID {
				item.ProductID = p.ProductID
				item.SKU = p.SKU
				item.ProductName = p.ProductName
				item.VarianceDes = p.VarianceDes
				break
			}
		}
		o.Items[item.ItemID] = item
		out = append(out, item)
	}
	for _, it := range o.Items {
		total += it.Subtotal
	}
	o.OrderTotal = total
	o.GrandTotal = total + o.ShippingFee
	return out, nil
}

func (v orderView) Details(_ context.Context, orderID int64) (*model.Order, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (v orderView) Editable(_ context.Context, customerID int64, limit int) ([]model.Order, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Order
	for id, o := range m.orders {
		if m.ownerByOrder[id] != customerID {
			continue
		}
		if _, terminal := terminalOrderStatuses[o.Status]; terminal {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v orderView) UpdateReceiver(_ context.Context, orderID int64, patch ReceiverPatch) (*model.Order, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		o.ReceiverName = *patch.Name
	}
	if patch.Phone != nil {
		o.ReceiverPhone = *patch.Phone
	}
	if patch.Address != nil {
		o.ReceiverAddress = *patch.Address
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (v orderView) Cancel(_ context.Context, orderID int64) (*model.Order, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status == "cancelled" {
		return nil, nil
	}
	o.Status = "cancelled"
	cp := cloneOrder(o)
	return &cp, nil
}

func cloneOrder(o *model.Order) model.Order {
	cp := *o
	cp.Items = make(map[int64]model.OrderItem, len(o.Items))
	for k, it := range o.Items {
		cp.Items[k] = it
	}
	return cp
}

// Appointments returns the AppointmentRepo view.
func (m *Memory) Appointments() AppointmentRepo { return appointmentView{m} }

type appointmentView struct{ m *Memory }

func (v appointmentView) Overlapping(_ context.Context, bookingDate, startTime, endTime string, buffer time.Duration) ([]model.Booking, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, err1 := time.Parse("15:04", startTime)
	end, err2 := time.Parse("15:04", endTime)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	start = start.Add(-buffer)
	end = end.Add(buffer)

	var out []model.Booking
	for _, b := range m.bookings {
		if b.BookingDate != bookingDate {
			continue
		}
		if b.Status != model.AppointmentBooked && b.Status != model.AppointmentCompleted {
			continue
		}
		bs, err1 := time.Parse("15:04", b.StartTime)
		be, err2 := time.Parse("15:04", b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if bs.Before(end) && be.After(start) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (v appointmentView) Create(_ context.Context, draft BookingDraft) (*model.Booking, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookingID++
	b := &model.Booking{
		BookingID:   m.nextBookingID,
		ServiceID:   draft.ServiceID,
		ServiceName: draft.ServiceName,
		RoomID:      draft.RoomID,
		StaffID:     draft.StaffID,
		StaffName:   draft.StaffName,
		BookingDate: draft.BookingDate,
		StartTime:   draft.StartTime,
		EndTime:     draft.EndTime,
		Status:      model.AppointmentBooked,
		CreatedAt:   time.Now().UTC(),
	}
	m.bookings[b.BookingID] = b
	cp := *b
	return &cp, nil
}

func (v appointmentView) Details(_ context.Context, bookingID int64) (*model.Booking, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (v appointmentView) Cancel(_ context.Context, bookingID int64) (*model.Booking, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status == model.AppointmentCancelled {
		return nil, nil
	}
	b.Status = model.AppointmentCancelled
	cp := *b
	return &cp, nil
}
