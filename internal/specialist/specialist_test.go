package specialist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

func seededMemory(t *testing.T) *repository.Memory {
	t.Helper()
	mem := repository.NewMemory()
	mem.SeedCatalog(
		[]model.SeenProduct{
			{ProductDesID: 7, ProductID: 70, ProductName: "Serum HA", SKU: "SRM-7", Price: 100, Inventory: 12},
			{ProductDesID: 8, ProductID: 80, ProductName: "Kem chống nắng", SKU: "KCN-8", Price: 250000, Inventory: 4},
		},
		[]model.Service{
			{ServiceID: 1, Name: "Massage", Duration: 60, Price: 300000},
			{ServiceID: 2, Name: "Chăm sóc da", Duration: 90, Price: 450000},
		},
		[]model.Room{{ID: 1, Name: "Phòng Sen", Capacity: 1}},
		[]model.Staff{{ID: 1, Name: "Lan"}},
	)
	return mem
}

func identityState(input string) *state.State {
	st := state.New("thread-1", "chat-1")
	st.UserInput = input
	id := int64(1)
	name := "Anh Minh"
	phone := "0912345678"
	address := "12 Lý Thường Kiệt, Hà Nội"
	st.CustomerID = &id
	st.Name = &name
	st.Phone = &phone
	st.Address = &address
	return st
}

func TestCatalogReplacesSeenProducts(t *testing.T) {
	mem := seededMemory(t)
	c := NewCatalog(mem, logger.NewNop())

	st := state.New("thread-1", "chat-1")
	st.UserInput = "serum"

	res, err := c.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Len(t, res.Update.SeenProducts, 1)
	require.Equal(t, "Serum HA", res.Update.SeenProducts[7].ProductName)
	require.Contains(t, res.Reply, "Serum HA")
}

func TestCatalogEmptyKeywordAsksForProduct(t *testing.T) {
	c := NewCatalog(seededMemory(t), logger.NewNop())

	st := state.New("thread-1", "chat-1")
	st.UserInput = "   "

	res, err := c.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Nil(t, res.Update.SeenProducts)
}

func TestCartAddsSeenProductWithQuantity(t *testing.T) {
	c := NewCart(logger.NewNop())

	st := state.New("thread-1", "chat-1")
	st.UserInput = "cho em 2 cái mã 7 nhé"
	st.SeenProducts = map[int64]model.SeenProduct{
		7: {ProductDesID: 7, ProductName: "Serum HA", Price: 100},
	}

	res, err := c.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)

	line, ok := res.Update.Cart[7]
	require.True(t, ok)
	require.Equal(t, int64(2), line.Quantity)
	require.Equal(t, int64(200), line.Subtotal)
}

func TestCartCheckoutKeywordHandsTurnBack(t *testing.T) {
	c := NewCart(logger.NewNop())

	st := state.New("thread-1", "chat-1")
	st.UserInput = "thêm mã 7 rồi lên đơn luôn nhé"
	st.SeenProducts = map[int64]model.SeenProduct{
		7: {ProductDesID: 7, ProductName: "Serum HA", Price: 100},
	}

	res, err := c.Handle(context.Background(), st)
	require.NoError(t, err)
	require.False(t, res.Terminal)
	require.Nil(t, res.Update.Next)
	require.Len(t, res.Update.Cart, 1)
}

func TestCartClearEmptiesWholeCart(t *testing.T) {
	c := NewCart(logger.NewNop())

	st := state.New("thread-1", "chat-1")
	st.UserInput = "xóa giỏ hàng giúp em"
	st.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 100, Subtotal: 100}}

	res, err := c.Handle(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, res.Update.Cart)
	require.Empty(t, res.Update.Cart)
}

func TestOrderCreatesFromCartAndClearsIt(t *testing.T) {
	mem := seededMemory(t)
	o := NewOrder(mem.Orders(), logger.NewNop())

	st := identityState("lên đơn giúp em")
	st.Cart = map[int64]model.CartLine{
		7: {ProductDesID: 7, Quantity: 2, Price: 100, Subtotal: 200},
	}

	res, err := o.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)

	require.Len(t, res.Update.Orders, 1)
	var created model.Order
	for _, ord := range res.Update.Orders {
		created = ord
	}
	require.Equal(t, "pending", created.Status)
	require.Equal(t, int64(200), created.OrderTotal)
	require.Equal(t, int64(50000), created.ShippingFee)
	require.Equal(t, int64(50200), created.GrandTotal)
	require.Len(t, created.Items, 1)

	require.NotNil(t, res.Update.Cart)
	require.Empty(t, res.Update.Cart)
	require.NotNil(t, res.Update.SeenProducts)
	require.Empty(t, res.Update.SeenProducts)
}

func TestOrderEmptyCartGuides(t *testing.T) {
	mem := seededMemory(t)
	o := NewOrder(mem.Orders(), logger.NewNop())

	res, err := o.Handle(context.Background(), identityState("lên đơn"))
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Nil(t, res.Update.Orders)
	require.Contains(t, res.Reply, "trống")
}

func TestOrderMissingIdentityAsksForIt(t *testing.T) {
	mem := seededMemory(t)
	o := NewOrder(mem.Orders(), logger.NewNop())

	st := identityState("lên đơn")
	st.Address = nil
	st.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 100, Subtotal: 100}}

	res, err := o.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Nil(t, res.Update.Orders)
	require.Contains(t, res.Reply, "địa chỉ nhận hàng")
}

type noRowOrders struct{ repository.OrderRepo }

func (noRowOrders) Create(context.Context, repository.OrderDraft) (*model.Order, error) {
	return nil, nil
}

func TestOrderNoRowResultApologizes(t *testing.T) {
	o := NewOrder(noRowOrders{}, logger.NewNop())

	st := identityState("lên đơn")
	st.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 100, Subtotal: 100}}

	res, err := o.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Nil(t, res.Update.Orders)
	require.Contains(t, res.Reply, "chưa tạo được đơn hàng")
}

func placeOrder(t *testing.T, mem *repository.Memory, st *state.State) model.Order {
	t.Helper()
	o := NewOrder(mem.Orders(), logger.NewNop())
	res, err := o.Handle(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, res.Update.Orders, 1)
	for _, ord := range res.Update.Orders {
		return ord
	}
	return model.Order{}
}

func TestModifyOrderCancel(t *testing.T) {
	mem := seededMemory(t)

	st := identityState("lên đơn")
	st.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 100, Subtotal: 100}}
	placed := placeOrder(t, mem, st)

	m := NewModifyOrder(mem.Orders(), logger.NewNop())
	st2 := identityState("hủy đơn giúp em")
	st2.Orders = map[int64]model.Order{placed.OrderID: placed}

	res, err := m.Handle(context.Background(), st2)
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Equal(t, "cancelled", res.Update.Orders[placed.OrderID].Status)

	// Cancelling again finds no editable row.
	res, err = m.Handle(context.Background(), st2)
	require.NoError(t, err)
	require.Contains(t, res.Reply, "chưa hủy được")
}

func TestModifyOrderUpdatesReceiver(t *testing.T) {
	mem := seededMemory(t)

	st := identityState("lên đơn")
	st.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 100, Subtotal: 100}}
	placed := placeOrder(t, mem, st)

	m := NewModifyOrder(mem.Orders(), logger.NewNop())
	st2 := identityState("đổi giúp em số 0987654321 và địa chỉ: 99 Trần Phú, Đà Nẵng")
	st2.Orders = map[int64]model.Order{placed.OrderID: placed}

	res, err := m.Handle(context.Background(), st2)
	require.NoError(t, err)
	updated := res.Update.Orders[placed.OrderID]
	require.Equal(t, "0987654321", updated.ReceiverPhone)
	require.Equal(t, "99 Trần Phú, Đà Nẵng", updated.ReceiverAddress)
}

func TestModifyOrderListsEditable(t *testing.T) {
	mem := seededMemory(t)

	st := identityState("lên đơn")
	st.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 100, Subtotal: 100}}
	placed := placeOrder(t, mem, st)

	m := NewModifyOrder(mem.Orders(), logger.NewNop())
	st2 := identityState("xem đơn hàng của em")

	res, err := m.Handle(context.Background(), st2)
	require.NoError(t, err)
	require.Len(t, res.Update.Orders, 1)
	require.Contains(t, res.Update.Orders, placed.OrderID)
}

func TestBookingCreatesAppointment(t *testing.T) {
	mem := seededMemory(t)
	b := NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), logger.NewNop())

	st := identityState("Đặt Massage ngày 2026-09-05 lúc 14:00")

	res, err := b.Handle(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Len(t, res.Update.Bookings, 1)

	var booked model.Booking
	for _, bk := range res.Update.Bookings {
		booked = bk
	}
	require.Equal(t, "Massage", booked.ServiceName)
	require.Equal(t, "2026-09-05", booked.BookingDate)
	require.Equal(t, "14:00", booked.StartTime)
	require.Equal(t, "15:00", booked.EndTime)
	require.Equal(t, model.AppointmentBooked, booked.Status)
}

func TestBookingRejectsOverlappingSlot(t *testing.T) {
	mem := seededMemory(t)
	b := NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), logger.NewNop())

	first, err := b.Handle(context.Background(), identityState("Đặt Massage ngày 2026-09-05 lúc 14:00"))
	require.NoError(t, err)
	require.Len(t, first.Update.Bookings, 1)

	// One room, one staff member: 14:30 collides with 14:00-15:00.
	second, err := b.Handle(context.Background(), identityState("Đặt Massage ngày 2026-09-05 lúc 14:30"))
	require.NoError(t, err)
	require.True(t, second.Terminal)
	require.Nil(t, second.Update.Bookings)
	require.Contains(t, second.Reply, "kín lịch")
}

func TestBookingAppliesBufferBetweenSlots(t *testing.T) {
	mem := seededMemory(t)
	b := NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), logger.NewNop())

	_, err := b.Handle(context.Background(), identityState("Đặt Massage ngày 2026-09-05 lúc 14:00"))
	require.NoError(t, err)

	// 15:00 is back to back with 14:00-15:00 and falls inside the
	// buffer; 15:05 does not.
	tooClose, err := b.Handle(context.Background(), identityState("Đặt Massage ngày 2026-09-05 lúc 15:00"))
	require.NoError(t, err)
	require.Nil(t, tooClose.Update.Bookings)

	ok, err := b.Handle(context.Background(), identityState("Đặt Massage ngày 2026-09-05 lúc 15:05"))
	require.NoError(t, err)
	require.Len(t, ok.Update.Bookings, 1)
}

func TestBookingRejectsSlotCrossingMidnight(t *testing.T) {
	mem := seededMemory(t)
	b := NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), logger.NewNop())

	// 90 minutes from 23:00 ends at 00:30 the next day.
	res, err := b.Handle(context.Background(), identityState("Đặt Chăm sóc da ngày 2026-09-05 lúc 23:00"))
	require.NoError(t, err)
	require.True(t, res.Terminal)
	require.Nil(t, res.Update.Bookings)
	require.Contains(t, res.Reply, "qua nửa đêm")

	// Nothing was committed, so the evening stays free for a slot that
	// ends before midnight.
	ok, err := b.Handle(context.Background(), identityState("Đặt Massage ngày 2026-09-05 lúc 22:30"))
	require.NoError(t, err)
	require.Len(t, ok.Update.Bookings, 1)
}

func TestBookingAsksForContactDetails(t *testing.T) {
	mem := seededMemory(t)
	b := NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), logger.NewNop())

	st := state.New("thread-1", "chat-1")
	st.UserInput = "Đặt Massage ngày 2026-09-05 lúc 14:00"

	res, err := b.Handle(context.Background(), st)
	require.NoError(t, err)
	require.Nil(t, res.Update.Bookings)
	require.Contains(t, res.Reply, "số điện thoại")
}

func TestBookingUnknownServiceShowsMenu(t *testing.T) {
	mem := seededMemory(t)
	b := NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), logger.NewNop())

	res, err := b.Handle(context.Background(), identityState("bên mình có dịch vụ gì vậy"))
	require.NoError(t, err)
	require.Contains(t, res.Reply, "Massage")
	require.Contains(t, res.Reply, "Chăm sóc da")
}
