package specialist

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

const editableOrderLimit = 5

var phonePattern = regexp.MustCompile(`\b0\d{8,10}\b`)

// ModifyOrder handles changes to existing orders: listing editable
// orders, cancelling and updating receiver information.
type ModifyOrder struct {
	orders repository.OrderRepo
	logger *logger.Logger
}

// NewModifyOrder creates the order-modification specialist.
func NewModifyOrder(orders repository.OrderRepo, log *logger.Logger) *ModifyOrder {
	return &ModifyOrder{orders: orders, logger: log}
}

func (m *ModifyOrder) Name() string { return "modify_order" }

func (m *ModifyOrder) Handle(ctx context.Context, st *state.State) (*Result, error) {
	if st.CustomerID == nil {
		return newResult(m.Name(),
			"Dạ em chưa có thông tin của khách, khách nhắn lại giúp em sau ít phút nhé.",
			true), nil
	}

	switch {
	case containsAny(st.UserInput, "hủy", "huy don", "huỷ"):
		return m.cancel(ctx, st)
	case phonePattern.MatchString(st.UserInput) || containsAny(st.UserInput, "địa chỉ", "dia chi", "người nhận", "nguoi nhan"):
		return m.updateReceiver(ctx, st)
	default:
		return m.list(ctx, st)
	}
}

// targetOrderID picks the order the customer refers to: an explicit id
// in the input, or the only order in state.
func (m *ModifyOrder) targetOrderID(st *state.State) (int64, bool) {
	for _, n := range extractNumbers(st.UserInput) {
		if _, ok := st.Orders[n]; ok {
			return n, true
		}
	}
	if len(st.Orders) == 1 {
		for id := range st.Orders {
			return id, true
		}
	}
	return 0, false
}

func (m *ModifyOrder) cancel(ctx context.Context, st *state.State) (*Result, error) {
	id, ok := m.targetOrderID(st)
	if !ok {
		return newResult(m.Name(),
			"Dạ khách cho em xin mã đơn hàng muốn hủy nhé.",
			true), nil
	}

	cancelled, err := m.orders.Cancel(ctx, id)
	if err != nil {
		return nil, fault.Infrastructure("order cancel", err)
	}
	if cancelled == nil {
		return newResult(m.Name(),
			fmt.Sprintf("Dạ em chưa hủy được đơn %d, có thể đơn đã hủy hoặc đã giao ạ. Khách kiểm tra lại giúp em nhé.", id),
			true), nil
	}

	m.logger.Info("order cancelled", zap.Int64("order_id", id))

	orders := replaceOrder(st.Orders, *cancelled)
	res := newResult(m.Name(),
		fmt.Sprintf("Dạ em đã hủy đơn %d cho khách ạ.", id),
		true)
	res.Update.Orders = orders
	return res, nil
}

func (m *ModifyOrder) updateReceiver(ctx context.Context, st *state.State) (*Result, error) {
	id, ok := m.targetOrderID(st)
	if !ok {
		return newResult(m.Name(),
			"Dạ em chưa xác định được đơn hàng khách muốn chỉnh sửa, khách cho em xin mã đơn nhé.",
			true), nil
	}

	var patch repository.ReceiverPatch
	if phone := phonePattern.FindString(st.UserInput); phone != "" {
		patch.Phone = &phone
	}
	if idx := strings.Index(strings.ToLower(st.UserInput), "địa chỉ"); idx >= 0 {
		addr := strings.TrimSpace(st.UserInput[idx+len("địa chỉ"):])
		addr = strings.TrimLeft(addr, ":,. ")
		if addr != "" {
			patch.Address = &addr
		}
	}
	if patch.Phone == nil && patch.Address == nil {
		return newResult(m.Name(),
			"Dạ khách muốn đổi thông tin gì của đơn ạ? Khách ghi rõ số điện thoại hoặc địa chỉ mới giúp em nhé.",
			true), nil
	}

	updated, err := m.orders.UpdateReceiver(ctx, id, patch)
	if err != nil {
		return nil, fault.Infrastructure("order receiver update", err)
	}
	if updated == nil {
		return newResult(m.Name(),
			"Dạ em chưa cập nhật được thông tin người nhận, em xin lỗi khách và sẽ khắc phục sớm nhất ạ.",
			true), nil
	}

	// Re-read so state reflects the system of record.
	canonical, err := m.orders.Details(ctx, id)
	if err != nil {
		return nil, fault.Infrastructure("order details", err)
	}
	if canonical == nil {
		canonical = updated
	}

	res := newResult(m.Name(),
		"Dạ em đã cập nhật thông tin người nhận ạ.\n"+formatOrder(canonical),
		true)
	res.Update.Orders = replaceOrder(st.Orders, *canonical)
	return res, nil
}

func (m *ModifyOrder) list(ctx context.Context, st *state.State) (*Result, error) {
	editable, err := m.orders.Editable(ctx, *st.CustomerID, editableOrderLimit)
	if err != nil {
		return nil, fault.Infrastructure("editable orders", err)
	}
	if len(editable) == 0 {
		return newResult(m.Name(),
			"Dạ khách chưa có đơn hàng nào có thể chỉnh sửa ạ.",
			true), nil
	}

	orders := make(map[int64]model.Order, len(editable))
	var b strings.Builder
	b.WriteString("Dạ đây là các đơn hàng của khách ạ:\n")
	for i, o := range editable {
		orders[o.OrderID] = o
		fmt.Fprintf(&b, "Đơn thứ %d:\n%s\n", i+1, formatOrder(&o))
	}

	res := newResult(m.Name(), b.String(), true)
	res.Update.Orders = orders
	return res, nil
}

func replaceOrder(prior map[int64]model.Order, o model.Order) map[int64]model.Order {
	out := make(map[int64]model.Order, len(prior)+1)
	for k, v := range prior {
		out[k] = v
	}
	out[o.OrderID] = o
	return out
}
