package specialist

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

const (
	// defaultShippingFee is charged on every retail order.
	defaultShippingFee = 50000

	initialOrderStatus = "pending"
)

// Order creates orders from the cart. On success the state's orders
// collection is replaced with the canonical post-write view re-read
// from the repository, and the cart and seen products are cleared.
type Order struct {
	orders repository.OrderRepo
	logger *logger.Logger
}

// NewOrder creates the order specialist.
func NewOrder(orders repository.OrderRepo, log *logger.Logger) *Order {
	return &Order{orders: orders, logger: log}
}

func (o *Order) Name() string { return "order" }

// Handle validates the cart and identity, writes the order and its
// items, then re-reads the canonical order before updating state.
func (o *Order) Handle(ctx context.Context, st *state.State) (*Result, error) {
	if len(st.Cart) == 0 {
		return newResult(o.Name(),
			"Dạ giỏ hàng của khách đang trống ạ. Khách chọn sản phẩm trước rồi em lên đơn giúp khách nhé.",
			true), nil
	}

	if missing := missingIdentity(st); len(missing) > 0 {
		return newResult(o.Name(), missingIdentityReply(st, missing), true), nil
	}

	draft := repository.OrderDraft{
		CustomerID:      *st.CustomerID,
		ShippingFee:     defaultShippingFee,
		ReceiverName:    *st.Name,
		ReceiverPhone:   *st.Phone,
		ReceiverAddress: *st.Address,
		Status:          initialOrderStatus,
	}

	created, err := o.orders.Create(ctx, draft)
	if err != nil {
		return nil, fault.Infrastructure("order create", err)
	}
	if created == nil {
		return newResult(o.Name(),
			"Dạ em chưa tạo được đơn hàng, khách vui lòng thử lại giúp em ạ.",
			true), nil
	}

	items := make([]repository.ItemDraft, 0, len(st.Cart))
	for _, line := range st.Cart {
		items = append(items, repository.ItemDraft{
			ProductDesID: line.ProductDesID,
			Quantity:     line.Quantity,
			Price:        line.Price,
			Subtotal:     line.Subtotal,
		})
	}

	inserted, err := o.orders.AddItems(ctx, created.OrderID, items)
	if err != nil {
		return nil, fault.Infrastructure("order items create", err)
	}
	if inserted == nil {
		return newResult(o.Name(),
			"Dạ em chưa thêm được sản phẩm vào đơn hàng, em xin lỗi khách và sẽ khắc phục sớm nhất ạ.",
			true), nil
	}

	// Re-read the canonical order so state never diverges from the
	// system of record.
	canonical, err := o.orders.Details(ctx, created.OrderID)
	if err != nil {
		return nil, fault.Infrastructure("order details", err)
	}
	if canonical == nil {
		return nil, fault.Infrastructure(fmt.Sprintf("order %d vanished after create", created.OrderID), nil)
	}

	orders := make(map[int64]model.Order, len(st.Orders)+1)
	for k, v := range st.Orders {
		orders[k] = v
	}
	orders[canonical.OrderID] = *canonical

	o.logger.Info("order created",
		zap.Int64("order_id", canonical.OrderID),
		zap.Int64("customer_id", *st.CustomerID),
		zap.Int("items", len(canonical.Items)),
	)

	reply := "Dạ em đã lên đơn thành công cho khách ạ.\n" +
		formatOrder(canonical) +
		"Đơn hàng sẽ được vận chuyển trong 3-5 ngày, nhân viên giao hàng sẽ gọi cho khách ạ."

	res := newResult(o.Name(), reply, true)
	res.Update.Orders = orders
	res.Update.Cart = map[int64]model.CartLine{}
	res.Update.SeenProducts = map[int64]model.SeenProduct{}
	return res, nil
}

// missingIdentity lists the identity fields required before an order
// can be placed.
func missingIdentity(st *state.State) []string {
	var missing []string
	if st.CustomerID == nil {
		missing = append(missing, "mã khách hàng")
	}
	if st.Name == nil || *st.Name == "" {
		missing = append(missing, "tên người nhận")
	}
	if st.Phone == nil || *st.Phone == "" {
		missing = append(missing, "số điện thoại")
	}
	if st.Address == nil || *st.Address == "" {
		missing = append(missing, "địa chỉ nhận hàng")
	}
	return missing
}

func missingIdentityReply(st *state.State, missing []string) string {
	var b strings.Builder
	b.WriteString("Dạ thông tin của khách em đang có:\n")
	fmt.Fprintf(&b, "- Tên người nhận: %s\n", orNone(st.Name))
	fmt.Fprintf(&b, "- Số điện thoại: %s\n", orNone(st.Phone))
	fmt.Fprintf(&b, "- Địa chỉ nhận hàng: %s\n", orNone(st.Address))
	fmt.Fprintf(&b, "Khách cho em xin %s để em lên đơn giúp khách nhé.", strings.Join(missing, ", "))
	return b.String()
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "chưa có"
	}
	return *s
}

// formatOrder renders one order in the reply style used everywhere an
// order is shown to the customer.
func formatOrder(o *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mã đơn: %d\n", o.OrderID)

	index := 1
	for _, item := range o.Items {
		variance := item.VarianceDes
		if variance == "" {
			variance = "Không có"
		}
		fmt.Fprintf(&b, "STT %d: %s (SKU %s, phân loại: %s) - %d x %s = %s\n",
			index, item.ProductName, item.SKU, variance,
			item.Quantity, formatVND(item.Price), formatVND(item.Subtotal))
		index++
	}

	fmt.Fprintf(&b, "Tổng tiền hàng: %s\n", formatVND(o.OrderTotal))
	fmt.Fprintf(&b, "Phí vận chuyển: %s\n", formatVND(o.ShippingFee))
	fmt.Fprintf(&b, "Tổng cộng: %s\n", formatVND(o.GrandTotal))
	fmt.Fprintf(&b, "Người nhận: %s - %s - %s\n", o.ReceiverName, o.ReceiverPhone, o.ReceiverAddress)
	fmt.Fprintf(&b, "Trạng thái: %s\n", o.Status)
	return b.String()
}
