package specialist

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

// Cart manages the customer's cart. Updates always replace the whole
// cart collection.
type Cart struct {
	logger *logger.Logger
}

// NewCart creates the cart specialist.
func NewCart(log *logger.Logger) *Cart {
	return &Cart{logger: log}
}

func (c *Cart) Name() string { return "cart" }

// Handle interprets the turn as a cart mutation: clearing, removing a
// line or adding a seen product with a quantity.
func (c *Cart) Handle(_ context.Context, st *state.State) (*Result, error) {
	input := st.UserInput

	if containsAny(input, "xóa giỏ", "xoa gio", "bỏ hết", "bo het") {
		res := newResult(c.Name(), "Dạ em đã xóa hết giỏ hàng của khách ạ.", true)
		res.Update.Cart = map[int64]model.CartLine{}
		return res, nil
	}

	if len(st.SeenProducts) == 0 {
		return newResult(c.Name(),
			"Dạ khách xem qua sản phẩm trước giúp em nhé, rồi em thêm vào giỏ cho khách ạ.",
			true), nil
	}

	product, quantity := c.resolveLine(st)
	if product == nil {
		return newResult(c.Name(),
			"Dạ khách muốn thêm sản phẩm nào vào giỏ ạ? Khách cho em xin mã sản phẩm nhé.",
			true), nil
	}

	newCart := make(map[int64]model.CartLine, len(st.Cart)+1)
	for k, v := range st.Cart {
		newCart[k] = v
	}

	removing := containsAny(input, "xóa", "xoa", "bỏ", "bo khoi")
	if removing {
		delete(newCart, product.ProductDesID)
	} else {
		newCart[product.ProductDesID] = model.CartLine{
			ProductDesID: product.ProductDesID,
			Quantity:     quantity,
			Price:        product.Price,
			Subtotal:     quantity * product.Price,
		}
	}

	var total int64
	var b strings.Builder
	if removing {
		fmt.Fprintf(&b, "Dạ em đã bỏ %s khỏi giỏ ạ.\n", product.ProductName)
	} else {
		fmt.Fprintf(&b, "Dạ em đã thêm %d x %s vào giỏ ạ.\n", quantity, product.ProductName)
	}
	b.WriteString("Giỏ hàng của khách hiện có:\n")
	for _, line := range newCart {
		name := fmt.Sprintf("mã %d", line.ProductDesID)
		if p, ok := st.SeenProducts[line.ProductDesID]; ok {
			name = p.ProductName
		}
		fmt.Fprintf(&b, "- %s: %d x %s = %s\n", name, line.Quantity, formatVND(line.Price), formatVND(line.Subtotal))
		total += line.Subtotal
	}
	fmt.Fprintf(&b, "Tạm tính: %s", formatVND(total))

	c.logger.Debug("cart updated",
		zap.String("thread_id", st.ThreadID),
		zap.Int("lines", len(newCart)),
	)

	// When the customer asked to check out in the same breath, hand
	// control back to the router for the order specialist.
	terminal := !containsAny(input, "lên đơn", "len don", "đặt hàng", "dat hang", "chốt đơn", "chot don")

	res := newResult(c.Name(), b.String(), terminal)
	res.Update.Cart = newCart
	return res, nil
}

// resolveLine finds which seen product the input refers to and the
// requested quantity. Numbers matching a seen product id select it;
// a remaining number is the quantity, defaulting to 1. A product name
// substring also selects.
func (c *Cart) resolveLine(st *state.State) (*model.SeenProduct, int64) {
	var product *model.SeenProduct
	quantity := int64(1)

	numbers := extractNumbers(st.UserInput)
	for _, n := range numbers {
		if p, ok := st.SeenProducts[n]; ok && product == nil {
			cp := p
			product = &cp
			continue
		}
		if n > 0 && n < 1000 {
			quantity = n
		}
	}

	if product == nil {
		lowered := strings.ToLower(st.UserInput)
		for _, p := range st.SeenProducts {
			if strings.Contains(lowered, strings.ToLower(p.ProductName)) {
				cp := p
				product = &cp
				break
			}
		}
	}

	// A lone seen product is an unambiguous target.
	if product == nil && len(st.SeenProducts) == 1 {
		for _, p := range st.SeenProducts {
			cp := p
			product = &cp
		}
	}

	return product, quantity
}
