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

const catalogSearchLimit = 5

// Catalog answers product questions. On a hit it replaces the
// seen_products collection with the fresh result set.
type Catalog struct {
	products repository.ProductRepo
	logger   *logger.Logger
}

// NewCatalog creates the catalog specialist.
func NewCatalog(products repository.ProductRepo, log *logger.Logger) *Catalog {
	return &Catalog{products: products, logger: log}
}

func (c *Catalog) Name() string { return "catalog" }

// Handle searches the catalog with the raw user input as keyword.
func (c *Catalog) Handle(ctx context.Context, st *state.State) (*Result, error) {
	keyword := strings.TrimSpace(st.UserInput)
	if keyword == "" {
		return newResult(c.Name(), "Dạ khách muốn tìm sản phẩm nào ạ? Khách cho em xin tên sản phẩm nhé.", true), nil
	}

	found, err := c.products.SearchByKeyword(ctx, keyword, catalogSearchLimit)
	if err != nil {
		return nil, fault.Infrastructure("product search", err)
	}
	if len(found) == 0 {
		return newResult(c.Name(),
			"Dạ em chưa tìm thấy sản phẩm phù hợp. Khách mô tả rõ hơn giúp em với ạ.",
			true), nil
	}

	seen := make(map[int64]model.SeenProduct, len(found))
	var b strings.Builder
	b.WriteString("Dạ em tìm được các sản phẩm sau ạ:\n")
	for i, p := range found {
		seen[p.ProductDesID] = p
		fmt.Fprintf(&b, "%d. %s (mã %d)", i+1, p.ProductName, p.ProductDesID)
		if p.VarianceDes != "" {
			fmt.Fprintf(&b, " - %s", p.VarianceDes)
		}
		fmt.Fprintf(&b, " - giá %s, còn %d sản phẩm\n", formatVND(p.Price), p.Inventory)
	}
	b.WriteString("Khách muốn em thêm sản phẩm nào vào giỏ không ạ?")

	c.logger.Debug("catalog search",
		zap.String("keyword", keyword),
		zap.Int("results", len(found)),
	)

	res := newResult(c.Name(), b.String(), true)
	res.Update.SeenProducts = seen
	return res, nil
}
