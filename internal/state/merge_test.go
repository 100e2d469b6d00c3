package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
)

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }

func TestApplyScalarLastNonNullWins(t *testing.T) {
	s := New("t1", "c1")
	s.Name = strPtr("Lan")
	s.Phone = strPtr("0901")

	// Nil fields leave old values untouched.
	out := Apply(s, &Update{})
	require.Equal(t, "Lan", *out.Name)
	require.Equal(t, "0901", *out.Phone)

	// Non-nil values overwrite.
	out = Apply(s, &Update{
		Name:       strPtr("Minh"),
		Address:    strPtr("12 Nguyen Trai"),
		CustomerID: intPtr(7),
	})
	require.Equal(t, "Minh", *out.Name)
	require.Equal(t, "0901", *out.Phone)
	require.Equal(t, "12 Nguyen Trai", *out.Address)
	require.Equal(t, int64(7), *out.CustomerID)
}

func TestApplyAppendsMessages(t *testing.T) {
	s := New("t1", "c1")
	s.Messages = []model.Message{model.HumanMessage("xin chao")}

	out := Apply(s, &Update{
		Messages: []model.Message{model.AIMessage("da, em nghe", "catalog")},
	})

	require.Len(t, out.Messages, 2)
	require.Equal(t, model.RoleHuman, out.Messages[0].Role)
	require.Equal(t, model.RoleAI, out.Messages[1].Role)
	// The input state is untouched.
	require.Len(t, s.Messages, 1)
}

func TestApplyCollectionReplacementIsTotal(t *testing.T) {
	s := New("t1", "c1")
	s.Cart = map[int64]model.CartLine{
		7: {ProductDesID: 7, Quantity: 2, Price: 100, Subtotal: 200},
		9: {ProductDesID: 9, Quantity: 1, Price: 50, Subtotal: 50},
	}

	newCart := map[int64]model.CartLine{
		3: {ProductDesID: 3, Quantity: 5, Price: 10, Subtotal: 50},
	}
	out := Apply(s, &Update{Cart: newCart})
	require.Equal(t, newCart, out.Cart)

	// An empty non-nil map clears the collection entirely.
	out = Apply(s, &Update{Cart: map[int64]model.CartLine{}})
	require.Empty(t, out.Cart)
	require.NotNil(t, out.Cart)

	// A nil map leaves it untouched.
	out = Apply(s, &Update{})
	require.Len(t, out.Cart, 2)
}

func TestApplyIdempotentForNonMessageFields(t *testing.T) {
	s := New("t1", "c1")
	s.Cart = map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 5, Subtotal: 5}}

	u := &Update{
		Name: strPtr("Minh"),
		Cart: map[int64]model.CartLine{8: {ProductDesID: 8, Quantity: 2, Price: 3, Subtotal: 6}},
		Orders: map[int64]model.Order{
			55: {OrderID: 55, Status: "pending"},
		},
	}

	once := Apply(s, u)
	twice := Apply(once, u)

	require.Equal(t, once.Name, twice.Name)
	require.Equal(t, once.Cart, twice.Cart)
	require.Equal(t, once.Orders, twice.Orders)
	require.Equal(t, once.SeenProducts, twice.SeenProducts)
}

func TestApplyDoesNotShareCollectionStorage(t *testing.T) {
	s := New("t1", "c1")
	cart := map[int64]model.CartLine{7: {ProductDesID: 7, Quantity: 1, Price: 5, Subtotal: 5}}

	out := Apply(s, &Update{Cart: cart})
	cart[8] = model.CartLine{ProductDesID: 8}
	require.Len(t, out.Cart, 1)
}

func TestDecodeUpdateRejectsUnknownFields(t *testing.T) {
	_, err := DecodeUpdate(map[string]any{
		"cart":         map[string]any{},
		"grand_totals": 99,
	})
	require.Error(t, err)
	require.Equal(t, fault.KindSchema, fault.KindOf(err))
	require.True(t, fault.IsFatal(err))
}

func TestDecodeUpdateKnownFields(t *testing.T) {
	u, err := DecodeUpdate(map[string]any{
		"name": "Minh",
		"cart": map[string]any{
			"7": map[string]any{"product_des_id": 7, "quantity": 2, "price": 100, "subtotal": 200},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Minh", *u.Name)
	require.Equal(t, int64(2), u.Cart[7].Quantity)
}
