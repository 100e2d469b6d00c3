package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
)

// Update is a partial-fields proposal from a specialist.
//
// Nil means "leave the field untouched". Messages are appended, never
// replaced. A non-nil collection map replaces the whole collection,
// so an empty non-nil map clears it.
type Update struct {
	Messages  []model.Message `json:"messages,omitempty"`
	UserInput *string         `json:"user_input,omitempty"`
	Next      *string         `json:"next,omitempty"`

	CustomerID *int64  `json:"customer_id,omitempty"`
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Address    *string `json:"address,omitempty"`

	SeenProducts map[int64]model.SeenProduct `json:"seen_products,omitempty"`
	Cart         map[int64]model.CartLine    `json:"cart,omitempty"`
	Orders       map[int64]model.Order       `json:"orders,omitempty"`
	Bookings     map[int64]model.Booking     `json:"bookings,omitempty"`
}

// updateFields is the closed set of field names DecodeUpdate accepts.
var updateFields = map[string]struct{}{
	"messages":      {},
	"user_input":    {},
	"next":          {},
	"customer_id":   {},
	"name":          {},
	"phone":         {},
	"email":         {},
	"address":       {},
	"seen_products": {},
	"cart":          {},
	"orders":        {},
	"bookings":      {},
}

// Apply folds u into s and returns the resulting state. It is a pure
// function of its inputs: s is not mutated and no I/O happens.
func Apply(s *State, u *Update) *State {
	out := s.Clone()
	if u == nil {
		return out
	}

	out.Messages = append(out.Messages, u.Messages...)

	if u.UserInput != nil {
		out.UserInput = *u.UserInput
	}
	if u.Next != nil {
		out.Next = *u.Next
	}

	if u.CustomerID != nil {
		out.CustomerID = u.CustomerID
	}
	if u.Name != nil {
		out.Name = u.Name
	}
	if u.Phone != nil {
		out.Phone = u.Phone
	}
	if u.Email != nil {
		out.Email = u.Email
	}
	if u.Address != nil {
		out.Address = u.Address
	}

	if u.SeenProducts != nil {
		out.SeenProducts = cloneMap(u.SeenProducts)
	}
	if u.Cart != nil {
		out.Cart = cloneMap(u.Cart)
	}
	if u.Orders != nil {
		out.Orders = cloneMap(u.Orders)
	}
	if u.Bookings != nil {
		out.Bookings = cloneMap(u.Bookings)
	}

	return out
}

// DecodeUpdate converts a loosely-typed field map into an Update.
// Unknown fields are rejected with a schema fault rather than ignored,
// so a misbehaving producer cannot silently corrupt state.
func DecodeUpdate(fields map[string]any) (*Update, error) {
	for name := range fields {
		if _, ok := updateFields[name]; !ok {
			return nil, fault.Schema(fmt.Sprintf("unknown update field %q", name))
		}
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fault.Schema(fmt.Sprintf("unencodable update: %v", err))
	}

	var u Update
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		return nil, fault.Schema(fmt.Sprintf("malformed update: %v", err))
	}
	return &u, nil
}
