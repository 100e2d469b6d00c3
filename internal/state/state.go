// Package state holds the canonical per-conversation record and the
// merge policy that folds specialist updates into it.
package state

import (
	"github.com/anvie-labs/chat-orchestrator/internal/model"
)

// Terminal sentinels for the Next field.
const (
	// NextEnd signals that the turn is finished.
	NextEnd = "__end__"
)

// State is the canonical record for one conversation thread.
//
// Scalar identity fields are pointers so that "absent" and "empty" stay
// distinguishable; last non-null wins on merge. Domain collections are
// keyed by domain-stable ids, never by position.
type State struct {
	Messages  []model.Message `json:"messages"`
	UserInput string          `json:"user_input"`
	ThreadID  string          `json:"thread_id"`
	ChatID    string          `json:"chat_id"`
	Next      string          `json:"next"`

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

// New returns a fresh state for the given thread and chat identity.
func New(threadID, chatID string) *State {
	return &State{
		Messages: []model.Message{},
		ThreadID: threadID,
		ChatID:   chatID,
	}
}

// LastMessage returns the most recent message, or a zero Message when
// the history is empty.
func (s *State) LastMessage() model.Message {
	if len(s.Messages) == 0 {
		return model.Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// Clone returns a copy of s safe to mutate independently. Collection
// maps are copied one level deep; record values are copied wholesale,
// which is enough because the merge policy only ever replaces entire
// top-level collections.
func (s *State) Clone() *State {
	out := *s
	out.Messages = append([]model.Message(nil), s.Messages...)
	out.SeenProducts = cloneMap(s.SeenProducts)
	out.Cart = cloneMap(s.Cart)
	out.Orders = cloneMap(s.Orders)
	out.Bookings = cloneMap(s.Bookings)
	return &out
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	if m == nil {
		return nil
	}
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
