// Package specialist contains the domain handlers the router
// dispatches to: catalog search, cart management, order management
// and appointment booking.
package specialist

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
)

// Result is a specialist's proposal for one hop: a partial state
// update, the user-facing reply and whether the turn is finished.
type Result struct {
	Update *state.Update
	Reply  string

	// Terminal is false only when the specialist genuinely expects
	// another specialist hop within the same turn.
	Terminal bool
}

// Handler is one domain specialist.
type Handler interface {
	Name() string
	Handle(ctx context.Context, st *state.State) (*Result, error)
}

// newResult builds a Result whose update appends the specialist's AI
// message and, when terminal, marks the turn as ended.
func newResult(name, reply string, terminal bool) *Result {
	u := &state.Update{
		Messages: []model.Message{model.AIMessage(reply, name)},
	}
	if terminal {
		end := state.NextEnd
		u.Next = &end
	}
	return &Result{Update: u, Reply: reply, Terminal: terminal}
}

var numberPattern = regexp.MustCompile(`\d+`)

// extractNumbers returns every integer literal in the input, in order.
func extractNumbers(input string) []int64 {
	var out []int64
	for _, m := range numberPattern.FindAllString(input, -1) {
		n, err := strconv.ParseInt(m, 10, 64)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

// containsAny reports whether the lowercased input contains any of the
// given markers.
func containsAny(input string, markers ...string) bool {
	lowered := strings.ToLower(input)
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

func formatVND(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String() + " VNĐ"
}
