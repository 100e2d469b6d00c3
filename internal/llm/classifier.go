package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
)

// classifierWindow caps how much history is sent to the model.
const classifierWindow = 10

// Classifier maps a conversation turn to a specialist destination
// using a single cheap completion. The model must answer with exactly
// one label from the routable set.
type Classifier struct {
	client       Client
	model        string
	destinations []string
}

// NewClassifier creates a Classifier routing to the given destination
// labels.
func NewClassifier(client Client, model string, destinations []string) *Classifier {
	return &Classifier{client: client, model: model, destinations: destinations}
}

// Classify returns the destination label for the current turn.
func (c *Classifier) Classify(ctx context.Context, st *state.State) (string, error) {
	resp, err := c.client.Complete(ctx, &CompletionRequest{
		Model:     c.model,
		MaxTokens: 16,
		Messages:  c.prompt(st),
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return c.normalize(resp.Content), nil
}

func (c *Classifier) prompt(st *state.State) []ChatMessage {
	var b strings.Builder
	b.WriteString("You route a customer-support conversation to one worker.\n")
	b.WriteString("Workers: ")
	b.WriteString(strings.Join(c.destinations, ", "))
	b.WriteString(".\n")
	b.WriteString("Answer " + state.NextEnd + " when the conversation needs no worker.\n")
	b.WriteString("Answer with exactly one label and nothing else.\n\n")

	history := st.Messages
	if len(history) > classifierWindow {
		history = history[len(history)-classifierWindow:]
	}
	for _, msg := range history {
		role := "customer"
		if msg.Role == model.RoleAI {
			role = "assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	fmt.Fprintf(&b, "customer: %s\n", st.UserInput)

	return []ChatMessage{{Role: "user", Content: b.String()}}
}

// normalize maps the raw completion onto a known label. Unmatched
// output is returned verbatim so the caller can reject it.
func (c *Classifier) normalize(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "\"'`.:")

	if cleaned == state.NextEnd || cleaned == "end" || cleaned == "finish" {
		return state.NextEnd
	}
	for _, d := range c.destinations {
		if cleaned == d {
			return d
		}
	}
	for _, d := range c.destinations {
		if strings.Contains(cleaned, d) {
			return d
		}
	}
	return cleaned
}
