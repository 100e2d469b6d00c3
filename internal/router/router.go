// Package router classifies each turn and selects the specialist to
// dispatch.
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

// Classifier maps the conversation context to one destination label.
// It is injected; the engine only assumes it returns a member of the
// enumerated label set.
type Classifier interface {
	Classify(ctx context.Context, st *state.State) (string, error)
}

// Decision is the outcome of routing one hop.
type Decision struct {
	// Destination is a registered specialist name or state.NextEnd.
	Destination string

	// Update carries the user message append and any identity fields
	// resolved during this hop.
	Update *state.Update
}

// Supervisor routes turns. It performs identity resolution for
// unresolved customers and otherwise mutates nothing beyond the
// message history; all business side effects live in specialists.
type Supervisor struct {
	classifier Classifier
	customers  repository.CustomerRepo
	known      map[string]struct{}
	logger     *logger.Logger
}

// NewSupervisor creates a supervisor routing to the given specialist
// names.
func NewSupervisor(classifier Classifier, customers repository.CustomerRepo, specialists []string, log *logger.Logger) *Supervisor {
	known := make(map[string]struct{}, len(specialists))
	for _, name := range specialists {
		known[name] = struct{}{}
	}
	return &Supervisor{
		classifier: classifier,
		customers:  customers,
		known:      known,
		logger:     log,
	}
}

// Route resolves identity if needed, appends the user message to the
// history and asks the classifier for exactly one destination.
// Classifier failures are fatal for the turn: ambiguity is surfaced,
// never guessed around.
func (s *Supervisor) Route(ctx context.Context, st *state.State, firstHop bool) (*Decision, error) {
	update := &state.Update{}

	if st.CustomerID == nil {
		if err := s.resolveIdentity(ctx, st, update); err != nil {
			return nil, err
		}
		// Classification sees the resolved identity.
		st = state.Apply(st, update)
	}

	if firstHop && st.UserInput != "" {
		update.Messages = append(update.Messages, model.HumanMessage(st.UserInput))
	}

	label, err := s.classifier.Classify(ctx, st)
	if err != nil {
		return nil, fault.Infrastructure("classifier", err)
	}

	if label != state.NextEnd {
		if _, ok := s.known[label]; !ok {
			return nil, fault.Infrastructure(fmt.Sprintf("classifier returned unknown destination %q", label), nil)
		}
	}

	next := label
	update.Next = &next

	s.logger.Debug("routed turn",
		zap.String("thread_id", st.ThreadID),
		zap.String("destination", label),
	)

	return &Decision{Destination: label, Update: update}, nil
}

func (s *Supervisor) resolveIdentity(ctx context.Context, st *state.State, update *state.Update) error {
	customer, err := s.customers.FindByChatID(ctx, st.ChatID)
	if err != nil {
		return fault.Infrastructure("customer lookup", err)
	}
	if customer == nil {
		customer, err = s.customers.Create(ctx, st.ChatID)
		if err != nil {
			return fault.Infrastructure("customer create", err)
		}
	}
	if customer == nil {
		return fault.Business("customer create returned no row")
	}

	update.CustomerID = &customer.ID
	update.Name = customer.Name
	update.Phone = customer.Phone
	update.Email = customer.Email
	update.Address = customer.Address
	return nil
}
