package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

type stubClassifier struct {
	label string
	err   error
	seen  *state.State
}

func (c *stubClassifier) Classify(_ context.Context, st *state.State) (string, error) {
	c.seen = st
	return c.label, c.err
}

func newSupervisor(c Classifier) (*Supervisor, *repository.Memory) {
	mem := repository.NewMemory()
	s := NewSupervisor(c, mem, []string{"catalog", "cart", "order"}, logger.NewNop())
	return s, mem
}

func TestRouteResolvesIdentityOnFirstTurn(t *testing.T) {
	cls := &stubClassifier{label: "catalog"}
	s, mem := newSupervisor(cls)

	st := state.New("t1", "c1")
	st.UserInput = "có kem chống nắng không"

	dec, err := s.Route(context.Background(), st, true)
	require.NoError(t, err)
	require.Equal(t, "catalog", dec.Destination)
	require.NotNil(t, dec.Update.CustomerID)

	// The customer row was created as part of resolution.
	c, err := mem.FindByChatID(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, c.ID, *dec.Update.CustomerID)

	// The classifier saw the resolved identity.
	require.NotNil(t, cls.seen.CustomerID)
}

// noRowCustomers answers every lookup and create with no row.
type noRowCustomers struct {
	repository.CustomerRepo
}

func (noRowCustomers) FindByChatID(context.Context, string) (*model.Customer, error) {
	return nil, nil
}

func (noRowCustomers) Create(context.Context, string) (*model.Customer, error) {
	return nil, nil
}

func TestRouteCustomerNoRowIsBusinessFault(t *testing.T) {
	cls := &stubClassifier{label: "catalog"}
	s := NewSupervisor(cls, noRowCustomers{}, []string{"catalog"}, logger.NewNop())

	st := state.New("t1", "c1")
	st.UserInput = "có kem chống nắng không"

	_, err := s.Route(context.Background(), st, true)
	require.Error(t, err)
	require.Equal(t, fault.KindBusiness, fault.KindOf(err))
	require.False(t, fault.IsFatal(err))

	// The turn aborted before classification.
	require.Nil(t, cls.seen)
}

func TestRouteAppendsUserMessageOnFirstHopOnly(t *testing.T) {
	s, _ := newSupervisor(&stubClassifier{label: "cart"})

	st := state.New("t1", "c1")
	st.UserInput = "thêm vào giỏ"

	dec, err := s.Route(context.Background(), st, true)
	require.NoError(t, err)
	require.Len(t, dec.Update.Messages, 1)
	require.Equal(t, model.RoleHuman, dec.Update.Messages[0].Role)

	dec, err = s.Route(context.Background(), st, false)
	require.NoError(t, err)
	require.Empty(t, dec.Update.Messages)
}

func TestRouteClassifierErrorIsFatal(t *testing.T) {
	s, _ := newSupervisor(&stubClassifier{err: errors.New("model timeout")})

	st := state.New("t1", "c1")
	_, err := s.Route(context.Background(), st, true)
	require.Error(t, err)
	require.Equal(t, fault.KindInfrastructure, fault.KindOf(err))
}

func TestRouteRejectsUnknownDestination(t *testing.T) {
	s, _ := newSupervisor(&stubClassifier{label: "weather"})

	st := state.New("t1", "c1")
	_, err := s.Route(context.Background(), st, true)
	require.Error(t, err)
	require.True(t, fault.IsFatal(err))
}

func TestRouteAcceptsEnd(t *testing.T) {
	s, _ := newSupervisor(&stubClassifier{label: state.NextEnd})

	st := state.New("t1", "c1")
	dec, err := s.Route(context.Background(), st, true)
	require.NoError(t, err)
	require.Equal(t, state.NextEnd, dec.Destination)
	require.Equal(t, state.NextEnd, *dec.Update.Next)
}
