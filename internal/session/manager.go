// Package session manages customer and session lifecycle: find-or-create,
// inactivity expiry and thread rotation.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

// Resolution is the outcome of resolving a chat id to a live session.
type Resolution struct {
	Customer model.Customer
	Session  model.Session

	// IsNew is true when the customer was created on this contact.
	IsNew bool

	// Rotated is true when a fresh thread id was minted, either by
	// inactivity expiry or an explicit reset.
	Rotated bool

	// PreviousThreadID is set when Rotated, so the caller can drop the
	// superseded checkpoint.
	PreviousThreadID string
}

// Manager drives the per-customer session state machine.
type Manager struct {
	customers repository.CustomerRepo
	sessions  repository.SessionRepo
	events    repository.EventRepo
	logger    *logger.Logger

	// inactivity is the expiry threshold (N_DAYS as a duration).
	inactivity time.Duration

	now         func() time.Time
	newThreadID func() string

	// Resolution is serialized per chat id: without this, two turns
	// that both observe an expired session each mint a replacement,
	// leaving two active sessions for one customer.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a session manager.
func NewManager(
	customers repository.CustomerRepo,
	sessions repository.SessionRepo,
	events repository.EventRepo,
	inactivity time.Duration,
	log *logger.Logger,
) *Manager {
	return &Manager{
		customers:   customers,
		sessions:    sessions,
		events:      events,
		logger:      log,
		inactivity:  inactivity,
		now:         time.Now,
		newThreadID: uuid.NewString,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockChat serializes lifecycle operations for one chat id.
func (m *Manager) lockChat(chatID string) func() {
	m.mu.Lock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[chatID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// FindOrCreate resolves chatID to a customer and an active session,
// creating or rotating as the lifecycle requires. All timestamp
// comparisons happen in UTC.
func (m *Manager) FindOrCreate(ctx context.Context, chatID string) (*Resolution, error) {
	unlock := m.lockChat(chatID)
	defer unlock()

	customer, err := m.customers.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fault.Infrastructure("customer lookup", err)
	}

	if customer == nil {
		return m.createCustomer(ctx, chatID)
	}

	active, err := m.sessions.ActiveByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fault.Infrastructure("session lookup", err)
	}

	now := m.now().UTC()

	if active == nil {
		// Customer exists but has no live session: mint a fresh thread.
		sess, err := m.rotate(ctx, customer.ID, nil, now)
		if err != nil {
			return nil, err
		}
		if err := m.emit(ctx, customer.ID, sess.ID, model.EventReturningCustomer, now); err != nil {
			return nil, err
		}
		return &Resolution{Customer: *customer, Session: *sess, Rotated: true}, nil
	}

	elapsed := now.Sub(active.LastActiveAt.UTC())
	if elapsed > m.inactivity {
		m.logger.Info("session expired, rotating thread",
			zap.Int64("customer_id", customer.ID),
			zap.Duration("idle", elapsed),
		)
		sess, err := m.rotate(ctx, customer.ID, active, now)
		if err != nil {
			return nil, err
		}
		if err := m.emit(ctx, customer.ID, sess.ID, model.EventReturningCustomer, now); err != nil {
			return nil, err
		}
		return &Resolution{
			Customer:         *customer,
			Session:          *sess,
			Rotated:          true,
			PreviousThreadID: active.ThreadID,
		}, nil
	}

	touched, err := m.sessions.Touch(ctx, active.ID, now)
	if err != nil {
		return nil, fault.Infrastructure("session touch", err)
	}
	if touched == nil {
		return nil, fault.Business("session touch returned no row")
	}

	return &Resolution{Customer: *customer, Session: *touched}, nil
}

// Reset forces a fresh thread for chatID regardless of elapsed time,
// used by the /start and /restart commands. A brand new customer is
// created when none exists.
func (m *Manager) Reset(ctx context.Context, chatID string) (*Resolution, error) {
	unlock := m.lockChat(chatID)
	defer unlock()

	customer, err := m.customers.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fault.Infrastructure("customer lookup", err)
	}
	if customer == nil {
		return m.createCustomer(ctx, chatID)
	}

	active, err := m.sessions.ActiveByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fault.Infrastructure("session lookup", err)
	}

	now := m.now().UTC()
	sess, err := m.rotate(ctx, customer.ID, active, now)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Customer: *customer, Session: *sess, Rotated: true}
	if active != nil {
		res.PreviousThreadID = active.ThreadID
	}
	return res, nil
}

// ActiveThread returns the thread id of the customer's live session,
// or "" when the chat id has no customer or no active session.
func (m *Manager) ActiveThread(ctx context.Context, chatID string) (string, error) {
	customer, err := m.customers.FindByChatID(ctx, chatID)
	if err != nil {
		return "", fault.Infrastructure("customer lookup", err)
	}
	if customer == nil {
		return "", nil
	}
	active, err := m.sessions.ActiveByCustomer(ctx, customer.ID)
	if err != nil {
		return "", fault.Infrastructure("session lookup", err)
	}
	if active == nil {
		return "", nil
	}
	return active.ThreadID, nil
}

// Delete hard-deletes the customer and everything attached to it.
// Returns false when the chat id is unknown.
func (m *Manager) Delete(ctx context.Context, chatID string) (bool, error) {
	unlock := m.lockChat(chatID)
	defer unlock()

	deleted, err := m.customers.Delete(ctx, chatID)
	if err != nil {
		return false, fault.Infrastructure("customer delete", err)
	}
	return deleted, nil
}

func (m *Manager) createCustomer(ctx context.Context, chatID string) (*Resolution, error) {
	now := m.now().UTC()

	customer, err := m.customers.Create(ctx, chatID)
	if err != nil {
		return nil, fault.Infrastructure("customer create", err)
	}
	if customer == nil {
		return nil, fault.Business("customer create returned no row")
	}

	sess, err := m.sessions.Create(ctx, customer.ID, m.newThreadID(), now)
	if err != nil {
		return nil, fault.Infrastructure("session create", err)
	}
	if sess == nil {
		return nil, fault.Business("session create returned no row")
	}

	if err := m.emit(ctx, customer.ID, sess.ID, model.EventNewCustomer, now); err != nil {
		return nil, err
	}

	m.logger.Info("new customer",
		zap.Int64("customer_id", customer.ID),
		zap.String("thread_id", sess.ThreadID),
	)

	return &Resolution{Customer: *customer, Session: *sess, IsNew: true, Rotated: true}, nil
}

// rotate creates the replacement session first and only then ends the
// old one. If ending fails the caller gets an error and must retry;
// it must never proceed with an inconsistent thread id.
func (m *Manager) rotate(ctx context.Context, customerID int64, old *model.Session, now time.Time) (*model.Session, error) {
	sess, err := m.sessions.Create(ctx, customerID, m.newThreadID(), now)
	if err != nil {
		return nil, fault.Infrastructure("session create", err)
	}
	if sess == nil {
		return nil, fault.Business("session create returned no row")
	}

	if old != nil {
		ended, err := m.sessions.End(ctx, old.ID, now)
		if err != nil {
			return nil, fault.Infrastructure("session end", err)
		}
		if ended == nil {
			return nil, fault.Business("session end returned no row")
		}
	}

	return sess, nil
}

func (m *Manager) emit(ctx context.Context, customerID, sessionID int64, t model.EventType, now time.Time) error {
	ev, err := m.events.Append(ctx, model.Event{
		CustomerID: customerID,
		SessionID:  sessionID,
		Type:       t,
		Timestamp:  now,
	})
	if err != nil {
		return fault.Infrastructure("event append", err)
	}
	if ev == nil {
		return fault.Business("event append returned no row")
	}
	return nil
}

// EmitBotResponse appends the bot_response_success event after a turn
// has been answered.
func (m *Manager) EmitBotResponse(ctx context.Context, customerID, sessionID int64) error {
	return m.emit(ctx, customerID, sessionID, model.EventBotResponseSuccess, m.now().UTC())
}
