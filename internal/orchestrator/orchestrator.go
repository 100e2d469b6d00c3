// Package orchestrator runs one conversation turn end to end: session
// resolution, checkpoint load, the route/dispatch loop, persistence
// and lifecycle events.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/checkpoint"
	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/router"
	"github.com/anvie-labs/chat-orchestrator/internal/session"
	"github.com/anvie-labs/chat-orchestrator/internal/specialist"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/internal/webhook"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
	"github.com/anvie-labs/chat-orchestrator/pkg/metrics"
)

// DefaultMaxHops bounds the route/dispatch loop within one turn.
const DefaultMaxHops = 5

// Admin commands are intercepted before any routing happens. Reset
// commands match as substrings of the raw input, the delete directive
// matches exactly.
const (
	cmdStart    = "/start"
	cmdRestart  = "/restart"
	cmdDelete   = "/delete"
	cmdDeleteMe = "/delete_me"
)

const (
	welcomeReply      = "Dạ em chào khách ạ! Em là trợ lý của AnVie, khách cần em tư vấn sản phẩm, lên đơn hay đặt lịch đều được ạ."
	fallbackReply     = "Dạ em chưa hiểu ý khách lắm ạ, khách nói rõ hơn giúp em với nhé."
	genericErrorReply = "Dạ hệ thống đang gặp chút trục trặc, khách vui lòng thử lại sau ít phút ạ."
	deletedReply      = "Dạ em đã xóa toàn bộ dữ liệu của khách ạ. Khi nào cần khách cứ nhắn cho em nhé."
	notFoundReply     = "Dạ em chưa có dữ liệu nào của khách để xóa ạ."
	emptyInputReply   = "Dạ khách muốn nhắn gì với em ạ?"
)

// Router decides where one hop goes. *router.Supervisor is the
// production implementation.
type Router interface {
	Route(ctx context.Context, st *state.State, firstHop bool) (*router.Decision, error)
}

// Turn is the outcome of one handled turn.
type Turn struct {
	Reply    string
	ThreadID string

	// Hops is how many specialist dispatches the turn took.
	Hops int
}

// Engine serializes turns per thread and drives the turn pipeline.
type Engine struct {
	sessions *session.Manager
	store    *checkpoint.Store
	router   Router
	handlers map[string]specialist.Handler
	notifier *webhook.Notifier
	logger   *logger.Logger
	maxHops  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// noLock bypasses per-thread serialization. Test hook only: it
	// exposes the lost-update interleaving the lock prevents.
	noLock bool
}

// Options tune the engine.
type Options struct {
	// MaxHops caps specialist dispatches per turn; zero means
	// DefaultMaxHops.
	MaxHops int

	// Notifier, when set, receives a fire-and-forget post per answered
	// turn.
	Notifier *webhook.Notifier
}

// NewEngine creates an engine dispatching to the given specialists.
func NewEngine(
	sessions *session.Manager,
	store *checkpoint.Store,
	rtr Router,
	handlers []specialist.Handler,
	opts Options,
	log *logger.Logger,
) *Engine {
	byName := make(map[string]specialist.Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Engine{
		sessions: sessions,
		store:    store,
		router:   rtr,
		handlers: byName,
		notifier: opts.Notifier,
		logger:   log,
		maxHops:  maxHops,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SpecialistNames returns the registered destinations, for wiring the
// supervisor's label set.
func (e *Engine) SpecialistNames() []string {
	out := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		out = append(out, name)
	}
	return out
}

// HandleTurn runs one turn for chatID. Turns on the same thread are
// serialized; the returned Turn always carries a customer-facing reply,
// even when err is non-nil.
func (e *Engine) HandleTurn(ctx context.Context, chatID, userInput string) (*Turn, error) {
	start := time.Now()
	turn, err := e.handleTurn(ctx, chatID, userInput)
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("error").Inc()
	} else {
		metrics.TurnsTotal.WithLabelValues("ok").Inc()
	}
	return turn, err
}

// Chunk is one piece of a streamed reply. Done marks the end of the
// stream; no chunk follows it.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// HandleTurnStream runs one turn and yields the reply line by line on
// the returned channel. The last chunk has Done set and the channel is
// closed after it, so consumers never block indefinitely. Cancelling
// ctx stops delivery but not the turn itself: external writes already
// issued are allowed to complete.
func (e *Engine) HandleTurnStream(ctx context.Context, chatID, userInput string) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)

		turn, err := e.HandleTurn(context.WithoutCancel(ctx), chatID, userInput)
		if err != nil {
			select {
			case out <- Chunk{Text: turn.Reply, Err: err}:
			case <-ctx.Done():
				return
			}
		} else {
			for _, line := range strings.Split(turn.Reply, "\n") {
				if line == "" {
					continue
				}
				select {
				case out <- Chunk{Text: line}:
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case out <- Chunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out
}

func (e *Engine) handleTurn(ctx context.Context, chatID, userInput string) (*Turn, error) {
	input := strings.TrimSpace(userInput)
	if chatID == "" {
		return &Turn{Reply: genericErrorReply}, fault.Validation("chat_id is required")
	}
	if input == "" {
		return &Turn{Reply: emptyInputReply}, nil
	}

	if strings.Contains(input, cmdStart) || strings.Contains(input, cmdRestart) {
		return e.reset(ctx, chatID)
	}
	if input == cmdDelete || input == cmdDeleteMe {
		return e.deleteCustomer(ctx, chatID)
	}

	res, err := e.sessions.FindOrCreate(ctx, chatID)
	if err != nil {
		return &Turn{Reply: genericErrorReply}, err
	}
	if res.Rotated {
		metrics.SessionRotations.WithLabelValues("auto").Inc()
	}
	if res.PreviousThreadID != "" {
		if err := e.store.Delete(ctx, res.PreviousThreadID); err != nil {
			e.logger.Warn("superseded checkpoint not deleted",
				zap.String("thread_id", res.PreviousThreadID),
				zap.Error(err),
			)
		}
	}

	threadID := res.Session.ThreadID
	unlock := e.lockThread(threadID)
	defer unlock()

	log := e.logger.WithTurn(chatID, threadID)

	st, err := e.store.Get(ctx, threadID)
	if err != nil {
		return &Turn{Reply: genericErrorReply, ThreadID: threadID}, err
	}
	if st == nil {
		st = state.New(threadID, chatID)
	}
	st.UserInput = input

	st, reply, hops, err := e.dispatchLoop(ctx, st, log)
	if err != nil {
		// Nothing is persisted on an aborted turn; the checkpoint stays
		// at the last consistent state.
		log.Error("turn aborted", zap.Error(err), zap.Int("hops", hops))
		return &Turn{Reply: genericErrorReply, ThreadID: threadID, Hops: hops}, err
	}
	metrics.TurnHops.Observe(float64(hops))

	if err := e.store.Put(ctx, threadID, st); err != nil {
		// The customer already has an answer; losing the checkpoint is
		// an ops problem, not a conversation problem.
		log.Error("checkpoint persist failed", zap.Error(err))
	}

	if err := e.sessions.EmitBotResponse(ctx, res.Customer.ID, res.Session.ID); err != nil {
		log.Error("bot response event not recorded", zap.Error(err))
	}

	if e.notifier != nil {
		go func() {
			_ = e.notifier.Notify(context.WithoutCancel(ctx), webhook.Payload{
				ChatID:    chatID,
				ThreadID:  threadID,
				Reply:     reply,
				Timestamp: time.Now().UTC(),
			})
		}()
	}

	return &Turn{Reply: reply, ThreadID: threadID, Hops: hops}, nil
}

// dispatchLoop alternates routing and specialist execution until a
// terminal result or the hop cap.
func (e *Engine) dispatchLoop(ctx context.Context, st *state.State, log *logger.Logger) (*state.State, string, int, error) {
	var reply string
	hops := 0

	for {
		decision, err := e.router.Route(ctx, st, hops == 0)
		if err != nil {
			return st, "", hops, err
		}
		st = state.Apply(st, decision.Update)

		if decision.Destination == state.NextEnd {
			if reply == "" {
				reply = fallbackReply
				st = state.Apply(st, &state.Update{
					Messages: []model.Message{model.AIMessage(fallbackReply, "supervisor")},
				})
			}
			return st, reply, hops, nil
		}

		if hops >= e.maxHops {
			return st, "", hops, fault.RoutingLoop(
				fmt.Sprintf("hop cap %d exceeded at destination %q", e.maxHops, decision.Destination))
		}

		handler, ok := e.handlers[decision.Destination]
		if !ok {
			return st, "", hops, fault.Infrastructure(
				fmt.Sprintf("no specialist registered for %q", decision.Destination), nil)
		}

		metrics.SpecialistDispatches.WithLabelValues(decision.Destination).Inc()
		log.Debug("dispatching specialist",
			zap.String("destination", decision.Destination),
			zap.Int("hop", hops),
		)

		result, err := handler.Handle(ctx, st)
		if err != nil {
			return st, "", hops, err
		}

		st = state.Apply(st, result.Update)
		reply = result.Reply
		hops++

		if result.Terminal {
			return st, reply, hops, nil
		}
	}
}

// reset rotates the thread for /start and /restart and drops the
// superseded checkpoint.
func (e *Engine) reset(ctx context.Context, chatID string) (*Turn, error) {
	res, err := e.sessions.Reset(ctx, chatID)
	if err != nil {
		return &Turn{Reply: genericErrorReply}, err
	}
	metrics.SessionRotations.WithLabelValues("reset").Inc()

	if res.PreviousThreadID != "" {
		if err := e.store.Delete(ctx, res.PreviousThreadID); err != nil {
			e.logger.Warn("superseded checkpoint not deleted",
				zap.String("thread_id", res.PreviousThreadID),
				zap.Error(err),
			)
		}
	}

	e.logger.Info("conversation reset",
		zap.String("chat_id", chatID),
		zap.String("thread_id", res.Session.ThreadID),
	)
	return &Turn{Reply: welcomeReply, ThreadID: res.Session.ThreadID}, nil
}

// deleteCustomer removes the customer, their sessions, events and
// checkpoints.
func (e *Engine) deleteCustomer(ctx context.Context, chatID string) (*Turn, error) {
	threadID, err := e.sessions.ActiveThread(ctx, chatID)
	if err != nil {
		return &Turn{Reply: genericErrorReply}, err
	}
	if threadID != "" {
		if err := e.store.Delete(ctx, threadID); err != nil {
			return &Turn{Reply: genericErrorReply}, err
		}
	}

	deleted, err := e.sessions.Delete(ctx, chatID)
	if err != nil {
		return &Turn{Reply: genericErrorReply}, err
	}
	if !deleted {
		return &Turn{Reply: notFoundReply}, nil
	}

	e.logger.Info("customer deleted", zap.String("chat_id", chatID))
	return &Turn{Reply: deletedReply}, nil
}

// lockThread serializes turns per thread id.
func (e *Engine) lockThread(threadID string) func() {
	if e.noLock {
		return func() {}
	}

	e.mu.Lock()
	l, ok := e.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[threadID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
