// Package checkpoint provides the two-tier conversation-state store:
// a volatile in-process tier for intra-turn continuity and a durable
// tier that survives restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
	"github.com/anvie-labs/chat-orchestrator/pkg/metrics"
)

// DurableTier persists state blobs keyed by thread id. Implementations
// include the repository state store and the JetStream KV bucket.
type DurableTier interface {
	Load(ctx context.Context, threadID string) ([]byte, error)
	Save(ctx context.Context, threadID string, blob []byte) error
	Delete(ctx context.Context, threadID string) error
}

type entry struct {
	st      *state.State
	touched time.Time
}

// Store is the thread-keyed checkpoint store.
type Store struct {
	durable DurableTier
	logger  *logger.Logger
	now     func() time.Time

	mu       sync.RWMutex
	volatile map[string]*entry
}

// New creates a store over the given durable tier.
func New(durable DurableTier, log *logger.Logger) *Store {
	return &Store{
		durable:  durable,
		logger:   log,
		now:      time.Now,
		volatile: make(map[string]*entry),
	}
}

// Get returns the state for threadID, consulting the volatile tier
// first and falling back to the durable tier. Returns (nil, nil) when
// no checkpoint exists anywhere.
func (s *Store) Get(ctx context.Context, threadID string) (*state.State, error) {
	s.mu.RLock()
	e, ok := s.volatile[threadID]
	s.mu.RUnlock()
	if ok {
		return e.st.Clone(), nil
	}

	blob, err := s.durable.Load(ctx, threadID)
	if err != nil {
		return nil, fault.Infrastructure("checkpoint load", err)
	}
	if blob == nil {
		return nil, nil
	}

	var st state.State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fault.Infrastructure("checkpoint decode", err)
	}

	s.mu.Lock()
	s.volatile[threadID] = &entry{st: st.Clone(), touched: s.now()}
	s.mu.Unlock()

	return &st, nil
}

// Put writes st to both tiers. A durable write failure is returned so
// the caller can log it as fatal-for-ops; the volatile tier is updated
// regardless, keeping the reply path consistent within this process.
func (s *Store) Put(ctx context.Context, threadID string, st *state.State) error {
	s.mu.Lock()
	s.volatile[threadID] = &entry{st: st.Clone(), touched: s.now()}
	s.mu.Unlock()

	blob, err := json.Marshal(st)
	if err != nil {
		return fault.Infrastructure("checkpoint encode", err)
	}
	if err := s.durable.Save(ctx, threadID, blob); err != nil {
		return fault.Infrastructure("checkpoint save", err)
	}
	return nil
}

// Delete removes the checkpoint from both tiers. Deleting a missing
// key is a no-op; session-expiry flows call this unconditionally.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.volatile, threadID)
	s.mu.Unlock()

	if err := s.durable.Delete(ctx, threadID); err != nil {
		return fault.Infrastructure("checkpoint delete", err)
	}
	return nil
}

// Sweep evicts volatile entries idle for longer than ttl. Evicted
// entries are already durably persisted by Put, so no data is lost.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.volatile {
		if e.touched.Before(cutoff) {
			delete(s.volatile, id)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					metrics.CheckpointEvictions.Add(float64(n))
					s.logger.Debug("evicted idle checkpoints", zap.Int("count", n))
				}
			}
		}
	}()
}
