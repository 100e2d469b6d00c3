package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

const nDays = 30 * 24 * time.Hour

func newManager(t *testing.T) (*Manager, *repository.Memory) {
	t.Helper()
	mem := repository.NewMemory()
	m := NewManager(mem, mem.Sessions(), mem, nDays, logger.NewNop())
	return m, mem
}

func TestFindOrCreateNewCustomer(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()

	res, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)
	require.True(t, res.IsNew)
	require.True(t, res.Rotated)
	require.Equal(t, "c1", res.Customer.ChatID)
	require.Equal(t, model.SessionActive, res.Session.Status)
	require.NotEmpty(t, res.Session.ThreadID)

	events := mem.Events()
	require.Len(t, events, 1)
	require.Equal(t, model.EventNewCustomer, events[0].Type)
}

func TestFindOrCreateActiveSessionSlidesWindow(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	first, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	m.now = func() time.Time { return later }

	second, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)
	require.False(t, second.IsNew)
	require.False(t, second.Rotated)
	require.Equal(t, first.Session.ThreadID, second.Session.ThreadID)
	require.WithinDuration(t, later.UTC(), second.Session.LastActiveAt, time.Second)
}

func TestExpiryBoundary(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		idle    time.Duration
		expired bool
	}{
		{"one second past threshold", nDays + time.Second, true},
		{"one second before threshold", nDays - time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, mem := newManager(t)

			first, err := m.FindOrCreate(ctx, "c1")
			require.NoError(t, err)

			m.now = func() time.Time { return first.Session.LastActiveAt.Add(tc.idle) }

			second, err := m.FindOrCreate(ctx, "c1")
			require.NoError(t, err)
			require.Equal(t, tc.expired, second.Rotated)

			if tc.expired {
				require.NotEqual(t, first.Session.ThreadID, second.Session.ThreadID)
				require.Equal(t, first.Session.ThreadID, second.PreviousThreadID)

				events := mem.Events()
				require.Equal(t, model.EventReturningCustomer, events[len(events)-1].Type)

				active, err := mem.Sessions().ActiveByCustomer(ctx, first.Customer.ID)
				require.NoError(t, err)
				require.Equal(t, second.Session.ThreadID, active.ThreadID)
			} else {
				require.Equal(t, first.Session.ThreadID, second.Session.ThreadID)
			}
		})
	}
}

func TestThreadIDsNeverReused(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	res, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)

	seen := map[string]bool{res.Session.ThreadID: true}
	clock := res.Session.LastActiveAt

	for i := 0; i < 1000; i++ {
		clock = clock.Add(nDays + time.Minute)
		now := clock
		m.now = func() time.Time { return now }

		res, err = m.FindOrCreate(ctx, "c1")
		require.NoError(t, err)
		require.True(t, res.Rotated)
		require.False(t, seen[res.Session.ThreadID], "thread id reused at expiry %d", i)
		seen[res.Session.ThreadID] = true
		clock = res.Session.LastActiveAt
	}
}

func TestConcurrentExpiryRotatesOnce(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()

	first, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)

	m.now = func() time.Time { return first.Session.LastActiveAt.Add(nDays + time.Hour) }

	const turns = 8
	type outcome struct {
		res *Resolution
		err error
	}
	outs := make(chan outcome, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.FindOrCreate(ctx, "c1")
			outs <- outcome{res: res, err: err}
		}()
	}
	wg.Wait()
	close(outs)

	threads := map[string]bool{}
	rotations := 0
	for o := range outs {
		require.NoError(t, o.err)
		threads[o.res.Session.ThreadID] = true
		if o.res.Rotated {
			rotations++
		}
	}
	require.Len(t, threads, 1, "concurrent expiry minted more than one replacement thread")
	require.Equal(t, 1, rotations)

	// Ending the one live session must leave none behind.
	active, err := mem.Sessions().ActiveByCustomer(ctx, first.Customer.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	_, err = mem.Sessions().End(ctx, active.ID, m.now())
	require.NoError(t, err)
	leftover, err := mem.Sessions().ActiveByCustomer(ctx, first.Customer.ID)
	require.NoError(t, err)
	require.Nil(t, leftover, "a superseded session stayed active")
}

func TestResetForcesRotation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	first, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)

	res, err := m.Reset(ctx, "c1")
	require.NoError(t, err)
	require.True(t, res.Rotated)
	require.False(t, res.IsNew)
	require.NotEqual(t, first.Session.ThreadID, res.Session.ThreadID)
	require.Equal(t, first.Session.ThreadID, res.PreviousThreadID)
}

type failingSessions struct {
	repository.SessionRepo
	endErr error
}

func (f *failingSessions) End(ctx context.Context, sessionID int64, now time.Time) (*model.Session, error) {
	if f.endErr != nil {
		return nil, f.endErr
	}
	return f.SessionRepo.End(ctx, sessionID, now)
}

func TestPartialRotationFailureSurfaces(t *testing.T) {
	mem := repository.NewMemory()
	sessions := &failingSessions{SessionRepo: mem.Sessions(), endErr: errors.New("db down")}
	m := NewManager(mem, sessions, mem, nDays, logger.NewNop())
	ctx := context.Background()

	first, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)

	m.now = func() time.Time { return first.Session.LastActiveAt.Add(nDays + time.Hour) }

	_, err = m.FindOrCreate(ctx, "c1")
	require.Error(t, err)
}

func TestDeleteCascade(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()

	res, err := m.FindOrCreate(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mem.Save(ctx, res.Session.ThreadID, []byte(`{}`)))

	deleted, err := m.Delete(ctx, "c1")
	require.NoError(t, err)
	require.True(t, deleted)

	c, err := mem.FindByChatID(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, c)

	blob, err := mem.Load(ctx, res.Session.ThreadID)
	require.NoError(t, err)
	require.Nil(t, blob)

	// Deleting again is a business no-op.
	deleted, err = m.Delete(ctx, "c1")
	require.NoError(t, err)
	require.False(t, deleted)
}
