package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

func TestNotifyPostsPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 5*time.Second, logger.NewNop())
	err := n.Notify(context.Background(), Payload{
		ChatID:   "c1",
		ThreadID: "t1",
		Reply:    "dạ em đã lên đơn ạ",
	})
	require.NoError(t, err)
	require.Equal(t, "c1", got.ChatID)
	require.Equal(t, "t1", got.ThreadID)
}

func TestNotifySurfacesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 5*time.Second, logger.NewNop())
	err := n.Notify(context.Background(), Payload{ChatID: "c1"})
	require.Error(t, err)
}

func TestNotifyBoundedTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 20*time.Millisecond, logger.NewNop())
	start := time.Now()
	err := n.Notify(context.Background(), Payload{ChatID: "c1"})
	require.Error(t, err)
	require.Less(t, time.Since(start), 150*time.Millisecond)
}
