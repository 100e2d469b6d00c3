// Package webhook posts turn outcomes to an external endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
	"github.com/anvie-labs/chat-orchestrator/pkg/metrics"
)

// Payload is the body posted after each answered turn.
type Payload struct {
	ChatID    string    `json:"chat_id"`
	ThreadID  string    `json:"thread_id"`
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers payloads over HTTP with a bounded timeout. Failed
// deliveries are logged and counted, never retried: the turn has
// already been answered.
type Notifier struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

// NewNotifier creates a notifier for url. A zero timeout defaults to
// 30 seconds.
func NewNotifier(url string, timeout time.Duration, log *logger.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Notify posts p to the configured endpoint.
func (n *Notifier) Notify(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.WebhookPosts.WithLabelValues("error").Inc()
		n.logger.Warn("webhook delivery failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.WebhookPosts.WithLabelValues("error").Inc()
		n.logger.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	metrics.WebhookPosts.WithLabelValues("ok").Inc()
	return nil
}
