package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

const (
	eventStreamName    = "CHAT_EVENTS"
	eventSubjectPrefix = "chat.events."
	eventStreamMaxAge  = 30 * 24 * time.Hour
)

// EventLog decorates an EventRepo: every appended lifecycle event is
// also published to the CHAT_EVENTS stream for downstream consumers.
// Publish failures are logged, not surfaced; the audit row is already
// committed.
type EventLog struct {
	inner  repository.EventRepo
	js     jetstream.JetStream
	logger *logger.Logger
}

// NewEventLog creates the decorator and ensures the stream exists.
func NewEventLog(ctx context.Context, client *Client, inner repository.EventRepo, log *logger.Logger) (*EventLog, error) {
	js := client.JetStream()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        eventStreamName,
		Description: "customer lifecycle events",
		Subjects:    []string{eventSubjectPrefix + ">"},
		Storage:     jetstream.FileStorage,
		MaxAge:      eventStreamMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", eventStreamName, err)
	}

	return &EventLog{inner: inner, js: js, logger: log}, nil
}

// Append implements repository.EventRepo.
func (l *EventLog) Append(ctx context.Context, event model.Event) (*model.Event, error) {
	ev, err := l.inner.Append(ctx, event)
	if err != nil || ev == nil {
		return ev, err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		l.logger.Warn("event not encodable for publish", zap.Error(err))
		return ev, nil
	}

	subject := eventSubjectPrefix + string(ev.Type)
	if _, err := l.js.Publish(ctx, subject, body); err != nil {
		l.logger.Warn("event not published",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
	return ev, nil
}
