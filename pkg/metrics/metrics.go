// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed turns by outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_turns_total",
		Help: "Completed conversation turns by outcome.",
	}, []string{"outcome"})

	// TurnDuration observes end-to-end turn latency.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_turn_duration_seconds",
		Help:    "End-to-end turn latency.",
		Buckets: prometheus.DefBuckets,
	})

	// SpecialistDispatches counts dispatches per destination.
	SpecialistDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_specialist_dispatches_total",
		Help: "Specialist dispatches by destination.",
	}, []string{"destination"})

	// TurnHops observes specialist hops taken per turn.
	TurnHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_turn_hops",
		Help:    "Specialist hops per turn.",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	})

	// SessionRotations counts thread rotations by reason.
	SessionRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_session_rotations_total",
		Help: "Session thread rotations by reason.",
	}, []string{"reason"})

	// WebhookPosts counts webhook delivery attempts by result.
	WebhookPosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_webhook_posts_total",
		Help: "Webhook delivery attempts by result.",
	}, []string{"result"})

	// RequestsTotal counts HTTP requests.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// CheckpointEvictions counts volatile checkpoint evictions.
	CheckpointEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_checkpoint_evictions_total",
		Help: "Volatile checkpoint entries evicted by the TTL sweeper.",
	})
)

// RecordRequest records one completed HTTP request.
func RecordRequest(method, path, status string, seconds float64) {
	RequestsTotal.WithLabelValues(method, path, status).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(seconds)
}
