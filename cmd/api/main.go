// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/checkpoint"
	"github.com/anvie-labs/chat-orchestrator/internal/config"
	"github.com/anvie-labs/chat-orchestrator/internal/handler"
	"github.com/anvie-labs/chat-orchestrator/internal/llm"
	"github.com/anvie-labs/chat-orchestrator/internal/middleware"
	natsclient "github.com/anvie-labs/chat-orchestrator/internal/nats"
	"github.com/anvie-labs/chat-orchestrator/internal/orchestrator"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/router"
	"github.com/anvie-labs/chat-orchestrator/internal/session"
	"github.com/anvie-labs/chat-orchestrator/internal/specialist"
	"github.com/anvie-labs/chat-orchestrator/internal/webhook"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
	"github.com/anvie-labs/chat-orchestrator/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chat orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-orchestrator", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	mem := repository.NewMemory()
	mem.SeedDemo()

	var natsConn *natsclient.Client
	var durable checkpoint.DurableTier = mem.States()
	var events repository.EventRepo = mem
	if cfg.NATSEnabled {
		natsConn, err = natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsConn.Close()

		kv, err := natsclient.NewKVTier(ctx, natsConn, cfg.CheckpointBucket)
		if err != nil {
			log.Error("failed to open checkpoint bucket", zap.Error(err))
			os.Exit(1)
		}
		durable = kv

		eventLog, err := natsclient.NewEventLog(ctx, natsConn, mem, log)
		if err != nil {
			log.Error("failed to ensure event stream", zap.Error(err))
			os.Exit(1)
		}
		events = eventLog
	}

	store := checkpoint.New(durable, log)
	store.StartSweeper(ctx, cfg.CleanupInterval, cfg.StateTTL)

	inactivity := time.Duration(cfg.SessionExpiryDays) * 24 * time.Hour
	sessions := session.NewManager(mem, mem.Sessions(), events, inactivity, log)

	llmClient, err := newLLMClient(cfg)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	handlers := []specialist.Handler{
		specialist.NewCatalog(mem, log),
		specialist.NewCart(log),
		specialist.NewOrder(mem.Orders(), log),
		specialist.NewModifyOrder(mem.Orders(), log),
		specialist.NewBooking(mem.ServiceCatalog(), mem.Appointments(), mem.Rooms(), mem.Staff(), log),
	}
	names := make([]string, 0, len(handlers))
	for _, h := range handlers {
		names = append(names, h.Name())
	}

	classifier := llm.NewClassifier(llmClient, cfg.ClassifierModel, names)
	supervisor := router.NewSupervisor(classifier, mem, names, log)

	opts := orchestrator.Options{MaxHops: cfg.MaxSpecialistHops}
	if cfg.WebhookURL != "" {
		opts.Notifier = webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookTimeout, log)
	}
	engine := orchestrator.NewEngine(sessions, store, supervisor, handlers, opts, log)

	healthHandler := handler.NewHealthHandler(natsConn)
	chatHandler := handler.NewChatHandler(engine, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/chat", chatHandler.Chat)
		r.Post("/chat/stream", chatHandler.ChatStream)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLLMClient(cfg *config.Config) (llm.Client, error) {
	switch {
	case cfg.DefaultLLM == string(llm.ProviderOpenAI) && cfg.OpenAIAPIKey != "":
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	default:
		return nil, fmt.Errorf("no LLM API key configured")
	}
}
