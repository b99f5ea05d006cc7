// cogcheck - conversational cognitive screening server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/cogcheck/internal/api"
	"github.com/ashureev/cogcheck/internal/catalog"
	"github.com/ashureev/cogcheck/internal/config"
	"github.com/ashureev/cogcheck/internal/conversation"
	"github.com/ashureev/cogcheck/internal/identity"
	"github.com/ashureev/cogcheck/internal/middleware"
	"github.com/ashureev/cogcheck/internal/session"
	"github.com/ashureev/cogcheck/internal/store"
	"github.com/ashureev/cogcheck/internal/transcript"
	"github.com/ashureev/cogcheck/internal/ws"
	"github.com/ashureev/cogcheck/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	cat, err := catalog.Load(cfg.QuestionsPath)
	if err != nil {
		slog.Error("Failed to load question catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Question catalog loaded", "questions", cat.Len(), "path", cfg.QuestionsPath)

	var machineOpts []conversation.Option
	if cfg.RandSeed != 0 {
		machineOpts = append(machineOpts, conversation.WithSeed(cfg.RandSeed))
		slog.Info("Using fixed random seed", "seed", cfg.RandSeed)
	}
	machine := conversation.NewMachine(cat, machineOpts...)

	transcripts, err := transcript.NewLogger(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Warn("Failed to flush transcripts", "error", closeErr)
		}
	}()

	// Initialize services.
	registry := ws.NewRegistry()
	sessions := session.NewManager(machine, repo,
		session.WithTranscript(transcripts),
		session.WithLogger(logger),
		session.WithEvictCallback(registry.CloseSession),
	)
	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Close()

	// Initialize handlers.
	origins := cfg.AllowedOrigins()
	apiHandler := api.NewHandler(repo, sessions, cat, limiter)
	healthHandler := api.NewHealthHandler(repo, cat)
	wsHandler := ws.NewHandler(sessions, registry, limiter, origins, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(origins))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Everything else carries an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		apiHandler.RegisterRoutes(r)
		r.Get("/ws/conversation", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartTTLWorker(ctx, sessions, repo, session.TTLConfig{
		Interval:   cfg.SweepInterval,
		SessionTTL: cfg.SessionTTL,
		Retention:  cfg.AssessmentRetention,
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
