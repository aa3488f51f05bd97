// PIDTune - PID tuning assistant server
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

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/api"
	"github.com/ashureev/pidtune/internal/config"
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/identity"
	"github.com/ashureev/pidtune/internal/middleware"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/ashureev/pidtune/internal/stream"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
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

	fallback := domain.Credentials{APIKey: cfg.Advisory.APIKey, Model: cfg.Advisory.Model}
	if fallback.HasAPIKey() {
		slog.Info("Server advisory key configured", "model", fallback.Model)
	}

	openaiCfg := advisory.OpenAIConfig{
		BaseURL:    cfg.Advisory.BaseURL,
		Timeout:    cfg.Advisory.Timeout,
		MaxRetries: cfg.Advisory.MaxRetries,
	}
	newAdvisor := func(userID string) advisory.Client {
		creds := advisory.CredentialFunc(func(ctx context.Context) (domain.Credentials, error) {
			return store.LoadCredentials(ctx, repo, userID, fallback)
		})
		return advisory.NewOpenAIClient(creds, openaiCfg, logger.With("user_id", userID))
	}

	// Initialize services.
	hub := stream.NewHub()
	sessions := tuning.NewRegistry(newAdvisor, func(userID, sessionID string, snap tuning.Snapshot) {
		hub.Publish(userID, sessionID, stream.Event{Type: "snapshot", Data: snap})
	}, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions, fallback, cfg.MaxBodyBytes)
	healthHandler := api.NewHealthHandler(repo, sessions, 0)
	streamHandler := stream.NewHandler(hub, func(userID, sessionID string) any {
		return sessions.Get(userID, sessionID).Snapshot()
	}, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Everything else runs as an anonymous user.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

		api.NewSessionHandler(baseHandler).RegisterRoutes(r)
		api.NewSettingsHandler(baseHandler).RegisterRoutes(r)

		// WebSocket endpoint.
		r.Get("/ws/session", streamHandler.ServeHTTP)
	})

	// WriteTimeout stays unset for slow advisory calls and the snapshot stream.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	slog.Info("Server stopped successfully", "open_streams", hub.Count())
}
