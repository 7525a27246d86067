// Webhook Chat - n8n chat relay and page lifecycle server
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

	"github.com/ashureev/webhook-chat/internal/api"
	"github.com/ashureev/webhook-chat/internal/config"
	"github.com/ashureev/webhook-chat/internal/lifecycle"
	"github.com/ashureev/webhook-chat/internal/middleware"
	"github.com/ashureev/webhook-chat/internal/relay"
	"github.com/ashureev/webhook-chat/internal/session"
	"github.com/ashureev/webhook-chat/internal/store"
	"github.com/ashureev/webhook-chat/internal/widget"
	"github.com/ashureev/webhook-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const sessionPath = "/ws/session"

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

	widgetCfg, err := widget.Load(cfg.WidgetConfig)
	if err != nil {
		slog.Error("Failed to load widget configuration", "error", err)
		os.Exit(1)
	}
	mountCfg := widgetCfg.MountConfig(api.ChatPath)

	relayClient := relay.NewClient(cfg.Relay.WebhookURL, cfg.Relay.Timeout)
	if !relayClient.Configured() {
		slog.Warn("N8N_WEBHOOK_URL not set, chat requests will fail until it is configured")
	}

	// Initialize services.
	sm := session.NewManager()
	marker := lifecycle.Marker{Substring: cfg.Session.CompletionMarker}

	// Initialize handlers.
	relayHandler := api.NewRelayHandler(relayClient, cfg.Relay.MaxBodySize, logger)
	healthHandler := api.NewHealthHandler(repo, relayClient, sm)
	pageHandler := api.NewPageHandler(api.PageConfig{
		RelayPath:        api.ChatPath,
		SessionPath:      sessionPath,
		CompletionMarker: marker.Substring,
		Widget:           mountCfg,
	})
	wsHandler := session.NewWebSocketHandler(repo, sm, session.HandlerConfig{
		Mount:         mountCfg,
		Marker:        marker,
		MountTimeout:  cfg.Session.MountAckTimeout,
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	pageHandler.RegisterRoutes(r)
	relayHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get(sessionPath, wsHandler.ServeHTTP)

	// Serve embedded page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: relay calls may wait on the backend indefinitely when
	// RELAY_TIMEOUT is 0, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start retention worker.
	session.StartRetentionWorker(ctx, repo, cfg.Session.Retention, time.Hour)
	slog.Info("Retention worker started", "retention", cfg.Session.Retention)

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

	// Hijacked WebSocket connections are not tracked by Shutdown.
	sm.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
