package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchforge/relay/internal/config"
	"github.com/matchforge/relay/internal/database"
	"github.com/matchforge/relay/internal/relay"
	"github.com/matchforge/relay/internal/roster"
	"github.com/matchforge/relay/internal/scheduler"
	"github.com/matchforge/relay/internal/transport"
	"github.com/matchforge/relay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relayd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relayd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"addr", cfg.Server.Addr,
		"workers", cfg.Scheduler.Workers,
		"grace_window", cfg.Hub.GraceWindow,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the roster database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	dbPool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	logger.Info("database connected")

	store := roster.NewStore(dbPool, logger)

	// Scheduler for presence fan-out and forced disconnects
	pool, err := scheduler.New(cfg.Scheduler.Workers,
		scheduler.WithLogger(logger),
		scheduler.WithRestartBudget(cfg.Scheduler.RestartBudget),
	)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	// Room hub
	hub := relay.NewHub(relay.HubConfig{
		GraceWindow:   cfg.Hub.GraceWindow,
		SweepInterval: cfg.Hub.SweepInterval,
	}, store, pool, logger)

	if err := hub.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}

	// HTTP server: websocket streams plus health
	handler := transport.NewHandler(hub, store, transport.HeaderIdentity{}, cfg.Transport, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.Handle("/healthz", createHealthHandler(dbPool, hub))

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("relayd running")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Stop accepting streams first, then the hub, then drain the scheduler.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := hub.Stop(shutdownCtx); err != nil {
		logger.Warn("hub stop incomplete", "error", err)
	}
	pool.Stop()

	logger.Info("relayd stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(dbPool *pgxpool.Pool, hub *relay.Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := dbPool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		stats := hub.Stats()
		health.Components["hub"] = map[string]any{
			"rooms":        stats.Rooms,
			"connections":  stats.Connections,
			"reconnecting": stats.Reconnecting,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
