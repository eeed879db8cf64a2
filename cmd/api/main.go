// Command api is the Scoracle Fusion review API server.
//
// Usage:
//
//	scoracle-fusion-api
//	API_PORT=8080 scoracle-fusion-api

// @title Scoracle Fusion API
// @version 1.0.0
// @description Read-only API over the player identity registry: fused per-player views, identity links, review candidates and coverage. Data-heavy responses are JSON passthrough from Postgres.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Scoracle
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/scoracle-fusion/internal/api"
	"github.com/albapepper/scoracle-fusion/internal/cache"
	"github.com/albapepper/scoracle-fusion/internal/config"
	"github.com/albapepper/scoracle-fusion/internal/db"
	"github.com/albapepper/scoracle-fusion/internal/listener"
	"github.com/albapepper/scoracle-fusion/internal/maintenance"

	_ "github.com/albapepper/scoracle-fusion/docs" // swagger docs
)

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Drop cached responses as runs land: NOTIFY for the fast path, the
	// maintenance sweep for events missed while the listener reconnects.
	if cfg.CacheEnabled {
		invalidate := api.Invalidator(appCache, logger)
		go listener.Start(ctx, cfg.DatabaseURL, invalidate, logger)
		go maintenance.Start(ctx, pool, maintenance.DefaultConfig(), invalidate, logger)
	}

	// Create router
	router := api.NewRouter(pool, appCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Scoracle Fusion API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
