// Package handler provides HTTP handlers for all API endpoints.
// Handlers query Postgres directly through prepared statements, no service
// layer. Postgres builds the JSON; handlers pass raw bytes through.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/scoracle-fusion/internal/api/respond"
	"github.com/albapepper/scoracle-fusion/internal/cache"
	"github.com/albapepper/scoracle-fusion/internal/config"
)

// Querier is the slice of the pool handlers use.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	db    Querier
	cache *cache.Cache
	cfg   *config.Config
}

// New creates a Handler with shared dependencies.
func New(db Querier, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{db: db, cache: c, cfg: cfg}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and available optimizations.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Scoracle Fusion API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"optimizations": []string{
			"pgxpool_connection_pooling",
			"prepared_statements",
			"postgres_json_passthrough",
			"gzip_compression",
			"in_memory_cache",
			"etag_support",
			"notify_cache_invalidation",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	if err := h.db.QueryRow(r.Context(), "health_check").Scan(&n); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// passthrough serves the JSON a prepared statement returns, through the
// cache. A NULL result or no row is a 404 with notFound as the message.
func (h *Handler) passthrough(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, notFound, stmt string, args ...any) {
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	var raw []byte
	err := h.db.QueryRow(r.Context(), stmt, args...).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows) || (err == nil && raw == nil):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", notFound)
		return
	case err != nil:
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "QUERY_FAILED", "Query failed", stmt)
		return
	}

	etag := h.cache.Set(key, raw, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, raw, etag, ttl, false)
}
