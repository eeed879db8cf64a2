// Package api wires the read-only review API: fused views, identity links,
// review candidates and coverage.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/scoracle-fusion/internal/api/handler"
	"github.com/albapepper/scoracle-fusion/internal/cache"
	"github.com/albapepper/scoracle-fusion/internal/config"
	"github.com/albapepper/scoracle-fusion/internal/listener"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(db handler.Querier, appCache *cache.Cache, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(db, appCache, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Fused views
		r.Get("/players", h.ListPlayers)
		r.Get("/players/{playerID}", h.GetPlayer)
		r.Get("/players/{playerID}/links", h.GetPlayerLinks)

		// Curation
		r.Get("/review/candidates", h.GetReviewCandidates)
		r.Get("/review/missing/{source}", h.GetMissing)
		r.Get("/coverage", h.GetCoverage)
	})

	return r
}

// Invalidator drops the cached responses a run event makes stale.
func Invalidator(c *cache.Cache, logger *slog.Logger) listener.Handler {
	return func(e listener.Event) {
		var prefixes []string
		switch e.Kind {
		case listener.KindResolved:
			prefixes = []string{cache.PrefixLinks, cache.PrefixReview}
		case listener.KindPublished:
			prefixes = []string{cache.PrefixFused, cache.PrefixCoverage}
		}
		dropped := 0
		for _, p := range prefixes {
			dropped += c.InvalidatePrefix(p)
		}
		logger.Info("Cache invalidated", "kind", e.Kind, "run_id", e.RunID, "keys", dropped)
	}
}
