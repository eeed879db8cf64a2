// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/fusion.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names, matching store/migrations/0001_init.sql
// --------------------------------------------------------------------------

const (
	SourcePlayersTable   = "source_players"
	SeasonTotalsTable    = "player_season_totals"
	MatchPhysicalTable   = "player_match_physical"
	ManualMappingTable   = "player_manual_mapping"
	PlayersTable         = "players"
	IdentityLinksTable   = "player_identity_links"
	FusedTable           = "player_fused"
	ReviewCandidateTable = "review_candidates"
)

// RunLockKey is the Postgres advisory lock key held while a run writes.
const RunLockKey int64 = 0x5c0_f05e

// --------------------------------------------------------------------------
// Config, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration

	// Resolution runs
	Workers    int
	ExportDir  string
	LockFile   string
	PolicyFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("FUSION_DATABASE_URL", envOr("DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("FUSION_DATABASE_URL or DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),
		CacheTTL:     time.Duration(envInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		Workers:    envInt("FUSION_WORKERS", runtime.NumCPU()),
		ExportDir:  envOr("FUSION_EXPORT_DIR", "review"),
		LockFile:   envOr("FUSION_LOCK_FILE", os.TempDir()+"/scoracle-fusion.lock"),
		PolicyFile: envOr("FUSION_POLICY_FILE", ""),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
