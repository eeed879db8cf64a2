// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/scoracle-fusion/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Statements lists every prepared statement by name. The fusion tables may
// not exist yet on a fresh database, so statements that reference them are
// only prepared once the schema is in place; see registerPreparedStatements.
var Statements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// API: fused views (Postgres returns complete JSON)
	"api_fused_player": "SELECT row_to_json(f) FROM player_fused f WHERE f.player_id = $1",
	"api_fused_list": `SELECT coalesce(json_agg(row_to_json(f) ORDER BY f.player_id), '[]'::json)
		FROM (SELECT * FROM player_fused WHERE player_id > $1 ORDER BY player_id LIMIT $2) f`,
	"api_player_links": `SELECT coalesce(json_agg(row_to_json(l) ORDER BY l.source), '[]'::json)
		FROM player_identity_links l WHERE l.player_id = $1`,
	"api_review_candidates": `SELECT coalesce(json_agg(row_to_json(c) ORDER BY c.priority, c.pair, c.x_source, c.x_id, c.y_id), '[]'::json)
		FROM (
			SELECT * FROM review_candidates WHERE $1::text = '' OR kind = $1
			ORDER BY priority, pair, x_source, x_id, y_id LIMIT $2
		) c`,
	"api_review_missing": `SELECT coalesce(json_agg(json_build_object(
			'player_id', p.player_id,
			'display_name', p.display_name,
			'statsbomb_id', p.statsbomb_id,
			'skillcorner_id', p.skillcorner_id,
			'transfermarkt_id', p.transfermarkt_id
		) ORDER BY p.player_id), '[]'::json)
		FROM players p
		WHERE p.merged_into IS NULL
		  AND (p.statsbomb_id IS NOT NULL OR p.skillcorner_id IS NOT NULL OR p.transfermarkt_id IS NOT NULL)
		  AND CASE $1::text
			WHEN 'statsbomb' THEN p.statsbomb_id
			WHEN 'skillcorner' THEN p.skillcorner_id
			WHEN 'transfermarkt' THEN p.transfermarkt_id
		  END IS NULL`,
	"api_coverage": `SELECT json_build_object(
			'players', count(*),
			'statsbomb', count(statsbomb_id),
			'skillcorner', count(skillcorner_id),
			'transfermarkt', count(transfermarkt_id),
			'statsbomb_skillcorner', count(*) FILTER (WHERE statsbomb_id IS NOT NULL AND skillcorner_id IS NOT NULL),
			'statsbomb_transfermarkt', count(*) FILTER (WHERE statsbomb_id IS NOT NULL AND transfermarkt_id IS NOT NULL),
			'skillcorner_transfermarkt', count(*) FILTER (WHERE skillcorner_id IS NOT NULL AND transfermarkt_id IS NOT NULL),
			'all_three', count(*) FILTER (WHERE statsbomb_id IS NOT NULL AND skillcorner_id IS NOT NULL AND transfermarkt_id IS NOT NULL),
			'run_id', max(run_id::text)
		) FROM player_fused`,

	// Maintenance
	"current_runs": `SELECT
			coalesce((SELECT run_id::text FROM player_identity_links LIMIT 1), ''),
			coalesce((SELECT run_id::text FROM player_fused LIMIT 1), '')`,

	// Resolution: loads
	"load_source_players":  "SELECT source, source_id, raw_name, attributes FROM source_players ORDER BY source, source_id",
	"load_manual_pairs":    "SELECT source_a, id_a, source_b, id_b, notes FROM player_manual_mapping ORDER BY id",
	"load_players":         "SELECT player_id, display_name, statsbomb_id, skillcorner_id, transfermarkt_id, attributes, field_sources, merged_into FROM players ORDER BY player_id",
	"load_links":           "SELECT player_id, source, source_id, method, confidence, run_id FROM player_identity_links ORDER BY player_id, source",
	"load_season_totals":   "SELECT statsbomb_id, season_id, stats FROM player_season_totals",
	"load_match_physical":  "SELECT skillcorner_id, match_id, metrics FROM player_match_physical",

	// Resolution: writes
	"upsert_player": `INSERT INTO players (
			player_id, display_name, statsbomb_id, skillcorner_id, transfermarkt_id,
			attributes, field_sources, merged_into, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (player_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			statsbomb_id = EXCLUDED.statsbomb_id,
			skillcorner_id = EXCLUDED.skillcorner_id,
			transfermarkt_id = EXCLUDED.transfermarkt_id,
			attributes = EXCLUDED.attributes,
			field_sources = EXCLUDED.field_sources,
			merged_into = EXCLUDED.merged_into,
			updated_at = now()`,
	"insert_manual_pair": `INSERT INTO player_manual_mapping (source_a, id_a, source_b, id_b, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_a, id_a, source_b, id_b) DO UPDATE SET notes = EXCLUDED.notes`,
}

// schemaFree statements run before the migrations have.
var schemaFree = map[string]bool{"health_check": true}

// registerPreparedStatements registers all statements the API and the
// resolution pipeline use. Prepared statements eliminate parse overhead on
// every request. Before migrations have run only the health check is
// prepared.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	var migrated bool
	if err := conn.QueryRow(ctx, "SELECT to_regclass('public.player_fused') IS NOT NULL").Scan(&migrated); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	for name, sql := range Statements {
		if !migrated && !schemaFree[name] {
			continue
		}
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
