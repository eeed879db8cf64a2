// Package store persists the registry, links, review candidates and fused
// views in Postgres, and reads the staging tables the connectors fill.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/scoracle-fusion/internal/config"
	"github.com/albapepper/scoracle-fusion/internal/db"
	"github.com/albapepper/scoracle-fusion/internal/fusion"
	"github.com/albapepper/scoracle-fusion/internal/listener"
	"github.com/albapepper/scoracle-fusion/internal/pipeline"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Store implements pipeline.Store on a pgx pool.
type Store struct {
	pool   *db.Pool
	logger *slog.Logger
}

var _ pipeline.Store = (*Store)(nil)

// New wraps a pool.
func New(pool *db.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// ---------------------------------------------------------------------------
// Loads
// ---------------------------------------------------------------------------

// LoadRecords reads every staged source record, grouped by source.
func (s *Store) LoadRecords(ctx context.Context) (map[source.Source][]source.Record, error) {
	rows, err := s.pool.Query(ctx, "load_source_players")
	if err != nil {
		return nil, fmt.Errorf("query source players: %w", err)
	}
	defer rows.Close()

	out := make(map[source.Source][]source.Record)
	skipped := 0
	for rows.Next() {
		var (
			src   string
			rec   source.Record
			attrs map[string]interface{}
		)
		if err := rows.Scan(&src, &rec.ID, &rec.RawName, &attrs); err != nil {
			return nil, fmt.Errorf("scan source player: %w", err)
		}
		parsed, err := source.Parse(src)
		if err != nil {
			skipped++
			continue
		}
		rec.Source = parsed
		rec.Attributes = attrs
		out[parsed] = append(out[parsed], rec)
	}
	if skipped > 0 {
		s.logger.Warn("Skipped source players with unknown source", "count", skipped)
	}
	return out, rows.Err()
}

// LoadManualPairs reads the curated pairs in insertion order.
func (s *Store) LoadManualPairs(ctx context.Context) ([]source.ManualPair, error) {
	rows, err := s.pool.Query(ctx, "load_manual_pairs")
	if err != nil {
		return nil, fmt.Errorf("query manual pairs: %w", err)
	}
	defer rows.Close()

	var pairs []source.ManualPair
	for rows.Next() {
		var srcA, srcB string
		var p source.ManualPair
		if err := rows.Scan(&srcA, &p.A.ID, &srcB, &p.B.ID, &p.Notes); err != nil {
			return nil, fmt.Errorf("scan manual pair: %w", err)
		}
		// Unknown sources are kept so NewManualSet reports them.
		p.A.Source = source.Source(srcA)
		p.B.Source = source.Source(srcB)
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// LoadIdentities reads the registry, merged rows included.
func (s *Store) LoadIdentities(ctx context.Context) ([]registry.Identity, error) {
	rows, err := s.pool.Query(ctx, "load_players")
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []registry.Identity
	for rows.Next() {
		var id registry.Identity
		if err := rows.Scan(
			&id.PlayerID, &id.DisplayName,
			&id.StatsBombID, &id.SkillCornerID, &id.TransfermarktID,
			&id.Attributes, &id.FieldSources, &id.MergedInto,
		); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LoadLinks reads the links of the last saved run.
func (s *Store) LoadLinks(ctx context.Context) ([]registry.Link, error) {
	rows, err := s.pool.Query(ctx, "load_links")
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var out []registry.Link
	for rows.Next() {
		var (
			l           registry.Link
			src, method string
		)
		if err := rows.Scan(&l.PlayerID, &src, &l.SourceID, &method, &l.Confidence, &l.RunID); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.Source = source.Source(src)
		l.Method = registry.Method(method)
		out = append(out, l)
	}
	return out, rows.Err()
}

// LoadSeasonTotals reads the StatsBomb season documents.
func (s *Store) LoadSeasonTotals(ctx context.Context) ([]fusion.SeasonTotals, error) {
	rows, err := s.pool.Query(ctx, "load_season_totals")
	if err != nil {
		return nil, fmt.Errorf("query season totals: %w", err)
	}
	defer rows.Close()

	var out []fusion.SeasonTotals
	for rows.Next() {
		var (
			sbID     string
			seasonID int64
			stats    map[string]interface{}
		)
		if err := rows.Scan(&sbID, &seasonID, &stats); err != nil {
			return nil, fmt.Errorf("scan season totals: %w", err)
		}
		out = append(out, fusion.TotalsFromStats(sbID, seasonID, stats))
	}
	return out, rows.Err()
}

// LoadPhysical reads the SkillCorner per-match documents.
func (s *Store) LoadPhysical(ctx context.Context) ([]fusion.PhysicalSample, error) {
	rows, err := s.pool.Query(ctx, "load_match_physical")
	if err != nil {
		return nil, fmt.Errorf("query physical samples: %w", err)
	}
	defer rows.Close()

	var out []fusion.PhysicalSample
	for rows.Next() {
		var (
			scID, matchID string
			metrics       map[string]interface{}
		)
		if err := rows.Scan(&scID, &matchID, &metrics); err != nil {
			return nil, fmt.Errorf("scan physical sample: %w", err)
		}
		out = append(out, fusion.SampleFromMetrics(scID, matchID, metrics))
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// SaveResolution upserts changed identities and replaces links and review
// candidates in one transaction, under the run advisory lock.
func (s *Store) SaveResolution(ctx context.Context, res pipeline.Resolution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockRun(ctx, tx); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, id := range res.Identities {
		batch.Queue("upsert_player", identityArgs(id)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert players: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM "+config.IdentityLinksTable); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{config.IdentityLinksTable},
		linkColumns,
		pgx.CopyFromSlice(len(res.Links), func(i int) ([]any, error) {
			return linkRow(res.Links[i]), nil
		}),
	); err != nil {
		return fmt.Errorf("copy links: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM "+config.ReviewCandidateTable); err != nil {
		return fmt.Errorf("clear review candidates: %w", err)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{config.ReviewCandidateTable},
		candidateColumns,
		pgx.CopyFromSlice(len(res.Candidates), func(i int) ([]any, error) {
			return candidateRow(res.RunID, res.Candidates[i]), nil
		}),
	); err != nil {
		return fmt.Errorf("copy review candidates: %w", err)
	}

	if err := notify(ctx, tx, listener.KindResolved, res.RunID, len(res.Links)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit resolution: %w", err)
	}
	s.logger.Info("Resolution saved",
		"run_id", res.RunID,
		"identities", len(res.Identities),
		"links", len(res.Links),
		"candidates", len(res.Candidates),
	)
	return nil
}

// Publish replaces player_fused in one transaction. Readers see the old
// rows until commit.
func (s *Store) Publish(ctx context.Context, runID uuid.UUID, views []fusion.View) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockRun(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM "+config.FusedTable); err != nil {
		return fmt.Errorf("clear fused views: %w", err)
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{config.FusedTable},
		fusedColumns,
		pgx.CopyFromSlice(len(views), func(i int) ([]any, error) {
			return fusedRow(views[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy fused views: %w", err)
	}
	if err := notify(ctx, tx, listener.KindPublished, runID, int(n)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fused views: %w", err)
	}
	s.logger.Info("Fused views published", "run_id", runID, "count", n)
	return nil
}

// AddManualPair inserts a curated pair. Adding the same pair again, in
// either orientation, only updates its notes.
func (s *Store) AddManualPair(ctx context.Context, p source.ManualPair) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = canonicalPair(p)
	if _, err := s.pool.Exec(ctx, "insert_manual_pair",
		string(p.A.Source), p.A.ID, string(p.B.Source), p.B.ID, p.Notes,
	); err != nil {
		return fmt.Errorf("insert manual pair: %w", err)
	}
	return nil
}

// notify queues a run event; Postgres delivers it on commit.
func notify(ctx context.Context, tx pgx.Tx, kind string, runID uuid.UUID, count int) error {
	payload := listener.Payload(kind, runID.String(), count, time.Now())
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", listener.Channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", kind, err)
	}
	return nil
}

func lockRun(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", config.RunLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}
