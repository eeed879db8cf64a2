// Package maintenance runs periodic background tasks as Go tickers for the
// long-running API process.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/scoracle-fusion/internal/listener"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	// SweepInterval polls for runs whose NOTIFY was missed, e.g. while the
	// listener was reconnecting.
	SweepInterval time.Duration
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{SweepInterval: 2 * time.Minute}
}

// Querier is the slice of the pool the tasks need.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, q Querier, cfg Config, handle listener.Handler, logger *slog.Logger) {
	logger.Info("Maintenance tickers started", "sweep", cfg.SweepInterval)

	if cfg.SweepInterval > 0 {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		s := &sweeper{q: q, handle: handle, logger: logger}
		go runLoop(ctx, t.C, func() { s.sweep(ctx) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// sweeper compares the run ids stamped on the current links and fused rows
// with the last ones it saw and synthesizes the missed events.
type sweeper struct {
	q      Querier
	handle listener.Handler
	logger *slog.Logger

	seen              bool
	resolved, fused string
}

func (s *sweeper) sweep(ctx context.Context) {
	var resolved, fused string
	if err := s.q.QueryRow(ctx, "current_runs").Scan(&resolved, &fused); err != nil {
		s.logger.Warn("Run sweep: failed", "error", err)
		return
	}
	if !s.seen {
		s.seen = true
		s.resolved, s.fused = resolved, fused
		return
	}
	now := time.Now().Unix()
	if resolved != s.resolved {
		s.resolved = resolved
		s.logger.Info("Run sweep: new resolution", "run_id", resolved)
		s.handle(listener.Event{Kind: listener.KindResolved, RunID: resolved, Timestamp: now})
	}
	if fused != s.fused {
		s.fused = fused
		s.logger.Info("Run sweep: new fused views", "run_id", fused)
		s.handle(listener.Event{Kind: listener.KindPublished, RunID: fused, Timestamp: now})
	}
}
