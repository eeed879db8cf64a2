// Package pipeline runs resolution and fusion end to end against a Store:
// load, resolve, arbitrate, export, save, rebuild, publish. Each stage checks
// for cancellation before it starts, and nothing is written until the
// in-memory registry is complete.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/fusion"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/resolve"
	"github.com/albapepper/scoracle-fusion/internal/review"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// ErrRunInProgress is returned when another run holds the lock file.
var ErrRunInProgress = errors.New("another resolution run is in progress")

// Store is the persistence the pipeline needs.
type Store interface {
	LoadRecords(ctx context.Context) (map[source.Source][]source.Record, error)
	LoadManualPairs(ctx context.Context) ([]source.ManualPair, error)
	LoadIdentities(ctx context.Context) ([]registry.Identity, error)
	// LoadLinks returns the links the last saved run derived.
	LoadLinks(ctx context.Context) ([]registry.Link, error)
	LoadSeasonTotals(ctx context.Context) ([]fusion.SeasonTotals, error)
	LoadPhysical(ctx context.Context) ([]fusion.PhysicalSample, error)
	// SaveResolution writes identities, links and review candidates in one
	// transaction.
	SaveResolution(ctx context.Context, res Resolution) error
	fusion.Publisher
}

// Resolution is what one resolution pass persists.
type Resolution struct {
	RunID      uuid.UUID
	Identities []registry.Identity
	Links      []registry.Link
	Candidates []review.Candidate
}

// Options configure a Pipeline.
type Options struct {
	Policy    resolve.Policy
	Fields    registry.FieldPriority
	Workers   int
	ExportDir string
	LockFile  string
}

// Pipeline orchestrates runs. It is safe to reuse across runs but not to run
// concurrently; the lock file enforces that across processes.
type Pipeline struct {
	store  Store
	opts   Options
	logger *slog.Logger
}

// New creates a pipeline.
func New(store Store, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Fields == nil {
		opts.Fields = registry.DefaultFieldPriority()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, opts: opts, logger: logger}
}

// Resolve runs resolution only. A dry run computes everything, writes the
// review files, and persists nothing.
func (p *Pipeline) Resolve(ctx context.Context, dryRun bool) (*RunResult, error) {
	return p.locked(ctx, dryRun, func(ctx context.Context, result *RunResult) error {
		_, err := p.resolve(ctx, result)
		return err
	})
}

// Rebuild recomputes and publishes the fused views from persisted identities.
func (p *Pipeline) Rebuild(ctx context.Context) (*RunResult, error) {
	return p.locked(ctx, false, func(ctx context.Context, result *RunResult) error {
		identities, err := p.store.LoadIdentities(ctx)
		if err != nil {
			return fmt.Errorf("load identities: %w", err)
		}
		return p.rebuild(ctx, result, identities)
	})
}

// Run resolves, then rebuilds from the updated registry.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	return p.locked(ctx, false, func(ctx context.Context, result *RunResult) error {
		reg, err := p.resolve(ctx, result)
		if err != nil {
			return err
		}
		return p.rebuild(ctx, result, reg.Identities())
	})
}

func (p *Pipeline) locked(ctx context.Context, dryRun bool, fn func(context.Context, *RunResult) error) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.New(), DryRun: dryRun}

	if p.opts.LockFile != "" && !dryRun {
		lock := flock.New(p.opts.LockFile)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				p.logger.Warn("release run lock", "error", err)
			}
		}()
	}

	err := fn(ctx, result)
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}
	p.logger.Info("run complete", "run_id", result.RunID, "summary", result.Summary())
	return result, nil
}

// ---------------------------------------------------------------------------
// Stages
// ---------------------------------------------------------------------------

func (p *Pipeline) resolve(ctx context.Context, result *RunResult) (*registry.Registry, error) {
	logger := p.logger.With("run_id", result.RunID)

	logger.Info("Phase 1/4: Loading inputs...")
	records, err := p.store.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	for _, recs := range records {
		result.RecordsLoaded += len(recs)
	}
	pairs, err := p.store.LoadManualPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manual pairs: %w", err)
	}
	manual, invalid := source.NewManualSet(pairs)
	for _, err := range invalid {
		result.AddErrorf("manual pair: %v", err)
	}
	result.ManualPairs = manual.Len()
	identities, err := p.store.LoadIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	reg, err := registry.New(identities, p.opts.Fields)
	if err != nil {
		return nil, err
	}
	previous, err := p.store.LoadLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	logger.Info("Inputs loaded",
		"records", result.RecordsLoaded,
		"manual_pairs", result.ManualPairs,
		"identities", len(identities),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("Phase 2/4: Resolving...")
	run := resolve.NewRun(p.opts.Policy, manual, p.opts.Workers, logger)
	run.ID = result.RunID
	res, err := resolve.New(run).Resolve(ctx, records)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Faults {
		result.AddFault(f)
	}
	proposals := res.Proposals()
	result.Proposals = len(proposals)
	result.Unresolved = len(res.Unresolved())
	result.Malformed = len(res.Malformed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("Phase 3/4: Applying to registry...")
	arb := resolve.NewArbiter(run, reg).Apply(proposals)
	result.Accepted = len(arb.Accepted)
	result.Demoted = len(arb.Demoted)
	for _, d := range arb.Demoted {
		if d.MergeConflict() {
			result.MergeConflicts++
		}
	}
	settle(reg, records, res)
	links := reg.Links(run.ID, arb.Evidence(), previous)
	logger.Info("Registry updated",
		"accepted", result.Accepted,
		"demoted", result.Demoted,
		"active", len(reg.Active()),
	)

	logger.Info("Phase 4/4: Exporting review candidates...")
	report := review.NewExporter(p.opts.Policy, logger).Export(run.ID, reg, res, arb)
	result.Candidates = len(report.Candidates)
	if p.opts.ExportDir != "" {
		files, err := report.WriteCSV(p.opts.ExportDir)
		result.ExportFiles = files
		if err != nil {
			result.AddErrorf("export csv: %v", err)
		}
	}

	if result.DryRun {
		logger.Info("Dry run: nothing persisted")
		return reg, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	changed := reg.Changed()
	if err := p.store.SaveResolution(ctx, Resolution{
		RunID:      run.ID,
		Identities: changed,
		Links:      links,
		Candidates: report.Candidates,
	}); err != nil {
		return nil, fmt.Errorf("save resolution: %w", err)
	}
	result.IdentitiesWritten = len(changed)
	result.LinksWritten = len(links)
	return reg, nil
}

// settle gives every sighted record an identity and merges attributes.
// Records of faulted sources are left alone, as are malformed ones, which
// a curator has to pair manually.
func settle(reg *registry.Registry, records map[source.Source][]source.Record, res *resolve.Result) {
	malformed := make(map[source.Ref]bool, len(res.Malformed))
	for _, m := range res.Malformed {
		malformed[m.Record] = true
	}
	for _, src := range source.All {
		if res.Faulted(src) {
			continue
		}
		for _, rec := range sortedRecords(src, records[src]) {
			if rec.ID == "" || malformed[rec.Ref()] {
				continue
			}
			reg.Ensure(rec.Ref())
		}
	}
	for _, src := range source.All {
		if res.Faulted(src) {
			continue
		}
		for _, rec := range sortedRecords(src, records[src]) {
			reg.Merge(rec)
		}
	}
}

func (p *Pipeline) rebuild(ctx context.Context, result *RunResult, identities []registry.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := p.logger.With("run_id", result.RunID)
	logger.Info("Rebuilding fused views...")

	seasons, err := p.store.LoadSeasonTotals(ctx)
	if err != nil {
		return fmt.Errorf("load season totals: %w", err)
	}
	physical, err := p.store.LoadPhysical(ctx)
	if err != nil {
		return fmt.Errorf("load physical samples: %w", err)
	}

	views, err := fusion.NewBuilder(p.opts.Workers, logger).Rebuild(ctx, fusion.Input{
		RunID:      result.RunID,
		Identities: identities,
		Seasons:    seasons,
		Physical:   physical,
	})
	if err != nil {
		return err
	}
	if err := p.store.Publish(ctx, result.RunID, views); err != nil {
		return fmt.Errorf("publish fused views: %w", err)
	}
	result.ViewsPublished = len(views)
	return nil
}

// sortedRecords orders a source's records by id and stamps the source on
// each, so attribute merges run in the same order every time.
func sortedRecords(src source.Source, recs []source.Record) []source.Record {
	out := make([]source.Record, len(recs))
	copy(out, recs)
	for i := range out {
		out[i].Source = src
	}
	sort.SliceStable(out, func(i, j int) bool {
		return source.CompareIDs(out[i].ID, out[j].ID) < 0
	})
	return out
}
