// Command fusion resolves player identities across StatsBomb, SkillCorner and
// Transfermarkt and rebuilds the fused per-player views.
//
// Usage:
//
//	scoracle-fusion migrate
//	scoracle-fusion resolve --dry-run
//	scoracle-fusion resolve --workers 8 --export-dir review
//	scoracle-fusion rebuild
//	scoracle-fusion run
//	scoracle-fusion summary
//	scoracle-fusion manual add --a statsbomb:5503 --b transfermarkt:28003 --notes "checked DOB"
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-fusion/internal/config"
	"github.com/albapepper/scoracle-fusion/internal/db"
	"github.com/albapepper/scoracle-fusion/internal/pipeline"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
	"github.com/albapepper/scoracle-fusion/internal/store"
)

var (
	logLevel = new(slog.LevelVar)
	logger   = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "scoracle-fusion",
		Short:         "Player identity resolution and fusion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(rebuildCmd())
	root.AddCommand(runCmd())
	root.AddCommand(summaryCmd())
	root.AddCommand(manualCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, _ *config.Config, st *store.Store) error {
				applied, err := st.Migrate(ctx)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					logger.Info("Schema up to date")
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// resolve / rebuild / run commands
// --------------------------------------------------------------------------

type runFlags struct {
	workers   int
	exportDir string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker goroutines (default FUSION_WORKERS)")
	cmd.Flags().StringVar(&f.exportDir, "export-dir", "", "Directory for review CSVs (default FUSION_EXPORT_DIR)")
}

func resolveCmd() *cobra.Command {
	var (
		flags  runFlags
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve source records into the identity registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(flags, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.RunResult, error) {
				return p.Resolve(ctx, dryRun)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute and export candidates without writing to the database")
	return cmd
}

func rebuildCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild and publish the fused views from the current registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(flags, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.RunResult, error) {
				return p.Rebuild(ctx)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve, then rebuild the fused views",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(flags, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.RunResult, error) {
				return p.Run(ctx)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func withPipeline(flags runFlags, fn func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.RunResult, error)) error {
	return withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
		policy, err := config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return err
		}
		opts := pipeline.Options{
			Policy:    policy.Resolve,
			Fields:    policy.Fields,
			Workers:   cfg.Workers,
			ExportDir: cfg.ExportDir,
			LockFile:  cfg.LockFile,
		}
		if flags.workers > 0 {
			opts.Workers = flags.workers
		}
		if flags.exportDir != "" {
			opts.ExportDir = flags.exportDir
		}

		result, err := fn(ctx, pipeline.New(st, opts, logger))
		if result != nil {
			fmt.Fprintln(os.Stdout, renderRunResult(result, os.Stdout))
			for _, f := range result.Faults {
				logger.Error("integrity fault", "run_id", result.RunID, "error", f)
			}
			for _, e := range result.Errors {
				logger.Error("run error", "run_id", result.RunID, "error", e)
			}
		}
		if err != nil {
			return err
		}
		if result.Failed() {
			return fmt.Errorf("run %s finished with %d faults and %d errors",
				result.RunID, len(result.Faults), len(result.Errors))
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// summary command
// --------------------------------------------------------------------------

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show identity coverage per source and source pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, _ *config.Config, st *store.Store) error {
				identities, err := st.LoadIdentities(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, renderCoverage(registry.Summarize(identities), os.Stdout))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// manual command
// --------------------------------------------------------------------------

func manualCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Curate manual identity mappings",
	}
	cmd.AddCommand(manualAddCmd())
	return cmd
}

func manualAddCmd() *cobra.Command {
	var a, b, notes string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manual pair (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := parsePair(a, b, notes)
			if err != nil {
				return err
			}
			return withStore(func(ctx context.Context, _ *config.Config, st *store.Store) error {
				if err := st.AddManualPair(ctx, pair); err != nil {
					return err
				}
				logger.Info("Manual pair stored", "a", pair.A, "b", pair.B)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&a, "a", "", "First id as source:id")
	cmd.Flags().StringVar(&b, "b", "", "Second id as source:id")
	cmd.Flags().StringVar(&notes, "notes", "", "Why the pair is right")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}

func parsePair(a, b, notes string) (source.ManualPair, error) {
	refA, err := source.ParseRef(a)
	if err != nil {
		return source.ManualPair{}, fmt.Errorf("--a: %w", err)
	}
	refB, err := source.ParseRef(b)
	if err != nil {
		return source.ManualPair{}, fmt.Errorf("--b: %w", err)
	}
	pair := source.ManualPair{A: refA, B: refB, Notes: notes}
	return pair, pair.Validate()
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func withStore(fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	start := time.Now()
	err = fn(ctx, cfg, store.New(pool, logger))
	if errors.Is(err, context.Canceled) {
		logger.Warn("Interrupted", "after", time.Since(start).Round(time.Millisecond))
	}
	return err
}
