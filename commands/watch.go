package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/report"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/watch"
)

// NewWatchCmd builds the watch command: re-run validation whenever the
// IR snapshot or a constraint file changes.
func NewWatchCmd(cfg *config.Config) *cobra.Command {
	opts := &validateOptions{}
	var root string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate on constraint or IR file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cfg, slog.Default(), root, opts)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Directory tree to watch")
	cmd.Flags().StringVar(&opts.irPath, "ir", "ir.yaml", "IR snapshot file")
	cmd.Flags().StringVar(&opts.specPath, "spec", "spec-constraints", "Spec constraint file or directory")
	cmd.Flags().StringVar(&opts.codePath, "code", "code-constraints", "Code constraint file or directory")

	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, root string, opts *validateOptions) error {
	watcher, err := watch.New(root, cfg.Watch, logger)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	events := watcher.Run(ctx)
	logger.Info("Watching for changes", "root", root, "patterns", cfg.Watch.Patterns)

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, logger)
		defer stop()
	}

	// Validate once up front so the first report doesn't wait for a save.
	if err := watchRun(ctx, cfg, logger, opts); err != nil {
		logger.Warn("Initial validation failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("Change detected, revalidating", "files", len(ev.Paths))
			if err := watchRun(ctx, cfg, logger, opts); err != nil {
				logger.Warn("Validation failed", "error", err)
			}
		}
	}
}

// watchRun performs one validation pass. Each pass reloads the IR and
// constraint files and owns a fresh snapshot; the new raw ingest fires
// the engine's cache invalidation hook.
func watchRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *validateOptions) error {
	started := time.Now()

	snap, err := ir.Load(opts.irPath)
	if err != nil {
		return err
	}
	specRaws, err := loadRawConstraints(opts.specPath, cfg.Watch.Patterns)
	if err != nil {
		return fmt.Errorf("load spec constraints: %w", err)
	}
	codeRaws, err := loadRawConstraints(opts.codePath, cfg.Watch.Patterns)
	if err != nil {
		return fmt.Errorf("load code constraints: %w", err)
	}

	engine, cleanup, err := buildEngine(cfg, snap, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine.Ingest()

	rep := engine.Validate(ctx, specRaws, codeRaws)
	rep.RunID = uuid.New().String()
	rep.GeneratedAt = time.Now().UTC()

	fmt.Print(report.Summary(rep))
	logger.Info("Validation complete",
		"run_id", rep.RunID,
		"strict", rep.OverallStrict,
		"relaxed", rep.OverallRelaxed,
		"duration", time.Since(started))
	return nil
}
