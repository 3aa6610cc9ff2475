package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/cache"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/fuzzy"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/pipeline"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/report"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/stream"
)

// validateOptions holds the validate command flags.
type validateOptions struct {
	irPath   string
	specPath string
	codePath string
	output   string
	minScore float64
	publish  bool
}

// NewValidateCmd builds the validate command: load the IR snapshot and
// the two raw constraint sets, run the pipeline, report.
func NewValidateCmd(cfg *config.Config) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate generated-code constraints against the specification",
		Long: `Validate normalizes the spec-side and code-side constraint sets against
the IR snapshot, deduplicates them, matches them tier by tier, and
reports strict and relaxed compliance scores.

Exit status is non-zero when the strict score falls below --min-score.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cfg, slog.Default(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.irPath, "ir", "ir.yaml", "IR snapshot file")
	cmd.Flags().StringVar(&opts.specPath, "spec", "spec-constraints", "Spec constraint file or directory")
	cmd.Flags().StringVar(&opts.codePath, "code", "code-constraints", "Code constraint file or directory")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the JSON report to this file")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Fail when strict compliance is below this fraction")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish the report to NATS")

	return cmd
}

func runValidate(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *validateOptions) error {
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

	rep := engine.Validate(ctx, specRaws, codeRaws)
	rep.RunID = uuid.New().String()
	rep.GeneratedAt = time.Now().UTC()

	fmt.Print(report.Summary(rep))

	if opts.output != "" {
		if err := writeReport(opts.output, rep); err != nil {
			return err
		}
		logger.Info("Report written", "path", opts.output, "run_id", rep.RunID)
	}

	if opts.publish {
		if err := publishReport(ctx, cfg, logger, rep); err != nil {
			return err
		}
	}

	if !rep.NothingToValidate && rep.OverallStrict < opts.minScore {
		return fmt.Errorf("strict compliance %.1f%% below required %.1f%%",
			rep.OverallStrict*100, opts.minScore*100)
	}
	return nil
}

// buildEngine assembles the pipeline with the configured cache and
// fuzzy collaborator. The cleanup function closes whatever was opened.
func buildEngine(cfg *config.Config, snap *ir.Snapshot, logger *slog.Logger) (*pipeline.Engine, func(), error) {
	var store cache.Cache
	cleanup := func() {}

	if cfg.Cache.Path != "" {
		badgerStore, err := cache.OpenBadger(cfg.Cache, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		store = badgerStore
		cleanup = func() {
			if cerr := badgerStore.Close(); cerr != nil {
				logger.Warn("Failed to close cache", "error", cerr)
			}
		}
	} else {
		store = cache.NewMemory()
	}

	collector, _ := engineMetrics()
	engineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithCache(store),
		pipeline.WithMetrics(collector),
	}
	if cfg.Fuzzy.Enabled {
		scorer := fuzzy.NewClient(cfg.Fuzzy,
			fuzzy.WithCache(store),
			fuzzy.WithLogger(logger))
		engineOpts = append(engineOpts, pipeline.WithScorer(scorer))
	}

	return pipeline.New(cfg, snap, engineOpts...), cleanup, nil
}

func writeReport(path string, rep constraint.ComplianceReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func publishReport(ctx context.Context, cfg *config.Config, logger *slog.Logger, rep constraint.ComplianceReport) error {
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required to publish reports")
	}
	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	pub := stream.NewPublisher(nc, cfg.NATS.ReportSubject, logger)
	if err := pub.Publish(ctx, rep); err != nil {
		return err
	}
	logger.Info("Report published", "subject", cfg.NATS.ReportSubject, "run_id", rep.RunID)

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("open JetStream: %w", err)
	}
	store, err := stream.NewReportStore(ctx, js)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, rep); err != nil {
		return err
	}
	logger.Info("Report archived", "bucket", stream.BucketReports, "run_id", rep.RunID)
	return nil
}
