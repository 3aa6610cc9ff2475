package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/report"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/stream"
)

// NewListenCmd builds the listen command: subscribe to raw code-side
// constraints over NATS and revalidate the accumulated set against the
// spec whenever the stream goes quiet.
func NewListenCmd(cfg *config.Config) *cobra.Command {
	var (
		irPath   string
		specPath string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Validate continuously from streamed code constraints",
		Long: `Listen subscribes to the raw-constraint subjects, accumulates the
code-side constraints extraction sources publish there, and re-runs
validation against the spec-side set after each quiet period.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), cfg, slog.Default(), irPath, specPath)
		},
	}

	cmd.Flags().StringVar(&irPath, "ir", "ir.yaml", "IR snapshot file")
	cmd.Flags().StringVar(&specPath, "spec", "spec-constraints", "Spec constraint file or directory")

	return cmd
}

func runListen(ctx context.Context, cfg *config.Config, logger *slog.Logger, irPath, specPath string) error {
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required to listen for constraints")
	}

	snap, err := ir.Load(irPath)
	if err != nil {
		return err
	}
	specRaws, err := loadRawConstraints(specPath, cfg.Watch.Patterns)
	if err != nil {
		return fmt.Errorf("load spec constraints: %w", err)
	}

	engine, cleanup, err := buildEngine(cfg, snap, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	src := stream.NewSource(nc, cfg.NATS.RawSubjectPrefix, logger)
	raws, err := src.Listen(ctx)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, logger)
		defer stop()
	}

	// Accumulate until the stream goes quiet for the debounce window,
	// then revalidate with everything received so far.
	var codeRaws []constraint.RawConstraint
	debounce := time.NewTimer(cfg.Watch.Debounce)
	debounce.Stop()
	dirty := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-raws:
			if !ok {
				return nil
			}
			codeRaws = append(codeRaws, raw)
			dirty = true
			debounce.Reset(cfg.Watch.Debounce)
		case <-debounce.C:
			if !dirty {
				continue
			}
			dirty = false
			listenRun(ctx, engine, logger, specRaws, codeRaws, src.ParseErrors())
		}
	}
}

func listenRun(ctx context.Context, engine validator, logger *slog.Logger, specRaws, codeRaws []constraint.RawConstraint, dropped int) constraint.ComplianceReport {
	started := time.Now()

	engine.Ingest()
	rep := engine.Validate(ctx, specRaws, codeRaws)
	rep.ParseErrors += dropped
	rep.RunID = uuid.New().String()
	rep.GeneratedAt = time.Now().UTC()

	fmt.Print(report.Summary(rep))
	logger.Info("Validation complete",
		"run_id", rep.RunID,
		"strict", rep.OverallStrict,
		"relaxed", rep.OverallRelaxed,
		"code_constraints", len(codeRaws),
		"duration", time.Since(started))
	return rep
}

// validator is the engine surface the listen loop drives.
type validator interface {
	Ingest()
	Validate(ctx context.Context, specRaws, codeRaws []constraint.RawConstraint) constraint.ComplianceReport
}
