// Package stream provides the NATS surfaces of the reconciliation
// engine: raw-constraint ingest from pluggable extraction sources,
// compliance-report publishing for downstream repair and learning
// consumers, and a JetStream KV audit store for past reports.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// ReportMessage is the wire format for published compliance reports.
type ReportMessage struct {
	RunID       string                      `json:"run_id"`
	PublishedAt time.Time                   `json:"published_at"`
	Report      constraint.ComplianceReport `json:"report"`
}

// Publisher publishes compliance reports to NATS. A nil Publisher (or
// one built over a nil connection) is a no-op, so callers degrade
// gracefully when streaming is not configured.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher creates a report publisher. nc may be nil.
func NewPublisher(nc *nats.Conn, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, subject: subject, logger: logger}
}

// Publish sends a compliance report. The report must already carry its
// RunID stamp; downstream consumers treat the missing/extra lists as
// their input contract.
func (p *Publisher) Publish(ctx context.Context, rep constraint.ComplianceReport) error {
	if p == nil || p.nc == nil {
		return nil // Skip publishing when streaming is not configured.
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := ReportMessage{
		RunID:       rep.RunID,
		PublishedAt: time.Now().UTC(),
		Report:      rep,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal report message: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	p.logger.Debug("Published compliance report",
		"subject", p.subject,
		"run_id", rep.RunID,
		"strict", rep.OverallStrict)
	return nil
}
