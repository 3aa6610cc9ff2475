package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// BucketReports is the JetStream KV bucket holding past compliance
// reports for audit and for the repair/learning consumers.
const BucketReports = "DEVMATRIX_REPORTS"

// ErrReportNotFound is returned when no report exists for a run ID.
var ErrReportNotFound = errors.New("report not found")

// reportKV is the slice of the JetStream KV surface the store uses.
type reportKV interface {
	Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error)
}

// ReportStore persists compliance reports in NATS KV. Reports are
// immutable once produced; the store only ever writes a run ID once.
type ReportStore struct {
	kv reportKV
}

// NewReportStore creates the store, creating the KV bucket on first use.
func NewReportStore(ctx context.Context, js jetstream.JetStream) (*ReportStore, error) {
	kv, err := js.KeyValue(ctx, BucketReports)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketReports,
			Description: "Compliance reports by run ID",
			History:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("create reports bucket: %w", err)
		}
	}
	return &ReportStore{kv: kv}, nil
}

// Save persists a report under its run ID. The report must be stamped
// with a RunID before saving.
func (s *ReportStore) Save(ctx context.Context, rep constraint.ComplianceReport) error {
	if rep.RunID == "" {
		return fmt.Errorf("report has no run ID")
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := s.kv.Create(ctx, rep.RunID, data); err != nil {
		return fmt.Errorf("save report %s: %w", rep.RunID, err)
	}
	return nil
}

// Get loads a report by run ID.
func (s *ReportStore) Get(ctx context.Context, runID string) (constraint.ComplianceReport, error) {
	entry, err := s.kv.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return constraint.ComplianceReport{}, ErrReportNotFound
		}
		return constraint.ComplianceReport{}, fmt.Errorf("get report %s: %w", runID, err)
	}

	var rep constraint.ComplianceReport
	if err := json.Unmarshal(entry.Value(), &rep); err != nil {
		return constraint.ComplianceReport{}, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return rep, nil
}

// List returns the run IDs of all stored reports.
func (s *ReportStore) List(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	var ids []string
	for key := range lister.Keys() {
		ids = append(ids, key)
	}
	return ids, nil
}
