// Package metrics exposes Prometheus collectors for the reconciliation
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pipeline's Prometheus instruments. Create one per
// process and register it on your registry of choice.
type Collector struct {
	RawConstraints  *prometheus.CounterVec
	Normalized      prometheus.Counter
	Unresolved      prometheus.Counter
	ParseErrors     prometheus.Counter
	MergedAway      prometheus.Counter
	MatchTier       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	ComplianceScore *prometheus.GaugeVec
}

// New creates and registers the pipeline collectors on reg. Pass
// prometheus.DefaultRegisterer for the default registry.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RawConstraints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "raw_constraints_total",
			Help:      "Raw constraints received, by extraction source.",
		}, []string{"source"}),
		Normalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "normalized_total",
			Help:      "Raw constraints successfully normalized.",
		}),
		Unresolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "unresolved_total",
			Help:      "Raw constraints dropped for unresolved entity or field names.",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "parse_errors_total",
			Help:      "Structurally invalid raw constraints skipped at the boundary.",
		}),
		MergedAway: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "merged_duplicates_total",
			Help:      "Normalized constraints collapsed during deduplication.",
		}),
		MatchTier: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "match_tier_total",
			Help:      "Match results by winning tier.",
		}, []string{"tier"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		ComplianceScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devmatrix",
			Subsystem: "reconcile",
			Name:      "compliance_score",
			Help:      "Most recent compliance score by mode (strict, relaxed).",
		}, []string{"mode"}),
	}
}
