// Package pipeline wires the reconciliation stages together: normalize,
// merge, match, aggregate. An Engine owns one immutable IR snapshot and
// one explicit cache object; each Validate call is a pure function of
// its inputs so repeated runs over fixed input produce byte-identical
// reports.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/cache"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/match"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/merge"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/metrics"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/normalize"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/report"
)

// Engine runs the normalize -> merge -> match -> aggregate pipeline over
// one IR snapshot.
type Engine struct {
	cfg        *config.Config
	snap       *ir.Snapshot
	normalizer *normalize.Normalizer
	merger     *merge.Merger
	matcher    *match.Matcher
	scorer     match.Scorer
	store      cache.Cache
	collector  *metrics.Collector
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCache sets the explicit cache object threaded through the run:
// normalization results keyed by raw hash plus IR version.
func WithCache(store cache.Cache) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithScorer enables the FUZZY matching tier.
func WithScorer(s match.Scorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.collector = c
	}
}

// New creates an Engine. The pipeline stages are built after all options
// apply, so option order never matters.
func New(cfg *config.Config, snap *ir.Snapshot, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		snap:   snap,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.normalizer = normalize.New(snap, cfg.Penalties, normalize.WithLogger(e.logger))
	e.merger = merge.New(cfg.Sources, merge.WithLogger(e.logger))

	matchOpts := []match.Option{match.WithLogger(e.logger)}
	if e.scorer != nil {
		matchOpts = append(matchOpts, match.WithScorer(e.scorer, cfg.Fuzzy))
	}
	e.matcher = match.New(snap, cfg.Match, matchOpts...)
	return e
}

// Ingest is the cache invalidation hook. Fire it whenever new raw
// constraints arrive so stale normalization results are never reused.
func (e *Engine) Ingest() {
	if e.store == nil {
		return
	}
	if err := e.store.Invalidate(cache.NamespaceNormalize); err != nil {
		e.logger.Warn("Failed to invalidate normalization cache", "error", err)
	}
}

// NormalizeAll normalizes a raw batch, consulting the cache keyed by raw
// content hash plus IR version. Input order is preserved; per-item
// failures are isolated into the error list.
func (e *Engine) NormalizeAll(raws []constraint.RawConstraint) ([]constraint.NormalizedConstraint, []error) {
	start := time.Now()
	defer e.observe("normalize", start)

	out := make([]constraint.NormalizedConstraint, 0, len(raws))
	var errs []error

	for _, raw := range raws {
		if e.collector != nil {
			e.collector.RawConstraints.WithLabelValues(string(raw.Source)).Inc()
		}

		if nc, ok := e.cachedNormalization(raw); ok {
			out = append(out, nc)
			continue
		}

		normalized, batchErrs := e.normalizer.NormalizeBatch([]constraint.RawConstraint{raw})
		if len(batchErrs) > 0 {
			errs = append(errs, batchErrs...)
			continue
		}
		nc := normalized[0]
		e.storeNormalization(raw, nc)
		out = append(out, nc)
	}

	if e.collector != nil {
		e.collector.Normalized.Add(float64(len(out)))
		for _, err := range errs {
			if constraint.IsMalformed(err) {
				e.collector.ParseErrors.Inc()
			} else if constraint.IsUnresolved(err) {
				e.collector.Unresolved.Inc()
			}
		}
	}

	return out, errs
}

// Merge deduplicates normalized constraints by canonical key.
func (e *Engine) Merge(normalized []constraint.NormalizedConstraint) []constraint.NormalizedConstraint {
	start := time.Now()
	defer e.observe("merge", start)

	merged := e.merger.Merge(normalized)
	if e.collector != nil {
		e.collector.MergedAway.Add(float64(len(normalized) - len(merged)))
	}
	return merged
}

// Match batch-compares the spec set against the code set.
func (e *Engine) Match(ctx context.Context, spec, code []constraint.NormalizedConstraint) ([]constraint.MatchResult, []constraint.NormalizedConstraint) {
	start := time.Now()
	defer e.observe("match", start)

	results, extra := e.matcher.Match(ctx, spec, code)
	if e.collector != nil {
		for _, r := range results {
			e.collector.MatchTier.WithLabelValues(string(r.Tier)).Inc()
		}
	}
	return results, extra
}

// Aggregate builds the compliance report from one match run. Both
// scoring modes come from the same results slice.
func (e *Engine) Aggregate(results []constraint.MatchResult, in report.Inputs) constraint.ComplianceReport {
	start := time.Now()
	defer e.observe("aggregate", start)

	rep := report.Aggregate(results, in)
	if e.collector != nil && !rep.NothingToValidate {
		e.collector.ComplianceScore.WithLabelValues("strict").Set(rep.OverallStrict)
		e.collector.ComplianceScore.WithLabelValues("relaxed").Set(rep.OverallRelaxed)
	}
	return rep
}

// Validate runs the full pipeline over raw spec-side and code-side
// constraint sets and returns the compliance report. Nothing here is
// fatal to a surrounding pipeline; dropped inputs surface in the
// report's ParseErrors and Unresolved counts.
func (e *Engine) Validate(ctx context.Context, specRaws, codeRaws []constraint.RawConstraint) constraint.ComplianceReport {
	specNorm, specErrs := e.NormalizeAll(specRaws)
	codeNorm, codeErrs := e.NormalizeAll(codeRaws)

	parseErrors, unresolved := 0, 0
	for _, err := range append(specErrs, codeErrs...) {
		switch {
		case constraint.IsMalformed(err):
			parseErrors++
		case constraint.IsUnresolved(err):
			unresolved++
		}
	}

	spec := e.Merge(specNorm)
	code := e.Merge(codeNorm)

	results, extra := e.Match(ctx, spec, code)

	return e.Aggregate(results, report.Inputs{
		Extra:       extra,
		TotalCode:   len(code),
		ParseErrors: parseErrors,
		Unresolved:  unresolved,
	})
}

// cachedNormalization looks up a prior normalization of the same raw
// input against the same IR version.
func (e *Engine) cachedNormalization(raw constraint.RawConstraint) (constraint.NormalizedConstraint, bool) {
	if e.store == nil {
		return constraint.NormalizedConstraint{}, false
	}
	key := raw.Hash() + ":" + e.snap.Version()
	data, ok, err := e.store.Get(cache.NamespaceNormalize, key)
	if err != nil || !ok {
		return constraint.NormalizedConstraint{}, false
	}
	var nc constraint.NormalizedConstraint
	if err := json.Unmarshal(data, &nc); err != nil {
		return constraint.NormalizedConstraint{}, false
	}
	return nc, true
}

func (e *Engine) storeNormalization(raw constraint.RawConstraint, nc constraint.NormalizedConstraint) {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(nc)
	if err != nil {
		return
	}
	key := raw.Hash() + ":" + e.snap.Version()
	if err := e.store.Set(cache.NamespaceNormalize, key, data); err != nil {
		e.logger.Debug("Failed to cache normalization", "error", err)
	}
}

func (e *Engine) observe(stage string, start time.Time) {
	if e.collector != nil {
		e.collector.RunDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
