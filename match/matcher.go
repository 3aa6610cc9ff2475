// Package match implements the tiered constraint matcher. A hash index
// over the code-side set keeps the whole batch at O(n+m); the quadratic
// nested-loop alternative is a hard design violation, not a style
// preference, because it turned a sub-ten-second operation into a
// fifty-minute one at realistic scale.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/normalize"
)

// Tier confidence levels.
const (
	confExact    = 1.0
	confCategory = 0.9
	confField    = 0.7
)

// Pair is one comparison request to the similarity collaborator.
type Pair struct {
	Spec string `json:"spec"`
	Code string `json:"code"`
}

// Scorer is the optional external semantic-similarity collaborator.
// Implementations must support batched requests and honor the context
// deadline; failures degrade the affected comparisons, never the run.
type Scorer interface {
	ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Matcher batch-compares a specification-side constraint set against a
// code-side set using the four-tier strategy.
type Matcher struct {
	snap      *ir.Snapshot
	eq        *equivalence
	scorer    Scorer
	threshold float64
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithScorer enables the FUZZY tier with the given collaborator and
// acceptance threshold.
func WithScorer(s Scorer, cfg config.FuzzyConfig) Option {
	return func(m *Matcher) {
		m.scorer = s
		m.threshold = cfg.Threshold
		if cfg.BatchSize > 0 {
			m.batchSize = cfg.BatchSize
		}
		if cfg.Timeout > 0 {
			m.timeout = cfg.Timeout
		}
	}
}

// New creates a Matcher over an IR snapshot.
func New(snap *ir.Snapshot, cfg config.MatchConfig, opts ...Option) *Matcher {
	m := &Matcher{
		snap:      snap,
		eq:        newEquivalence(cfg.ExtraEquivalences),
		threshold: 0.75,
		batchSize: 20,
		timeout:   30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// fieldKey groups code constraints by (entity, field) for the CATEGORY,
// FIELD, and FUZZY tiers.
type fieldKey struct {
	entity string
	field  string
}

// pending is a spec constraint that fell through tiers 1-3 and awaits
// the fuzzy collaborator.
type pending struct {
	result     int   // index into results
	candidates []int // indexes into code
}

// Match resolves each spec constraint against the code set, first tier
// hit wins. It returns one result per spec constraint in input order,
// plus the code constraints no spec entry matched ("extra",
// informational only).
func (m *Matcher) Match(ctx context.Context, spec, code []constraint.NormalizedConstraint) ([]constraint.MatchResult, []constraint.NormalizedConstraint) {
	// O(m) index build.
	byKey := make(map[constraint.Key]int, len(code))
	byField := make(map[fieldKey][]int)
	for i := range code {
		k := code[i].Key()
		if _, dup := byKey[k]; !dup {
			byKey[k] = i
		}
		fk := fieldKey{entity: k.Entity, field: k.Field}
		byField[fk] = append(byField[fk], i)
	}

	results := make([]constraint.MatchResult, 0, len(spec))
	matched := make(map[int]bool, len(code))
	var fuzzyQueue []pending

	for i := range spec {
		s := spec[i]
		key := s.Key()
		fk := fieldKey{entity: key.Entity, field: key.Field}

		// Tier 1: EXACT.
		if ci, ok := byKey[key]; ok && valuesCompatible(s, code[ci]) {
			results = append(results, m.finalize(s, &code[ci], constraint.TierExact, confExact,
				fmt.Sprintf("exact key match on %s", key)))
			matched[ci] = true
			continue
		}

		// Tier 2: CATEGORY.
		if ci, reason, ok := m.categoryMatch(s, fk, byField, code); ok {
			results = append(results, m.finalize(s, &code[ci], constraint.TierCategory, confCategory,
				fmt.Sprintf("category match on %s.%s: %s", key.Entity, key.Field, reason)))
			matched[ci] = true
			continue
		}

		// Tier 3: FIELD.
		if ci, ok := m.fieldMatch(s, fk, byField, code); ok {
			results = append(results, m.finalize(s, &code[ci], constraint.TierField, confField,
				fmt.Sprintf("field-level match on %s.%s with real enforcement evidence", key.Entity, key.Field)))
			matched[ci] = true
			continue
		}

		// Tier 4: FUZZY, deferred so collaborator calls batch.
		results = append(results, constraint.MatchResult{
			Spec:      s,
			Tier:      constraint.TierNone,
			Satisfied: false,
			Rationale: fmt.Sprintf("no match for %s at any tier", key),
		})
		if m.scorer != nil {
			if candidates := byField[fk]; len(candidates) > 0 {
				fuzzyQueue = append(fuzzyQueue, pending{result: len(results) - 1, candidates: candidates})
			}
		}
	}

	if len(fuzzyQueue) > 0 {
		m.resolveFuzzy(ctx, fuzzyQueue, code, results, matched)
	}

	var extra []constraint.NormalizedConstraint
	for i := range code {
		if !matched[i] {
			extra = append(extra, code[i])
		}
	}

	return results, extra
}

// categoryMatch looks for a known-equivalent code constraint on the same
// (entity, field).
func (m *Matcher) categoryMatch(s constraint.NormalizedConstraint, fk fieldKey, byField map[fieldKey][]int, code []constraint.NormalizedConstraint) (int, string, bool) {
	integer := false
	if f, ok := m.snap.Field(s.Entity, s.Field); ok {
		integer = f.Integer()
	}
	for _, ci := range byField[fk] {
		if reason, ok := m.eq.Equivalent(s, code[ci], integer); ok {
			return ci, reason, true
		}
	}
	return 0, "", false
}

// fieldMatch applies tier 3: the spec side is CUSTOM and some code
// constraint on the same field carries recognized real-enforcement
// evidence.
func (m *Matcher) fieldMatch(s constraint.NormalizedConstraint, fk fieldKey, byField map[fieldKey][]int, code []constraint.NormalizedConstraint) (int, bool) {
	if s.Type != constraint.ValidationCustom {
		return 0, false
	}
	for _, ci := range byField[fk] {
		c := code[ci]
		evidence := c.Enforcement.Real()
		if !evidence && c.Provenance != nil {
			evidence = normalize.IsRealEnforcement(c.Provenance.EnforcementHint)
		}
		if evidence {
			return ci, true
		}
	}
	return 0, false
}

// finalize applies the enforcement-compatibility rule and builds the
// result. A match is satisfied only if the code constraint's enforcement
// is mechanical, unless the spec constraint is documentation-only. The
// downgrade of an otherwise-clean tier match to unsatisfied is the
// single most important rule in the engine.
func (m *Matcher) finalize(s constraint.NormalizedConstraint, c *constraint.NormalizedConstraint, tier constraint.Tier, confidence float64, rationale string) constraint.MatchResult {
	satisfied := true
	if s.RequiresEnforcement() && !c.Enforcement.Real() {
		satisfied = false
		rationale += "; code enforcement is description-only, constraint requires mechanical enforcement"
	}
	return constraint.MatchResult{
		Spec:       s,
		Code:       c,
		Tier:       tier,
		Satisfied:  satisfied,
		Confidence: confidence,
		Rationale:  rationale,
	}
}

// resolveFuzzy sends the queued comparisons to the collaborator in
// bounded batches and upgrades results that clear the threshold.
// Collaborator failure or timeout leaves the affected results at NONE.
func (m *Matcher) resolveFuzzy(ctx context.Context, queue []pending, code []constraint.NormalizedConstraint, results []constraint.MatchResult, matched map[int]bool) {
	type ref struct {
		queue     int
		candidate int // index into code
	}

	var pairs []Pair
	var refs []ref
	for qi, p := range queue {
		specDesc := describeConstraint(results[p.result].Spec)
		for _, ci := range p.candidates {
			pairs = append(pairs, Pair{Spec: specDesc, Code: describeConstraint(code[ci])})
			refs = append(refs, ref{queue: qi, candidate: ci})
		}
	}

	scores := make([]float64, len(pairs))
	for start := 0; start < len(pairs); start += m.batchSize {
		end := min(start+m.batchSize, len(pairs))

		batchCtx, cancel := context.WithTimeout(ctx, m.timeout)
		batch, err := m.scorer.ScoreBatch(batchCtx, pairs[start:end])
		cancel()
		if err != nil {
			// Degrade these comparisons to NONE and keep going.
			m.logger.Warn("Fuzzy collaborator batch failed, degrading to no-match",
				"batch_start", start, "batch_size", end-start, "error", err)
			for i := start; i < end; i++ {
				scores[i] = -1
			}
			continue
		}
		copy(scores[start:end], batch)
	}

	best := make(map[int]ref, len(queue))
	bestScore := make(map[int]float64, len(queue))
	for i, r := range refs {
		if scores[i] < m.threshold {
			continue
		}
		if scores[i] > bestScore[r.queue] {
			bestScore[r.queue] = scores[i]
			best[r.queue] = r
		}
	}

	for qi, p := range queue {
		r, ok := best[qi]
		if !ok {
			continue
		}
		c := &code[r.candidate]
		score := bestScore[qi]
		res := m.finalize(results[p.result].Spec, c, constraint.TierFuzzy, score,
			fmt.Sprintf("semantic similarity %.2f above threshold %.2f", score, m.threshold))
		results[p.result] = res
		matched[r.candidate] = true
	}
}

// describeConstraint renders a constraint as a short description for the
// similarity collaborator. The pair of descriptions is also the
// collaborator cache key, so the rendering must be deterministic.
func describeConstraint(c constraint.NormalizedConstraint) string {
	desc := ""
	if c.Provenance != nil {
		desc = c.Provenance.Descriptor
	}
	if desc == "" {
		desc = string(c.Type)
	}
	return fmt.Sprintf("%s.%s: %s", c.Entity, c.Field, desc)
}
