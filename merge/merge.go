// Package merge collapses normalized constraints that share a canonical
// (entity, field, validation_type) key. Tie-breaking between sources is
// a fixed, configuration-level total order; confidence scores are never
// compared at merge time because confidence-based tie-breaking proved
// nondeterministic across otherwise-identical runs.
package merge

import (
	"log/slog"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// Merger deduplicates normalized constraints by canonical key.
type Merger struct {
	sources config.SourcesConfig
	logger  *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger
	}
}

// New creates a Merger with the given source priority order.
func New(sources config.SourcesConfig, opts ...Option) *Merger {
	m := &Merger{
		sources: sources,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge returns at most one constraint per (entity, field,
// validation_type) key. When a key has multiple entries the retained one
// is chosen by source priority rank; ties within the same source keep
// the first-seen entry, so output order is a deterministic function of
// input order. Retained entries carry a collapsed-duplicate count:
// entries that already represent collapsed duplicates keep contributing
// their counts, which makes Merge idempotent.
func (m *Merger) Merge(normalized []constraint.NormalizedConstraint) []constraint.NormalizedConstraint {
	type slot struct {
		index      int // position in out
		rank       int
		duplicates int
	}

	out := make([]constraint.NormalizedConstraint, 0, len(normalized))
	slots := make(map[constraint.Key]*slot, len(normalized))

	for _, nc := range normalized {
		key := nc.Key()
		rank := m.sources.Rank(nc.Source)

		s, seen := slots[key]
		if !seen {
			out = append(out, nc)
			slots[key] = &slot{index: len(out) - 1, rank: rank, duplicates: nc.Duplicates}
			continue
		}

		s.duplicates += 1 + nc.Duplicates
		if rank < s.rank {
			m.logger.Debug("Merge replacing lower-priority source",
				"key", key.String(),
				"kept", nc.Source,
				"dropped", out[s.index].Source)
			nc.Duplicates = s.duplicates
			out[s.index] = nc
			s.rank = rank
			continue
		}
		out[s.index].Duplicates = s.duplicates
	}

	return out
}
