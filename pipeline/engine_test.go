package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/cache"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/match"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/metrics"
)

func testSnapshot() *ir.Snapshot {
	return ir.New([]ir.Entity{
		{
			Name:    "Customer",
			Aliases: []string{"client"},
			Fields: []ir.Field{
				{Name: "registration_date", Type: "datetime"},
				{Name: "email", Type: "string"},
			},
		},
		{
			Name:   "Order",
			Fields: []ir.Field{{Name: "id", Type: "integer"}},
		},
		{
			Name:   "Product",
			Fields: []ir.Field{{Name: "price", Type: "integer"}},
		},
	}, "v1")
}

func raw(entity, field, descriptor, hint string, src constraint.Source) constraint.RawConstraint {
	return constraint.RawConstraint{
		Entity:          entity,
		Field:           field,
		Descriptor:      descriptor,
		EnforcementHint: hint,
		Source:          src,
	}
}

func TestValidateEndToEnd(t *testing.T) {
	e := New(config.DefaultConfig(), testSnapshot())

	specRaws := []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
		raw("Product", "price", ">0", "validator", constraint.SourceDeclared),
		raw("Customer", "registration_date", "immutable after creation", "immutable", constraint.SourceDeclared),
		raw("Order", "id", "uniqueness", "database", constraint.SourceStructural),
	}
	codeRaws := []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
		raw("Product", "price", "ge=1", "validator", constraint.SourceDeclared),
		// Documented but not enforced: must not satisfy the spec.
		raw("Customer", "registration_date", "immutable", "description", constraint.SourceDeclared),
	}

	rep := e.Validate(context.Background(), specRaws, codeRaws)

	assert.Equal(t, 4, rep.TotalSpec)
	assert.Equal(t, 3, rep.TotalCode)
	// email exact + price category satisfied; registration_date downgraded
	// by the enforcement rule; id missing entirely.
	assert.Equal(t, 0.5, rep.OverallStrict)
	assert.Equal(t, 0.5, rep.OverallRelaxed)
	require.Len(t, rep.Missing, 2)
	assert.Zero(t, rep.ParseErrors)
	assert.Zero(t, rep.Unresolved)
}

func TestValidateDeterministic(t *testing.T) {
	e := New(config.DefaultConfig(), testSnapshot())

	specRaws := []constraint.RawConstraint{
		raw("customers", "registrationDate", "immutable after creation", "immutable", constraint.SourceDeclared),
		raw("Order", "id", "uniqueness", "database", constraint.SourceStructural),
	}
	codeRaws := []constraint.RawConstraint{
		raw("Customer", "registration_date", "exclude=true", "immutable", constraint.SourceStructural),
	}

	a, aerr := json.Marshal(e.Validate(context.Background(), specRaws, codeRaws))
	require.NoError(t, aerr)
	b, berr := json.Marshal(e.Validate(context.Background(), specRaws, codeRaws))
	require.NoError(t, berr)
	assert.Equal(t, string(a), string(b))
}

func TestValidateCountsDroppedInputs(t *testing.T) {
	e := New(config.DefaultConfig(), testSnapshot())

	specRaws := []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
		{Entity: "Customer", Source: constraint.SourceDeclared}, // malformed
		raw("Ghost", "x", "presence", "", constraint.SourceDeclared),
	}

	rep := e.Validate(context.Background(), specRaws, nil)
	assert.Equal(t, 1, rep.TotalSpec)
	assert.Equal(t, 1, rep.ParseErrors)
	assert.Equal(t, 1, rep.Unresolved)
}

func TestValidateEmptySpec(t *testing.T) {
	e := New(config.DefaultConfig(), testSnapshot())

	rep := e.Validate(context.Background(), nil, []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
	})
	assert.True(t, rep.NothingToValidate)
	assert.Equal(t, 1, rep.TotalCode)
}

func TestMergeDedupInvariant(t *testing.T) {
	e := New(config.DefaultConfig(), testSnapshot())

	raws := []constraint.RawConstraint{
		raw("Order", "id", "uniqueness", "business_logic", constraint.SourceBusinessLogic),
		raw("Order", "id", "uniqueness", "database", constraint.SourceStructural),
		raw("orders", "id", "uniqueness", "database", constraint.SourceDeclared),
	}

	normalized, errs := e.NormalizeAll(raws)
	require.Empty(t, errs)
	merged := e.Merge(normalized)

	require.Len(t, merged, 1)
	// Structural outranks declared and business_logic regardless of the
	// confidence each entry carried.
	assert.Equal(t, constraint.SourceStructural, merged[0].Source)
	assert.Equal(t, 2, merged[0].Duplicates)
}

type stubScorer struct {
	calls int
}

func (s *stubScorer) ScoreBatch(ctx context.Context, pairs []match.Pair) ([]float64, error) {
	s.calls++
	scores := make([]float64, len(pairs))
	for i := range scores {
		scores[i] = 0.9
	}
	return scores, nil
}

func TestScorerOptionOrderIndependent(t *testing.T) {
	scorer := &stubScorer{}
	// WithScorer ahead of WithLogger must still produce a working
	// fuzzy tier.
	e := New(config.DefaultConfig(), testSnapshot(),
		WithScorer(scorer), WithLogger(slog.Default()))

	specRaws := []constraint.RawConstraint{
		raw("Customer", "email", "must be a valid email address", "validator", constraint.SourceDeclared),
	}
	codeRaws := []constraint.RawConstraint{
		raw("Customer", "email", "EmailStr annotation", "validator", constraint.SourceDeclared),
	}

	rep := e.Validate(context.Background(), specRaws, codeRaws)
	assert.GreaterOrEqual(t, scorer.calls, 1)
	assert.Equal(t, 1.0, rep.OverallRelaxed)
}

func TestMetricsObserved(t *testing.T) {
	collector := metrics.New(prometheus.NewRegistry())
	e := New(config.DefaultConfig(), testSnapshot(), WithMetrics(collector))

	specRaws := []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
		raw("Ghost", "x", "presence", "", constraint.SourceDeclared),
	}
	codeRaws := []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
	}

	e.Validate(context.Background(), specRaws, codeRaws)

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.RawConstraints.WithLabelValues("declared")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.Normalized))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Unresolved))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.MatchTier.WithLabelValues("exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ComplianceScore.WithLabelValues("strict")))
}

func TestNormalizationCache(t *testing.T) {
	store := cache.NewMemory()
	e := New(config.DefaultConfig(), testSnapshot(), WithCache(store))

	raws := []constraint.RawConstraint{
		raw("Customer", "email", "format", "validator", constraint.SourceDeclared),
	}

	first, errs := e.NormalizeAll(raws)
	require.Empty(t, errs)
	second, errs := e.NormalizeAll(raws)
	require.Empty(t, errs)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Key(), second[0].Key())
	assert.Equal(t, first[0].Confidence, second[0].Confidence)

	// Ingest drops cached normalizations but leaves fuzzy scores alone.
	require.NoError(t, store.Set(cache.NamespaceFuzzy, "pair", []byte("0.9")))
	e.Ingest()
	_, ok, _ := store.Get(cache.NamespaceNormalize, raws[0].Hash()+":v1")
	assert.False(t, ok)
	_, ok, _ = store.Get(cache.NamespaceFuzzy, "pair")
	assert.True(t, ok)
}
