package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

func result(entity, field string, vtype constraint.ValidationType, tier constraint.Tier, satisfied bool) constraint.MatchResult {
	return constraint.MatchResult{
		Spec: constraint.NormalizedConstraint{
			Entity: entity,
			Field:  field,
			Type:   vtype,
		},
		Tier:      tier,
		Satisfied: satisfied,
	}
}

func TestAggregateEmptySpec(t *testing.T) {
	rep := Aggregate(nil, Inputs{TotalCode: 7, ParseErrors: 2, Unresolved: 1})

	assert.True(t, rep.NothingToValidate)
	assert.Zero(t, rep.OverallStrict)
	assert.Zero(t, rep.OverallRelaxed)
	assert.Equal(t, 7, rep.TotalCode)

	// Dropped-input counts survive even when there is nothing to score.
	assert.Equal(t, 2, rep.ParseErrors)
	assert.Equal(t, 1, rep.Unresolved)
}

func TestAggregateStrictVsRelaxed(t *testing.T) {
	results := []constraint.MatchResult{
		result("Customer", "email", constraint.ValidationFormat, constraint.TierExact, true),
		result("Product", "price", constraint.ValidationRange, constraint.TierCategory, true),
		result("Customer", "registration_date", constraint.ValidationCustom, constraint.TierField, true),
		result("Order", "status", constraint.ValidationStatusTransition, constraint.TierFuzzy, true),
		result("Order", "id", constraint.ValidationUniqueness, constraint.TierNone, false),
	}

	rep := Aggregate(results, Inputs{TotalCode: 5})

	// Strict counts EXACT and CATEGORY only; relaxed adds FIELD and FUZZY.
	assert.Equal(t, 0.4, rep.OverallStrict)
	assert.Equal(t, 0.8, rep.OverallRelaxed)
	assert.Equal(t, 5, rep.TotalSpec)

	require.Len(t, rep.Missing, 1)
	assert.Equal(t, "id", rep.Missing[0].Field)
}

func TestAggregateUnsatisfiedTierMatchCountsAsMissing(t *testing.T) {
	// A clean tier match downgraded by the enforcement rule must land in
	// Missing and score as unsatisfied in both modes.
	results := []constraint.MatchResult{
		result("Customer", "registration_date", constraint.ValidationCustom, constraint.TierExact, false),
	}

	rep := Aggregate(results, Inputs{})
	assert.Zero(t, rep.OverallStrict)
	assert.Zero(t, rep.OverallRelaxed)
	require.Len(t, rep.Missing, 1)
}

func TestAggregateBreakdowns(t *testing.T) {
	results := []constraint.MatchResult{
		result("Customer", "email", constraint.ValidationFormat, constraint.TierExact, true),
		result("Customer", "name", constraint.ValidationPresence, constraint.TierNone, false),
		result("Order", "id", constraint.ValidationUniqueness, constraint.TierExact, true),
	}

	rep := Aggregate(results, Inputs{})

	assert.Equal(t, 0.5, rep.PerEntity["Customer"])
	assert.Equal(t, 1.0, rep.PerEntity["Order"])
	assert.Equal(t, 1.0, rep.PerType[constraint.ValidationFormat])
	assert.Equal(t, 0.0, rep.PerType[constraint.ValidationPresence])
}

func TestAggregateDeterministic(t *testing.T) {
	results := []constraint.MatchResult{
		result("Customer", "email", constraint.ValidationFormat, constraint.TierExact, true),
		result("Order", "id", constraint.ValidationUniqueness, constraint.TierNone, false),
	}
	in := Inputs{TotalCode: 2, ParseErrors: 1}

	a := Aggregate(results, in)
	b := Aggregate(results, in)

	// No run identity, no timestamps: two runs over the same input are
	// fully equal, not just score-equal.
	assert.Equal(t, a, b)
	assert.Empty(t, a.RunID)
	assert.True(t, a.GeneratedAt.IsZero())
}

func TestRatioRounding(t *testing.T) {
	assert.Equal(t, 0.3333, ratio(1, 3))
	assert.Equal(t, 0.6667, ratio(2, 3))
	assert.Equal(t, 0.0, ratio(0, 0))
	assert.Equal(t, 1.0, ratio(5, 5))
}

func TestSummary(t *testing.T) {
	results := []constraint.MatchResult{
		result("Customer", "email", constraint.ValidationFormat, constraint.TierExact, true),
		result("Order", "id", constraint.ValidationUniqueness, constraint.TierNone, false),
	}
	rep := Aggregate(results, Inputs{
		TotalCode:   3,
		ParseErrors: 1,
		Extra: []constraint.NormalizedConstraint{
			{Entity: "Product", Field: "price", Type: constraint.ValidationRange},
		},
	})

	out := Summary(rep)
	assert.Contains(t, out, "50.0% strict")
	assert.Contains(t, out, "Dropped inputs: 1 parse errors")
	assert.Contains(t, out, "Order.id/uniqueness")
	assert.Contains(t, out, "Product.price/range")
}

func TestSummaryNothingToValidate(t *testing.T) {
	out := Summary(Aggregate(nil, Inputs{Unresolved: 2}))
	assert.Contains(t, out, "Nothing to validate")
	assert.Contains(t, out, "2 unresolved")
}
