// Package report turns match results into the compliance report consumed
// by downstream repair and learning components. Strict and relaxed scores
// come from one pass over one match run; re-running the matcher for a
// second scoring mode is how pipeline phases historically drifted apart
// on the "same" compliance number.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// Inputs carries the run context the aggregator cannot derive from match
// results alone. ParseErrors and Unresolved must always be forwarded so
// the report never shows a clean score over silently dropped input.
type Inputs struct {
	Extra       []constraint.NormalizedConstraint
	TotalCode   int
	ParseErrors int
	Unresolved  int
}

// Aggregate computes strict and relaxed compliance scores plus
// per-entity and per-type breakdowns in a single pass over results.
// An empty spec set yields the "nothing to validate" sentinel report,
// never a division error.
func Aggregate(results []constraint.MatchResult, in Inputs) constraint.ComplianceReport {
	rep := constraint.ComplianceReport{
		TotalSpec:   len(results),
		TotalCode:   in.TotalCode,
		Extra:       in.Extra,
		ParseErrors: in.ParseErrors,
		Unresolved:  in.Unresolved,
	}

	if len(results) == 0 {
		rep.NothingToValidate = true
		return rep
	}

	type tally struct {
		total   int
		strict  int
		relaxed int
	}

	var overall tally
	perEntity := make(map[string]*tally)
	perType := make(map[constraint.ValidationType]*tally)

	bump := func(t *tally, r constraint.MatchResult) {
		t.total++
		if !r.Satisfied {
			return
		}
		switch r.Tier {
		case constraint.TierExact, constraint.TierCategory:
			t.strict++
			t.relaxed++
		case constraint.TierField, constraint.TierFuzzy:
			t.relaxed++
		}
	}

	for _, r := range results {
		bump(&overall, r)

		et, ok := perEntity[r.Spec.Entity]
		if !ok {
			et = &tally{}
			perEntity[r.Spec.Entity] = et
		}
		bump(et, r)

		tt, ok := perType[r.Spec.Type]
		if !ok {
			tt = &tally{}
			perType[r.Spec.Type] = tt
		}
		bump(tt, r)

		if !r.Satisfied {
			rep.Missing = append(rep.Missing, r.Spec)
		}
	}

	rep.OverallStrict = ratio(overall.strict, overall.total)
	rep.OverallRelaxed = ratio(overall.relaxed, overall.total)

	rep.PerEntity = make(map[string]float64, len(perEntity))
	for entity, t := range perEntity {
		rep.PerEntity[entity] = ratio(t.relaxed, t.total)
	}
	rep.PerType = make(map[constraint.ValidationType]float64, len(perType))
	for vt, t := range perType {
		rep.PerType[vt] = ratio(t.relaxed, t.total)
	}

	return rep
}

// ratio is a guarded division rounded to four decimals so serialized
// reports stay byte-stable across runs.
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	r := float64(n) / float64(d)
	return float64(int(r*10000+0.5)) / 10000
}

// Summary renders a human-readable report summary for CLI output.
func Summary(rep constraint.ComplianceReport) string {
	var sb strings.Builder

	if rep.NothingToValidate {
		sb.WriteString("Nothing to validate: the specification constraint set is empty.\n")
		if rep.ParseErrors > 0 || rep.Unresolved > 0 {
			fmt.Fprintf(&sb, "Inputs dropped before validation: %d parse errors, %d unresolved names.\n",
				rep.ParseErrors, rep.Unresolved)
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "Compliance: %.1f%% strict, %.1f%% relaxed (%d spec constraints, %d code constraints)\n",
		rep.OverallStrict*100, rep.OverallRelaxed*100, rep.TotalSpec, rep.TotalCode)

	if rep.ParseErrors > 0 || rep.Unresolved > 0 {
		fmt.Fprintf(&sb, "Dropped inputs: %d parse errors, %d unresolved names (score excludes these)\n",
			rep.ParseErrors, rep.Unresolved)
	}

	if len(rep.PerEntity) > 0 {
		sb.WriteString("\nPer entity:\n")
		entities := make([]string, 0, len(rep.PerEntity))
		for e := range rep.PerEntity {
			entities = append(entities, e)
		}
		sort.Strings(entities)
		for _, e := range entities {
			fmt.Fprintf(&sb, "  %-24s %.1f%%\n", e, rep.PerEntity[e]*100)
		}
	}

	if len(rep.Missing) > 0 {
		fmt.Fprintf(&sb, "\nMissing enforcement (%d):\n", len(rep.Missing))
		for _, c := range rep.Missing {
			fmt.Fprintf(&sb, "  - %s\n", c.Key())
		}
	}

	if len(rep.Extra) > 0 {
		fmt.Fprintf(&sb, "\nExtra code constraints with no spec counterpart (%d, informational):\n", len(rep.Extra))
		for _, c := range rep.Extra {
			fmt.Fprintf(&sb, "  - %s\n", c.Key())
		}
	}

	return sb.String()
}
