// Package constraint defines the data contracts shared by the constraint
// reconciliation pipeline: raw extractor output, normalized canonical
// constraints, match results, and the compliance report consumed by
// downstream repair and learning components.
package constraint

import (
	"fmt"
	"strings"
	"time"
)

// ValidationType is the canonical vocabulary for what a constraint checks.
type ValidationType string

const (
	// ValidationFormat covers format rules: email, URL, UUID, regex patterns.
	ValidationFormat ValidationType = "format"

	// ValidationRange covers numeric and length bounds (gt, ge, lt, le, min, max).
	ValidationRange ValidationType = "range"

	// ValidationPresence covers required / not-null rules.
	ValidationPresence ValidationType = "presence"

	// ValidationUniqueness covers unique and primary-key rules.
	ValidationUniqueness ValidationType = "uniqueness"

	// ValidationRelationship covers foreign-key and reference rules.
	ValidationRelationship ValidationType = "relationship"

	// ValidationStatusTransition covers allowed status/state transitions.
	ValidationStatusTransition ValidationType = "status_transition"

	// ValidationWorkflow covers multi-entity workflow rules such as
	// stock decrement on order placement.
	ValidationWorkflow ValidationType = "workflow_constraint"

	// ValidationCustom is the universal fallback. Classification never
	// fails; anything unrecognized lands here and is reported separately.
	ValidationCustom ValidationType = "custom"
)

// ValidationTypes lists every member of the closed vocabulary.
func ValidationTypes() []ValidationType {
	return []ValidationType{
		ValidationFormat,
		ValidationRange,
		ValidationPresence,
		ValidationUniqueness,
		ValidationRelationship,
		ValidationStatusTransition,
		ValidationWorkflow,
		ValidationCustom,
	}
}

// ParseValidationType maps a string to the canonical vocabulary,
// case-insensitively. Unknown values return ValidationCustom and false.
func ParseValidationType(s string) (ValidationType, bool) {
	v := ValidationType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ValidationTypes() {
		if v == known {
			return known, true
		}
	}
	return ValidationCustom, false
}

// EnforcementType is the canonical vocabulary for how a constraint is
// (or is not) mechanically guaranteed in generated code.
type EnforcementType string

const (
	// EnforcementDescription means the constraint is documented only.
	// It is the flag value: a DESCRIPTION-enforced code constraint never
	// satisfies a spec constraint that requires mechanical enforcement.
	EnforcementDescription EnforcementType = "description"

	// EnforcementValidator means a field or schema validator checks it.
	EnforcementValidator EnforcementType = "validator"

	// EnforcementComputedField means the value is derived, not writable.
	EnforcementComputedField EnforcementType = "computed_field"

	// EnforcementImmutable means the field rejects updates after creation.
	EnforcementImmutable EnforcementType = "immutable"

	// EnforcementStateMachine means a state machine guards transitions.
	EnforcementStateMachine EnforcementType = "state_machine"

	// EnforcementBusinessLogic means service-layer code enforces it.
	EnforcementBusinessLogic EnforcementType = "business_logic"
)

// Real reports whether the enforcement is mechanical rather than
// documentation-only.
func (e EnforcementType) Real() bool {
	return e != EnforcementDescription && e != ""
}

// Source identifies the extraction source that produced a raw constraint.
// The merge priority order over sources is configuration, not code; these
// constants name the sources every deployment is expected to have.
type Source string

const (
	// SourceStructural is the schema/structure-derived extractor.
	SourceStructural Source = "structural"

	// SourceDeclared is the declared-type/contract-derived extractor.
	SourceDeclared Source = "declared"

	// SourceBusinessLogic is the business-logic-inference extractor.
	SourceBusinessLogic Source = "business_logic"

	// SourceUnknown tags constraints whose origin was not recorded.
	SourceUnknown Source = "unknown"
)

// Key is the canonical identity of a normalized constraint. It is the
// grouping key for deduplication and the index key for matching.
type Key struct {
	Entity string         `json:"entity"`
	Field  string         `json:"field"`
	Type   ValidationType `json:"type"`
}

// String renders the key in entity.field/type form for logs and rationales.
func (k Key) String() string {
	return fmt.Sprintf("%s.%s/%s", k.Entity, k.Field, k.Type)
}

// NormalizedConstraint is a raw constraint after canonical resolution.
// Entity and Field are guaranteed to exist in the IR snapshot the
// constraint was normalized against.
type NormalizedConstraint struct {
	Entity      string          `json:"entity"`
	Field       string          `json:"field"`
	Type        ValidationType  `json:"validation_type"`
	Enforcement EnforcementType `json:"enforcement_type"`
	Value       any             `json:"value,omitempty"`
	Confidence  float64         `json:"confidence"`
	Source      Source          `json:"source"`

	// Duplicates counts how many raw entries were collapsed into this
	// constraint during merge. Zero before merge.
	Duplicates int `json:"duplicates,omitempty"`

	// Provenance is the raw constraint this was normalized from.
	Provenance *RawConstraint `json:"provenance,omitempty"`
}

// Key returns the canonical identity of the constraint.
func (c NormalizedConstraint) Key() Key {
	return Key{Entity: c.Entity, Field: c.Field, Type: c.Type}
}

// RequiresEnforcement reports whether this spec-side constraint demands
// mechanical enforcement. A spec constraint whose own enforcement kind is
// DESCRIPTION is documentation-only and is satisfied by documentation.
func (c NormalizedConstraint) RequiresEnforcement() bool {
	return c.Enforcement.Real()
}

// Tier identifies which matching strategy produced a match.
type Tier string

const (
	// TierExact is a full (entity, field, validation_type) key match.
	TierExact Tier = "exact"

	// TierCategory is a same-field match through a known-equivalent
	// validation pair, such as strict vs non-strict integer bounds.
	TierCategory Tier = "category"

	// TierField is a same-field match used when the spec side is CUSTOM
	// and the code side carries real enforcement evidence.
	TierField Tier = "field"

	// TierFuzzy is a semantic-similarity match from the external
	// collaborator, accepted above the configured threshold.
	TierFuzzy Tier = "fuzzy"

	// TierNone means no tier found a match; the constraint is missing.
	TierNone Tier = "none"
)

// MatchResult records the outcome of matching one spec constraint
// against the code-side set.
type MatchResult struct {
	Spec       NormalizedConstraint  `json:"spec"`
	Code       *NormalizedConstraint `json:"code,omitempty"`
	Tier       Tier                  `json:"tier"`
	Satisfied  bool                  `json:"satisfied"`
	Confidence float64               `json:"confidence"`
	Rationale  string                `json:"rationale"`
}

// ComplianceReport is the immutable output of one validation run.
// Scores are fractions in [0,1]. ParseErrors and Unresolved are always
// populated so a clean score is never reported over silently dropped input.
type ComplianceReport struct {
	// RunID and GeneratedAt are stamped by the caller, not the
	// aggregator, so that aggregation stays deterministic for fixed input.
	RunID       string    `json:"run_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`

	// NothingToValidate is the sentinel for an empty spec constraint set.
	NothingToValidate bool `json:"nothing_to_validate,omitempty"`

	OverallStrict  float64                    `json:"overall_strict"`
	OverallRelaxed float64                    `json:"overall_relaxed"`
	PerEntity      map[string]float64         `json:"per_entity,omitempty"`
	PerType        map[ValidationType]float64 `json:"per_type,omitempty"`

	TotalSpec int `json:"total_spec_constraints"`
	TotalCode int `json:"total_code_constraints"`

	Missing []NormalizedConstraint `json:"missing,omitempty"`
	Extra   []NormalizedConstraint `json:"extra,omitempty"`

	ParseErrors int `json:"parse_errors"`
	Unresolved  int `json:"unresolved"`
}
