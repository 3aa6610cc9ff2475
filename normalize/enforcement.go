package normalize

import (
	"strings"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// enforcementVocab is the fixed hint vocabulary for MapEnforcement.
var enforcementVocab = map[string]constraint.EnforcementType{
	"validator":      constraint.EnforcementValidator,
	"database":       constraint.EnforcementValidator,
	"computed":       constraint.EnforcementComputedField,
	"computed_field": constraint.EnforcementComputedField,
	"immutable":      constraint.EnforcementImmutable,
	"state_machine":  constraint.EnforcementStateMachine,
	"business_logic": constraint.EnforcementBusinessLogic,
}

// MapEnforcement maps a raw enforcement hint to the canonical vocabulary.
// Anything unrecognized, including the empty hint, is DESCRIPTION:
// documented, not mechanically enforced.
func MapEnforcement(hint string) constraint.EnforcementType {
	if t, ok := enforcementVocab[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return t
	}
	return constraint.EnforcementDescription
}

// realEnforcementMarkers is the fixed, ordered pattern table for
// IsRealEnforcement. Each entry is evidence that generated code
// mechanically checks a constraint.
var realEnforcementMarkers = []string{
	// Numeric range and length operators.
	"gt=", "ge=", "lt=", "le=",
	"min_length=", "max_length=",
	"min_items=", "max_items=",
	// Immutability evidence.
	"exclude=true", "onupdate=none", "frozen=true", "allow_mutation=false",
	// Computed-field evidence.
	"@computed_field", "@property",
	// Validator evidence.
	"@field_validator", "@validator", "@model_validator",
	"unique=true", "primary_key=true", "foreign key", "foreignkey",
	"nullable=false", "index=true",
	// Business-logic evidence: documented stock movement on order flow.
	"stock decrement", "stock increment", "decrement stock", "increment stock",
}

// IsRealEnforcement judges whether code-side evidence text describes
// mechanical enforcement rather than documentation. The default is false
// for anything unrecognized; in particular, evidence that is or starts
// with "description" never counts, no matter what else it contains.
// This is the direct fix for the defect class where comment text was
// counted as enforcement and silently corrupted every downstream metric.
func IsRealEnforcement(evidence string) bool {
	e := strings.ToLower(strings.TrimSpace(evidence))
	if e == "" {
		return false
	}
	if e == "description" || strings.HasPrefix(e, "description=") || strings.HasPrefix(e, "description ") || strings.HasPrefix(e, "description:") {
		return false
	}
	for _, marker := range realEnforcementMarkers {
		if strings.Contains(e, marker) {
			return true
		}
	}
	return false
}
