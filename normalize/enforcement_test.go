package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

func TestMapEnforcement(t *testing.T) {
	tests := []struct {
		hint string
		want constraint.EnforcementType
	}{
		{"validator", constraint.EnforcementValidator},
		{"database", constraint.EnforcementValidator},
		{"VALIDATOR", constraint.EnforcementValidator},
		{"computed", constraint.EnforcementComputedField},
		{"computed_field", constraint.EnforcementComputedField},
		{"immutable", constraint.EnforcementImmutable},
		{"state_machine", constraint.EnforcementStateMachine},
		{"business_logic", constraint.EnforcementBusinessLogic},

		// Everything unrecognized is documentation, not enforcement.
		{"description", constraint.EnforcementDescription},
		{"comment", constraint.EnforcementDescription},
		{"", constraint.EnforcementDescription},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, MapEnforcement(tt.hint))
		})
	}
}

func TestIsRealEnforcement(t *testing.T) {
	tests := []struct {
		evidence string
		want     bool
	}{
		{"gt=0", true},
		{"Field(ge=1)", true},
		{"min_length=8", true},
		{"exclude=true", true},
		{"@computed_field", true},
		{"@field_validator('email')", true},
		{"unique=true", true},
		{"ForeignKey('customers.id')", true},
		{"stock decrement on order create", true},

		// Default is false for anything unrecognized.
		{"", false},
		{"see the handbook", false},
		{"validated elsewhere", false},

		// Description text never counts, even when it mentions a marker.
		{"description", false},
		{"description='must be gt=0'", false},
		{"description: unique per tenant", false},
	}

	for _, tt := range tests {
		t.Run(tt.evidence, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRealEnforcement(tt.evidence))
		})
	}
}
