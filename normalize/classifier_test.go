package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

func TestClassifier(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		descriptor string
		want       constraint.ValidationType
		exact      bool
	}{
		// Exact vocabulary matches.
		{"range", constraint.ValidationRange, true},
		{"FORMAT", constraint.ValidationFormat, true},
		{"uniqueness", constraint.ValidationUniqueness, true},

		// Keyword-group matches.
		{"must be a valid email", constraint.ValidationFormat, false},
		{"matches uuid pattern", constraint.ValidationFormat, false},
		{"gt=0", constraint.ValidationRange, false},
		{"ge=1", constraint.ValidationRange, false},
		{">0", constraint.ValidationRange, false},
		{"max_length=64", constraint.ValidationRange, false},
		{"value must be greater than zero", constraint.ValidationRange, false},
		{"unique=true", constraint.ValidationUniqueness, false},
		{"primary key", constraint.ValidationUniqueness, false},
		{"required", constraint.ValidationPresence, false},
		{"not null", constraint.ValidationPresence, false},
		{"foreign key to customers", constraint.ValidationRelationship, false},
		{"status change pending to shipped", constraint.ValidationStatusTransition, false},
		{"stock decrement on order", constraint.ValidationWorkflow, false},
		{"immutable after creation", constraint.ValidationCustom, false},
		{"computed from line items", constraint.ValidationCustom, false},

		// Fallback.
		{"something entirely novel", constraint.ValidationCustom, false},
		{"", constraint.ValidationCustom, false},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			got, exact := c.Classify(tt.descriptor)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.exact, exact)
		})
	}
}

func TestClassifierTokenBoundaries(t *testing.T) {
	c := NewClassifier(nil)

	// "lesson" must not classify as a range constraint via "less".
	got, _ := c.Classify("lesson plan body")
	assert.Equal(t, constraint.ValidationCustom, got)

	// "maximum" has "max" only as a prefix of a longer word.
	got, _ = c.Classify("maximus")
	assert.Equal(t, constraint.ValidationCustom, got)
}

func TestClassifierExtensions(t *testing.T) {
	c := NewClassifier(map[string]constraint.ValidationType{
		"luhn": constraint.ValidationFormat,
	})

	got, exact := c.Classify("luhn checksum")
	assert.Equal(t, constraint.ValidationFormat, got)
	assert.False(t, exact)
}
