package normalize

import (
	"strings"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// keywordGroup maps descriptor markers to a canonical validation type.
// Groups are evaluated in order; the first group with a matching marker
// wins.
type keywordGroup struct {
	vtype   constraint.ValidationType
	markers []string
}

// classifierGroups is the fixed, ordered keyword table. Immutability and
// computed markers classify as CUSTOM: for those constraints the
// distinguishing dimension is the enforcement kind, not the validation
// type.
var classifierGroups = []keywordGroup{
	{constraint.ValidationFormat, []string{"email", "url", "uuid", "pattern", "regex", "format"}},
	{constraint.ValidationRange, []string{"gt", "ge", "lt", "le", "min", "max", "greater", "less", "between", "range", "positive", "negative", ">", "<"}},
	{constraint.ValidationUniqueness, []string{"unique", "primary key", "primary_key", "duplicate"}},
	{constraint.ValidationCustom, []string{"exclude", "readonly", "read-only", "read_only", "immutable", "frozen"}},
	{constraint.ValidationPresence, []string{"required", "not null", "not_null", "notnull", "mandatory", "non-empty"}},
	{constraint.ValidationCustom, []string{"computed", "generated", "derived", "auto"}},
	{constraint.ValidationRelationship, []string{"foreign key", "foreign_key", "references", "belongs to", "belongs_to"}},
	{constraint.ValidationStatusTransition, []string{"transition", "status change", "state change"}},
	{constraint.ValidationWorkflow, []string{"workflow", "stock", "inventory", "decrement", "increment"}},
}

// Classifier maps free-form constraint descriptors to the canonical
// validation-type vocabulary. Classification never fails; CUSTOM is the
// universal fallback.
type Classifier struct {
	// Extensions maps additional lowercase markers to validation types,
	// consulted after the built-in keyword groups.
	Extensions map[string]constraint.ValidationType
}

// NewClassifier creates a classifier with an optional extension table.
func NewClassifier(extensions map[string]constraint.ValidationType) *Classifier {
	return &Classifier{Extensions: extensions}
}

// Classify returns the validation type for a descriptor and whether the
// result came from an exact vocabulary match. Keyword and extension
// matches are pattern inference and carry a confidence penalty.
func (c *Classifier) Classify(descriptor string) (constraint.ValidationType, bool) {
	d := strings.ToLower(strings.TrimSpace(descriptor))
	if d == "" {
		return constraint.ValidationCustom, false
	}

	// Rule 1: exact case-insensitive match against the vocabulary.
	if vt, ok := constraint.ParseValidationType(d); ok {
		return vt, true
	}

	// Rule 2: ordered keyword-group matching.
	for _, g := range classifierGroups {
		for _, marker := range g.markers {
			if containsMarker(d, marker) {
				return g.vtype, false
			}
		}
	}

	// Rule 3: configurable extension table.
	for marker, vt := range c.Extensions {
		if containsMarker(d, strings.ToLower(marker)) {
			return vt, false
		}
	}

	// Rule 4: universal fallback.
	return constraint.ValidationCustom, false
}

// containsMarker reports whether the descriptor contains the marker as a
// token boundary match. Plain substring matching would classify
// "lesson" as a range constraint via "less". Symbol markers such as ">"
// have no token boundary and match as substrings.
func containsMarker(descriptor, marker string) bool {
	if !hasWordByte(marker) {
		return strings.Contains(descriptor, marker)
	}
	idx := 0
	for {
		i := strings.Index(descriptor[idx:], marker)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(marker)
		if boundaryBefore(descriptor, start) && boundaryAfter(descriptor, end) {
			return true
		}
		idx = start + 1
		if idx >= len(descriptor) {
			return false
		}
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func hasWordByte(s string) bool {
	for i := 0; i < len(s); i++ {
		if isWordByte(s[i]) {
			return true
		}
	}
	return false
}
