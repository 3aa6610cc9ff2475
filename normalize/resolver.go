// Package normalize turns raw extractor output into canonical normalized
// constraints: entity and field resolution against the IR snapshot,
// validation-type classification, enforcement mapping, and confidence
// scoring. Resolution is deliberately rule-based and auditable; unresolved
// names are surfaced, never guessed.
package normalize

import (
	"strings"
	"unicode"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
)

// Step records which resolution rule matched, for confidence scoring and
// audit logs. Steps are ordered by increasing penalty severity.
type Step int

const (
	// StepExact is an exact case-sensitive match. No penalty.
	StepExact Step = iota

	// StepCaseVariation is a case-insensitive match.
	StepCaseVariation

	// StepCaseConversion is a snake_case/camelCase conversion match.
	StepCaseConversion

	// StepPluralSingular is a plural/singular normalization match.
	StepPluralSingular

	// StepAliasMapping is an explicit alias-table match.
	StepAliasMapping
)

// String names the step for logs.
func (s Step) String() string {
	switch s {
	case StepExact:
		return "exact"
	case StepCaseVariation:
		return "case_variation"
	case StepCaseConversion:
		return "case_conversion"
	case StepPluralSingular:
		return "plural_singular"
	case StepAliasMapping:
		return "alias_mapping"
	}
	return "unknown"
}

// EntityResolver resolves raw entity names to IR-canonical names using
// four ordered, non-overlapping rules. First match wins.
type EntityResolver struct {
	snap *ir.Snapshot
}

// NewEntityResolver creates a resolver over the given IR snapshot.
func NewEntityResolver(snap *ir.Snapshot) *EntityResolver {
	return &EntityResolver{snap: snap}
}

// Resolve maps a raw entity name to its canonical spelling.
// Rules, in order: exact match, case-insensitive match, plural/singular
// normalization, explicit alias lookup. Anything else is unresolved.
func (r *EntityResolver) Resolve(raw string) (*ir.Entity, Step, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, StepExact, false
	}

	if e, ok := r.snap.Entity(raw); ok {
		return e, StepExact, true
	}
	if e, ok := r.snap.EntityFold(raw); ok {
		return e, StepCaseVariation, true
	}
	if singular, ok := stripPlural(raw); ok {
		if e, found := r.snap.Entity(singular); found {
			return e, StepPluralSingular, true
		}
		if e, found := r.snap.EntityFold(singular); found {
			return e, StepPluralSingular, true
		}
	}
	if e, ok := r.snap.EntityAlias(raw); ok {
		return e, StepAliasMapping, true
	}
	return nil, StepExact, false
}

// FieldResolver resolves raw field names within a resolved entity.
// Same four-rule shape as EntityResolver, with snake_case/camelCase
// conversion in place of plural/singular normalization.
type FieldResolver struct {
	snap *ir.Snapshot
}

// NewFieldResolver creates a resolver over the given IR snapshot.
func NewFieldResolver(snap *ir.Snapshot) *FieldResolver {
	return &FieldResolver{snap: snap}
}

// Resolve maps a raw field name to its canonical spelling on entity.
func (r *FieldResolver) Resolve(entity, raw string) (*ir.Field, Step, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, StepExact, false
	}

	if f, ok := r.snap.Field(entity, raw); ok {
		return f, StepExact, true
	}
	if f, ok := r.snap.FieldFold(entity, raw); ok {
		return f, StepCaseVariation, true
	}
	for _, converted := range caseConversions(raw) {
		if f, ok := r.snap.Field(entity, converted); ok {
			return f, StepCaseConversion, true
		}
		if f, ok := r.snap.FieldFold(entity, converted); ok {
			return f, StepCaseConversion, true
		}
	}
	if f, ok := r.snap.FieldAlias(entity, raw); ok {
		return f, StepAliasMapping, true
	}
	return nil, StepExact, false
}

// stripPlural removes a trailing "s" for the plural/singular retry.
// Only the fixed trailing-s rule is applied; irregular plurals belong in
// the alias table.
func stripPlural(name string) (string, bool) {
	if len(name) > 1 && strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") {
		return name[:len(name)-1], true
	}
	return "", false
}

// caseConversions returns the snake_case and camelCase renderings of a
// field name that differ from the input.
func caseConversions(name string) []string {
	var out []string
	if snake := toSnake(name); snake != name {
		out = append(out, snake)
	}
	if camel := toCamel(name); camel != name {
		out = append(out, camel)
	}
	return out
}

// toSnake converts camelCase to snake_case.
func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toCamel converts snake_case to camelCase.
func toCamel(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 1 {
		return name
	}
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
