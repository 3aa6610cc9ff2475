package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// boundOp is a normalized comparison operator for numeric bounds.
type boundOp string

const (
	opGT boundOp = "gt"
	opGE boundOp = "ge"
	opLT boundOp = "lt"
	opLE boundOp = "le"
)

// bound is a parsed numeric bound constraint.
type bound struct {
	op boundOp
	n  float64
}

// boundRe matches operator/value descriptor forms: ">0", ">= 1", "gt=0",
// "ge=1", "min=1", "max_length=64".
var boundRe = regexp.MustCompile(`(?i)^\s*(>=|<=|>|<|gt|ge|lt|le|min_length|max_length|min_items|max_items|min|max)\s*=?\s*(-?\d+(?:\.\d+)?)\s*$`)

// boundOps maps descriptor operator spellings to normalized operators.
var boundOps = map[string]boundOp{
	">":          opGT,
	"gt":         opGT,
	">=":         opGE,
	"ge":         opGE,
	"min":        opGE,
	"min_length": opGE,
	"min_items":  opGE,
	"<":          opLT,
	"lt":         opLT,
	"<=":         opLE,
	"le":         opLE,
	"max":        opLE,
	"max_length": opLE,
	"max_items":  opLE,
}

// parseBound extracts a numeric bound from a constraint's descriptor or
// coerced value.
func parseBound(c constraint.NormalizedConstraint) (bound, bool) {
	descriptor := ""
	if c.Provenance != nil {
		descriptor = c.Provenance.Descriptor
	}

	if m := boundRe.FindStringSubmatch(descriptor); m != nil {
		op, ok := boundOps[strings.ToLower(m[1])]
		if !ok {
			return bound{}, false
		}
		n, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return bound{}, false
		}
		return bound{op: op, n: n}, true
	}

	// Descriptor names the operator, value carries the operand:
	// {descriptor: "gt", value: 0}.
	if op, ok := boundOps[strings.ToLower(strings.TrimSpace(descriptor))]; ok {
		if n, nok := numericValue(c.Value); nok {
			return bound{op: op, n: n}, true
		}
	}

	return bound{}, false
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// equivalence decides whether two validation constraints on the same
// (entity, field) are known-equivalent for the CATEGORY tier.
type equivalence struct {
	extra map[[2]string]bool
}

// newEquivalence builds the equivalence table from the built-in integer
// bound seeds plus configured extra descriptor pairs. The extra table is
// symmetric: (spec, code) and (code, spec) both match.
func newEquivalence(pairs []config.EquivalencePair) *equivalence {
	extra := make(map[[2]string]bool, len(pairs)*2)
	for _, p := range pairs {
		spec := strings.ToLower(strings.TrimSpace(p.Spec))
		code := strings.ToLower(strings.TrimSpace(p.Code))
		extra[[2]string{spec, code}] = true
		extra[[2]string{code, spec}] = true
	}
	return &equivalence{extra: extra}
}

// boundsEquivalent reports whether two bounds admit the same integer
// values: >N is equivalent to >=N+1, and <N to <=N-1. Only integer
// domains admit this rewrite; callers gate on the field's IR type.
func boundsEquivalent(a, b bound) bool {
	if a.op == b.op {
		return a.n == b.n
	}
	switch {
	case a.op == opGT && b.op == opGE:
		return b.n == a.n+1
	case a.op == opGE && b.op == opGT:
		return a.n == b.n+1
	case a.op == opLT && b.op == opLE:
		return b.n == a.n-1
	case a.op == opLE && b.op == opLT:
		return a.n == b.n-1
	}
	return false
}

// Equivalent reports whether spec and code constraints are
// known-equivalent, and gives the reason when they are.
func (e *equivalence) Equivalent(spec, code constraint.NormalizedConstraint, integerField bool) (string, bool) {
	if spec.Type == constraint.ValidationRange && code.Type == constraint.ValidationRange && integerField {
		sb, sok := parseBound(spec)
		cb, cok := parseBound(code)
		if sok && cok && boundsEquivalent(sb, cb) {
			return fmt.Sprintf("integer bound equivalence: %s%v = %s%v", sb.op, sb.n, cb.op, cb.n), true
		}
	}

	if spec.Provenance != nil && code.Provenance != nil {
		key := [2]string{
			strings.ToLower(strings.TrimSpace(spec.Provenance.Descriptor)),
			strings.ToLower(strings.TrimSpace(code.Provenance.Descriptor)),
		}
		if e.extra[key] {
			return "configured descriptor equivalence", true
		}
	}

	return "", false
}

// valuesCompatible reports whether an exact key match also agrees on its
// operand. A spec constraint without a value matches any code value;
// bounds compare by parsed operator and operand, everything else by
// rendered equality.
func valuesCompatible(spec, code constraint.NormalizedConstraint) bool {
	sb, sok := parseBound(spec)
	cb, cok := parseBound(code)
	if sok && cok {
		return sb == cb
	}
	if sok != cok {
		// One side is a parseable bound and the other is not; leave it
		// to the CATEGORY and FUZZY tiers.
		return false
	}

	if spec.Value == nil {
		return true
	}
	return fmt.Sprintf("%v", spec.Value) == fmt.Sprintf("%v", code.Value)
}
