package normalize

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/ir"
)

// Normalizer orchestrates entity resolution, field resolution,
// validation-type classification, and enforcement mapping into one
// normalize operation with confidence scoring.
type Normalizer struct {
	entities   *EntityResolver
	fields     *FieldResolver
	classifier *Classifier
	penalties  config.PenaltiesConfig
	logger     *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// WithExtensions sets the classifier extension table.
func WithExtensions(ext map[string]constraint.ValidationType) Option {
	return func(n *Normalizer) {
		n.classifier = NewClassifier(ext)
	}
}

// New creates a Normalizer over an IR snapshot with the given penalty table.
func New(snap *ir.Snapshot, penalties config.PenaltiesConfig, opts ...Option) *Normalizer {
	n := &Normalizer{
		entities:   NewEntityResolver(snap),
		fields:     NewFieldResolver(snap),
		classifier: NewClassifier(nil),
		penalties:  penalties,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize resolves one raw constraint to canonical form. The five
// steps run in order: entity resolution, field resolution within the
// entity, validation-type classification, enforcement mapping, and value
// coercion. Steps 3-5 never fail.
func (n *Normalizer) Normalize(raw constraint.RawConstraint) (constraint.NormalizedConstraint, error) {
	if err := raw.Validate(); err != nil {
		return constraint.NormalizedConstraint{}, err
	}

	entity, entityStep, ok := n.entities.Resolve(raw.Entity)
	if !ok {
		return constraint.NormalizedConstraint{}, &constraint.UnresolvedEntityError{Name: raw.Entity, Raw: raw}
	}

	field, fieldStep, ok := n.fields.Resolve(entity.Name, raw.Field)
	if !ok {
		return constraint.NormalizedConstraint{}, &constraint.UnresolvedFieldError{Entity: entity.Name, Name: raw.Field, Raw: raw}
	}

	vtype, exact := n.classifier.Classify(raw.Descriptor)
	enforcement := MapEnforcement(raw.EnforcementHint)
	value := coerceValue(vtype, raw.Descriptor, raw.Value)

	confidence := 1.0
	confidence -= n.stepPenalty(entityStep)
	confidence -= n.stepPenalty(fieldStep)
	if !exact {
		confidence -= n.penalties.PatternInference
	}
	confidence -= n.penalties.SourcePenalty(raw.Source)
	confidence = round2(math.Max(confidence, 0))

	provenance := raw
	return constraint.NormalizedConstraint{
		Entity:      entity.Name,
		Field:       field.Name,
		Type:        vtype,
		Enforcement: enforcement,
		Value:       value,
		Confidence:  confidence,
		Source:      raw.Source,
		Provenance:  &provenance,
	}, nil
}

// NormalizeBatch normalizes a slice of raw constraints, preserving input
// order and isolating per-item failures. A bad item never aborts the
// batch; its error is collected and the next item proceeds.
func (n *Normalizer) NormalizeBatch(raws []constraint.RawConstraint) ([]constraint.NormalizedConstraint, []error) {
	normalized := make([]constraint.NormalizedConstraint, 0, len(raws))
	var errs []error

	for _, raw := range raws {
		nc, err := n.Normalize(raw)
		if err != nil {
			switch {
			case constraint.IsMalformed(err):
				n.logger.Warn("Skipping malformed raw constraint",
					"entity", raw.Entity, "field", raw.Field, "error", err)
			case constraint.IsUnresolved(err):
				n.logger.Warn("Skipping unresolved raw constraint",
					"entity", raw.Entity, "field", raw.Field,
					"source", raw.Source, "error", err)
			}
			errs = append(errs, err)
			continue
		}
		normalized = append(normalized, nc)
	}

	return normalized, errs
}

// stepPenalty maps a resolution step to its configured penalty.
func (n *Normalizer) stepPenalty(step Step) float64 {
	switch step {
	case StepCaseVariation:
		return n.penalties.CaseVariation
	case StepCaseConversion:
		return n.penalties.CaseConversion
	case StepPluralSingular:
		return n.penalties.PluralSingular
	case StepAliasMapping:
		return n.penalties.AliasMapping
	}
	return 0
}

// coerceValue converts the raw value into the shape its validation type
// expects: numeric for RANGE, integer for length bounds, passthrough
// otherwise.
func coerceValue(vtype constraint.ValidationType, descriptor string, value any) any {
	if value == nil || vtype != constraint.ValidationRange {
		return value
	}

	lengthBound := strings.Contains(strings.ToLower(descriptor), "length") ||
		strings.Contains(strings.ToLower(descriptor), "items")

	switch v := value.(type) {
	case string:
		if lengthBound {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
			return v
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return v
	case int:
		if lengthBound {
			return v
		}
		return float64(v)
	case int64:
		if lengthBound {
			return int(v)
		}
		return float64(v)
	case float64:
		if lengthBound {
			return int(v)
		}
		return v
	}
	return value
}

// round2 rounds to two decimals, the precision confidence is reported at.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
