package constraint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// rawValidate checks RawConstraint shape at the extraction boundary.
// Nothing downstream re-validates shape; extractor output that fails here
// is counted as a parse error and skipped.
var rawValidate = validator.New(validator.WithRequiredStructEnabled())

// RawConstraint is a single constraint as emitted by an extraction source,
// before any canonical resolution. It is immutable and lives only for the
// duration of one validation run.
type RawConstraint struct {
	// Entity is the raw entity name as the extractor saw it.
	Entity string `json:"entity" yaml:"entity" validate:"required"`

	// Field is the raw field name within the entity.
	Field string `json:"field" yaml:"field" validate:"required"`

	// Descriptor is the free-form constraint description, e.g. "ge=1",
	// "unique", "must be a valid email".
	Descriptor string `json:"descriptor" yaml:"descriptor" validate:"required"`

	// Value is an optional constraint operand (bound, pattern, enum list).
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// EnforcementHint is the raw enforcement evidence, e.g. "validator",
	// "description", "@computed_field".
	EnforcementHint string `json:"enforcement_hint,omitempty" yaml:"enforcement_hint,omitempty"`

	// Source tags which extractor produced this constraint.
	Source Source `json:"source" yaml:"source" validate:"required"`

	// Location optionally records where the constraint was found,
	// e.g. a file:line or a spec section.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Validate checks the raw constraint's shape. A failure means the
// extractor emitted structurally invalid output; the caller skips the
// item and counts it in the report's parse errors.
func (r RawConstraint) Validate() error {
	if err := rawValidate.Struct(r); err != nil {
		return &MalformedConstraintError{Raw: r, Err: err}
	}
	return nil
}

// Hash returns a stable content hash of the raw constraint, used with the
// IR version as a normalization cache key.
func (r RawConstraint) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%v\x00%s\x00%s",
		r.Entity, r.Field, r.Descriptor, r.Value, r.EnforcementHint, r.Source)
	return hex.EncodeToString(h.Sum(nil))
}
