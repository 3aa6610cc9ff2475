package constraint

import (
	"errors"
	"fmt"
)

// ErrFuzzyUnavailable signals that the semantic-similarity collaborator
// could not be reached. The affected comparison degrades to TierNone;
// the surrounding batch continues.
var ErrFuzzyUnavailable = errors.New("fuzzy match collaborator unavailable")

// UnresolvedEntityError reports an entity name that could not be resolved
// against the IR snapshot. The constraint is excluded and logged, never
// silently guessed.
type UnresolvedEntityError struct {
	Name string
	Raw  RawConstraint
}

func (e *UnresolvedEntityError) Error() string {
	return fmt.Sprintf("unresolved entity %q", e.Name)
}

// UnresolvedFieldError reports a field name that could not be resolved
// within a resolved entity.
type UnresolvedFieldError struct {
	Entity string
	Name   string
	Raw    RawConstraint
}

func (e *UnresolvedFieldError) Error() string {
	return fmt.Sprintf("unresolved field %q on entity %q", e.Name, e.Entity)
}

// MalformedConstraintError reports structurally invalid extractor output
// caught at the extraction boundary.
type MalformedConstraintError struct {
	Raw RawConstraint
	Err error
}

func (e *MalformedConstraintError) Error() string {
	return fmt.Sprintf("malformed raw constraint %s.%s: %v", e.Raw.Entity, e.Raw.Field, e.Err)
}

func (e *MalformedConstraintError) Unwrap() error { return e.Err }

// IsUnresolved reports whether err is an unresolved entity or field error.
func IsUnresolved(err error) bool {
	var ee *UnresolvedEntityError
	var fe *UnresolvedFieldError
	return errors.As(err, &ee) || errors.As(err, &fe)
}

// IsMalformed reports whether err is a malformed raw constraint error.
func IsMalformed(err error) bool {
	var me *MalformedConstraintError
	return errors.As(err, &me)
}
