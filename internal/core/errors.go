package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no row matches a lookup.
	ErrNotFound = errors.New("row not found")

	// ErrConstraintViolation is the match target for constraint failures.
	// Concrete failures are *ConstraintError values carrying the kind and
	// table; errors.Is(err, ErrConstraintViolation) matches them.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrSchemaUninitialized is the match target for queries attempted
	// against a schema variant whose setup never completed. Live handles
	// cannot exist before setup, so this only surfaces through a failed
	// Open via *SetupError.
	ErrSchemaUninitialized = errors.New("schema not initialized")
)

// ConstraintKind classifies a constraint violation.
type ConstraintKind string

const (
	// ConstraintUnique marks uniqueness/primary-key violations.
	ConstraintUnique ConstraintKind = "unique"

	// ConstraintForeignKey marks referential-integrity violations.
	ConstraintForeignKey ConstraintKind = "foreign_key"
)

// ConstraintError reports a write rejected by a schema constraint.
// Engines construct these from driver-specific error codes so callers can
// branch without importing any driver.
type ConstraintError struct {
	// Kind classifies the violated constraint.
	Kind ConstraintKind

	// Table is the table the statement targeted, when known.
	Table string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s constraint violation on %s: %v", e.Kind, e.Table, e.Err)
	}
	return fmt.Sprintf("%s constraint violation: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error { return e.Err }

// Is matches ErrConstraintViolation so callers can use errors.Is without
// knowing the concrete type.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// SetupError reports that schema setup for a variant failed. The guard
// memoizes it: every later open of the same variant and target receives
// the same value until the process restarts.
type SetupError struct {
	// Variant is the schema variant whose setup failed.
	Variant string

	// Target is the engine target the setup ran against.
	Target string

	// Err is the migration or setup error.
	Err error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("schema setup failed for variant %q on %s: %v", e.Variant, e.Target, e.Err)
}

// Unwrap returns the underlying setup error.
func (e *SetupError) Unwrap() error { return e.Err }

// Is matches ErrSchemaUninitialized: a variant with failed setup is an
// uninitialized schema as far as callers are concerned.
func (e *SetupError) Is(target error) bool {
	return target == ErrSchemaUninitialized
}
