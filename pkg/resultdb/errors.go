package resultdb

import (
	"fmt"

	"github.com/perfline/resultdb/internal/core"
)

// Sentinel errors re-exported from the internal taxonomy so callers only
// import this package. Match them with errors.Is.
var (
	// ErrNotFound reports that no row matched a lookup. It is an
	// expected outcome, not a failure.
	ErrNotFound = core.ErrNotFound

	// ErrConstraintViolation reports a uniqueness or foreign-key
	// violation. The concrete error is a *ConstraintError.
	ErrConstraintViolation = core.ErrConstraintViolation

	// ErrSchemaUninitialized reports that a variant's one-time setup
	// failed. It only surfaces through Open; a live handle implies the
	// schema is ready.
	ErrSchemaUninitialized = core.ErrSchemaUninitialized
)

// ConstraintError carries the violation kind and, when known, the table.
type ConstraintError = core.ConstraintError

// SetupError is the memoized failure of a variant's schema setup.
type SetupError = core.SetupError

// MissingCapabilityError reports a row or key type used with the generic
// query layer before its binding was registered.
type MissingCapabilityError struct {
	// Kind is "row" or "key".
	Kind string

	// Type is the Go type name the lookup failed for.
	Type string
}

// Error implements the error interface.
func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("no %s binding registered for type %s", e.Kind, e.Type)
}
