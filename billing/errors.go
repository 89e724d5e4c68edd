/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is against the sentinels; the
  structured types carry the context for logs and API responses.

ERROR CATEGORIES:
  1. Validation  - rejected before any mutation
  2. Forbidden   - the Access Scope Resolver denied the actor
  3. Not found   - an id did not resolve (distinct from forbidden)
  4. Conflict    - duplicate invoice line, duplicate tax expense
  5. Store       - transaction abort or unexpected persistence failure

SEE ALSO:
  - engine.go: Converts store results into these errors
  - api/handlers.go: Maps categories to HTTP status codes
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")

	// ErrConflict is also what stores return on a uniqueness violation.
	ErrConflict = errors.New("conflict")

	ErrStore = errors.New("store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Kind string // "service", "period", "invoice", ...
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

type ForbiddenError struct {
	ActorID EmployeeID
	Section Section
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %q may not act on this %s record", e.ActorID, e.Section)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string { return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key) }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StoreError wraps an unexpected persistence failure. It matches ErrStore
// and still unwraps to the driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// storeErr passes engine errors through and wraps everything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) || IsForbidden(err) || errors.Is(err, ErrStore) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool  { return errors.Is(err, ErrConflict) }
