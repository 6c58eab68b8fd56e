/*
errors.go - Centralized error types for the leave ledger

PURPOSE:
  All error kinds in one place so the HTTP edge can map them to status
  codes with errors.Is, and domain code can attach context freely.

ERROR CATEGORIES:
  1. Validation  - malformed or missing input (400, optional details list)
  2. Not found   - unknown request or user (404)
  3. Conflict    - state-machine violation (409)
  4. Persistence - document store failures (500)

USAGE:
  return generic.Validation("refund exceeds original deduction", details...)

  if errors.Is(err, generic.ErrConflict) {
      // 409
  }

SEE ALSO:
  - store.go: persistence errors come from DocumentStore implementations
  - api/handlers.go: writeLedgerError maps these to HTTP responses
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks malformed or missing client input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown request id or user key.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a transition the request state machine forbids.
	ErrConflict = errors.New("conflict")

	// ErrPersistence marks a failed read or write against the document store.
	ErrPersistence = errors.New("persistence failure")

	// ErrConcurrentModification is returned when an optimistic store gives up
	// after repeated write conflicts.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERROR - Kind + message + optional details
// =============================================================================

// Error carries a client-facing message. Kind is one of the sentinels above.
type Error struct {
	Kind    error
	Message string
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Details)
}

func (e *Error) Unwrap() error { return e.Kind }

// Validation builds a 400-class error. Details list each violated rule.
func Validation(message string, details ...string) error {
	return &Error{Kind: ErrValidation, Message: message, Details: details}
}

// NotFound builds a 404-class error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a 409-class error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure so callers can still inspect the cause.
func Persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a state-machine violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Details extracts the details list of a structured error, if any.
func Details(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Message extracts the client-facing message of a structured error, or
// falls back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
