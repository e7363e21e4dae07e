/*
errors.go - Centralized error taxonomy for the leave core

PURPOSE:
  All failure kinds in one place. Every operation returns one of these,
  synchronously, to its immediate caller - nothing is retried internally.

ERROR CATEGORIES:
  1. ValidationError      - malformed/missing input, caller must fix
  2. PolicyViolation      - well-formed input breaking a LeaveType policy
  3. InsufficientBalance  - ledger cannot satisfy a reservation
  4. InvalidTransition    - state machine precondition not met (stale view)
  5. NotFound / Conflict  - referenced entity missing / referenced-delete
  6. Unauthorized         - actor's role does not permit the operation

USAGE:
  Callers match with errors.Is against the sentinels, or errors.As against
  the structured types for details:

    if errors.Is(err, leave.ErrInsufficientBalance) { ... }

    var tr *leave.InvalidTransitionError
    if errors.As(err, &tr) { refetch(tr.RequestID) }

SEE ALSO:
  - lifecycle.go, ledger.go, registry.go: producers of these errors
  - api/handlers.go: HTTP status mapping
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation indicates malformed or missing input. Non-retriable;
	// the caller must correct the input.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyViolation indicates well-formed input that breaks a
	// LeaveType policy (max consecutive days, missing documentation, ...).
	ErrPolicyViolation = errors.New("policy violation")

	// ErrInsufficientBalance is returned when a reservation would exceed
	// the available balance. Reported, never retried.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidTransition indicates a state machine precondition failure,
	// usually a stale client view. Callers should refetch the request.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when deleting a leave type that balances
	// or requests still reference.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when the actor's role does not permit
	// the operation. Checked before any ledger side effect.
	ErrUnauthorized = errors.New("unauthorized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PolicyViolationError names the violated policy rule.
type PolicyViolationError struct {
	Rule   string // e.g. "max_consecutive_days", "max_days_per_year"
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation: %s: %s", e.Rule, e.Detail)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// InsufficientBalanceError reports the shortage on a ledger key.
type InsufficientBalanceError struct {
	Key       BalanceKey
	Available Days
	Requested Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s/%d: available %s, requested %s",
		e.Key.EmployeeID, e.Key.LeaveTypeID, e.Key.Year, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidTransitionError reports a rejected state machine transition.
type InvalidTransitionError struct {
	RequestID RequestID
	From      RequestStatus
	Attempted string // "approve", "reject", "cancel"
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Attempted, e.RequestID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's to fix.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
