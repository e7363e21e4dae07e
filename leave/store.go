/*
store.go - Persistence interfaces for the leave core

PURPOSE:
  Defines the boundary between the business logic and the database.
  Different implementations back these with SQLite or in-memory maps;
  PostgreSQL would only change SQL dialect, not the contracts.

KEY CONTRACTS:
  BalanceStore.Mutate:
    THE atomicity primitive. Every ledger operation (reserve, commit,
    release, uncommit, adjust) is a single Mutate call: the store loads
    (or creates) the row for the key, applies fn, and persists the result
    as one unit. No two Mutate calls on the same key may interleave their
    read-modify-write. Implementations use a database transaction or a
    process-wide lock; callers never see intermediate state.

  TxStore.WithTx:
    Multi-entity atomicity. A lifecycle transition updates the request
    row AND its balance row; WithTx makes both commit or neither.

IMPLEMENTATIONS:
  - store/sqlite:      production SQLite (WAL, migrate-on-open)
  - leave/store:       in-memory, for tests and dev

SEE ALSO:
  - ledger.go: drives BalanceStore
  - lifecycle.go: drives RequestStore + BalanceStore inside WithTx
*/
package leave

import "context"

// =============================================================================
// PER-ENTITY STORES
// =============================================================================

// LeaveTypeStore persists leave type definitions.
type LeaveTypeStore interface {
	SaveLeaveType(ctx context.Context, lt LeaveType) error
	GetLeaveType(ctx context.Context, id LeaveTypeID) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error)

	// DeleteLeaveType hard-deletes a type. The registry only permits this
	// when nothing references the type; stores just execute.
	DeleteLeaveType(ctx context.Context, id LeaveTypeID) error

	// LeaveTypeReferenced reports whether any balance or request
	// references the type.
	LeaveTypeReferenced(ctx context.Context, id LeaveTypeID) (bool, error)
}

// BalanceStore persists ledger rows keyed by (employee, leave type, year).
type BalanceStore interface {
	// GetBalance returns the row for key, or a zero-valued row with the
	// key set when none exists yet. Never returns ErrNotFound.
	GetBalance(ctx context.Context, key BalanceKey) (LeaveBalance, error)

	// ListBalances returns all rows for an employee in a year.
	ListBalances(ctx context.Context, employeeID EmployeeID, year int) ([]LeaveBalance, error)

	// Mutate atomically applies fn to the row for key, creating it at
	// zero if absent. If fn returns an error, nothing is persisted and
	// the error is returned unchanged. Returns the row as persisted.
	Mutate(ctx context.Context, key BalanceKey, fn func(*LeaveBalance) error) (LeaveBalance, error)
}

// RequestStore persists leave requests. Requests are inserted and updated
// through transitions, never deleted.
type RequestStore interface {
	SaveRequest(ctx context.Context, r LeaveRequest) error
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	ListRequestsByEmployee(ctx context.Context, employeeID EmployeeID) ([]LeaveRequest, error)
	ListRequestsByStatus(ctx context.Context, status RequestStatus) ([]LeaveRequest, error)
}

// EmployeeStore persists the minimal employee records the core needs.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// AdjustmentStore persists the audit trail of direct balance mutations.
// Append-only: adjustments are never edited or removed.
type AdjustmentStore interface {
	SaveAdjustment(ctx context.Context, a Adjustment) error
	ListAdjustments(ctx context.Context, employeeID EmployeeID) ([]Adjustment, error)
}

// AccrualRunStore records which (employee, type, month) accruals have run,
// so the monthly job is idempotent.
type AccrualRunStore interface {
	// MarkAccrued records the run. Returns ErrConflict if the same
	// (employee, type, year, month) was already recorded.
	MarkAccrued(ctx context.Context, employeeID EmployeeID, typeID LeaveTypeID, year int, month int) error
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store aggregates everything the services need.
type Store interface {
	LeaveTypeStore
	BalanceStore
	RequestStore
	EmployeeStore
	AdjustmentStore
	AccrualRunStore
}

// TxStore adds multi-entity transactions.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction rolls back; otherwise it
	// commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}
