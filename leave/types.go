/*
Package leave implements the leave request lifecycle and balance ledger.

PURPOSE:
  This package contains the business core of the leave management system:
  leave type policies, per-employee balance accounting, and the request
  state machine (PENDING → APPROVED/REJECTED/CANCELLED). Everything else
  (HTTP, persistence drivers, notification transport) hangs off the
  interfaces defined here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A day quantity backed by decimal.Decimal (accrual rates are fractional)
  - LeaveType: A leave category with its policy parameters
  - LeaveBalance: The ledger row for one (employee, leave type, year)
  - LeaveRequest: A single request moving through the state machine
  - Actor: Who is performing an operation, with their role

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all day arithmetic, never float64
  2. Type Safety: Strong typing for IDs prevents mixing employee/type IDs
  3. Explicit services: no package-level state; everything is injected
  4. Auditability: adjustments always carry a reason and an actor

SEE ALSO:
  - ledger.go: Balance mutations (reserve/commit/release/uncommit/adjust)
  - lifecycle.go: Request state machine
  - registry.go: Leave type CRUD and validation
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Day quantity with decimal precision
// =============================================================================

// Days is a quantity of leave days. Backed by decimal so that fractional
// accrual rates (e.g. 1.25 days/month) never drift.
type Days struct {
	value decimal.Decimal
}

func NewDays(v float64) Days    { return Days{value: decimal.NewFromFloat(v)} }
func NewDaysFromInt(v int) Days { return Days{value: decimal.NewFromInt(int64(v))} }
func ZeroDays() Days            { return Days{value: decimal.Zero} }

// ParseDays parses a decimal day amount.
func ParseDays(s string) (Days, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Days{}, err
	}
	return Days{value: d}, nil
}

func (d Days) Add(o Days) Days         { return Days{value: d.value.Add(o.value)} }
func (d Days) Sub(o Days) Days         { return Days{value: d.value.Sub(o.value)} }
func (d Days) Neg() Days               { return Days{value: d.value.Neg()} }
func (d Days) IsZero() bool            { return d.value.IsZero() }
func (d Days) IsNegative() bool        { return d.value.IsNegative() }
func (d Days) IsPositive() bool        { return d.value.IsPositive() }
func (d Days) LessThan(o Days) bool    { return d.value.LessThan(o.value) }
func (d Days) GreaterThan(o Days) bool { return d.value.GreaterThan(o.value) }
func (d Days) Equal(o Days) bool       { return d.value.Equal(o.value) }
func (d Days) Float64() float64        { f, _ := d.value.Float64(); return f }
func (d Days) String() string          { return d.value.String() }

func (d Days) Decimal() decimal.Decimal { return d.value }

// Max0 floors the amount at zero. Release and uncommit use this so a stale
// double-release can never drive used/pending negative.
func (d Days) Max0() Days {
	if d.value.IsNegative() {
		return ZeroDays()
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type RequestID string

// =============================================================================
// LEAVE TYPE - A leave category and its policy parameters
// =============================================================================

// LeaveType defines a category of absence (sick, vacation, ...) together with
// the policy knobs the lifecycle validates against.
//
// INVARIANTS:
//   - AccrualRate >= 0 (days credited per month)
//   - MaxDays, MaxConsecutiveDays >= 0 when set; nil = unlimited
//
// Leave types are never hard-deleted while referenced by balances or
// requests; they are deactivated instead (Active governs selectability
// for NEW requests only).
type LeaveType struct {
	ID          LeaveTypeID
	Name        string
	Description string

	// Days credited per month by the accrual job. May be fractional.
	AccrualRate Days

	// RequiresDocumentation makes the request reason mandatory.
	RequiresDocumentation bool

	// RequiresApproval is informational for the UI; every request still
	// enters PENDING and moves through the same state machine.
	RequiresApproval bool

	// Per-year cap on used+pending days. nil = unlimited.
	MaxDays *int

	// Cap on a single request's inclusive day count. nil = unlimited.
	MaxConsecutiveDays *int

	Active bool

	// Display only. Irrelevant to any business rule.
	Color string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEAVE BALANCE - Ledger row for one (employee, leave type, year)
// =============================================================================

// BalanceKey identifies one ledger row. All ledger mutations are atomic
// per key (see BalanceStore.Mutate).
type BalanceKey struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int
}

// LeaveBalance tracks entitlement, consumption and reservation for a key.
//
// INVARIANTS: Total >= 0, Used >= 0, Pending >= 0.
// Available is derived, never stored, and never negative.
type LeaveBalance struct {
	Key     BalanceKey
	Total   Days // accrued entitlement for the year
	Used    Days // consumed by approved requests
	Pending Days // reserved by pending requests

	UpdatedAt time.Time
}

// Available returns max(0, Total - Used - Pending).
func (b LeaveBalance) Available() Days {
	return b.Total.Sub(b.Used).Sub(b.Pending).Max0()
}

// =============================================================================
// LEAVE REQUEST - State machine entity
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusCancelled RequestStatus = "CANCELLED"
)

// Terminal reports whether no further transition is permitted from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// LeaveRequest is a single request for a contiguous date range.
// Requests are never deleted; terminal requests remain for audit/history.
type LeaveRequest struct {
	ID          RequestID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID

	StartDate Date
	EndDate   Date

	// Inclusive day count: (EndDate - StartDate) + 1. Always >= 1.
	NumberOfDays int

	// Mandatory when the leave type requires documentation.
	Reason string

	Status RequestStatus

	// Set on approve/reject.
	ApprovedByID EmployeeID
	Comments     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceKey returns the ledger key this request reserves against.
// Requests spanning a year boundary are attributed entirely to the
// year of their start date.
func (r LeaveRequest) BalanceKey() BalanceKey {
	return BalanceKey{
		EmployeeID:  r.EmployeeID,
		LeaveTypeID: r.LeaveTypeID,
		Year:        r.StartDate.Year(),
	}
}

// Days returns NumberOfDays as a Days amount.
func (r LeaveRequest) Days() Days { return NewDaysFromInt(r.NumberOfDays) }

// =============================================================================
// ACTOR - Authorization context for an operation
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated principal performing an operation. The auth
// layer (external) resolves it; the services here only enforce role gates.
type Actor struct {
	ID   EmployeeID
	Role Role
}

func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) CanApprove() bool { return a.Role == RoleManager || a.Role == RoleAdmin }

// =============================================================================
// EMPLOYEE - Minimal record the core needs
// =============================================================================

// Employee is the slice of the (external) employee aggregate the core
// needs: accrual fan-out and manager resolution for notification events.
type Employee struct {
	ID        EmployeeID
	Name      string
	Email     string
	ManagerID EmployeeID
	HireDate  Date
	CreatedAt time.Time
}

// =============================================================================
// ADJUSTMENT - Audit record for direct balance mutations
// =============================================================================

// Adjustment records an admin mutation of a balance's Total.
//
// SIGN CONVENTION: a positive Delta increases Total, a negative Delta
// decreases it (floored at zero). Used is never touched by adjustments.
type Adjustment struct {
	ID        string
	Key       BalanceKey
	Delta     Days
	Reason    string
	ActorID   EmployeeID
	CreatedAt time.Time
}
