/*
lifecycle.go - Leave request state machine

PURPOSE:
  Governs a request from creation through its terminal state, keeping the
  balance ledger in lockstep:

      create   →  PENDING     reserve(days)
      approve  →  APPROVED    commit(days)
      reject   →  REJECTED    release(days)
      cancel   →  CANCELLED   release(days)            (from PENDING)
      cancel   →  CANCELLED   uncommit(days)           (from APPROVED, policy-gated)

  APPROVED, REJECTED and CANCELLED are terminal. Any transition attempted
  from a terminal state fails with InvalidTransitionError and touches
  nothing - calling approve twice must fail the second time, never
  silently succeed.

VALIDATION ORDER (create):
  1. leave type exists and is active
  2. startDate <= endDate
  3. startDate not in the past (submission-time check only; an approved
     future leave is not re-validated as time passes)
  4. reason mandatory when the type requires documentation
  5. numberOfDays <= maxConsecutiveDays when set
  6. used + pending + numberOfDays <= maxDays when set
  7. ledger reserve (InsufficientBalance propagates)

ATOMICITY:
  The request row and its ledger side effect commit in one WithTx unit.
  There is no partial-failure mode: a failed reserve leaves no request,
  a failed save releases nothing.

AUTHORIZATION:
  Role gates run before any side effect: create needs the owning employee
  or an admin, approve/reject need manager or admin, cancel needs the
  owning employee or an admin. Resolving WHO the actor is belongs to the
  external auth context.

EVENTS:
  Each committed transition dispatches one event (created/approved/
  rejected/canceled) carrying the employee, resolved manager, date range
  and comments. Dispatch happens after commit and never rolls back the
  transition.

SEE ALSO:
  - ledger.go: balance operations
  - events.go: event shapes and Dispatcher
*/
package leave

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LIFECYCLE SERVICE
// =============================================================================

// LifecycleConfig carries deployment policy for the state machine.
type LifecycleConfig struct {
	// AllowCancelApproved enables APPROVED → CANCELLED with a ledger
	// uncommit. Off by default: most deployments only let employees
	// withdraw requests that are still pending.
	AllowCancelApproved bool
}

// Lifecycle runs the request state machine over an injected store.
// It holds no request state of its own.
type Lifecycle struct {
	store      TxStore
	dispatcher Dispatcher
	config     LifecycleConfig

	// now and today are injectable for tests.
	now   func() time.Time
	today func() Date
}

func NewLifecycle(store TxStore, dispatcher Dispatcher, config LifecycleConfig) *Lifecycle {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	return &Lifecycle{
		store:      store,
		dispatcher: dispatcher,
		config:     config,
		now:        time.Now,
		today:      Today,
	}
}

// =============================================================================
// CREATE: → PENDING
// =============================================================================

// CreateInput carries the fields for a new request.
type CreateInput struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	StartDate   Date
	EndDate     Date
	Reason      string
}

// Create validates the request against the leave type's policy, reserves
// the days on the ledger, and persists the request as PENDING.
func (lc *Lifecycle) Create(ctx context.Context, actor Actor, in CreateInput) (*LeaveRequest, error) {
	if actor.ID != in.EmployeeID && !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	lt, err := lc.store.GetLeaveType(ctx, in.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrNotFound
	}
	if !lt.Active {
		return nil, &PolicyViolationError{Rule: "inactive_leave_type",
			Detail: "leave type " + string(lt.ID) + " is not selectable for new requests"}
	}

	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, &ValidationError{Field: "startDate/endDate", Detail: "must be provided"}
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, &ValidationError{Field: "endDate", Detail: "must not be before startDate"}
	}
	if in.StartDate.Before(lc.today()) {
		return nil, &ValidationError{Field: "startDate", Detail: "must not be in the past"}
	}

	numberOfDays := InclusiveDays(in.StartDate, in.EndDate)

	if lt.RequiresDocumentation && strings.TrimSpace(in.Reason) == "" {
		return nil, &ValidationError{Field: "reason",
			Detail: "leave type " + lt.Name + " requires documentation"}
	}
	if lt.MaxConsecutiveDays != nil && numberOfDays > *lt.MaxConsecutiveDays {
		return nil, &PolicyViolationError{Rule: "max_consecutive_days",
			Detail: "requested " + strconv.Itoa(numberOfDays) + " days, limit is " + strconv.Itoa(*lt.MaxConsecutiveDays)}
	}

	now := lc.now()
	request := LeaveRequest{
		ID:           RequestID(uuid.NewString()),
		EmployeeID:   in.EmployeeID,
		LeaveTypeID:  in.LeaveTypeID,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		NumberOfDays: numberOfDays,
		Reason:       in.Reason,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	key := request.BalanceKey()
	days := request.Days()

	err = lc.store.WithTx(ctx, func(s Store) error {
		_, mErr := s.Mutate(ctx, key, func(b *LeaveBalance) error {
			// Per-year cap counts consumption plus reservations, so a
			// burst of pending requests cannot tunnel under the cap.
			if lt.MaxDays != nil {
				committed := b.Used.Add(b.Pending).Add(days)
				if committed.GreaterThan(NewDaysFromInt(*lt.MaxDays)) {
					return &PolicyViolationError{Rule: "max_days_per_year",
						Detail: "yearly cap of " + strconv.Itoa(*lt.MaxDays) + " days exceeded"}
				}
			}
			if b.Available().LessThan(days) {
				return &InsufficientBalanceError{Key: key, Available: b.Available(), Requested: days}
			}
			b.Pending = b.Pending.Add(days)
			return nil
		})
		if mErr != nil {
			return mErr
		}
		return s.SaveRequest(ctx, request)
	})
	if err != nil {
		return nil, err
	}

	lc.emit(ctx, EventRequestCreated, request, actor, "")
	return &request, nil
}

// =============================================================================
// APPROVE: PENDING → APPROVED
// =============================================================================

// Approve moves a pending request to APPROVED and commits the reserved
// days (pending → used). Comments are optional.
func (lc *Lifecycle) Approve(ctx context.Context, actor Actor, id RequestID, comments string) (*LeaveRequest, error) {
	if !actor.CanApprove() {
		return nil, ErrUnauthorized
	}

	return lc.transition(ctx, id, "approve", func(r *LeaveRequest, s Store) error {
		if r.Status != StatusPending {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, Attempted: "approve"}
		}
		r.Status = StatusApproved
		r.ApprovedByID = actor.ID
		r.Comments = comments

		days := r.Days()
		_, err := s.Mutate(ctx, r.BalanceKey(), func(b *LeaveBalance) error {
			b.Pending = b.Pending.Sub(days).Max0()
			b.Used = b.Used.Add(days)
			return nil
		})
		return err
	}, EventRequestApproved, actor, comments)
}

// =============================================================================
// REJECT: PENDING → REJECTED
// =============================================================================

// Reject moves a pending request to REJECTED and releases the reserved
// days. Comments are mandatory - the employee must learn why.
func (lc *Lifecycle) Reject(ctx context.Context, actor Actor, id RequestID, comments string) (*LeaveRequest, error) {
	if !actor.CanApprove() {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(comments) == "" {
		return nil, &ValidationError{Field: "comments", Detail: "mandatory when rejecting"}
	}

	return lc.transition(ctx, id, "reject", func(r *LeaveRequest, s Store) error {
		if r.Status != StatusPending {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, Attempted: "reject"}
		}
		r.Status = StatusRejected
		r.ApprovedByID = actor.ID
		r.Comments = comments

		days := r.Days()
		_, err := s.Mutate(ctx, r.BalanceKey(), func(b *LeaveBalance) error {
			b.Pending = b.Pending.Sub(days).Max0()
			return nil
		})
		return err
	}, EventRequestRejected, actor, comments)
}

// =============================================================================
// CANCEL: PENDING → CANCELLED (and APPROVED → CANCELLED when enabled)
// =============================================================================

// Cancel withdraws a request. From PENDING it releases the reservation;
// from APPROVED - only when AllowCancelApproved is set - it uncommits the
// consumed days. Only the owning employee or an admin may cancel.
func (lc *Lifecycle) Cancel(ctx context.Context, actor Actor, id RequestID) (*LeaveRequest, error) {
	existing, err := lc.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if actor.ID != existing.EmployeeID && !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	return lc.transition(ctx, id, "cancel", func(r *LeaveRequest, s Store) error {
		days := r.Days()
		switch r.Status {
		case StatusPending:
			r.Status = StatusCancelled
			_, err := s.Mutate(ctx, r.BalanceKey(), func(b *LeaveBalance) error {
				b.Pending = b.Pending.Sub(days).Max0()
				return nil
			})
			return err

		case StatusApproved:
			if !lc.config.AllowCancelApproved {
				return &InvalidTransitionError{RequestID: r.ID, From: r.Status, Attempted: "cancel"}
			}
			r.Status = StatusCancelled
			_, err := s.Mutate(ctx, r.BalanceKey(), func(b *LeaveBalance) error {
				b.Used = b.Used.Sub(days).Max0()
				return nil
			})
			return err

		default:
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, Attempted: "cancel"}
		}
	}, EventRequestCanceled, actor, "")
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a request by ID, or ErrNotFound.
func (lc *Lifecycle) Get(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	r, err := lc.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// ListByEmployee returns all requests for an employee, newest first.
func (lc *Lifecycle) ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]LeaveRequest, error) {
	return lc.store.ListRequestsByEmployee(ctx, employeeID)
}

// ListByStatus returns all requests in a status (e.g. the pending queue).
func (lc *Lifecycle) ListByStatus(ctx context.Context, status RequestStatus) ([]LeaveRequest, error) {
	return lc.store.ListRequestsByStatus(ctx, status)
}

// =============================================================================
// INTERNALS
// =============================================================================

// transition loads the request, applies fn to it and its balance inside
// one transaction, saves it, and emits the event on success.
func (lc *Lifecycle) transition(
	ctx context.Context,
	id RequestID,
	name string,
	fn func(*LeaveRequest, Store) error,
	kind EventKind,
	actor Actor,
	comments string,
) (*LeaveRequest, error) {
	var updated LeaveRequest

	err := lc.store.WithTx(ctx, func(s Store) error {
		r, err := s.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrNotFound
		}
		if err := fn(r, s); err != nil {
			return err
		}
		r.UpdatedAt = lc.now()
		updated = *r
		return s.SaveRequest(ctx, *r)
	})
	if err != nil {
		return nil, err
	}

	lc.emit(ctx, kind, updated, actor, comments)
	return &updated, nil
}

func (lc *Lifecycle) emit(ctx context.Context, kind EventKind, r LeaveRequest, actor Actor, comments string) {
	var managerID EmployeeID
	if emp, err := lc.store.GetEmployee(ctx, r.EmployeeID); err == nil && emp != nil {
		managerID = emp.ManagerID
	}

	lc.dispatcher.Dispatch(ctx, Event{
		Kind:        kind,
		RequestID:   r.ID,
		EmployeeID:  r.EmployeeID,
		ManagerID:   managerID,
		LeaveTypeID: r.LeaveTypeID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Days:        r.NumberOfDays,
		ActorID:     actor.ID,
		Comments:    comments,
		OccurredAt:  lc.now(),
	})
}
