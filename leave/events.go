/*
events.go - Lifecycle events for notification fan-out

PURPOSE:
  Every state machine transition emits one event. The core only defines
  the event shape and a Dispatcher seam; delivery (email, socket, push)
  belongs to the external notification collaborator.

DELIVERY SEMANTICS:
  Events are dispatched AFTER the transition and its ledger side effect
  have committed. Dispatch failures are the dispatcher's problem; the
  transition does not roll back for them.

SEE ALSO:
  - lifecycle.go: emits these events
  - cmd/server/main.go: wires the dispatcher
*/
package leave

import (
	"context"
	"log"
	"sync"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventKind string

const (
	EventRequestCreated  EventKind = "leave_request_created"
	EventRequestApproved EventKind = "leave_request_approved"
	EventRequestRejected EventKind = "leave_request_rejected"
	EventRequestCanceled EventKind = "leave_request_canceled"
)

// Event describes one lifecycle transition for downstream notification.
type Event struct {
	Kind       EventKind
	RequestID  RequestID
	EmployeeID EmployeeID

	// ManagerID is resolved from the employee record when available;
	// empty when the employee has no manager on file.
	ManagerID EmployeeID

	LeaveTypeID LeaveTypeID
	StartDate   Date
	EndDate     Date
	Days        int

	// ActorID is who triggered the transition (approver, rejecter, canceller).
	ActorID EmployeeID

	// Comments is set for approve/reject events.
	Comments string

	OccurredAt time.Time
}

// Dispatcher receives lifecycle events. Implementations must be safe for
// concurrent use; they must not block the request path on slow transports.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event)
}

// NopDispatcher drops all events. Used when notifications are disabled.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}

// LogDispatcher logs each event. The default wiring until a real
// notification transport is attached.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, e Event) {
	log.Printf("[Events] %s request=%s employee=%s manager=%s days=%d",
		e.Kind, e.RequestID, e.EmployeeID, e.ManagerID, e.Days)
}

// =============================================================================
// RECORDER - In-memory dispatcher for tests
// =============================================================================

// Recorder collects dispatched events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Dispatch(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything dispatched so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event, or false when none were dispatched.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
