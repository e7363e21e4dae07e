/*
registry.go - Leave type registry (CRUD with validation gates)

PURPOSE:
  Administers the catalogue of leave categories. Pure CRUD - no state
  machine - but every write passes validation, and deletion is refused
  while any balance or request still references the type.

DEACTIVATION vs DELETION:
  Deactivate flips Active=false: the type stops being selectable for new
  requests but history stays intact. Delete removes the row and is only
  permitted for never-used types; otherwise it fails with ErrConflict.

SEE ALSO:
  - lifecycle.go: consults Active + policy fields on create
  - accrual.go: consults Active + AccrualRate
*/
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry manages leave type definitions. All writes are admin-only.
type Registry struct {
	store LeaveTypeStore
	now   func() time.Time
}

func NewRegistry(store LeaveTypeStore) *Registry {
	return &Registry{store: store, now: time.Now}
}

// LeaveTypeFields carries the mutable fields for create/update.
type LeaveTypeFields struct {
	Name                  string
	Description           string
	AccrualRate           Days
	RequiresDocumentation bool
	RequiresApproval      bool
	MaxDays               *int
	MaxConsecutiveDays    *int
	Color                 string
}

func (f LeaveTypeFields) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if strings.TrimSpace(f.Description) == "" {
		return &ValidationError{Field: "description", Detail: "must not be empty"}
	}
	if f.AccrualRate.IsNegative() {
		return &ValidationError{Field: "accrualRate", Detail: "must not be negative"}
	}
	if f.MaxDays != nil && *f.MaxDays < 0 {
		return &ValidationError{Field: "maxDays", Detail: "must not be negative"}
	}
	if f.MaxConsecutiveDays != nil && *f.MaxConsecutiveDays < 0 {
		return &ValidationError{Field: "maxConsecutiveDays", Detail: "must not be negative"}
	}
	return nil
}

// Create adds a new active leave type.
func (r *Registry) Create(ctx context.Context, actor Actor, fields LeaveTypeFields) (*LeaveType, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := fields.validate(); err != nil {
		return nil, err
	}

	now := r.now()
	lt := LeaveType{
		ID:                    LeaveTypeID(uuid.NewString()),
		Name:                  fields.Name,
		Description:           fields.Description,
		AccrualRate:           fields.AccrualRate,
		RequiresDocumentation: fields.RequiresDocumentation,
		RequiresApproval:      fields.RequiresApproval,
		MaxDays:               fields.MaxDays,
		MaxConsecutiveDays:    fields.MaxConsecutiveDays,
		Active:                true,
		Color:                 fields.Color,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := r.store.SaveLeaveType(ctx, lt); err != nil {
		return nil, err
	}
	return &lt, nil
}

// Update replaces the mutable fields of an existing leave type.
func (r *Registry) Update(ctx context.Context, actor Actor, id LeaveTypeID, fields LeaveTypeFields) (*LeaveType, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := fields.validate(); err != nil {
		return nil, err
	}

	lt, err := r.store.GetLeaveType(ctx, id)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrNotFound
	}

	lt.Name = fields.Name
	lt.Description = fields.Description
	lt.AccrualRate = fields.AccrualRate
	lt.RequiresDocumentation = fields.RequiresDocumentation
	lt.RequiresApproval = fields.RequiresApproval
	lt.MaxDays = fields.MaxDays
	lt.MaxConsecutiveDays = fields.MaxConsecutiveDays
	lt.Color = fields.Color
	lt.UpdatedAt = r.now()

	if err := r.store.SaveLeaveType(ctx, *lt); err != nil {
		return nil, err
	}
	return lt, nil
}

// Deactivate stops a leave type from being selectable for new requests.
// Existing balances and requests are untouched.
func (r *Registry) Deactivate(ctx context.Context, actor Actor, id LeaveTypeID) (*LeaveType, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	lt, err := r.store.GetLeaveType(ctx, id)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrNotFound
	}

	lt.Active = false
	lt.UpdatedAt = r.now()

	if err := r.store.SaveLeaveType(ctx, *lt); err != nil {
		return nil, err
	}
	return lt, nil
}

// Delete hard-deletes a leave type. Fails with ErrConflict while any
// balance or request references it - deactivation is the supported path
// for types that have been used.
func (r *Registry) Delete(ctx context.Context, actor Actor, id LeaveTypeID) error {
	if !actor.IsAdmin() {
		return ErrUnauthorized
	}

	lt, err := r.store.GetLeaveType(ctx, id)
	if err != nil {
		return err
	}
	if lt == nil {
		return ErrNotFound
	}

	referenced, err := r.store.LeaveTypeReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrConflict
	}

	return r.store.DeleteLeaveType(ctx, id)
}

// Get returns a leave type by ID, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id LeaveTypeID) (*LeaveType, error) {
	lt, err := r.store.GetLeaveType(ctx, id)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrNotFound
	}
	return lt, nil
}

// ListActive returns all leave types selectable for new requests.
func (r *Registry) ListActive(ctx context.Context) ([]LeaveType, error) {
	return r.store.ListLeaveTypes(ctx, true)
}

// List returns all leave types, active or not.
func (r *Registry) List(ctx context.Context) ([]LeaveType, error) {
	return r.store.ListLeaveTypes(ctx, false)
}
