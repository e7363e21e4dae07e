package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhr/leave-engine/leave"
	"github.com/lumenhr/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRegistry(t *testing.T) (*leave.Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return leave.NewRegistry(mem), mem
}

func annualFields() leave.LeaveTypeFields {
	return leave.LeaveTypeFields{
		Name:             "Annual Leave",
		Description:      "Paid vacation days",
		AccrualRate:      leave.NewDays(1.25),
		RequiresApproval: true,
		Color:            "#2d7ff9",
	}
}

// =============================================================================
// CREATE / UPDATE
// =============================================================================

func TestRegistry_Create_ActiveByDefault(t *testing.T) {
	registry, _ := newTestRegistry(t)

	lt, err := registry.Create(context.Background(), admin, annualFields())
	require.NoError(t, err)

	assert.NotEmpty(t, lt.ID)
	assert.True(t, lt.Active)
	assert.Equal(t, "1.25", lt.AccrualRate.String())
}

func TestRegistry_Create_RequiresAdminRole(t *testing.T) {
	registry, _ := newTestRegistry(t)

	mgr := leave.Actor{ID: "mgr-1", Role: leave.RoleManager}
	_, err := registry.Create(context.Background(), mgr, annualFields())
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}

func TestRegistry_Create_EmptyName_Rejected(t *testing.T) {
	registry, _ := newTestRegistry(t)

	fields := annualFields()
	fields.Name = "  "
	_, err := registry.Create(context.Background(), admin, fields)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestRegistry_Create_NegativeAccrualRate_Rejected(t *testing.T) {
	registry, _ := newTestRegistry(t)

	fields := annualFields()
	fields.AccrualRate = leave.NewDays(-1)
	_, err := registry.Create(context.Background(), admin, fields)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestRegistry_Create_NegativeMaxDays_Rejected(t *testing.T) {
	registry, _ := newTestRegistry(t)

	bad := -5
	fields := annualFields()
	fields.MaxDays = &bad
	_, err := registry.Create(context.Background(), admin, fields)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestRegistry_Update_ReplacesPolicyFields(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	lt, err := registry.Create(ctx, admin, annualFields())
	require.NoError(t, err)

	fields := annualFields()
	fields.Name = "Annual Leave (Senior)"
	fields.AccrualRate = leave.NewDays(1.75)

	updated, err := registry.Update(ctx, admin, lt.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, "Annual Leave (Senior)", updated.Name)
	assert.Equal(t, "1.75", updated.AccrualRate.String())
	assert.Equal(t, lt.ID, updated.ID)
}

func TestRegistry_Update_UnknownType_NotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Update(context.Background(), admin, "ghost", annualFields())
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// DEACTIVATE / DELETE
// =============================================================================

func TestRegistry_Deactivate_HidesFromActiveList(t *testing.T) {
	// GIVEN: Two active types
	// WHEN: One is deactivated
	// THEN: It disappears from ListActive but stays in List

	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	lt1, err := registry.Create(ctx, admin, annualFields())
	require.NoError(t, err)
	sick := annualFields()
	sick.Name = "Sick Leave"
	_, err = registry.Create(ctx, admin, sick)
	require.NoError(t, err)

	_, err = registry.Deactivate(ctx, admin, lt1.ID)
	require.NoError(t, err)

	active, err := registry.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Sick Leave", active[0].Name)

	all, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegistry_Delete_UnreferencedType_Removed(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	lt, err := registry.Create(ctx, admin, annualFields())
	require.NoError(t, err)

	require.NoError(t, registry.Delete(ctx, admin, lt.ID))

	_, err = registry.Get(ctx, lt.ID)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestRegistry_Delete_ReferencedType_Conflict(t *testing.T) {
	// GIVEN: A type with an existing balance row
	// WHEN: Deleting it
	// THEN: ErrConflict - history must not be orphaned. Deactivate instead.

	registry, mem := newTestRegistry(t)
	ctx := context.Background()

	lt, err := registry.Create(ctx, admin, annualFields())
	require.NoError(t, err)

	key := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: lt.ID, Year: 2025}
	_, err = mem.Mutate(ctx, key, func(b *leave.LeaveBalance) error {
		b.Total = leave.NewDaysFromInt(10)
		return nil
	})
	require.NoError(t, err)

	err = registry.Delete(ctx, admin, lt.ID)
	assert.ErrorIs(t, err, leave.ErrConflict)

	got, err := registry.Get(ctx, lt.ID)
	require.NoError(t, err)
	assert.Equal(t, lt.ID, got.ID, "conflicting delete must not remove the type")
}

func TestRegistry_Delete_RequiresAdminRole(t *testing.T) {
	registry, _ := newTestRegistry(t)

	emp := leave.Actor{ID: "emp-1", Role: leave.RoleEmployee}
	err := registry.Delete(context.Background(), emp, "any")
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}
