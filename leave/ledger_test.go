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

func newTestLedger(t *testing.T) (*leave.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return leave.NewLedger(mem), mem
}

func testKey() leave.BalanceKey {
	return leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "annual", Year: 2025}
}

var admin = leave.Actor{ID: "admin-1", Role: leave.RoleAdmin}

// =============================================================================
// RESERVE / RELEASE
// =============================================================================

func TestLedger_Reserve_HoldsDaysAsPending(t *testing.T) {
	// GIVEN: A balance of 10 total days
	// WHEN: Reserving 3 days
	// THEN: Pending is 3 and available drops to 7

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(10)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(3)))

	b, err := ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "3", b.Pending.String())
	assert.Equal(t, "7", b.Available().String())
}

func TestLedger_Reserve_InsufficientBalance_Rejected(t *testing.T) {
	// GIVEN: 2 available days
	// WHEN: Reserving 3
	// THEN: InsufficientBalanceError, balance untouched

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(2)))

	err := ledger.Reserve(ctx, key, leave.NewDaysFromInt(3))
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var insErr *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, "2", insErr.Available.String())
	assert.Equal(t, "3", insErr.Requested.String())

	b, err := ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Pending.IsZero(), "failed reserve must not hold days")
}

func TestLedger_Reserve_NonPositiveDays_Rejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	err := ledger.Reserve(ctx, testKey(), leave.ZeroDays())
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestLedger_Release_FlooredAtZero(t *testing.T) {
	// GIVEN: 1 pending day
	// WHEN: Releasing 5 (inconsistent caller)
	// THEN: Pending floors at 0, never negative

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(10)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(1)))
	require.NoError(t, ledger.Release(ctx, key, leave.NewDaysFromInt(5)))

	b, err := ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Pending.IsZero())
}

// =============================================================================
// COMMIT / UNCOMMIT
// =============================================================================

func TestLedger_Commit_MovesPendingToUsed(t *testing.T) {
	// GIVEN: 3 days reserved out of 10
	// WHEN: Committing the 3 days
	// THEN: Used is 3, pending is 0, available stays 7

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(10)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(3)))
	require.NoError(t, ledger.Commit(ctx, key, leave.NewDaysFromInt(3)))

	b, err := ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "3", b.Used.String())
	assert.True(t, b.Pending.IsZero())
	assert.Equal(t, "7", b.Available().String())
}

func TestLedger_Uncommit_RestoresUsedDays(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(10)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(4)))
	require.NoError(t, ledger.Commit(ctx, key, leave.NewDaysFromInt(4)))
	require.NoError(t, ledger.Uncommit(ctx, key, leave.NewDaysFromInt(4)))

	b, err := ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero())
	assert.Equal(t, "10", b.Available().String())
}

// =============================================================================
// AVAILABLE
// =============================================================================

func TestLedger_Available_UnknownKeyIsZero(t *testing.T) {
	// A key never written reads as an all-zero row, not an error.

	ledger, _ := newTestLedger(t)

	avail, err := ledger.Available(context.Background(), testKey())
	require.NoError(t, err)
	assert.True(t, avail.IsZero())
}

func TestLedger_Available_NeverNegative(t *testing.T) {
	// GIVEN: Used pushed past total by an adjustment downward
	// THEN: Available clamps to 0

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(5)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(5)))
	require.NoError(t, ledger.Commit(ctx, key, leave.NewDaysFromInt(5)))

	_, err := ledger.Adjust(ctx, admin, key, leave.NewDaysFromInt(-3), "entitlement correction")
	require.NoError(t, err)

	avail, err := ledger.Available(ctx, key)
	require.NoError(t, err)
	assert.True(t, avail.IsZero())
}

// =============================================================================
// ADJUST
// =============================================================================

func TestLedger_Adjust_PositiveDeltaIncreasesTotal(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	b, err := ledger.Adjust(ctx, admin, key, leave.NewDays(2.5), "signing bonus days")
	require.NoError(t, err)
	assert.Equal(t, "2.5", b.Total.String())

	// Audit row recorded alongside
	adjs, err := mem.ListAdjustments(ctx, key.EmployeeID)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, "signing bonus days", adjs[0].Reason)
	assert.Equal(t, admin.ID, adjs[0].ActorID)
}

func TestLedger_Adjust_NegativeDeltaFlooredAtZero(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(3)))

	b, err := ledger.Adjust(ctx, admin, key, leave.NewDaysFromInt(-10), "clawback")
	require.NoError(t, err)
	assert.True(t, b.Total.IsZero())
}

func TestLedger_Adjust_RequiresAdminRole(t *testing.T) {
	ledger, _ := newTestLedger(t)

	manager := leave.Actor{ID: "mgr-1", Role: leave.RoleManager}
	_, err := ledger.Adjust(context.Background(), manager, testKey(), leave.NewDaysFromInt(1), "nope")
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}

func TestLedger_Adjust_RequiresReason(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Adjust(context.Background(), admin, testKey(), leave.NewDaysFromInt(1), "   ")
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestLedger_Adjust_UsedAndPendingUntouched(t *testing.T) {
	// Adjustments move entitlement only; consumption history stays intact.

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, ledger.Accrue(ctx, key, leave.NewDaysFromInt(10)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(2)))
	require.NoError(t, ledger.Commit(ctx, key, leave.NewDaysFromInt(2)))
	require.NoError(t, ledger.Reserve(ctx, key, leave.NewDaysFromInt(1)))

	b, err := ledger.Adjust(ctx, admin, key, leave.NewDaysFromInt(5), "carryover grant")
	require.NoError(t, err)

	assert.Equal(t, "15", b.Total.String())
	assert.Equal(t, "2", b.Used.String())
	assert.Equal(t, "1", b.Pending.String())
}

// =============================================================================
// FRACTIONAL DAYS
// =============================================================================

func TestLedger_FractionalAccrual_ExactArithmetic(t *testing.T) {
	// 12 monthly accruals of 1.25 must come out to exactly 15, not 14.999...

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	key := testKey()

	for i := 0; i < 12; i++ {
		require.NoError(t, ledger.Accrue(ctx, key, leave.NewDays(1.25)))
	}

	b, err := ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "15", b.Total.String())
}
