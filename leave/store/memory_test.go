package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhr/leave-engine/leave"
	"github.com/lumenhr/leave-engine/leave/store"
)

func testKey() leave.BalanceKey {
	return leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "annual", Year: 2025}
}

func TestMemory_GetBalance_UnknownKeyIsZeroRow(t *testing.T) {
	mem := store.NewMemory()

	b, err := mem.GetBalance(context.Background(), testKey())
	require.NoError(t, err)
	assert.Equal(t, testKey(), b.Key)
	assert.True(t, b.Total.IsZero())
}

func TestMemory_Mutate_ErrorLeavesRowUnchanged(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.Mutate(ctx, testKey(), func(b *leave.LeaveBalance) error {
		b.Total = leave.NewDaysFromInt(5)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = mem.Mutate(ctx, testKey(), func(b *leave.LeaveBalance) error {
		b.Total = leave.NewDaysFromInt(99)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := mem.GetBalance(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "5", b.Total.String())
}

func TestMemory_WithTx_ErrorRollsBackEverything(t *testing.T) {
	// GIVEN: A transaction that saves a request, mutates a balance, then fails
	// THEN: Neither write survives

	mem := store.NewMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := mem.WithTx(ctx, func(s leave.Store) error {
		if err := s.SaveRequest(ctx, leave.LeaveRequest{ID: "req-1", EmployeeID: "emp-1"}); err != nil {
			return err
		}
		if _, err := s.Mutate(ctx, testKey(), func(b *leave.LeaveBalance) error {
			b.Pending = leave.NewDaysFromInt(3)
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r, err := mem.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, r, "rolled-back request must not exist")

	b, err := mem.GetBalance(ctx, testKey())
	require.NoError(t, err)
	assert.True(t, b.Pending.IsZero(), "rolled-back mutation must not stick")
}

func TestMemory_WithTx_SuccessCommits(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(s leave.Store) error {
		if err := s.SaveRequest(ctx, leave.LeaveRequest{ID: "req-1", EmployeeID: "emp-1", Status: leave.StatusPending}); err != nil {
			return err
		}
		_, err := s.Mutate(ctx, testKey(), func(b *leave.LeaveBalance) error {
			b.Pending = leave.NewDaysFromInt(3)
			return nil
		})
		return err
	})
	require.NoError(t, err)

	r, err := mem.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, r)

	b, err := mem.GetBalance(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "3", b.Pending.String())
}

func TestMemory_MarkAccrued_SecondCallConflicts(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.MarkAccrued(ctx, "emp-1", "annual", 2025, 3))
	assert.ErrorIs(t, mem.MarkAccrued(ctx, "emp-1", "annual", 2025, 3), leave.ErrConflict)
	assert.NoError(t, mem.MarkAccrued(ctx, "emp-1", "annual", 2025, 4))
}

func TestMemory_Mutate_ConcurrentIncrementsAllLand(t *testing.T) {
	// 50 concurrent +1 mutations on the same key must total exactly 50.

	mem := store.NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mem.Mutate(ctx, testKey(), func(b *leave.LeaveBalance) error {
				b.Total = b.Total.Add(leave.NewDaysFromInt(1))
				return nil
			})
		}()
	}
	wg.Wait()

	b, err := mem.GetBalance(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "50", b.Total.String())
}
