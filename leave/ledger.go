/*
ledger.go - Balance ledger (reserve / commit / release / uncommit / adjust)

PURPOSE:
  The accounting core. One row per (employee, leave type, year) tracks
  Total (entitlement), Used (consumed by approvals) and Pending (reserved
  by pending requests). Available is always derived:

      available = max(0, total - used - pending)

OPERATIONS AND WHEN THE LIFECYCLE CALLS THEM:
  Reserve    create            pending += days (fails if available < days)
  Commit     approve           pending -= days, used += days
  Release    reject / cancel   pending -= days (floored at 0)
  Uncommit   cancel(approved)  used -= days (floored at 0)
  Adjust     admin             total += delta (floored at 0, audited)

ATOMICITY:
  Every operation is exactly one BalanceStore.Mutate call. The store
  guarantees no two mutations on the same key interleave their
  read-modify-write, so concurrent requests cannot over-book a balance.
  This service holds no state of its own and never does read-then-write
  across two store calls.

SIGN CONVENTION FOR ADJUST:
  Positive delta increases Total, negative decreases it (floored at 0).
  Used and Pending are never touched by adjustments; this keeps the audit
  trail unambiguous.

SEE ALSO:
  - lifecycle.go: the only caller of reserve/commit/release/uncommit
  - store.go: the Mutate contract
*/
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LedgerStore is what the ledger needs from persistence.
type LedgerStore interface {
	BalanceStore
	AdjustmentStore
}

// Ledger performs all balance mutations. Safe for concurrent use; the
// atomicity guarantee lives in the BalanceStore implementation.
type Ledger struct {
	store LedgerStore

	// txStore is set when the store supports multi-entity transactions;
	// Adjust uses it to commit the mutation and its audit row together.
	txStore TxStore

	now func() time.Time
}

func NewLedger(store LedgerStore) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	if ts, ok := store.(TxStore); ok {
		l.txStore = ts
	}
	return l
}

// Available returns max(0, total - used - pending) for the key.
// A key with no row yet has an all-zero balance.
func (l *Ledger) Available(ctx context.Context, key BalanceKey) (Days, error) {
	b, err := l.store.GetBalance(ctx, key)
	if err != nil {
		return Days{}, err
	}
	return b.Available(), nil
}

// Balance returns the full ledger row for the key.
func (l *Ledger) Balance(ctx context.Context, key BalanceKey) (LeaveBalance, error) {
	return l.store.GetBalance(ctx, key)
}

// Reserve holds days against the balance while a request is pending.
// Fails with InsufficientBalanceError when available < days, leaving the
// row untouched.
func (l *Ledger) Reserve(ctx context.Context, key BalanceKey, days Days) error {
	if !days.IsPositive() {
		return &ValidationError{Field: "days", Detail: "must be positive"}
	}
	_, err := l.store.Mutate(ctx, key, func(b *LeaveBalance) error {
		if b.Available().LessThan(days) {
			return &InsufficientBalanceError{Key: key, Available: b.Available(), Requested: days}
		}
		b.Pending = b.Pending.Add(days)
		return nil
	})
	return err
}

// Release returns reserved days to the available pool (reject/cancel of
// a still-pending request). Floors Pending at zero.
func (l *Ledger) Release(ctx context.Context, key BalanceKey, days Days) error {
	_, err := l.store.Mutate(ctx, key, func(b *LeaveBalance) error {
		b.Pending = b.Pending.Sub(days).Max0()
		return nil
	})
	return err
}

// Commit converts a reservation into consumption (approval).
func (l *Ledger) Commit(ctx context.Context, key BalanceKey, days Days) error {
	_, err := l.store.Mutate(ctx, key, func(b *LeaveBalance) error {
		b.Pending = b.Pending.Sub(days).Max0()
		b.Used = b.Used.Add(days)
		return nil
	})
	return err
}

// Uncommit returns consumed days (cancellation of an approved leave).
// Floors Used at zero.
func (l *Ledger) Uncommit(ctx context.Context, key BalanceKey, days Days) error {
	_, err := l.store.Mutate(ctx, key, func(b *LeaveBalance) error {
		b.Used = b.Used.Sub(days).Max0()
		return nil
	})
	return err
}

// Accrue credits entitlement (monthly accrual or initial grant).
func (l *Ledger) Accrue(ctx context.Context, key BalanceKey, days Days) error {
	if days.IsNegative() {
		return &ValidationError{Field: "days", Detail: "must not be negative"}
	}
	_, err := l.store.Mutate(ctx, key, func(b *LeaveBalance) error {
		b.Total = b.Total.Add(days)
		return nil
	})
	return err
}

// Adjust directly mutates Total. Admin-only, reason mandatory, audited.
// Positive delta increases Total; negative decreases it, floored at zero.
func (l *Ledger) Adjust(ctx context.Context, actor Actor, key BalanceKey, delta Days, reason string) (LeaveBalance, error) {
	if !actor.IsAdmin() {
		return LeaveBalance{}, ErrUnauthorized
	}
	if key.EmployeeID == "" {
		return LeaveBalance{}, &ValidationError{Field: "employeeId", Detail: "must not be empty"}
	}
	if key.LeaveTypeID == "" {
		return LeaveBalance{}, &ValidationError{Field: "leaveTypeId", Detail: "must not be empty"}
	}
	if strings.TrimSpace(reason) == "" {
		return LeaveBalance{}, &ValidationError{Field: "reason", Detail: "must not be empty"}
	}

	// Audit trail. The adjustment row is the one record of WHY a total
	// changed outside of accrual.
	adj := Adjustment{
		ID:        uuid.NewString(),
		Key:       key,
		Delta:     delta,
		Reason:    reason,
		ActorID:   actor.ID,
		CreatedAt: l.now(),
	}

	apply := func(s LedgerStore) (LeaveBalance, error) {
		balance, err := s.Mutate(ctx, key, func(b *LeaveBalance) error {
			b.Total = b.Total.Add(delta).Max0()
			return nil
		})
		if err != nil {
			return LeaveBalance{}, err
		}
		return balance, s.SaveAdjustment(ctx, adj)
	}

	// Mutation and audit row commit together when the store supports it.
	if l.txStore != nil {
		var balance LeaveBalance
		err := l.txStore.WithTx(ctx, func(s Store) error {
			var applyErr error
			balance, applyErr = apply(s)
			return applyErr
		})
		return balance, err
	}
	return apply(l.store)
}
