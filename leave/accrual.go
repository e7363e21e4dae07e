/*
accrual.go - Monthly entitlement accrual

PURPOSE:
  Credits each employee's yearly balance with their leave types' monthly
  accrual rate. Runs once per calendar month per (employee, type); the
  accrual-run record makes re-runs no-ops, so the scheduler can fire as
  often as it likes.

FLOW:
  For every active leave type with AccrualRate > 0, for every employee:
    1. skip employees hired after the accrual month
    2. MarkAccrued(employee, type, year, month) - ErrConflict means the
       month was already credited, skip
    3. Accrue(key{employee, type, year}, rate)

  Steps 2 and 3 run inside one transaction so a crash between them cannot
  eat or double-pay an accrual.

SEE ALSO:
  - api/scheduler.go: the ticker that drives this
  - ledger.go: Accrue
*/
package leave

import (
	"context"
	"errors"
	"time"
)

// AccrualSummary reports what one run credited.
type AccrualSummary struct {
	TypesProcessed    int
	EmployeesCredited int
	Skipped           int
}

// Accruer runs monthly accruals over all employees and active leave types.
type Accruer struct {
	store TxStore
}

func NewAccruer(store TxStore) *Accruer {
	return &Accruer{store: store}
}

// AccrueMonth credits the given calendar month. Idempotent: months that
// were already credited for an (employee, type) pair are skipped.
func (a *Accruer) AccrueMonth(ctx context.Context, year int, month time.Month) (AccrualSummary, error) {
	var summary AccrualSummary

	types, err := a.store.ListLeaveTypes(ctx, true)
	if err != nil {
		return summary, err
	}
	employees, err := a.store.ListEmployees(ctx)
	if err != nil {
		return summary, err
	}

	monthStart := NewDate(year, month, 1)

	for _, lt := range types {
		if !lt.AccrualRate.IsPositive() {
			continue
		}
		summary.TypesProcessed++

		for _, emp := range employees {
			if !emp.HireDate.IsZero() && emp.HireDate.After(monthStart.AddDays(daysIn(year, month)-1)) {
				// Hired after this month ended; nothing to accrue yet.
				continue
			}

			key := BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: year}
			rate := lt.AccrualRate

			err := a.store.WithTx(ctx, func(s Store) error {
				if err := s.MarkAccrued(ctx, emp.ID, lt.ID, year, int(month)); err != nil {
					return err
				}
				_, err := s.Mutate(ctx, key, func(b *LeaveBalance) error {
					b.Total = b.Total.Add(rate)
					return nil
				})
				return err
			})

			switch {
			case errors.Is(err, ErrConflict):
				summary.Skipped++
			case err != nil:
				return summary, err
			default:
				summary.EmployeesCredited++
			}
		}
	}

	return summary, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
