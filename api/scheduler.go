/*
scheduler.go - Automated monthly accrual scheduler

PURPOSE:
  Periodically runs the monthly accrual so active employees are credited
  their leave without a manual trigger. The accrual itself is idempotent
  (accrual_runs records), so the scheduler can fire as often as it likes:
  a month already credited is simply skipped.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick credits the current calendar month
  - Skipped counts in the summary show months that were already done

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAccrualScheduler(accruer)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerAccrual endpoint (manual accrual)
  - leave/accrual.go: The idempotent accrual run
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lumenhr/leave-engine/leave"
)

// AccrualScheduler handles automated monthly leave accrual.
type AccrualScheduler struct {
	Accruer       *leave.Accruer
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(accruer *leave.Accruer) *AccrualScheduler {
	return &AccrualScheduler{
		Accruer:       accruer,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AccrualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AccrualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AccrualScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.accrueCurrentMonth()

	for {
		select {
		case <-as.ticker.C:
			as.accrueCurrentMonth()
		case <-as.stop:
			return
		}
	}
}

func (as *AccrualScheduler) accrueCurrentMonth() {
	ctx := context.Background()
	now := time.Now().UTC()

	summary, err := as.Accruer.AccrueMonth(ctx, now.Year(), now.Month())
	if err != nil {
		log.Printf("[Scheduler] Accrual run failed for %04d-%02d: %v", now.Year(), now.Month(), err)
		return
	}

	if summary.EmployeesCredited > 0 {
		log.Printf("[Scheduler] Accrued %04d-%02d: %d credited, %d skipped across %d types",
			now.Year(), now.Month(), summary.EmployeesCredited, summary.Skipped, summary.TypesProcessed)
	}
}
