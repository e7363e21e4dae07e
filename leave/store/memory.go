/*
memory.go - In-memory TxStore implementation

PURPOSE:
  A complete leave.TxStore backed by maps behind a single mutex. Used by
  the test suites and by the server when started without a database path.
  Because all state lives behind one lock, Mutate's per-key atomicity
  contract holds trivially, and WithTx can simulate a transaction with a
  whole-store snapshot that is restored if the callback fails.

SEE ALSO:
  - ../store.go: The interfaces implemented here
  - ../../store/sqlite/sqlite.go: The production implementation
*/

// Package store provides leave.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumenhr/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements leave.TxStore with maps behind one mutex. A single
// lock per store trivially satisfies the per-key atomicity contract of
// BalanceStore.Mutate.
type Memory struct {
	mu          sync.RWMutex
	leaveTypes  map[leave.LeaveTypeID]leave.LeaveType
	balances    map[leave.BalanceKey]leave.LeaveBalance
	requests    map[leave.RequestID]leave.LeaveRequest
	employees   map[leave.EmployeeID]leave.Employee
	adjustments []leave.Adjustment
	accrued     map[accrualKey]bool
}

type accrualKey struct {
	EmployeeID  leave.EmployeeID
	LeaveTypeID leave.LeaveTypeID
	Year        int
	Month       int
}

func NewMemory() *Memory {
	return &Memory{
		leaveTypes: make(map[leave.LeaveTypeID]leave.LeaveType),
		balances:   make(map[leave.BalanceKey]leave.LeaveBalance),
		requests:   make(map[leave.RequestID]leave.LeaveRequest),
		employees:  make(map[leave.EmployeeID]leave.Employee),
		accrued:    make(map[accrualKey]bool),
	}
}

var _ leave.TxStore = (*Memory)(nil)

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (m *Memory) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveTypes[lt.ID] = lt
	return nil
}

func (m *Memory) GetLeaveType(_ context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lt, ok := m.leaveTypes[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (m *Memory) ListLeaveTypes(_ context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveType
	for _, lt := range m.leaveTypes {
		if activeOnly && !lt.Active {
			continue
		}
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteLeaveType(_ context.Context, id leave.LeaveTypeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leaveTypes, id)
	return nil
}

func (m *Memory) LeaveTypeReferenced(_ context.Context, id leave.LeaveTypeID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for key := range m.balances {
		if key.LeaveTypeID == id {
			return true, nil
		}
	}
	for _, r := range m.requests {
		if r.LeaveTypeID == id {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, key leave.BalanceKey) (leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.balances[key]; ok {
		return b, nil
	}
	return leave.LeaveBalance{Key: key}, nil
}

func (m *Memory) ListBalances(_ context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveBalance
	for key, b := range m.balances {
		if key.EmployeeID == employeeID && key.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.LeaveTypeID < out[j].Key.LeaveTypeID })
	return out, nil
}

func (m *Memory) Mutate(_ context.Context, key leave.BalanceKey, fn func(*leave.LeaveBalance) error) (leave.LeaveBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutateLocked(key, fn)
}

func (m *Memory) mutateLocked(key leave.BalanceKey, fn func(*leave.LeaveBalance) error) (leave.LeaveBalance, error) {
	b, ok := m.balances[key]
	if !ok {
		b = leave.LeaveBalance{Key: key}
	}
	if err := fn(&b); err != nil {
		return leave.LeaveBalance{}, err
	}
	b.UpdatedAt = time.Now()
	m.balances[key] = b
	return b, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListRequestsByEmployee(_ context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

func (m *Memory) ListRequestsByStatus(_ context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range m.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

func sortRequests(rs []leave.LeaveRequest) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Employee
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func (m *Memory) SaveAdjustment(_ context.Context, a leave.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments = append(m.adjustments, a)
	return nil
}

func (m *Memory) ListAdjustments(_ context.Context, employeeID leave.EmployeeID) ([]leave.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Adjustment
	for _, a := range m.adjustments {
		if a.Key.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// ACCRUAL RUNS
// =============================================================================

func (m *Memory) MarkAccrued(_ context.Context, employeeID leave.EmployeeID, typeID leave.LeaveTypeID, year, month int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := accrualKey{EmployeeID: employeeID, LeaveTypeID: typeID, Year: year, Month: month}
	if m.accrued[k] {
		return leave.ErrConflict
	}
	m.accrued[k] = true
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn against a view of the store. Simulated with a
// snapshot: on error, state is restored wholesale.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	leaveTypes  map[leave.LeaveTypeID]leave.LeaveType
	balances    map[leave.BalanceKey]leave.LeaveBalance
	requests    map[leave.RequestID]leave.LeaveRequest
	employees   map[leave.EmployeeID]leave.Employee
	adjustments []leave.Adjustment
	accrued     map[accrualKey]bool
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		leaveTypes:  make(map[leave.LeaveTypeID]leave.LeaveType, len(m.leaveTypes)),
		balances:    make(map[leave.BalanceKey]leave.LeaveBalance, len(m.balances)),
		requests:    make(map[leave.RequestID]leave.LeaveRequest, len(m.requests)),
		employees:   make(map[leave.EmployeeID]leave.Employee, len(m.employees)),
		adjustments: append([]leave.Adjustment{}, m.adjustments...),
		accrued:     make(map[accrualKey]bool, len(m.accrued)),
	}
	for k, v := range m.leaveTypes {
		s.leaveTypes[k] = v
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	for k, v := range m.employees {
		s.employees[k] = v
	}
	for k, v := range m.accrued {
		s.accrued[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.leaveTypes = s.leaveTypes
	m.balances = s.balances
	m.requests = s.requests
	m.employees = s.employees
	m.adjustments = s.adjustments
	m.accrued = s.accrued
}

// txView routes store calls back to the parent without re-locking.
type txView struct {
	parent *Memory
}

var _ leave.Store = (*txView)(nil)

func (v *txView) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	v.parent.leaveTypes[lt.ID] = lt
	return nil
}

func (v *txView) GetLeaveType(_ context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	lt, ok := v.parent.leaveTypes[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (v *txView) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	var out []leave.LeaveType
	for _, lt := range v.parent.leaveTypes {
		if activeOnly && !lt.Active {
			continue
		}
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *txView) DeleteLeaveType(_ context.Context, id leave.LeaveTypeID) error {
	delete(v.parent.leaveTypes, id)
	return nil
}

func (v *txView) LeaveTypeReferenced(_ context.Context, id leave.LeaveTypeID) (bool, error) {
	for key := range v.parent.balances {
		if key.LeaveTypeID == id {
			return true, nil
		}
	}
	for _, r := range v.parent.requests {
		if r.LeaveTypeID == id {
			return true, nil
		}
	}
	return false, nil
}

func (v *txView) GetBalance(_ context.Context, key leave.BalanceKey) (leave.LeaveBalance, error) {
	if b, ok := v.parent.balances[key]; ok {
		return b, nil
	}
	return leave.LeaveBalance{Key: key}, nil
}

func (v *txView) ListBalances(_ context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	var out []leave.LeaveBalance
	for key, b := range v.parent.balances {
		if key.EmployeeID == employeeID && key.Year == year {
			out = append(out, b)
		}
	}
	return out, nil
}

func (v *txView) Mutate(_ context.Context, key leave.BalanceKey, fn func(*leave.LeaveBalance) error) (leave.LeaveBalance, error) {
	return v.parent.mutateLocked(key, fn)
}

func (v *txView) SaveRequest(_ context.Context, r leave.LeaveRequest) error {
	v.parent.requests[r.ID] = r
	return nil
}

func (v *txView) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	r, ok := v.parent.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (v *txView) ListRequestsByEmployee(_ context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range v.parent.requests {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

func (v *txView) ListRequestsByStatus(_ context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range v.parent.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

func (v *txView) SaveEmployee(_ context.Context, e leave.Employee) error {
	v.parent.employees[e.ID] = e
	return nil
}

func (v *txView) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	e, ok := v.parent.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (v *txView) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	var out []leave.Employee
	for _, e := range v.parent.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) SaveAdjustment(_ context.Context, a leave.Adjustment) error {
	v.parent.adjustments = append(v.parent.adjustments, a)
	return nil
}

func (v *txView) ListAdjustments(_ context.Context, employeeID leave.EmployeeID) ([]leave.Adjustment, error) {
	var out []leave.Adjustment
	for _, a := range v.parent.adjustments {
		if a.Key.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v *txView) MarkAccrued(_ context.Context, employeeID leave.EmployeeID, typeID leave.LeaveTypeID, year, month int) error {
	k := accrualKey{EmployeeID: employeeID, LeaveTypeID: typeID, Year: year, Month: month}
	if v.parent.accrued[k] {
		return leave.ErrConflict
	}
	v.parent.accrued[k] = true
	return nil
}
