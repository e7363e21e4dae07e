/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements leave.TxStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  leave_types:         Leave category policies
  leave_balances:      One row per (employee, leave type, year)
  leave_requests:      Requests moving through the state machine
  balance_adjustments: Audit trail of manual balance corrections
  accrual_runs:        One row per credited (employee, type, year, month)
  employees:           Employee records

ATOMICITY:
  Mutate runs each balance read-modify-write inside a database
  transaction with the store mutex held, so no two mutations of the
  same key can interleave. WithTx exposes the same mechanism across
  multiple entities (request + balance must move together).

IDEMPOTENT ACCRUAL:
  accrual_runs carries a UNIQUE(employee_id, leave_type_id, year, month)
  index. MarkAccrued maps the constraint violation to leave.ErrConflict
  so a re-run of the same month credits nothing twice.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  lifecycle := leave.NewLifecycle(store, dispatcher, leave.LifecycleConfig{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumenhr/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ leave.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Leave categories and their policy parameters
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		accrual_rate TEXT NOT NULL,
		requires_documentation BOOLEAN NOT NULL DEFAULT FALSE,
		requires_approval BOOLEAN NOT NULL DEFAULT TRUE,
		max_days INTEGER,
		max_consecutive_days INTEGER,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		color TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One ledger row per (employee, leave type, year)
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total TEXT NOT NULL,
		used TEXT NOT NULL,
		pending TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, leave_type_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_employee_year
		ON leave_balances(employee_id, year);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		number_of_days INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		approved_by TEXT NOT NULL DEFAULT '',
		comments TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_type
		ON leave_requests(leave_type_id);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		manager_id TEXT NOT NULL DEFAULT '',
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Manual balance corrections (audit trail, append-only)
	CREATE TABLE IF NOT EXISTS balance_adjustments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		delta TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_employee
		ON balance_adjustments(employee_id);

	-- CRITICAL: the unique index makes monthly accrual idempotent.
	-- A second run for the same (employee, type, year, month) hits the
	-- constraint and is skipped instead of crediting twice.
	CREATE TABLE IF NOT EXISTS accrual_runs (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, leave_type_id, year, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so the same statement
// helpers serve direct calls and WithTx calls.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEAVE TYPES (leave.LeaveTypeStore interface)
// =============================================================================

// SaveLeaveType inserts or replaces a leave type.
func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLeaveType(ctx, s.db, lt)
}

func saveLeaveType(ctx context.Context, q querier, lt leave.LeaveType) error {
	query := `
		INSERT INTO leave_types
		(id, name, description, accrual_rate, requires_documentation, requires_approval,
		 max_days, max_consecutive_days, active, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			accrual_rate = excluded.accrual_rate,
			requires_documentation = excluded.requires_documentation,
			requires_approval = excluded.requires_approval,
			max_days = excluded.max_days,
			max_consecutive_days = excluded.max_consecutive_days,
			active = excluded.active,
			color = excluded.color,
			updated_at = excluded.updated_at
	`

	_, err := q.ExecContext(ctx, query,
		string(lt.ID),
		lt.Name,
		lt.Description,
		lt.AccrualRate.String(),
		lt.RequiresDocumentation,
		lt.RequiresApproval,
		nullInt(lt.MaxDays),
		nullInt(lt.MaxConsecutiveDays),
		lt.Active,
		lt.Color,
		lt.CreatedAt.UTC().Format(time.RFC3339),
		lt.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

// GetLeaveType returns the leave type, or nil if it does not exist.
func (s *Store) GetLeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	return getLeaveType(ctx, s.db, id)
}

func getLeaveType(ctx context.Context, q querier, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	query := `
		SELECT id, name, description, accrual_rate, requires_documentation, requires_approval,
		       max_days, max_consecutive_days, active, color, created_at, updated_at
		FROM leave_types WHERE id = ?
	`

	lt, err := scanLeaveType(q.QueryRowContext(ctx, query, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave type: %w", err)
	}
	return lt, nil
}

// ListLeaveTypes returns all leave types, optionally only active ones.
func (s *Store) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	return listLeaveTypes(ctx, s.db, activeOnly)
}

func listLeaveTypes(ctx context.Context, q querier, activeOnly bool) ([]leave.LeaveType, error) {
	query := `
		SELECT id, name, description, accrual_rate, requires_documentation, requires_approval,
		       max_days, max_consecutive_days, active, color, created_at, updated_at
		FROM leave_types
	`
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY name"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *lt)
	}
	return out, rows.Err()
}

// DeleteLeaveType removes a leave type row.
func (s *Store) DeleteLeaveType(ctx context.Context, id leave.LeaveTypeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLeaveType(ctx, s.db, id)
}

func deleteLeaveType(ctx context.Context, q querier, id leave.LeaveTypeID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM leave_types WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete leave type: %w", err)
	}
	return nil
}

// LeaveTypeReferenced reports whether any balance or request refers to the type.
func (s *Store) LeaveTypeReferenced(ctx context.Context, id leave.LeaveTypeID) (bool, error) {
	return leaveTypeReferenced(ctx, s.db, id)
}

func leaveTypeReferenced(ctx context.Context, q querier, id leave.LeaveTypeID) (bool, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM leave_balances WHERE leave_type_id = ?) +
			(SELECT COUNT(*) FROM leave_requests WHERE leave_type_id = ?)
	`

	var count int
	if err := q.QueryRowContext(ctx, query, string(id), string(id)).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check leave type references: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeaveType(row rowScanner) (*leave.LeaveType, error) {
	var (
		lt                 leave.LeaveType
		id                 string
		accrualRate        string
		maxDays            sql.NullInt64
		maxConsecutive     sql.NullInt64
		createdAt, updated string
	)

	err := row.Scan(&id, &lt.Name, &lt.Description, &accrualRate,
		&lt.RequiresDocumentation, &lt.RequiresApproval,
		&maxDays, &maxConsecutive, &lt.Active, &lt.Color, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	lt.ID = leave.LeaveTypeID(id)
	if lt.AccrualRate, err = leave.ParseDays(accrualRate); err != nil {
		return nil, fmt.Errorf("corrupt accrual_rate for leave type %s: %w", id, err)
	}
	lt.MaxDays = intPtr(maxDays)
	lt.MaxConsecutiveDays = intPtr(maxConsecutive)
	lt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	lt.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &lt, nil
}

// =============================================================================
// BALANCES (leave.BalanceStore interface)
// =============================================================================

// GetBalance returns the ledger row for the key, or a zero row if none exists.
func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (leave.LeaveBalance, error) {
	return getBalance(ctx, s.db, key)
}

func getBalance(ctx context.Context, q querier, key leave.BalanceKey) (leave.LeaveBalance, error) {
	query := `
		SELECT total, used, pending, updated_at
		FROM leave_balances
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?
	`

	var total, used, pending, updatedAt string
	err := q.QueryRowContext(ctx, query,
		string(key.EmployeeID), string(key.LeaveTypeID), key.Year,
	).Scan(&total, &used, &pending, &updatedAt)
	if err == sql.ErrNoRows {
		return leave.LeaveBalance{Key: key}, nil
	}
	if err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("failed to get balance: %w", err)
	}

	return buildBalance(key, total, used, pending, updatedAt)
}

// ListBalances returns all of an employee's ledger rows for a year.
func (s *Store) ListBalances(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	query := `
		SELECT leave_type_id, total, used, pending, updated_at
		FROM leave_balances
		WHERE employee_id = ? AND year = ?
		ORDER BY leave_type_id
	`

	rows, err := s.db.QueryContext(ctx, query, string(employeeID), year)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveBalance
	for rows.Next() {
		var typeID, total, used, pending, updatedAt string
		if err := rows.Scan(&typeID, &total, &used, &pending, &updatedAt); err != nil {
			return nil, err
		}
		key := leave.BalanceKey{EmployeeID: employeeID, LeaveTypeID: leave.LeaveTypeID(typeID), Year: year}
		b, err := buildBalance(key, total, used, pending, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Mutate atomically applies fn to the ledger row for key. The read,
// callback and write run inside one database transaction with the store
// mutex held.
func (s *Store) Mutate(ctx context.Context, key leave.BalanceKey, fn func(*leave.LeaveBalance) error) (leave.LeaveBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out leave.LeaveBalance
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = mutateBalance(ctx, tx, key, fn)
		return err
	})
	if err != nil {
		return leave.LeaveBalance{}, err
	}
	return out, nil
}

func mutateBalance(ctx context.Context, q querier, key leave.BalanceKey, fn func(*leave.LeaveBalance) error) (leave.LeaveBalance, error) {
	b, err := getBalance(ctx, q, key)
	if err != nil {
		return leave.LeaveBalance{}, err
	}

	if err := fn(&b); err != nil {
		return leave.LeaveBalance{}, err
	}
	b.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO leave_balances (employee_id, leave_type_id, year, total, used, pending, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_type_id, year) DO UPDATE SET
			total = excluded.total,
			used = excluded.used,
			pending = excluded.pending,
			updated_at = excluded.updated_at
	`

	_, err = q.ExecContext(ctx, query,
		string(key.EmployeeID), string(key.LeaveTypeID), key.Year,
		b.Total.String(), b.Used.String(), b.Pending.String(),
		b.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("failed to write balance: %w", err)
	}
	return b, nil
}

func buildBalance(key leave.BalanceKey, total, used, pending, updatedAt string) (leave.LeaveBalance, error) {
	b := leave.LeaveBalance{Key: key}
	var err error
	if b.Total, err = leave.ParseDays(total); err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("corrupt balance total: %w", err)
	}
	if b.Used, err = leave.ParseDays(used); err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("corrupt balance used: %w", err)
	}
	if b.Pending, err = leave.ParseDays(pending); err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("corrupt balance pending: %w", err)
	}
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return b, nil
}

// =============================================================================
// REQUESTS (leave.RequestStore interface)
// =============================================================================

// SaveRequest inserts or replaces a leave request.
func (s *Store) SaveRequest(ctx context.Context, r leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRequest(ctx, s.db, r)
}

func saveRequest(ctx context.Context, q querier, r leave.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
		(id, employee_id, leave_type_id, start_date, end_date, number_of_days,
		 reason, status, approved_by, comments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			approved_by = excluded.approved_by,
			comments = excluded.comments,
			updated_at = excluded.updated_at
	`

	_, err := q.ExecContext(ctx, query,
		string(r.ID),
		string(r.EmployeeID),
		string(r.LeaveTypeID),
		r.StartDate.String(),
		r.EndDate.String(),
		r.NumberOfDays,
		r.Reason,
		string(r.Status),
		string(r.ApprovedByID),
		r.Comments,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

// GetRequest returns the request, or nil if it does not exist.
func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, q querier, id leave.RequestID) (*leave.LeaveRequest, error) {
	query := requestSelect + ` WHERE id = ?`

	r, err := scanRequest(q.QueryRowContext(ctx, query, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return r, nil
}

// ListRequestsByEmployee returns an employee's requests, newest first.
func (s *Store) ListRequestsByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	query := requestSelect + ` WHERE employee_id = ? ORDER BY created_at DESC`
	return s.queryRequests(ctx, query, string(employeeID))
}

// ListRequestsByStatus returns all requests in the given status, newest first.
func (s *Store) ListRequestsByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	query := requestSelect + ` WHERE status = ? ORDER BY created_at DESC`
	return s.queryRequests(ctx, query, string(status))
}

const requestSelect = `
	SELECT id, employee_id, leave_type_id, start_date, end_date, number_of_days,
	       reason, status, approved_by, comments, created_at, updated_at
	FROM leave_requests
`

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*leave.LeaveRequest, error) {
	var (
		r                      leave.LeaveRequest
		id, employeeID, typeID string
		startDate, endDate     string
		status, approvedBy     string
		createdAt, updatedAt   string
	)

	err := row.Scan(&id, &employeeID, &typeID, &startDate, &endDate,
		&r.NumberOfDays, &r.Reason, &status, &approvedBy, &r.Comments,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.ID = leave.RequestID(id)
	r.EmployeeID = leave.EmployeeID(employeeID)
	r.LeaveTypeID = leave.LeaveTypeID(typeID)
	if r.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("corrupt start_date for request %s: %w", id, err)
	}
	if r.EndDate, err = leave.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("corrupt end_date for request %s: %w", id, err)
	}
	r.Status = leave.RequestStatus(status)
	r.ApprovedByID = leave.EmployeeID(approvedBy)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// =============================================================================
// EMPLOYEES (leave.EmployeeStore interface)
// =============================================================================

// SaveEmployee inserts or replaces an employee record.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, e)
}

func saveEmployee(ctx context.Context, q querier, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, manager_id, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			manager_id = excluded.manager_id,
			hire_date = excluded.hire_date
	`

	_, err := q.ExecContext(ctx, query,
		string(e.ID), e.Name, e.Email, string(e.ManagerID),
		e.HireDate.String(), e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee returns the employee, or nil if unknown.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q querier, id leave.EmployeeID) (*leave.Employee, error) {
	query := `SELECT id, name, email, manager_id, hire_date, created_at FROM employees WHERE id = ?`

	e, err := scanEmployee(q.QueryRowContext(ctx, query, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	query := `SELECT id, name, email, manager_id, hire_date, created_at FROM employees ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEmployee(row rowScanner) (*leave.Employee, error) {
	var (
		e                     leave.Employee
		id, managerID         string
		hireDate, createdAtTS string
	)

	if err := row.Scan(&id, &e.Name, &e.Email, &managerID, &hireDate, &createdAtTS); err != nil {
		return nil, err
	}

	e.ID = leave.EmployeeID(id)
	e.ManagerID = leave.EmployeeID(managerID)
	var err error
	if e.HireDate, err = leave.ParseDate(hireDate); err != nil {
		return nil, fmt.Errorf("corrupt hire_date for employee %s: %w", id, err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAtTS)
	return &e, nil
}

// =============================================================================
// ADJUSTMENTS (leave.AdjustmentStore interface)
// =============================================================================

// SaveAdjustment appends an adjustment record. Rows are never updated.
func (s *Store) SaveAdjustment(ctx context.Context, a leave.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAdjustment(ctx, s.db, a)
}

func saveAdjustment(ctx context.Context, q querier, a leave.Adjustment) error {
	query := `
		INSERT INTO balance_adjustments
		(id, employee_id, leave_type_id, year, delta, reason, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		a.ID,
		string(a.Key.EmployeeID), string(a.Key.LeaveTypeID), a.Key.Year,
		a.Delta.String(), a.Reason, string(a.ActorID),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save adjustment: %w", err)
	}
	return nil
}

// ListAdjustments returns an employee's adjustment history, oldest first.
func (s *Store) ListAdjustments(ctx context.Context, employeeID leave.EmployeeID) ([]leave.Adjustment, error) {
	query := `
		SELECT id, employee_id, leave_type_id, year, delta, reason, actor_id, created_at
		FROM balance_adjustments
		WHERE employee_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	defer rows.Close()

	var out []leave.Adjustment
	for rows.Next() {
		var (
			a                    leave.Adjustment
			empID, typeID, delta string
			actorID, createdAt   string
		)
		if err := rows.Scan(&a.ID, &empID, &typeID, &a.Key.Year, &delta, &a.Reason, &actorID, &createdAt); err != nil {
			return nil, err
		}
		a.Key.EmployeeID = leave.EmployeeID(empID)
		a.Key.LeaveTypeID = leave.LeaveTypeID(typeID)
		if a.Delta, err = leave.ParseDays(delta); err != nil {
			return nil, fmt.Errorf("corrupt adjustment delta: %w", err)
		}
		a.ActorID = leave.EmployeeID(actorID)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ACCRUAL RUNS (leave.AccrualRunStore interface)
// =============================================================================

// MarkAccrued records that the month was credited for the pair. Returns
// leave.ErrConflict if a record already exists.
func (s *Store) MarkAccrued(ctx context.Context, employeeID leave.EmployeeID, typeID leave.LeaveTypeID, year, month int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markAccrued(ctx, s.db, employeeID, typeID, year, month)
}

func markAccrued(ctx context.Context, q querier, employeeID leave.EmployeeID, typeID leave.LeaveTypeID, year, month int) error {
	query := `
		INSERT INTO accrual_runs (employee_id, leave_type_id, year, month, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		string(employeeID), string(typeID), year, month,
		time.Now().UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return leave.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to mark accrual: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (leave.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Any error from fn
// rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&txStore{tx: tx, parent: s})
	})
}

// inTx runs fn inside a transaction. Callers must hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes leave.Store calls through an open transaction.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

var _ leave.Store = (*txStore)(nil)

func (ts *txStore) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	return saveLeaveType(ctx, ts.tx, lt)
}

func (ts *txStore) GetLeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	return getLeaveType(ctx, ts.tx, id)
}

func (ts *txStore) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	return listLeaveTypes(ctx, ts.tx, activeOnly)
}

func (ts *txStore) DeleteLeaveType(ctx context.Context, id leave.LeaveTypeID) error {
	return deleteLeaveType(ctx, ts.tx, id)
}

func (ts *txStore) LeaveTypeReferenced(ctx context.Context, id leave.LeaveTypeID) (bool, error) {
	return leaveTypeReferenced(ctx, ts.tx, id)
}

func (ts *txStore) GetBalance(ctx context.Context, key leave.BalanceKey) (leave.LeaveBalance, error) {
	return getBalance(ctx, ts.tx, key)
}

func (ts *txStore) ListBalances(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	query := `
		SELECT leave_type_id, total, used, pending, updated_at
		FROM leave_balances
		WHERE employee_id = ? AND year = ?
		ORDER BY leave_type_id
	`

	rows, err := ts.tx.QueryContext(ctx, query, string(employeeID), year)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveBalance
	for rows.Next() {
		var typeID, total, used, pending, updatedAt string
		if err := rows.Scan(&typeID, &total, &used, &pending, &updatedAt); err != nil {
			return nil, err
		}
		key := leave.BalanceKey{EmployeeID: employeeID, LeaveTypeID: leave.LeaveTypeID(typeID), Year: year}
		b, err := buildBalance(key, total, used, pending, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (ts *txStore) Mutate(ctx context.Context, key leave.BalanceKey, fn func(*leave.LeaveBalance) error) (leave.LeaveBalance, error) {
	return mutateBalance(ctx, ts.tx, key, fn)
}

func (ts *txStore) SaveRequest(ctx context.Context, r leave.LeaveRequest) error {
	return saveRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequestsByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	return ts.parent.ListRequestsByEmployee(ctx, employeeID)
}

func (ts *txStore) ListRequestsByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return ts.parent.ListRequestsByStatus(ctx, status)
}

func (ts *txStore) SaveEmployee(ctx context.Context, e leave.Employee) error {
	return saveEmployee(ctx, ts.tx, e)
}

func (ts *txStore) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	return ts.parent.ListEmployees(ctx)
}

func (ts *txStore) SaveAdjustment(ctx context.Context, a leave.Adjustment) error {
	return saveAdjustment(ctx, ts.tx, a)
}

func (ts *txStore) ListAdjustments(ctx context.Context, employeeID leave.EmployeeID) ([]leave.Adjustment, error) {
	return ts.parent.ListAdjustments(ctx, employeeID)
}

func (ts *txStore) MarkAccrued(ctx context.Context, employeeID leave.EmployeeID, typeID leave.LeaveTypeID, year, month int) error {
	return markAccrued(ctx, ts.tx, employeeID, typeID, year, month)
}

// Helper functions

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
