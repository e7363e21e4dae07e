/*
handlers.go - HTTP API handlers for the leave management system

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates everything else to the domain
  services in the leave package.

ENDPOINTS:
  Leave types:
    GET    /api/leave-types                 List (active=true filter)
    POST   /api/leave-types                 Create
    GET    /api/leave-types/{id}            Get
    PUT    /api/leave-types/{id}            Update
    POST   /api/leave-types/{id}/deactivate Deactivate (soft)
    DELETE /api/leave-types/{id}            Delete (409 if referenced)

  Employees:
    GET    /api/employees                   List all employees
    POST   /api/employees                   Create employee
    GET    /api/employees/{id}              Get employee details
    GET    /api/employees/{id}/balances     Balances (year query param)
    GET    /api/employees/{id}/requests     Request history
    POST   /api/employees/{id}/requests     Submit leave request

  Requests:
    GET    /api/requests?status=PENDING     List by status
    GET    /api/requests/{id}               Get
    POST   /api/requests/{id}/approve       Approve (manager/admin)
    POST   /api/requests/{id}/reject        Reject (comments mandatory)
    POST   /api/requests/{id}/cancel        Cancel (owner/admin)

  Admin:
    POST   /api/admin/adjustments           Manual balance correction
    POST   /api/admin/accrue                Trigger monthly accrual

ACTOR RESOLUTION:
  The acting identity comes from the X-Actor-ID and X-Actor-Role
  headers. A real deployment puts an auth middleware in front that
  verifies a token and sets these; the engine only sees the resolved
  actor. Missing headers mean an anonymous employee-role actor, which
  the domain services reject where a privilege is required.

ERROR HANDLING:
  Domain errors map to HTTP status via their sentinel:
  - ErrValidation           400
  - ErrNotFound             404
  - ErrUnauthorized         403
  - ErrPolicyViolation      422
  - ErrInsufficientBalance  409
  - ErrInvalidTransition    409
  - ErrConflict             409
  Everything else is a 500.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - leave/errors.go: The error taxonomy being mapped
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenhr/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     leave.TxStore
	Registry  *leave.Registry
	Ledger    *leave.Ledger
	Lifecycle *leave.Lifecycle
	Accruer   *leave.Accruer
}

// NewHandler wires the domain services around the given store.
func NewHandler(store leave.TxStore, dispatcher leave.Dispatcher, config leave.LifecycleConfig) *Handler {
	return &Handler{
		Store:     store,
		Registry:  leave.NewRegistry(store),
		Ledger:    leave.NewLedger(store),
		Lifecycle: leave.NewLifecycle(store, dispatcher, config),
		Accruer:   leave.NewAccruer(store),
	}
}

// actorFrom resolves the acting identity from request headers.
func actorFrom(r *http.Request) leave.Actor {
	role := leave.Role(r.Header.Get("X-Actor-Role"))
	switch role {
	case leave.RoleEmployee, leave.RoleManager, leave.RoleAdmin:
	default:
		role = leave.RoleEmployee
	}
	return leave.Actor{
		ID:   leave.EmployeeID(r.Header.Get("X-Actor-ID")),
		Role: role,
	}
}

// =============================================================================
// LEAVE TYPE HANDLERS
// =============================================================================

// ListLeaveTypes returns all leave types, or only active ones with ?active=true.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	var (
		types []leave.LeaveType
		err   error
	)
	if r.URL.Query().Get("active") == "true" {
		types, err = h.Registry.ListActive(r.Context())
	} else {
		types, err = h.Registry.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave types", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveType creates a new leave type (admin only).
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fields, err := toLeaveTypeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid accrual_rate", err)
		return
	}

	lt, err := h.Registry.Create(r.Context(), actorFrom(r), fields)
	if err != nil {
		writeDomainError(w, "Failed to create leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(*lt))
}

// GetLeaveType returns a single leave type.
func (h *Handler) GetLeaveType(w http.ResponseWriter, r *http.Request) {
	lt, err := h.Registry.Get(r.Context(), leave.LeaveTypeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(*lt))
}

// UpdateLeaveType replaces a leave type's policy fields (admin only).
func (h *Handler) UpdateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fields, err := toLeaveTypeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid accrual_rate", err)
		return
	}

	lt, err := h.Registry.Update(r.Context(), actorFrom(r), leave.LeaveTypeID(chi.URLParam(r, "id")), fields)
	if err != nil {
		writeDomainError(w, "Failed to update leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(*lt))
}

// DeactivateLeaveType soft-disables a leave type (admin only).
func (h *Handler) DeactivateLeaveType(w http.ResponseWriter, r *http.Request) {
	lt, err := h.Registry.Deactivate(r.Context(), actorFrom(r), leave.LeaveTypeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to deactivate leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(*lt))
}

// DeleteLeaveType removes an unreferenced leave type (admin only).
func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	err := h.Registry.Delete(r.Context(), actorFrom(r), leave.LeaveTypeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to delete leave type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toLeaveTypeFields(req LeaveTypeRequest) (leave.LeaveTypeFields, error) {
	rate := leave.ZeroDays()
	if req.AccrualRate != "" {
		var err error
		rate, err = leave.ParseDays(req.AccrualRate)
		if err != nil {
			return leave.LeaveTypeFields{}, err
		}
	}
	return leave.LeaveTypeFields{
		Name:                  req.Name,
		Description:           req.Description,
		AccrualRate:           rate,
		RequiresDocumentation: req.RequiresDocumentation,
		RequiresApproval:      req.RequiresApproval,
		MaxDays:               req.MaxDays,
		MaxConsecutiveDays:    req.MaxConsecutiveDays,
		Color:                 req.Color,
	}, nil
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Store.GetEmployee(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// CreateEmployee creates an employee record.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	hireDate, err := leave.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	e := leave.Employee{
		ID:        leave.EmployeeID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		ManagerID: leave.EmployeeID(req.ManagerID),
		HireDate:  hireDate,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveEmployee(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(e))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// ListBalances returns an employee's ledger rows for a year
// (defaults to the current year).
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))

	year := time.Now().UTC().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed
	}

	balances, err := h.Store.ListBalances(r.Context(), employeeID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a leave request for the employee in the URL.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))

	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	startDate, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	endDate, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Lifecycle.Create(r.Context(), actorFrom(r), leave.CreateInput{
		EmployeeID:  employeeID,
		LeaveTypeID: leave.LeaveTypeID(req.LeaveTypeID),
		StartDate:   startDate,
		EndDate:     endDate,
		Reason:      req.Reason,
	})
	if err != nil {
		writeDomainError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// ListEmployeeRequests returns an employee's leave requests, newest first.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Lifecycle.ListByEmployee(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// ListRequests returns requests filtered by status (default PENDING).
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := leave.RequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = leave.StatusPending
	}

	requests, err := h.Lifecycle.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// GetRequest returns a single leave request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Lifecycle.Get(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ApproveRequest moves a pending request to APPROVED.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	decodeOptional(r, &body)

	req, err := h.Lifecycle.Approve(r.Context(), actorFrom(r), leave.RequestID(chi.URLParam(r, "id")), body.Comments)
	if err != nil {
		writeDomainError(w, "Failed to approve request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// RejectRequest moves a pending request to REJECTED. Comments are mandatory.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	decodeOptional(r, &body)

	req, err := h.Lifecycle.Reject(r.Context(), actorFrom(r), leave.RequestID(chi.URLParam(r, "id")), body.Comments)
	if err != nil {
		writeDomainError(w, "Failed to reject request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// CancelRequest cancels the caller's own request (or any, for admins).
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Lifecycle.Cancel(r.Context(), actorFrom(r), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

func toRequestDTOs(requests []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	return dtos
}

// decodeOptional parses a JSON body if one is present. An empty or
// missing body leaves dst zero-valued.
func decodeOptional(r *http.Request, dst any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(dst)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateAdjustment applies a manual balance correction (admin only).
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	delta, err := leave.ParseDays(req.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delta", err)
		return
	}

	year := req.Year
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	key := leave.BalanceKey{
		EmployeeID:  leave.EmployeeID(req.EmployeeID),
		LeaveTypeID: leave.LeaveTypeID(req.LeaveTypeID),
		Year:        year,
	}
	balance, err := h.Ledger.Adjust(r.Context(), actorFrom(r), key, delta, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// TriggerAccrual runs the monthly accrual for the given (or current)
// month (admin only). Safe to re-run: already-credited pairs are skipped.
func (h *Handler) TriggerAccrual(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		writeError(w, http.StatusForbidden, "Admin role required", nil)
		return
	}

	var req AccrueRequest
	decodeOptional(r, &req)

	now := time.Now().UTC()
	if req.Year == 0 {
		req.Year = now.Year()
	}
	if req.Month == 0 {
		req.Month = int(now.Month())
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", nil)
		return
	}

	summary, err := h.Accruer.AccrueMonth(r.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Accrual run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualSummaryDTO{
		TypesProcessed:    summary.TypesProcessed,
		EmployeesCredited: summary.EmployeesCredited,
		Skipped:           summary.Skipped,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, leave.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, leave.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, leave.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, leave.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, leave.ErrInsufficientBalance),
		errors.Is(err, leave.ErrInvalidTransition),
		errors.Is(err, leave.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
