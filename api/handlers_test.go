/*
handlers_test.go - HTTP-level tests for the API

Exercises the full stack (router → handlers → domain services → SQLite)
through httptest, with attention to:
- Actor header resolution and role gates
- Domain error → HTTP status mapping
- A full request lifecycle driven over HTTP
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhr/leave-engine/leave"
	"github.com/lumenhr/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type apiFixture struct {
	server  *httptest.Server
	handler *Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store, leave.NopDispatcher{}, leave.LifecycleConfig{})
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, handler: handler}
}

// do sends a JSON request with the given actor headers and decodes the
// response body into out (when out is non-nil).
func (f *apiFixture) do(t *testing.T, method, path string, actor leave.Actor, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor.ID != "" {
		req.Header.Set("X-Actor-ID", string(actor.ID))
		req.Header.Set("X-Actor-Role", string(actor.Role))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

var (
	apiAdmin    = leave.Actor{ID: "admin-1", Role: leave.RoleAdmin}
	apiManager  = leave.Actor{ID: "mgr-1", Role: leave.RoleManager}
	apiEmployee = leave.Actor{ID: "emp-1", Role: leave.RoleEmployee}
)

// seedWorld creates an employee, an annual leave type, and a 10-day
// balance for the current year. Returns the leave type ID.
func (f *apiFixture) seedWorld(t *testing.T) string {
	t.Helper()

	resp := f.do(t, http.MethodPost, "/api/employees", apiAdmin, CreateEmployeeRequest{
		ID: "emp-1", Name: "Dana Cruz", ManagerID: "mgr-1", HireDate: "2023-01-09",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var lt LeaveTypeDTO
	resp = f.do(t, http.MethodPost, "/api/leave-types", apiAdmin, LeaveTypeRequest{
		Name: "Annual Leave", Description: "Paid vacation", AccrualRate: "1.25",
		RequiresApproval: true,
	}, &lt)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/admin/adjustments", apiAdmin, AdjustmentRequest{
		EmployeeID: "emp-1", LeaveTypeID: lt.ID, Delta: "10", Reason: "initial grant",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return lt.ID
}

func futureDate(daysAhead int) string {
	return leave.Today().AddDays(daysAhead).String()
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func TestAPI_LeaveTypes_CreateRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/leave-types", apiEmployee, LeaveTypeRequest{
		Name: "Annual", Description: "x",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_LeaveTypes_ActiveFilter(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	resp := f.do(t, http.MethodPost, "/api/leave-types/"+ltID+"/deactivate", apiAdmin, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var active []LeaveTypeDTO
	f.do(t, http.MethodGet, "/api/leave-types?active=true", apiEmployee, nil, &active)
	assert.Empty(t, active)

	var all []LeaveTypeDTO
	f.do(t, http.MethodGet, "/api/leave-types", apiEmployee, nil, &all)
	assert.Len(t, all, 1)
}

func TestAPI_LeaveTypes_DeleteReferenced_Conflict(t *testing.T) {
	// The seeded adjustment creates a balance row, so the type is referenced.

	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	resp := f.do(t, http.MethodDelete, "/api/leave-types/"+ltID, apiAdmin, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_LeaveTypes_GetUnknown_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/leave-types/ghost", apiEmployee, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// REQUEST LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_RequestLifecycle_CreateApprove(t *testing.T) {
	// GIVEN: A seeded employee with 10 days
	// WHEN: Creating a 3-day request and approving it as manager
	// THEN: Statuses and balances flow through the HTTP surface correctly

	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	var created RequestDTO
	resp := f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(9), Reason: "trip",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, 3, created.NumberOfDays)

	var approved RequestDTO
	resp = f.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve", apiManager,
		DecisionRequest{Comments: "ok"}, &approved)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "APPROVED", approved.Status)
	assert.Equal(t, "mgr-1", approved.ApprovedBy)

	var balances []BalanceDTO
	year := time.Now().UTC().Year()
	f.do(t, http.MethodGet, fmt.Sprintf("/api/employees/emp-1/balances?year=%d", year), apiEmployee, nil, &balances)
	require.Len(t, balances, 1)
	assert.Equal(t, "3", balances[0].Used)
	assert.Equal(t, "0", balances[0].Pending)
	assert.Equal(t, "7", balances[0].Available)
}

func TestAPI_Request_InsufficientBalance_Conflict(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	resp := f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(20),
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Request_ApproveAsEmployee_Forbidden(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	var created RequestDTO
	f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(7),
	}, &created)

	resp := f.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve", apiEmployee, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_Request_DoubleApprove_Conflict(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	var created RequestDTO
	f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(8),
	}, &created)

	resp := f.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve", apiManager, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve", apiManager, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Request_RejectWithoutComments_BadRequest(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	var created RequestDTO
	f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(8),
	}, &created)

	resp := f.do(t, http.MethodPost, "/api/requests/"+created.ID+"/reject", apiManager,
		DecisionRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Request_CancelOwn_ReleasesDays(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	var created RequestDTO
	f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(8),
	}, &created)

	var cancelled RequestDTO
	resp := f.do(t, http.MethodPost, "/api/requests/"+created.ID+"/cancel", apiEmployee, nil, &cancelled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	var balances []BalanceDTO
	year := time.Now().UTC().Year()
	f.do(t, http.MethodGet, fmt.Sprintf("/api/employees/emp-1/balances?year=%d", year), apiEmployee, nil, &balances)
	require.Len(t, balances, 1)
	assert.Equal(t, "10", balances[0].Available)
}

func TestAPI_Request_PendingQueue(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	f.do(t, http.MethodPost, "/api/employees/emp-1/requests", apiEmployee, CreateRequestRequest{
		LeaveTypeID: ltID, StartDate: futureDate(7), EndDate: futureDate(7),
	}, nil)

	var pending []RequestDTO
	resp := f.do(t, http.MethodGet, "/api/requests?status=PENDING", apiManager, nil, &pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, pending, 1)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_Adjustment_RequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	resp := f.do(t, http.MethodPost, "/api/admin/adjustments", apiManager, AdjustmentRequest{
		EmployeeID: "emp-1", LeaveTypeID: ltID, Delta: "5", Reason: "grant",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_Adjustment_MissingReason_BadRequest(t *testing.T) {
	f := newAPIFixture(t)
	ltID := f.seedWorld(t)

	resp := f.do(t, http.MethodPost, "/api/admin/adjustments", apiAdmin, AdjustmentRequest{
		EmployeeID: "emp-1", LeaveTypeID: ltID, Delta: "5",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Accrue_IdempotentAcrossCalls(t *testing.T) {
	f := newAPIFixture(t)
	f.seedWorld(t)

	body := AccrueRequest{Year: 2025, Month: 3}

	var first AccrualSummaryDTO
	resp := f.do(t, http.MethodPost, "/api/admin/accrue", apiAdmin, body, &first)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, first.EmployeesCredited)

	var second AccrualSummaryDTO
	resp = f.do(t, http.MethodPost, "/api/admin/accrue", apiAdmin, body, &second)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, second.EmployeesCredited)
	assert.Equal(t, 1, second.Skipped)
}

func TestAPI_Accrue_RequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/admin/accrue", apiEmployee, AccrueRequest{Year: 2025, Month: 3}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
