/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  All calendar dates travel as "YYYY-MM-DD" strings. Timestamps travel
  as RFC3339. Day quantities travel as decimal strings ("1.25") to keep
  precision across the wire.

VALIDATION:
  Validation is done in the domain services, not in DTOs. DTOs are pure
  data carriers; handlers only reject bodies that fail to parse.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model these map to
*/
package api

import (
	"time"

	"github.com/lumenhr/leave-engine/leave"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveTypeDTO represents a leave type in API responses.
type LeaveTypeDTO struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	AccrualRate           string `json:"accrual_rate"`
	RequiresDocumentation bool   `json:"requires_documentation"`
	RequiresApproval      bool   `json:"requires_approval"`
	MaxDays               *int   `json:"max_days,omitempty"`
	MaxConsecutiveDays    *int   `json:"max_consecutive_days,omitempty"`
	Active                bool   `json:"active"`
	Color                 string `json:"color,omitempty"`
	CreatedAt             string `json:"created_at,omitempty"`
	UpdatedAt             string `json:"updated_at,omitempty"`
}

// LeaveTypeRequest is the body for creating or updating a leave type.
type LeaveTypeRequest struct {
	Name                  string `json:"name"`
	Description           string `json:"description"`
	AccrualRate           string `json:"accrual_rate"`
	RequiresDocumentation bool   `json:"requires_documentation"`
	RequiresApproval      bool   `json:"requires_approval"`
	MaxDays               *int   `json:"max_days,omitempty"`
	MaxConsecutiveDays    *int   `json:"max_consecutive_days,omitempty"`
	Color                 string `json:"color,omitempty"`
}

// =============================================================================
// EMPLOYEES AND BALANCES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ManagerID string `json:"manager_id,omitempty"`
	HireDate  string `json:"hire_date"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ManagerID string `json:"manager_id"`
	HireDate  string `json:"hire_date"`
}

// BalanceDTO represents one ledger row in API responses.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Year        int    `json:"year"`
	Total       string `json:"total"`
	Used        string `json:"used"`
	Pending     string `json:"pending"`
	Available   string `json:"available"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	LeaveTypeID  string `json:"leave_type_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	NumberOfDays int    `json:"number_of_days"`
	Reason       string `json:"reason,omitempty"`
	Status       string `json:"status"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	Comments     string `json:"comments,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// CreateRequestRequest is the body for submitting a leave request.
type CreateRequestRequest struct {
	LeaveTypeID string `json:"leave_type_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason"`
}

// DecisionRequest is the body for approve/reject actions.
type DecisionRequest struct {
	Comments string `json:"comments"`
}

// =============================================================================
// ADMIN
// =============================================================================

// AdjustmentRequest is the body for a manual balance correction.
type AdjustmentRequest struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Year        int    `json:"year"`
	Delta       string `json:"delta"`
	Reason      string `json:"reason"`
}

// AccrueRequest triggers a monthly accrual run.
type AccrueRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// AccrualSummaryDTO reports the outcome of an accrual run.
type AccrualSummaryDTO struct {
	TypesProcessed    int `json:"types_processed"`
	EmployeesCredited int `json:"employees_credited"`
	Skipped           int `json:"skipped"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:                    string(lt.ID),
		Name:                  lt.Name,
		Description:           lt.Description,
		AccrualRate:           lt.AccrualRate.String(),
		RequiresDocumentation: lt.RequiresDocumentation,
		RequiresApproval:      lt.RequiresApproval,
		MaxDays:               lt.MaxDays,
		MaxConsecutiveDays:    lt.MaxConsecutiveDays,
		Active:                lt.Active,
		Color:                 lt.Color,
		CreatedAt:             formatTime(lt.CreatedAt),
		UpdatedAt:             formatTime(lt.UpdatedAt),
	}
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		ManagerID: string(e.ManagerID),
		HireDate:  e.HireDate.String(),
		CreatedAt: formatTime(e.CreatedAt),
	}
}

func toBalanceDTO(b leave.LeaveBalance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  string(b.Key.EmployeeID),
		LeaveTypeID: string(b.Key.LeaveTypeID),
		Year:        b.Key.Year,
		Total:       b.Total.String(),
		Used:        b.Used.String(),
		Pending:     b.Pending.String(),
		Available:   b.Available().String(),
	}
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:           string(r.ID),
		EmployeeID:   string(r.EmployeeID),
		LeaveTypeID:  string(r.LeaveTypeID),
		StartDate:    r.StartDate.String(),
		EndDate:      r.EndDate.String(),
		NumberOfDays: r.NumberOfDays,
		Reason:       r.Reason,
		Status:       string(r.Status),
		ApprovedBy:   string(r.ApprovedByID),
		Comments:     r.Comments,
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
