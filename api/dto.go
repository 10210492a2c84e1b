/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not plain
  facility types. Entities (clients, projects, work orders, ...) are
  serialized directly; these types cover requests that carry more than one
  entity and responses that wrap a scalar.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done by the facility types and the store, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/facility"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for later requests.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	UserID    string     `json:"user_id"`
	Level     auth.Level `json:"user_level"`
}

// ChangePasswordRequest is the body of PUT /api/auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// SetLevelRequest is the body of PUT /api/users/{id}/level.
type SetLevelRequest struct {
	Level auth.Level `json:"user_level"`
}

// =============================================================================
// PROJECTS
// =============================================================================

// ProjectRequest creates or updates a project together with its workers.
// A missing worker_ids leaves the assignment untouched on update.
type ProjectRequest struct {
	facility.Project
	WorkerIDs []int64 `json:"worker_ids"`
}

// ProjectDetailResponse is a project with its workers and photos.
type ProjectDetailResponse struct {
	facility.Project
	Workers []facility.Worker       `json:"workers"`
	Photos  []facility.ProjectPhoto `json:"photos"`
	Profit  decimal.Decimal         `json:"profit"`
}

// WorkerIDsRequest replaces a project's workers.
type WorkerIDsRequest struct {
	WorkerIDs []int64 `json:"worker_ids"`
}

// ImportPhotosRequest imports files already present on the server host.
type ImportPhotosRequest struct {
	Files []string `json:"files"`
}

// =============================================================================
// WORK ORDERS / TARGETS
// =============================================================================

// OrderNumberResponse is the result of reserving an order number.
type OrderNumberResponse struct {
	OrderNumber string `json:"order_number"`
}

// SalesTargetRequest is the body of PUT /api/targets/{year}/{month}.
type SalesTargetRequest struct {
	Amount decimal.Decimal `json:"target_amount"`
}

// TargetsResponse lists the annual (month 0) and monthly targets of a year.
type TargetsResponse struct {
	Year    int                     `json:"year"`
	Targets map[int]decimal.Decimal `json:"targets"`
}

// =============================================================================
// COMMON
// =============================================================================

// CountResponse wraps a count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
