package facility

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tcworks/tcmanage/generic"
)

// =============================================================================
// PROJECT STATUS
// =============================================================================

// ProjectStatus is the lifecycle state of a job. Values are stored verbatim
// and are the labels existing databases already contain.
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "作業前"
	StatusInProgress ProjectStatus = "作業中"
	StatusCompleted  ProjectStatus = "完了"
	StatusCancelled  ProjectStatus = "キャンセル"
)

// DefaultStatus matches the column default.
const DefaultStatus = StatusInProgress

// Statuses lists every status in display order.
func Statuses() []ProjectStatus {
	return []ProjectStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// PROJECT
// =============================================================================

// Project is one job for a client.
//
// HasPhotos and PhotoCount mirror the project_photos rows and are maintained
// by the photo operations only; Record() never writes them.
type Project struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	ServiceID       int64           `json:"service_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	SiteAddress     string          `json:"site_address"`
	Price           decimal.Decimal `json:"price"`
	LaborCost       decimal.Decimal `json:"labor_cost"`
	Status          ProjectStatus   `json:"status"`
	StartDate       generic.Date    `json:"start_date"`
	EndDate         generic.Date    `json:"end_date"`
	CompletionDate  generic.Date    `json:"completion_date"`
	HasTrouble      bool            `json:"has_trouble"`
	TroubleWorkerID *int64          `json:"trouble_worker_id"`
	HasPhotos       bool            `json:"has_photos"`
	PhotoCount      int64           `json:"photo_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Joined names, filled by listings.
	ClientName        string `json:"client_name,omitempty"`
	ServiceName       string `json:"service_name,omitempty"`
	TroubleWorkerName string `json:"trouble_worker_name,omitempty"`
}

// Validate checks the invariants that do not need the database. Reference
// existence is checked by the store. creating enables the price > 0 rule.
func (p *Project) Validate(creating bool) error {
	if strings.TrimSpace(p.Title) == "" {
		return generic.Invalid("project", "title", "required")
	}
	if p.ClientID <= 0 {
		return generic.Invalid("project", "client_id", "required")
	}
	if p.ServiceID <= 0 {
		return generic.Invalid("project", "service_id", "required")
	}
	if creating && !p.Price.IsPositive() {
		return generic.Invalid("project", "price", "must be greater than zero, got %s", p.Price)
	}
	if p.Price.IsNegative() {
		return generic.Invalid("project", "price", "must not be negative, got %s", p.Price)
	}
	if p.LaborCost.IsNegative() {
		return generic.Invalid("project", "labor_cost", "must not be negative, got %s", p.LaborCost)
	}
	if p.Status == "" {
		p.Status = DefaultStatus
	}
	if !p.Status.Valid() {
		return generic.Invalid("project", "status", "unknown status %q", string(p.Status))
	}
	if p.HasTrouble && (p.TroubleWorkerID == nil || *p.TroubleWorkerID <= 0) {
		return generic.Invalid("project", "trouble_worker_id", "required when has_trouble is set")
	}
	if !p.HasTrouble && p.TroubleWorkerID != nil {
		return generic.Invalid("project", "trouble_worker_id", "must be empty when has_trouble is not set")
	}
	return nil
}

// Record returns the writable columns.
func (p Project) Record() generic.Record {
	rec := generic.Record{
		"client_id":         p.ClientID,
		"service_id":        p.ServiceID,
		"title":             strings.TrimSpace(p.Title),
		"description":       p.Description,
		"site_address":      p.SiteAddress,
		"price":             generic.MoneyToFloat(p.Price),
		"labor_cost":        generic.MoneyToFloat(p.LaborCost),
		"status":            string(p.Status),
		"start_date":        p.StartDate,
		"end_date":          p.EndDate,
		"completion_date":   p.CompletionDate,
		"has_trouble":       generic.FlagValue(p.HasTrouble),
		"trouble_worker_id": nil,
	}
	if p.TroubleWorkerID != nil {
		rec["trouble_worker_id"] = *p.TroubleWorkerID
	}
	return rec
}

func ProjectFromRecord(r generic.Record) Project {
	return Project{
		ID:                r.Int64("id"),
		ClientID:          r.Int64("client_id"),
		ServiceID:         r.Int64("service_id"),
		Title:             r.String("title"),
		Description:       r.String("description"),
		SiteAddress:       r.String("site_address"),
		Price:             r.Decimal("price"),
		LaborCost:         r.Decimal("labor_cost"),
		Status:            ProjectStatus(r.String("status")),
		StartDate:         r.Date("start_date"),
		EndDate:           r.Date("end_date"),
		CompletionDate:    r.Date("completion_date"),
		HasTrouble:        r.Bool("has_trouble"),
		TroubleWorkerID:   r.NullInt64("trouble_worker_id"),
		HasPhotos:         r.Bool("has_photos"),
		PhotoCount:        r.Int64("photo_count"),
		CreatedAt:         r.Time("created_at"),
		UpdatedAt:         r.Time("updated_at"),
		ClientName:        r.String("client_name"),
		ServiceName:       r.String("service_name"),
		TroubleWorkerName: r.String("trouble_worker_name"),
	}
}

// Profit is price minus labor cost.
func (p Project) Profit() decimal.Decimal {
	return p.Price.Sub(p.LaborCost)
}

// =============================================================================
// PROJECT QUERY - Listing filters
// =============================================================================

// ProjectQuery filters a project listing. Zero fields do not filter.
//
// CompletionYear/CompletionMonth match the completion date only, so projects
// without one are excluded when either is set. From and To together select
// projects whose start..end span overlaps the range; From alone selects
// projects still running on or after it, To alone those started on or before
// it. Projects without dates never match a date bound.
type ProjectQuery struct {
	Search          string
	Status          ProjectStatus
	ClientID        int64
	ServiceID       int64
	CompletionYear  int
	CompletionMonth int
	From            generic.Date
	To              generic.Date
	Sort            generic.ProjectSort
	Order           generic.SortOrder
}

// Project listing aliases: p projects, c clients, s services, w trouble worker.
var (
	colTitle      = generic.Of("p", "title")
	colStatus     = generic.Of("p", "status")
	colClientID   = generic.Of("p", "client_id")
	colServiceID  = generic.Of("p", "service_id")
	colCompletion = generic.Of("p", "completion_date")
	colStart      = generic.Of("p", "start_date")
	colEnd        = generic.Of("p", "end_date")
)

// Condition renders the filters.
func (q ProjectQuery) Condition() (generic.Condition, error) {
	var conds []generic.Condition

	if s := strings.TrimSpace(q.Search); s != "" {
		conds = append(conds, generic.Contains(colTitle, s))
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return generic.Condition{}, generic.Invalid("project_query", "status", "unknown status %q", string(q.Status))
		}
		conds = append(conds, generic.Eq(colStatus, string(q.Status)))
	}
	if q.ClientID > 0 {
		conds = append(conds, generic.Eq(colClientID, q.ClientID))
	}
	if q.ServiceID > 0 {
		conds = append(conds, generic.Eq(colServiceID, q.ServiceID))
	}

	switch {
	case q.CompletionYear > 0 && q.CompletionMonth > 0:
		p := generic.MonthPeriod(q.CompletionYear, q.CompletionMonth)
		if err := p.Validate(); err != nil {
			return generic.Condition{}, err
		}
		conds = append(conds,
			generic.Gte(colCompletion, p.Start()),
			generic.Lte(colCompletion, p.End()),
		)
	case q.CompletionYear > 0:
		p := generic.YearPeriod(q.CompletionYear)
		if err := p.Validate(); err != nil {
			return generic.Condition{}, err
		}
		conds = append(conds, generic.Expr(
			"strftime('%Y', p.completion_date) = ?",
			[]generic.Column{colCompletion}, p.YearKey()))
	case q.CompletionMonth > 0:
		if q.CompletionMonth > 12 {
			return generic.Condition{}, generic.Invalid("project_query", "month", "out of range: %d", q.CompletionMonth)
		}
		conds = append(conds, generic.Expr(
			"strftime('%m', p.completion_date) = ?",
			[]generic.Column{colCompletion}, fmt.Sprintf("%02d", q.CompletionMonth)))
	}

	switch {
	case q.From.Valid && q.To.Valid:
		if q.To.Before(q.From) {
			return generic.Condition{}, generic.Invalid("project_query", "to", "before from")
		}
		from, to := q.From, q.To
		conds = append(conds, generic.Expr(
			"(p.start_date BETWEEN ? AND ?) OR (p.end_date BETWEEN ? AND ?)"+
				" OR (? BETWEEN p.start_date AND p.end_date) OR (? BETWEEN p.start_date AND p.end_date)",
			[]generic.Column{colStart, colEnd},
			from, to, from, to, from, to))
	case q.From.Valid:
		conds = append(conds, generic.Expr(
			"COALESCE(p.end_date, p.start_date) >= ?",
			[]generic.Column{colStart, colEnd}, q.From))
	case q.To.Valid:
		conds = append(conds, generic.Expr(
			"COALESCE(p.start_date, p.end_date) <= ?",
			[]generic.Column{colStart, colEnd}, q.To))
	}

	return generic.And(conds...), nil
}

// OrderBy returns the allow-listed ORDER BY term for the listing.
func (q ProjectQuery) OrderBy() generic.OrderBy {
	return generic.OrderBy{
		Column: generic.Of("p", string(generic.ParseProjectSort(string(q.Sort)))),
		Order:  generic.ParseSortOrder(string(q.Order)),
	}
}
