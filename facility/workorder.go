package facility

import (
	"strings"
	"time"

	"github.com/tcworks/tcmanage/generic"
)

// Work content categories printed on the order.
const (
	ContentDrainage     = "排水"
	ContentWaterStorage = "貯水"
	ContentOther        = "工事/その他"
)

// WorkOrder is the instruction sheet handed to the crew for a job. Most
// fields are free text copied onto the printed form; times are "HH:MM".
type WorkOrder struct {
	ID           int64        `json:"id"`
	ProjectID    *int64       `json:"project_id"`
	OrderNumber  string       `json:"order_number"`
	CreationDate generic.Date `json:"creation_date"`
	WorkType     string       `json:"work_type"`
	ManagerID    *int64       `json:"manager_id"`
	CreatorID    *int64       `json:"creator_id"`

	SiteName      string       `json:"site_name"`
	SiteAddress   string       `json:"site_address"`
	ManagementTel string       `json:"management_tel"`
	Duty          string       `json:"duty"`
	StartDate     generic.Date `json:"start_date"`
	EndDate       generic.Date `json:"end_date"`

	ArrivalTime    string `json:"arrival_time"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	ActualStart    string `json:"actual_start"`
	ActualEnd      string `json:"actual_end"`
	WorkContent    string `json:"work_content"`

	ContractorCompany string `json:"contractor_company"`
	ContractorManager string `json:"contractor_manager"`
	ContactNumber     string `json:"contact_number"`
	SignboardName     string `json:"signboard_name"`

	ArrivalNumber     string `json:"arrival_number"`
	ArrivalManager    string `json:"arrival_manager"`
	ArrivalContact    string `json:"arrival_contact"`
	CompletionNumber  string `json:"completion_number"`
	CompletionManager string `json:"completion_manager"`
	CompletionContact string `json:"completion_contact"`
	WorkDetails       string `json:"work_details"`

	// Checklist
	BusinessCard bool   `json:"business_card"`
	Vest         bool   `json:"vest"`
	Digicam      string `json:"digicam"`
	HasReport    bool   `json:"has_report"`
	ReportsCount int64  `json:"reports_count"`

	// Water quality sampling
	Inspector         string `json:"inspector"`
	SamplingPlace     string `json:"sampling_place"`
	Sampler           string `json:"sampler"`
	HasWaterQuality   bool   `json:"has_water_quality"`
	WaterQualityItems int64  `json:"water_quality_items"`
	Chlorine          bool   `json:"chlorine"`
	Seal              bool   `json:"seal"`
	ReportForm        bool   `json:"report_form"`

	Workers [4]string `json:"workers"`

	// Office paperwork
	Slip   bool   `json:"slip"`
	Bill   bool   `json:"bill"`
	Report bool   `json:"report"`
	Memo   string `json:"memo"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined names, filled by listings.
	ProjectTitle string `json:"project_title,omitempty"`
	ClientName   string `json:"client_name,omitempty"`
	ManagerName  string `json:"manager_name,omitempty"`
	CreatorName  string `json:"creator_name,omitempty"`
}

// NewWorkOrder returns an order with the form defaults.
func NewWorkOrder(now time.Time) WorkOrder {
	return WorkOrder{
		CreationDate:    generic.DateOf(now),
		WorkContent:     ContentOther,
		Digicam:         "デジカメ",
		HasWaterQuality: true,
	}
}

// Validate checks the number format and the numeric fields.
func (o WorkOrder) Validate() error {
	if o.OrderNumber != "" {
		if _, err := ParseOrderNumber(o.OrderNumber); err != nil {
			return err
		}
	}
	if o.ReportsCount < 0 {
		return generic.Invalid("work_order", "reports_count", "must not be negative")
	}
	if o.WaterQualityItems < 0 {
		return generic.Invalid("work_order", "water_quality_items", "must not be negative")
	}
	if o.StartDate.Valid && o.EndDate.Valid && o.EndDate.Before(o.StartDate) {
		return generic.Invalid("work_order", "end_date", "before start_date")
	}
	return nil
}

func nullableID(id *int64) any {
	if id == nil || *id <= 0 {
		return nil
	}
	return *id
}

// Record returns the writable columns.
func (o WorkOrder) Record() generic.Record {
	return generic.Record{
		"project_id":          nullableID(o.ProjectID),
		"order_number":        strings.TrimSpace(o.OrderNumber),
		"creation_date":       o.CreationDate,
		"work_type":           o.WorkType,
		"manager_id":          nullableID(o.ManagerID),
		"creator_id":          nullableID(o.CreatorID),
		"site_name":           o.SiteName,
		"site_address":        o.SiteAddress,
		"management_tel":      o.ManagementTel,
		"duty":                o.Duty,
		"start_date":          o.StartDate,
		"end_date":            o.EndDate,
		"arrival_time":        o.ArrivalTime,
		"scheduled_start":     o.ScheduledStart,
		"scheduled_end":       o.ScheduledEnd,
		"actual_start":        o.ActualStart,
		"actual_end":          o.ActualEnd,
		"work_content":        o.WorkContent,
		"contractor_company":  o.ContractorCompany,
		"contractor_manager":  o.ContractorManager,
		"contact_number":      o.ContactNumber,
		"signboard_name":      o.SignboardName,
		"arrival_number":      o.ArrivalNumber,
		"arrival_manager":     o.ArrivalManager,
		"arrival_contact":     o.ArrivalContact,
		"completion_number":   o.CompletionNumber,
		"completion_manager":  o.CompletionManager,
		"completion_contact":  o.CompletionContact,
		"work_details":        o.WorkDetails,
		"business_card":       generic.FlagValue(o.BusinessCard),
		"vest":                generic.FlagValue(o.Vest),
		"digicam":             o.Digicam,
		"has_report":          generic.FlagValue(o.HasReport),
		"reports_count":       o.ReportsCount,
		"inspector":           o.Inspector,
		"sampling_place":      o.SamplingPlace,
		"sampler":             o.Sampler,
		"has_water_quality":   generic.FlagValue(o.HasWaterQuality),
		"water_quality_items": o.WaterQualityItems,
		"chlorine":            generic.FlagValue(o.Chlorine),
		"seal":                generic.FlagValue(o.Seal),
		"report_form":         generic.FlagValue(o.ReportForm),
		"worker1":             o.Workers[0],
		"worker2":             o.Workers[1],
		"worker3":             o.Workers[2],
		"worker4":             o.Workers[3],
		"slip":                generic.FlagValue(o.Slip),
		"bill":                generic.FlagValue(o.Bill),
		"report":              generic.FlagValue(o.Report),
		"memo":                o.Memo,
	}
}

func WorkOrderFromRecord(r generic.Record) WorkOrder {
	return WorkOrder{
		ID:                r.Int64("id"),
		ProjectID:         r.NullInt64("project_id"),
		OrderNumber:       r.String("order_number"),
		CreationDate:      r.Date("creation_date"),
		WorkType:          r.String("work_type"),
		ManagerID:         r.NullInt64("manager_id"),
		CreatorID:         r.NullInt64("creator_id"),
		SiteName:          r.String("site_name"),
		SiteAddress:       r.String("site_address"),
		ManagementTel:     r.String("management_tel"),
		Duty:              r.String("duty"),
		StartDate:         r.Date("start_date"),
		EndDate:           r.Date("end_date"),
		ArrivalTime:       r.String("arrival_time"),
		ScheduledStart:    r.String("scheduled_start"),
		ScheduledEnd:      r.String("scheduled_end"),
		ActualStart:       r.String("actual_start"),
		ActualEnd:         r.String("actual_end"),
		WorkContent:       r.String("work_content"),
		ContractorCompany: r.String("contractor_company"),
		ContractorManager: r.String("contractor_manager"),
		ContactNumber:     r.String("contact_number"),
		SignboardName:     r.String("signboard_name"),
		ArrivalNumber:     r.String("arrival_number"),
		ArrivalManager:    r.String("arrival_manager"),
		ArrivalContact:    r.String("arrival_contact"),
		CompletionNumber:  r.String("completion_number"),
		CompletionManager: r.String("completion_manager"),
		CompletionContact: r.String("completion_contact"),
		WorkDetails:       r.String("work_details"),
		BusinessCard:      r.Bool("business_card"),
		Vest:              r.Bool("vest"),
		Digicam:           r.String("digicam"),
		HasReport:         r.Bool("has_report"),
		ReportsCount:      r.Int64("reports_count"),
		Inspector:         r.String("inspector"),
		SamplingPlace:     r.String("sampling_place"),
		Sampler:           r.String("sampler"),
		HasWaterQuality:   r.Bool("has_water_quality"),
		WaterQualityItems: r.Int64("water_quality_items"),
		Chlorine:          r.Bool("chlorine"),
		Seal:              r.Bool("seal"),
		ReportForm:        r.Bool("report_form"),
		Workers: [4]string{
			r.String("worker1"), r.String("worker2"), r.String("worker3"), r.String("worker4"),
		},
		Slip:         r.Bool("slip"),
		Bill:         r.Bool("bill"),
		Report:       r.Bool("report"),
		Memo:         r.String("memo"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
		ProjectTitle: r.String("project_title"),
		ClientName:   r.String("client_name"),
		ManagerName:  r.String("manager_name"),
		CreatorName:  r.String("creator_name"),
	}
}
