package generic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TABLES - The closed set of tables the store will touch
// =============================================================================

type Table string

const (
	TableClients        Table = "clients"
	TableWorkers        Table = "workers"
	TableServices       Table = "services"
	TableProjects       Table = "projects"
	TableProjectWorkers Table = "project_workers"
	TableProjectPhotos  Table = "project_photos"
	TableWorkOrders     Table = "work_orders"
	TableSalesTargets   Table = "sales_targets"
	TableCredentials    Table = "user_passwords"
	TableOrderSequences Table = "order_sequences"
)

// Column is a column identifier, optionally qualified with a table alias
// ("p.status"). Only identifiers from the vocabulary below are accepted.
type Column string

// Qualifier returns the alias part of a qualified column, or "".
func (c Column) Qualifier() string {
	if i := strings.IndexByte(string(c), '.'); i >= 0 {
		return string(c)[:i]
	}
	return ""
}

// Name returns the unqualified column name.
func (c Column) Name() string {
	if i := strings.IndexByte(string(c), '.'); i >= 0 {
		return string(c)[i+1:]
	}
	return string(c)
}

// Of qualifies a column name with an alias.
func Of(alias string, name string) Column { return Column(alias + "." + name) }

var tableColumns = map[Table][]string{
	TableClients: {
		"id", "name", "address", "phone", "email", "note",
		"has_drawings", "has_documents", "created_at", "updated_at",
	},
	TableWorkers: {
		"id", "name", "address", "phone", "email", "my_number", "blood_type",
		"emergency_contact", "emergency_phone", "emergency_address", "note",
		"created_at", "updated_at",
	},
	TableServices: {
		"id", "name", "description", "created_at", "updated_at",
	},
	TableProjects: {
		"id", "client_id", "service_id", "title", "description", "site_address",
		"price", "labor_cost", "status", "start_date", "end_date", "completion_date",
		"has_trouble", "trouble_worker_id", "has_photos", "photo_count",
		"created_at", "updated_at",
	},
	TableProjectWorkers: {
		"id", "project_id", "worker_id",
	},
	TableProjectPhotos: {
		"id", "project_id", "photo_path", "description", "created_at",
	},
	TableWorkOrders: {
		"id", "project_id", "order_number", "creation_date", "work_type",
		"manager_id", "creator_id", "site_name", "site_address", "management_tel",
		"duty", "start_date", "end_date", "arrival_time", "scheduled_start",
		"scheduled_end", "actual_start", "actual_end", "work_content",
		"contractor_company", "contractor_manager", "contact_number",
		"signboard_name", "arrival_number", "arrival_manager", "arrival_contact",
		"completion_number", "completion_manager", "completion_contact",
		"work_details", "business_card", "vest", "digicam", "has_report",
		"reports_count", "inspector", "sampling_place", "sampler", "chlorine",
		"seal", "report_form", "worker1", "worker2", "worker3", "worker4",
		"slip", "bill", "report", "memo", "has_water_quality",
		"water_quality_items", "created_at", "updated_at",
	},
	TableSalesTargets: {
		"id", "year", "month", "target_amount", "created_at", "updated_at",
	},
	TableCredentials: {
		"id", "user_id", "password", "salt", "user_level", "created_at", "updated_at",
	},
	TableOrderSequences: {
		"year_month", "last_seq",
	},
}

var columnIndex = func() map[Table]map[string]bool {
	idx := make(map[Table]map[string]bool, len(tableColumns))
	for t, cols := range tableColumns {
		set := make(map[string]bool, len(cols))
		for _, c := range cols {
			set[c] = true
		}
		idx[t] = set
	}
	return idx
}()

// Valid reports whether t is part of the vocabulary.
func (t Table) Valid() bool {
	_, ok := tableColumns[t]
	return ok
}

// Columns returns the table's columns in schema order.
func (t Table) Columns() []Column {
	names := tableColumns[t]
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column(n)
	}
	return cols
}

// HasColumn reports whether the unqualified name of c belongs to t.
func (t Table) HasColumn(c Column) bool {
	return columnIndex[t][c.Name()]
}

// Stamped reports whether updates to t refresh an updated_at column.
func (t Table) Stamped() bool {
	return columnIndex[t]["updated_at"]
}

// CheckColumns returns ErrUnknownColumn for the first column not in t.
func (t Table) CheckColumns(cols []Column) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	for _, c := range cols {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t, c.Name())
		}
	}
	return nil
}

// =============================================================================
// RECORD - One row as column name -> value
// =============================================================================

// Record is a homogeneous row representation shared by every table.
type Record map[string]any

// Columns returns the record's keys in sorted order, so generated SQL is
// deterministic.
func (r Record) Columns() []Column {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cols := make([]Column, len(keys))
	for i, k := range keys {
		cols[i] = Column(k)
	}
	return cols
}

// Int64 returns the value as an integer, 0 when absent or NULL.
func (r Record) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		return FlagValue(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

// NullInt64 returns nil when the value is absent or NULL.
func (r Record) NullInt64(key string) *int64 {
	if v, ok := r[key]; !ok || v == nil {
		return nil
	}
	n := r.Int64(key)
	return &n
}

// Float64 returns the value as a float, 0 when absent or NULL.
func (r Record) Float64(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	}
	return 0
}

// String returns the value as text, "" when absent or NULL.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(TimestampLayout)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads a 0/1 flag column.
func (r Record) Bool(key string) bool {
	return r.Int64(key) != 0
}

// Decimal reads a money column.
func (r Record) Decimal(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case nil:
		return decimal.Zero
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return MoneyFromFloat(r.Float64(key))
}

// Date reads a DATE column.
func (r Record) Date(key string) Date {
	var d Date
	if err := d.Scan(r[key]); err != nil {
		return Date{}
	}
	return d
}

// Time reads a TIMESTAMP column.
func (r Record) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(TimestampLayout, v)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}
