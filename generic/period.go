package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The reporting window every aggregation is scoped to
// =============================================================================

// Period is a calendar year, optionally narrowed to one month.
// Month 0 means the whole year.
//
// A project belongs to the period of its completion date, or of its creation
// date when it has not been completed. Every report applies that rule.
type Period struct {
	Year  int
	Month int
}

func YearPeriod(year int) Period { return Period{Year: year} }
func MonthPeriod(year, month int) Period { return Period{Year: year, Month: month} }
func CurrentYear(now time.Time) Period { return Period{Year: now.Year()} }
func CurrentMonth(now time.Time) Period { return Period{Year: now.Year(), Month: int(now.Month())} }
func (p Period) IsMonthly() bool { return p.Month != 0 }
func (p Period) WithMonth(month int) Period { return Period{Year: p.Year, Month: month} }

// Validate rejects years outside 1900..9999 and months outside 0..12.
func (p Period) Validate() error {
	if p.Year < 1900 || p.Year > 9999 {
		return &ValidationError{Entity: "period", Field: "year", Message: fmt.Sprintf("out of range: %d", p.Year)}
	}
	if p.Month < 0 || p.Month > 12 {
		return &ValidationError{Entity: "period", Field: "month", Message: fmt.Sprintf("out of range: %d", p.Month)}
	}
	return nil
}

// YearKey is the value strftime('%Y', ...) produces for this period.
func (p Period) YearKey() string { return fmt.Sprintf("%04d", p.Year) }

// MonthKey is the value strftime('%m', ...) produces for this period's month.
func (p Period) MonthKey() string { return fmt.Sprintf("%02d", p.Month) }

// Start returns the first day of the period.
func (p Period) Start() Date {
	if p.IsMonthly() {
		return StartOfMonth(p.Year, time.Month(p.Month))
	}
	return StartOfYear(p.Year)
}

// End returns the last day of the period.
func (p Period) End() Date {
	if p.IsMonthly() {
		return EndOfMonth(p.Year, time.Month(p.Month))
	}
	return EndOfYear(p.Year)
}

// Contains reports whether d falls within the period.
func (p Period) Contains(d Date) bool {
	if !d.Valid {
		return false
	}
	return !d.Before(p.Start()) && !d.After(p.End())
}

func (p Period) String() string {
	if p.IsMonthly() {
		return p.YearKey() + "-" + p.MonthKey()
	}
	return p.YearKey()
}
