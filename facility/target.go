package facility

import (
	"github.com/shopspring/decimal"
	"github.com/tcworks/tcmanage/generic"
)

// AnnualMonth is the month value that marks a yearly sales target.
const AnnualMonth = 0

// SalesTarget is a revenue goal for a year (Month 0) or one month of it.
type SalesTarget struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Amount decimal.Decimal `json:"target_amount"`
}

func (t SalesTarget) Validate() error {
	if err := generic.MonthPeriod(t.Year, t.Month).Validate(); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return generic.Invalid("sales_target", "target_amount", "must not be negative")
	}
	return nil
}

func (t SalesTarget) Record() generic.Record {
	return generic.Record{
		"year":          t.Year,
		"month":         t.Month,
		"target_amount": generic.MoneyToFloat(t.Amount),
	}
}

func SalesTargetFromRecord(r generic.Record) SalesTarget {
	return SalesTarget{
		Year:   int(r.Int64("year")),
		Month:  int(r.Int64("month")),
		Amount: r.Decimal("target_amount"),
	}
}

// TargetSet holds the targets of one year indexed by month; index 0 is the
// annual target. Unset entries are zero.
type TargetSet [13]decimal.Decimal

// NewTargetSet returns a set with every entry zero.
func NewTargetSet() TargetSet {
	var ts TargetSet
	for i := range ts {
		ts[i] = decimal.Zero
	}
	return ts
}

// Annual returns the yearly target.
func (ts TargetSet) Annual() decimal.Decimal { return ts[AnnualMonth] }

// Map returns the set keyed by month, always with all 13 keys.
func (ts TargetSet) Map() map[int]decimal.Decimal {
	m := make(map[int]decimal.Decimal, len(ts))
	for i, v := range ts {
		m[i] = v
	}
	return m
}
