package sqlite

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// SalesTarget returns the target of year and month (0 for the annual one).
// An unset target is zero.
func (s *Store) SalesTarget(ctx context.Context, year, month int) (decimal.Decimal, error) {
	if err := generic.MonthPeriod(year, month).Validate(); err != nil {
		return decimal.Zero, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := getOne(ctx, s.rec, generic.TableSalesTargets, generic.And(
		generic.Eq("year", year),
		generic.Eq("month", month),
	), facility.SalesTargetFromRecord)
	if err != nil {
		return decimal.Zero, err
	}
	if t == nil {
		return decimal.Zero, nil
	}
	return t.Amount, nil
}

// SetSalesTarget inserts or replaces the target of t.Year and t.Month.
func (s *Store) SetSalesTarget(ctx context.Context, t facility.SalesTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.rec.Exec(ctx, `
		INSERT INTO sales_targets (year, month, target_amount)
		VALUES (?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			target_amount = excluded.target_amount,
			updated_at = CURRENT_TIMESTAMP`,
		t.Year, t.Month, generic.MoneyToFloat(t.Amount))
	return err
}

// AllSalesTargets returns the annual and monthly targets of a year. Every
// month is present; unset ones are zero.
func (s *Store) AllSalesTargets(ctx context.Context, year int) (facility.TargetSet, error) {
	set := facility.NewTargetSet()
	if err := generic.YearPeriod(year).Validate(); err != nil {
		return set, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	targets, err := listOf(ctx, s.rec, generic.TableSalesTargets, generic.Eq("year", year),
		facility.SalesTargetFromRecord)
	if err != nil {
		return set, err
	}
	for _, t := range targets {
		if t.Month >= 0 && t.Month < len(set) {
			set[t.Month] = t.Amount
		}
	}
	return set, nil
}
