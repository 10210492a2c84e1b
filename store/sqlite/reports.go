package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/reporting"
)

var _ reporting.Source = (*Store)(nil)

// periodDate is the date that places a project in a period.
func periodDate(alias string) string {
	return fmt.Sprintf("COALESCE(%[1]s.completion_date, %[1]s.created_at)", alias)
}

// periodFilter returns the SQL predicate and arguments selecting the
// projects of alias that fall in p.
func periodFilter(alias string, p generic.Period) (string, []any) {
	date := periodDate(alias)
	cond := fmt.Sprintf("strftime('%%Y', %s) = ?", date)
	args := []any{p.YearKey()}
	if p.IsMonthly() {
		cond += fmt.Sprintf(" AND strftime('%%m', %s) = ?", date)
		args = append(args, p.MonthKey())
	}
	return cond, args
}

// report runs a read under the shared lock after validating p.
func (s *Store) report(ctx context.Context, p generic.Period, query string, args ...any) ([]generic.Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Query(ctx, query, args...)
}

// =============================================================================
// REVENUE
// =============================================================================

// ClientTotals returns every client with projects in p, highest revenue
// first.
func (s *Store) ClientTotals(ctx context.Context, p generic.Period) ([]reporting.DimensionTotal, error) {
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT c.id AS id, c.name AS name,
		       SUM(p.price) AS total_amount, COUNT(p.id) AS project_count
		FROM projects p
		JOIN clients c ON p.client_id = c.id
		WHERE `+cond+`
		GROUP BY c.id, c.name
		ORDER BY total_amount DESC, c.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	return convert(rows, dimensionTotal), nil
}

// ServiceTotals returns every service with projects in p, highest revenue
// first.
func (s *Store) ServiceTotals(ctx context.Context, p generic.Period) ([]reporting.DimensionTotal, error) {
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT sv.id AS id, sv.name AS name,
		       SUM(p.price) AS total_amount, COUNT(p.id) AS project_count
		FROM projects p
		JOIN services sv ON p.service_id = sv.id
		WHERE `+cond+`
		GROUP BY sv.id, sv.name
		ORDER BY total_amount DESC, sv.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	return convert(rows, dimensionTotal), nil
}

func dimensionTotal(r generic.Record) reporting.DimensionTotal {
	return reporting.DimensionTotal{
		ID:    r.Int64("id"),
		Name:  r.String("name"),
		Total: r.Decimal("total_amount"),
		Count: r.Int64("project_count"),
	}
}

// ClientMonthlyTotals returns the revenue of each client per month of year,
// ordered by client name then month. Months without projects are absent.
func (s *Store) ClientMonthlyTotals(ctx context.Context, year int) ([]reporting.ClientMonthTotal, error) {
	p := generic.YearPeriod(year)
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT c.id AS client_id, c.name AS client_name,
		       strftime('%m', `+periodDate("p")+`) AS month,
		       SUM(p.price) AS total_amount, COUNT(p.id) AS project_count
		FROM projects p
		JOIN clients c ON p.client_id = c.id
		WHERE `+cond+`
		GROUP BY c.id, month
		ORDER BY c.name, month`, args...)
	if err != nil {
		return nil, err
	}
	return convert(rows, func(r generic.Record) reporting.ClientMonthTotal {
		return reporting.ClientMonthTotal{
			ClientID:   r.Int64("client_id"),
			ClientName: r.String("client_name"),
			Month:      int(r.Int64("month")),
			Total:      r.Decimal("total_amount"),
			Count:      r.Int64("project_count"),
		}
	}), nil
}

// MonthlyTotals returns the revenue of each month of year. Months without
// projects are zero.
func (s *Store) MonthlyTotals(ctx context.Context, year int) (reporting.MonthlyAmounts, error) {
	amounts := reporting.NewMonthlyAmounts()
	p := generic.YearPeriod(year)
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT strftime('%m', `+periodDate("p")+`) AS month,
		       SUM(p.price) AS total_amount
		FROM projects p
		WHERE `+cond+`
		GROUP BY month`, args...)
	if err != nil {
		return amounts, err
	}
	for _, r := range rows {
		amounts.Set(int(r.Int64("month")), r.Decimal("total_amount"))
	}
	return amounts, nil
}

// PriceStatistics summarizes project prices in p. A period without
// projects yields all zeros.
func (s *Store) PriceStatistics(ctx context.Context, p generic.Period) (reporting.PriceStats, error) {
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT AVG(p.price) AS average_price,
		       MIN(p.price) AS min_price,
		       MAX(p.price) AS max_price,
		       SUM(p.price) AS total_price,
		       COUNT(*) AS total_count
		FROM projects p
		WHERE `+cond, args...)
	if err != nil {
		return reporting.PriceStats{}, err
	}
	if len(rows) == 0 {
		return reporting.PriceStats{}, nil
	}
	r := rows[0]
	return reporting.PriceStats{
		Average: r.Decimal("average_price"),
		Min:     r.Decimal("min_price"),
		Max:     r.Decimal("max_price"),
		Total:   r.Decimal("total_price"),
		Count:   r.Int64("total_count"),
	}, nil
}

// =============================================================================
// TROUBLE RATES
// =============================================================================

// WorkerTrouble returns the trouble rate of every worker in p. The
// denominator is the number of projects in p the worker is assigned to; the
// numerator counts those with trouble attributed to the worker. Workers with
// no projects are listed with rate 0. Highest rate first.
func (s *Store) WorkerTrouble(ctx context.Context, p generic.Period) ([]reporting.TroubleStat, error) {
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT w.id AS id, w.name AS name,
		       COUNT(CASE WHEN p.has_trouble = 1 AND p.trouble_worker_id = w.id THEN 1 END) AS trouble_count,
		       COUNT(p.id) AS project_count
		FROM workers w
		LEFT JOIN project_workers pw ON pw.worker_id = w.id
		LEFT JOIN projects p ON p.id = pw.project_id AND `+cond+`
		GROUP BY w.id, w.name`, args...)
	if err != nil {
		return nil, err
	}
	return troubleStats(rows), nil
}

// ClientTrouble returns the share of each client's projects in p that had
// trouble. Clients with no projects are listed with rate 0. Highest rate
// first.
func (s *Store) ClientTrouble(ctx context.Context, p generic.Period) ([]reporting.TroubleStat, error) {
	cond, args := periodFilter("p", p)
	rows, err := s.report(ctx, p, `
		SELECT c.id AS id, c.name AS name,
		       COUNT(CASE WHEN p.has_trouble = 1 THEN 1 END) AS trouble_count,
		       COUNT(p.id) AS project_count
		FROM clients c
		LEFT JOIN projects p ON p.client_id = c.id AND `+cond+`
		GROUP BY c.id, c.name`, args...)
	if err != nil {
		return nil, err
	}
	return troubleStats(rows), nil
}

func troubleStats(rows []generic.Record) []reporting.TroubleStat {
	stats := convert(rows, func(r generic.Record) reporting.TroubleStat {
		return reporting.NewTroubleStat(r.Int64("id"), r.String("name"),
			r.Int64("trouble_count"), r.Int64("project_count"))
	})
	sort.SliceStable(stats, func(i, j int) bool {
		if c := stats[i].Rate.Cmp(stats[j].Rate); c != 0 {
			return c > 0
		}
		return stats[i].ID < stats[j].ID
	})
	return stats
}

// =============================================================================
// GAUGES
// =============================================================================

// ProjectCountsByStatus counts projects per status. Every known status is
// present; unknown values stored by older versions are counted under their
// own key.
func (s *Store) ProjectCountsByStatus(ctx context.Context) (map[facility.ProjectStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, `
		SELECT COALESCE(status, '') AS status, COUNT(*) AS n
		FROM projects
		GROUP BY status`)
	if err != nil {
		return nil, err
	}
	counts := make(map[facility.ProjectStatus]int64)
	for _, st := range facility.Statuses() {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[facility.ProjectStatus(r.String("status"))] += r.Int64("n")
	}
	return counts, nil
}
