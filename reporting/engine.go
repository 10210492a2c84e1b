/*
Package reporting shapes the aggregation queries into dashboard data.

PERIOD RULE:
  A project belongs to the period of its completion date, or of its creation
  date when it has none: COALESCE(completion_date, created_at). Every figure
  in this package follows that rule.

OUTPUT SHAPES:
  - Yearly comparison: two 12-entry series, months without projects are 0
  - Trouble rates: trouble_count / project_count * 100, 0 when no projects
  - Sales targets: month 0 is the annual target, 1..12 the monthly ones
*/
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// DimensionTotal is the revenue of one client or service in a period.
type DimensionTotal struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total_amount"`
	Count int64           `json:"project_count"`
}

// ClientMonthTotal is the revenue of one client in one month.
type ClientMonthTotal struct {
	ClientID   int64           `json:"client_id"`
	ClientName string          `json:"client_name"`
	Month      int             `json:"month"`
	Total      decimal.Decimal `json:"total_amount"`
	Count      int64           `json:"project_count"`
}

// PriceStats summarizes project prices. All fields are zero when the period
// has no projects.
type PriceStats struct {
	Average decimal.Decimal `json:"average_price"`
	Min     decimal.Decimal `json:"min_price"`
	Max     decimal.Decimal `json:"max_price"`
	Total   decimal.Decimal `json:"total_price"`
	Count   int64           `json:"total_count"`
}

// TroubleStat is the trouble rate of one worker or client.
type TroubleStat struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	TroubleCount int64           `json:"trouble_count"`
	ProjectCount int64           `json:"project_count"`
	Rate         decimal.Decimal `json:"trouble_rate"`
}

// NewTroubleStat computes the rate; zero projects give a zero rate.
func NewTroubleStat(id int64, name string, troubles, projects int64) TroubleStat {
	return TroubleStat{
		ID:           id,
		Name:         name,
		TroubleCount: troubles,
		ProjectCount: projects,
		Rate:         generic.Percent(troubles, projects),
	}
}

// MonthlyAmounts holds one value per month, January first.
type MonthlyAmounts [12]decimal.Decimal

// NewMonthlyAmounts returns twelve zeros.
func NewMonthlyAmounts() MonthlyAmounts {
	var m MonthlyAmounts
	for i := range m {
		m[i] = decimal.Zero
	}
	return m
}

// Set stores v for month 1..12; other months are ignored.
func (m *MonthlyAmounts) Set(month int, v decimal.Decimal) {
	if month >= 1 && month <= 12 {
		m[month-1] = v
	}
}

// Sum returns the total of all months.
func (m MonthlyAmounts) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// MonthLabels are the month keys used by the comparison, "01".."12".
func MonthLabels() []string {
	labels := make([]string, 12)
	for i := range labels {
		labels[i] = fmt.Sprintf("%02d", i+1)
	}
	return labels
}

// YearlyComparison lines up the monthly revenue of two years.
type YearlyComparison struct {
	Months      []string          `json:"months"`
	CurrentYear int               `json:"current_year"`
	CompareYear int               `json:"compare_year"`
	Current     []decimal.Decimal `json:"current_data"`
	Compare     []decimal.Decimal `json:"compare_data"`
}

// Compare builds the comparison. Both series always have twelve entries.
func Compare(currentYear, compareYear int, current, compare MonthlyAmounts) YearlyComparison {
	return YearlyComparison{
		Months:      MonthLabels(),
		CurrentYear: currentYear,
		CompareYear: compareYear,
		Current:     append([]decimal.Decimal(nil), current[:]...),
		Compare:     append([]decimal.Decimal(nil), compare[:]...),
	}
}

// Growth returns the per-month change in percent from Compare to Current.
// Months with no revenue in the compared year report zero.
func (c YearlyComparison) Growth() []decimal.Decimal {
	out := make([]decimal.Decimal, len(c.Current))
	for i := range c.Current {
		if c.Compare[i].IsZero() {
			out[i] = decimal.Zero
			continue
		}
		out[i] = generic.Ratio(c.Current[i].Sub(c.Compare[i]), c.Compare[i])
	}
	return out
}

// =============================================================================
// ENGINE
// =============================================================================

// Source is the query side of the store.
type Source interface {
	MonthlyTotals(ctx context.Context, year int) (MonthlyAmounts, error)
	ClientTotals(ctx context.Context, p generic.Period) ([]DimensionTotal, error)
	ServiceTotals(ctx context.Context, p generic.Period) ([]DimensionTotal, error)
	ClientMonthlyTotals(ctx context.Context, year int) ([]ClientMonthTotal, error)
	PriceStatistics(ctx context.Context, p generic.Period) (PriceStats, error)
	WorkerTrouble(ctx context.Context, p generic.Period) ([]TroubleStat, error)
	ClientTrouble(ctx context.Context, p generic.Period) ([]TroubleStat, error)
	AllSalesTargets(ctx context.Context, year int) (facility.TargetSet, error)
}

// Engine assembles reports from a Source.
type Engine struct {
	src Source
	now func() time.Time
}

func NewEngine(src Source) *Engine {
	return &Engine{src: src, now: time.Now}
}

// YearlyComparison returns the monthly revenue of two years side by side.
func (e *Engine) YearlyComparison(ctx context.Context, currentYear, compareYear int) (YearlyComparison, error) {
	for _, y := range []int{currentYear, compareYear} {
		if err := generic.YearPeriod(y).Validate(); err != nil {
			return YearlyComparison{}, err
		}
	}
	current, err := e.src.MonthlyTotals(ctx, currentYear)
	if err != nil {
		return YearlyComparison{}, err
	}
	compare, err := e.src.MonthlyTotals(ctx, compareYear)
	if err != nil {
		return YearlyComparison{}, err
	}
	return Compare(currentYear, compareYear, current, compare), nil
}

// Summary is every breakdown of one period.
type Summary struct {
	Period        string           `json:"period"`
	Clients       []DimensionTotal `json:"clients"`
	Services      []DimensionTotal `json:"services"`
	Prices        PriceStats       `json:"prices"`
	WorkerTrouble []TroubleStat    `json:"worker_trouble"`
	ClientTrouble []TroubleStat    `json:"client_trouble"`
}

// Summary runs every breakdown for p.
func (e *Engine) Summary(ctx context.Context, p generic.Period) (Summary, error) {
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}
	var (
		s   = Summary{Period: p.String()}
		err error
	)
	if s.Clients, err = e.src.ClientTotals(ctx, p); err != nil {
		return Summary{}, err
	}
	if s.Services, err = e.src.ServiceTotals(ctx, p); err != nil {
		return Summary{}, err
	}
	if s.Prices, err = e.src.PriceStatistics(ctx, p); err != nil {
		return Summary{}, err
	}
	if s.WorkerTrouble, err = e.src.WorkerTrouble(ctx, p); err != nil {
		return Summary{}, err
	}
	if s.ClientTrouble, err = e.src.ClientTrouble(ctx, p); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// MonthProgress compares one month's revenue with its target.
type MonthProgress struct {
	Month       int             `json:"month"`
	Target      decimal.Decimal `json:"target"`
	Actual      decimal.Decimal `json:"actual"`
	Achievement decimal.Decimal `json:"achievement_rate"`
}

// Dashboard is the statistics landing view.
type Dashboard struct {
	Year              int              `json:"year"`
	Comparison        YearlyComparison `json:"comparison"`
	AnnualTarget      decimal.Decimal  `json:"annual_target"`
	AnnualActual      decimal.Decimal  `json:"annual_actual"`
	AnnualAchievement decimal.Decimal  `json:"annual_achievement_rate"`
	Months            []MonthProgress  `json:"months"`
}

// Dashboard returns the comparison of year against compareYear together
// with the year's targets. Achievement rates are zero where no target is
// set.
func (e *Engine) Dashboard(ctx context.Context, year, compareYear int) (Dashboard, error) {
	cmp, err := e.YearlyComparison(ctx, year, compareYear)
	if err != nil {
		return Dashboard{}, err
	}
	targets, err := e.src.AllSalesTargets(ctx, year)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(year, cmp, targets), nil
}

// BuildDashboard combines a comparison and a target set.
func BuildDashboard(year int, cmp YearlyComparison, targets facility.TargetSet) Dashboard {
	d := Dashboard{
		Year:         year,
		Comparison:   cmp,
		AnnualTarget: targets.Annual(),
		AnnualActual: decimal.Zero,
		Months:       make([]MonthProgress, 12),
	}
	for i := 0; i < 12; i++ {
		actual := decimal.Zero
		if i < len(cmp.Current) {
			actual = cmp.Current[i]
		}
		d.AnnualActual = d.AnnualActual.Add(actual)
		d.Months[i] = MonthProgress{
			Month:       i + 1,
			Target:      targets[i+1],
			Actual:      actual,
			Achievement: generic.Ratio(actual, targets[i+1]),
		}
	}
	d.AnnualAchievement = generic.Ratio(d.AnnualActual, d.AnnualTarget)
	return d
}

// CurrentYears returns this year and the previous one, the default pair
// of the comparison view.
func (e *Engine) CurrentYears() (int, int) {
	y := e.now().Year()
	return y, y - 1
}
