package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/reporting"
)

// seedRevenue creates:
//
//	東邦ビル管理 / 貯水槽清掃  30000  completed 2025-01-20
//	青葉不動産   / 排水管洗浄  50000  completed 2025-01-25
//	東邦ビル管理 / 貯水槽清掃  10000  completed 2025-02-03
//	東邦ビル管理 / 貯水槽清掃   5000  open, created 2025-01-05
//	青葉不動産   / 排水管洗浄  99999  completed 2024-12-31
func seedRevenue(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	f.create(t, f.project("一月", 30000, date(2025, 1, 20)))

	p := f.project("一月 青葉", 50000, date(2025, 1, 25))
	p.ClientID, p.ServiceID = f.clients[1], f.services[1]
	f.create(t, p)

	f.create(t, f.project("二月", 10000, date(2025, 2, 3)))

	open := f.project("作業中", 5000, generic.Date{})
	open.Status = facility.StatusInProgress
	id := f.create(t, open)
	_, err := f.store.Exec(ctx, `UPDATE projects SET created_at = '2025-01-05 10:00:00' WHERE id = ?`, id)
	require.NoError(t, err)

	p = f.project("前年", 99999, date(2024, 12, 31))
	p.ClientID, p.ServiceID = f.clients[1], f.services[1]
	f.create(t, p)
}

func totalsByName(totals []reporting.DimensionTotal) ([]string, []decimal.Decimal, []int64) {
	names := make([]string, len(totals))
	amounts := make([]decimal.Decimal, len(totals))
	counts := make([]int64, len(totals))
	for i, d := range totals {
		names[i], amounts[i], counts[i] = d.Name, d.Total, d.Count
	}
	return names, amounts, counts
}

func TestClientTotals_PeriodRule(t *testing.T) {
	f := newFixture(t)
	seedRevenue(t, f)
	ctx := context.Background()

	// the open project counts by its creation date
	year, err := f.store.ClientTotals(ctx, generic.YearPeriod(2025))
	require.NoError(t, err)
	names, amounts, counts := totalsByName(year)
	assert.Equal(t, []string{"青葉不動産", "東邦ビル管理"}, names)
	assert.True(t, amounts[0].Equal(yen(50000)))
	assert.True(t, amounts[1].Equal(yen(45000)))
	assert.Equal(t, []int64{1, 3}, counts)

	jan, err := f.store.ClientTotals(ctx, generic.MonthPeriod(2025, 1))
	require.NoError(t, err)
	names, amounts, _ = totalsByName(jan)
	assert.Equal(t, []string{"青葉不動産", "東邦ビル管理"}, names)
	assert.True(t, amounts[1].Equal(yen(35000)))

	empty, err := f.store.ClientTotals(ctx, generic.YearPeriod(2023))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestServiceTotals(t *testing.T) {
	f := newFixture(t)
	seedRevenue(t, f)

	feb, err := f.store.ServiceTotals(context.Background(), generic.MonthPeriod(2025, 2))
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, "貯水槽清掃", feb[0].Name)
	assert.True(t, feb[0].Total.Equal(yen(10000)))
}

func TestReports_RejectInvalidPeriod(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.ClientTotals(ctx, generic.MonthPeriod(2025, 13))
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, err = store.WorkerTrouble(ctx, generic.YearPeriod(0))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestClientMonthlyTotals(t *testing.T) {
	f := newFixture(t)
	seedRevenue(t, f)

	rows, err := f.store.ClientMonthlyTotals(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "東邦ビル管理", rows[0].ClientName)
	assert.Equal(t, 1, rows[0].Month)
	assert.True(t, rows[0].Total.Equal(yen(35000)))
	assert.EqualValues(t, 2, rows[0].Count)

	assert.Equal(t, "東邦ビル管理", rows[1].ClientName)
	assert.Equal(t, 2, rows[1].Month)

	assert.Equal(t, "青葉不動産", rows[2].ClientName)
	assert.Equal(t, 1, rows[2].Month)
}

func TestPriceStatistics(t *testing.T) {
	f := newFixture(t)
	seedRevenue(t, f)
	ctx := context.Background()

	stats, err := f.store.PriceStatistics(ctx, generic.YearPeriod(2025))
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Count)
	assert.True(t, stats.Total.Equal(yen(95000)))
	assert.True(t, stats.Min.Equal(yen(5000)))
	assert.True(t, stats.Max.Equal(yen(50000)))
	assert.True(t, stats.Average.Equal(yen(23750)))

	// GIVEN a period without projects, THEN every figure is zero
	none, err := f.store.PriceStatistics(ctx, generic.MonthPeriod(2025, 7))
	require.NoError(t, err)
	assert.Zero(t, none.Count)
	assert.True(t, none.Total.IsZero())
	assert.True(t, none.Average.IsZero())
	assert.True(t, none.Min.IsZero())
	assert.True(t, none.Max.IsZero())
}

func TestYearlyComparison_TwelveMonths(t *testing.T) {
	// GIVEN: revenue in January and February 2025 and December 2024
	f := newFixture(t)
	seedRevenue(t, f)
	engine := reporting.NewEngine(f.store)

	// WHEN: the two years are compared
	cmp, err := engine.YearlyComparison(context.Background(), 2025, 2024)
	require.NoError(t, err)

	// THEN: both series have twelve entries, empty months are zero
	require.Len(t, cmp.Current, 12)
	require.Len(t, cmp.Compare, 12)
	assert.Equal(t, reporting.MonthLabels(), cmp.Months)
	assert.True(t, cmp.Current[0].Equal(yen(85000)))
	assert.True(t, cmp.Current[1].Equal(yen(10000)))
	for m := 2; m < 12; m++ {
		assert.True(t, cmp.Current[m].IsZero(), "month %d", m+1)
	}
	assert.True(t, cmp.Compare[11].Equal(yen(99999)))
	for m := 0; m < 11; m++ {
		assert.True(t, cmp.Compare[m].IsZero(), "month %d", m+1)
	}
}

func TestWorkerTrouble_ZeroGuardAndOrder(t *testing.T) {
	// GIVEN: worker 0 on two January projects, blamed for one; worker 1 on
	// one; worker 2 on none
	f := newFixture(t)
	ctx := context.Background()
	bad := f.project("漏水", 30000, date(2025, 1, 10))
	bad.HasTrouble = true
	bad.TroubleWorkerID = troubleBy(f.workers[0])
	f.create(t, bad, f.workers[0], f.workers[1])
	f.create(t, f.project("通常", 30000, date(2025, 1, 11)), f.workers[0])

	// WHEN: the trouble rates of January are computed
	stats, err := f.store.WorkerTrouble(ctx, generic.MonthPeriod(2025, 1))
	require.NoError(t, err)

	// THEN: every worker is listed, highest rate first, ties by id
	require.Len(t, stats, 3)
	assert.Equal(t, f.workers[0], stats[0].ID)
	assert.EqualValues(t, 1, stats[0].TroubleCount)
	assert.EqualValues(t, 2, stats[0].ProjectCount)
	assert.True(t, stats[0].Rate.Equal(decimal.NewFromInt(50)))

	assert.Equal(t, f.workers[1], stats[1].ID)
	assert.True(t, stats[1].Rate.IsZero())

	assert.Equal(t, f.workers[2], stats[2].ID)
	assert.Zero(t, stats[2].ProjectCount)
	assert.True(t, stats[2].Rate.IsZero(), "no projects means rate 0, not a division error")

	// a period with no projects at all
	empty, err := f.store.WorkerTrouble(ctx, generic.YearPeriod(2019))
	require.NoError(t, err)
	require.Len(t, empty, 3)
	for _, s := range empty {
		assert.True(t, s.Rate.IsZero())
	}
}

func TestClientTrouble(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := f.project("漏水", 30000, date(2025, 1, 10))
	bad.HasTrouble = true
	bad.TroubleWorkerID = troubleBy(f.workers[0])
	f.create(t, bad)
	f.create(t, f.project("通常", 30000, date(2025, 1, 11)))
	f.create(t, f.project("通常", 30000, date(2025, 1, 12)))
	f.create(t, f.project("通常", 30000, date(2025, 1, 13)))

	stats, err := f.store.ClientTrouble(ctx, generic.YearPeriod(2025))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, f.clients[0], stats[0].ID)
	assert.True(t, stats[0].Rate.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, f.clients[1], stats[1].ID)
	assert.True(t, stats[1].Rate.IsZero())
}

func TestProjectCountsByStatus(t *testing.T) {
	f := newFixture(t)
	seedRevenue(t, f)

	counts, err := f.store.ProjectCountsByStatus(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, counts[facility.StatusCompleted])
	assert.EqualValues(t, 1, counts[facility.StatusInProgress])
	assert.Contains(t, counts, facility.StatusPending)
	assert.Contains(t, counts, facility.StatusCancelled)
	assert.Zero(t, counts[facility.StatusCancelled])
}

// =============================================================================
// SALES TARGETS
// =============================================================================

func TestSalesTargets(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	amount, err := store.SalesTarget(ctx, 2025, 3)
	require.NoError(t, err)
	assert.True(t, amount.IsZero(), "unset targets are zero")

	require.NoError(t, store.SetSalesTarget(ctx, facility.SalesTarget{Year: 2025, Month: 3, Amount: yen(1000000)}))
	require.NoError(t, store.SetSalesTarget(ctx, facility.SalesTarget{Year: 2025, Month: 3, Amount: yen(1200000)}))
	require.NoError(t, store.SetSalesTarget(ctx, facility.SalesTarget{Year: 2025, Month: facility.AnnualMonth, Amount: yen(15000000)}))

	amount, err = store.SalesTarget(ctx, 2025, 3)
	require.NoError(t, err)
	assert.True(t, amount.Equal(yen(1200000)), "the second write replaces the first")

	set, err := store.AllSalesTargets(ctx, 2025)
	require.NoError(t, err)
	assert.True(t, set.Annual().Equal(yen(15000000)))
	assert.True(t, set[3].Equal(yen(1200000)))
	assert.True(t, set[4].IsZero())
	assert.Len(t, set.Map(), 13)

	assert.ErrorIs(t, store.SetSalesTarget(ctx, facility.SalesTarget{Year: 2025, Month: 13, Amount: yen(1)}), generic.ErrValidation)
	assert.ErrorIs(t, store.SetSalesTarget(ctx, facility.SalesTarget{Year: 2025, Month: 1, Amount: yen(-1)}), generic.ErrValidation)
}

func TestDashboard_AchievementFromStore(t *testing.T) {
	f := newFixture(t)
	seedRevenue(t, f)
	ctx := context.Background()
	require.NoError(t, f.store.SetSalesTarget(ctx, facility.SalesTarget{Year: 2025, Month: 1, Amount: yen(100000)}))

	d, err := reporting.NewEngine(f.store).Dashboard(ctx, 2025, 2024)
	require.NoError(t, err)
	assert.True(t, d.Months[0].Achievement.Equal(decimal.NewFromInt(85)))
	assert.True(t, d.Months[1].Achievement.IsZero(), "no target means rate 0")
	assert.True(t, d.AnnualActual.Equal(yen(95000)))
	assert.True(t, d.AnnualAchievement.IsZero())
}
