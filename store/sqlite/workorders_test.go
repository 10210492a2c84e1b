package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/store/sqlite"
)

func TestNextOrderNumber_PerMonthSequence(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	jan := time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 1, 8, 0, 0, 0, time.UTC)

	first, err := store.NextOrderNumberAt(ctx, jan)
	require.NoError(t, err)
	second, err := store.NextOrderNumberAt(ctx, jan)
	require.NoError(t, err)
	other, err := store.NextOrderNumberAt(ctx, feb)
	require.NoError(t, err)

	assert.Equal(t, "202501-0001", first)
	assert.Equal(t, "202501-0002", second)
	assert.Equal(t, "202502-0001", other)

	current, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "202501-0003", current, "the store clock is January 2025")
}

func TestNextOrderNumber_ContinuesAfterExistingNumbers(t *testing.T) {
	// GIVEN: a work order saved with an explicit number
	store := newStore(t)
	ctx := context.Background()
	o := facility.NewWorkOrder(fixedNow)
	o.OrderNumber = "202501-0005"
	_, err := store.SaveWorkOrder(ctx, o)
	require.NoError(t, err)

	// WHEN: the next number of that month is reserved
	next, err := store.NextOrderNumberAt(ctx, fixedNow)

	// THEN: numbering continues after it
	require.NoError(t, err)
	assert.Equal(t, "202501-0006", next)
}

func TestNextOrderNumber_ConcurrentCallsAreDistinct(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := store.NextOrderNumber(ctx)
			assert.NoError(t, err)
			mu.Lock()
			numbers[number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, n)
	assert.True(t, numbers["202501-0001"])
	assert.True(t, numbers["202501-0020"])
}

func TestNextOrderNumber_Exhausted(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.Exec(ctx, `INSERT INTO order_sequences (year_month, last_seq) VALUES ('202501', 9999)`)
	require.NoError(t, err)

	_, err = store.NextOrderNumberAt(ctx, fixedNow)
	assert.ErrorIs(t, err, generic.ErrValidation)

	// repeated failures leave the counter where it was
	_, err = store.NextOrderNumberAt(ctx, fixedNow)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, int64(9999), lastSeq(t, store, "202501"))
}

func TestNextOrderNumber_ExhaustedBySavedOrders(t *testing.T) {
	// GIVEN: a month whose last saved order is 9999 and no counter row yet
	f := newFixture(t)
	ctx := context.Background()
	o := facility.NewWorkOrder(fixedNow)
	o.OrderNumber = "202501-9999"
	_, err := f.store.SaveWorkOrder(ctx, o)
	require.NoError(t, err)
	_, err = f.store.Exec(ctx, `DELETE FROM order_sequences`)
	require.NoError(t, err)

	// WHEN: numbers are requested twice
	for i := 0; i < 2; i++ {
		_, err = f.store.NextOrderNumberAt(ctx, fixedNow)
		assert.ErrorIs(t, err, generic.ErrValidation)
	}

	// THEN: the counter stops one past the limit
	assert.Equal(t, int64(facility.MaxOrderSeq+1), lastSeq(t, f.store, "202501"))

	// and other months are unaffected
	next, err := f.store.NextOrderNumberAt(ctx, fixedNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "202502-0001", next)
}

func lastSeq(t *testing.T, store *sqlite.Store, yearMonth string) int64 {
	t.Helper()
	rows, err := store.Query(context.Background(),
		`SELECT last_seq FROM order_sequences WHERE year_month = ?`, yearMonth)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0].Int64("last_seq")
}

func TestSaveWorkOrder_AssignsNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := facility.NewWorkOrder(fixedNow)
	o.SiteName = "東邦ビル"
	o.ManagerID = &f.workers[0]
	o.Workers = [4]string{"佐藤", "鈴木", "", ""}
	saved, err := f.store.SaveWorkOrder(ctx, o)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, "202501-0001", saved.OrderNumber)

	got, err := f.store.GetWorkOrder(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "東邦ビル", got.SiteName)
	assert.Equal(t, "佐藤", got.ManagerName)
	assert.Equal(t, [4]string{"佐藤", "鈴木", "", ""}, got.Workers)
	assert.True(t, got.HasWaterQuality)
	assert.Equal(t, "2025-01-15", got.CreationDate.String())
}

func TestSaveWorkOrder_UpdateKeepsNumber(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saved, err := store.SaveWorkOrder(ctx, facility.NewWorkOrder(fixedNow))
	require.NoError(t, err)

	saved.OrderNumber = ""
	saved.Memo = "鍵は管理室"
	_, err = store.SaveWorkOrder(ctx, saved)
	require.NoError(t, err)

	got, err := store.GetWorkOrder(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "202501-0001", got.OrderNumber)
	assert.Equal(t, "鍵は管理室", got.Memo)
}

func TestSaveWorkOrder_DuplicateNumber(t *testing.T) {
	// GIVEN: a saved order
	store := newStore(t)
	ctx := context.Background()
	first, err := store.SaveWorkOrder(ctx, facility.NewWorkOrder(fixedNow))
	require.NoError(t, err)

	// WHEN: another order claims its number
	o := facility.NewWorkOrder(fixedNow)
	o.OrderNumber = first.OrderNumber
	_, err = store.SaveWorkOrder(ctx, o)

	// THEN: the unique index refuses it
	assert.ErrorIs(t, err, generic.ErrDuplicate)
}

func TestSaveWorkOrder_MalformedNumber(t *testing.T) {
	store := newStore(t)
	o := facility.NewWorkOrder(fixedNow)
	o.OrderNumber = "2025-1"
	_, err := store.SaveWorkOrder(context.Background(), o)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestListWorkOrders_Filter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.create(t, f.project("受水槽清掃", 50000, date(2025, 1, 10)))

	a := facility.NewWorkOrder(fixedNow)
	a.ProjectID = &pid
	a.SiteName = "東邦ビル"
	a, err := f.store.SaveWorkOrder(ctx, a)
	require.NoError(t, err)

	b := facility.NewWorkOrder(fixedNow)
	b.SiteName = "青葉マンション"
	b, err = f.store.SaveWorkOrder(ctx, b)
	require.NoError(t, err)

	all, err := f.store.ListWorkOrders(ctx, sqlite.WorkOrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byProject, err := f.store.ListWorkOrders(ctx, sqlite.WorkOrderFilter{ProjectID: pid})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, a.ID, byProject[0].ID)
	assert.Equal(t, "受水槽清掃", byProject[0].ProjectTitle)
	assert.Equal(t, "東邦ビル管理", byProject[0].ClientName)

	byTitle, err := f.store.ListWorkOrders(ctx, sqlite.WorkOrderFilter{Search: "受水槽"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, a.ID, byTitle[0].ID)

	byNumber, err := f.store.ListWorkOrders(ctx, sqlite.WorkOrderFilter{Search: b.OrderNumber})
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	assert.Equal(t, b.ID, byNumber[0].ID)

	require.NoError(t, f.store.DeleteWorkOrder(ctx, b.ID))
	assert.ErrorIs(t, f.store.DeleteWorkOrder(ctx, b.ID), generic.ErrNotFound)
}
