package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/store/sqlite"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var fixedNow = time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T, opts ...func(*sqlite.Options)) *sqlite.Store {
	t.Helper()
	o := sqlite.Options{
		Now:        func() time.Time { return fixedNow },
		BcryptCost: bcrypt.MinCost,
	}
	for _, fn := range opts {
		fn(&o)
	}
	store, err := sqlite.Open(":memory:", o)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func yen(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func date(y int, m time.Month, d int) generic.Date { return generic.NewDate(y, m, d) }

// fixture is a small world: two clients, two services, three workers.
type fixture struct {
	store    *sqlite.Store
	clients  [2]int64
	services [2]int64
	workers  [3]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: newStore(t)}

	for i, name := range []string{"東邦ビル管理", "青葉不動産"} {
		id, err := f.store.CreateClient(ctx, facility.Client{Name: name})
		require.NoError(t, err)
		f.clients[i] = id
	}
	for i, name := range []string{"貯水槽清掃", "排水管洗浄"} {
		id, err := f.store.CreateService(ctx, facility.Service{Name: name})
		require.NoError(t, err)
		f.services[i] = id
	}
	for i, name := range []string{"佐藤", "鈴木", "高橋"} {
		id, err := f.store.CreateWorker(ctx, facility.Worker{Name: name})
		require.NoError(t, err)
		f.workers[i] = id
	}
	return f
}

// project returns a valid, completed project of the first client and
// service.
func (f *fixture) project(title string, price int64, completed generic.Date) facility.Project {
	return facility.Project{
		ClientID:       f.clients[0],
		ServiceID:      f.services[0],
		Title:          title,
		Price:          yen(price),
		Status:         facility.StatusCompleted,
		CompletionDate: completed,
	}
}

func (f *fixture) create(t *testing.T, p facility.Project, workerIDs ...int64) int64 {
	t.Helper()
	id, err := f.store.CreateProject(context.Background(), p, workerIDs)
	require.NoError(t, err)
	return id
}

func troubleBy(workerID int64) *int64 { return &workerID }
