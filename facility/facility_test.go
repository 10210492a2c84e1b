/*
facility_test.go - Tests for the domain types

Tests for:
- Work order number format and parsing
- Project validation rules
- Photo import: extension filter, fresh file names, registry failures
- Target sets
*/
package facility_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// =============================================================================
// ORDER NUMBERS
// =============================================================================

func TestOrderNumber_FormatParseProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("formatted numbers are YYYYMM-NNNN and parse back", prop.ForAll(
		func(year, month, seq int) bool {
			at := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			s := facility.FormatOrderNumber(facility.OrderPrefix(at), seq)
			if len(s) != 11 || s[6] != '-' {
				return false
			}
			n, err := facility.ParseOrderNumber(s)
			return err == nil && n.Seq == seq && n.YearMonth == at.Format("200601") && n.String() == s
		},
		gen.IntRange(2000, 2099),
		gen.IntRange(1, 12),
		gen.IntRange(1, facility.MaxOrderSeq),
	))

	properties.Property("numbers of one month sort in issue order", prop.ForAll(
		func(a, b int) bool {
			if a == b {
				return true
			}
			sa := facility.FormatOrderNumber("202501", a)
			sb := facility.FormatOrderNumber("202501", b)
			return (a < b) == (sa < sb)
		},
		gen.IntRange(1, facility.MaxOrderSeq),
		gen.IntRange(1, facility.MaxOrderSeq),
	))

	properties.TestingRun(t)
}

func TestParseOrderNumber_Rejects(t *testing.T) {
	for _, s := range []string{
		"",
		"202501-001",
		"202501_0001",
		"202513-0001",
		"2025010001",
		"202501-00a1",
		"202501-0000",
		"202501-+001",
		"２０２５01-0001",
	} {
		_, err := facility.ParseOrderNumber(s)
		assert.ErrorIs(t, err, generic.ErrValidation, "%q", s)
	}
}

func TestOrderPrefix(t *testing.T) {
	assert.Equal(t, "202501", facility.OrderPrefix(time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "202501-0042", facility.FormatOrderNumber("202501", 42))
}

// =============================================================================
// PROJECTS
// =============================================================================

func validProject() facility.Project {
	return facility.Project{
		ClientID:  1,
		ServiceID: 1,
		Title:     "受水槽清掃",
		Price:     decimal.NewFromInt(50000),
	}
}

func TestProject_Validate(t *testing.T) {
	worker := int64(3)

	tests := []struct {
		name     string
		edit     func(p *facility.Project)
		creating bool
		field    string
	}{
		{"valid", func(p *facility.Project) {}, true, ""},
		{"blank title", func(p *facility.Project) { p.Title = "  " }, true, "title"},
		{"no client", func(p *facility.Project) { p.ClientID = 0 }, true, "client_id"},
		{"no service", func(p *facility.Project) { p.ServiceID = 0 }, true, "service_id"},
		{"zero price on create", func(p *facility.Project) { p.Price = decimal.Zero }, true, "price"},
		{"zero price on update", func(p *facility.Project) { p.Price = decimal.Zero }, false, ""},
		{"negative price on update", func(p *facility.Project) { p.Price = decimal.NewFromInt(-1) }, false, "price"},
		{"bad status", func(p *facility.Project) { p.Status = "done" }, true, "status"},
		{"trouble needs worker", func(p *facility.Project) { p.HasTrouble = true }, true, "trouble_worker_id"},
		{"trouble with worker", func(p *facility.Project) {
			p.HasTrouble = true
			p.TroubleWorkerID = &worker
		}, true, ""},
		{"worker needs trouble", func(p *facility.Project) { p.TroubleWorkerID = &worker }, true, "trouble_worker_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProject()
			tt.edit(&p)
			err := p.Validate(tt.creating)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *generic.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestProject_DefaultStatusAndProfit(t *testing.T) {
	p := validProject()
	p.LaborCost = decimal.NewFromInt(12000)
	require.NoError(t, p.Validate(true))
	assert.Equal(t, facility.DefaultStatus, p.Status)
	assert.True(t, p.Profit().Equal(decimal.NewFromInt(38000)))

	rec := p.Record()
	assert.NotContains(t, rec, "photo_count", "counters are maintained by the photo operations")
	assert.NotContains(t, rec, "has_photos")
	assert.Nil(t, rec["trouble_worker_id"])
}

func TestProjectQuery_InvalidFilters(t *testing.T) {
	_, err := facility.ProjectQuery{Status: "done"}.Condition()
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = facility.ProjectQuery{CompletionMonth: 13}.Condition()
	assert.ErrorIs(t, err, generic.ErrValidation)

	where, err := facility.ProjectQuery{}.Condition()
	require.NoError(t, err)
	assert.True(t, where.IsZero())

	assert.Equal(t, "p.created_at DESC", facility.ProjectQuery{Sort: "1; --"}.OrderBy().String())
}

// =============================================================================
// PHOTO IMPORT
// =============================================================================

// fakeRegistry records registrations and can be told to fail.
type fakeRegistry struct {
	photos []facility.ProjectPhoto
	err    error
}

func (r *fakeRegistry) AddProjectPhoto(_ context.Context, p facility.ProjectPhoto) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.photos = append(r.photos, p)
	return int64(len(r.photos)), nil
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIsImage(t *testing.T) {
	assert.True(t, facility.IsImage("IMG_0001.JPG"))
	assert.True(t, facility.IsImage("a.jpeg"))
	assert.True(t, facility.IsImage("scan.bmp"))
	assert.False(t, facility.IsImage("report.pdf"))
	assert.False(t, facility.IsImage("jpg"))
}

func TestPhotoImporter_Import(t *testing.T) {
	// GIVEN: two images and a document on disk
	src := t.TempDir()
	a := writeSource(t, src, "before.JPG", "jpeg-bytes")
	b := writeSource(t, src, "after.png", "png-bytes")
	doc := writeSource(t, src, "notes.txt", "text")
	reg := &fakeRegistry{}
	im := &facility.PhotoImporter{Dir: t.TempDir(), Registry: reg}

	// WHEN: they are imported into project 7
	results, err := im.Import(context.Background(), 7, []string{a, doc, b, filepath.Join(src, "missing.jpg")})
	require.NoError(t, err)

	// THEN: images are copied under fresh names and registered; the rest is reported
	require.Len(t, results, 4)
	assert.NotNil(t, results[0].Photo)
	assert.Equal(t, "not an image file", results[1].Err)
	assert.NotNil(t, results[2].Photo)
	assert.Nil(t, results[3].Photo)
	assert.NotEmpty(t, results[3].Err)

	require.Len(t, reg.photos, 2)
	first := reg.photos[0]
	assert.EqualValues(t, 7, first.ProjectID)
	assert.Equal(t, "before.JPG", first.Description)
	assert.Equal(t, im.ProjectDir(7), filepath.Dir(first.PhotoPath))
	assert.True(t, strings.HasSuffix(first.PhotoPath, ".jpg"))
	assert.NotEqual(t, "before.jpg", filepath.Base(first.PhotoPath))

	data, err := os.ReadFile(first.PhotoPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.NotEqual(t, reg.photos[0].PhotoPath, reg.photos[1].PhotoPath)
}

func TestPhotoImporter_BatchLimit(t *testing.T) {
	im := &facility.PhotoImporter{Dir: t.TempDir(), MaxBatch: 2, Registry: &fakeRegistry{}}
	_, err := im.Import(context.Background(), 1, []string{"a.jpg", "b.jpg", "c.jpg"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = im.Import(context.Background(), 0, nil)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestPhotoImporter_RegistryFailureRemovesCopy(t *testing.T) {
	src := t.TempDir()
	a := writeSource(t, src, "a.jpg", "x")
	boom := errors.New("store unavailable")
	im := &facility.PhotoImporter{Dir: t.TempDir(), Registry: &fakeRegistry{err: boom}}

	_, err := im.Import(context.Background(), 3, []string{a})
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(im.ProjectDir(3))
	require.NoError(t, err)
	assert.Empty(t, entries, "the orphaned copy is removed")
}

func TestPhotoImporter_SaveAndRemove(t *testing.T) {
	reg := &fakeRegistry{}
	im := &facility.PhotoImporter{Dir: t.TempDir(), Registry: reg}
	ctx := context.Background()

	_, err := im.Save(ctx, 5, "../../etc/passwd", bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, generic.ErrValidation)

	photo, err := im.Save(ctx, 5, "../../site.PNG", bytes.NewBufferString("png"))
	require.NoError(t, err)
	assert.Equal(t, "site.PNG", photo.Description)
	assert.Equal(t, im.ProjectDir(5), filepath.Dir(photo.PhotoPath))
	assert.EqualValues(t, 1, photo.ID)

	require.NoError(t, im.Remove(photo.PhotoPath))
	_, err = os.Stat(photo.PhotoPath)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, im.Remove(photo.PhotoPath), "removing twice is fine")
}

// =============================================================================
// TARGETS AND WORK ORDERS
// =============================================================================

func TestTargetSet(t *testing.T) {
	set := facility.NewTargetSet()
	assert.True(t, set.Annual().IsZero())
	set[facility.AnnualMonth] = decimal.NewFromInt(1200)
	set[12] = decimal.NewFromInt(100)

	m := set.Map()
	assert.Len(t, m, 13)
	assert.True(t, m[0].Equal(decimal.NewFromInt(1200)))
	assert.True(t, m[12].Equal(decimal.NewFromInt(100)))
	assert.True(t, m[5].IsZero())

	assert.ErrorIs(t, facility.SalesTarget{Year: 2025, Month: 13}.Validate(), generic.ErrValidation)
	assert.NoError(t, facility.SalesTarget{Year: 2025, Month: 0, Amount: decimal.Zero}.Validate())
}

func TestWorkOrder_Validate(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	o := facility.NewWorkOrder(now)
	assert.NoError(t, o.Validate())
	assert.Equal(t, "2025-01-15", o.CreationDate.String())
	assert.True(t, o.HasWaterQuality)

	o.StartDate = generic.NewDate(2025, 1, 20)
	o.EndDate = generic.NewDate(2025, 1, 19)
	assert.ErrorIs(t, o.Validate(), generic.ErrValidation)

	o = facility.NewWorkOrder(now)
	o.ReportsCount = -1
	assert.ErrorIs(t, o.Validate(), generic.ErrValidation)

	o = facility.NewWorkOrder(now)
	var unset int64
	o.ProjectID = &unset
	assert.Nil(t, o.Record()["project_id"], "a zero id is stored as NULL")
}
