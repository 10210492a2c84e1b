package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

func getTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
}

func TestObserveQuery_CountsErrorsPerTable(t *testing.T) {
	m := getTestMetrics()

	// GIVEN two selects on projects, one of them failing
	m.ObserveQuery("select", generic.TableProjects, time.Millisecond, nil)
	m.ObserveQuery("SELECT", generic.TableProjects, time.Millisecond, errors.New("boom"))

	// THEN both are timed under the lower-cased operation, one is an error
	assert.Equal(t, 1, testutil.CollectAndCount(m.DBQueryDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("select", "projects")))
}

func TestObserveQuery_RawQueriesAreLabelled(t *testing.T) {
	m := getTestMetrics()

	m.ObserveQuery("query", "", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("query", "raw")))
}

func TestSetProjectCounts_ReplacesGauges(t *testing.T) {
	m := getTestMetrics()

	m.SetProjectCounts(map[facility.ProjectStatus]int64{
		facility.StatusInProgress: 3,
		facility.StatusCompleted:  5,
	})
	m.SetProjectCounts(map[facility.ProjectStatus]int64{
		facility.StatusCompleted: 6,
	})

	assert.Equal(t, 1, testutil.CollectAndCount(m.Projects))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Projects.WithLabelValues(string(facility.StatusCompleted))))
}

func TestRecordLogin(t *testing.T) {
	m := getTestMetrics()

	m.RecordLogin(true)
	m.RecordLogin(false)
	m.RecordLogin(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failure")))
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeStatus(tt.code), "code %d", tt.code)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := getTestMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/api/projects/1", "/api/projects/2", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/projects/{id}", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
}
