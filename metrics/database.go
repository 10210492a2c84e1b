package metrics

import (
	"database/sql"
	"strings"
	"time"

	"github.com/tcworks/tcmanage/generic"
)

var _ generic.QueryObserver = (*Metrics)(nil)

// UpdateDBStats updates database connection pool metrics
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.safeExecute("UpdateDBStats", func() {
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
	})
}

// ObserveQuery records one statement run by the store. Raw queries carry no
// table and are labelled "raw".
func (m *Metrics) ObserveQuery(op string, table generic.Table, elapsed time.Duration, err error) {
	name := string(table)
	if name == "" {
		name = "raw"
	}
	m.RecordDBQuery(op, name, elapsed, err)
}

// RecordDBQuery records database query metrics
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.safeExecute("RecordDBQuery", func() {
		operation = strings.ToLower(operation)
		m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())

		if err != nil {
			m.DBQueryErrors.WithLabelValues(operation, table).Inc()
		}
	})
}
