package metrics

import "github.com/tcworks/tcmanage/facility"

// SetProjectCounts replaces the per-status project gauges.
func (m *Metrics) SetProjectCounts(counts map[facility.ProjectStatus]int64) {
	m.safeExecute("SetProjectCounts", func() {
		m.Projects.Reset()
		for status, n := range counts {
			m.Projects.WithLabelValues(string(status)).Set(float64(n))
		}
	})
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(ok bool) {
	m.safeExecute("RecordLogin", func() {
		result := "failure"
		if ok {
			result = "success"
		}
		m.LoginAttempts.WithLabelValues(result).Inc()
	})
}
