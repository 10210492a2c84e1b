/*
scheduler.go - Periodic gauge refresh

PURPOSE:
  Keeps the slow-moving Prometheus gauges current: project counts per
  status and the database pool statistics. Request-driven metrics are
  recorded inline; these are polled.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Refreshes once immediately on Start
  - A failed refresh is logged and retried on the next tick

USAGE:
  scheduler := NewStatsScheduler(store, metrics, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/metrics"
	"github.com/tcworks/tcmanage/store/sqlite"
)

// DefaultStatsInterval is used when Interval is not positive.
const DefaultStatsInterval = time.Minute

// StatsScheduler polls the store for gauge values.
type StatsScheduler struct {
	Store    *sqlite.Store
	Metrics  *metrics.Metrics
	Interval time.Duration

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStatsScheduler creates a scheduler; it does nothing until Start.
func NewStatsScheduler(store *sqlite.Store, m *metrics.Metrics, logger *zap.Logger) *StatsScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsScheduler{
		Store:    store,
		Metrics:  m,
		Interval: DefaultStatsInterval,
		logger:   logger,
	}
}

// Start begins polling. Calling Start twice is a no-op.
func (s *StatsScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Metrics == nil {
		s.logger.Info("stats scheduler disabled, no metrics configured")
		return
	}
	if s.ticker != nil {
		return
	}
	if s.Interval <= 0 {
		s.Interval = DefaultStatsInterval
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.logger.Info("stats scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops polling and waits for an in-flight refresh.
func (s *StatsScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("stats scheduler stopped")
}

func (s *StatsScheduler) run() {
	defer s.wg.Done()

	s.RunNow()

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow refreshes the gauges once.
func (s *StatsScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()

	s.Metrics.UpdateDBStats(s.Store.Stats())

	counts, err := s.Store.ProjectCountsByStatus(ctx)
	if err != nil {
		s.logger.Warn("project counts not refreshed", zap.Error(err))
		return
	}
	s.Metrics.SetProjectCounts(counts)
	s.logger.Debug("gauges refreshed", zap.Int("statuses", len(counts)))
}

func (s *StatsScheduler) timeout() time.Duration {
	if s.Interval > 0 && s.Interval < 30*time.Second {
		return s.Interval
	}
	return 30 * time.Second
}
