package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/livinlefevreloca/lectio/internal/connectivity"
	"github.com/livinlefevreloca/lectio/internal/db"
)

// DefaultPerformanceWindow is the window PerformanceMetrics uses when given zero
const DefaultPerformanceWindow = 7 * 24 * time.Hour

// Status returns a snapshot of the scheduler for observers
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		State:                   s.state,
		Initialized:             s.state == StateActive || s.state == StateStopped,
		Active:                  s.state == StateActive,
		Platform:                s.slot.Platform(),
		HasFallbackTimer:        s.state == StateActive,
		BackgroundSlotAvailable: s.state == StateActive && s.slotAvailable,
		SyncStatus:              s.syncStatus,
		Connectivity:            string(connectivity.StatusUnknown),
	}
	if s.state == StateActive {
		st.NextPrimary = timePtr(s.nextPrimary)
		st.NextBackup = timePtr(s.nextBackup)
		st.NextFallback = timePtr(s.nextFallback)
		if s.retry != nil {
			st.PendingRetry = timePtr(s.retry.at)
		}
	}
	s.mu.Unlock()

	if s.conn != nil {
		st.Connectivity = string(s.conn.Current())
	}
	st.InFlight = s.reconciler.InFlight()
	return st
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// InCacheWindow reports whether date lies inside the window the cache keeps
// around today. Days outside it are never served, even before a trim has
// removed them.
func (s *Scheduler) InCacheWindow(date time.Time) bool {
	return s.inWindow(s.clock.Now(), date)
}

// RecentSyncJobs returns up to limit ledger rows, newest first
func (s *Scheduler) RecentSyncJobs(ctx context.Context, limit int) ([]db.SyncJob, error) {
	jobs, err := s.store.RecentSyncJobs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent sync jobs: %w", err)
	}
	return jobs, nil
}

// PerformanceMetrics aggregates ledger outcomes over the trailing window
func (s *Scheduler) PerformanceMetrics(ctx context.Context, window time.Duration) (db.PerformanceMetrics, error) {
	if window <= 0 {
		window = DefaultPerformanceWindow
	}
	metrics, err := s.store.PerformanceMetrics(ctx, s.clock.Now().Add(-window))
	if err != nil {
		return db.PerformanceMetrics{}, fmt.Errorf("failed to compute performance metrics: %w", err)
	}
	return metrics, nil
}

// CacheStats reports the size of the local cache
func (s *Scheduler) CacheStats(ctx context.Context) (db.CacheStats, error) {
	stats, err := s.store.GetCacheStats(ctx)
	if err != nil {
		return db.CacheStats{}, fmt.Errorf("failed to compute cache stats: %w", err)
	}
	return stats, nil
}
