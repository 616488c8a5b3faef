package db

import (
	"context"
	"database/sql"
	"time"
)

// GetCacheStats reports the size of the local cache and the newest successful sync
func (db *DB) GetCacheStats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats

	query := `
		SELECT
			(SELECT COUNT(*) FROM liturgical_days),
			(SELECT COUNT(*) FROM readings)
	`
	if err := db.QueryRowContext(ctx, query).Scan(&stats.CachedDays, &stats.CachedReadings); err != nil {
		return CacheStats{}, wrap("cache stats", err)
	}

	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return CacheStats{}, wrap("cache stats", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return CacheStats{}, wrap("cache stats", err)
	}
	stats.ApproximateSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	last, err := db.LastSuccessfulSync(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	stats.LastSyncTime = last

	return stats, nil
}

// PerformanceMetrics aggregates the trigger runs whose outcome falls at or
// after since. One run counts once however many dates it reconciled.
func (db *DB) PerformanceMetrics(ctx context.Context, since time.Time) (PerformanceMetrics, error) {
	var (
		metrics     PerformanceMetrics
		successes   int
		avgDuration sql.NullFloat64
	)

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN status IN ('success', 'failed') THEN duration_seconds END)
		FROM sync_jobs
		WHERE COALESCE(completed_at, updated_at) >= ? AND ` + aggregateRows + `
	`

	err := db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&metrics.TotalJobs,
		&successes,
		&metrics.FailureCount,
		&avgDuration,
	)
	if err != nil {
		return PerformanceMetrics{}, wrap("performance metrics", err)
	}

	if metrics.TotalJobs > 0 {
		metrics.SuccessRate = float64(successes) / float64(metrics.TotalJobs)
	}
	if avgDuration.Valid {
		metrics.AverageDurationSeconds = avgDuration.Float64
	}

	last, err := db.LastSuccessfulSync(ctx)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	metrics.LastSuccessfulSyncTimestamp = last

	return metrics, nil
}
