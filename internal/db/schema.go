package db

import "time"

// JobStatus is the lifecycle state of a sync_jobs row
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// ReconcilePurpose prefixes the per-date ledger rows a sync writes for each
// reconciled date. Every other row is an aggregate trigger run.
const ReconcilePurpose = "reconcile"

// aggregateRows restricts a sync_jobs query to aggregate trigger runs
const aggregateRows = "job_name NOT LIKE '" + ReconcilePurpose + ":%'"

// IsTerminal reports whether the job has been finalized
func (s JobStatus) IsTerminal() bool {
	return s == JobSuccess || s == JobFailed
}

// SyncJob is one row of the sync ledger, unique on (JobName, TargetDate)
type SyncJob struct {
	JobName          string     `json:"job_name"`
	TargetDate       string     `json:"target_date"`
	Trigger          string     `json:"trigger"`
	Status           JobStatus  `json:"status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	DurationSeconds  float64    `json:"duration_seconds"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CacheStats summarizes the local cache
type CacheStats struct {
	CachedDays        int        `json:"cached_days"`
	CachedReadings    int        `json:"cached_readings"`
	ApproximateSizeMB float64    `json:"approximate_size_mb"`
	LastSyncTime      *time.Time `json:"last_sync_time,omitempty"`
}

// PerformanceMetrics aggregates ledger rows touched within a window
type PerformanceMetrics struct {
	TotalJobs                   int        `json:"total_jobs"`
	SuccessRate                 float64    `json:"success_rate"`
	FailureCount                int        `json:"failure_count"`
	AverageDurationSeconds      float64    `json:"average_duration_seconds"`
	LastSuccessfulSyncTimestamp *time.Time `json:"last_successful_sync_timestamp,omitempty"`
}

// TrimResult reports what a window trim removed
type TrimResult struct {
	DaysRemoved     int64 `json:"days_removed"`
	ReadingsRemoved int64 `json:"readings_removed"`
}
