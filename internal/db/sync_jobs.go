package db

import (
	"context"
	"database/sql"
	"time"
)

// =============================================================================
// Sync Ledger Operations
// =============================================================================

// RecordSyncJob upserts a ledger row keyed by (JobName, TargetDate).
// A re-run overwrites the prior outcome; CreatedAt keeps the first insert time.
func (db *DB) RecordSyncJob(ctx context.Context, job *SyncJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = JobPending
	}

	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC()
	}

	query := `
		INSERT INTO sync_jobs (
			job_name, target_date, trigger_source, status, completed_at, error_message,
			records_processed, duration_seconds, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_name, target_date) DO UPDATE SET
			trigger_source = excluded.trigger_source,
			status = excluded.status,
			completed_at = excluded.completed_at,
			error_message = excluded.error_message,
			records_processed = excluded.records_processed,
			duration_seconds = excluded.duration_seconds,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		job.JobName,
		job.TargetDate,
		job.Trigger,
		string(job.Status),
		completedAt,
		job.ErrorMessage,
		job.RecordsProcessed,
		job.DurationSeconds,
		job.CreatedAt.UTC(),
		job.UpdatedAt,
	)
	return wrap("record sync job", err)
}

// GetSyncJob retrieves a single ledger row
func (db *DB) GetSyncJob(ctx context.Context, jobName, targetDate string) (*SyncJob, error) {
	query := `
		SELECT job_name, target_date, trigger_source, status, completed_at, error_message,
			records_processed, duration_seconds, created_at, updated_at
		FROM sync_jobs
		WHERE job_name = ? AND target_date = ?
	`

	job, err := scanSyncJob(db.QueryRowContext(ctx, query, jobName, targetDate))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get sync job", err)
	}
	return job, nil
}

// RecentSyncJobs returns up to limit ledger rows, newest first
func (db *DB) RecentSyncJobs(ctx context.Context, limit int) ([]SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT job_name, target_date, trigger_source, status, completed_at, error_message,
			records_processed, duration_seconds, created_at, updated_at
		FROM sync_jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, wrap("recent sync jobs", err)
	}
	defer rows.Close()

	jobs := []SyncJob{}
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, wrap("recent sync jobs", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("recent sync jobs", err)
	}

	return jobs, nil
}

// RecentSuccessfulSync reports whether an aggregate trigger run succeeded
// within the given duration before now. Per-date reconcile rows are ignored:
// a read-ahead date succeeding says nothing about today.
func (db *DB) RecentSuccessfulSync(ctx context.Context, now time.Time, within time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sync_jobs
			WHERE status = ? AND completed_at IS NOT NULL AND completed_at >= ?
				AND ` + aggregateRows + `
		)
	`

	var exists bool
	err := db.QueryRowContext(ctx, query, string(JobSuccess), now.Add(-within).UTC()).Scan(&exists)
	if err != nil {
		return false, wrap("recent successful sync", err)
	}
	return exists, nil
}

// LastSuccessfulSync returns the completion time of the newest successful
// aggregate trigger run
func (db *DB) LastSuccessfulSync(ctx context.Context) (*time.Time, error) {
	query := `
		SELECT completed_at FROM sync_jobs
		WHERE status = ? AND completed_at IS NOT NULL AND ` + aggregateRows + `
		ORDER BY completed_at DESC
		LIMIT 1
	`

	var completedAt sql.NullTime
	err := db.QueryRowContext(ctx, query, string(JobSuccess)).Scan(&completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("last successful sync", err)
	}
	if !completedAt.Valid {
		return nil, nil
	}
	t := completedAt.Time
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncJob(row rowScanner) (*SyncJob, error) {
	var (
		job         SyncJob
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)

	err := row.Scan(
		&job.JobName,
		&job.TargetDate,
		&job.Trigger,
		&status,
		&completedAt,
		&errMsg,
		&job.RecordsProcessed,
		&job.DurationSeconds,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = JobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if errMsg.Valid {
		msg := errMsg.String
		job.ErrorMessage = &msg
	}
	return &job, nil
}
