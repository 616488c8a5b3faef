package db

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/livinlefevreloca/lectio/internal/db/migrations"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/tools/migrator"
)

// Test Fixtures and Helpers

// NewTestDB creates an in-memory SQLite database with the embedded schema applied
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := migrator.RunMigrations(context.Background(), db.DB, migrations.FS, nil); err != nil {
		db.Close()
		t.Fatalf("failed to initialize test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// MakeTestDay creates a day with default test values
func MakeTestDay(date string) *liturgy.Day {
	return &liturgy.Day{
		ID:     "day-" + date,
		Date:   date,
		Season: "Ordinary Time",
		Title:  "Feria",
		Color:  "green",
	}
}

// MakeTestReadings creates n readings for a date
func MakeTestReadings(date string, n int) []liturgy.Reading {
	kinds := []string{"first_reading", "psalm", "second_reading", "gospel"}
	readings := make([]liturgy.Reading, n)
	for i := range readings {
		readings[i] = liturgy.Reading{
			ID:       date + "-" + kinds[i%len(kinds)],
			DayDate:  date,
			Order:    i + 1,
			Kind:     kinds[i%len(kinds)],
			Citation: "Ps 23",
			Body:     "The Lord is my shepherd",
		}
	}
	return readings
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := liturgy.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %s: %v", s, err)
	}
	return d
}

func countRows(t *testing.T, db *DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestOpen_EnablesForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("failed to query pragma: %v", err)
	}
	if enabled != 1 {
		t.Errorf("expected foreign keys enabled, got %d", enabled)
	}
	if db.Driver() != "sqlite3" {
		t.Errorf("expected driver sqlite3, got %s", db.Driver())
	}
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTransaction(ctx, func(tx *Tx) error {
		if err := tx.UpsertDay(ctx, MakeTestDay("2025-01-01")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := db.GetDay(ctx, "2025-01-01"); !IsNotFound(err) {
		t.Errorf("expected day to be rolled back, got %v", err)
	}
}

// =============================================================================
// Cache Tests
// =============================================================================

func TestGetDay_NotFound(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.GetDay(context.Background(), "2025-01-01")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if IsPersistence(err) {
		t.Error("not found must not be reported as a persistence failure")
	}
}

func TestUpsertDay_Idempotent(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	first := MakeTestDay("2025-01-01")
	first.CacheTimestamp = time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)
	if err := db.UpsertDay(ctx, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := MakeTestDay("2025-01-01")
	second.CacheTimestamp = time.Date(2025, 1, 2, 2, 0, 0, 0, time.UTC)
	if err := db.UpsertDay(ctx, second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM liturgical_days"); n != 1 {
		t.Errorf("expected 1 day row, got %d", n)
	}

	got, err := db.GetDay(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.CacheTimestamp.Equal(first.CacheTimestamp) {
		t.Errorf("expected identical content to leave cache timestamp %v, got %v", first.CacheTimestamp, got.CacheTimestamp)
	}
}

func TestUpsertDay_ChangedContentRefreshes(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	day := MakeTestDay("2025-01-01")
	if err := db.UpsertDay(ctx, day); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	changed := MakeTestDay("2025-01-01")
	changed.Title = "Solemnity of Mary, Mother of God"
	changed.Color = "white"
	if err := db.UpsertDay(ctx, changed); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := db.GetDay(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != changed.Title || got.Color != "white" {
		t.Errorf("expected refreshed day, got %+v", got)
	}
}

func TestUpsertReadings_OrderedAndIdempotent(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	readings := MakeTestReadings("2025-01-01", 4)
	// Insert out of order to prove reads are ordered
	shuffled := []liturgy.Reading{readings[2], readings[0], readings[3], readings[1]}
	for i := 0; i < 2; i++ {
		if err := db.UpsertReadings(ctx, shuffled); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	got, err := db.GetReadings(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(got))
	}
	for i, r := range got {
		if r.Order != i+1 {
			t.Errorf("expected order %d at index %d, got %d", i+1, i, r.Order)
		}
	}
}

func TestGetReadings_EmptySlice(t *testing.T) {
	db := NewTestDB(t)

	got, err := db.GetReadings(context.Background(), "2030-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestApplySnapshot_RemovesStaleReadings(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	readings := MakeTestReadings("2025-01-01", 4)
	if err := db.ApplySnapshot(ctx, MakeTestDay("2025-01-01"), readings, nil); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if err := db.ApplySnapshot(ctx, MakeTestDay("2025-01-01"), nil, []string{readings[3].ID}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	hashes, err := db.ReadingHashes(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("hashes failed: %v", err)
	}
	if len(hashes) != 3 {
		t.Errorf("expected 3 readings after removal, got %d", len(hashes))
	}
	if hashes[readings[0].ID] != readings[0].ContentHash() {
		t.Error("expected stored hash to match content hash")
	}
}

// TestTrimOutsideWindow_AroundJune verifies entries more than 90 days before
// the center are removed while those inside the window survive.
func TestTrimOutsideWindow_AroundJune(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	for _, date := range []string{"2025-01-01", "2025-03-03", "2025-08-01", "2025-08-30", "2025-08-31"} {
		if err := db.ApplySnapshot(ctx, MakeTestDay(date), MakeTestReadings(date, 2), nil); err != nil {
			t.Fatalf("seed %s failed: %v", date, err)
		}
	}

	result, err := db.TrimOutsideWindow(ctx, mustDate(t, "2025-06-01"), 90, 90)
	if err != nil {
		t.Fatalf("trim failed: %v", err)
	}

	// Window is [2025-03-03, 2025-08-30]
	if result.DaysRemoved != 2 {
		t.Errorf("expected 2 days removed, got %d", result.DaysRemoved)
	}
	if result.ReadingsRemoved != 4 {
		t.Errorf("expected 4 readings removed, got %d", result.ReadingsRemoved)
	}

	for _, date := range []string{"2025-01-01", "2025-08-31"} {
		if _, err := db.GetDay(ctx, date); !IsNotFound(err) {
			t.Errorf("expected %s to be trimmed, got %v", date, err)
		}
	}
	for _, date := range []string{"2025-03-03", "2025-08-01", "2025-08-30"} {
		if _, err := db.GetDay(ctx, date); err != nil {
			t.Errorf("expected %s to be retained, got %v", date, err)
		}
	}
}

// =============================================================================
// Ledger Tests
// =============================================================================

func TestRecordSyncJob_UpsertsByKey(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	msg := "remote unavailable"
	failed := time.Date(2025, 1, 1, 2, 0, 5, 0, time.UTC)
	if err := db.RecordSyncJob(ctx, &SyncJob{
		JobName:      "daily_sync:2025-01-01",
		TargetDate:   "2025-01-01",
		Status:       JobFailed,
		CompletedAt:  &failed,
		ErrorMessage: &msg,
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	done := failed.Add(30 * time.Minute)
	if err := db.RecordSyncJob(ctx, &SyncJob{
		JobName:          "daily_sync:2025-01-01",
		TargetDate:       "2025-01-01",
		Status:           JobSuccess,
		CompletedAt:      &done,
		RecordsProcessed: 4,
		DurationSeconds:  1.5,
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM sync_jobs"); n != 1 {
		t.Fatalf("expected 1 ledger row, got %d", n)
	}

	job, err := db.GetSyncJob(ctx, "daily_sync:2025-01-01", "2025-01-01")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if job.Status != JobSuccess {
		t.Errorf("expected success, got %s", job.Status)
	}
	if job.ErrorMessage != nil {
		t.Errorf("expected error message cleared, got %q", *job.ErrorMessage)
	}
	if job.RecordsProcessed != 4 {
		t.Errorf("expected 4 records, got %d", job.RecordsProcessed)
	}
	if job.CompletedAt == nil || !job.CompletedAt.Equal(done) {
		t.Errorf("expected completed at %v, got %v", done, job.CompletedAt)
	}
}

func TestRecentSuccessfulSync(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	ok, err := db.RecentSuccessfulSync(ctx, now, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no recent success on empty ledger")
	}

	old := now.Add(-30 * time.Hour)
	db.RecordSyncJob(ctx, &SyncJob{JobName: "daily_sync:2024-12-31", TargetDate: "2024-12-31", Status: JobSuccess, CompletedAt: &old})

	ok, _ = db.RecentSuccessfulSync(ctx, now, 24*time.Hour)
	if ok {
		t.Error("expected success older than window to be ignored")
	}

	failedAt := now.Add(-time.Hour)
	db.RecordSyncJob(ctx, &SyncJob{JobName: "manual_sync:2025-01-01", TargetDate: "2025-01-01", Status: JobFailed, CompletedAt: &failedAt})

	ok, _ = db.RecentSuccessfulSync(ctx, now, 24*time.Hour)
	if ok {
		t.Error("expected failed job to be ignored")
	}

	readAhead := now.Add(-time.Hour)
	db.RecordSyncJob(ctx, &SyncJob{JobName: "reconcile:2025-01-02", TargetDate: "2025-01-02", Status: JobSuccess, CompletedAt: &readAhead})

	ok, _ = db.RecentSuccessfulSync(ctx, now, 24*time.Hour)
	if ok {
		t.Error("expected per-date reconcile success to be ignored")
	}

	recent := now.Add(-time.Hour)
	db.RecordSyncJob(ctx, &SyncJob{JobName: "daily_sync:2025-01-01", TargetDate: "2025-01-01", Status: JobSuccess, CompletedAt: &recent})

	ok, _ = db.RecentSuccessfulSync(ctx, now, 24*time.Hour)
	if !ok {
		t.Error("expected success one hour ago to count")
	}
}

func TestRecentSyncJobs_NewestFirst(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"a", "b", "c"} {
		if err := db.RecordSyncJob(ctx, &SyncJob{
			JobName:    name,
			TargetDate: "2025-01-01",
			Status:     JobRunning,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	jobs, err := db.RecentSyncJobs(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].JobName != "c" || jobs[1].JobName != "b" {
		t.Errorf("expected [c b], got [%s %s]", jobs[0].JobName, jobs[1].JobName)
	}
}

// =============================================================================
// Stats Tests
// =============================================================================

func TestGetCacheStats(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	if err := db.ApplySnapshot(ctx, MakeTestDay("2025-01-01"), MakeTestReadings("2025-01-01", 4), nil); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	done := time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)
	db.RecordSyncJob(ctx, &SyncJob{JobName: "daily_sync:2025-01-01", TargetDate: "2025-01-01", Status: JobSuccess, CompletedAt: &done})
	later := done.Add(time.Hour)
	db.RecordSyncJob(ctx, &SyncJob{JobName: "reconcile:2025-01-02", TargetDate: "2025-01-02", Status: JobSuccess, CompletedAt: &later})

	stats, err := db.GetCacheStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.CachedDays != 1 || stats.CachedReadings != 4 {
		t.Errorf("expected 1 day and 4 readings, got %d and %d", stats.CachedDays, stats.CachedReadings)
	}
	if stats.ApproximateSizeMB <= 0 {
		t.Errorf("expected positive size, got %f", stats.ApproximateSizeMB)
	}
	if stats.LastSyncTime == nil || !stats.LastSyncTime.Equal(done) {
		t.Errorf("expected last sync %v, got %v", done, stats.LastSyncTime)
	}
}

func TestPerformanceMetrics(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)

	record := func(name string, status JobStatus, at time.Time, duration float64) {
		t.Helper()
		if err := db.RecordSyncJob(ctx, &SyncJob{
			JobName:         name,
			TargetDate:      "2025-01-01",
			Status:          status,
			CompletedAt:     &at,
			DurationSeconds: duration,
		}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	record("old", JobSuccess, now.Add(-10*24*time.Hour), 100)
	record("s1", JobSuccess, now.Add(-2*24*time.Hour), 2)
	record("s2", JobSuccess, now.Add(-time.Hour), 4)
	record("f1", JobFailed, now.Add(-3*time.Hour), 6)
	record("reconcile:2025-01-07", JobSuccess, now.Add(-30*time.Minute), 1)
	record("reconcile:2025-01-08", JobFailed, now.Add(-30*time.Minute), 1)

	m, err := db.PerformanceMetrics(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.TotalJobs != 3 {
		t.Errorf("expected 3 jobs in window, got %d", m.TotalJobs)
	}
	if m.FailureCount != 1 {
		t.Errorf("expected 1 failure, got %d", m.FailureCount)
	}
	if m.SuccessRate < 0.66 || m.SuccessRate > 0.67 {
		t.Errorf("expected success rate 2/3, got %f", m.SuccessRate)
	}
	if m.AverageDurationSeconds != 4 {
		t.Errorf("expected average duration 4, got %f", m.AverageDurationSeconds)
	}
	if m.LastSuccessfulSyncTimestamp == nil || !m.LastSuccessfulSyncTimestamp.Equal(now.Add(-time.Hour)) {
		t.Errorf("unexpected last success %v", m.LastSuccessfulSyncTimestamp)
	}
}

func TestPersistenceError_WrapsDriverFailures(t *testing.T) {
	db := NewTestDB(t)
	db.Close()

	_, err := db.GetReadings(context.Background(), "2025-01-01")
	if !IsPersistence(err) {
		t.Errorf("expected persistence error, got %v", err)
	}
}
