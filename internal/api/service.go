package api

import (
	"context"
	"time"

	"github.com/livinlefevreloca/lectio/internal/broadcast"
	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/internal/scheduler"
	"github.com/livinlefevreloca/lectio/internal/syncer"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service,CacheReader

// Service is the scheduler surface the API exposes
type Service interface {
	Status() scheduler.Status
	RecentSyncJobs(ctx context.Context, limit int) ([]db.SyncJob, error)
	PerformanceMetrics(ctx context.Context, window time.Duration) (db.PerformanceMetrics, error)
	CacheStats(ctx context.Context) (db.CacheStats, error)
	InCacheWindow(date time.Time) bool
	TriggerManualSync(ctx context.Context, date *time.Time) (syncer.Result, error)
	RunBackgroundSlot(ctx context.Context) scheduler.BackgroundResult
	Subscribe(buffer int) *broadcast.Subscription[scheduler.Event]
	Unsubscribe(sub *broadcast.Subscription[scheduler.Event])
}

// CacheReader serves cached days to offline readers
type CacheReader interface {
	GetDay(ctx context.Context, date string) (*liturgy.Day, error)
	GetReadings(ctx context.Context, date string) ([]liturgy.Reading, error)
}
