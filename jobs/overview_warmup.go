package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/capsula-erp/capsula/internal/jobs"
	"github.com/capsula-erp/capsula/internal/materials"
)

// OverviewRefresher rebuilds the cached stock overview.
type OverviewRefresher interface {
	RefreshOverview(ctx context.Context) (materials.Overview, error)
}

// OverviewWarmupJob keeps the overview cache hot so the first request of the
// day does not pay for the rebuild.
type OverviewWarmupJob struct {
	Overview OverviewRefresher
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration
}

// NewOverviewWarmupJob wires dependencies for the warmup handler.
func NewOverviewWarmupJob(overview OverviewRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverviewWarmupJob {
	return &OverviewWarmupJob{Overview: overview, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes overview warmup tasks.
func (j *OverviewWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Overview == nil {
		return errors.New("overview warmup: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskMaterialsOverviewWarmup)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskMaterialsOverviewWarmup))

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	overview, err := j.Overview.RefreshOverview(ctx)
	if err != nil {
		logger.Error("refresh overview", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("overview warmed",
		slog.Int("materials", overview.MaterialCount),
		slog.Int("lots", overview.LotCount),
		slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}
