package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/capsula-erp/capsula/internal/jobs"
)

// KeyPruner removes request keys older than a retention window.
type KeyPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// IdempotencyPruneJob bounds the idempotency_keys table. A retried request
// older than Retention is treated as new.
type IdempotencyPruneJob struct {
	Keys      KeyPruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyPruneJob wires dependencies for the prune handler.
func NewIdempotencyPruneJob(keys KeyPruner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPruneJob {
	return &IdempotencyPruneJob{Keys: keys, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes prune tasks.
func (j *IdempotencyPruneJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency prune: handler not configured")
	}
	if j.Retention <= 0 {
		return errors.Join(errors.New("idempotency prune: retention must be positive"), asynq.SkipRetry)
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyPrune)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	removed, err := j.Keys.Prune(ctx, j.Retention)
	if err != nil {
		logger.Error("prune idempotency keys", slog.String("job", TaskIdempotencyPrune), slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("idempotency keys pruned",
		slog.String("job", TaskIdempotencyPrune),
		slog.Int64("removed", removed),
		slog.Duration("retention", j.Retention))
	return tracker.End(nil)
}
