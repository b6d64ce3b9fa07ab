package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/capsula-erp/capsula/internal/jobs"
	"github.com/capsula-erp/capsula/internal/materials"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiringLotSource lists lots whose effective expiry is close.
type ExpiringLotSource interface {
	ExpiringLots(ctx context.Context, withinDays int) ([]materials.ExpiringLot, error)
}

// ExpiryScanJob logs every lot with stock that is expired or expires within
// the scan horizon.
type ExpiryScanJob struct {
	Lots        ExpiringLotSource
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	DefaultDays int
}

// NewExpiryScanJob wires dependencies for the expiry scan handler.
func NewExpiryScanJob(lots ExpiringLotSource, defaultDays int, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{Lots: lots, DefaultDays: defaultDays, Logger: logger, Metrics: metrics}
}

// ScanResult counts the flagged lots by status.
type ScanResult struct {
	Expired      int
	NearExpiry   int
	Other        int
	ExpiredMg    float64
	NearExpiryMg float64
}

// Handle processes expiry scan tasks.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lots == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WithinDays <= 0 {
		payload.WithinDays = j.DefaultDays
	}
	if payload.WithinDays <= 0 {
		payload.WithinDays = materials.NearExpiryDays
	}
	_, err := j.Scan(ctx, payload.WithinDays)
	return err
}

// Scan runs one scan and reports what it flagged.
func (j *ExpiryScanJob) Scan(ctx context.Context, withinDays int) (ScanResult, error) {
	tracker := j.metrics().Track(TaskLotsExpiryScan)
	logger := j.logger().With(slog.Int("within_days", withinDays))

	lots, err := j.Lots.ExpiringLots(ctx, withinDays)
	if err != nil {
		logger.Error("list expiring lots", slog.Any("error", err))
		return ScanResult{}, tracker.End(err)
	}
	var res ScanResult
	for _, l := range lots {
		switch l.Status {
		case materials.StatusExpired:
			res.Expired++
			res.ExpiredMg += l.AvailableMg
		case materials.StatusNearExpiry:
			res.NearExpiry++
			res.NearExpiryMg += l.AvailableMg
		default:
			res.Other++
		}
		attrs := []any{
			slog.Int64("lot_id", l.ID),
			slog.String("lot_number", l.LotNumber),
			slog.String("material", l.MaterialName),
			slog.String("status", string(l.Status)),
			slog.Float64("available_mg", l.AvailableMg),
		}
		if l.DaysUntilExpiry != nil {
			attrs = append(attrs, slog.Int("days_until_expiry", *l.DaysUntilExpiry))
		}
		logger.Warn("lot flagged by expiry scan", attrs...)
	}
	m := j.metrics()
	m.SetFlaggedLots(string(materials.StatusExpired), res.Expired, res.ExpiredMg)
	m.SetFlaggedLots(string(materials.StatusNearExpiry), res.NearExpiry, res.NearExpiryMg)
	logger.Info("expiry scan completed", slog.Int("expired", res.Expired), slog.Int("near_expiry", res.NearExpiry))
	return res, tracker.End(nil)
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLotsExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskLotsExpiryScan))
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
