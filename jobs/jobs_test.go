package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/capsula-erp/capsula/internal/jobs"
	"github.com/capsula-erp/capsula/internal/materials"
)

type stubLots struct {
	lots   []materials.ExpiringLot
	err    error
	within int
}

func (s *stubLots) ExpiringLots(_ context.Context, withinDays int) ([]materials.ExpiringLot, error) {
	s.within = withinDays
	return s.lots, s.err
}

func expiring(id int64, status materials.Status, days int) materials.ExpiringLot {
	return materials.ExpiringLot{
		LotView: materials.LotView{
			Lot:             materials.Lot{ID: id, LotNumber: "L-" + string(status), AvailableMg: 1000},
			Status:          status,
			DaysUntilExpiry: &days,
		},
		MaterialName: "Zinco Quelato",
	}
}

func TestExpiryScanCountsByStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	src := &stubLots{lots: []materials.ExpiringLot{
		expiring(1, materials.StatusExpired, -3),
		expiring(2, materials.StatusNearExpiry, 10),
		expiring(3, materials.StatusNearExpiry, 29),
	}}
	job := NewExpiryScanJob(src, 45, nil, metrics)

	task, err := NewExpiryScanTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 45, src.within)

	res, err := job.Scan(context.Background(), 15)
	require.NoError(t, err)
	require.Equal(t, ScanResult{Expired: 1, NearExpiry: 2, ExpiredMg: 1000, NearExpiryMg: 2000}, res)
	require.Equal(t, 15, src.within)

	families, err := registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()+"/"+m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
			}
		}
	}
	require.Equal(t, 2.0, values["capsula_jobs_total"])
	require.Equal(t, 2.0, values["capsula_lots_flagged/near_expiry"])
	require.Equal(t, 1.0, values["capsula_lots_flagged/expired"])
	require.Equal(t, 2000.0, values["capsula_lots_flagged_available_mg/near_expiry"])
	require.Positive(t, values["capsula_job_last_success_timestamp_seconds/"+TaskLotsExpiryScan])
}

func TestExpiryScanFailure(t *testing.T) {
	job := NewExpiryScanJob(&stubLots{err: errors.New("db down")}, 30, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewExpiryScanTask(7)
	require.NoError(t, err)
	require.EqualError(t, job.Handle(context.Background(), task), "db down")

	bad := asynq.NewTask(TaskLotsExpiryScan, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	var unconfigured *ExpiryScanJob
	require.Error(t, unconfigured.Handle(context.Background(), task))
}

type stubOverview struct {
	calls int
	err   error
}

func (s *stubOverview) RefreshOverview(context.Context) (materials.Overview, error) {
	s.calls++
	return materials.Overview{MaterialCount: 6, LotCount: 12}, s.err
}

func TestOverviewWarmup(t *testing.T) {
	src := &stubOverview{}
	job := NewOverviewWarmupJob(src, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewOverviewWarmupTask()))
	require.Equal(t, 1, src.calls)

	src.err = errors.New("redis unavailable")
	require.Error(t, job.Handle(context.Background(), NewOverviewWarmupTask()))
}

func TestNewTask(t *testing.T) {
	task, err := NewTask(TaskLotsExpiryScan, 60)
	require.NoError(t, err)
	var payload ExpiryScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 60, payload.WithinDays)

	for _, name := range TaskNames[1:] {
		task, err = NewTask(name, 0)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
	}

	_, err = NewTask("gl:integrity", 0)
	var unsupported *UnsupportedTaskError
	require.ErrorAs(t, err, &unsupported)
}

type stubPruner struct {
	retention time.Duration
	removed   int64
	err       error
}

func (s *stubPruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return s.removed, s.err
}

func TestIdempotencyPrune(t *testing.T) {
	keys := &stubPruner{removed: 12}
	job := NewIdempotencyPruneJob(keys, 72*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyPruneTask()))
	require.Equal(t, 72*time.Hour, keys.retention)

	keys.err = errors.New("db down")
	require.EqualError(t, job.Handle(context.Background(), NewIdempotencyPruneTask()), "db down")

	job.Retention = 0
	require.ErrorIs(t, job.Handle(context.Background(), NewIdempotencyPruneTask()), asynq.SkipRetry)
}

type stubInspector struct {
	stats QueueStats
	err   error
}

func (s stubInspector) InspectQueue(context.Context) (QueueStats, error) {
	return s.stats, s.err
}

func TestHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{stats: QueueStats{Queue: QueueDefault, Pending: 4}}, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":4,"active":0,"scheduled":0,"retry":0}`, rec.Body.String())

	r = chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "every tuesday", Task: NewOverviewWarmupTask()}},
	})
	require.ErrorContains(t, err, TaskMaterialsOverviewWarmup)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := slogAdapter{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	a.Warn("queue ", QueueDefault, " is paused")
	require.Contains(t, buf.String(), `msg="queue default is paused"`)
}
