package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLotsExpiryScan flags lots that are expired or close to expiry.
	TaskLotsExpiryScan = "lots:expiry_scan"
	// TaskMaterialsOverviewWarmup rebuilds the cached stock overview.
	TaskMaterialsOverviewWarmup = "materials:overview_warmup"
	// TaskIdempotencyPrune drops expired Idempotency-Key records.
	TaskIdempotencyPrune = "idempotency:prune"
)

// TaskNames lists every task the worker serves.
var TaskNames = []string{TaskLotsExpiryScan, TaskMaterialsOverviewWarmup, TaskIdempotencyPrune}

// ExpiryScanPayload configures one expiry scan.
type ExpiryScanPayload struct {
	WithinDays int `json:"within_days"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(withinDays int) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{WithinDays: withinDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLotsExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// NewOverviewWarmupTask constructs an Asynq task that refreshes the overview cache.
func NewOverviewWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskMaterialsOverviewWarmup, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyPruneTask constructs an Asynq task that prunes request keys.
func NewIdempotencyPruneTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyPrune, nil, asynq.Queue(QueueDefault))
}

// NewTask builds a supported task by name with its default payload.
func NewTask(name string, expiryWithinDays int) (*asynq.Task, error) {
	switch name {
	case TaskLotsExpiryScan:
		return NewExpiryScanTask(expiryWithinDays)
	case TaskMaterialsOverviewWarmup:
		return NewOverviewWarmupTask(), nil
	case TaskIdempotencyPrune:
		return NewIdempotencyPruneTask(), nil
	}
	return nil, &UnsupportedTaskError{Name: name}
}

// UnsupportedTaskError reports an unknown task name.
type UnsupportedTaskError struct {
	Name string
}

func (e *UnsupportedTaskError) Error() string {
	return "jobs: unsupported task " + e.Name
}
