package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alfozan/insights/internal/fetch"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBackendProbe checks backend connectivity and publishes the result.
	TaskBackendProbe = "backend:probe"

	probeTimeout = 15 * time.Second
)

// ProbeSchedule schedules the periodic probe every interval. Non-positive
// intervals fall back to the facade default.
func ProbeSchedule(interval time.Duration) string {
	if interval <= 0 {
		interval = fetch.DefaultProbeInterval
	}
	return "@every " + interval.String()
}

// BackendProbePayload describes one probe request. Reason is informational.
type BackendProbePayload struct {
	Reason string `json:"reason"`
}

// NewBackendProbeTask constructs a probe task. Duplicate probes within the
// uniqueness window collapse into one.
func NewBackendProbeTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(BackendProbePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackendProbe, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(probeTimeout),
	), nil
}

// ProbeCron is the worker's periodic probe registration. Ticks that pile up
// while the worker is behind collapse into one queued task.
func ProbeCron(interval time.Duration) (CronRegistration, error) {
	task, err := NewBackendProbeTask("cron")
	if err != nil {
		return CronRegistration{}, err
	}
	if interval <= 0 {
		interval = fetch.DefaultProbeInterval
	}
	return CronRegistration{
		Schedule: ProbeSchedule(interval),
		Task:     task,
		Options:  []asynq.Option{asynq.Unique(interval)},
	}, nil
}
