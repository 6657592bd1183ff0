package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/alfozan/insights/internal/fetch"
	jobmetrics "github.com/alfozan/insights/internal/jobs"
)

// Prober performs a connectivity check. *fetch.Monitor satisfies it.
type Prober interface {
	Check(ctx context.Context) fetch.Status
}

// BackendProbeJob probes the backend and publishes the status for the web
// processes.
type BackendProbeJob struct {
	Prober    Prober
	Publisher *StatusCache
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewBackendProbeJob wires dependencies for the probe handler.
func NewBackendProbeJob(prober Prober, publisher *StatusCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackendProbeJob {
	return &BackendProbeJob{Prober: prober, Publisher: publisher, Logger: logger, Metrics: metrics}
}

// Handle processes backend probe tasks.
func (j *BackendProbeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Prober == nil {
		return errors.New("backend probe: handler not configured")
	}
	tracker := j.Metrics.Track(TaskBackendProbe)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var payload BackendProbePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode probe payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	status := j.Prober.Check(ctx)
	if err := j.Publisher.Publish(ctx, status); err != nil {
		j.logger().Error("publish backend status", slog.Any("error", err))
		return err
	}
	j.logger().Debug("backend probed",
		slog.Bool("connected", status.Connected),
		slog.String("reason", payload.Reason))
	return nil
}

func (j *BackendProbeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBackendProbe))
	}
	return slog.Default().With(slog.String("job", TaskBackendProbe))
}
