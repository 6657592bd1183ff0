package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alfozan/insights/internal/fetch"
)

// StatusKey holds the last probe result published by the worker.
const StatusKey = "insights:backend_status"

// StatusCache shares the connectivity status between the worker that probes
// and the web processes that display it.
type StatusCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewStatusCache builds a StatusCache. A status older than ttl reads as
// disconnected.
func NewStatusCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = 3 * fetch.DefaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusCache{client: client, ttl: ttl, timeout: 500 * time.Millisecond, logger: logger, now: time.Now}
}

// Publish stores status with the configured expiry.
func (c *StatusCache) Publish(ctx context.Context, status fetch.Status) error {
	if c == nil || c.client == nil {
		return errors.New("jobs: status cache not configured")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, StatusKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// Load reads the published status. ok is false when nothing is published.
func (c *StatusCache) Load(ctx context.Context) (fetch.Status, bool, error) {
	if c == nil || c.client == nil {
		return fetch.Status{}, false, nil
	}
	raw, err := c.client.Get(ctx, StatusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return fetch.Status{}, false, nil
	}
	if err != nil {
		return fetch.Status{}, false, err
	}
	var status fetch.Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return fetch.Status{}, false, fmt.Errorf("decode status: %w", err)
	}
	return status, true, nil
}

// Status reports the published status, or a disconnected demo-data status
// when none is available.
func (c *StatusCache) Status() fetch.Status {
	if c == nil {
		return fetch.Status{Connected: false, UsingMockData: true, LastChecked: time.Now()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	status, ok, err := c.Load(ctx)
	if err != nil {
		c.logger.Warn("read backend status", slog.Any("error", err))
	}
	if !ok || err != nil {
		return fetch.Status{Connected: false, UsingMockData: true, LastChecked: c.now()}
	}
	return status
}
