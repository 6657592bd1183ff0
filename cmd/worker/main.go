package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfozan/insights/internal/app"
	"github.com/alfozan/insights/internal/fetch"
	jobmetrics "github.com/alfozan/insights/internal/jobs"
	"github.com/alfozan/insights/internal/platform/cache"
	"github.com/alfozan/insights/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.Open(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	backend := fetch.NewClient(
		fetch.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout},
		fetch.WithLogger(logger),
		fetch.WithMetrics(fetch.NewMetrics(prometheus.DefaultRegisterer)),
	)
	monitor := fetch.NewMonitor(backend, cfg.BackendProbePath, cfg.BackendProbeInterval, logger)
	statusCache := jobs.NewStatusCache(redisClient, 3*cfg.BackendProbeInterval, logger)
	probeJob := jobs.NewBackendProbeJob(monitor, statusCache, logger, jobmetrics.NewMetrics(nil))

	probeCron, err := jobs.ProbeCron(cfg.BackendProbeInterval)
	if err != nil {
		logger.Error("build probe task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts.Asynq(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBackendProbe, Handler: probeJob.Handle},
		},
		Cron: []jobs.CronRegistration{probeCron},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.BackendProbeInline {
		logger.Warn("BACKEND_PROBE_INLINE is set; web processes probe on their own and ignore published status")
	}
	// Publish once before the first tick so web processes do not show the
	// demo-data fallback for a whole interval after a deploy.
	if startup, err := jobs.NewBackendProbeTask("startup"); err == nil {
		if err := probeJob.Handle(ctx, startup); err != nil {
			logger.Warn("startup probe", slog.Any("error", err))
		}
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
