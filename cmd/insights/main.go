package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"

	"github.com/alfozan/insights/internal/app"
	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/fetch"
	"github.com/alfozan/insights/internal/observability"
	"github.com/alfozan/insights/internal/platform/cache"
	"github.com/alfozan/insights/internal/platform/db"
	"github.com/alfozan/insights/internal/portfolio"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/shared"
	"github.com/alfozan/insights/internal/users"
	"github.com/alfozan/insights/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		if err := runCLI(ctx, cfg, logger, os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.Open(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo, closeRepo, err := userDirectory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	metrics := observability.NewMetrics()
	backend := fetch.NewClient(
		fetch.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout},
		fetch.WithLogger(logger),
		fetch.WithMetrics(fetch.NewMetrics(metrics.Registerer())),
	)

	table := rbac.DefaultTable()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), logger)
	authService := auth.NewService(repo, auth.NewRemoteExchanger(backend, cfg.RemoteLoginPath), logger)

	var (
		reader  app.StatusReader
		trigger app.ProbeTrigger
	)
	statusCache := jobs.NewStatusCache(redisClient, 3*cfg.BackendProbeInterval, logger)
	if cfg.BackendProbeInline {
		monitor := fetch.NewMonitor(backend, cfg.BackendProbePath, cfg.BackendProbeInterval, logger)
		stopMonitor := monitor.Start(ctx)
		defer stopMonitor()
		reader, trigger = monitor, app.InlineProbe(monitor)
	} else {
		jobClient := jobs.NewClient(redisOpts.Asynq())
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		reader = statusCache
		trigger = func(ctx context.Context) (fetch.Status, bool, error) {
			_, err := jobClient.EnqueueBackendProbe(ctx, "manual")
			return fetch.Status{}, false, err
		}
	}

	inspector := asynq.NewInspector(redisOpts.Asynq())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	portfolioHandler := portfolio.NewHandler(logger, portfolio.Options{
		Cache:  portfolio.NewCache(redisClient, cfg.CacheTTL),
		Loader: portfolio.NewLoader(backend),
		Status: reader,
		Locale: cfg.Locale,
		Delay:  cfg.MockDelay,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		Table:              table,
		AuthHandler:        auth.NewHandler(logger, authService, table),
		PortfolioHandler:   portfolioHandler,
		StatusHandler:      app.NewStatusHandler(reader, trigger, logger),
		UsersHandler:       users.NewHandler(logger, users.NewService(repo)),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, table),
		JobHandler:         jobs.NewHandler(inspector, statusCache, logger),
		Metrics:            metrics,
		LoginSessions:      authService,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.Bool("probe_inline", cfg.BackendProbeInline))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

// directory is the account store behind logins and user management.
type directory interface {
	auth.Repository
	users.RepositoryPort
}

// userDirectory selects postgres when configured and the bcrypt demo
// directory otherwise.
func userDirectory(ctx context.Context, cfg *app.Config, logger *slog.Logger) (directory, func(), error) {
	if cfg.PGDSN != "" {
		pool, err := db.Open(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewRepository(pool), pool.Close, nil
	}
	accounts, err := auth.DemoUsers(cfg.DemoPassword, bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("demo users: %w", err)
	}
	logger.Warn("PG_DSN not set, using in-memory demo users", slog.Int("users", len(accounts)))
	return auth.NewMemoryRepository(accounts...), func() {}, nil
}
