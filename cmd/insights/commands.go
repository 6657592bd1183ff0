package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/alfozan/insights/cmd/insights/cli"
	"github.com/alfozan/insights/internal/app"
	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/fetch"
	"github.com/alfozan/insights/internal/platform/cache"
)

const usage = `usage:
  insights [serve]
  insights session login -email <email> [-password <password>]
  insights session whoami
  insights session logout
  insights jobs trigger <job>
  insights jobs stats`

func runCLI(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "session":
		return runSession(ctx, cfg, logger, args[1:])
	case "jobs":
		return runJobs(ctx, cfg, args[1:])
	default:
		return errors.New(usage)
	}
}

func runSession(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	backend := fetch.NewClient(fetch.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout}, fetch.WithLogger(logger))
	var repo auth.Repository
	if cfg.DemoPassword != "" {
		users, err := auth.DemoUsers(cfg.DemoPassword, bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		repo = auth.NewMemoryRepository(users...)
	}
	svc := auth.NewService(repo, auth.NewRemoteExchanger(backend, cfg.RemoteLoginPath), logger)
	sc := cli.NewSessionCLI(ctx, cfg.SessionFile, svc, logger)
	defer sc.Close()

	switch args[0] {
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", os.Getenv("INSIGHTS_PASSWORD"), "account password")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *email == "" || *password == "" {
			return errors.New("email and password are required")
		}
		id, err := sc.Login(ctx, *email, *password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Printf("logged in as %s (%s)\n", id.Email, id.Role)
	case "whoami":
		snap, perms := sc.Whoami()
		if !snap.Authenticated() {
			fmt.Println("not logged in")
			return nil
		}
		names := make([]string, 0, len(perms))
		for _, p := range perms {
			names = append(names, string(p))
		}
		fmt.Printf("%s <%s> role=%s permissions=%s\n", snap.Identity.Name, snap.Identity.Email, snap.Identity.Role, strings.Join(names, ","))
	case "logout":
		if err := sc.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
	default:
		return errors.New(usage)
	}
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	opts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jc := cli.NewJobsCLI(opts.Asynq())
	defer func() { _ = jc.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New(usage)
		}
		info, err := jc.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jc.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	default:
		return errors.New(usage)
	}
	return nil
}
