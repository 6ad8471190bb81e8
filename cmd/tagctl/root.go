package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/config"
	"github.com/tagdesk/tagdesk/internal/metrics"
	"github.com/tagdesk/tagdesk/internal/repository"
	"github.com/tagdesk/tagdesk/internal/service"
)

// cliActor is recorded as the actor of changes made through tagctl.
const cliActor = "tagctl"

// app is the state shared by every subcommand.
type app struct {
	envFile string
	jsonOut bool
	debug   bool

	cfg    *config.CLI
	logger *slog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:   "tagctl",
		Short: "Maintenance commands for tagdesk",
		Long: `tagctl talks to the tagdesk database directly. It reads DATABASE_URL
and the other settings from the environment or from an env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "env file to load before reading the environment")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log at debug level")

	root.AddCommand(
		newMigrateCmd(a),
		newBootstrapKeyCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newPasswordCmd(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.LoadCLI(a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	switch {
	case a.debug:
		level = slog.LevelDebug
	case strings.EqualFold(cfg.LogLevel, "info"):
		level = slog.LevelInfo
	case strings.EqualFold(cfg.LogLevel, "error"):
		level = slog.LevelError
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) openRepo(ctx context.Context) (*repository.Repository, error) {
	repo, err := repository.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return repo, nil
}

// services builds the services tagctl uses. Activity goes straight to the log
// table. When REDIS_URL is set, collections share the API's snapshot mirror so
// that changes made here invalidate what the API replicas would hydrate.
type services struct {
	allocations *service.AllocationService
	passwords   *service.AccessPasswordService

	redis *cache.Cache
}

func (s *services) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func (a *app) services(ctx context.Context, repo *repository.Repository) (*services, error) {
	svc := &services{}
	opts := cache.Options{
		TTL:    a.cfg.CacheTTL,
		Logger: a.logger,
	}

	mirror, redisCache, err := a.openMirror(ctx)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		opts.Mirror = mirror
		svc.redis = redisCache
	}

	collections := service.NewCollections(repo, opts)
	events := activity.NewDirect(repository.NewActivityRepository(repo), a.logger)

	svc.allocations = service.NewAllocationService(service.AllocationConfig{
		Store:             repo,
		Allocations:       collections.Allocations,
		Activity:          events,
		Metrics:           metrics.NewNoop(),
		Logger:            a.logger,
		DeleteConcurrency: a.cfg.BulkDeleteConcurrency,
	})
	svc.passwords = service.NewAccessPasswordService(repo, collections.AccessPasswords, events, a.logger, nil)
	return svc, nil
}

// openMirror connects to the snapshot mirror. It returns a nil mirror when
// REDIS_URL is unset.
func (a *app) openMirror(ctx context.Context) (cache.Mirror, *cache.Cache, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Debug("REDIS_URL not set, API snapshots will expire on their own")
		return nil, nil, nil
	}
	c, err := cache.New(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return c.Mirror(a.cfg.SnapshotPrefix), c, nil
}
