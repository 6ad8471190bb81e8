// Package main is the entrypoint for the tagdesk admin API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/config"
	"github.com/tagdesk/tagdesk/internal/metrics"
	"github.com/tagdesk/tagdesk/internal/migrations"
	"github.com/tagdesk/tagdesk/internal/repository"
	"github.com/tagdesk/tagdesk/internal/server"
	"github.com/tagdesk/tagdesk/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.AutoMigrate {
		if err := migrations.NewRunner(cfg.DatabaseURL, nil).Up(); err != nil {
			logger.Error("failed to apply migrations", "error", sanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL,
		cache.WithPoolSize(cfg.RedisPoolSize),
		cache.WithMinIdleConns(cfg.RedisMinIdleConns),
	)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	var (
		recorder   metrics.Recorder = metrics.NewNoop()
		prometheus *metrics.PrometheusRecorder
	)
	if cfg.MetricsEnabled {
		prometheus = metrics.NewPrometheus()
		recorder = prometheus
	}

	var mirror cache.Mirror = cacheClient.Mirror(cfg.SnapshotPrefix)
	if cfg.CacheMirror == config.MirrorMemory {
		mirror = cache.NewMemoryMirror()
	}
	collections := service.NewCollections(repo, cache.Options{
		TTL:     cfg.CacheTTL,
		Mirror:  mirror,
		Metrics: recorder,
		Logger:  logger,
	})

	events := activity.Discard
	var worker *activity.Worker
	activityRepo := repository.NewActivityRepository(repo)
	if cfg.ActivityEnabled {
		events = activity.NewPublisher(cacheClient.Client(), logger, recorder)

		consumerID := cfg.ActivityConsumerID
		if consumerID == "" {
			consumerID = activity.NewConsumerID()
		}
		worker = activity.NewWorker(cacheClient.Client(), activityRepo, logger, consumerID, recorder)
	}

	services := &appServices{
		Users: service.NewUserService(collections.Users, logger),
		Allocations: service.NewAllocationService(service.AllocationConfig{
			Store:             repo,
			Allocations:       collections.Allocations,
			Activity:          events,
			Metrics:           recorder,
			Logger:            logger,
			DeleteConcurrency: cfg.BulkDeleteConcurrency,
		}),
		AccessPasswords: service.NewAccessPasswordService(repo, collections.AccessPasswords, events, logger, nil),
		Cache:           service.NewCacheService(collections.Registry, events, logger),
		Activity:        activityRepo,
	}
	services.Wallet = service.NewWalletService(service.WalletConfig{
		Store:        repo,
		Passwords:    services.AccessPasswords,
		Transactions: collections.Transactions,
		Users:        collections.Users,
		Activity:     events,
		Logger:       logger,
	})

	router := setupRouter(routerDeps{
		Config:     cfg,
		Logger:     logger,
		Repo:       repo,
		Cache:      cacheClient,
		Services:   services,
		Prometheus: prometheus,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Hooks run last-registered first.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	if worker != nil {
		srv.Go("activity-worker", worker.Run)
		srv.OnShutdown("activity-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"cache_ttl", cfg.CacheTTL,
		"cache_mirror", cfg.CacheMirror,
		"activity_enabled", cfg.ActivityEnabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "tagdesk")
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if name := parsed.User.Username(); name != "" {
			parsed.User = url.User(name)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError replaces any of secrets found in err's message with its
// redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
