// Package main is the entry point of the ranking service's compute process:
// the worker pool consuming recompute jobs from the Redis queue and the
// periodic global-stats aggregator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rankhub/student-ranking-hub/config"
	"github.com/rankhub/student-ranking-hub/internal/application/aggregator"
	"github.com/rankhub/student-ranking-hub/internal/application/worker"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/persistence/postgres"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/persistence/redis"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/scheduler"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/scheduler/jobs"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/service"
	"github.com/rankhub/student-ranking-hub/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting ranking worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"workers", cfg.Worker.Count,
		"scoring_strategy", cfg.Scoring.Strategy,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := connectPostgres(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	cache, err := connectRedis(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer cache.Close()
	log.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES AND PIPELINE COMPONENTS
	// ─────────────────────────────────────────────────────────────────────────
	profileRepo := postgres.NewProfileRepository(dbConn)
	rankingRepo := postgres.NewRankingRepository(dbConn)

	markers := redis.NewMarkers(cache)
	queue := redis.NewJobQueue(cache)
	pending := redis.NewPendingCache(cache, redis.TTLPending)

	strategy := cfg.Scoring.Strategy
	if cfg.Features.IsEnabled(config.FeatureExperimentalLookupScoring, nil) {
		strategy = scoring.StrategyLookup
		log.Info("lookup scoring enabled by feature flag")
	}
	scorer, err := scoring.New(strategy, scoring.DefaultConfig(cfg.Scoring.ConfigVersion), time.Now)
	if err != nil {
		return fmt.Errorf("failed to build scorer: %w", err)
	}

	checker := service.NewVerificationCheckerAdapter(markers, profileRepo)

	loop := worker.NewLoop(queue, profileRepo, scorer, rankingRepo, checker, pending, worker.Config{
		DequeueTimeout:          cfg.Worker.DequeueTimeout,
		ConfigVersion:           cfg.Scoring.ConfigVersion,
		SkipChecksumGuard:       !cfg.Features.IsEnabled(config.FeaturePipelineChecksumGuard, nil),
		DisableVerificationGate: !cfg.Features.IsEnabled(config.FeaturePipelineVerificationGate, nil),
	}, log)

	pool := worker.NewPool(loop, worker.PoolConfig{
		Workers:       cfg.Worker.Count,
		DepthInterval: cfg.Worker.QueueDepthInterval,
	}, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. AGGREGATOR AND SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Aggregator.Enabled {
		agg := aggregator.New(markers, rankingRepo, aggregator.Config{
			LockName:      "ranking_aggregator",
			LockTTL:       cfg.Aggregator.LockTTL,
			ConfigVersion: cfg.Scoring.ConfigVersion,
		}, log)

		sched = scheduler.New(scheduler.Config{
			Logger:   log,
			Timezone: cfg.App.Location,
		})
		job := jobs.NewAggregateRankingsJob(agg, log)
		schedule := scheduler.NewIntervalSchedule(cfg.Aggregator.Interval).
			WithJitter(cfg.Aggregator.Jitter)
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("failed to register aggregation job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("aggregation scheduled", "schedule", schedule.String())
	} else {
		log.Info("aggregation disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUN AND GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-poolDone:
		log.Warn("worker pool stopped on its own")
	}

	cancel()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", "error", err)
		}
	}

	// In-flight jobs finish before the pool exits.
	select {
	case <-poolDone:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("worker pool did not drain in time")
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// connectPostgres establishes the connection pool, retrying while the
// database comes up.
func connectPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	var conn *postgres.Connection

	err := retry.ConnectRetrier().Do(ctx, func(ctx context.Context) error {
		var connErr error
		conn, connErr = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if connErr != nil {
			log.Warn("database connection attempt failed", "error", connErr)
		}
		return connErr
	})
	return conn, err
}

// connectRedis establishes the Redis client, retrying while Redis comes up.
func connectRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Cache, error) {
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	var cache *redis.Cache

	err := retry.ConnectRetrier().Do(ctx, func(ctx context.Context) error {
		var cacheErr error
		cache, cacheErr = redis.NewCache(redisCfg)
		if cacheErr != nil {
			log.Warn("redis connection attempt failed", "error", cacheErr)
		}
		return cacheErr
	})
	return cache, err
}

// setupLogger configures structured logging per the observability config.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "json") || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
