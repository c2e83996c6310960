// Package main is the entry point of the ranking service's ingress process:
// the HTTP API serving the signed profile-event webhooks, the ranking read
// endpoints and the Prometheus exposition.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rankhub/student-ranking-hub/config"
	"github.com/rankhub/student-ranking-hub/internal/application/eventhandler"
	"github.com/rankhub/student-ranking-hub/internal/application/ingest"
	"github.com/rankhub/student-ranking-hub/internal/application/query"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/messaging"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/persistence/postgres"
	"github.com/rankhub/student-ranking-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/rankhub/student-ranking-hub/internal/interface/http"
	"github.com/rankhub/student-ranking-hub/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
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
	log.Info("starting ranking API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
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
	// 5. REPOSITORIES AND COORDINATION PRIMITIVES
	// ─────────────────────────────────────────────────────────────────────────
	profileRepo := postgres.NewProfileRepository(dbConn)
	rankingRepo := postgres.NewRankingRepository(dbConn)

	markers := redis.NewMarkers(cache)
	queue := redis.NewJobQueue(cache)
	pending := redis.NewPendingCache(cache, redis.TTLPending)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. INGEST HANDLERS AND EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	enqueueCfg := ingest.DefaultEnqueueConfig()
	enqueueCfg.StudentUpdatedTTL = cfg.Debounce.StudentUpdatedTTL
	enqueueCfg.UserCreatedTTL = cfg.Debounce.UserCreatedTTL
	enqueueCfg.ConfigVersion = cfg.Scoring.ConfigVersion
	if cfg.Debounce.SuppressOnGateFailure {
		enqueueCfg.OnGateUnavailable = ingest.GateSuppress
	}
	if !cfg.Features.IsEnabled(config.FeaturePipelineDebounce, nil) {
		// Zero windows bypass the gate entirely.
		enqueueCfg.StudentUpdatedTTL = 0
		enqueueCfg.UserCreatedTTL = 0
		log.Warn("event debouncing disabled by feature flag")
	}
	enqueuer := ingest.NewEnqueuer(markers, queue, enqueueCfg, log)
	verifier := ingest.NewVerifier(markers, profileRepo, pending, rankingRepo, ingest.DefaultVerifierConfig(), log)

	busCfg := messaging.DefaultBusConfig()
	busCfg.Logger = log
	bus := messaging.NewBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	audit := eventhandler.NewAuditLogHandler(log)
	if err := bus.SubscribeAll(audit.Handle); err != nil {
		return fmt.Errorf("failed to subscribe audit handler: %w", err)
	}

	dispatcher := messaging.NewDispatcher(bus, enqueuer, verifier, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.IdleTimeout = cfg.Server.IdleTimeout
	serverCfg.RateLimitPerMinute = cfg.Server.RateLimitPerMinute
	serverCfg.WebhookSecret = cfg.Server.WebhookSecret
	serverCfg.WebhookMaxSkew = cfg.Server.WebhookMaxSkew
	serverCfg.EnableMetrics = cfg.Server.MetricsEnabled
	serverCfg.ConfigVersion = cfg.Scoring.ConfigVersion

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		Enqueuer:              dispatcher,
		Verifier:              dispatcher,
		GetRankingHandler:     query.NewGetRankingHandler(rankingRepo),
		GetGlobalStatsHandler: query.NewGetGlobalStatsHandler(rankingRepo),
		HealthCheckers: map[string]httpapi.HealthChecker{
			"postgres": pingChecker{dbConn.Ping},
			"redis":    pingChecker{cache.Ping},
		},
		BreakdownEnabled: func(userID string) bool {
			return cfg.Features.IsEnabled(config.FeatureAPIScoreBreakdown, &config.FeatureContext{UserID: userID})
		},
		Logger: log,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// pingChecker adapts a Ping method to the readiness probe interface.
type pingChecker struct {
	ping func(ctx context.Context) error
}

func (p pingChecker) Health(ctx context.Context) error {
	return p.ping(ctx)
}

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
