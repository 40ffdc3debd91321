package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/wingside/loyalty-engine/internal/config"
	"github.com/wingside/loyalty-engine/internal/server"
	"github.com/wingside/loyalty-engine/pkg/decay"
	"github.com/wingside/loyalty-engine/pkg/engineconf"
	"github.com/wingside/loyalty-engine/pkg/service"
)

// App holds all application dependencies and manages the application
// lifecycle.
type App struct {
	cfg               *config.Config
	httpServer        *server.HTTPServer
	metricsServer     *server.MetricsServer
	pool              *pgxpool.Pool
	redisClient       *redis.Client
	scheduler         *decay.Scheduler
	shutdownTelemetry func(context.Context) error
}

// New creates and initializes a new application instance.
//
// Components are initialized in dependency order:
//  1. Postgres (system of record for leads and customers)
//  2. Redis (score cache, decay reports)
//  3. Engine config (YAML: weights, thresholds, cadence)
//  4. Stores and services
//  5. Decay runner and scheduler
//  6. Servers (API, metrics)
//  7. Telemetry (OpenTelemetry tracing)
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	if err := app.initPostgres(ctx); err != nil {
		return nil, fmt.Errorf("failed to init Postgres: %w", err)
	}

	if err := app.initRedis(ctx); err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	engineCfg, err := engineconf.Load(cfg.EngineConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load engine config from %s: %w", cfg.EngineConfigPath, err)
	}
	logrus.Infof("loaded engine configuration from %s", cfg.EngineConfigPath)

	leadStore := service.NewPostgresLeadStore(app.pool)
	customerStore := service.NewPostgresCustomerStore(app.pool)
	scoreCache := service.NewRedisScoreCache(app.redisClient, engineCfg.Cache.ScoreTTL.Std())
	reportStore := decay.NewRedisReportStore(app.redisClient, 0)

	thresholds := engineCfg.Tier.Thresholds()
	scoring := service.NewLeadScoringService(leadStore, scoreCache, engineCfg.Scoring.Weights, nil)
	loyalty := service.NewLoyaltyService(customerStore, thresholds, nil)

	runner := decay.NewRunner(customerStore, reportStore, thresholds, nil)
	if engineCfg.Decay.Enabled {
		app.scheduler = decay.NewScheduler(runner, engineCfg.Decay.Interval.Std(), engineCfg.Decay.DryRun)
	} else {
		logrus.Warn("decay batch is disabled by engine config")
	}

	app.httpServer = server.NewHTTPServer(cfg.HTTPPort, scoring, loyalty, runner, reportStore, engineCfg.Toggles)
	if err := app.httpServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup API server: %w", err)
	}

	app.metricsServer = server.NewMetricsServer(cfg.MetricsPort, "/metrics")
	if err := app.metricsServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup metrics server: %w", err)
	}

	if cfg.OtelEnabled {
		shutdownTelemetry, err := server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, cfg.ZipkinEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}
		app.shutdownTelemetry = shutdownTelemetry
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

// initPostgres connects the pgx pool and optionally ensures the
// schema exists.
func (a *App) initPostgres(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	maxRetries := backoff.WithMaxRetries(b, 5)

	err = backoff.Retry(
		func() error {
			if err := pool.Ping(ctx); err != nil {
				logrus.Warnf("Postgres connection failed: %v, retrying...", err)
				return err
			}
			return nil
		},
		maxRetries,
	)
	if err != nil {
		pool.Close()
		return err
	}

	a.pool = pool
	logrus.Info("Postgres pool initialized")

	if a.cfg.AutoMigrate {
		if err := service.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}

// initRedis initializes the Redis client.
func (a *App) initRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         a.cfg.RedisHost + ":" + a.cfg.RedisPort,
		Password:     a.cfg.RedisPassword,
		DB:           0, // use default DB
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.NewExponentialBackOff()
	maxRetries := backoff.WithMaxRetries(b, uint64(a.cfg.RedisMaxRetries))

	err := backoff.Retry(
		func() error {
			_, err := client.Ping(ctx).Result()
			if err != nil {
				logrus.Warnf("Redis connection failed: %v, retrying...", err)
				return err
			}
			return nil
		},
		maxRetries,
	)

	if err != nil {
		return err
	}

	a.redisClient = client
	logrus.Info("Redis client initialized")
	return nil
}
