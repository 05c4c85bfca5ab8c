package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/docsync/core/internal/config"
	"github.com/docsync/core/pkg/database"
	"github.com/docsync/core/pkg/database/pool"
	"github.com/docsync/core/pkg/handlers/health"
	"github.com/docsync/core/pkg/jobs"
	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/store"
	"github.com/docsync/core/pkg/store/postgres"
	redisstore "github.com/docsync/core/pkg/store/redis"
	"github.com/docsync/core/pkg/store/sqlite"
)

// storeBackend bundles the opened store with its health checks and cleanup.
type storeBackend struct {
	store  store.SettingsStore
	checks []health.Check
	closer func()
}

func (b *storeBackend) close() {
	if b.closer != nil {
		b.closer()
		b.closer = nil
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storeBackend, error) {
	loc := cfg.Scheduler.Location
	storeLog := log.With().Str("store", cfg.Store.Driver).Logger()
	storeLogger := &logger.Logger{Logger: &storeLog}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn().
			Str("action", "store_memory").
			Msg("Using in-memory settings store; settings and run markers are lost on restart")
		return &storeBackend{store: store.NewMemory()}, nil

	case config.DriverPostgres:
		url := cfg.DatabaseURL()
		p, err := pool.New(ctx, url, pool.DefaultConfig(), log)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(log.ToContext(ctx), database.DriverPostgres, url, postgres.Schema); err != nil {
			p.Close()
			return nil, err
		}
		return &storeBackend{
			store:  postgres.New(p, loc, storeLogger),
			checks: []health.Check{{Name: "postgres", Fn: p.Ping}},
			closer: func() {
				stats := pool.GetStats(p)
				p.Close()
				log.Info().
					Str("action", "db_closed").
					Int64("acquire_count", stats.AcquireCount).
					Int32("total_conns", stats.TotalConns).
					Msg("Database connection pool closed")
			},
		}, nil

	case config.DriverRedis:
		opts, err := goredis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := goredis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return &storeBackend{
			store: redisstore.New(client, loc, storeLogger),
			checks: []health.Check{{Name: "redis", Fn: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}}},
			closer: func() { _ = client.Close() },
		}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath, loc, storeLogger)
		if err != nil {
			return nil, err
		}
		return &storeBackend{
			store:  s,
			checks: []health.Check{{Name: "sqlite", Fn: s.Ping}},
			closer: func() { _ = s.Close() },
		}, nil
	}

	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// buildManager registers one scheduler per configured definition.
func buildManager(cfg *config.Config, st store.SettingsStore, log *logger.Logger) (*jobs.Manager, error) {
	loc := cfg.Scheduler.Location
	clock := func() time.Time { return time.Now().In(loc) }

	manager := jobs.NewManager(log)
	for _, def := range cfg.Scheduler.Definitions {
		defaults, err := def.Settings()
		if err != nil {
			return nil, err
		}

		s, err := jobs.NewScheduler(jobs.Definition{
			Key:      def.Key,
			Name:     def.Name,
			Defaults: defaults,
			Job:      pipelineJob(def, cfg.Scheduler.PipelineTimeout, log),
		}, st, jobs.Options{
			PollInterval: cfg.Scheduler.PollInterval,
			Clock:        clock,
			Logger:       log,
		})
		if err != nil {
			return nil, err
		}
		if err := manager.Register(s); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// pipelineJob returns the webhook job for def, or a job that reports the
// missing endpoint as a failed run so the schedule stays observable.
func pipelineJob(def config.Definition, timeout time.Duration, log *logger.Logger) jobs.Job {
	if def.Endpoint != "" {
		return jobs.NewWebhookJob(jobs.WebhookConfig{
			Name:    def.Key,
			URL:     def.Endpoint,
			Timeout: timeout,
		}, log)
	}

	log.Warn().
		Str("action", "pipeline_unconfigured").
		Str("scheduler", def.Key).
		Msg("No pipeline endpoint configured; runs will be recorded as failed")
	return jobs.NewFuncJob(def.Key, func(context.Context) (jobs.Result, error) {
		return jobs.Result{
			Success: false,
			Message: fmt.Sprintf("no pipeline endpoint configured for %s", def.Key),
		}, nil
	})
}
