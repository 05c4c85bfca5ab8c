package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docsync/core/internal/config"
	"github.com/docsync/core/pkg/jobs"
	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/server"
)

func main() {
	// Parse command line flags
	var (
		jobKey = flag.String("job", "", "Scheduler key to trigger once (e.g. comprehensive-sync, language-sync)")
		once   = flag.Bool("once", false, "Trigger the scheduler given by -job once and exit")
	)
	flag.Parse()

	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("scheduler")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "config_failed").
			Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "store_failed").
			Str("driver", cfg.Store.Driver).
			Msg("Failed to open settings store")
	}
	defer backend.close()

	manager, err := buildManager(cfg, backend.store, log)
	if err != nil {
		backend.close()
		log.Fatal().
			Err(err).
			Str("action", "scheduler_setup_failed").
			Msg("Failed to register schedulers")
	}

	// Handle single trigger execution
	if *once || *jobKey != "" {
		code := runOnce(ctx, manager, *jobKey, log)
		backend.close()
		os.Exit(code)
	}

	if err := manager.Start(ctx); err != nil {
		log.Error().
			Err(err).
			Str("action", "scheduler_start_failed").
			Msg("Some schedulers failed to start")
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		TriggerInterval: cfg.Scheduler.TriggerInterval,
		TriggerBurst:    cfg.Scheduler.TriggerBurst,
	}, manager, log, backend.checks...)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	log.Info().
		Str("action", "service_started").
		Int("schedulers", len(manager.Schedulers())).
		Str("store", cfg.Store.Driver).
		Dur("poll_interval", cfg.Scheduler.PollInterval).
		Msg("Scheduler service started")

	select {
	case <-ctx.Done():
		log.Info().Str("action", "shutdown").Msg("Shutting down scheduler service")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Str("action", "server_failed").Msg("Admin API stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("action", "server_shutdown_failed").Msg("Admin API did not stop cleanly")
	}
	manager.Stop()

	log.Info().Str("action", "shutdown_complete").Msg("Scheduler service stopped")
}

// runOnce performs one manual trigger and returns the process exit code.
func runOnce(ctx context.Context, manager *jobs.Manager, key string, log *logger.Logger) int {
	if key == "" {
		log.Error().Str("action", "run_once_failed").Msg("-once requires -job <scheduler key>")
		return 2
	}

	s, err := manager.Get(key)
	if err != nil {
		log.Error().Err(err).Str("action", "run_once_failed").Str("scheduler", key).Msg("Unknown scheduler")
		return 2
	}

	outcome, err := s.TriggerManualSync(ctx)
	if err != nil {
		log.Error().Err(err).Str("action", "run_once_failed").Str("scheduler", key).Msg("Manual trigger failed")
		return 1
	}
	if !outcome.Success {
		log.Error().
			Str("action", "run_once_failed").
			Str("scheduler", key).
			Str("run_id", outcome.RunID).
			Str("result_message", outcome.Message).
			Msg("Sync run reported failure")
		return 1
	}

	log.Info().
		Str("action", "run_once_complete").
		Str("scheduler", key).
		Str("run_id", outcome.RunID).
		Dur("duration", outcome.Duration()).
		Msg("Sync run completed successfully")
	return 0
}
