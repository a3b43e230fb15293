package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metersquare/internal/config"
	"metersquare/internal/infra"
	"metersquare/internal/router"
	"metersquare/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if cfg.RunMigrations {
		if err := infra.RunMigrations(cfg.DatabaseURL, cfg.Env != "production"); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	// Redis is optional: without it the dashboard is never cached and
	// notifications are dropped with a warning.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	} else {
		log.Warn().Msg("REDIS_URL not set; notifications and dashboard cache disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	if rdb != nil {
		// Worker processors are wired here (composition root) so the pool
		// has access to every delivery channel.
		notifications := worker.NewNotificationWorker(
			infra.NewMailer(cfg),
			infra.NewGatewayClient(cfg.NotifyGatewayURL),
			cb,
		)
		worker.StartWorkerPool(ctx, worker.PoolConfig{
			RDB:         rdb,
			Workers:     cfg.WorkerPoolSize,
			MaxAttempts: cfg.NotifyMaxAttempts,
			Processors:  map[string]worker.Processor{worker.JobTypeNotification: notifications},
		})
		worker.StartRedriveCron(ctx, worker.RedriveCronConfig{
			RDB:   rdb,
			CB:    cb,
			Queue: worker.QueueNotifications,
		})
	}

	r := router.New(cfg, db, rdb, router.Deps{
		Notifier: worker.NewDispatcher(rdb),
		Breaker:  cb,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("metersquare listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

// setupLogger configures the global zerolog logger. dev: pretty, prod: JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
