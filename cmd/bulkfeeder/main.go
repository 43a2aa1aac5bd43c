package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/searchclient/internal/feeder"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/cache"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/client"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/tracing"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetupConfig(cfg.Logging)
	slog.Info("starting bulk feeder",
		"engine", cfg.Engine.URLs,
		"driver", cfg.Engine.Driver,
		"topic", cfg.Kafka.Topics.Actions,
		"batch_size", cfg.Feeder.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bulk feeder failed", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("bulk feeder stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	tr, err := transport.New(cfg, m)
	if err != nil {
		return fmt.Errorf("create engine transport: %w", err)
	}

	checker := health.NewChecker(cfg.Transport.Timeout)
	opts := []client.Option{client.WithMetrics(m)}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rc.Close()
		opts = append(opts, client.WithCache(cache.New(rc, cfg.Redis.CacheTTL, m)))
		checker.RegisterPinger("redis", rc, false)
	}

	c := client.New(tr, opts...)
	checker.RegisterPinger("engine", c, true)

	var dead feeder.DeadLetters
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pg.Close()
		store := postgres.NewDeadLetterStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("prepare dead letter table: %w", err)
		}
		dead = store
		checker.RegisterPinger("postgres", pg, true)
	} else {
		slog.Warn("dead letter store disabled, rejected actions are only logged")
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Actions)
	defer consumer.Close()

	f := feeder.New(c, consumer, dead, cfg.Feeder, m, feeder.WithTracer(tracing.New(cfg.Tracing)))
	slog.Info("bulk feeder ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.Actions,
		"group", cfg.Kafka.ConsumerGroup,
	)

	return f.Run(ctx)
}
