// Command worker starts the device-bound task worker pool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/adapter/registry/redisreg"
	"github.com/fairyhunter13/docqueue/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/docqueue/internal/config"
	"github.com/fairyhunter13/docqueue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
	repo := &postgres.TaskRepo{Pool: pool}

	if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
		slog.Error("output dir create failed", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() { _ = redisClient.Close() }()
	publisher := redisreg.New(redisClient, cfg.HeartbeatInterval)

	p := worker.NewPool(worker.PoolConfig{
		Prefix:            cfg.WorkerPrefix,
		Devices:           cfg.Devices,
		WorkersPerDevice:  cfg.WorkersPerDevice,
		OutputRoot:        cfg.OutputPath,
		PollInterval:      cfg.PollInterval,
		MinerUModelsDir:   cfg.MinerUModelsDir,
		FFmpegBin:         cfg.FFmpegBin,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, repo, publisher, logger)

	for _, w := range p.Workers() {
		slog.Info("worker ready", slog.String("worker_id", w.ID), slog.Int("device", w.Device))
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		slog.Info("metrics listener starting", slog.Int("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics listener failed", slog.Any("error", err))
		}
	}()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker pool starting",
		slog.Int("workers", cfg.WorkerCount()),
		slog.Duration("poll_interval", cfg.PollInterval))
	if err := p.Run(runCtx); err != nil {
		slog.Error("worker pool stopped", slog.Any("error", err))
		os.Exit(1)
	}
	_ = metricsSrv.Shutdown(context.Background())
	slog.Info("worker pool stopped")
}
