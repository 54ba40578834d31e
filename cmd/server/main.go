// Command server starts the document-processing API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/docqueue/internal/adapter/auth"
	"github.com/fairyhunter13/docqueue/internal/adapter/engine"
	"github.com/fairyhunter13/docqueue/internal/adapter/httpserver"
	"github.com/fairyhunter13/docqueue/internal/adapter/objectstore/miniostore"
	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/adapter/registry/redisreg"
	"github.com/fairyhunter13/docqueue/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/docqueue/internal/app"
	"github.com/fairyhunter13/docqueue/internal/config"
	"github.com/fairyhunter13/docqueue/internal/domain"
	"github.com/fairyhunter13/docqueue/internal/usecase"
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

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		slog.Error("upload dir create failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Token verifier: remote service in production, static file otherwise.
	var verifier domain.TokenVerifier
	switch {
	case cfg.AuthVerifyURL != "":
		verifier = auth.NewHTTPVerifier(cfg.AuthVerifyURL, cfg.AuthTimeout)
	case cfg.AuthTokensFile != "":
		verifier, err = auth.NewStaticVerifier(cfg.AuthTokensFile)
		if err != nil {
			slog.Error("token file load failed", slog.Any("error", err))
			os.Exit(1)
		}
	default:
		slog.Error("no auth configured, set AUTH_VERIFY_URL or AUTH_TOKENS_FILE")
		os.Exit(1)
	}

	// Object store is optional; without it upload_images falls back to the
	// raw markdown references.
	var store domain.ObjectStore
	if cfg.MinioEndpoint != "" {
		store, err = miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			slog.Error("object store connect failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() { _ = redisClient.Close() }()
	engineRegistry := redisreg.New(redisClient, cfg.HeartbeatInterval)

	// Local probe answers /engines when no worker has registered yet.
	localEngines := engine.NewRegistry(engine.Options{
		Device:          -1,
		MinerUModelsDir: cfg.MinerUModelsDir,
		FFmpegBin:       cfg.FFmpegBin,
	})

	srv := &httpserver.Server{
		Submit:         usecase.NewSubmitService(repo, cfg.UploadDir, cfg.MaxUploadMB<<20),
		Result:         usecase.NewResultService(repo, store),
		Queue:          usecase.NewQueueService(repo),
		Registry:       engineRegistry,
		LocalProbe:     localEngines.Probe,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		StaleTimeout:   cfg.StaleTimeout,
		RetentionAge:   cfg.RetentionAge(),
		ReadyCheck: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
	handler := app.NewRouter(cfg, srv, verifier)

	maintenance := &app.Maintenance{
		Repo:            repo,
		Log:             logger,
		RetentionAge:    cfg.RetentionAge(),
		StaleTimeout:    cfg.StaleTimeout,
		SweepInterval:   cfg.SweepInterval,
		CleanupInterval: cfg.CleanupInterval,
	}
	maintCtx, stopMaint := context.WithCancel(ctx)
	maintDone := make(chan struct{})
	go func() {
		defer close(maintDone)
		if err := maintenance.Run(maintCtx); err != nil {
			slog.Error("maintenance loops stopped", slog.Any("error", err))
		}
	}()

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.APIPort))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stopMaint()
	<-maintDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
