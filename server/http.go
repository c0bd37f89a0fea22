package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"web-dlp/config"
	"web-dlp/constant"
	jobHandler "web-dlp/handler"
	"web-dlp/pkg/queue"
	"web-dlp/pkg/rabbitmq"
	"web-dlp/pkg/ratelimit"
	"web-dlp/pkg/storage"
	"web-dlp/repository"
	"web-dlp/service"
)

const workerMaxIdle = 2 * time.Second

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	isProduction := cfg.App.Environment == constant.EnvironmentProduction.String()
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", isProduction).Send()
	if isProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to set up result storage")
		return err
	}

	publisher := newPublisher(ctx, cfg)

	repo := repository.NewRepo()
	downloadService := service.NewService(repo, store, service.NewYtDlpDownloader(cfg.Download), publisher, service.Options{
		Timeout:  cfg.Download.Timeout,
		Attempts: cfg.Download.Attempts,
	})
	jobService := service.NewJobService(repo, store)
	cleaner := service.NewCleaner(repo, store, service.PolicyFromConfig(cfg.Cleanup))
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	r := gin.New()
	err = jobHandler.RegisterRoutes(r, jobHandler.HttpDependencies{
		JobService:     jobService,
		Limiter:        limiter,
		Throttle:       ratelimit.NewThrottle(cfg.Throttle.RPS, cfg.Throttle.Burst),
		Logger:         zerolog.Ctx(ctx),
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Strs("trusted_proxies", cfg.Server.TrustedProxies).Msg("invalid trusted proxies")
		return err
	}

	serviceDeps := jobHandler.ServiceDependencies{
		DownloadService: downloadService,
	}

	workersDone := make(chan struct{})
	jobConsumer := queue.NewConsumer(repo, cfg.Server.Workers, workerMaxIdle, jobHandler.JobHandler)
	go func() {
		defer close(workersDone)
		if err := jobConsumer.Consume(ctx, serviceDeps); err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("job consumer error")
		}
	}()

	go cleaner.Run(ctx)
	go limiter.Run(ctx)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", handler.Addr).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		zerolog.Ctx(ctx).Error().Err(err).Msg("http server failed")
		cancel()
		<-workersDone
		return err
	}

	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("env", cfg.App.Environment).Msg("http shutdown")
	}

	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		zerolog.Ctx(ctx).Warn().Msg("workers still busy at shutdown deadline")
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch constant.StorageBackend(cfg.Storage.Backend) {
	case constant.StorageBackendMinIO:
		client, err := config.NewMinIOClient(cfg.Storage.MinIO)
		if err != nil {
			return nil, err
		}
		return storage.NewMinIOStorage(ctx, client, cfg.Storage.MinIO.Bucket, cfg.Storage.MinIO.Prefix, cfg.Download.Dir)
	default:
		return storage.NewLocalStorage(cfg.Download.Dir)
	}
}

// newPublisher falls back to a no-op publisher when the broker is disabled
// or unreachable.
func newPublisher(ctx context.Context, cfg *config.Config) rabbitmq.Publisher {
	if cfg.Queue == nil || !cfg.Queue.Enabled {
		return rabbitmq.NopPublisher{}
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		return rabbitmq.NopPublisher{}
	}

	publisher, err := rabbitmq.NewPublisher(ctx, conn, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewPublisher")
		return rabbitmq.NopPublisher{}
	}
	return publisher
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}
