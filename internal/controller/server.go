// Package controller hosts the HTTP API process: it owns the database pool,
// the Redis client and the request-side services, and wires them into the
// echo server.
package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/Ericatici/video-service/internal/config"
	"github.com/Ericatici/video-service/internal/controller/api"
	"github.com/Ericatici/video-service/internal/controller/api/handlers"
	"github.com/Ericatici/video-service/internal/core/cache"
	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/queue"
	"github.com/Ericatici/video-service/internal/core/service"
	"github.com/Ericatici/video-service/internal/core/storage"
	"github.com/Ericatici/video-service/internal/core/user"
	"github.com/Ericatici/video-service/internal/database"
)

// Run starts the API server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(rdb.Ping(ctx).Err())
	}); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	uploads, err := storage.NewLocalProvider(cfg.Media.UploadDir)
	if err != nil {
		return fmt.Errorf("upload storage: %w", err)
	}
	processed, err := storage.NewLocalProvider(cfg.Media.ProcessedDir)
	if err != nil {
		return fmt.Errorf("processed storage: %w", err)
	}

	jobs := job.NewStore(pool)
	users := user.NewStore(pool)
	statusCache := cache.NewRedisStatusCache(rdb, cfg.StatusTTL())
	jobQueue := queue.NewRedisQueue(rdb, cfg.VisibilityTimeout())

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handlers.InitErrors()
	api.SetupRouter(e, api.RouterConfig{
		Users:     users,
		JWTSecret: cfg.Auth.JWTSecret,
		JWTExpiry: cfg.JWTExpiry(),
		Submit:    service.NewSubmissionService(jobs, jobQueue, statusCache, uploads),
		Status:    service.NewStatusReader(jobs, statusCache),
		Download:  service.NewDownloadService(jobs, processed),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("api server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
