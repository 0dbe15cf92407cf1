package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/Ericatici/video-service/internal/config"
	"github.com/Ericatici/video-service/internal/core/cache"
	"github.com/Ericatici/video-service/internal/core/convert"
	"github.com/Ericatici/video-service/internal/core/event"
	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/queue"
	"github.com/Ericatici/video-service/internal/core/storage"
	"github.com/Ericatici/video-service/internal/database"
)

// Run wires up and runs the worker process until ctx is cancelled. It hosts
// the queue maintenance loops (lease reaper, scheduled-retry promoter), the
// conversion worker pool and a metrics endpoint.
func Run(ctx context.Context, cfg *config.Config) error {
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	q := queue.NewRedisQueue(rdb, cfg.VisibilityTimeout())
	go q.Maintain(ctx, cfg.ReaperInterval())

	workers := NewPool(PoolConfig{
		Queue:      q,
		Jobs:       job.NewStore(pool),
		Cache:      cache.NewRedisStatusCache(rdb, cfg.StatusTTL()),
		Events:     event.NewRedisPublisher(rdb),
		Converter:  convert.NewFFmpeg(cfg.Worker.FFmpegBinary),
		Uploads:    uploads,
		Processed:  processed,
		Metrics:    NewMetrics(reg),
		Workers:    cfg.Worker.Count,
		MaxRetries: cfg.Worker.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
	})

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler: metricsMux(reg),
	}
	go func() {
		log.Info().Str("addr", metricsSrv.Addr).Msg("worker metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	workers.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
