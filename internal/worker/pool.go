// Package worker runs the conversion worker pool: it consumes job refs from
// the queue, executes the conversion, applies state transitions on the job
// store, keeps the status cache consistent and publishes terminal events.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ericatici/video-service/internal/core/cache"
	"github.com/Ericatici/video-service/internal/core/convert"
	"github.com/Ericatici/video-service/internal/core/event"
	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/queue"
	"github.com/Ericatici/video-service/internal/core/storage"
)

// Outcomes recorded on the processed counter.
const (
	outcomeCompleted = "completed"
	outcomeError     = "error"
	outcomeRetried   = "retried"
	outcomeSkipped   = "skipped"
	outcomeRequeued  = "requeued"
)

// JobStore is the slice of the job store the worker needs. All transition
// methods are guarded by source state and return job.ErrStaleTransition when
// another worker got there first.
type JobStore interface {
	Get(ctx context.Context, id uuid.UUID) (*job.Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputName string) error
	MarkError(ctx context.Context, id uuid.UUID, detail string) error
	MarkQueuedForRetry(ctx context.Context, id uuid.UUID) error
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
}

// Pool is the explicitly constructed worker context: every dependency is
// injected, nothing is reached through package globals.
type Pool struct {
	queue      queue.Queue
	jobs       JobStore
	cache      cache.StatusCache
	events     event.Publisher
	converter  convert.Converter
	uploads    storage.Provider
	processed  storage.Provider
	metrics    *Metrics
	workers    int
	maxRetries int
	retryDelay time.Duration
}

type PoolConfig struct {
	Queue      queue.Queue
	Jobs       JobStore
	Cache      cache.StatusCache
	Events     event.Publisher
	Converter  convert.Converter
	Uploads    storage.Provider
	Processed  storage.Provider
	Metrics    *Metrics
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func NewPool(cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      cfg.Queue,
		jobs:       cfg.Jobs,
		cache:      cfg.Cache,
		events:     cfg.Events,
		converter:  cfg.Converter,
		uploads:    cfg.Uploads,
		processed:  cfg.Processed,
		metrics:    cfg.Metrics,
		workers:    workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Run starts the worker goroutines and blocks until ctx is done and all
// workers have returned.
func (p *Pool) Run(ctx context.Context) {
	log.Info().Int("workers", p.workers).Msg("worker pool started")

	done := make(chan struct{}, p.workers)
	for i := 0; i < p.workers; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			p.runWorker(ctx, n)
		}(i + 1)
	}

	for i := 0; i < p.workers; i++ {
		<-done
	}
	log.Info().Msg("worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, n int) {
	p.metrics.Alive.Inc()
	defer p.metrics.Alive.Dec()

	for {
		ref, err := p.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Int("worker", n).Msg("worker shutting down")
				return
			}
			log.Error().Err(err).Int("worker", n).Msg("consume failed")
			time.Sleep(2 * time.Second)
			continue
		}

		start := time.Now()
		outcome, err := p.Process(ctx, ref)
		if err != nil {
			// Not acked: the ref is redelivered after the lease expires.
			log.Error().Err(err).Int("worker", n).Str("job_id", ref).Msg("processing failed, awaiting redelivery")
			p.metrics.Processed.WithLabelValues(outcomeRequeued).Inc()
			continue
		}

		p.metrics.Processed.WithLabelValues(outcome).Inc()
		if outcome == outcomeCompleted || outcome == outcomeError {
			p.metrics.Duration.Observe(time.Since(start).Seconds())
		}
	}
}

// Process handles one job ref. It is idempotent: a ref delivered twice for
// an already-terminal job acks without side effects. A returned error means
// the ref was deliberately left unacked for redelivery.
func (p *Pool) Process(ctx context.Context, ref string) (string, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		// Poison ref, drop it.
		log.Warn().Str("ref", ref).Msg("unparseable job ref, dropping")
		return outcomeSkipped, p.queue.Ack(ctx, ref)
	}

	j, err := p.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			// Submission writes the job before enqueueing, so a missing row
			// is not transient.
			log.Warn().Str("job_id", ref).Msg("job ref does not resolve, dropping")
			return outcomeSkipped, p.queue.Ack(ctx, ref)
		}
		return outcomeRequeued, err
	}

	if j.Status.Terminal() {
		log.Debug().Str("job_id", ref).Str("status", string(j.Status)).Msg("job already terminal, skipping")
		return outcomeSkipped, p.queue.Ack(ctx, ref)
	}

	if j.Status == job.StatusQueued {
		if err := p.jobs.MarkProcessing(ctx, id); err != nil {
			if errors.Is(err, job.ErrStaleTransition) {
				// Raced another worker; re-read and skip if it finished.
				return p.resolveStale(ctx, id, ref)
			}
			return outcomeRequeued, err
		}
	}

	attempts, err := p.jobs.IncrementAttempts(ctx, id)
	if err != nil {
		return outcomeRequeued, err
	}

	outputName := j.ID.String() + "_converted.mp4"
	log.Info().Str("job_id", ref).Str("source", j.SourceName).Int("attempt", attempts).Msg("converting")

	convErr := p.converter.Convert(ctx, p.uploads.Path(j.SourceName), p.processed.Path(outputName))
	if convErr == nil {
		return p.complete(ctx, j, outputName)
	}
	return p.fail(ctx, j, attempts, convErr)
}

func (p *Pool) complete(ctx context.Context, j *job.Job, outputName string) (string, error) {
	if err := p.jobs.MarkCompleted(ctx, j.ID, outputName); err != nil {
		if errors.Is(err, job.ErrStaleTransition) {
			// Another worker already finished this job; it owns the event.
			return outcomeSkipped, p.queue.Ack(ctx, j.ID.String())
		}
		return outcomeRequeued, err
	}

	p.cache.Invalidate(ctx, j.UserID.String())
	p.events.Publish(ctx, event.Event{
		Type:   event.EventVideoCompleted,
		JobID:  j.ID.String(),
		UserID: j.UserID.String(),
	})

	log.Info().Str("job_id", j.ID.String()).Str("output", outputName).Msg("job completed")
	return outcomeCompleted, p.queue.Ack(ctx, j.ID.String())
}

func (p *Pool) fail(ctx context.Context, j *job.Job, attempts int, convErr error) (string, error) {
	if attempts <= p.maxRetries {
		if err := p.jobs.MarkQueuedForRetry(ctx, j.ID); err != nil {
			if errors.Is(err, job.ErrStaleTransition) {
				return outcomeSkipped, p.queue.Ack(ctx, j.ID.String())
			}
			return outcomeRequeued, err
		}
		if err := p.queue.ScheduleRetry(ctx, j.ID.String(), p.retryDelay); err != nil {
			return outcomeRequeued, err
		}
		log.Warn().Err(convErr).Str("job_id", j.ID.String()).Int("attempt", attempts).Dur("delay", p.retryDelay).Msg("conversion failed, retry scheduled")
		return outcomeRetried, nil
	}

	if err := p.jobs.MarkError(ctx, j.ID, convErr.Error()); err != nil {
		if errors.Is(err, job.ErrStaleTransition) {
			return outcomeSkipped, p.queue.Ack(ctx, j.ID.String())
		}
		return outcomeRequeued, err
	}

	p.cache.Invalidate(ctx, j.UserID.String())
	p.events.Publish(ctx, event.Event{
		Type:   event.EventVideoError,
		JobID:  j.ID.String(),
		UserID: j.UserID.String(),
		Error:  convErr.Error(),
	})

	log.Error().Err(convErr).Str("job_id", j.ID.String()).Int("attempts", attempts).Msg("job failed, retries exhausted")
	return outcomeError, p.queue.Ack(ctx, j.ID.String())
}

func (p *Pool) resolveStale(ctx context.Context, id uuid.UUID, ref string) (string, error) {
	j, err := p.jobs.Get(ctx, id)
	if err != nil {
		return outcomeRequeued, err
	}
	if j.Status.Terminal() {
		return outcomeSkipped, p.queue.Ack(ctx, ref)
	}
	// Some other worker holds the job; leave the ref to the lease.
	return outcomeRequeued, job.ErrStaleTransition
}
