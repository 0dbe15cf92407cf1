package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis key naming. All keys are prefixed with "videojobs:" to avoid
// collisions with the status cache.
const (
	readyKey      = "videojobs:ready"
	processingKey = "videojobs:processing"
	scheduledKey  = "videojobs:scheduled"
	leasesKey     = "videojobs:leases"

	claimSlot       = 1 * time.Second
	promoteInterval = 5 * time.Second
	promoteBatch    = 100
)

// RedisQueue is a reliable list queue: Consume atomically moves a ref from
// the ready list to the processing list (BLMOVE) and records a lease
// deadline. Ack removes the ref; the reaper pushes refs with expired leases
// back onto the ready list. Scheduled retries live in a sorted set scored by
// due time and are promoted by a background loop.
type RedisQueue struct {
	rdb               *redis.Client
	visibilityTimeout time.Duration
}

func NewRedisQueue(rdb *redis.Client, visibilityTimeout time.Duration) *RedisQueue {
	return &RedisQueue{
		rdb:               rdb,
		visibilityTimeout: visibilityTimeout,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, readyKey, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		id, err := q.rdb.BLMove(ctx, readyKey, processingKey, "RIGHT", "LEFT", claimSlot).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", fmt.Errorf("claim: %w", err)
		}

		deadline := time.Now().Add(q.visibilityTimeout).Unix()
		if err := q.rdb.HSet(ctx, leasesKey, id, deadline).Err(); err != nil {
			// Without a lease record the ref could be stuck in processing
			// forever, so put it back instead of handing it out.
			q.rdb.LRem(ctx, processingKey, 1, id)
			q.rdb.LPush(ctx, readyKey, id)
			return "", fmt.Errorf("record lease for %s: %w", id, err)
		}
		return id, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, jobID)
	pipe.HDel(ctx, leasesKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) ScheduleRetry(ctx context.Context, jobID string, delay time.Duration) error {
	due := float64(time.Now().Add(delay).Unix())
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, jobID)
	pipe.HDel(ctx, leasesKey, jobID)
	pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: due, Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule retry %s: %w", jobID, err)
	}
	return nil
}

// Maintain runs the reaper and the scheduled-retry promoter until ctx is
// done. Run one instance per worker process; the operations are safe to run
// concurrently from several processes.
func (q *RedisQueue) Maintain(ctx context.Context, reaperInterval time.Duration) {
	reap := time.NewTicker(reaperInterval)
	promote := time.NewTicker(promoteInterval)
	defer reap.Stop()
	defer promote.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reap.C:
			n, err := q.RequeueExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("queue reaper failed")
			} else if n > 0 {
				log.Info().Int("count", n).Msg("requeued refs with expired leases")
			}
		case <-promote.C:
			if err := q.PromoteScheduled(ctx); err != nil {
				log.Warn().Err(err).Msg("scheduled promotion failed")
			}
		}
	}
}

// RequeueExpired moves refs whose lease deadline has passed from the
// processing list back to the ready list. This is the recovery path for
// crashed workers: at-least-once delivery.
func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, error) {
	leases, err := q.rdb.HGetAll(ctx, leasesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("read leases: %w", err)
	}

	now := time.Now().Unix()
	moved := 0
	for id, raw := range leases {
		deadline, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || deadline > now {
			continue
		}
		// Remove from processing first; zero removed means a concurrent ack
		// won the race and there is nothing to requeue.
		removed, err := q.rdb.LRem(ctx, processingKey, 1, id).Result()
		if err != nil {
			return moved, fmt.Errorf("requeue %s: %w", id, err)
		}
		q.rdb.HDel(ctx, leasesKey, id)
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, readyKey, id).Err(); err != nil {
			return moved, fmt.Errorf("requeue %s: %w", id, err)
		}
		moved++
	}
	return moved, nil
}

// PromoteScheduled moves due retry refs from the scheduled set to the ready
// list.
func (q *RedisQueue) PromoteScheduled(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("read scheduled: %w", err)
	}

	for _, id := range ids {
		// ZRem first so two promoters cannot both push the same ref.
		removed, err := q.rdb.ZRem(ctx, scheduledKey, id).Result()
		if err != nil {
			return fmt.Errorf("promote %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, readyKey, id).Err(); err != nil {
			return fmt.Errorf("promote %s: %w", id, err)
		}
	}
	return nil
}

var _ Queue = (*RedisQueue)(nil)
