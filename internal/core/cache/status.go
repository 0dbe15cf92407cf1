// Package cache holds the per-user status cache. The cache is never
// authoritative: every value is re-derivable from the job store, and a cache
// failure degrades to a store read, never to a request failure.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Ericatici/video-service/internal/core/job"
)

// StatusCache is the cache-aside contract: populated on read miss, explicitly
// invalidated by every writer of job state.
type StatusCache interface {
	// Read returns the cached summaries and true on a hit. Any cache error
	// counts as a miss.
	Read(ctx context.Context, owner string) ([]job.Summary, bool)

	// Write stores the summaries under the owner's key with the configured
	// TTL. Failures are logged and dropped.
	Write(ctx context.Context, owner string, summaries []job.Summary)

	// Invalidate removes the owner's entry. Failures are logged and dropped;
	// the TTL bounds the resulting staleness.
	Invalidate(ctx context.Context, owner string)
}

type RedisStatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatusCache(rdb *redis.Client, ttl time.Duration) *RedisStatusCache {
	return &RedisStatusCache{rdb: rdb, ttl: ttl}
}

func statusKey(owner string) string {
	return "videos:status:" + owner
}

func (c *RedisStatusCache) Read(ctx context.Context, owner string) ([]job.Summary, bool) {
	raw, err := c.rdb.Get(ctx, statusKey(owner)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("owner", owner).Msg("status cache read failed")
		}
		return nil, false
	}

	var summaries []job.Summary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		// A corrupt entry is treated as a miss and will be overwritten by the
		// read-through path.
		log.Warn().Err(err).Str("owner", owner).Msg("status cache entry corrupt")
		return nil, false
	}
	return summaries, true
}

func (c *RedisStatusCache) Write(ctx context.Context, owner string, summaries []job.Summary) {
	raw, err := json.Marshal(summaries)
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("status cache marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, statusKey(owner), raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("status cache write failed")
	}
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, owner string) {
	if err := c.rdb.Del(ctx, statusKey(owner)).Err(); err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("status cache invalidate failed")
	}
}

var _ StatusCache = (*RedisStatusCache)(nil)
