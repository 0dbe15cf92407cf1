// Package event publishes job lifecycle events for downstream services.
// Delivery is best-effort relative to state durability: the job store is the
// durable record, the event is a notification hint.
package event

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Publisher is fire-and-forget: a failed publish must never roll back the
// state transition that triggered it.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// RedisPublisher broadcasts events over Redis pub/sub. The channel name is
// the event type, so subscribers can filter by pattern (video.*) or exact
// type.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event", string(e.Type)).Msg("event marshal failed")
		return
	}

	if err := p.rdb.Publish(ctx, string(e.Type), payload).Err(); err != nil {
		log.Error().Err(err).Str("event", string(e.Type)).Str("job_id", e.JobID).Msg("event publish failed")
		return
	}
	log.Debug().Str("event", string(e.Type)).Str("job_id", e.JobID).Msg("event published")
}

var _ Publisher = (*RedisPublisher)(nil)
