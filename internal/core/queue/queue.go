// Package queue provides the durable work queue decoupling job submission
// from the worker pool. Delivery is at-least-once: claimed refs that are
// never acknowledged become redeliverable after the visibility timeout.
package queue

import (
	"context"
	"time"
)

// Queue carries job references (job ids) from the submission path to workers.
type Queue interface {
	// Enqueue makes the job ref available for consumption.
	Enqueue(ctx context.Context, jobID string) error

	// Consume blocks until a ref is available or ctx is done. A consumed ref
	// is leased, not removed: it must be Acked, or it will be redelivered.
	Consume(ctx context.Context) (string, error)

	// Ack releases the lease and removes the ref permanently.
	Ack(ctx context.Context, jobID string) error

	// ScheduleRetry re-enqueues the ref after the given delay and releases
	// the current lease.
	ScheduleRetry(ctx context.Context, jobID string, delay time.Duration) error
}
