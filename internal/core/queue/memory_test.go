package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEnqueueConsumeAck(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	require.NoError(t, q.Enqueue(ctx, "job-2"))

	id, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, 1, q.Pending())
	assert.Equal(t, 1, q.InFlight())

	require.NoError(t, q.Ack(ctx, id))
	assert.Equal(t, 0, q.InFlight())
}

func TestMemoryConsumeBlocksUntilEnqueue(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	got := make(chan string, 1)
	go func() {
		id, err := q.Consume(ctx)
		if err == nil {
			got <- id
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "job-late"))

	select {
	case id := <-got:
		assert.Equal(t, "job-late", id)
	case <-time.After(time.Second):
		t.Fatal("consume did not observe enqueue")
	}
}

func TestMemoryConsumeHonorsContext(t *testing.T) {
	q := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryScheduleRetryRedelivers(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))
	id, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.ScheduleRetry(ctx, id, 20*time.Millisecond))
	assert.Equal(t, 0, q.InFlight())

	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	redelivered, err := q.Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", redelivered)
}
