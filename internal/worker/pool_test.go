package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ericatici/video-service/internal/core/event"
	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/queue"
	"github.com/Ericatici/video-service/internal/core/storage"
)

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job.Job

	failIncrement bool
}

func newFakeJobStore(jobs ...*job.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[uuid.UUID]*job.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) Get(_ context.Context, id uuid.UUID) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) transition(id uuid.UUID, from, to job.Status, apply func(j *job.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return job.ErrStaleTransition
	}
	j.Status = to
	j.Version++
	if apply != nil {
		apply(j)
	}
	return nil
}

func (s *fakeJobStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return s.transition(id, job.StatusQueued, job.StatusProcessing, nil)
}

func (s *fakeJobStore) MarkCompleted(_ context.Context, id uuid.UUID, outputName string) error {
	return s.transition(id, job.StatusProcessing, job.StatusCompleted, func(j *job.Job) {
		j.OutputName = outputName
	})
}

func (s *fakeJobStore) MarkError(_ context.Context, id uuid.UUID, detail string) error {
	return s.transition(id, job.StatusProcessing, job.StatusError, func(j *job.Job) {
		j.ErrorMessage = detail
	})
}

func (s *fakeJobStore) MarkQueuedForRetry(_ context.Context, id uuid.UUID) error {
	return s.transition(id, job.StatusProcessing, job.StatusQueued, nil)
}

func (s *fakeJobStore) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncrement {
		return 0, errors.New("store unavailable")
	}
	j, ok := s.jobs[id]
	if !ok {
		return 0, job.ErrNotFound
	}
	j.Attempts++
	return j.Attempts, nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *fakeCache) Read(context.Context, string) ([]job.Summary, bool) { return nil, false }
func (c *fakeCache) Write(context.Context, string, []job.Summary)      {}
func (c *fakeCache) Invalidate(_ context.Context, owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, owner)
}

func (c *fakeCache) invalidations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *fakePublisher) Publish(_ context.Context, e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakePublisher) published() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.events...)
}

type fakeConverter struct {
	err   error
	calls int
}

func (c *fakeConverter) Convert(_ context.Context, _, outputPath string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

type stubProvider struct {
	dir string
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) Path(name string) string {
	return filepath.Join(p.dir, filepath.Base(name))
}
func (p *stubProvider) Save(context.Context, string, io.Reader) error { return nil }
func (p *stubProvider) Open(context.Context, string) (*os.File, storage.FileMetadata, error) {
	return nil, storage.FileMetadata{}, os.ErrNotExist
}
func (p *stubProvider) Exists(context.Context, string) (bool, error) { return false, nil }
func (p *stubProvider) Delete(context.Context, string) error         { return nil }

type fixture struct {
	pool      *Pool
	queue     *queue.Memory
	jobs      *fakeJobStore
	cache     *fakeCache
	events    *fakePublisher
	converter *fakeConverter
}

func newFixture(t *testing.T, jobs ...*job.Job) *fixture {
	t.Helper()
	f := &fixture{
		queue:     queue.NewMemory(),
		jobs:      newFakeJobStore(jobs...),
		cache:     &fakeCache{},
		events:    &fakePublisher{},
		converter: &fakeConverter{},
	}
	dir := t.TempDir()
	f.pool = NewPool(PoolConfig{
		Queue:      f.queue,
		Jobs:       f.jobs,
		Cache:      f.cache,
		Events:     f.events,
		Converter:  f.converter,
		Uploads:    &stubProvider{dir: dir},
		Processed:  &stubProvider{dir: dir},
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	})
	return f
}

func queuedJob() *job.Job {
	return &job.Job{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		SourceName: "clip.mov",
		Status:     job.StatusQueued,
	}
}

func TestProcessCompletesJob(t *testing.T) {
	j := queuedJob()
	f := newFixture(t, j)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, j.ID.String()))
	ref, err := f.queue.Consume(ctx)
	require.NoError(t, err)

	outcome, err := f.pool.Process(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, outcomeCompleted, outcome)

	got, err := f.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, j.ID.String()+"_converted.mp4", got.OutputName)
	assert.Equal(t, 1, got.Attempts)

	assert.Equal(t, []string{j.UserID.String()}, f.cache.invalidations())

	events := f.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, event.EventVideoCompleted, events[0].Type)
	assert.Equal(t, j.ID.String(), events[0].JobID)

	assert.Zero(t, f.queue.InFlight())
}

func TestProcessSchedulesRetryThenErrors(t *testing.T) {
	j := queuedJob()
	f := newFixture(t, j)
	f.converter.err = errors.New("ffmpeg exited with status 1")
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, j.ID.String()))
	ref, err := f.queue.Consume(ctx)
	require.NoError(t, err)

	// First attempt fails and is rescheduled, not terminal.
	outcome, err := f.pool.Process(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, outcomeRetried, outcome)

	got, err := f.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, got.Status)
	assert.Empty(t, f.events.published())

	// The scheduled ref comes back after the delay.
	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	ref, err = f.queue.Consume(consumeCtx)
	require.NoError(t, err)

	// Second attempt exhausts the retry budget.
	outcome, err = f.pool.Process(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, outcomeError, outcome)

	got, err = f.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusError, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Contains(t, got.ErrorMessage, "ffmpeg")

	events := f.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, event.EventVideoError, events[0].Type)
	assert.Equal(t, j.UserID.String(), events[0].UserID)
}

func TestProcessSkipsTerminalJob(t *testing.T) {
	j := queuedJob()
	j.Status = job.StatusCompleted
	j.OutputName = j.ID.String() + "_converted.mp4"
	f := newFixture(t, j)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, j.ID.String()))
	ref, err := f.queue.Consume(ctx)
	require.NoError(t, err)

	outcome, err := f.pool.Process(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, outcomeSkipped, outcome)

	// A redelivered ref for a finished job never converts, invalidates or
	// publishes again.
	assert.Zero(t, f.converter.calls)
	assert.Empty(t, f.cache.invalidations())
	assert.Empty(t, f.events.published())
	assert.Zero(t, f.queue.InFlight())
}

func TestProcessDropsPoisonRefs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.pool.Process(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, outcomeSkipped, outcome)

	// A well-formed ref with no matching row is dropped too.
	outcome, err = f.pool.Process(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, outcomeSkipped, outcome)

	assert.Zero(t, f.converter.calls)
}

func TestProcessLeavesRefOnStoreFailure(t *testing.T) {
	j := queuedJob()
	f := newFixture(t, j)
	f.jobs.failIncrement = true
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, j.ID.String()))
	ref, err := f.queue.Consume(ctx)
	require.NoError(t, err)

	_, err = f.pool.Process(ctx, ref)
	require.Error(t, err)

	// Unacked: still leased, so the reaper can redeliver it.
	assert.Equal(t, 1, f.queue.InFlight())
	assert.Empty(t, f.events.published())
}
