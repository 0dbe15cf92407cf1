package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ericatici/video-service/internal/core/job"
)

type fakeLister struct {
	jobs  []job.Job
	err   error
	calls int
}

func (f *fakeLister) ListByUser(context.Context, uuid.UUID) ([]job.Job, error) {
	f.calls++
	return f.jobs, f.err
}

type recordingCache struct {
	entries map[string][]job.Summary
	reads   int
	writes  int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string][]job.Summary)}
}

func (c *recordingCache) Read(_ context.Context, owner string) ([]job.Summary, bool) {
	c.reads++
	s, ok := c.entries[owner]
	return s, ok
}

func (c *recordingCache) Write(_ context.Context, owner string, summaries []job.Summary) {
	c.writes++
	c.entries[owner] = summaries
}

func (c *recordingCache) Invalidate(_ context.Context, owner string) {
	delete(c.entries, owner)
}

func TestStatusCacheHitSkipsStore(t *testing.T) {
	userID := uuid.New()
	cached := []job.Summary{{ID: uuid.New(), Filename: "a.mp4", Status: job.StatusQueued}}

	c := newRecordingCache()
	c.entries[userID.String()] = cached
	lister := &fakeLister{}

	got, err := NewStatusReader(lister, c).Status(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Zero(t, lister.calls)
}

func TestStatusMissLoadsAndRepopulates(t *testing.T) {
	userID := uuid.New()
	lister := &fakeLister{jobs: []job.Job{
		{ID: uuid.New(), SourceName: "a.mp4", Status: job.StatusProcessing},
		{ID: uuid.New(), SourceName: "b.mkv", Status: job.StatusCompleted},
	}}
	c := newRecordingCache()

	got, err := NewStatusReader(lister, c).Status(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.mp4", got[0].Filename)
	assert.Equal(t, job.StatusCompleted, got[1].Status)

	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, 1, c.writes)
	assert.Equal(t, got, c.entries[userID.String()])
}

func TestStatusEmptyListIsNotNil(t *testing.T) {
	got, err := NewStatusReader(&fakeLister{}, newRecordingCache()).Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStatusStoreErrorPropagates(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	c := newRecordingCache()

	_, err := NewStatusReader(lister, c).Status(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Zero(t, c.writes)
}
