package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Ericatici/video-service/internal/core/cache"
	"github.com/Ericatici/video-service/internal/core/job"
)

// JobLister is the read slice of the job store used by the status path.
type JobLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]job.Job, error)
}

// StatusReader serves per-user job summaries cache-aside: cache hit returns
// immediately, a miss loads from the store and repopulates the cache.
type StatusReader struct {
	jobs  JobLister
	cache cache.StatusCache
}

func NewStatusReader(jobs JobLister, statusCache cache.StatusCache) *StatusReader {
	return &StatusReader{jobs: jobs, cache: statusCache}
}

// Status returns the owner's job summaries, oldest first. A user with no
// jobs gets an empty slice, not an error.
func (s *StatusReader) Status(ctx context.Context, userID uuid.UUID) ([]job.Summary, error) {
	owner := userID.String()

	if summaries, ok := s.cache.Read(ctx, owner); ok {
		return summaries, nil
	}

	jobs, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	summaries := make([]job.Summary, 0, len(jobs))
	for i := range jobs {
		summaries = append(summaries, jobs[i].Summary())
	}

	s.cache.Write(ctx, owner, summaries)
	return summaries, nil
}
