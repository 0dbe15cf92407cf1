// Package service implements the job lifecycle pipeline around the stores:
// submission, status reads, and download packaging.
package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ericatici/video-service/internal/core/cache"
	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/storage"
)

// allowedExtensions is the media container allow-list for uploads.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
}

// JobCreator is the slice of the job store the submission path needs.
type JobCreator interface {
	Create(ctx context.Context, userID uuid.UUID, sourceName string) (*job.Job, error)
}

// Enqueuer is the enqueue-only slice of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// SubmissionService validates an uploaded artifact, persists the job and
// hands it to the queue. The store write strictly precedes the enqueue so a
// worker never consumes a ref that does not resolve.
type SubmissionService struct {
	jobs    JobCreator
	queue   Enqueuer
	cache   cache.StatusCache
	uploads storage.Provider
}

func NewSubmissionService(jobs JobCreator, queue Enqueuer, statusCache cache.StatusCache, uploads storage.Provider) *SubmissionService {
	return &SubmissionService{
		jobs:    jobs,
		queue:   queue,
		cache:   statusCache,
		uploads: uploads,
	}
}

// Submit stores the artifact, creates the job in state queued, invalidates
// the owner's status cache entry and enqueues the work ref. Validation
// failures leave no job behind.
func (s *SubmissionService) Submit(ctx context.Context, userID uuid.UUID, filename string, r io.Reader) (*job.Job, error) {
	sourceName, err := s.storeArtifact(ctx, filename, r)
	if err != nil {
		return nil, err
	}

	j, err := s.jobs.Create(ctx, userID, sourceName)
	if err != nil {
		s.uploads.Delete(ctx, sourceName)
		return nil, fmt.Errorf("create job: %w", err)
	}

	// Invalidate after the store commit so the next status read observes the
	// new job.
	s.cache.Invalidate(ctx, userID.String())

	if err := s.queue.Enqueue(ctx, j.ID.String()); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}

	log.Info().Str("job_id", j.ID.String()).Str("user_id", userID.String()).Str("source", sourceName).Msg("job submitted")
	return j, nil
}

// storeArtifact validates the upload and returns the stored source name.
// Zip archives are scanned for the first allow-listed member; exactly that
// member is extracted and used as the source.
func (s *SubmissionService) storeArtifact(ctx context.Context, filename string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean(filename))
	ext := strings.ToLower(filepath.Ext(base))

	if ext == ".zip" {
		return s.extractFromArchive(ctx, base, r)
	}

	if !allowedExtensions[ext] {
		return "", ErrUnsupportedFormat
	}

	if err := s.uploads.Save(ctx, base, r); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return base, nil
}

func (s *SubmissionService) extractFromArchive(ctx context.Context, base string, r io.Reader) (string, error) {
	// Spool the archive to the upload dir; zip needs random access.
	if err := s.uploads.Save(ctx, base, r); err != nil {
		return "", fmt.Errorf("store archive: %w", err)
	}
	defer s.uploads.Delete(ctx, base)

	zr, err := zip.OpenReader(s.uploads.Path(base))
	if err != nil {
		return "", ErrInvalidArchive
	}
	defer zr.Close()

	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if !allowedExtensions[strings.ToLower(filepath.Ext(member.Name))] {
			continue
		}

		rc, err := member.Open()
		if err != nil {
			return "", fmt.Errorf("open archive member: %w", err)
		}
		defer rc.Close()

		name := filepath.Base(member.Name)
		if err := s.uploads.Save(ctx, name, rc); err != nil {
			return "", fmt.Errorf("extract archive member: %w", err)
		}
		return name, nil
	}

	return "", ErrNoVideoInArchive
}
