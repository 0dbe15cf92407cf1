package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/storage"
)

// JobGetter is the ownership-scoped read slice of the job store.
type JobGetter interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*job.Job, error)
}

// DownloadService packages a completed job's output as a single-entry zip.
type DownloadService struct {
	jobs      JobGetter
	processed storage.Provider
}

func NewDownloadService(jobs JobGetter, processed storage.Provider) *DownloadService {
	return &DownloadService{jobs: jobs, processed: processed}
}

// Download is an open handle on a packaged conversion output. Callers must
// Close it after streaming.
type Download struct {
	ArchiveName string
	entryName   string
	file        *os.File
}

// Open returns the download for jobID if it exists, is owned by userID and
// is completed. Every other case is ErrNotFound: the caller cannot tell
// "missing" from "not yours" from "not ready".
func (s *DownloadService) Open(ctx context.Context, userID uuid.UUID, jobID string) (*Download, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, ErrNotFound
	}

	j, err := s.jobs.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, ErrNotFound
	}
	if j.Status != job.StatusCompleted || j.OutputName == "" {
		return nil, ErrNotFound
	}

	f, _, err := s.processed.Open(ctx, j.OutputName)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Str("output", j.OutputName).Msg("converted file missing")
		return nil, ErrNotFound
	}

	stem := strings.TrimSuffix(j.SourceName, filepath.Ext(j.SourceName))
	ext := filepath.Ext(j.OutputName)
	return &Download{
		ArchiveName: stem + "_converted.zip",
		entryName:   stem + "_converted" + ext,
		file:        f,
	}, nil
}

// WriteZip streams a zip archive containing exactly the converted file.
func (d *Download) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	entry, err := zw.Create(d.entryName)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(entry, d.file); err != nil {
		return fmt.Errorf("write zip entry: %w", err)
	}
	return zw.Close()
}

func (d *Download) Close() error {
	return d.file.Close()
}
