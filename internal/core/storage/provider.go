package storage

import (
	"context"
	"io"
	"os"
	"time"
)

type FileMetadata struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Provider abstracts artifact storage for uploads and conversion outputs.
// Names are flat (no directories); the provider owns path resolution.
type Provider interface {
	Name() string
	Save(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (*os.File, FileMetadata, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	// Path returns the local filesystem path for the named artifact, for
	// handing to external tools (ffmpeg).
	Path(name string) string
}
