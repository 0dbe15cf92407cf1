package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider implements Provider for a single local directory.
type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) (*LocalProvider, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalProvider{basePath: absPath}, nil
}

func (p *LocalProvider) Name() string { return "local" }

// Path resolves name inside the base directory. Path separators in name are
// stripped so a crafted filename cannot escape the directory.
func (p *LocalProvider) Path(name string) string {
	return filepath.Join(p.basePath, filepath.Base(filepath.Clean(name)))
}

func (p *LocalProvider) Save(_ context.Context, name string, r io.Reader) error {
	path := p.Path(name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func (p *LocalProvider) Open(_ context.Context, name string) (*os.File, FileMetadata, error) {
	path := p.Path(name)

	f, err := os.Open(path)
	if err != nil {
		return nil, FileMetadata{}, fmt.Errorf("open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, FileMetadata{}, fmt.Errorf("stat file: %w", err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return f, FileMetadata{
		Size:        stat.Size(),
		ContentType: contentType,
		ModTime:     stat.ModTime(),
	}, nil
}

func (p *LocalProvider) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(p.Path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (p *LocalProvider) Delete(_ context.Context, name string) error {
	return os.Remove(p.Path(name))
}

var _ Provider = (*LocalProvider)(nil)
