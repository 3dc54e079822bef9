// Package local implements a filesystem blob store for archived advisory assets.
package local

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
	"github.com/JakeFAU/volcanic-ash-alert/internal/fsx"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes artifacts beneath a base directory.
type BlobStore struct {
	fs      afero.Fs
	baseDir string
}

// New creates the base directory if needed and verifies it is writable.
func New(fs afero.Fs, cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := fs.Stat(cfg.BaseDir)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	case err != nil:
		if mkErr := fs.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := afero.WriteFile(fs, probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := fs.Remove(probe); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{fs: fs, baseDir: cfg.BaseDir}, nil
}

// PutObject writes the object body below the base directory and returns a
// file:// URI. Content type and metadata are not persisted.
func (s *BlobStore) PutObject(_ context.Context, obj advisory.Object) (string, error) {
	path, data := obj.Path, obj.Body
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	cleanBase := filepath.Clean(s.baseDir)
	fullPath := filepath.Clean(filepath.Join(s.baseDir, path))
	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := fsx.WriteFileAtomic(s.fs, filepath.Dir(fullPath), filepath.Base(fullPath), byteData); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
