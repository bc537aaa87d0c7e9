package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// LocalArtifactStore keeps artifacts on the local filesystem under a base directory.
type LocalArtifactStore struct {
	BaseDir string
}

func NewLocalArtifactStore(baseDir string) *LocalArtifactStore {
	return &LocalArtifactStore{BaseDir: baseDir}
}

var _ ports.ArtifactStore = (*LocalArtifactStore)(nil)

// within rejects paths that escape the base directory
func (s *LocalArtifactStore) within(path string) error {
	rel, err := filepath.Rel(s.BaseDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("artifact path %s is outside %s", path, s.BaseDir)
	}
	return nil
}

func (s *LocalArtifactStore) Prepare(ctx context.Context, path string) error {
	if err := s.within(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create job directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	return f.Close()
}

func (s *LocalArtifactStore) Append(ctx context.Context, path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to artifact %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync artifact %s: %w", path, err)
	}
	return f.Close()
}

// Rewrite writes to a temporary file in the same directory and renames it over the artifact.
func (s *LocalArtifactStore) Rewrite(ctx context.Context, path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace artifact %s: %w", path, err)
	}
	return nil
}

func (s *LocalArtifactStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactMissing, path)
	}
	return data, err
}

func (s *LocalArtifactStore) Size(ctx context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", domain.ErrArtifactMissing, path)
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", domain.ErrArtifactMissing, path)
	}
	return info.Size(), nil
}

func (s *LocalArtifactStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactMissing, path)
	}
	return f, err
}

// Remove deletes the job directory holding the artifact
func (s *LocalArtifactStore) Remove(ctx context.Context, path string) error {
	if err := s.within(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := s.within(dir); err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrArtifactMissing, path)
	}

	log.Printf("[DEBUG] LocalArtifactStore - removing %s", dir)
	return os.RemoveAll(dir)
}
