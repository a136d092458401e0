package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rgehrsitz/rentgo/internal/domain"
)

// FileBackend stores the whole dataset in one YAML file. Commits write a
// temporary file next to it and rename it into place.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend for path. The file need not exist yet.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the data file location.
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Load(ctx context.Context) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileBackend) Apply(ctx context.Context, cs *ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if err != nil {
		return err
	}
	next, err := ApplyChanges(current, cs)
	if err != nil {
		return err
	}
	return f.write(next)
}

func (f *FileBackend) read() (*domain.Dataset, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &domain.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", f.path, err)
	}

	var ds domain.Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", f.path, err)
	}
	ds.Normalize()
	return &ds, nil
}

func (f *FileBackend) write(ds *domain.Dataset) error {
	data, err := yaml.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rentgo-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}
