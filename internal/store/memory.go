package store

import (
	"context"
	"sync"

	"github.com/rgehrsitz/rentgo/internal/domain"
)

// MemoryBackend keeps the dataset in process. It backs tests and dry runs.
type MemoryBackend struct {
	mu   sync.Mutex
	data *domain.Dataset
}

// NewMemoryBackend returns a backend seeded with a copy of ds (which may be nil).
func NewMemoryBackend(ds *domain.Dataset) *MemoryBackend {
	return &MemoryBackend{data: ds.Clone()}
}

func (m *MemoryBackend) Load(ctx context.Context) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone(), nil
}

func (m *MemoryBackend) Apply(ctx context.Context, cs *ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := ApplyChanges(m.data, cs)
	if err != nil {
		return err
	}
	m.data = next
	return nil
}

// Snapshot returns a copy of the stored dataset.
func (m *MemoryBackend) Snapshot() *domain.Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone()
}
