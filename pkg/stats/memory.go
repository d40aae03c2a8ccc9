package stats

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps []Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save appends snap.
func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap.ID = int64(len(m.snaps) + 1)
	m.snaps = append(m.snaps, snap)
	return nil
}

// List returns the snapshots in r, newest first.
func (m *MemoryStore) List(ctx context.Context, r Range) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Snapshot{}
	for i := len(m.snaps) - 1; i >= 0; i-- {
		if !r.contains(m.snaps[i].TakenAt) {
			continue
		}
		out = append(out, m.snaps[i])
		if r.Limit > 0 && len(out) == r.Limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
