package store

import (
	"context"
	"sync"

	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// MemoryStore is an in-memory BatchStore, the default used by tests
// (cmd/worker always opens a BoltStore) — mirrors the teacher's own InMemoryStateMachine default
// (pkg/mcast/types/state_machine.go).
type MemoryStore struct {
	mutex   sync.Mutex
	batches map[types.BatchDigest]types.Batch
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[types.BatchDigest]types.Batch)}
}

// Read implements BatchStore.
func (m *MemoryStore) Read(_ context.Context, digest types.BatchDigest) (*types.Batch, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	batch, ok := m.batches[digest]
	if !ok {
		return nil, nil
	}
	return &batch, nil
}

// Write implements BatchStore.
func (m *MemoryStore) Write(_ context.Context, batch *types.Batch) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.batches[batch.Digest()] = *batch
	return nil
}

// Remove implements BatchStore.
func (m *MemoryStore) Remove(_ context.Context, digests []types.BatchDigest) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, digest := range digests {
		delete(m.batches, digest)
	}
	return nil
}

// Close implements BatchStore.
func (m *MemoryStore) Close() error {
	return nil
}
