package state

import (
	"fmt"
	"sync"

	"github.com/tarungka/sluice/stream"
)

// InMemoryBackend is an in-memory implementation of the Backend interface.
type InMemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[string]stream.TaskSnapshot
}

// NewInMemoryBackend creates a new InMemoryBackend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		snapshots: make(map[string]stream.TaskSnapshot),
	}
}

// Save saves the snapshot of a task for one checkpoint.
func (b *InMemoryBackend) Save(taskID string, checkpointID int64, snapshot stream.TaskSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[snapshotKey(taskID, checkpointID)] = snapshot
	return nil
}

// Load loads the snapshot of a task for one checkpoint.
func (b *InMemoryBackend) Load(taskID string, checkpointID int64) (stream.TaskSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snapshot, ok := b.snapshots[snapshotKey(taskID, checkpointID)]
	if !ok {
		return stream.TaskSnapshot{}, fmt.Errorf("task %s checkpoint %d: %w", taskID, checkpointID, ErrNotFound)
	}
	return snapshot, nil
}

// Close is a no-op for the in-memory backend.
func (b *InMemoryBackend) Close() error {
	return nil
}

func snapshotKey(taskID string, checkpointID int64) string {
	return fmt.Sprintf("%s-%d", taskID, checkpointID)
}
