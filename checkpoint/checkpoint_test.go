package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/sluice/state"
	"github.com/tarungka/sluice/stream"
	"github.com/tarungka/sluice/internal/watermark"
)

// driveValve pushes a few control events through a task so its valve has
// state worth checkpointing.
type nullSource struct{ channels int }

func (s *nullSource) Open(ctx context.Context) (<-chan stream.Element, error) {
	out := make(chan stream.Element)
	close(out)
	return out, nil
}
func (s *nullSource) Channels() int { return s.channels }
func (s *nullSource) Close() error  { return nil }

type nullSink struct{}

func (s *nullSink) Open(ctx context.Context) (chan<- stream.Element, error) {
	in := make(chan stream.Element)
	go func() {
		for range in {
		}
	}()
	return in, nil
}
func (s *nullSink) Close() error { return nil }

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGetLatest(t *testing.T) {
	store := newStore(t)

	_, found, err := store.Latest()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(Checkpoint{ID: 1, Tasks: []string{"a"}}))
	require.NoError(t, store.Put(Checkpoint{ID: 3, Tasks: []string{"a", "b"}}))
	require.NoError(t, store.Put(Checkpoint{ID: 2, Tasks: []string{"a"}}))

	cp, err := store.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cp.Tasks)

	// Keys are ordered by id, so the latest is 3 even though 2 was written
	// after it.
	latest, found, err := store.Latest()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), latest.ID)

	_, err = store.Get(9)
	require.Error(t, err)
}

func TestManager_CreateAndRestoreLatest(t *testing.T) {
	backend := state.NewInMemoryBackend()
	defer backend.Close()
	manager := NewManager(backend, newStore(t))

	task, err := stream.NewTask("task-1", &nullSource{channels: 2}, &nullSink{})
	require.NoError(t, err)

	restored, err := manager.RestoreLatest([]*stream.Task{task})
	require.NoError(t, err)
	assert.False(t, restored, "no checkpoint yet")

	// Give the valve some state, then checkpoint.
	snapSeed := stream.TaskSnapshot{
		TaskID: "task-1",
		Valve: watermark.Snapshot{
			Channels: []watermark.ChannelSnapshot{
				{Status: 0, Watermark: 10, Aligned: true},
				{Status: 0, Watermark: 15, Aligned: true},
			},
			Watermark: 10,
			Status:    0,
		},
	}
	require.NoError(t, task.Restore(snapSeed))

	cp, err := manager.Create([]*stream.Task{task})
	require.NoError(t, err)
	assert.Equal(t, []string{"task-1"}, cp.Tasks)

	// A fresh task with the same id picks the state back up.
	fresh, err := stream.NewTask("task-1", &nullSource{channels: 2}, &nullSink{})
	require.NoError(t, err)
	restored, err = manager.RestoreLatest([]*stream.Task{fresh})
	require.NoError(t, err)
	require.True(t, restored)
	assert.Equal(t, "10", fresh.Status().AggregateWatermark)
}

func TestManager_BarrierHandler(t *testing.T) {
	backend := state.NewInMemoryBackend()
	defer backend.Close()
	manager := NewManager(backend, newStore(t))

	handler := manager.BarrierHandler()
	handler(5, stream.TaskSnapshot{
		TaskID:       "task-1",
		CheckpointID: 5,
		Valve: watermark.Snapshot{
			Channels:  []watermark.ChannelSnapshot{{Status: 0, Watermark: 7, Aligned: true}},
			Watermark: 7,
			Status:    0,
		},
	})

	snapshot, err := backend.Load("task-1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(7), snapshot.Valve.Watermark)

	cp, err := manager.store.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []string{"task-1"}, cp.Tasks)
}
