package checkpoint

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/state"
	"github.com/tarungka/sluice/stream"
)

// Manager is responsible for creating and restoring checkpoints: task
// snapshots go to the state backend, checkpoint metadata to the store.
type Manager struct {
	backend state.Backend
	store   *Store
}

// NewManager creates a new Manager.
func NewManager(backend state.Backend, store *Store) *Manager {
	return &Manager{
		backend: backend,
		store:   store,
	}
}

// Create snapshots all tasks at their current position and records the
// checkpoint. Used when the caller controls quiescence; tasks processing
// live input should checkpoint through barriers instead.
func (m *Manager) Create(tasks []*stream.Task) (*Checkpoint, error) {
	checkpointID := time.Now().UnixNano()
	cp := &Checkpoint{
		ID:        checkpointID,
		Timestamp: time.Now(),
	}

	for _, task := range tasks {
		snapshot := task.Snapshot(checkpointID)
		if err := m.backend.Save(task.ID(), checkpointID, snapshot); err != nil {
			return nil, fmt.Errorf("saving snapshot of task %s: %w", task.ID(), err)
		}
		cp.Tasks = append(cp.Tasks, task.ID())
	}

	if err := m.store.Put(*cp); err != nil {
		return nil, fmt.Errorf("recording checkpoint %d: %w", cp.ID, err)
	}
	log.Info().Int64("checkpoint", cp.ID).Int("tasks", len(cp.Tasks)).Msg("checkpoint created")
	return cp, nil
}

// BarrierHandler returns a stream.BarrierHandler that persists the
// snapshot a task takes when a barrier passes through it, and records the
// checkpoint metadata once. Plug it into a task with
// stream.WithBarrierHandler.
func (m *Manager) BarrierHandler() stream.BarrierHandler {
	return func(checkpointID int64, snapshot stream.TaskSnapshot) {
		if err := m.backend.Save(snapshot.TaskID, checkpointID, snapshot); err != nil {
			log.Err(err).Str("task", snapshot.TaskID).Int64("checkpoint", checkpointID).Msg("saving barrier snapshot failed")
			return
		}
		cp, err := m.store.Get(checkpointID)
		if err != nil {
			cp = Checkpoint{ID: checkpointID, Timestamp: time.Now()}
		}
		cp.Tasks = append(cp.Tasks, snapshot.TaskID)
		if err := m.store.Put(cp); err != nil {
			log.Err(err).Int64("checkpoint", checkpointID).Msg("recording barrier checkpoint failed")
		}
	}
}

// RestoreLatest restores all tasks from the most recent checkpoint.
// Returns false when no checkpoint exists yet; that is not an error.
func (m *Manager) RestoreLatest(tasks []*stream.Task) (bool, error) {
	cp, found, err := m.store.Latest()
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	for _, task := range tasks {
		snapshot, err := m.backend.Load(task.ID(), cp.ID)
		if err != nil {
			return false, fmt.Errorf("loading snapshot of task %s: %w", task.ID(), err)
		}
		if err := task.Restore(snapshot); err != nil {
			return false, err
		}
	}
	log.Info().Int64("checkpoint", cp.ID).Msg("restored from checkpoint")
	return true, nil
}
