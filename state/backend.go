package state

import (
	"errors"

	"github.com/tarungka/sluice/stream"
)

// ErrNotFound is returned when no snapshot exists for a task/checkpoint
// pair.
var ErrNotFound = errors.New("snapshot not found")

// Backend is an interface for storing and retrieving task snapshots
// (the valve plus operator state).
type Backend interface {
	// Save saves the snapshot of a task for one checkpoint.
	Save(taskID string, checkpointID int64, snapshot stream.TaskSnapshot) error
	// Load loads the snapshot of a task for one checkpoint.
	Load(taskID string, checkpointID int64) (stream.TaskSnapshot, error)
	// Close releases the backend's resources.
	Close() error
}
