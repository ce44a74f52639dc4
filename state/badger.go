package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/tarungka/sluice/internal/logger"
	"github.com/tarungka/sluice/stream"
)

// BadgerBackend persists task snapshots in a BadgerDB, JSON-encoded under
// "<taskID>-<checkpointID>" keys. Snapshots survive process restarts,
// which is what makes restoring a valve after a crash possible.
type BadgerBackend struct {
	dbPath string
	logger zerolog.Logger

	db *badger.DB
}

// NewBadgerBackend opens (or creates) a badger database at dir. An empty
// dir opens an in-memory database, useful in tests.
func NewBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", dir, err)
	}

	b := &BadgerBackend{
		dbPath: dir,
		logger: logger.GetLogger("statedb"),
		db:     db,
	}
	b.logger.Debug().Str("dir", dir).Msg("opened snapshot database")
	return b, nil
}

// Save saves the snapshot of a task for one checkpoint.
func (b *BadgerBackend) Save(taskID string, checkpointID int64, snapshot stream.TaskSnapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	key := []byte(snapshotKey(taskID, checkpointID))

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		b.logger.Err(err).Str("task", taskID).Int64("checkpoint", checkpointID).Msg("err saving snapshot")
		return err
	}
	return nil
}

// Load loads the snapshot of a task for one checkpoint.
func (b *BadgerBackend) Load(taskID string, checkpointID int64) (stream.TaskSnapshot, error) {
	key := []byte(snapshotKey(taskID, checkpointID))

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return stream.TaskSnapshot{}, fmt.Errorf("task %s checkpoint %d: %w", taskID, checkpointID, ErrNotFound)
	}
	if err != nil {
		return stream.TaskSnapshot{}, err
	}

	var snapshot stream.TaskSnapshot
	if err := json.Unmarshal(value, &snapshot); err != nil {
		return stream.TaskSnapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snapshot, nil
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
