package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tarungka/sluice/internal/utils"
	bolt "go.etcd.io/bbolt"
)

// Checkpoint is the metadata of one completed checkpoint. The snapshots
// themselves live in the state backend; this only records that they exist
// and which tasks took part.
type Checkpoint struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tasks     []string  `json:"tasks"`
}

var checkpointsBucket = []byte("checkpoints")

// Store persists checkpoint metadata in a bbolt database, keyed by
// checkpoint id so the latest checkpoint is one reverse cursor step away.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the metadata database at path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store at %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Put records one checkpoint.
func (s *Store) Put(cp Checkpoint) error {
	value, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointsBucket).Put(utils.ConvertUint64ToBytes(uint64(cp.ID)), value)
	})
}

// Get returns the checkpoint with the given id.
func (s *Store) Get(id int64) (Checkpoint, error) {
	var cp Checkpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(checkpointsBucket).Get(utils.ConvertUint64ToBytes(uint64(id)))
		if value == nil {
			return fmt.Errorf("checkpoint %d not found", id)
		}
		return json.Unmarshal(value, &cp)
	})
	return cp, err
}

// Latest returns the most recent checkpoint, if any.
func (s *Store) Latest() (Checkpoint, bool, error) {
	var (
		cp    Checkpoint
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(checkpointsBucket).Cursor()
		_, value := cursor.Last()
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &cp)
	})
	return cp, found, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
