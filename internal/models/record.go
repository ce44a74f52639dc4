package models

import (
	"fmt"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"github.com/tarungka/sluice/internal/logger"
)

// Record is one data element flowing through a stream task, together with
// the metadata the event-time machinery needs: which input channel it
// arrived on and the event time the source assigned to it.
type Record struct {
	ID        uuid.UUID // a UUID v7 to identify the record
	Key       string    // partitioning key, may be empty
	Channel   int       // input channel the record arrived on
	EventTime time.Time // event time assigned by the source

	data any // can be anything; but is usually a JSON document

	// adding a mutex to this just in case somewhere I write concurrent code
	// that causes a data race
	mu sync.RWMutex
}

// New creates a record with a fresh UUID v7 and the given event time.
func New(data any, eventTime time.Time) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		logger.AdHocLogger.Err(err).Msg("error when creating a new record")
		return nil, err
	}
	return &Record{
		ID:        id,
		EventTime: eventTime,
		data:      data,
	}, nil
}

func (r *Record) SetData(d any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = d
	return nil
}

func (r *Record) GetData() (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return nil, fmt.Errorf("error data is nil")
	}
	return r.data, nil
}

// EventTimeMillis returns the record's event time in epoch milliseconds,
// the unit watermarks are expressed in.
func (r *Record) EventTimeMillis() int64 {
	return r.EventTime.UnixMilli()
}
