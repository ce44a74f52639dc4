package stream

import (
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/internal/watermark"
)

// State represents the state of an operator.
type State map[string]interface{}

// Operator is the base interface for all stream operators. Operators see
// data records plus the task's advancing aggregate watermark; per-channel
// control events never reach them, the task's valve consumes those.
type Operator interface {
	// ID returns the unique identifier of the operator.
	ID() string
	// ProcessRecord processes a record. Returning nil drops the record.
	ProcessRecord(record *models.Record) *models.Record
	// OnWatermark is called when the task's aggregate watermark advances.
	OnWatermark(w watermark.Watermark)
	// Snapshot snapshots the state of the operator.
	Snapshot(checkpointID int64) State
	// Restore restores the state of the operator.
	Restore(state State)
}

// BaseOperator is a base struct for all stream operators.
type BaseOperator struct {
	// The unique identifier of the operator.
	id string
	// The state of the operator.
	state State
	// The last aggregate watermark seen by the operator.
	currentWatermark watermark.Watermark
}

// NewBaseOperator creates a new BaseOperator.
func NewBaseOperator(id string) *BaseOperator {
	return &BaseOperator{
		id:               id,
		state:            make(State),
		currentWatermark: watermark.MinWatermark,
	}
}

// ID returns the unique identifier of the operator.
func (o *BaseOperator) ID() string {
	return o.id
}

// ProcessRecord processes a record.
func (o *BaseOperator) ProcessRecord(record *models.Record) *models.Record {
	// This method should be implemented by the specific operator.
	return record
}

// OnWatermark records the new aggregate watermark.
func (o *BaseOperator) OnWatermark(w watermark.Watermark) {
	o.currentWatermark = w
}

// CurrentWatermark returns the last aggregate watermark seen.
func (o *BaseOperator) CurrentWatermark() watermark.Watermark {
	return o.currentWatermark
}

// Snapshot snapshots the state of the operator.
func (o *BaseOperator) Snapshot(checkpointID int64) State {
	return o.state
}

// Restore restores the state of the operator.
func (o *BaseOperator) Restore(state State) {
	o.state = state
}
