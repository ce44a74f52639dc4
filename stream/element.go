package stream

import "github.com/tarungka/sluice/internal/watermark"

// Element represents a data record or a control event in the stream.
// Concrete kinds are *models.Record, Watermark and WatermarkStatus.
type Element interface{}

// Watermark is a control event asserting event-time progress. On the way
// into a task, Channel identifies which of the task's input channels it
// arrived on; on the way out, it is the channel the task occupies at the
// next stage downstream.
type Watermark struct {
	Channel int
	Value   watermark.Watermark
}

// WatermarkStatus is a control event toggling a channel between idle and
// active. Channel follows the same in/out convention as Watermark.
type WatermarkStatus struct {
	Channel int
	Value   watermark.Status
}

// Barrier is a special event that signals a checkpoint.
type Barrier struct {
	CheckpointID int64
}
