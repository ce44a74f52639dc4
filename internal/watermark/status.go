package watermark

import "fmt"

// Status discriminants. These match the values sources put on the wire, so
// they are part of the public contract and must not be renumbered.
const (
	activeCode = 0
	idleCode   = -1
)

// Status marks whether an input channel is currently expected to produce
// watermarks. A source emits StatusIdle when it will temporarily stop
// emitting watermarks (e.g. no assigned partitions have data) and
// StatusActive once it resumes. A permanently finished source should emit
// MaxWatermark instead of going idle; idleness is always a temporary marker.
type Status int

const (
	// StatusActive means the channel is producing watermarks.
	StatusActive Status = activeCode
	// StatusIdle means the channel has paused producing watermarks.
	StatusIdle Status = idleCode
)

// NewStatus constructs a Status from its wire discriminant. Any value other
// than the two known discriminants is rejected.
func NewStatus(code int) (Status, error) {
	switch code {
	case activeCode:
		return StatusActive, nil
	case idleCode:
		return StatusIdle, nil
	default:
		return 0, fmt.Errorf("invalid status code %d: allowed values are %d (ACTIVE) and %d (IDLE)", code, activeCode, idleCode)
	}
}

// IsIdle reports whether the status is idle.
func (s Status) IsIdle() bool {
	return s == StatusIdle
}

// IsActive reports whether the status is active.
func (s Status) IsActive() bool {
	return !s.IsIdle()
}

func (s Status) String() string {
	if s.IsIdle() {
		return "IDLE"
	}
	return "ACTIVE"
}
