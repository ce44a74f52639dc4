package watermark

import (
	"math"
	"strconv"
)

// Watermark asserts that no record with an event time earlier than its value
// will arrive anymore on the stream that carried it. Values are event-time
// milliseconds; ordering is plain integer ordering.
type Watermark int64

const (
	// MinWatermark is the value every channel starts from, before any
	// watermark has been observed.
	MinWatermark Watermark = math.MinInt64
	// MaxWatermark signals that a stream is permanently finished. The valve
	// treats it as an ordinary (very large) value; termination handling is
	// up to the consumer of the emitted events.
	MaxWatermark Watermark = math.MaxInt64
)

// Before reports whether w is strictly earlier than o.
func (w Watermark) Before(o Watermark) bool {
	return w < o
}

// Millis returns the raw event-time milliseconds.
func (w Watermark) Millis() int64 {
	return int64(w)
}

func (w Watermark) String() string {
	switch w {
	case MinWatermark:
		return "MIN"
	case MaxWatermark:
		return "MAX"
	default:
		return strconv.FormatInt(int64(w), 10)
	}
}
