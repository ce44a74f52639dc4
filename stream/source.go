package stream

import (
	"context"
)

// Source is an interface for data sources. A source owns a fixed number of
// logical input channels; every Watermark or WatermarkStatus element it
// emits carries the channel it belongs to, and channel ids stay stable for
// the life of the source.
type Source interface {
	// Open opens the source and returns the element stream.
	Open(ctx context.Context) (<-chan Element, error)
	// Channels returns the fixed number of logical channels the source
	// feeds. Must be callable before Open.
	Channels() int
	// Close closes the source.
	Close() error
}
