package watermark

// channelState tracks the last known status and watermark of one input
// channel. The slice of these inside the valve is the only place they live;
// nothing outside the valve ever holds a reference to one.
type channelState struct {
	status    Status
	watermark Watermark

	// aligned is true while the channel participates in the aggregate
	// minimum. An active channel whose watermark has fallen behind the
	// aggregate is active but not aligned; it realigns once its watermark
	// catches back up to the aggregate.
	aligned bool
}

func newChannelState() channelState {
	return channelState{
		status:    StatusActive,
		watermark: MinWatermark,
		aligned:   true,
	}
}

func (c *channelState) isIdle() bool {
	return c.status.IsIdle()
}
