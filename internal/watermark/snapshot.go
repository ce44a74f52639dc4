package watermark

import "fmt"

// ChannelSnapshot is the persisted form of one channel's tracked state.
type ChannelSnapshot struct {
	Status    int   `json:"status"`
	Watermark int64 `json:"watermark"`
	Aligned   bool  `json:"aligned"`
}

// Snapshot is the persisted form of the whole valve, used by the checkpoint
// layer. It round-trips through JSON.
type Snapshot struct {
	Channels  []ChannelSnapshot `json:"channels"`
	Watermark int64             `json:"watermark"`
	Status    int               `json:"status"`
}

// Snapshot captures the valve's current state.
func (v *Valve) Snapshot() Snapshot {
	snap := Snapshot{
		Channels:  make([]ChannelSnapshot, len(v.channels)),
		Watermark: int64(v.watermark),
		Status:    int(v.status),
	}
	for i := range v.channels {
		snap.Channels[i] = ChannelSnapshot{
			Status:    int(v.channels[i].status),
			Watermark: int64(v.channels[i].watermark),
			Aligned:   v.channels[i].aligned,
		}
	}
	return snap
}

// Restore replaces the valve's state with a previously captured snapshot.
// The snapshot must come from a valve with the same channel count.
func (v *Valve) Restore(snap Snapshot) error {
	if len(snap.Channels) != len(v.channels) {
		return fmt.Errorf("snapshot has %d channels, valve has %d", len(snap.Channels), len(v.channels))
	}
	status, err := NewStatus(snap.Status)
	if err != nil {
		return fmt.Errorf("restoring aggregate status: %w", err)
	}
	channels := make([]channelState, len(snap.Channels))
	for i, cs := range snap.Channels {
		chStatus, err := NewStatus(cs.Status)
		if err != nil {
			return fmt.Errorf("restoring channel %d status: %w", i, err)
		}
		channels[i] = channelState{
			status:    chStatus,
			watermark: Watermark(cs.Watermark),
			aligned:   cs.Aligned,
		}
	}
	v.channels = channels
	v.watermark = Watermark(snap.Watermark)
	v.status = status
	return nil
}
