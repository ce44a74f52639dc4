package watermark

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Valve merges the per-channel watermarks and idle/active statuses of a
// multi-input task into a single advancing watermark and status stream.
//
// Taking the plain minimum watermark across all inputs stalls the whole
// task whenever one channel goes quiet, so the valve excludes idle channels
// from the minimum, and also excludes active channels whose watermark is
// still behind the last emitted aggregate (they rejoin once they catch up).
//
// A Valve is not safe for concurrent use. The owning task must serialize
// all OnStatus/OnWatermark calls; the valve itself takes no locks.
type Valve struct {
	channels []channelState

	// watermark is the last aggregate watermark handed back to the caller.
	watermark Watermark
	// status is the last aggregate status, ACTIVE until every channel has
	// gone idle.
	status Status

	strict bool
}

// Option configures a Valve.
type Option func(*Valve)

// WithStrictMonotonicity makes the valve log (at debug level) whenever a
// channel reports a watermark lower than its previous one. Per-channel
// monotonicity is the upstream source's contract; violations are tolerated
// either way, this only makes them visible.
func WithStrictMonotonicity() Option {
	return func(v *Valve) {
		v.strict = true
	}
}

// NewValve creates a valve for a fixed number of input channels. The
// channel count cannot change for the life of the valve.
func NewValve(numChannels int, opts ...Option) (*Valve, error) {
	if numChannels < 1 {
		return nil, fmt.Errorf("valve needs at least one input channel, got %d", numChannels)
	}
	v := &Valve{
		channels:  make([]channelState, numChannels),
		watermark: MinWatermark,
		status:    StatusActive,
	}
	for i := range v.channels {
		v.channels[i] = newChannelState()
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// OnStatus records a status transition for one channel and reports whether
// the aggregate status changed. The aggregate is idle iff every channel is
// idle. A channel id outside [0, NumChannels) panics; that is a caller bug.
//
// An idle channel turning active again becomes eligible to contribute to
// watermark advancement, but no watermark is recomputed here: the advance
// only materializes through a later OnWatermark call.
func (v *Valve) OnStatus(channel int, s Status) (Status, bool) {
	ch := &v.channels[channel]
	if ch.status == s {
		return v.status, false
	}

	ch.status = s
	if s.IsIdle() {
		ch.aligned = false
	} else if ch.watermark >= v.watermark {
		ch.aligned = true
	}

	agg := StatusIdle
	for i := range v.channels {
		if v.channels[i].status.IsActive() {
			agg = StatusActive
			break
		}
	}
	if agg == v.status {
		return v.status, false
	}
	v.status = agg
	return agg, true
}

// OnWatermark records a watermark for one channel and reports whether the
// aggregate watermark advanced. The new aggregate, when there is one, is
// the minimum watermark across all aligned channels and is strictly greater
// than the previous aggregate. A channel id outside [0, NumChannels)
// panics; that is a caller bug.
//
// A watermark arriving on an idle channel is recorded but never advances
// the aggregate, and does not reactivate the channel; reactivation requires
// an explicit OnStatus call.
func (v *Valve) OnWatermark(channel int, w Watermark) (Watermark, bool) {
	ch := &v.channels[channel]
	if v.strict && w.Before(ch.watermark) {
		log.Debug().
			Int("channel", channel).
			Stringer("previous", ch.watermark).
			Stringer("received", w).
			Msg("non-monotonic watermark on channel")
	}
	ch.watermark = w
	if ch.isIdle() {
		return v.watermark, false
	}

	if !ch.aligned && w >= v.watermark {
		ch.aligned = true
	}

	newMin := MaxWatermark
	hasAligned := false
	for i := range v.channels {
		if !v.channels[i].aligned {
			continue
		}
		hasAligned = true
		if v.channels[i].watermark.Before(newMin) {
			newMin = v.channels[i].watermark
		}
	}
	if hasAligned && v.watermark.Before(newMin) {
		v.watermark = newMin
		return newMin, true
	}
	return v.watermark, false
}

// NumChannels returns the fixed channel count.
func (v *Valve) NumChannels() int {
	return len(v.channels)
}

// AggregateWatermark returns the last emitted aggregate watermark.
func (v *Valve) AggregateWatermark() Watermark {
	return v.watermark
}

// AggregateStatus returns the current aggregate status.
func (v *Valve) AggregateStatus() Status {
	return v.status
}

// ChannelWatermark returns the last recorded watermark for one channel.
func (v *Valve) ChannelWatermark(channel int) Watermark {
	return v.channels[channel].watermark
}

// ChannelStatus returns the last recorded status for one channel.
func (v *Valve) ChannelStatus(channel int) Status {
	return v.channels[channel].status
}
