package watermark

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValve(t *testing.T, numChannels int, opts ...Option) *Valve {
	t.Helper()
	v, err := NewValve(numChannels, opts...)
	require.NoError(t, err)
	return v
}

func TestNewValve(t *testing.T) {
	v := newTestValve(t, 3)
	assert.Equal(t, 3, v.NumChannels())
	assert.Equal(t, MinWatermark, v.AggregateWatermark())
	assert.Equal(t, StatusActive, v.AggregateStatus())
	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusActive, v.ChannelStatus(i))
		assert.Equal(t, MinWatermark, v.ChannelWatermark(i))
	}

	_, err := NewValve(0)
	require.Error(t, err)
	_, err = NewValve(-1)
	require.Error(t, err)
}

func TestValve_OutOfRangeChannelPanics(t *testing.T) {
	v := newTestValve(t, 2)
	assert.Panics(t, func() { v.OnWatermark(2, 10) })
	assert.Panics(t, func() { v.OnStatus(-1, StatusIdle) })
}

// Two active channels: no advance until both have reported, then the
// aggregate is the minimum across them.
func TestValve_AdvanceWaitsForAllChannels(t *testing.T) {
	v := newTestValve(t, 2)

	_, emitted := v.OnWatermark(0, 10)
	assert.False(t, emitted, "channel 1 still at MIN, nothing to emit")
	assert.Equal(t, MinWatermark, v.AggregateWatermark())

	w, emitted := v.OnWatermark(1, 5)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(5), w)
	assert.Equal(t, Watermark(5), v.AggregateWatermark())
}

// An idle channel is excluded from the minimum, so the remaining active
// channel advances the aggregate on its own.
func TestValve_IdleChannelExcludedFromMinimum(t *testing.T) {
	v := newTestValve(t, 2)
	v.OnWatermark(0, 10)
	v.OnWatermark(1, 5)

	_, changed := v.OnStatus(1, StatusIdle)
	assert.False(t, changed, "channel 0 still active, aggregate status unchanged")

	w, emitted := v.OnWatermark(0, 20)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(20), w)
}

// A channel coming back from idle with a stale watermark neither lowers the
// aggregate nor triggers an advance; it rejoins the minimum once it has
// caught up, and the advance comes from a later watermark.
func TestValve_StaleChannelRejoinsAfterCatchingUp(t *testing.T) {
	v := newTestValve(t, 2)
	v.OnWatermark(0, 10)
	v.OnWatermark(1, 5)
	v.OnStatus(1, StatusIdle)
	v.OnWatermark(0, 20)
	require.Equal(t, Watermark(20), v.AggregateWatermark())

	_, changed := v.OnStatus(1, StatusActive)
	assert.False(t, changed, "aggregate was already active")
	assert.Equal(t, Watermark(20), v.AggregateWatermark(), "rejoin must not move the aggregate")

	// Channel 1 catches up past the aggregate; channel 0 still pins the
	// minimum at 20, so nothing is emitted yet.
	_, emitted := v.OnWatermark(1, 25)
	assert.False(t, emitted)
	assert.Equal(t, Watermark(20), v.AggregateWatermark())

	// Channel 0 moves on; the new minimum across both channels is 25.
	w, emitted := v.OnWatermark(0, 30)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(25), w)
}

// A stale-but-active channel must not block the aligned channels from
// advancing the aggregate.
func TestValve_StaleActiveChannelDoesNotHoldBackAggregate(t *testing.T) {
	v := newTestValve(t, 2)
	v.OnWatermark(0, 10)
	v.OnWatermark(1, 30)
	v.OnStatus(0, StatusIdle)
	v.OnWatermark(1, 40)
	require.Equal(t, Watermark(40), v.AggregateWatermark())

	// Channel 0 reactivates at 10, far behind the aggregate of 40.
	v.OnStatus(0, StatusActive)

	w, emitted := v.OnWatermark(1, 50)
	assert.True(t, emitted, "the lagging channel is excluded while behind")
	assert.Equal(t, Watermark(50), w)

	// Once channel 0 catches up it participates again.
	_, emitted = v.OnWatermark(0, 45)
	assert.False(t, emitted, "45 is behind the aggregate of 50")
	_, emitted = v.OnWatermark(0, 60)
	assert.False(t, emitted, "channel 1 still pins the minimum at 50")

	w, emitted = v.OnWatermark(1, 70)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(60), w, "channel 0 now holds the minimum")
}

// A single channel reporting MaxWatermark emits it like any other value,
// and a later idle transition is reported independently.
func TestValve_MaxWatermarkThenIdle(t *testing.T) {
	v := newTestValve(t, 1)

	w, emitted := v.OnWatermark(0, MaxWatermark)
	assert.True(t, emitted)
	assert.Equal(t, MaxWatermark, w)

	s, changed := v.OnStatus(0, StatusIdle)
	assert.True(t, changed)
	assert.Equal(t, StatusIdle, s)
}

// The aggregate status flips exactly once, on the call that idles the last
// active channel, and once more when any channel reactivates.
func TestValve_AggregateStatusFlipsOnce(t *testing.T) {
	v := newTestValve(t, 3)

	_, changed := v.OnStatus(0, StatusIdle)
	assert.False(t, changed)
	_, changed = v.OnStatus(1, StatusIdle)
	assert.False(t, changed)

	s, changed := v.OnStatus(2, StatusIdle)
	assert.True(t, changed)
	assert.Equal(t, StatusIdle, s)

	// Repeating an idle transition on an already idle channel is a no-op.
	_, changed = v.OnStatus(1, StatusIdle)
	assert.False(t, changed)

	s, changed = v.OnStatus(1, StatusActive)
	assert.True(t, changed)
	assert.Equal(t, StatusActive, s)

	_, changed = v.OnStatus(0, StatusActive)
	assert.False(t, changed)
}

// A watermark delivered to an idle channel is recorded but never emitted,
// and does not reactivate the channel.
func TestValve_WatermarkOnIdleChannelIsRecordedNotEmitted(t *testing.T) {
	v := newTestValve(t, 2)
	v.OnStatus(0, StatusIdle)

	_, emitted := v.OnWatermark(0, 100)
	assert.False(t, emitted)
	assert.Equal(t, Watermark(100), v.ChannelWatermark(0))
	assert.Equal(t, StatusIdle, v.ChannelStatus(0))
	assert.Equal(t, MinWatermark, v.AggregateWatermark())

	// The recorded value counts once the channel is explicitly reactivated
	// and a watermark event lands on any active channel.
	v.OnStatus(0, StatusActive)
	w, emitted := v.OnWatermark(1, 90)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(90), w, "min(100, 90) across both active channels")
}

// All channels idle: watermarks on any of them do nothing until a channel
// is reactivated.
func TestValve_AllChannelsIdle(t *testing.T) {
	v := newTestValve(t, 2)
	v.OnStatus(0, StatusIdle)
	s, changed := v.OnStatus(1, StatusIdle)
	require.True(t, changed)
	require.Equal(t, StatusIdle, s)

	_, emitted := v.OnWatermark(0, 10)
	assert.False(t, emitted)
	_, emitted = v.OnWatermark(1, 10)
	assert.False(t, emitted)
	assert.Equal(t, MinWatermark, v.AggregateWatermark())
}

// A status transition alone never advances the watermark, even when the
// channel holding the minimum goes idle; the advance surfaces through the
// next watermark event on an active channel.
func TestValve_StatusChangeDoesNotAdvanceWatermark(t *testing.T) {
	v := newTestValve(t, 2)
	v.OnWatermark(0, 10)
	v.OnWatermark(1, 30)
	require.Equal(t, Watermark(10), v.AggregateWatermark())

	// Channel 0 held the minimum; idling it does not re-emit.
	_, changed := v.OnStatus(0, StatusIdle)
	assert.False(t, changed)
	assert.Equal(t, Watermark(10), v.AggregateWatermark())

	w, emitted := v.OnWatermark(1, 31)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(31), w)
}

func TestValve_StrictModeKeepsBehavior(t *testing.T) {
	v := newTestValve(t, 1, WithStrictMonotonicity())
	w, emitted := v.OnWatermark(0, 50)
	require.True(t, emitted)
	require.Equal(t, Watermark(50), w)

	// A regression is tolerated: recorded on the channel, aggregate holds.
	_, emitted = v.OnWatermark(0, 40)
	assert.False(t, emitted)
	assert.Equal(t, Watermark(40), v.ChannelWatermark(0))
	assert.Equal(t, Watermark(50), v.AggregateWatermark())

	w, emitted = v.OnWatermark(0, 60)
	assert.True(t, emitted)
	assert.Equal(t, Watermark(60), w)
}

func TestValve_SnapshotRestore(t *testing.T) {
	v := newTestValve(t, 3)
	v.OnWatermark(0, 10)
	v.OnWatermark(1, 20)
	v.OnWatermark(2, 30)
	v.OnStatus(1, StatusIdle)

	snap := v.Snapshot()

	restored := newTestValve(t, 3)
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, v.AggregateWatermark(), restored.AggregateWatermark())
	assert.Equal(t, v.AggregateStatus(), restored.AggregateStatus())
	for i := 0; i < 3; i++ {
		assert.Equal(t, v.ChannelStatus(i), restored.ChannelStatus(i))
		assert.Equal(t, v.ChannelWatermark(i), restored.ChannelWatermark(i))
	}

	// Behavior after restore matches the original valve.
	w1, e1 := v.OnWatermark(2, 40)
	w2, e2 := restored.OnWatermark(2, 40)
	assert.Equal(t, e1, e2)
	assert.Equal(t, w1, w2)

	mismatched := newTestValve(t, 2)
	require.Error(t, mismatched.Restore(snap))

	bad := snap
	bad.Status = 7
	require.Error(t, restored.Restore(bad))
}

// Randomized sequences checked against the aggregation invariants: the
// aggregate status mirrors "all channels idle", emitted watermarks are
// strictly increasing, and every emitted value is the minimum across the
// channels that were aligned at the time.
func TestValve_RandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		numChannels := 1 + rng.Intn(4)
		v := newTestValve(t, numChannels)

		statuses := make([]Status, numChannels)
		marks := make([]Watermark, numChannels)
		for i := range statuses {
			statuses[i] = StatusActive
			marks[i] = MinWatermark
		}
		lastEmitted := MinWatermark

		for step := 0; step < 400; step++ {
			ch := rng.Intn(numChannels)
			if rng.Intn(4) == 0 {
				s := StatusActive
				if rng.Intn(2) == 0 {
					s = StatusIdle
				}
				statuses[ch] = s
				agg, changed := v.OnStatus(ch, s)

				allIdle := true
				for _, st := range statuses {
					if st.IsActive() {
						allIdle = false
						break
					}
				}
				if allIdle {
					require.Equal(t, StatusIdle, v.AggregateStatus())
				} else {
					require.Equal(t, StatusActive, v.AggregateStatus())
				}
				if changed {
					require.Equal(t, v.AggregateStatus(), agg)
				}
				continue
			}

			// Watermarks per channel are kept non-decreasing, as the
			// upstream contract promises.
			var next Watermark
			if marks[ch] == MinWatermark {
				next = Watermark(rng.Intn(100))
			} else {
				next = marks[ch] + Watermark(rng.Intn(20))
			}
			marks[ch] = next
			w, emitted := v.OnWatermark(ch, next)
			if !emitted {
				continue
			}

			require.True(t, lastEmitted.Before(w), "emitted watermarks must be strictly increasing")
			lastEmitted = w

			if statuses[ch].IsIdle() {
				t.Fatalf("watermark emitted for an update on idle channel %d", ch)
			}

			// The emitted value never exceeds any active channel that has
			// caught up to it, and matches at least one channel exactly.
			match := false
			for i := range marks {
				if statuses[i].IsActive() && !marks[i].Before(w) {
					if marks[i] == w {
						match = true
					}
				}
			}
			require.True(t, match, "emitted watermark %v not held by any active channel", w)
		}
	}
}
