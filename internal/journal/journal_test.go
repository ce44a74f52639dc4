package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/sluice/internal/watermark"
	"github.com/tarungka/sluice/stream"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	config := DefaultConfig()
	config.Directory = t.TempDir()
	config.SyncInterval = 0
	return config
}

func collectEvents(t *testing.T, j *Journal, from int64) []Event {
	t.Helper()
	var events []Event
	require.NoError(t, j.Replay(from, func(ev Event) error {
		events = append(events, ev)
		return nil
	}))
	return events
}

func TestJournal_AppendAndReplay(t *testing.T) {
	j, err := Open(testConfig(t))
	require.NoError(t, err)
	defer j.Close()

	inputs := []Event{
		{TaskID: "task-1", Kind: EventWatermark, Channel: 0, Value: 10},
		{TaskID: "task-1", Kind: EventWatermark, Channel: 0, Value: 20},
		{TaskID: "task-1", Kind: EventStatus, Channel: 0, Value: -1},
		{TaskID: "task-1", Kind: EventStatus, Channel: 0, Value: 0},
		{TaskID: "task-1", Kind: EventWatermark, Channel: 0, Value: 30},
	}
	for i, in := range inputs {
		offset, err := j.Append(in)
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset)
	}

	events := collectEvents(t, j, 0)
	require.Len(t, events, len(inputs))
	for i, ev := range events {
		assert.Equal(t, int64(i), ev.Offset)
		assert.Equal(t, inputs[i].Kind, ev.Kind)
		assert.Equal(t, inputs[i].Value, ev.Value)
		assert.Equal(t, "task-1", ev.TaskID)
		assert.False(t, ev.Timestamp.IsZero())
	}

	tail := collectEvents(t, j, 3)
	require.Len(t, tail, 2)
	assert.Equal(t, int64(3), tail[0].Offset)
}

func TestJournal_ReopenContinuesOffsets(t *testing.T) {
	config := testConfig(t)

	j, err := Open(config)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := j.Append(Event{TaskID: "task-1", Kind: EventWatermark, Value: int64(i)})
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())

	j, err = Open(config)
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, int64(3), j.NextOffset())

	offset, err := j.Append(Event{TaskID: "task-1", Kind: EventWatermark, Value: 99})
	require.NoError(t, err)
	assert.Equal(t, int64(3), offset)

	events := collectEvents(t, j, 0)
	require.Len(t, events, 4)
	assert.Equal(t, int64(99), events[3].Value)
}

func TestJournal_RotationDropsExpiredSegments(t *testing.T) {
	config := testConfig(t)
	config.SegmentSize = 1 // rotate on every append
	config.MaxSegments = 2

	j, err := Open(config)
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 10; i++ {
		_, err := j.Append(Event{TaskID: "task-1", Kind: EventWatermark, Value: int64(i)})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(10), j.NextOffset())

	// Only the newest segments survive; the oldest events are gone but
	// offsets keep counting.
	events := collectEvents(t, j, 0)
	require.NotEmpty(t, events)
	assert.Less(t, len(events), 10)
	assert.Equal(t, int64(9), events[len(events)-1].Offset)
}

func TestJournal_Compression(t *testing.T) {
	for _, compression := range []string{"snappy", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			config := testConfig(t)
			config.Compression = compression

			j, err := Open(config)
			require.NoError(t, err)
			defer j.Close()

			for i := 0; i < 20; i++ {
				_, err := j.Append(Event{TaskID: "task-1", Kind: EventWatermark, Value: int64(i * 5)})
				require.NoError(t, err)
			}
			events := collectEvents(t, j, 0)
			require.Len(t, events, 20)
			assert.Equal(t, int64(95), events[19].Value)
		})
	}
}

func TestJournal_Observer(t *testing.T) {
	j, err := Open(testConfig(t))
	require.NoError(t, err)
	defer j.Close()

	observe := j.Observer("task-1")
	observe(stream.Watermark{Channel: 2, Value: watermark.Watermark(42)})
	observe(stream.WatermarkStatus{Channel: 2, Value: watermark.StatusIdle})

	events := collectEvents(t, j, 0)
	require.Len(t, events, 2)
	assert.Equal(t, EventWatermark, events[0].Kind)
	assert.Equal(t, int64(42), events[0].Value)
	assert.Equal(t, int32(2), events[0].Channel)
	assert.Equal(t, EventStatus, events[1].Kind)
	assert.Equal(t, int64(-1), events[1].Value)
}

func TestParseCompressionType(t *testing.T) {
	for in, want := range map[string]CompressionType{
		"":       CompressionNone,
		"none":   CompressionNone,
		"snappy": CompressionSnappy,
		"ZSTD":   CompressionZSTD,
	} {
		got, err := ParseCompressionType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompressionType("lz4")
	require.Error(t, err)
}
