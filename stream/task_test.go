package stream

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/internal/watermark"
)

// scriptSource plays back a fixed list of elements over a fixed number of
// logical channels.
type scriptSource struct {
	channels int
	elements []Element
}

func (s *scriptSource) Open(ctx context.Context) (<-chan Element, error) {
	out := make(chan Element)
	go func() {
		defer close(out)
		for _, element := range s.elements {
			select {
			case out <- element:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *scriptSource) Channels() int {
	return s.channels
}

func (s *scriptSource) Close() error {
	return nil
}

// collectSink gathers everything the task forwards downstream.
type collectSink struct {
	mu       sync.Mutex
	elements []Element
	done     chan struct{}
}

func newCollectSink() *collectSink {
	return &collectSink{done: make(chan struct{})}
}

func (s *collectSink) Open(ctx context.Context) (chan<- Element, error) {
	in := make(chan Element)
	go func() {
		defer close(s.done)
		for element := range in {
			s.mu.Lock()
			s.elements = append(s.elements, element)
			s.mu.Unlock()
		}
	}()
	return in, nil
}

func (s *collectSink) Close() error {
	return nil
}

func (s *collectSink) collected(t *testing.T) []Element {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("sink never drained")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements
}

func mustRecord(t *testing.T, key string, channel int, eventTime time.Time) *models.Record {
	t.Helper()
	record, err := models.New(map[string]any{"key": key}, eventTime)
	require.NoError(t, err)
	record.Key = key
	record.Channel = channel
	return record
}

func runTask(t *testing.T, task *Task) {
	t.Helper()
	require.NoError(t, task.Run(context.Background()))
}

func TestTask_RecordsFlowThroughOperators(t *testing.T) {
	now := time.Now()
	source := &scriptSource{
		channels: 1,
		elements: []Element{
			mustRecord(t, "keep", 0, now),
			mustRecord(t, "drop", 0, now),
			mustRecord(t, "also-keep", 0, now),
		},
	}
	sink := newCollectSink()

	task, err := NewTask("t1", source, sink)
	require.NoError(t, err)
	task.AddOperator(NewFilterOperator("filter", func(r *models.Record) bool {
		return r.Key != "drop"
	}))
	task.AddOperator(NewMapOperator("upper", func(r *models.Record) *models.Record {
		r.Key = strings.ToUpper(r.Key)
		return r
	}))

	runTask(t, task)

	elements := sink.collected(t)
	require.Len(t, elements, 2)
	assert.Equal(t, "KEEP", elements[0].(*models.Record).Key)
	assert.Equal(t, "ALSO-KEEP", elements[1].(*models.Record).Key)
	assert.Equal(t, uint64(2), task.Status().RecordsProcessed)
}

func TestTask_WatermarkMergeAcrossChannels(t *testing.T) {
	source := &scriptSource{
		channels: 2,
		elements: []Element{
			Watermark{Channel: 0, Value: 10},
			Watermark{Channel: 1, Value: 5},
			Watermark{Channel: 1, Value: 20},
		},
	}
	sink := newCollectSink()

	task, err := NewTask("t1", source, sink, WithOutputChannel(3))
	require.NoError(t, err)
	op := NewBaseOperator("noop")
	task.AddOperator(op)

	runTask(t, task)

	elements := sink.collected(t)
	// Channel 0 alone cannot advance; min(10, 5)=5 advances, then
	// min(10, 20)=10 advances.
	require.Len(t, elements, 2)
	assert.Equal(t, Watermark{Channel: 3, Value: 5}, elements[0])
	assert.Equal(t, Watermark{Channel: 3, Value: 10}, elements[1])

	// Operators track the advancing aggregate.
	assert.Equal(t, watermark.Watermark(10), op.CurrentWatermark())

	status := task.Status()
	assert.Equal(t, uint64(2), status.WatermarksEmitted)
	assert.Equal(t, int64(10), status.WatermarkMillis)
}

func TestTask_IdleChannelUnblocksAggregate(t *testing.T) {
	source := &scriptSource{
		channels: 2,
		elements: []Element{
			Watermark{Channel: 0, Value: 10},
			WatermarkStatus{Channel: 1, Value: watermark.StatusIdle},
			Watermark{Channel: 0, Value: 25},
		},
	}
	sink := newCollectSink()

	task, err := NewTask("t1", source, sink)
	require.NoError(t, err)
	runTask(t, task)

	elements := sink.collected(t)
	// The idle transition does not flip the aggregate status (channel 0 is
	// still active), so the only emissions are watermark advances by the
	// remaining active channel.
	require.Len(t, elements, 2)
	assert.Equal(t, Watermark{Channel: 0, Value: 10}, elements[0])
	assert.Equal(t, Watermark{Channel: 0, Value: 25}, elements[1])
}

func TestTask_AggregateStatusForwarded(t *testing.T) {
	source := &scriptSource{
		channels: 2,
		elements: []Element{
			WatermarkStatus{Channel: 0, Value: watermark.StatusIdle},
			WatermarkStatus{Channel: 1, Value: watermark.StatusIdle},
			WatermarkStatus{Channel: 0, Value: watermark.StatusActive},
		},
	}
	sink := newCollectSink()

	task, err := NewTask("t1", source, sink)
	require.NoError(t, err)
	runTask(t, task)

	elements := sink.collected(t)
	require.Len(t, elements, 2)
	assert.Equal(t, WatermarkStatus{Channel: 0, Value: watermark.StatusIdle}, elements[0])
	assert.Equal(t, WatermarkStatus{Channel: 0, Value: watermark.StatusActive}, elements[1])
	assert.Equal(t, uint64(2), task.Status().StatusChangesEmitted)
}

func TestTask_BarrierSnapshotsAndForwards(t *testing.T) {
	source := &scriptSource{
		channels: 1,
		elements: []Element{
			Watermark{Channel: 0, Value: 42},
			Barrier{CheckpointID: 7},
		},
	}
	sink := newCollectSink()

	var snapshots []TaskSnapshot
	task, err := NewTask("t1", source, sink, WithBarrierHandler(func(id int64, snap TaskSnapshot) {
		snapshots = append(snapshots, snap)
	}))
	require.NoError(t, err)
	runTask(t, task)

	elements := sink.collected(t)
	require.Len(t, elements, 2)
	assert.Equal(t, Barrier{CheckpointID: 7}, elements[1])

	require.Len(t, snapshots, 1)
	assert.Equal(t, "t1", snapshots[0].TaskID)
	assert.Equal(t, int64(7), snapshots[0].CheckpointID)
	assert.Equal(t, int64(42), snapshots[0].Valve.Watermark)
}

func TestTask_SnapshotRestoreRoundTrip(t *testing.T) {
	source := &scriptSource{
		channels: 2,
		elements: []Element{
			Watermark{Channel: 0, Value: 10},
			Watermark{Channel: 1, Value: 15},
		},
	}
	sink := newCollectSink()
	task, err := NewTask("t1", source, sink)
	require.NoError(t, err)
	runTask(t, task)
	sink.collected(t)

	snap := task.Snapshot(1)

	restoredSource := &scriptSource{channels: 2, elements: []Element{
		Watermark{Channel: 0, Value: 20},
		Watermark{Channel: 1, Value: 25},
	}}
	restoredSink := newCollectSink()
	restored, err := NewTask("t1", restoredSource, restoredSink)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snap))

	runTask(t, restored)
	elements := restoredSink.collected(t)
	// The restored task continues from aggregate 10: 20 alone gives
	// min(20, 15)=15, then min(20, 25)=20.
	require.Len(t, elements, 2)
	assert.Equal(t, Watermark{Channel: 0, Value: 15}, elements[0])
	assert.Equal(t, Watermark{Channel: 0, Value: 20}, elements[1])
}

func TestTask_GeneratedID(t *testing.T) {
	source := &scriptSource{channels: 1}
	task, err := NewTask("", source, newCollectSink())
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID())
}
