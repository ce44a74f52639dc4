package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/internal/watermark"
)

// BarrierHandler is invoked when a checkpoint barrier passes through the
// task, with a snapshot taken at the barrier position.
type BarrierHandler func(checkpointID int64, snapshot TaskSnapshot)

// TaskSnapshot is the persisted form of a task: the valve plus the state of
// every operator. It round-trips through JSON.
type TaskSnapshot struct {
	TaskID       string             `json:"task_id"`
	CheckpointID int64              `json:"checkpoint_id"`
	Valve        watermark.Snapshot `json:"valve"`
	Operators    map[string]State   `json:"operators"`
}

// Task runs one stage of a topology: it drains a multi-channel source
// through a single dispatch loop, pushes data records through its operator
// chain, and feeds per-channel watermark/status events to its valve. When
// the valve reports an aggregate change, the task forwards exactly one
// control element downstream.
//
// The single loop is what guarantees the valve's single-writer contract:
// all OnStatus/OnWatermark calls happen on the loop goroutine, no matter
// how many upstream connections feed the source.
type Task struct {
	id            string
	source        Source
	sink          Sink
	operators     []Operator
	valve         *watermark.Valve
	valveOpts     []watermark.Option
	outputChannel int

	onBarrier BarrierHandler
	onEmit    func(Element)

	// mu guards valve and counters between the dispatch loop and
	// concurrent Status/Snapshot readers (e.g. the HTTP server).
	mu sync.RWMutex

	recordsProcessed     uint64
	watermarksEmitted    uint64
	statusChangesEmitted uint64
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithOutputChannel sets the channel id the task's emitted control
// elements carry, i.e. the input channel this task occupies at the next
// stage downstream. Defaults to 0.
func WithOutputChannel(channel int) TaskOption {
	return func(t *Task) {
		t.outputChannel = channel
	}
}

// WithBarrierHandler registers a handler for checkpoint barriers.
func WithBarrierHandler(h BarrierHandler) TaskOption {
	return func(t *Task) {
		t.onBarrier = h
	}
}

// WithEmitObserver registers a callback invoked with every control
// element the task emits downstream (watermarks and status changes, not
// data records). The callback runs on the dispatch loop, so it must not
// block; the emitted-event journal hooks in here.
func WithEmitObserver(fn func(Element)) TaskOption {
	return func(t *Task) {
		t.onEmit = fn
	}
}

// WithStrictWatermarks enables the valve's non-monotonicity logging.
func WithStrictWatermarks() TaskOption {
	return func(t *Task) {
		t.valveOpts = append(t.valveOpts, watermark.WithStrictMonotonicity())
	}
}

// NewTask creates a task over a source and sink. The valve is sized by the
// source's fixed channel count.
func NewTask(id string, source Source, sink Sink, opts ...TaskOption) (*Task, error) {
	if id == "" {
		tid, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		id = tid.String()
	}
	t := &Task{
		id:     id,
		source: source,
		sink:   sink,
	}
	for _, opt := range opts {
		opt(t)
	}
	v, err := watermark.NewValve(source.Channels(), t.valveOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating valve for task %s: %w", id, err)
	}
	t.valve = v
	return t, nil
}

// AddOperator appends an operator to the task's chain.
func (t *Task) AddOperator(operator Operator) {
	t.operators = append(t.operators, operator)
}

// ID returns the task id.
func (t *Task) ID() string {
	return t.id
}

// Run drains the source until it closes or the context is cancelled. It is
// the only goroutine that touches the valve.
func (t *Task) Run(ctx context.Context) error {
	sourceChan, err := t.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	sinkChan, err := t.sink.Open(ctx)
	if err != nil {
		t.source.Close()
		return fmt.Errorf("opening sink: %w", err)
	}
	defer t.source.Close()
	defer t.sink.Close()
	defer close(sinkChan)

	log.Info().Str("task", t.id).Int("channels", t.valve.NumChannels()).Msg("task loop starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case element, ok := <-sourceChan:
			if !ok {
				log.Info().Str("task", t.id).Msg("source closed, task loop done")
				return nil
			}
			out, forward := t.handle(element)
			if !forward {
				continue
			}
			select {
			case sinkChan <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handle processes one inbound element and returns the element to forward
// downstream, if any. At most one outbound element per inbound one.
func (t *Task) handle(element Element) (Element, bool) {
	switch e := element.(type) {
	case *models.Record:
		record := e
		for _, operator := range t.operators {
			record = operator.ProcessRecord(record)
			if record == nil {
				return nil, false
			}
		}
		t.mu.Lock()
		t.recordsProcessed++
		t.mu.Unlock()
		return record, true

	case Watermark:
		t.mu.Lock()
		w, emitted := t.valve.OnWatermark(e.Channel, e.Value)
		if emitted {
			t.watermarksEmitted++
		}
		t.mu.Unlock()
		if !emitted {
			return nil, false
		}
		for _, operator := range t.operators {
			operator.OnWatermark(w)
		}
		log.Debug().Str("task", t.id).Stringer("watermark", w).Msg("aggregate watermark advanced")
		out := Watermark{Channel: t.outputChannel, Value: w}
		if t.onEmit != nil {
			t.onEmit(out)
		}
		return out, true

	case WatermarkStatus:
		t.mu.Lock()
		s, changed := t.valve.OnStatus(e.Channel, e.Value)
		if changed {
			t.statusChangesEmitted++
		}
		t.mu.Unlock()
		if !changed {
			return nil, false
		}
		log.Debug().Str("task", t.id).Stringer("status", s).Msg("aggregate status changed")
		out := WatermarkStatus{Channel: t.outputChannel, Value: s}
		if t.onEmit != nil {
			t.onEmit(out)
		}
		return out, true

	case Barrier:
		if t.onBarrier != nil {
			t.onBarrier(e.CheckpointID, t.Snapshot(e.CheckpointID))
		}
		return e, true

	default:
		log.Warn().Str("task", t.id).Msgf("dropping element of unknown kind %T", element)
		return nil, false
	}
}

// Snapshot captures the task's valve and operator state.
func (t *Task) Snapshot(checkpointID int64) TaskSnapshot {
	t.mu.RLock()
	valveSnap := t.valve.Snapshot()
	t.mu.RUnlock()

	snap := TaskSnapshot{
		TaskID:       t.id,
		CheckpointID: checkpointID,
		Valve:        valveSnap,
		Operators:    make(map[string]State, len(t.operators)),
	}
	for _, operator := range t.operators {
		snap.Operators[operator.ID()] = operator.Snapshot(checkpointID)
	}
	return snap
}

// Restore replaces the task's valve and operator state with a snapshot.
// Must be called before Run.
func (t *Task) Restore(snap TaskSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.valve.Restore(snap.Valve); err != nil {
		return fmt.Errorf("restoring valve for task %s: %w", t.id, err)
	}
	for _, operator := range t.operators {
		if state, ok := snap.Operators[operator.ID()]; ok {
			operator.Restore(state)
		}
	}
	return nil
}

// ChannelInfo is one channel's tracked state, as reported by Status.
type ChannelInfo struct {
	Channel         int    `json:"channel"`
	Status          string `json:"status"`
	Watermark       string `json:"watermark"`
	WatermarkMillis int64  `json:"watermark_millis"`
}

// TaskStatus is a point-in-time view of the task for observability.
type TaskStatus struct {
	ID                   string        `json:"id"`
	AggregateStatus      string        `json:"aggregate_status"`
	AggregateWatermark   string        `json:"aggregate_watermark"`
	WatermarkMillis      int64         `json:"watermark_millis"`
	Channels             []ChannelInfo `json:"channels"`
	RecordsProcessed     uint64        `json:"records_processed"`
	WatermarksEmitted    uint64        `json:"watermarks_emitted"`
	StatusChangesEmitted uint64        `json:"status_changes_emitted"`
}

// Status returns the current state of the task. Safe to call while the
// task loop is running.
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := TaskStatus{
		ID:                   t.id,
		AggregateStatus:      t.valve.AggregateStatus().String(),
		AggregateWatermark:   t.valve.AggregateWatermark().String(),
		WatermarkMillis:      t.valve.AggregateWatermark().Millis(),
		Channels:             make([]ChannelInfo, t.valve.NumChannels()),
		RecordsProcessed:     t.recordsProcessed,
		WatermarksEmitted:    t.watermarksEmitted,
		StatusChangesEmitted: t.statusChangesEmitted,
	}
	for i := range status.Channels {
		status.Channels[i] = ChannelInfo{
			Channel:         i,
			Status:          t.valve.ChannelStatus(i).String(),
			Watermark:       t.valve.ChannelWatermark(i).String(),
			WatermarkMillis: t.valve.ChannelWatermark(i).Millis(),
		}
	}
	return status
}
