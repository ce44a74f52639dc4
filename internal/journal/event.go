package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// EventKind identifies the kind of control event a journal entry records.
type EventKind int8

const (
	// EventWatermark records an aggregate watermark advance.
	EventWatermark EventKind = iota + 1
	// EventStatus records an aggregate idle/active flip.
	EventStatus
)

// String returns a human-readable name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventWatermark:
		return "watermark"
	case EventStatus:
		return "status"
	default:
		return fmt.Sprintf("unknown(%d)", int8(k))
	}
}

// Event is a single journaled control event: one watermark advance or
// one status change a task emitted downstream.
type Event struct {
	// Offset is the logical offset of the event in the journal.
	Offset int64
	// Timestamp is the wall-clock time the event was journaled.
	Timestamp time.Time
	// TaskID identifies the emitting task.
	TaskID string
	// Kind says whether Value is a watermark or a status code.
	Kind EventKind
	// Channel is the output channel the event was tagged with.
	Channel int32
	// Value is the emitted watermark in epoch millis, or the status code
	// (0 active, -1 idle) for status events.
	Value int64
}

// encodeEvent encodes an event to its binary form.
func encodeEvent(ev *Event) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.BigEndian, ev.Offset); err != nil {
		return nil, fmt.Errorf("failed to write offset: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, ev.Timestamp.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to write timestamp: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, int8(ev.Kind)); err != nil {
		return nil, fmt.Errorf("failed to write kind: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, ev.Channel); err != nil {
		return nil, fmt.Errorf("failed to write channel: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, ev.Value); err != nil {
		return nil, fmt.Errorf("failed to write value: %w", err)
	}
	if err := writeString(buf, ev.TaskID); err != nil {
		return nil, fmt.Errorf("failed to write task id: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeEvent decodes an event from its binary form.
func decodeEvent(data []byte) (*Event, error) {
	buf := bytes.NewReader(data)
	ev := &Event{}

	if err := binary.Read(buf, binary.BigEndian, &ev.Offset); err != nil {
		return nil, fmt.Errorf("failed to read offset: %w", err)
	}
	var nanos int64
	if err := binary.Read(buf, binary.BigEndian, &nanos); err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}
	ev.Timestamp = time.Unix(0, nanos)
	var kind int8
	if err := binary.Read(buf, binary.BigEndian, &kind); err != nil {
		return nil, fmt.Errorf("failed to read kind: %w", err)
	}
	ev.Kind = EventKind(kind)
	if err := binary.Read(buf, binary.BigEndian, &ev.Channel); err != nil {
		return nil, fmt.Errorf("failed to read channel: %w", err)
	}
	if err := binary.Read(buf, binary.BigEndian, &ev.Value); err != nil {
		return nil, fmt.Errorf("failed to read value: %w", err)
	}
	taskID, err := readString(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read task id: %w", err)
	}
	ev.TaskID = taskID

	return ev, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if length < 0 {
		return "", fmt.Errorf("negative string length %d", length)
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
