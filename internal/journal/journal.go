package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/sluice/internal/logger"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed journal.
	ErrClosed = errors.New("journal: closed")
	// ErrCorrupted is returned when an event fails its checksum.
	ErrCorrupted = errors.New("journal: corruption detected")
)

const (
	segmentFileExtension = ".journal"

	// Per-event frame: payload length then CRC32 of the payload.
	frameLengthSize   = 4
	frameChecksumSize = 4

	segmentWriterBufferSize = 64 * 1024
)

// Journal is an append-only, segmented log of the control events tasks
// emit: every aggregate watermark advance and status flip, in emission
// order. It exists for replay and audit, not recovery; recovery goes
// through checkpoints.
//
// Segments rotate by size and old ones are deleted beyond the retention
// limit, so the journal is a bounded sliding window over recent output.
type Journal struct {
	config      Config
	dir         string
	compression CompressionType
	logger      zerolog.Logger

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	segmentID   int64 // logical offset of the current segment's first event
	segmentSize int64
	segments    []int64 // ids of all live segments, ascending
	nextOffset  int64
	closed      bool

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// Open opens the journal in config.Directory, creating it if needed. An
// existing journal is resumed: the next offset continues after the last
// event already on disk.
func Open(config Config) (*Journal, error) {
	if config.Directory == "" {
		return nil, errors.New("journal: directory not set")
	}
	if config.SegmentSize <= 0 {
		config.SegmentSize = DefaultConfig().SegmentSize
	}
	if config.MaxSegments <= 0 {
		config.MaxSegments = DefaultConfig().MaxSegments
	}
	compression, err := ParseCompressionType(config.Compression)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.Directory, 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	j := &Journal{
		config:      config,
		dir:         config.Directory,
		compression: compression,
		logger:      logger.GetLogger("journal"),
		shutdownCh:  make(chan struct{}),
	}

	if err := j.loadSegments(); err != nil {
		return nil, err
	}
	if err := j.openCurrentSegment(); err != nil {
		return nil, err
	}

	if config.SyncInterval > 0 {
		j.wg.Add(1)
		go j.syncLoop()
	}

	j.logger.Info().Str("dir", j.dir).Int64("next_offset", j.nextOffset).
		Int("segments", len(j.segments)).Msg("journal open")
	return j, nil
}

// loadSegments scans the directory for existing segments and determines
// the next logical offset by counting events in the newest segment.
func (j *Journal) loadSegments() error {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return fmt.Errorf("reading journal directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, segmentFileExtension) {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(strings.TrimSuffix(name, segmentFileExtension), "%d", &id); err != nil {
			j.logger.Warn().Str("file", name).Msg("skipping unparseable segment file")
			continue
		}
		j.segments = append(j.segments, id)
	}
	sort.Slice(j.segments, func(a, b int) bool { return j.segments[a] < j.segments[b] })

	if len(j.segments) == 0 {
		j.nextOffset = 0
		return nil
	}

	last := j.segments[len(j.segments)-1]
	count, err := j.countEvents(j.segmentPath(last))
	if err != nil {
		return err
	}
	j.nextOffset = last + count
	return nil
}

// openCurrentSegment opens the newest segment for appending, or creates
// the first one.
func (j *Journal) openCurrentSegment() error {
	if len(j.segments) == 0 {
		return j.createSegment(j.nextOffset)
	}
	id := j.segments[len(j.segments)-1]
	file, err := os.OpenFile(j.segmentPath(id), os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening segment: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat segment: %w", err)
	}
	j.file = file
	j.writer = bufio.NewWriterSize(file, segmentWriterBufferSize)
	j.segmentID = id
	j.segmentSize = stat.Size()
	return nil
}

func (j *Journal) segmentPath(id int64) string {
	return filepath.Join(j.dir, fmt.Sprintf("%020d%s", id, segmentFileExtension))
}

func (j *Journal) createSegment(id int64) error {
	file, err := os.OpenFile(j.segmentPath(id), os.O_CREATE|os.O_RDWR|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating segment: %w", err)
	}
	j.file = file
	j.writer = bufio.NewWriterSize(file, segmentWriterBufferSize)
	j.segmentID = id
	j.segmentSize = 0
	j.segments = append(j.segments, id)
	j.logger.Debug().Int64("segment", id).Msg("segment created")
	return nil
}

// Append writes one event to the journal and returns its logical offset.
// The event's Offset and Timestamp fields are assigned here.
func (j *Journal) Append(ev Event) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	ev.Offset = j.nextOffset
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	payload, err := encodeEvent(&ev)
	if err != nil {
		return 0, err
	}
	payload, err = j.compress(payload)
	if err != nil {
		return 0, err
	}

	var frame [frameLengthSize + frameChecksumSize]byte
	binary.BigEndian.PutUint32(frame[:frameLengthSize], uint32(len(payload)))
	binary.BigEndian.PutUint32(frame[frameLengthSize:], crc32.ChecksumIEEE(payload))
	if _, err := j.writer.Write(frame[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(payload); err != nil {
		return 0, err
	}

	j.segmentSize += int64(len(frame) + len(payload))
	j.nextOffset++

	if j.segmentSize >= j.config.SegmentSize {
		if err := j.rotate(); err != nil {
			return 0, err
		}
	}
	return ev.Offset, nil
}

// rotate closes the current segment and starts a new one, dropping the
// oldest segments beyond the retention limit. Caller holds mu.
func (j *Journal) rotate() error {
	if err := j.closeCurrentSegment(); err != nil {
		return err
	}
	if err := j.createSegment(j.nextOffset); err != nil {
		return err
	}
	for len(j.segments) > j.config.MaxSegments {
		oldest := j.segments[0]
		if err := os.Remove(j.segmentPath(oldest)); err != nil && !os.IsNotExist(err) {
			j.logger.Err(err).Int64("segment", oldest).Msg("removing expired segment failed")
			break
		}
		j.segments = j.segments[1:]
		j.logger.Debug().Int64("segment", oldest).Msg("expired segment removed")
	}
	return nil
}

func (j *Journal) closeCurrentSegment() error {
	if j.file == nil {
		return nil
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// Sync flushes buffered events to the OS and fsyncs the segment file.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Sync()
}

func (j *Journal) syncLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.config.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.shutdownCh:
			return
		case <-ticker.C:
			if err := j.Sync(); err != nil && !errors.Is(err, ErrClosed) {
				j.logger.Err(err).Msg("periodic sync failed")
			}
		}
	}
}

// Replay calls fn for every event with offset >= from, in offset order.
// It flushes pending writes first so the caller sees everything appended
// so far. Returning an error from fn stops the replay.
func (j *Journal) Replay(from int64, fn func(Event) error) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	if err := j.writer.Flush(); err != nil {
		j.mu.Unlock()
		return err
	}
	segments := make([]int64, len(j.segments))
	copy(segments, j.segments)
	j.mu.Unlock()

	for _, id := range segments {
		err := j.replaySegment(j.segmentPath(id), func(ev *Event) error {
			if ev.Offset < from {
				return nil
			}
			return fn(*ev)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// replaySegment reads one segment file front to back.
func (j *Journal) replaySegment(path string, fn func(*Event) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening segment for replay: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, segmentWriterBufferSize)
	var frame [frameLengthSize + frameChecksumSize]byte
	for {
		if _, err := io.ReadFull(reader, frame[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			// A torn frame at the tail means the process died mid-write;
			// everything before it is still good.
			if err == io.ErrUnexpectedEOF {
				j.logger.Warn().Str("segment", path).Msg("truncated frame at segment tail")
				return nil
			}
			return err
		}
		length := binary.BigEndian.Uint32(frame[:frameLengthSize])
		checksum := binary.BigEndian.Uint32(frame[frameLengthSize:])

		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				j.logger.Warn().Str("segment", path).Msg("truncated event at segment tail")
				return nil
			}
			return err
		}
		if crc32.ChecksumIEEE(payload) != checksum {
			return fmt.Errorf("%w: bad checksum in %s", ErrCorrupted, path)
		}
		payload, err = j.decompress(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		ev, err := decodeEvent(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// countEvents counts the frames in a segment file without decoding them.
func (j *Journal) countEvents(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening segment: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, segmentWriterBufferSize)
	var (
		count int64
		frame [frameLengthSize + frameChecksumSize]byte
	)
	for {
		if _, err := io.ReadFull(reader, frame[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return count, nil
			}
			return 0, err
		}
		length := binary.BigEndian.Uint32(frame[:frameLengthSize])
		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if err == io.EOF {
				return count, nil
			}
			return 0, err
		}
		count++
	}
}

// NextOffset returns the offset the next appended event will get.
func (j *Journal) NextOffset() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextOffset
}

// Close flushes and closes the journal. Appends after Close fail with
// ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.shutdownCh)
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeCurrentSegment()
}
