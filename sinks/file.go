package sinks

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/stream"
)

// FileSink appends every element as one JSON line, control events
// included. The resulting file doubles as a readable trace of how the
// task's watermark advanced relative to its records.
type FileSink struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	// File details
	filePath string
	file     *os.File

	mu     sync.Mutex
	writer *bufio.Writer
	done   chan struct{}
}

func (f *FileSink) Init(args SinkConfig) error {
	f.pipelineKey = args.Key
	f.pipelineName = args.Name
	f.pipelineConnectionType = args.ConnectionType

	if args.Config["file_path"] == "" {
		log.Error().Msg("Missing file_path in config")
		return fmt.Errorf("missing file_path")
	}
	f.filePath = args.Config["file_path"]
	return nil
}

func (f *FileSink) Open(ctx context.Context) (chan<- stream.Element, error) {
	log.Trace().Str("file_path", f.filePath).Msg("Preparing to open file for writing")

	// Ensure parent directory exists
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Err(err).Str("directory", dir).Msg("Failed to create parent directories")
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	file, err := os.OpenFile(f.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Err(err).Msg("Failed to open file")
		return nil, err
	}
	f.file = file
	f.writer = bufio.NewWriter(file)
	f.done = make(chan struct{})

	in := make(chan stream.Element)
	go func() {
		defer close(f.done)
		for element := range in {
			docBytes, err := encodeElement(element)
			if err != nil {
				log.Err(err).Msg("Failed to encode element, dropping")
				continue
			}
			f.mu.Lock()
			if _, err := f.writer.Write(append(docBytes, '\n')); err != nil {
				log.Err(err).Msg("Failed to write to file")
			}
			f.mu.Unlock()
		}
	}()
	return in, nil
}

func (f *FileSink) Close() error {
	if f.done != nil {
		<-f.done
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writer != nil {
		if err := f.writer.Flush(); err != nil {
			return err
		}
	}
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

func (f *FileSink) Name() string {
	return f.pipelineName
}

func (f *FileSink) Info() string {
	return fmt.Sprintf("file sink path=%s", f.filePath)
}
