package sources

import (
	"fmt"

	"github.com/tarungka/sluice/stream"
)

// Source is a stream.Source that can be configured from a pipeline config
// block before being opened.
type Source interface {
	stream.Source

	// Init parses and validates the source's config block.
	Init(args SourceConfig) error

	// Name of the source instance.
	Name() string

	// Info about the source, for logs.
	Info() string
}

// NewSource builds a source from its config block.
func NewSource(args SourceConfig) (Source, error) {
	var source Source
	switch args.ConnectionType {
	case "kafka":
		source = &KafkaSource{}
	case "generator":
		source = &GeneratorSource{}
	default:
		return nil, fmt.Errorf("unknown source type: %s", args.ConnectionType)
	}
	if err := source.Init(args); err != nil {
		return nil, err
	}
	return source, nil
}
