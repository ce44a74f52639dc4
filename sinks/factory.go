package sinks

import (
	"encoding/json"
	"fmt"

	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/stream"
)

// Sink is a stream.Sink that can be configured from a pipeline config
// block before being opened.
type Sink interface {
	stream.Sink

	// Init parses and validates the sink's config block.
	Init(args SinkConfig) error

	// Name of the sink instance.
	Name() string

	// Info about the sink, for logs.
	Info() string
}

// NewSink builds a sink from its config block.
func NewSink(args SinkConfig) (Sink, error) {
	var sink Sink
	switch args.ConnectionType {
	case "file":
		sink = &FileSink{}
	case "kafka":
		sink = &KafkaSink{}
	case "elasticsearch":
		sink = &ElasticSink{}
	default:
		return nil, fmt.Errorf("unknown sink type: %s", args.ConnectionType)
	}
	if err := sink.Init(args); err != nil {
		return nil, err
	}
	return sink, nil
}

// encodeElement renders one stream element as a single JSON document. All
// sinks share this encoding so a record looks the same in a file, a kafka
// topic or an index.
func encodeElement(element stream.Element) ([]byte, error) {
	switch e := element.(type) {
	case *models.Record:
		data, err := e.GetData()
		if err != nil {
			data = nil
		}
		return json.Marshal(map[string]any{
			"type":              "record",
			"id":                e.ID.String(),
			"key":               e.Key,
			"channel":           e.Channel,
			"event_time":        e.EventTime,
			"event_time_millis": e.EventTimeMillis(),
			"data":              data,
		})
	case stream.Watermark:
		return json.Marshal(map[string]any{
			"type":      "watermark",
			"channel":   e.Channel,
			"watermark": e.Value.String(),
			"millis":    e.Value.Millis(),
		})
	case stream.WatermarkStatus:
		return json.Marshal(map[string]any{
			"type":    "status",
			"channel": e.Channel,
			"status":  e.Value.String(),
		})
	case stream.Barrier:
		return json.Marshal(map[string]any{
			"type":          "barrier",
			"checkpoint_id": e.CheckpointID,
		})
	default:
		return nil, fmt.Errorf("cannot encode element of kind %T", element)
	}
}
