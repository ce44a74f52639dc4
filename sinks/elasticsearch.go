package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/internal/watermark"
	"github.com/tarungka/sluice/stream"
)

// ElasticSink indexes records into Elasticsearch. Watermark elements are
// not indexed; the sink tracks the latest one and stamps it onto every
// indexed record, which makes "how late was this record relative to the
// stream's clock" a plain query.
type ElasticSink struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string
	// Elasticsearch connection details
	elasticCloudId string
	elasticUrl     string
	elasticApiKey  string
	elasticIndex   string

	client *elasticsearch.Client

	currentWatermark watermark.Watermark

	done chan struct{}
}

func (e *ElasticSink) Init(args SinkConfig) error {
	e.pipelineKey = args.Key
	e.pipelineName = args.Name
	e.pipelineConnectionType = args.ConnectionType
	e.elasticCloudId = args.Config["cloud_id"]
	e.elasticUrl = args.Config["url"]
	e.elasticApiKey = args.Config["api_key"]
	e.elasticIndex = args.Config["index_name"]
	e.currentWatermark = watermark.MinWatermark

	if e.elasticIndex == "" {
		return fmt.Errorf("error missing index_name")
	}
	if e.elasticCloudId == "" && e.elasticUrl == "" {
		return fmt.Errorf("error missing both cloud_id and url")
	}
	return nil
}

func (e *ElasticSink) Open(ctx context.Context) (chan<- stream.Element, error) {
	log.Trace().Msg("Connecting to elasticsearch...")

	cfg := elasticsearch.Config{
		CloudID: e.elasticCloudId,
		APIKey:  e.elasticApiKey,
	}
	if e.elasticUrl != "" {
		cfg.Addresses = []string{e.elasticUrl}
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		log.Err(err).Msg("Error when creating the elasticsearch client")
		return nil, err
	}
	e.client = client
	e.done = make(chan struct{})

	in := make(chan stream.Element)
	go func() {
		defer close(e.done)
		for element := range in {
			switch el := element.(type) {
			case stream.Watermark:
				e.currentWatermark = el.Value
				continue
			case stream.WatermarkStatus, stream.Barrier:
				continue
			case *models.Record:
				e.indexRecord(ctx, el)
			default:
				log.Warn().Msgf("elasticsearch sink dropping element of kind %T", element)
			}
		}
	}()
	return in, nil
}

func (e *ElasticSink) indexRecord(ctx context.Context, record *models.Record) {
	data, err := record.GetData()
	if err != nil {
		data = nil
	}
	docBytes, err := json.Marshal(map[string]any{
		"key":               record.Key,
		"channel":           record.Channel,
		"event_time":        record.EventTime,
		"event_time_millis": record.EventTimeMillis(),
		"watermark_millis":  e.currentWatermark.Millis(),
		"data":              data,
	})
	if err != nil {
		log.Err(err).Msg("Failed to encode record, dropping")
		return
	}

	req := esapi.IndexRequest{
		Index:      e.elasticIndex,
		DocumentID: record.ID.String(),
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		log.Err(err).Msg("Error indexing record")
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Error().Str("status", res.Status()).Msg("Elasticsearch rejected the record")
	}
}

func (e *ElasticSink) Close() error {
	if e.done != nil {
		<-e.done
	}
	log.Info().Msg("Closing Elasticsearch connection")
	return nil
}

func (e *ElasticSink) Name() string {
	return e.pipelineName
}

func (e *ElasticSink) Info() string {
	return fmt.Sprintf("elasticsearch sink index=%s", e.elasticIndex)
}
