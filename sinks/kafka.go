package sinks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink produces records to a topic. Control elements (watermarks and
// status changes) are produced to a separate control topic when one is
// configured, otherwise they are dropped here, at the edge of the
// topology.
type KafkaSink struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string
	// Kafka Producer details
	bootstrapServers string
	topic            string
	controlTopic     string

	kafkaProducerClient *kgo.Client

	done chan struct{}
}

func (k *KafkaSink) Init(args SinkConfig) error {
	k.pipelineKey = args.Key
	k.pipelineName = args.Name
	k.pipelineConnectionType = args.ConnectionType

	if args.Config["bootstrap_servers"] == "" || args.Config["topic"] == "" {
		log.Error().Msg("Error missing config values")
		return fmt.Errorf("error missing config values")
	}
	log.Debug().Str("bootstrap_servers", args.Config["bootstrap_servers"]).Str("topic", args.Config["topic"]).Send()

	k.bootstrapServers = args.Config["bootstrap_servers"]
	k.topic = args.Config["topic"]
	k.controlTopic = args.Config["control_topic"]
	return nil
}

func (k *KafkaSink) Open(ctx context.Context) (chan<- stream.Element, error) {
	log.Trace().Msg("Connecting to kafka cluster as a sink...")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.bootstrapServers),
		kgo.DefaultProduceTopic(k.topic),
		kgo.AllowAutoTopicCreation(),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		log.Err(err).Msg("Error when creating a kafka producer!")
		return nil, err
	}
	k.kafkaProducerClient = client
	k.done = make(chan struct{})

	in := make(chan stream.Element)
	go func() {
		defer close(k.done)
		for element := range in {
			topic := k.topic
			if _, isRecord := element.(*models.Record); !isRecord {
				if k.controlTopic == "" {
					continue
				}
				topic = k.controlTopic
			}

			docBytes, err := encodeElement(element)
			if err != nil {
				log.Err(err).Msg("Failed to encode element, dropping")
				continue
			}
			record := &kgo.Record{Topic: topic, Value: docBytes}
			if r, ok := element.(*models.Record); ok {
				record.Key = []byte(r.Key)
				record.Timestamp = r.EventTime
			}
			k.kafkaProducerClient.Produce(ctx, record, func(record *kgo.Record, err error) {
				if err != nil {
					log.Err(err).Str("topic", record.Topic).Msg("record had a produce error")
				}
			})
		}
		if err := k.kafkaProducerClient.Flush(context.Background()); err != nil {
			log.Err(err).Msg("Error flushing kafka producer")
		}
	}()
	return in, nil
}

func (k *KafkaSink) Close() error {
	if k.done != nil {
		<-k.done
	}
	if k.kafkaProducerClient != nil {
		k.kafkaProducerClient.Close()
	}
	return nil
}

func (k *KafkaSink) Name() string {
	return k.pipelineName
}

func (k *KafkaSink) Info() string {
	return fmt.Sprintf("kafka sink topic=%s", k.topic)
}
