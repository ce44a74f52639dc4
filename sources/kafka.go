package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/internal/partitioner"
	"github.com/tarungka/sluice/internal/watermark"
	"github.com/tarungka/sluice/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// kafkaChannel is the source-side view of one logical channel: the highest
// event time seen, when the last record arrived, and whether the channel
// has been declared idle downstream.
type kafkaChannel struct {
	maxEventTime  time.Time
	lastRecord    time.Time
	lastWatermark watermark.Watermark
	idle          bool
}

// KafkaSource consumes a topic and fans the records out over a fixed
// number of logical channels: by key hash for keyed records, partition
// modulo channel count otherwise. It assigns
// each record its broker timestamp as event time, emits a periodic
// watermark per channel, and declares a channel idle when no record has
// arrived on it for the configured idle timeout. The valve downstream is
// what keeps idle channels from stalling the task's watermark.
type KafkaSource struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	bootstrapServers string
	consumerGroup    string
	topic            string

	numChannels       int
	idleTimeout       time.Duration
	watermarkInterval time.Duration
	maxLateness       time.Duration

	kafkaConsumerClient *kgo.Client

	mu       sync.Mutex
	channels []kafkaChannel

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (k *KafkaSource) Init(args SourceConfig) error {
	k.pipelineKey = args.Key
	k.pipelineName = args.Name
	k.pipelineConnectionType = args.ConnectionType

	if args.Config["bootstrap_servers"] == "" || args.Config["group"] == "" || args.Config["topic"] == "" {
		log.Error().Msg("Error missing config values")
		return fmt.Errorf("error missing config values")
	}
	k.bootstrapServers = args.Config["bootstrap_servers"]
	k.consumerGroup = args.Config["group"]
	k.topic = args.Config["topic"]

	var err error
	if k.numChannels, err = args.intOr("channels", 1); err != nil {
		return err
	}
	if k.numChannels < 1 {
		return fmt.Errorf("kafka source needs at least one channel, got %d", k.numChannels)
	}
	if k.idleTimeout, err = args.durationOr("idle_timeout", 30*time.Second); err != nil {
		return err
	}
	if k.watermarkInterval, err = args.durationOr("watermark_interval", time.Second); err != nil {
		return err
	}
	if k.maxLateness, err = args.durationOr("max_lateness", 0); err != nil {
		return err
	}

	log.Debug().
		Str("bootstrap_servers", k.bootstrapServers).
		Str("topic", k.topic).
		Str("group", k.consumerGroup).
		Int("channels", k.numChannels).
		Dur("idle_timeout", k.idleTimeout).
		Send()
	return nil
}

func (k *KafkaSource) Channels() int {
	return k.numChannels
}

func (k *KafkaSource) Open(ctx context.Context) (<-chan stream.Element, error) {
	log.Trace().Msg("Connecting to kafka cluster as a source...")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.bootstrapServers),
		kgo.ConsumerGroup(k.consumerGroup),
		kgo.ConsumeTopics(k.topic),
		kgo.AutoCommitMarks(),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		log.Err(err).Msg("Error when creating a kafka consumer!")
		return nil, err
	}
	k.kafkaConsumerClient = client

	ctx, k.cancel = context.WithCancel(ctx)
	now := time.Now()
	k.channels = make([]kafkaChannel, k.numChannels)
	for i := range k.channels {
		k.channels[i] = kafkaChannel{lastRecord: now, lastWatermark: watermark.MinWatermark}
	}

	out := make(chan stream.Element, 64)
	k.wg.Add(2)
	go k.pollLoop(ctx, out)
	go k.punctuateLoop(ctx, out)
	go func() {
		k.wg.Wait()
		close(out)
	}()
	return out, nil
}

// pollLoop drains the consumer and forwards records, reactivating any
// channel that was idle the moment data shows up on it again.
func (k *KafkaSource) pollLoop(ctx context.Context, out chan<- stream.Element) {
	defer k.wg.Done()
	for {
		fetches := k.kafkaConsumerClient.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			// Keyed records get a stable channel regardless of how the
			// topic's partitions map onto channels; unkeyed ones follow
			// their partition.
			var channel int
			if len(rec.Key) > 0 {
				channel = partitioner.Assign(rec.Key, k.numChannels)
			} else {
				channel = int(rec.Partition) % k.numChannels
			}

			record, err := models.New(rec.Value, rec.Timestamp)
			if err != nil {
				log.Err(err).Msg("dropping kafka record")
				continue
			}
			record.Key = string(rec.Key)
			record.Channel = channel

			k.mu.Lock()
			ch := &k.channels[channel]
			wasIdle := ch.idle
			ch.idle = false
			ch.lastRecord = time.Now()
			if rec.Timestamp.After(ch.maxEventTime) {
				ch.maxEventTime = rec.Timestamp
			}
			k.mu.Unlock()

			if wasIdle {
				log.Debug().Int("channel", channel).Msg("kafka channel active again")
				if !send(ctx, out, stream.WatermarkStatus{Channel: channel, Value: watermark.StatusActive}) {
					return
				}
			}
			if !send(ctx, out, record) {
				return
			}
		}
	}
}

// punctuateLoop emits the per-channel watermarks and flags channels idle
// when they have been quiet past the idle timeout.
func (k *KafkaSource) punctuateLoop(ctx context.Context, out chan<- stream.Element) {
	defer k.wg.Done()
	ticker := time.NewTicker(k.watermarkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := time.Now()
		for channel := range k.channels {
			k.mu.Lock()
			ch := &k.channels[channel]
			if ch.idle {
				k.mu.Unlock()
				continue
			}
			if now.Sub(ch.lastRecord) > k.idleTimeout {
				ch.idle = true
				k.mu.Unlock()
				log.Debug().Int("channel", channel).Dur("idle_timeout", k.idleTimeout).Msg("kafka channel went idle")
				if !send(ctx, out, stream.WatermarkStatus{Channel: channel, Value: watermark.StatusIdle}) {
					return
				}
				continue
			}
			var next watermark.Watermark
			emit := false
			if !ch.maxEventTime.IsZero() {
				next = watermark.Watermark(ch.maxEventTime.Add(-k.maxLateness).UnixMilli())
				if ch.lastWatermark.Before(next) {
					ch.lastWatermark = next
					emit = true
				}
			}
			k.mu.Unlock()
			if emit {
				if !send(ctx, out, stream.Watermark{Channel: channel, Value: next}) {
					return
				}
			}
		}
	}
}

func (k *KafkaSource) Close() error {
	if k.cancel != nil {
		k.cancel()
	}
	if k.kafkaConsumerClient != nil {
		k.kafkaConsumerClient.Close()
	}
	k.wg.Wait()
	return nil
}

func (k *KafkaSource) Name() string {
	return k.pipelineName
}

func (k *KafkaSource) Info() string {
	return fmt.Sprintf("kafka source topic=%s group=%s channels=%d", k.topic, k.consumerGroup, k.numChannels)
}

// send forwards one element, giving up when the context dies.
func send(ctx context.Context, out chan<- stream.Element, element stream.Element) bool {
	select {
	case out <- element:
		return true
	case <-ctx.Done():
		return false
	}
}
