package pipeline

import (
	"context"
	"sort"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/sinks"
	"github.com/tarungka/sluice/sources"
	"github.com/tarungka/sluice/stream"
)

// Pipeline is one source paired with one sink under a shared key,
// running as a task. The key doubles as the task id.
type Pipeline struct {
	Key    string
	Source sources.Source
	Sink   sinks.Sink
	Task   *stream.Task
}

// Run drives the pipeline's task until the source closes or the context
// is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	log.Info().Str("pipeline", p.Key).Str("source", p.Source.Info()).Str("sink", p.Sink.Info()).Msg("pipeline starting")
	return p.Task.Run(ctx)
}

// Build parses the config and constructs one pipeline per key that has
// both a source and a sink. Keys with only one half configured are
// logged and skipped. optsFor, when non-nil, supplies per-task options
// (barrier handlers, emit observers) keyed by pipeline key.
func Build(ko *koanf.Koanf, optsFor func(key string) []stream.TaskOption) ([]*Pipeline, error) {
	sourceConfigs, sinkConfigs, err := ParseConfig(ko)
	if err != nil {
		return nil, err
	}

	sinksByKey := make(map[string]sinks.SinkConfig, len(sinkConfigs))
	for _, config := range sinkConfigs {
		sinksByKey[config.Key] = config
	}

	var pipelines []*Pipeline
	paired := make(map[string]bool)
	for _, sourceConfig := range sourceConfigs {
		sinkConfig, ok := sinksByKey[sourceConfig.Key]
		if !ok {
			log.Warn().Str("key", sourceConfig.Key).Msg("source has no matching sink, skipping")
			continue
		}
		paired[sourceConfig.Key] = true

		source, err := sources.NewSource(sourceConfig)
		if err != nil {
			return nil, err
		}
		sink, err := sinks.NewSink(sinkConfig)
		if err != nil {
			return nil, err
		}

		var opts []stream.TaskOption
		if optsFor != nil {
			opts = optsFor(sourceConfig.Key)
		}
		task, err := stream.NewTask(sourceConfig.Key, source, sink, opts...)
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, &Pipeline{
			Key:    sourceConfig.Key,
			Source: source,
			Sink:   sink,
			Task:   task,
		})
	}

	for _, config := range sinkConfigs {
		if !paired[config.Key] {
			log.Warn().Str("key", config.Key).Msg("sink has no matching source, skipping")
		}
	}

	sort.Slice(pipelines, func(a, b int) bool { return pipelines[a].Key < pipelines[b].Key })
	return pipelines, nil
}
