package pipeline

import (
	"fmt"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/sinks"
	"github.com/tarungka/sluice/sources"
)

// ParseConfig reads the "sources" and "sinks" blocks out of the loaded
// config. Pairing by key happens in Build.
func ParseConfig(ko *koanf.Koanf) ([]sources.SourceConfig, []sinks.SinkConfig, error) {
	var allSourcesConfig []sources.SourceConfig
	var allSinksConfig []sinks.SinkConfig

	if err := ko.Unmarshal("sources", &allSourcesConfig); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling sources: %w", err)
	}
	if err := ko.Unmarshal("sinks", &allSinksConfig); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling sinks: %w", err)
	}

	for _, config := range allSourcesConfig {
		if config.Key == "" {
			return nil, nil, fmt.Errorf("source %q has no key", config.Name)
		}
	}
	for _, config := range allSinksConfig {
		if config.Key == "" {
			return nil, nil, fmt.Errorf("sink %q has no key", config.Name)
		}
	}

	log.Debug().Int("sources", len(allSourcesConfig)).Int("sinks", len(allSinksConfig)).Msg("parsed pipeline config")
	return allSourcesConfig, allSinksConfig, nil
}
