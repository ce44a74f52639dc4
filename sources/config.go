package sources

import (
	"fmt"
	"strconv"
	"time"
)

// SourceConfig is the parsed per-source block of the pipeline config.
type SourceConfig struct {
	Name           string            `koanf:"name" json:"name"`
	ConnectionType string            `koanf:"type" json:"type"`
	Config         map[string]string `koanf:"config" json:"config"`
	Key            string            `koanf:"key" json:"key"`
}

func (c SourceConfig) intOr(key string, fallback int) (int, error) {
	raw, ok := c.Config[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return v, nil
}

func (c SourceConfig) durationOr(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := c.Config[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return v, nil
}
