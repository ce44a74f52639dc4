package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/internal/models"
	"github.com/tarungka/sluice/internal/watermark"
	"github.com/tarungka/sluice/stream"
)

// GeneratorSource produces a deterministic synthetic stream, mainly for
// demos and tests. Every channel emits `count` records with event times
// stepping from `start`, each followed by that channel's watermark.
// Channels listed in `idle_channels` stop halfway through and declare
// themselves idle instead, which is exactly the situation the valve exists
// for: the remaining channels keep advancing the aggregate watermark.
type GeneratorSource struct {
	pipelineKey            string
	pipelineName           string
	pipelineConnectionType string

	numChannels  int
	count        int
	start        time.Time
	step         time.Duration
	idleChannels map[int]bool

	cancel context.CancelFunc
}

func (g *GeneratorSource) Init(args SourceConfig) error {
	g.pipelineKey = args.Key
	g.pipelineName = args.Name
	g.pipelineConnectionType = args.ConnectionType

	var err error
	if g.numChannels, err = args.intOr("channels", 1); err != nil {
		return err
	}
	if g.numChannels < 1 {
		return fmt.Errorf("generator source needs at least one channel, got %d", g.numChannels)
	}
	if g.count, err = args.intOr("count", 10); err != nil {
		return err
	}
	if g.step, err = args.durationOr("step", time.Second); err != nil {
		return err
	}
	g.start = time.Now().Truncate(time.Second)
	if raw := args.Config["start"]; raw != "" {
		if g.start, err = time.Parse(time.RFC3339, raw); err != nil {
			return fmt.Errorf("config key %q: %w", "start", err)
		}
	}
	g.idleChannels = make(map[int]bool)
	if raw := args.Config["idle_channels"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			channel, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("config key %q: %w", "idle_channels", err)
			}
			if channel < 0 || channel >= g.numChannels {
				return fmt.Errorf("idle channel %d out of range [0, %d)", channel, g.numChannels)
			}
			g.idleChannels[channel] = true
		}
	}
	return nil
}

func (g *GeneratorSource) Channels() int {
	return g.numChannels
}

func (g *GeneratorSource) Open(ctx context.Context) (<-chan stream.Element, error) {
	ctx, g.cancel = context.WithCancel(ctx)
	out := make(chan stream.Element, 16)

	go func() {
		defer close(out)
		idleAt := g.count / 2
		done := make([]bool, g.numChannels)

		for i := 0; i < g.count; i++ {
			eventTime := g.start.Add(time.Duration(i) * g.step)
			for channel := 0; channel < g.numChannels; channel++ {
				if done[channel] {
					continue
				}
				if g.idleChannels[channel] && i == idleAt {
					done[channel] = true
					if !send(ctx, out, stream.WatermarkStatus{Channel: channel, Value: watermark.StatusIdle}) {
						return
					}
					continue
				}

				record, err := models.New(map[string]any{"seq": i, "channel": channel}, eventTime)
				if err != nil {
					log.Err(err).Msg("generator could not create record")
					return
				}
				record.Channel = channel
				record.Key = strconv.Itoa(channel)
				if !send(ctx, out, record) {
					return
				}
				if !send(ctx, out, stream.Watermark{Channel: channel, Value: watermark.Watermark(eventTime.UnixMilli())}) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (g *GeneratorSource) Close() error {
	if g.cancel != nil {
		g.cancel()
	}
	return nil
}

func (g *GeneratorSource) Name() string {
	return g.pipelineName
}

func (g *GeneratorSource) Info() string {
	return fmt.Sprintf("generator source channels=%d count=%d", g.numChannels, g.count)
}
