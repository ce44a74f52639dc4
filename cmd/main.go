package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/checkpoint"
	"github.com/tarungka/sluice/internal/journal"
	"github.com/tarungka/sluice/pipeline"
	"github.com/tarungka/sluice/server"
	"github.com/tarungka/sluice/state"
	"github.com/tarungka/sluice/stream"
)

var (
	buildString = "unknown"
	ko          = koanf.New(".")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	initFlags(ko)

	if ko.Bool("version") {
		fmt.Println(buildString)
		os.Exit(0)
	}

	setupLogging(ko)
	log.Info().Str("build", buildString).Msg("starting sluice")

	if err := run(ko); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
}

func setupLogging(ko *koanf.Koanf) {
	level, err := zerolog.ParseLevel(ko.String("log_level"))
	if err != nil {
		log.Warn().Str("log_level", ko.String("log_level")).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if path := ko.String("log_file"); path != "" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Msg("failed to open log file, logging to stdout only")
			return
		}
		multi := zerolog.MultiLevelWriter(os.Stdout, logFile)
		log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	}
}

func run(ko *koanf.Koanf) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataDir := ko.String("data_dir")

	backend, err := state.NewBadgerBackend(filepath.Join(dataDir, "state"))
	if err != nil {
		return fmt.Errorf("opening state backend: %w", err)
	}
	defer backend.Close()

	store, err := checkpoint.NewStore(filepath.Join(dataDir, "checkpoints.db"))
	if err != nil {
		return fmt.Errorf("opening checkpoint store: %w", err)
	}
	defer store.Close()
	manager := checkpoint.NewManager(backend, store)

	journalConfig := journal.DefaultConfig()
	journalConfig.Directory = filepath.Join(dataDir, "journal")
	if err := ko.Unmarshal("journal", &journalConfig); err != nil {
		return fmt.Errorf("parsing journal config: %w", err)
	}
	var eventJournal *journal.Journal
	if journalConfig.Enabled {
		if eventJournal, err = journal.Open(journalConfig); err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer eventJournal.Close()
	}

	optsFor := func(key string) []stream.TaskOption {
		opts := []stream.TaskOption{stream.WithBarrierHandler(manager.BarrierHandler())}
		if eventJournal != nil {
			opts = append(opts, stream.WithEmitObserver(eventJournal.Observer(key)))
		}
		if ko.Bool("strict_watermarks") {
			opts = append(opts, stream.WithStrictWatermarks())
		}
		return opts
	}

	pipelines, err := pipeline.Build(ko, optsFor)
	if err != nil {
		return err
	}
	if len(pipelines) == 0 {
		return fmt.Errorf("no complete pipelines in config")
	}

	tasks := make([]*stream.Task, 0, len(pipelines))
	registry := server.NewRegistry()
	for _, p := range pipelines {
		tasks = append(tasks, p.Task)
		registry.Register(p.Task)
	}

	restored, err := manager.RestoreLatest(tasks)
	if err != nil {
		log.Warn().Err(err).Msg("could not restore from latest checkpoint, starting fresh")
	} else if restored {
		log.Info().Msg("tasks restored from latest checkpoint")
	}

	httpServer := server.New(net.JoinHostPort("", ko.String("port")), registry, store)
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *pipeline.Pipeline) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("pipeline", p.Key).Msg("pipeline failed")
			}
		}(p)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
		log.Info().Msg("received interrupt signal, shutting down")
		cancel()
		wg.Wait()
	case <-finished:
		log.Info().Msg("all pipelines finished")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	return nil
}
