package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

func initFlags(ko *koanf.Koanf) {
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	f.StringSlice("config", nil, "path to one or more config files (merged in order)")
	f.String("port", "8080", "port to host the web server on")
	f.String("data_dir", "data", "directory for checkpoints, state and the event journal")
	f.String("log_level", "info", "log level (trace, debug, info, warn, error)")
	f.String("log_file", "", "also write logs to this file")
	f.Bool("strict_watermarks", false, "log non-monotone per-channel watermarks")
	f.Bool("version", false, "show current version of the build")

	if err := f.Parse(os.Args[1:]); err != nil {
		log.Fatal().Msgf("error loading flags: %v", err)
	}

	configs, _ := f.GetStringSlice("config")
	for _, path := range configs {
		parser, err := parserFor(path)
		if err != nil {
			log.Fatal().Str("config", path).Msg(err.Error())
		}
		if err := ko.Load(file.Provider(path), parser); err != nil {
			log.Fatal().Msgf("error reading config %s: %v", path, err)
		}
		log.Debug().Str("config", path).Msg("config file loaded")
	}

	// Command line arguments override the config files.
	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		log.Fatal().Msgf("error reading flag config: %v", err)
	}
}

func parserFor(path string) (koanf.Parser, error) {
	switch path[strings.LastIndex(path, ".")+1:] {
	case "yaml", "yml":
		return yaml.Parser(), nil
	case "json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file extension")
	}
}
