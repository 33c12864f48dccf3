package main

import (
	"flag"
	"fmt"

	"github.com/rmaker/homectl/pkg/config"
)

// Options holds the command-line flags.
type Options struct {
	// ConfigPath is the YAML configuration. Empty uses config.Default.
	ConfigPath string

	// Backend overrides the configured backend.
	Backend string

	// Listen overrides the web UI address.
	Listen string

	// StorePath overrides the state database path.
	StorePath string

	// LogLevel overrides the default log level.
	LogLevel string

	// Command runs a single shell command and exits.
	Command string
}

// ParseFlags parses the command line:
//
//	-config   YAML configuration file
//	-backend  sim or rmaker
//	-listen   web UI address, e.g. 127.0.0.1:8080
//	-store    state database path (default: in-memory)
//	-log      log level (error, warn, info, debug, trace)
//	-c        run one command and exit
func ParseFlags(args []string) (Options, error) {
	var o Options
	fs := flag.NewFlagSet("homectl", flag.ContinueOnError)
	fs.StringVar(&o.ConfigPath, "config", "", "YAML configuration file")
	fs.StringVar(&o.Backend, "backend", "", "device backend: sim or rmaker")
	fs.StringVar(&o.Listen, "listen", "", "web UI listen address")
	fs.StringVar(&o.StorePath, "store", "", "state database path (default: in-memory)")
	fs.StringVar(&o.LogLevel, "log", "", "log level")
	fs.StringVar(&o.Command, "c", "", "run one command and exit")
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// LoadConfig reads the configuration and applies flag overrides.
func (o Options) LoadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, err
		}
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.Listen != "" {
		cfg.Web.Listen = o.Listen
	}
	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
