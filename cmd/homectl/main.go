// homectl keeps slider and dropdown controls in sync with smart-home nodes.
//
// Usage:
//
//	homectl [options]
//
// Options:
//
//	-config   YAML configuration file (default: built-in simulator setup)
//	-backend  sim or rmaker
//	-listen   web UI address
//	-store    state database path (default: in-memory)
//	-log      log level
//	-c        run one command and exit
//
// Example:
//
//	homectl -backend sim -listen 127.0.0.1:8080
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	opts, err := ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := opts.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	shell := NewShell(app, os.Stdout)
	if opts.Command != "" {
		shell.Execute(ctx, opts.Command)
		return
	}
	if err := shell.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
