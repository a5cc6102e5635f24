// tokenreplay-serve publishes catalog transcripts over HTTP so replay
// clients can load them by URL.
//
// Usage:
//
//	tokenreplay-serve [flags]
//
// Flags:
//
//	--addr      HTTP listen address (default: 127.0.0.1:7480)
//	--catalog   Path to the SQLite catalog (default: ~/.tokenreplay/catalog.db)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/Mr-Dark-debug/tokenreplay/internal/catalog"
	"github.com/Mr-Dark-debug/tokenreplay/internal/config"
	"github.com/Mr-Dark-debug/tokenreplay/internal/server"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

type CLI struct {
	Config  string `short:"c" type:"path" help:"Config file path"`
	Addr    string `help:"HTTP listen address (default from config)"`
	Catalog string `type:"path" help:"Path to the SQLite catalog (default from config)"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("tokenreplay-serve"),
		kong.Description("Serve catalog transcripts over HTTP."),
		kong.UsageOnError(),
	)

	if err := run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.Addr != "" {
		cfg.Server.Addr = cli.Addr
	}
	if cli.Catalog != "" {
		cfg.Catalog.Path = cli.Catalog
	}

	var outputs []string
	if cfg.Log.File != "" {
		outputs = append(outputs, cfg.Log.File)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Env, outputs...); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	// Ensure the catalog directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), 0o755); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}
	store, err := catalog.NewDBService(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Addr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	fmt.Println("  TOKENREPLAY DOCUMENT SERVER")
	fmt.Println()
	fmt.Printf("  Listen:   http://%s/api/transcripts\n", srvCfg.Addr)
	fmt.Printf("  Catalog:  %s\n", cfg.Catalog.Path)
	fmt.Printf("  Metrics:  http://%s/metrics\n", srvCfg.Addr)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop.")
	fmt.Println()

	if err := server.New(srvCfg, store, logger.Get()).Start(ctx); err != nil {
		return err
	}
	fmt.Println("  Done.")
	return nil
}
