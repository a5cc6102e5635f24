// tokenreplay-tui replays a conversation in a three-pane terminal view.
//
// Usage:
//
//	tokenreplay-tui [flags]
//
// Flags:
//
//	-C, --conversation   Conversation document: path, URL or catalog:<id>
//	-M, --metrics        Metrics document: path, URL or catalog:<id>
//	    --id             Catalog transcript ID for both documents
//	    --delay          Spacing between reveals
//	-w, --watch          Replay again whenever a local document changes
//
// Logs go to log.file, or ~/.tokenreplay/tui.log when unset, so they
// never draw over the alternate screen.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mr-Dark-debug/tokenreplay/internal/catalog"
	"github.com/Mr-Dark-debug/tokenreplay/internal/config"
	"github.com/Mr-Dark-debug/tokenreplay/internal/loader"
	"github.com/Mr-Dark-debug/tokenreplay/internal/tui"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

type CLI struct {
	Config       string        `short:"c" type:"path" help:"Config file path"`
	Conversation string        `short:"C" help:"Conversation document: path, URL or catalog:<id>"`
	Metrics      string        `short:"M" help:"Metrics document: path, URL or catalog:<id>"`
	ID           string        `help:"Catalog transcript ID; loads both documents from the catalog"`
	Delay        time.Duration `help:"Spacing between reveals (default from config)"`
	Watch        bool          `short:"w" help:"Replay again whenever a local document changes"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("tokenreplay-tui"),
		kong.Description("Replay a recorded conversation in the terminal."),
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

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = filepath.Join(config.Dir(), "tui.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Env, logPath); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.Get()
	defer logger.Sync()

	convRef, metricsRef := cli.Conversation, cli.Metrics
	if cli.ID != "" {
		convRef, metricsRef = loader.CatalogPrefix+cli.ID, loader.CatalogPrefix+cli.ID
	}
	if convRef == "" {
		convRef = cfg.Replay.Conversation
	}
	if metricsRef == "" {
		metricsRef = cfg.Replay.Metrics
	}

	ld := loader.New(cfg.HTTP.Timeout, log)
	if strings.HasPrefix(convRef, loader.CatalogPrefix) || strings.HasPrefix(metricsRef, loader.CatalogPrefix) {
		store, err := catalog.NewDBService(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("opening catalog %s: %w", cfg.Catalog.Path, err)
		}
		defer store.Close()
		ld.WithCatalog(store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := ld.Load(ctx, convRef, metricsRef)
	if err != nil {
		return err
	}

	delay := cli.Delay
	if delay <= 0 {
		delay = cfg.Replay.Delay
	}
	opts := tui.Options{
		Title: convRef,
		Delay: delay,
		Reload: func(ctx context.Context) (*loader.Bundle, error) {
			return ld.Load(ctx, convRef, metricsRef)
		},
		Log: log,
	}

	if cli.Watch || cfg.Replay.Watch {
		changes := make(chan string, 1)
		opts.Changes = changes
		go func() {
			if err := loader.Watch(ctx, []string{convRef, metricsRef}, changes); err != nil {
				log.Warnw("watching documents failed", "error", err)
			}
		}()
	}

	p := tea.NewProgram(tui.NewModel(b, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
