// tokenreplay replays recorded agent conversations together with their
// token usage and cost.
//
// Usage:
//
//	tokenreplay <command> [flags]
//
// Commands:
//
//	play       Replay a conversation in the terminal
//	schedule   Print the reveal schedule without waiting
//	compute    Compute token metrics for a conversation
//	import     Store a document pair in the catalog
//	list       List catalog transcripts
//	search     Search catalog turns
//	delete     Remove a transcript from the catalog
//	analyze    Report token hotspots and cost attribution
//	status     Check a running document server
//	version    Print version information
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/Mr-Dark-debug/tokenreplay/internal/catalog"
	"github.com/Mr-Dark-debug/tokenreplay/internal/config"
	"github.com/Mr-Dark-debug/tokenreplay/internal/loader"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tokenreplay"),
		kong.Description("Replay recorded agent conversations with their token costs."),
		kong.UsageOnError(),
		kongVars(),
	)

	if err := run(kctx, &cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context, cli *CLI) error {
	a, err := newApp(cli.Config, cli.LogLevel, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	return kctx.Run(a)
}

// app carries what every command needs.
type app struct {
	cfg *config.Config
	log *logger.Logger
	out io.Writer

	store *catalog.DBService
}

func newApp(configPath, logLevel string, out io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	var outputs []string
	if cfg.Log.File != "" {
		outputs = append(outputs, cfg.Log.File)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Env, outputs...); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return &app{cfg: cfg, log: logger.Get(), out: out}, nil
}

// catalog opens the catalog on first use.
func (a *app) catalog() (*catalog.DBService, error) {
	if a.store != nil {
		return a.store, nil
	}

	path := a.cfg.Catalog.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}
	store, err := catalog.NewDBService(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	a.store = store
	return store, nil
}

// loader returns a document loader, attaching the catalog only when
// one of refs points into it.
func (a *app) loader(refs ...string) (*loader.Loader, error) {
	l := loader.New(a.cfg.HTTP.Timeout, a.log)
	for _, ref := range refs {
		if strings.HasPrefix(ref, loader.CatalogPrefix) {
			store, err := a.catalog()
			if err != nil {
				return nil, err
			}
			return l.WithCatalog(store), nil
		}
	}
	return l, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.log.Sync()
}

// refs resolves the document pair for s.
func (s SourceFlags) refs(cfg *config.Config) (conversation, metrics string) {
	if s.ID != "" {
		return loader.CatalogPrefix + s.ID, loader.CatalogPrefix + s.ID
	}
	conversation, metrics = s.Conversation, s.Metrics
	if conversation == "" {
		conversation = cfg.Replay.Conversation
	}
	if metrics == "" {
		metrics = cfg.Replay.Metrics
	}
	return conversation, metrics
}
