// Package config loads tokenreplay settings.
//
// Values are layered: built-in defaults, then an optional TOML file,
// then a .env file in the working directory, then TOKENREPLAY_*
// environment variables. Command-line flags are applied last by the
// commands themselves.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g.
// TOKENREPLAY_REPLAY_DELAY=250ms.
const EnvPrefix = "tokenreplay"

type Config struct {
	Replay  ReplayConfig  `toml:"replay"`
	Catalog CatalogConfig `toml:"catalog"`
	Server  ServerConfig  `toml:"server"`
	HTTP    HTTPConfig    `toml:"http"`
	Log     LogConfig     `toml:"log"`
	Pricing PricingConfig `toml:"pricing"`
}

type ReplayConfig struct {
	// Delay between consecutive reveals.
	Delay        time.Duration `toml:"delay"`
	Conversation string        `toml:"conversation"`
	Metrics      string        `toml:"metrics"`
	Watch        bool          `toml:"watch"`
}

type CatalogConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

type LogConfig struct {
	Level string `toml:"level"`
	Env   string `toml:"env"`
	// File receives log output instead of stderr when set.
	File string `toml:"file"`
}

// PricingConfig parameterises token accounting. Costs are in cents per
// thousand tokens.
type PricingConfig struct {
	Model       string  `toml:"model"`
	ContextSize int     `toml:"context_size" split_words:"true"`
	InputCost   float64 `toml:"input_cost" split_words:"true"`
	OutputCost  float64 `toml:"output_cost" split_words:"true"`
	Encoding    string  `toml:"encoding"`
}

// Dir returns the tokenreplay home directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tokenreplay"
	}
	return filepath.Join(home, ".tokenreplay")
}

// DefaultPath is where Load looks when no file is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Replay: ReplayConfig{
			Delay:        100 * time.Millisecond,
			Conversation: "conversation.json",
			Metrics:      "metrics.json",
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(Dir(), "catalog.db"),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7480",
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			Env:   "development",
		},
		Pricing: PricingConfig{
			Model:       "gpt-3.5",
			ContextSize: 16000,
			InputCost:   0.5,
			OutputCost:  1.5,
			Encoding:    "cl100k_base",
		},
	}
}

// Load builds the configuration. An empty path means DefaultPath, which
// may be absent; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no replay can run with.
func (c *Config) Validate() error {
	switch {
	case c.Replay.Delay <= 0:
		return fmt.Errorf("replay.delay must be positive, got %s", c.Replay.Delay)
	case c.HTTP.Timeout < 0:
		return fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	case c.Pricing.ContextSize <= 0:
		return fmt.Errorf("pricing.context_size must be positive, got %d", c.Pricing.ContextSize)
	case c.Pricing.InputCost < 0 || c.Pricing.OutputCost < 0:
		return fmt.Errorf("pricing costs must not be negative")
	}
	return nil
}
