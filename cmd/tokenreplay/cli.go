package main

import (
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Mr-Dark-debug/tokenreplay/internal/tokenomics"
)

// CLI defines the command-line interface.
type CLI struct {
	Config   string `short:"c" type:"path" help:"Config file path (default ~/.tokenreplay/config.toml)"`
	LogLevel string `help:"Log level override (debug, info, warn, error)"`

	Play     PlayCmd     `cmd:"" help:"Replay a conversation in the terminal"`
	Schedule ScheduleCmd `cmd:"" help:"Print the reveal schedule without waiting"`
	Compute  ComputeCmd  `cmd:"" help:"Compute token metrics for a conversation"`
	Import   ImportCmd   `cmd:"" help:"Store a conversation and its metrics in the catalog"`
	List     ListCmd     `cmd:"" help:"List catalog transcripts"`
	Search   SearchCmd   `cmd:"" help:"Search catalog turns by prompt or response text"`
	Delete   DeleteCmd   `cmd:"" help:"Remove a transcript from the catalog"`
	Analyze  AnalyzeCmd  `cmd:"" help:"Report token hotspots and cost attribution"`
	Status   StatusCmd   `cmd:"" help:"Check a running document server"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// SourceFlags name the document pair a command reads. Empty refs fall
// back to the replay section of the config.
type SourceFlags struct {
	Conversation string `short:"C" help:"Conversation document: path, URL or catalog:<id>"`
	Metrics      string `short:"M" help:"Metrics document: path, URL or catalog:<id>"`
	ID           string `help:"Catalog transcript ID; loads both documents from the catalog"`
}

// PlayCmd replays to stdout on the wall clock.
type PlayCmd struct {
	SourceFlags `embed:""`

	Delay time.Duration `help:"Spacing between reveals (default from config)"`
	Watch bool          `short:"w" help:"Replay again whenever a local document changes"`
	Width int           `default:"100" help:"Wrap text at this many columns (0 disables wrapping)"`
}

// ScheduleCmd prints every planned reveal with its offset.
type ScheduleCmd struct {
	SourceFlags `embed:""`

	Delay  time.Duration `help:"Spacing between reveals (default from config)"`
	Format string        `default:"text" enum:"text,json" help:"Output format: text, json"`
}

// ComputeCmd derives a metrics document from a conversation.
type ComputeCmd struct {
	Conversation string `arg:"" help:"Conversation document: path, URL or catalog:<id>"`
	Output       string `short:"o" help:"Write the metrics document here instead of stdout"`
	Model        string `help:"Pricing preset (${models}); overrides the config"`
	ContextSize  int    `help:"Context window override in tokens"`
	Encoding     string `help:"Tokenizer encoding (default from config)"`
	Estimate     bool   `help:"Estimate tokens from character counts instead of tokenizing"`
}

// ImportCmd stores a document pair in the catalog.
type ImportCmd struct {
	Name         string `arg:"" help:"Display name for the transcript"`
	Conversation string `arg:"" type:"existingfile" help:"Conversation document path"`
	Metrics      string `arg:"" type:"existingfile" help:"Metrics document path"`
}

// ListCmd lists stored transcripts.
type ListCmd struct {
	Name   string `help:"Only transcripts whose name contains this text"`
	Limit  int    `default:"20" help:"Maximum results"`
	Format string `default:"text" enum:"text,json" help:"Output format: text, json"`
}

// SearchCmd searches stored turns.
type SearchCmd struct {
	Query  string `arg:"" help:"Text to look for"`
	Limit  int    `default:"20" help:"Maximum results"`
	Format string `default:"text" enum:"text,json" help:"Output format: text, json"`
}

// DeleteCmd removes a stored transcript.
type DeleteCmd struct {
	ID string `arg:"" help:"Transcript ID"`
}

// AnalyzeCmd reports on a document pair.
type AnalyzeCmd struct {
	SourceFlags `embed:""`

	Format string `default:"markdown" enum:"markdown,json" help:"Output format: markdown, json"`
}

// StatusCmd queries the document server's health endpoint.
type StatusCmd struct {
	Addr string `help:"Server address (default from config)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong help interpolation.
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
		"models":  strings.Join(tokenomics.PresetNames(), ", "),
	}
}
