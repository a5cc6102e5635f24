package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/tokenreplay/internal/config"
	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

const (
	convDoc    = `{"system_prompt":{"prompt":"You track orders.","metadata":null},"turns":[{"user_prompt":"where is my order","agent_response":"on its way","context":null}]}`
	metricsDoc = `{"system_tokens":4,"context_cost":0,"conversation_cost":0.25,"total_cost":0.25,"metrics":[{"context_usage":null,"context_cost":null,"conversation_usage":{"prompt_tokens":4,"input_tokens":8,"output_tokens":3},"conversation_cost":0.25}]}`
)

func parse(t *testing.T, args ...string) *CLI {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cli
}

// testApp returns an app writing to a buffer with a catalog under a
// temp dir.
func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "catalog", "catalog.db")
	cfg.Replay.Delay = time.Millisecond

	var out bytes.Buffer
	a := &app{cfg: cfg, log: logger.Nop(), out: &out}
	t.Cleanup(a.Close)
	return a, &out
}

func writeDocs(t *testing.T) (convPath, metricsPath string) {
	t.Helper()
	dir := t.TempDir()
	convPath = filepath.Join(dir, "conversation.json")
	metricsPath = filepath.Join(dir, "metrics.json")
	require.NoError(t, os.WriteFile(convPath, []byte(convDoc), 0o644))
	require.NoError(t, os.WriteFile(metricsPath, []byte(metricsDoc), 0o644))
	return convPath, metricsPath
}

func TestParsePlay(t *testing.T) {
	cli := parse(t, "play", "-C", "c.json", "-M", "m.json", "--delay", "250ms", "--watch")
	assert.Equal(t, "c.json", cli.Play.Conversation)
	assert.Equal(t, "m.json", cli.Play.Metrics)
	assert.Equal(t, 250*time.Millisecond, cli.Play.Delay)
	assert.True(t, cli.Play.Watch)
	assert.Equal(t, 100, cli.Play.Width)
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	require.NoError(t, err)
	_, err = parser.Parse([]string{"analyze", "--format", "xml"})
	assert.Error(t, err)
}

func TestSourceFlagsRefs(t *testing.T) {
	cfg := config.Default()

	conv, metrics := SourceFlags{}.refs(cfg)
	assert.Equal(t, "conversation.json", conv)
	assert.Equal(t, "metrics.json", metrics)

	conv, metrics = SourceFlags{ID: "abc"}.refs(cfg)
	assert.Equal(t, "catalog:abc", conv)
	assert.Equal(t, "catalog:abc", metrics)

	conv, _ = SourceFlags{Conversation: "https://example.com/c.json"}.refs(cfg)
	assert.Equal(t, "https://example.com/c.json", conv)
}

func TestScheduleText(t *testing.T) {
	a, out := testApp(t)
	convPath, metricsPath := writeDocs(t)

	cmd := &ScheduleCmd{SourceFlags: SourceFlags{Conversation: convPath, Metrics: metricsPath}, Delay: 100 * time.Millisecond, Format: "text"}
	require.NoError(t, cmd.Run(a))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "+00:00.000  user-prompt"))
	assert.True(t, strings.HasPrefix(lines[2], "+00:00.200  context-region"))
	assert.True(t, strings.HasPrefix(lines[5], "+00:00.500  total-cost"))
	assert.Equal(t, "6 reveals over 500ms", lines[7])
}

func TestScheduleJSON(t *testing.T) {
	a, out := testApp(t)
	convPath, metricsPath := writeDocs(t)

	cmd := &ScheduleCmd{SourceFlags: SourceFlags{Conversation: convPath, Metrics: metricsPath}, Format: "json"}
	require.NoError(t, cmd.Run(a))

	var planned []plannedAction
	require.NoError(t, json.Unmarshal(out.Bytes(), &planned))
	require.Len(t, planned, 6)
	assert.Equal(t, "agent-response", planned[1].Kind)
	require.NotNil(t, planned[1].Turn)
	assert.Equal(t, 0, *planned[1].Turn)
	assert.Nil(t, planned[5].Turn)
	// The config delay applies when no flag is given.
	assert.Equal(t, 5*time.Millisecond, planned[5].Offset)
}

func TestPlayPrintsReplay(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	a, out := testApp(t)
	convPath, metricsPath := writeDocs(t)

	cmd := &PlayCmd{SourceFlags: SourceFlags{Conversation: convPath, Metrics: metricsPath}, Width: 80}
	require.NoError(t, cmd.play(context.Background(), a))

	text := out.String()
	assert.Contains(t, text, "where is my order")
	assert.Contains(t, text, "on its way")
	assert.Contains(t, text, "Cumulative API Costs")
	assert.Less(t, strings.Index(text, "where is my order"), strings.Index(text, "Cumulative API Costs"))
}

// syncBuffer lets the test read output while a replay goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestPlayWatchStopsOnCancel(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	a, _ := testApp(t)
	var out syncBuffer
	a.out = &out
	convPath, metricsPath := writeDocs(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := &PlayCmd{SourceFlags: SourceFlags{Conversation: convPath, Metrics: metricsPath}, Width: 80, Watch: true}
	errc := make(chan error, 1)
	go func() { errc <- cmd.play(ctx, a) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Cumulative API Costs")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("play did not return after cancel")
	}

	// Nothing writes once play has returned.
	written := out.String()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, written, out.String())
}

func TestPlayReportsLoadErrors(t *testing.T) {
	a, _ := testApp(t)
	cmd := &PlayCmd{SourceFlags: SourceFlags{Conversation: "missing.json", Metrics: "missing.json"}}
	assert.Error(t, cmd.play(context.Background(), a))
}

func TestComputeEstimate(t *testing.T) {
	a, out := testApp(t)
	convPath, _ := writeDocs(t)

	cmd := &ComputeCmd{Conversation: convPath, Model: "gpt-4", Estimate: true}
	require.NoError(t, cmd.Run(a))

	var m transcript.MetricsRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	require.Len(t, m.Metrics, 1)
	assert.Positive(t, m.SystemTokens)
	assert.Nil(t, m.Metrics[0].ContextUsage)
	assert.InDelta(t, m.ConversationCost, m.TotalCost, 1e-9)
}

func TestComputeWritesFile(t *testing.T) {
	a, out := testApp(t)
	convPath, _ := writeDocs(t)
	dest := filepath.Join(t.TempDir(), "metrics.json")

	cmd := &ComputeCmd{Conversation: convPath, Output: dest, Estimate: true}
	require.NoError(t, cmd.Run(a))
	assert.Empty(t, out.String())

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	m, err := transcript.DecodeMetrics(f)
	require.NoError(t, err)
	assert.Len(t, m.Metrics, 1)
}

func TestComputePricing(t *testing.T) {
	a, _ := testApp(t)

	p, err := (&ComputeCmd{}).pricing(a)
	require.NoError(t, err)
	assert.Equal(t, 16000, p.ContextSize)

	p, err = (&ComputeCmd{Model: "gpt-4", ContextSize: 500}).pricing(a)
	require.NoError(t, err)
	assert.Equal(t, 500, p.ContextSize)
	assert.Equal(t, 10.0, p.InputCost)

	_, err = (&ComputeCmd{Model: "nope"}).pricing(a)
	assert.Error(t, err)
}

func TestCatalogCommands(t *testing.T) {
	a, out := testApp(t)
	convPath, metricsPath := writeDocs(t)

	require.NoError(t, (&ImportCmd{Name: "orders", Conversation: convPath, Metrics: metricsPath}).Run(a))
	assert.Contains(t, out.String(), "Imported ")
	id := strings.Fields(out.String())[1]

	out.Reset()
	require.NoError(t, (&ListCmd{Limit: 20, Format: "text"}).Run(a))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "orders")

	out.Reset()
	require.NoError(t, (&SearchCmd{Query: "order", Limit: 20, Format: "text"}).Run(a))
	assert.Contains(t, out.String(), "user:  where is my order")

	// Catalog references load both documents back.
	out.Reset()
	require.NoError(t, (&AnalyzeCmd{SourceFlags: SourceFlags{ID: id}, Format: "markdown"}).Run(a))
	assert.Contains(t, out.String(), "catalog:"+id)

	out.Reset()
	require.NoError(t, (&DeleteCmd{ID: id}).Run(a))
	out.Reset()
	require.NoError(t, (&ListCmd{Limit: 20, Format: "text"}).Run(a))
	assert.Equal(t, "No transcripts.\n", out.String())
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","uptime_seconds":90}`))
	}))
	defer srv.Close()

	a, out := testApp(t)
	require.NoError(t, (&StatusCmd{Addr: srv.Listener.Addr().String()}).Run(a))
	assert.Contains(t, out.String(), "document server is running")
	assert.Contains(t, out.String(), "1m 30.0s")
}

func TestStatusUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	a, out := testApp(t)
	a.cfg.HTTP.Timeout = time.Second
	assert.Error(t, (&StatusCmd{Addr: addr}).Run(a))
	assert.Contains(t, out.String(), "not running")
}
