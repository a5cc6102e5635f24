package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
)

const (
	convDoc    = `{"system_prompt":{"prompt":"sys","metadata":{}},"turns":[{"user_prompt":"hi","agent_response":"hello","context":null}]}`
	metricsDoc = `{"system_tokens":3,"context_cost":0,"conversation_cost":100,"total_cost":100,"metrics":[{"context_usage":null,"context_cost":null,"conversation_usage":{"prompt_tokens":1,"input_tokens":4,"output_tokens":1},"conversation_cost":100}]}`
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/conversation.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(convDoc))
	})
	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(metricsDoc))
	})
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"turns": [`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadOverHTTP(t *testing.T) {
	srv := newServer(t)
	l := New(time.Second, nil).WithClient(srv.Client())

	b, err := l.Load(context.Background(), srv.URL+"/conversation.json", srv.URL+"/metrics.json")
	require.NoError(t, err)
	assert.Len(t, b.Conversation.Turns, 1)
	assert.Equal(t, 3, b.Metrics.SystemTokens)
}

func TestLoadNotFound(t *testing.T) {
	srv := newServer(t)
	l := New(time.Second, nil).WithClient(srv.Client())

	_, err := l.Load(context.Background(), srv.URL+"/conversation.json", srv.URL+"/missing.json")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, MetricsDoc, loadErr.Doc)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.Code)
}

func TestLoadMalformed(t *testing.T) {
	srv := newServer(t)
	l := New(time.Second, nil).WithClient(srv.Client())

	_, err := l.Load(context.Background(), srv.URL+"/broken.json", srv.URL+"/metrics.json")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ConversationDoc, loadErr.Doc)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	convPath := filepath.Join(dir, "conversation.json")
	metricsPath := filepath.Join(dir, "metrics.json")
	require.NoError(t, os.WriteFile(convPath, []byte(convDoc), 0o644))
	require.NoError(t, os.WriteFile(metricsPath, []byte(`{"system_tokens": 1}`), 0o644))

	l := New(0, nil)

	_, err := l.Load(context.Background(), "file://"+convPath, metricsPath)
	assert.True(t, errors.Is(err, transcript.ErrMissingMetrics))

	require.NoError(t, os.WriteFile(metricsPath, []byte(metricsDoc), 0o644))
	b, err := l.Load(context.Background(), "file://"+convPath, metricsPath)
	require.NoError(t, err)
	assert.Equal(t, "sys", b.Conversation.SystemPrompt.Prompt)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := New(0, nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"), "")
	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadRejectsOversizedDocument(t *testing.T) {
	srv := newServer(t)
	l := New(time.Second, nil).WithClient(srv.Client())
	// The conversation sits exactly at the cap; metrics are over it.
	l.maxSize = int64(len(convDoc))

	_, err := l.Load(context.Background(), srv.URL+"/conversation.json", srv.URL+"/metrics.json")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, MetricsDoc, loadErr.Doc)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "exceeds")

	l.maxSize = int64(len(metricsDoc))
	_, err = l.Load(context.Background(), srv.URL+"/conversation.json", srv.URL+"/metrics.json")
	require.NoError(t, err)
}

func TestTooLargeMessageNamesLimit(t *testing.T) {
	l := New(0, nil)
	path := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(path, make([]byte, maxDocumentSize+1), 0o644))

	_, err := l.LoadConversation(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "32 MiB")
}

type memCatalog map[string]map[string]string

func (m memCatalog) Document(_ context.Context, id, doc string) ([]byte, error) {
	docs, ok := m[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(docs[doc]), nil
}

func TestLoadFromCatalog(t *testing.T) {
	cat := memCatalog{"abc": {"conversation": convDoc, "metrics": metricsDoc}}
	l := New(0, nil).WithCatalog(cat)

	b, err := l.Load(context.Background(), "catalog:abc", "catalog:abc")
	require.NoError(t, err)
	assert.Len(t, b.Metrics.Metrics, 1)

	_, err = l.Load(context.Background(), "catalog:abc", "catalog:zzz")
	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, MetricsDoc, loadErr.Doc)
}

func TestLoadConversationOnly(t *testing.T) {
	srv := newServer(t)
	l := New(time.Second, nil)

	conv, err := l.LoadConversation(context.Background(), srv.URL+"/conversation.json")
	require.NoError(t, err)
	assert.Equal(t, "hello", conv.Turns[0].AgentResponse)

	_, err = l.LoadConversation(context.Background(), srv.URL+"/broken.json")
	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ConversationDoc, loadErr.Doc)
}

func TestCatalogRefWithoutCatalog(t *testing.T) {
	_, err := New(0, nil).Load(context.Background(), "catalog:abc", "catalog:abc")
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/tmp/a.json", LocalPath("file:///tmp/a.json"))
	assert.Equal(t, "rel/a.json", LocalPath("rel/a.json"))
	assert.True(t, IsRemote("https://example.com/a.json"))
	assert.False(t, IsRemote("/tmp/a.json"))
}

func TestWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conversation.json")
	require.NoError(t, os.WriteFile(path, []byte(convDoc), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 1)
	errc := make(chan error, 1)
	go func() { errc <- Watch(ctx, []string{path}, changes) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(convDoc+"\n"), 0o644))

	select {
	case got := <-changes:
		want, _ := filepath.Abs(path)
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	assert.NoError(t, <-errc)
}

func TestWatchRequiresLocalFiles(t *testing.T) {
	err := Watch(context.Background(), []string{"https://example.com/a.json"}, make(chan string))
	assert.Error(t, err)
}
