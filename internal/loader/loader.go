// Package loader fetches the two documents a replay needs.
//
// A reference is an http(s) URL, a file:// URL, a catalog:<id> entry or
// a plain filesystem path. Both documents are fetched concurrently; if either fails the
// caller gets one *Error naming the document and nothing else, and no
// replay starts.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

// Document names the two inputs of a replay.
type Document string

const (
	ConversationDoc Document = "conversation"
	MetricsDoc      Document = "metrics"
)

// maxDocumentSize caps a single document; transcripts are small.
const maxDocumentSize = 32 << 20

// Error is the single failure reported when loading does not succeed.
type Error struct {
	Doc Document
	Ref string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("loading %s document from %s: %v", e.Doc, e.Ref, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is returned for a non-2xx HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected HTTP status " + e.Status
}

// Bundle is a loaded pair of documents.
type Bundle struct {
	Conversation *transcript.ConversationRecord
	Metrics      *transcript.MetricsRecord
}

// CatalogPrefix marks a reference to a stored transcript.
const CatalogPrefix = "catalog:"

// ErrNoCatalog is returned for a catalog reference when the loader has
// no catalog attached.
var ErrNoCatalog = errors.New("no catalog configured")

// ErrTooLarge is returned for a document over the size cap.
var ErrTooLarge = errors.New("document too large")

// Catalog serves stored documents by transcript ID.
type Catalog interface {
	Document(ctx context.Context, id, doc string) ([]byte, error)
}

// Loader fetches documents over HTTP, from disk or from a catalog.
type Loader struct {
	client  *http.Client
	catalog Catalog
	log     *logger.Logger
	maxSize int64
}

// New creates a loader. A zero timeout leaves HTTP requests bounded
// only by the caller's context.
func New(timeout time.Duration, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		client:  &http.Client{Timeout: timeout},
		log:     log.With("component", "loader"),
		maxSize: maxDocumentSize,
	}
}

// WithClient replaces the HTTP client. Tests use it with httptest.
func (l *Loader) WithClient(c *http.Client) *Loader {
	l.client = c
	return l
}

// WithCatalog resolves catalog:<id> references through c.
func (l *Loader) WithCatalog(c Catalog) *Loader {
	l.catalog = c
	return l
}

// Load fetches and decodes both documents concurrently.
func (l *Loader) Load(ctx context.Context, conversationRef, metricsRef string) (*Bundle, error) {
	var b Bundle
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		conv, err := fetchDecode(gctx, l, ConversationDoc, conversationRef, transcript.DecodeConversation)
		if err != nil {
			return &Error{Doc: ConversationDoc, Ref: conversationRef, Err: err}
		}
		b.Conversation = conv
		return nil
	})
	g.Go(func() error {
		m, err := fetchDecode(gctx, l, MetricsDoc, metricsRef, transcript.DecodeMetrics)
		if err != nil {
			return &Error{Doc: MetricsDoc, Ref: metricsRef, Err: err}
		}
		b.Metrics = m
		return nil
	})

	if err := g.Wait(); err != nil {
		l.log.Errorw("load failed", "error", err)
		return nil, err
	}

	l.log.Debugw("documents loaded",
		"turns", len(b.Conversation.Turns), "metrics", len(b.Metrics.Metrics))
	return &b, nil
}

// LoadConversation fetches only a conversation document.
func (l *Loader) LoadConversation(ctx context.Context, ref string) (*transcript.ConversationRecord, error) {
	conv, err := fetchDecode(ctx, l, ConversationDoc, ref, transcript.DecodeConversation)
	if err != nil {
		return nil, &Error{Doc: ConversationDoc, Ref: ref, Err: err}
	}
	return conv, nil
}

func fetchDecode[T any](ctx context.Context, l *Loader, doc Document, ref string, decode func(io.Reader) (*T, error)) (*T, error) {
	rc, err := l.open(ctx, ref, doc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("%w: exceeds %s", ErrTooLarge, humanize.IBytes(uint64(l.maxSize)))
	}
	return decode(bytes.NewReader(data))
}

func (l *Loader) open(ctx context.Context, ref string, doc Document) (io.ReadCloser, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty reference")
	}

	switch {
	case strings.HasPrefix(ref, CatalogPrefix):
		if l.catalog == nil {
			return nil, ErrNoCatalog
		}
		data, err := l.catalog.Document(ctx, strings.TrimPrefix(ref, CatalogPrefix), string(doc))
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil

	case IsRemote(ref):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
		}
		return resp.Body, nil

	default:
		f, err := os.Open(LocalPath(ref))
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// IsRemote reports whether ref is an http or https URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// LocalPath strips a file:// scheme from ref.
func LocalPath(ref string) string {
	if strings.HasPrefix(ref, "file://") {
		if u, err := url.Parse(ref); err == nil {
			return u.Path
		}
	}
	return ref
}
