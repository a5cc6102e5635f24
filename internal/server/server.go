// Package server publishes catalog transcripts over HTTP so that any
// replay client can load them by URL.
//
// Routes:
//
//	GET    /health
//	GET    /metrics                               Prometheus exposition
//	GET    /api/transcripts                       ?name= &limit= &offset=
//	POST   /api/transcripts                       import a document pair
//	GET    /api/transcripts/{id}
//	DELETE /api/transcripts/{id}
//	GET    /api/transcripts/{id}/conversation     raw document
//	GET    /api/transcripts/{id}/metrics          raw document
//	GET    /api/search                            ?q= &limit=
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mr-Dark-debug/tokenreplay/internal/catalog"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/logger"
)

// Config holds server settings.
type Config struct {
	// Addr is the TCP listen address.
	Addr string `json:"addr"`
	// MaxUploadBytes bounds an import request body.
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:7480",
		MaxUploadBytes: 32 << 20,
	}
}

// Server serves the catalog.
type Server struct {
	cfg     Config
	store   catalog.Store
	log     *logger.Logger
	started time.Time

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	served   *prometheus.CounterVec
	imported prometheus.Counter
}

// New creates a server over store. Metrics go to a private registry so
// several servers can coexist in one process.
func New(cfg Config, store catalog.Store, log *logger.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		log:      log.With("component", "server"),
		started:  time.Now(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenreplay_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenreplay_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"route"},
		),
		served: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenreplay_documents_served_total",
				Help: "Transcript documents served by kind",
			},
			[]string{"document"},
		),
		imported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tokenreplay_transcripts_imported_total",
				Help: "Transcripts imported over HTTP",
			},
		),
	}

	s.registry.MustRegister(s.requests, s.latency, s.served, s.imported)
	s.registry.MustRegister(collectors.NewGoCollector())
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.route(mux, "GET /api/transcripts", s.handleList)
	s.route(mux, "POST /api/transcripts", s.handleImport)
	s.route(mux, "GET /api/transcripts/{id}", s.handleGet)
	s.route(mux, "DELETE /api/transcripts/{id}", s.handleDelete)
	s.route(mux, "GET /api/transcripts/{id}/{doc}", s.handleDocument)
	s.route(mux, "GET /api/search", s.handleSearch)

	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	s.log.Infow("document server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Infow("document server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.Filter{Name: q.Get("name")}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	list, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*catalog.Transcript{}
	}
	writeJSON(w, http.StatusOK, list)
}

// importRequest carries both documents inline.
type importRequest struct {
	Name         string          `json:"name"`
	Conversation json.RawMessage `json:"conversation"`
	Metrics      json.RawMessage `json:"metrics"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	t, err := s.store.Insert(r.Context(), req.Name, req.Conversation, req.Metrics)
	if errors.Is(err, catalog.ErrInvalidDocument) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.imported.Inc()
	s.log.Infow("transcript imported", "id", t.ID, "name", t.Name, "turns", t.Turns)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc := r.PathValue("doc")
	if doc != catalog.DocConversation && doc != catalog.DocMetrics {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown document %q", doc))
		return
	}

	data, err := s.store.Document(r.Context(), r.PathValue("id"), doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.served.WithLabelValues(doc).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	hits, err := s.store.SearchTurns(r.Context(), query, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if hits == nil {
		hits = []*catalog.TurnHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// ============================================================
// Helpers
// ============================================================

// route registers h under pattern with request metrics labelled by
// the pattern itself, so IDs never become label values.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		s.requests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		s.latency.WithLabelValues(pattern).Observe(elapsed.Seconds())
		s.log.Debugw("request", "route", pattern, "path", r.URL.Path,
			"status", rec.status, "duration", elapsed)
	}))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.log.Errorw("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
