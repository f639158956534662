package vectorstore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/lanternhq/lantern/internal/telemetry"
	"github.com/lanternhq/lantern/internal/trace"
	"github.com/lanternhq/lantern/internal/web"
)

// Options configures a vector store Server.
type Options struct {
	Addr     string
	Version  string
	Logger   *slog.Logger
	Recorder *trace.Recorder
	Provider Provider
	Index    Index
}

// Server is the vector store service.
type Server struct {
	logger   *slog.Logger
	recorder *trace.Recorder
	provider Provider
	index    Index
	version  string

	searchRequests atomic.Int64
	searchCounter  metric.Int64Counter

	httpSrv *http.Server
}

// New creates a vector store server.
func New(opts Options) *Server {
	meter := telemetry.Meter("lantern/vectorstore")
	searchCounter, _ := meter.Int64Counter("vectorstore.search_requests",
		metric.WithDescription("Similarity search requests served"),
		metric.WithUnit("{request}"))

	s := &Server{
		logger:        opts.Logger,
		recorder:      opts.Recorder,
		provider:      opts.Provider,
		index:         opts.Index,
		version:       opts.Version,
		searchCounter: searchCounter,
	}
	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /embed", s.handleEmbed)
	mux.HandleFunc("GET /stats", s.handleStats)

	var handler http.Handler = mux
	handler = web.Recovery(s.logger, handler)
	handler = web.Logging(s.logger, handler)
	handler = web.RequestID(handler)
	return handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("vector store listening", "addr", s.httpSrv.Addr, "backend", s.index.Backend())
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the index.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if closeErr := s.index.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
