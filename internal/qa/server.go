// Package qa implements the question-answering service: it retrieves
// context from the vector store, runs the mock LLM over it, and reports
// a confidence derived from retrieval quality.
package qa

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/lanternhq/lantern/internal/router"
	"github.com/lanternhq/lantern/internal/telemetry"
	"github.com/lanternhq/lantern/internal/trace"
	"github.com/lanternhq/lantern/internal/web"
)

// Options configures a Q&A Server.
type Options struct {
	Addr     string
	Version  string
	Logger   *slog.Logger
	Recorder *trace.Recorder
	Router   *router.Router
	LLM      LLM
}

// Server is the Q&A service.
type Server struct {
	logger   *slog.Logger
	recorder *trace.Recorder
	router   *router.Router
	llm      LLM
	version  string

	requests    atomic.Int64
	vectorCalls atomic.Int64
	llmCalls    atomic.Int64
	errorsTotal atomic.Int64
	totalTimeMS atomic.Int64

	askCounter metric.Int64Counter

	httpSrv *http.Server
}

// New creates a Q&A server.
func New(opts Options) *Server {
	meter := telemetry.Meter("lantern/qa")
	askCounter, _ := meter.Int64Counter("qa.ask_requests",
		metric.WithDescription("Ask requests served"),
		metric.WithUnit("{request}"))

	s := &Server{
		logger:     opts.Logger,
		recorder:   opts.Recorder,
		router:     opts.Router,
		llm:        opts.LLM,
		version:    opts.Version,
		askCounter: askCounter,
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
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = web.Recovery(s.logger, handler)
	handler = web.Logging(s.logger, handler)
	handler = web.RequestID(handler)
	return handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("qa service listening", "addr", s.httpSrv.Addr, "model", s.llm.Model())
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
