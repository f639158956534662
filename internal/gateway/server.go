// Package gateway implements the public entry point of the demo: it
// authenticates callers, enforces per-client rate limits, opens the root
// span for each request, and forwards work to the downstream services.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/ratelimit"
	"github.com/lanternhq/lantern/internal/router"
	"github.com/lanternhq/lantern/internal/telemetry"
	"github.com/lanternhq/lantern/internal/trace"
	"github.com/lanternhq/lantern/internal/web"
)

// Options configures a gateway Server.
type Options struct {
	Addr     string
	Version  string
	Logger   *slog.Logger
	Recorder *trace.Recorder
	Auth     auth.Authenticator
	Limiter  *ratelimit.FixedWindow
	Router   *router.Router
	// SinkURL is the trace sink's UI base (e.g. a local Jaeger), reported
	// by GET /trace/{trace_id}. Optional.
	SinkURL string
}

// Server is the API gateway.
type Server struct {
	logger   *slog.Logger
	recorder *trace.Recorder
	authn    auth.Authenticator
	limiter  *ratelimit.FixedWindow
	router   *router.Router
	sinkURL  string
	version  string

	// healthGroup collapses concurrent health probes into one downstream
	// fan-out.
	healthGroup singleflight.Group

	askRequests    metric.Int64Counter
	askRateLimited metric.Int64Counter

	httpSrv *http.Server
}

// New creates a gateway server. The limiter backs both the ask flow and
// the read-side routes, namespaced by key prefix.
func New(opts Options) *Server {
	meter := telemetry.Meter("lantern/gateway")
	askRequests, _ := meter.Int64Counter("gateway.ask_requests",
		metric.WithDescription("Ask requests received"),
		metric.WithUnit("{request}"))
	askRateLimited, _ := meter.Int64Counter("gateway.ask_rate_limited",
		metric.WithDescription("Ask requests rejected by the rate limiter"),
		metric.WithUnit("{request}"))

	s := &Server{
		logger:         opts.Logger,
		recorder:       opts.Recorder,
		authn:          opts.Auth,
		limiter:        opts.Limiter,
		router:         opts.Router,
		sinkURL:        opts.SinkURL,
		version:        opts.Version,
		askRequests:    askRequests,
		askRateLimited: askRateLimited,
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
	reqID := func(r *http.Request) string { return web.RequestIDFromContext(r.Context()) }
	statsLimit := ratelimit.Middleware(s.limiter, "stats", ratelimit.IPKeyFunc, reqID)
	traceLimit := ratelimit.Middleware(s.limiter, "trace", ratelimit.IPKeyFunc, reqID)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("POST /ask", s.authenticate(http.HandlerFunc(s.handleAsk)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /stats", statsLimit(http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /trace/{trace_id}", traceLimit(http.HandlerFunc(s.handleTrace)))

	var handler http.Handler = mux
	handler = web.Recovery(s.logger, handler)
	handler = web.Logging(s.logger, handler)
	handler = web.RequestID(handler)
	return handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("gateway listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
