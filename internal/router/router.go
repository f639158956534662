// Package router resolves logical service names to endpoints and performs
// forwarding calls, decorating each call with a child span and translating
// transport failures into typed errors.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lanternhq/lantern/internal/trace"
)

// Table maps logical service names to base endpoints. Built at startup,
// read-only for the lifetime of the process.
type Table map[string]string

// Services returns the configured service names.
func (t Table) Services() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	return names
}

// Call describes one forward operation.
type Call struct {
	Service string
	Method  string
	Path    string
	Body    any               // JSON-encoded when non-nil
	Headers map[string]string
	Timeout time.Duration // zero selects the router's default
}

// Response is the decoded outcome of a successful forward call.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("router: decode response: %w", err)
	}
	return nil
}

// Options configures a Router.
type Options struct {
	// Timeout bounds each request-path forward call. Default 30s.
	Timeout time.Duration
	// HealthTimeout bounds health probes. Default 5s.
	HealthTimeout time.Duration
	// RetryMax is the number of additional attempts after a transport
	// failure. HTTP responses, success or not, are never retried: an
	// upstream status may be client-caused and must pass through once.
	RetryMax int
}

const (
	defaultTimeout       = 30 * time.Second
	defaultHealthTimeout = 5 * time.Second

	// maxResponseBytes bounds how much of a downstream body is read.
	maxResponseBytes = 4 << 20
)

// Router performs forwarding calls against a static route table.
// Safe for concurrent use.
type Router struct {
	table         Table
	client        *retryablehttp.Client
	recorder      *trace.Recorder
	logger        *slog.Logger
	timeout       time.Duration
	healthTimeout time.Duration
}

// New creates a Router over the given table.
func New(table Table, recorder *trace.Recorder, logger *slog.Logger, opts Options) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = defaultHealthTimeout
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.CheckRetry = transportOnlyRetry
	// Per-call deadlines come from the context; no client-wide timeout.
	client.HTTPClient.Timeout = 0

	return &Router{
		table:         table,
		client:        client,
		recorder:      recorder,
		logger:        logger,
		timeout:       opts.Timeout,
		healthTimeout: opts.HealthTimeout,
	}
}

// transportOnlyRetry retries transport-level failures only. Any HTTP
// response, whatever its status, is returned to the caller as-is.
func transportOnlyRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return false, nil
}

// Table returns the router's route table.
func (rt *Router) Table() Table { return rt.table }

// Forward resolves the service, opens a child span under parent, performs
// the call, and returns the response or a typed error. Cancellation of ctx
// (or of the parent span's context) aborts the in-flight call.
func (rt *Router) Forward(ctx context.Context, call Call, parent *trace.Span) (*Response, error) {
	base, ok := rt.table[call.Service]
	if !ok {
		return nil, &UnknownServiceError{Service: call.Service}
	}

	span := rt.recorder.Start(ctx, "forward "+call.Service, parent)
	defer span.End()
	span.SetAttribute("downstream.service", call.Service)
	span.SetAttribute("http.method", call.Method)
	span.SetAttribute("http.url", base+call.Path)

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = rt.timeout
	}
	callCtx, cancel := context.WithTimeout(span.Context(), timeout)
	defer cancel()

	var payload []byte
	if call.Body != nil {
		var err error
		payload, err = json.Marshal(call.Body)
		if err != nil {
			wrapped := fmt.Errorf("router: encode payload for %s: %w", call.Service, err)
			span.RecordError(wrapped)
			return nil, wrapped
		}
	}

	req, err := retryablehttp.NewRequestWithContext(callCtx, call.Method, base+call.Path, payload)
	if err != nil {
		wrapped := fmt.Errorf("router: build request for %s: %w", call.Service, err)
		span.RecordError(wrapped)
		return nil, wrapped
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}
	// Propagate the trace context so the downstream's spans join this tree.
	otel.GetTextMapPropagator().Inject(span.Context(), propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := rt.client.Do(req)
	latency := time.Since(start)
	span.SetAttribute("downstream.response_time_ms", float64(latency.Milliseconds()))

	if err != nil {
		// Distinguish the caller walking away from the service being down.
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			span.SetStatusError("request canceled")
			return nil, ctx.Err()
		}
		uerr := &UnavailableError{Service: call.Service, Err: err}
		span.RecordError(uerr)
		return nil, uerr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		uerr := &UnavailableError{Service: call.Service, Err: fmt.Errorf("read body: %w", err)}
		span.RecordError(uerr)
		return nil, uerr
	}

	span.SetAttribute("downstream.status_code", resp.StatusCode)

	if resp.StatusCode >= 400 {
		span.SetStatusError(fmt.Sprintf("HTTP %d", resp.StatusCode))
		return nil, &UpstreamError{
			Service:    call.Service,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	enrichSpan(span, body)

	return &Response{StatusCode: resp.StatusCode, Body: body, Latency: latency}, nil
}

// Health probes a service's /health endpoint with the short health timeout.
func (rt *Router) Health(ctx context.Context, service string) (*Response, error) {
	return rt.Forward(ctx, Call{
		Service: service,
		Method:  http.MethodGet,
		Path:    "/health",
		Timeout: rt.healthTimeout,
	}, nil)
}

// enrichSpan copies downstream-reported quality fields onto the forward
// span when the response body carries them. Absence is not an error.
func enrichSpan(span *trace.Span, body []byte) {
	var reported struct {
		Confidence       *float64 `json:"confidence"`
		ProcessingTimeMS *float64 `json:"processing_time_ms"`
	}
	if err := json.Unmarshal(body, &reported); err != nil {
		return
	}
	if reported.Confidence != nil {
		span.SetAttribute("downstream.confidence", *reported.Confidence)
	}
	if reported.ProcessingTimeMS != nil {
		span.SetAttribute("downstream.processing_time_ms", *reported.ProcessingTimeMS)
	}
}
