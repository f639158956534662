package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lanternhq/lantern/internal/model"
	"github.com/lanternhq/lantern/internal/router"
	"github.com/lanternhq/lantern/internal/trace"
	"github.com/lanternhq/lantern/internal/web"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	web.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   "api-gateway",
		"version":   s.version,
		"endpoints": []string{"/ask", "/health", "/stats", "/trace/{trace_id}"},
	})
}

// handleAsk is the gateway's main flow: root span, rate limit, validation,
// forward to the Q&A service, and gateway metadata merged into the answer.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	clientIP := web.ClientIP(r)
	requestID := web.RequestIDFromContext(r.Context())
	receivedAt := time.Now().UTC()

	span := s.recorder.Start(r.Context(), "POST /ask", nil)
	defer span.End()
	span.SetAttribute("http.method", r.Method)
	span.SetAttribute("http.route", "/ask")
	span.SetAttribute("client.ip", clientIP)
	span.SetAttribute("user.id", identity.UserID)
	span.SetAttribute("user.role", string(identity.Role))
	span.SetAttribute("request.id", requestID)

	s.askRequests.Add(r.Context(), 1)

	allowed, err := s.limiter.Allow(r.Context(), "ask:"+clientIP)
	if err != nil {
		// Fail open: a broken limiter must not take down the request path.
		s.logger.Warn("rate limiter error, failing open", "error", err)
		allowed = true
	}
	if !allowed {
		s.askRateLimited.Add(r.Context(), 1)
		span.SetAttribute("rate_limited", true)
		span.SetStatusError("Rate limit exceeded")

		retryAfter := int(s.limiter.RetryAfter().Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		web.WriteError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, "Rate limit exceeded")
		return
	}

	var req model.AskRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		span.SetStatusError("invalid request body")
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		span.SetStatusError("question is required")
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "question is required")
		return
	}
	req.ApplyDefaults()
	span.SetAttribute("question.length", len(req.Question))

	resp, err := s.router.Forward(r.Context(), router.Call{
		Service: "qa",
		Method:  http.MethodPost,
		Path:    "/ask",
		Body:    req,
		Headers: map[string]string{"X-Request-ID": requestID},
	}, span)
	if err != nil {
		s.writeForwardError(w, r, span, err)
		return
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		span.RecordError(fmt.Errorf("gateway: decode qa response: %w", err))
		web.WriteError(w, r, http.StatusBadGateway, model.ErrCodeUpstreamError, "invalid response from qa service")
		return
	}
	body["gateway_info"] = model.GatewayInfo{
		UserID:           identity.UserID,
		ClientIP:         clientIP,
		RequestTimestamp: receivedAt,
	}
	web.WriteJSON(w, http.StatusOK, body)
}

// writeForwardError maps router errors to the error taxonomy. The forward
// span has already recorded the failure; the root span gets the status.
func (s *Server) writeForwardError(w http.ResponseWriter, r *http.Request, span *trace.Span, err error) {
	var unknownErr *router.UnknownServiceError
	var upErr *router.UpstreamError
	var unavailErr *router.UnavailableError

	switch {
	case errors.As(err, &unknownErr):
		span.SetStatusError("unknown service")
		web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeUnknownService,
			fmt.Sprintf("no route for service %q", unknownErr.Service))
	case errors.As(err, &upErr):
		// The downstream's own status and body pass through unchanged.
		span.SetStatusError(fmt.Sprintf("upstream HTTP %d", upErr.StatusCode))
		msg := strings.TrimSpace(upErr.Body)
		if msg == "" {
			msg = fmt.Sprintf("%s returned HTTP %d", upErr.Service, upErr.StatusCode)
		}
		web.WriteError(w, r, upErr.StatusCode, model.ErrCodeUpstreamError, msg)
	case errors.As(err, &unavailErr):
		span.SetStatusError("downstream unavailable")
		web.WriteError(w, r, http.StatusServiceUnavailable, model.ErrCodeServiceUnavailable,
			fmt.Sprintf("%s is unavailable", unavailErr.Service))
	case errors.Is(err, context.Canceled):
		// The caller went away; there is no one left to answer.
		span.SetStatusError("request canceled")
	default:
		span.RecordError(err)
		web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// handleHealth aggregates downstream health. Concurrent probes are
// collapsed into one fan-out via singleflight.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	v, _, _ := s.healthGroup.Do("health", func() (any, error) {
		return s.collectHealth(ctx), nil
	})
	// The gateway itself is up, so /health is always 200; downstream
	// outages show as a degraded report, not as a gateway failure.
	web.WriteJSON(w, http.StatusOK, v.(model.HealthResponse))
}

func (s *Server) collectHealth(ctx context.Context) model.HealthResponse {
	services := s.router.Table().Services()
	results := make(map[string]model.ServiceHealth, len(services))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			start := time.Now()
			_, err := s.router.Health(ctx, svc)
			h := model.ServiceHealth{
				Status:         model.HealthHealthy,
				ResponseTimeMS: float64(time.Since(start).Milliseconds()),
			}
			if err != nil {
				h = model.ServiceHealth{Status: model.HealthUnhealthy, Error: err.Error()}
			}
			mu.Lock()
			results[svc] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := model.HealthHealthy
	for _, h := range results {
		if h.Status != model.HealthHealthy {
			overall = model.HealthDegraded
			break
		}
	}

	return model.HealthResponse{
		Status:             overall,
		Service:            "api-gateway",
		DownstreamServices: results,
	}
}

// statsPath overrides the metrics path per service; the default is /stats.
var statsPath = map[string]string{"qa": "/metrics"}

// handleStats reports the gateway's own counters plus each downstream's
// metrics body, best effort.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := model.StatsResponse{
		Gateway: model.GatewayStats{
			TotalRequests:    s.limiter.TotalRequests(),
			ActiveClients:    s.limiter.ActiveClients(),
			RateLimitsActive: true,
		},
		Services: make(map[string]any),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(r.Context())
	for _, svc := range s.router.Table().Services() {
		path, ok := statsPath[svc]
		if !ok {
			path = "/stats"
		}
		g.Go(func() error {
			resp, err := s.router.Forward(ctx, router.Call{
				Service: svc,
				Method:  http.MethodGet,
				Path:    path,
				Timeout: 5 * time.Second,
			}, nil)

			var v any
			if err != nil {
				v = map[string]any{"error": err.Error()}
			} else if decodeErr := resp.Decode(&v); decodeErr != nil {
				v = map[string]any{"error": decodeErr.Error()}
			}
			mu.Lock()
			stats.Services[svc] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	web.WriteJSON(w, http.StatusOK, stats)
}

// handleTrace validates a trace ID and points the caller at the sink's UI.
// Spans are exported out-of-band; the gateway keeps none of them.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if _, err := oteltrace.TraceIDFromHex(traceID); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid trace id")
		return
	}

	services := append(s.router.Table().Services(), "api-gateway")
	slices.Sort(services)

	info := model.TraceInfo{
		TraceID:  traceID,
		Status:   "exported",
		Services: services,
	}
	if s.sinkURL != "" {
		info.SinkURL = strings.TrimRight(s.sinkURL, "/") + "/trace/" + traceID
	}
	web.WriteJSON(w, http.StatusOK, info)
}
