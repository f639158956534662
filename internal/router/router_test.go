package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lanternhq/lantern/internal/trace"
)

func newTestRouter(t *testing.T, table Table, opts Options) (*Router, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := trace.NewRecorder(tp, "router-test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(table, rec, logger, opts), exporter
}

func TestForwardSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"42","confidence":0.9,"processing_time_ms":12.5}`))
	}))
	defer srv.Close()

	rt, exporter := newTestRouter(t, Table{"qa": srv.URL}, Options{})

	resp, err := rt.Forward(context.Background(), Call{
		Service: "qa",
		Method:  http.MethodPost,
		Path:    "/ask",
		Body:    map[string]string{"question": "what is the answer"},
		Headers: map[string]string{"X-Request-ID": "req-1"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, resp.Decode(&decoded))
	assert.Equal(t, "42", decoded.Answer)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "forward qa", spans[0].Name)

	attrs := make(map[string]any)
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "qa", attrs["downstream.service"])
	assert.Equal(t, int64(http.StatusOK), attrs["downstream.status_code"])
	assert.Equal(t, 0.9, attrs["downstream.confidence"])
	assert.Equal(t, 12.5, attrs["downstream.processing_time_ms"])
	assert.Contains(t, attrs, "downstream.response_time_ms")
}

func TestForwardUnknownService(t *testing.T) {
	rt, exporter := newTestRouter(t, Table{}, Options{})

	_, err := rt.Forward(context.Background(), Call{Service: "nope", Method: http.MethodGet, Path: "/"}, nil)

	var unknownErr *UnknownServiceError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Service)
	// No span is opened for a table miss.
	assert.Empty(t, exporter.GetSpans())
}

func TestForwardUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	rt, exporter := newTestRouter(t, Table{"qa": srv.URL}, Options{})

	_, err := rt.Forward(context.Background(), Call{Service: "qa", Method: http.MethodGet, Path: "/ask"}, nil)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "boom")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	// Upstream status is marked on the span but not recorded as an event.
	assert.Empty(t, spans[0].Events)
}

func TestForwardUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	rt, _ := newTestRouter(t, Table{"qa": srv.URL}, Options{})

	_, err := rt.Forward(context.Background(), Call{Service: "qa", Method: http.MethodGet, Path: "/ask"}, nil)

	var unavailErr *UnavailableError
	require.ErrorAs(t, err, &unavailErr)
	assert.Equal(t, "qa", unavailErr.Service)
}

func TestForwardRetriesTransportFailuresOnly(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rt, _ := newTestRouter(t, Table{"qa": srv.URL}, Options{RetryMax: 3})

	_, err := rt.Forward(context.Background(), Call{Service: "qa", Method: http.MethodGet, Path: "/ask"}, nil)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	// A 500 goes back to the caller after a single attempt.
	assert.Equal(t, int64(1), hits.Load())
}

func TestForwardCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	rt, _ := newTestRouter(t, Table{"qa": srv.URL}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := rt.Forward(ctx, Call{Service: "qa", Method: http.MethodGet, Path: "/slow"}, nil)
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("forward did not return after cancellation")
	}
}

func TestForwardTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	rt, _ := newTestRouter(t, Table{"qa": srv.URL}, Options{})

	_, err := rt.Forward(context.Background(), Call{
		Service: "qa",
		Method:  http.MethodGet,
		Path:    "/slow",
		Timeout: 100 * time.Millisecond,
	}, nil)

	var unavailErr *UnavailableError
	require.ErrorAs(t, err, &unavailErr)
}

func TestForwardChildSpanParentage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rt, exporter := newTestRouter(t, Table{"qa": srv.URL}, Options{})

	root := rt.recorder.Start(context.Background(), "handle request", nil)
	_, err := rt.Forward(context.Background(), Call{Service: "qa", Method: http.MethodGet, Path: "/ask"}, root)
	require.NoError(t, err)
	root.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	child := byName["forward qa"]
	parent := byName["handle request"]
	assert.Equal(t, parent.SpanContext.SpanID(), child.Parent.SpanID())
	assert.Equal(t, parent.SpanContext.TraceID(), child.SpanContext.TraceID())
}

func TestHealthProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	rt, _ := newTestRouter(t, Table{"vector-store": srv.URL}, Options{})

	resp, err := rt.Health(context.Background(), "vector-store")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTableServices(t *testing.T) {
	table := Table{"qa": "http://a", "vector-store": "http://b"}
	assert.ElementsMatch(t, []string{"qa", "vector-store"}, table.Services())
}
