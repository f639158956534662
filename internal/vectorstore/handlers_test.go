package vectorstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lanternhq/lantern/internal/model"
	"github.com/lanternhq/lantern/internal/trace"
)

func newTestServer(t *testing.T) (*Server, *tracetest.InMemoryExporter) {
	t.Helper()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv := New(Options{
		Version:  "test",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Recorder: trace.NewRecorder(tp, "vectorstore-test"),
		Provider: HashProvider{},
		Index:    NewMemoryIndex(SeedCorpus()),
	})
	return srv, exporter
}

func TestSearchEndpoint(t *testing.T) {
	srv, exporter := newTestServer(t)

	body := `{"query":"docker containerization platform containers","limit":3,"threshold":0.1}`
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var results []model.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)

	// The word-overlap blend pulls the Docker document to the top.
	assert.Contains(t, results[0].Content, "Docker")

	// Span tree: vector_search with embed_query and similarity_search
	// children.
	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	parent := byName["vector_search"]
	for _, child := range []string{"embed_query", "similarity_search"} {
		assert.Equal(t, parent.SpanContext.SpanID(), byName[child].Parent.SpanID(), child)
	}

	attrs := make(map[string]any)
	for _, kv := range byName["similarity_search"].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(5), attrs["search.candidates_count"])
	assert.Equal(t, int64(len(results)), attrs["search.results_count"])
}

func TestSearchJoinsCallerTrace(t *testing.T) {
	srv, exporter := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"docker"}`))
	req.Header.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	for _, s := range exporter.GetSpans() {
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", s.SpanContext.TraceID().String(), s.Name)
	}
}

func TestSearchValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty query", `{"query":"  "}`},
		{"missing query", `{}`},
		{"unknown field", `{"query":"x","bogus":1}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)

			require.Equal(t, http.StatusBadRequest, rr.Code)

			var apiErr model.APIError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr))
			assert.Equal(t, model.ErrCodeInvalidInput, apiErr.Error.Code)
		})
	}
}

func TestSearchAppliesDefaults(t *testing.T) {
	srv, exporter := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"docker"}`))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Name != "vector_search" {
			continue
		}
		for _, kv := range s.Attributes {
			if string(kv.Key) == "search.limit" {
				assert.Equal(t, int64(5), kv.Value.AsInterface())
				found = true
			}
			if string(kv.Key) == "search.threshold" {
				assert.Equal(t, 0.5, kv.Value.AsInterface())
			}
		}
	}
	assert.True(t, found, "vector_search span missing search.limit")
}

func TestEmbedEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(`{"text":"hello world"}`))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp model.EmbedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Embedding, 5)
	assert.Equal(t, 5, resp.Dimensions)
	assert.Equal(t, "mock-embeddings-v1", resp.Model)

	// Same input, same vector.
	rr2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr2, httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(`{"text":"hello world"}`)))
	var resp2 model.EmbedResponse
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.Embedding, resp2.Embedding)
}

func TestEmbedRequiresText(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(`{"text":""}`))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	// Two searches, then stats reflects them.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"docker"}`))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var stats model.VectorStoreStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.TotalDocuments)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 5, stats.Dimensions)
	assert.Equal(t, int64(2), stats.SearchRequests)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var health model.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, model.HealthHealthy, health.Status)
	assert.Equal(t, "vector-store", health.Service)
}
