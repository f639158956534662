package vectorstore

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lanternhq/lantern/internal/model"
	"github.com/lanternhq/lantern/internal/web"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	web.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   "vector-store",
		"version":   s.version,
		"backend":   s.index.Backend(),
		"endpoints": []string{"/search", "/embed", "/stats", "/health"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{Status: model.HealthHealthy, Service: "vector-store"}
	status := http.StatusOK
	if err := s.index.Healthy(r.Context()); err != nil {
		resp.Status = model.HealthUnhealthy
		status = http.StatusServiceUnavailable
	}
	web.WriteJSON(w, status, resp)
}

// handleSearch embeds the query and ranks the corpus against it. The span
// tree mirrors the work: vector_search > embed_query, similarity_search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "query is required")
		return
	}
	req.ApplyDefaults()

	// Join the caller's trace so this shows up under the gateway's tree.
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	span := s.recorder.Start(ctx, "vector_search", nil)
	defer span.End()
	span.SetAttribute("search.query", req.Query)
	span.SetAttribute("search.limit", req.Limit)
	span.SetAttribute("search.threshold", req.Threshold)

	embedSpan := s.recorder.Start(ctx, "embed_query", span)
	embedStart := time.Now()
	vector, err := s.provider.Embed(embedSpan.Context(), req.Query)
	embedTime := time.Since(embedStart)
	if err != nil {
		embedSpan.RecordError(err)
		embedSpan.End()
		span.RecordError(err)
		web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "embedding failed")
		return
	}
	embedSpan.SetAttribute("embedding.dimensions", len(vector))
	embedSpan.SetAttribute("embedding.time_ms", float64(embedTime.Microseconds())/1000)
	embedSpan.End()

	searchSpan := s.recorder.Start(ctx, "similarity_search", span)
	searchStart := time.Now()
	results, err := s.index.Search(searchSpan.Context(), req.Query, vector, req.Limit, req.Threshold)
	searchTime := time.Since(searchStart)
	if err != nil {
		searchSpan.RecordError(err)
		searchSpan.End()
		span.RecordError(err)
		web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "search failed")
		return
	}
	candidates, _ := s.index.Count(searchSpan.Context())
	searchSpan.SetAttribute("search.candidates_count", candidates)
	searchSpan.SetAttribute("search.results_count", len(results))
	searchSpan.SetAttribute("search.time_ms", float64(searchTime.Microseconds())/1000)
	topScore := 0.0
	if len(results) > 0 {
		topScore = results[0].Score
	}
	searchSpan.SetAttribute("search.top_score", topScore)
	searchSpan.End()

	span.SetAttribute("response.results_count", len(results))
	span.SetAttribute("response.total_time_ms", float64((embedTime + searchTime).Microseconds())/1000)

	s.searchRequests.Add(1)
	s.searchCounter.Add(r.Context(), 1)

	web.WriteJSON(w, http.StatusOK, results)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req model.EmbedRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.Text == "" {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "text is required")
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	span := s.recorder.Start(ctx, "embed_text", nil)
	defer span.End()
	span.SetAttribute("embedding.input_length", len(req.Text))

	vector, err := s.provider.Embed(span.Context(), req.Text)
	if err != nil {
		span.RecordError(err)
		web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "embedding failed")
		return
	}

	span.SetAttribute("embedding.dimensions", len(vector))
	span.SetAttribute("embedding.model", s.provider.Model())

	web.WriteJSON(w, http.StatusOK, model.EmbedResponse{
		Embedding:  vector,
		Model:      s.provider.Model(),
		Dimensions: len(vector),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.index.Count(r.Context())
	if err != nil {
		s.logger.Warn("stats: count failed", "error", err)
	}
	web.WriteJSON(w, http.StatusOK, model.VectorStoreStats{
		TotalDocuments: count,
		Backend:        s.index.Backend(),
		Dimensions:     s.provider.Dimensions(),
		SearchRequests: s.searchRequests.Load(),
	})
}
