package qa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lanternhq/lantern/internal/model"
	"github.com/lanternhq/lantern/internal/router"
	"github.com/lanternhq/lantern/internal/trace"
	"github.com/lanternhq/lantern/internal/web"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	web.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   "qa",
		"version":   s.version,
		"model":     s.llm.Model(),
		"endpoints": []string{"/ask", "/chat", "/metrics", "/health"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	web.WriteJSON(w, http.StatusOK, model.HealthResponse{
		Status:  model.HealthHealthy,
		Service: "qa",
	})
}

// handleAsk answers a question: retrieve context from the vector store,
// complete with the LLM, derive confidence from retrieval scores.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req model.AskRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "question is required")
		return
	}
	req.ApplyDefaults()

	start := time.Now()
	s.requests.Add(1)
	s.askCounter.Add(r.Context(), 1)

	// Join the gateway's trace.
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	span := s.recorder.Start(ctx, "ask_question", nil)
	defer span.End()
	span.SetAttribute("question.text", req.Question)
	span.SetAttribute("question.context_limit", req.ContextLimit)
	span.SetAttribute("question.temperature", req.Temperature)

	// Step 1: retrieve context.
	retrieveSpan := s.recorder.Start(ctx, "retrieve_context", span)
	docs, err := s.retrieveContext(retrieveSpan.Context(), req, retrieveSpan)
	retrieveSpan.End()
	if err != nil {
		s.errorsTotal.Add(1)
		span.RecordError(err)
		s.writeRetrievalError(w, r, err)
		return
	}

	contexts := make([]string, 0, len(docs))
	sources := make([]string, 0, len(docs))
	for _, doc := range docs {
		contexts = append(contexts, doc.Content)
		if src, ok := doc.Metadata["source"].(string); ok {
			sources = append(sources, src)
		}
	}

	// Step 2: generate the answer.
	s.llmCalls.Add(1)
	completion, err := s.llm.Complete(ctx, span, req.Question, contexts, req.Temperature)
	if err != nil {
		s.errorsTotal.Add(1)
		span.RecordError(err)
		if !errors.Is(err, r.Context().Err()) {
			web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "completion failed")
		}
		return
	}

	// Step 3: confidence from retrieval quality.
	confSpan := s.recorder.Start(ctx, "calculate_confidence", span)
	avgScore := 0.0
	if len(docs) > 0 {
		for _, doc := range docs {
			avgScore += doc.Score
		}
		avgScore /= float64(len(docs))
	}
	confidence := avgScore * 1.2
	if confidence > 1.0 {
		confidence = 1.0
	}
	confSpan.SetAttribute("confidence.average_score", avgScore)
	confSpan.SetAttribute("confidence.final", confidence)
	confSpan.End()

	elapsed := time.Since(start).Milliseconds()
	s.totalTimeMS.Add(elapsed)

	span.SetAttribute("response.processing_time_ms", elapsed)
	span.SetAttribute("response.confidence", confidence)
	span.SetAttribute("response.sources_count", len(sources))

	web.WriteJSON(w, http.StatusOK, model.AskResponse{
		Answer:           completion.Text,
		Confidence:       confidence,
		Sources:          sources,
		ProcessingTimeMS: elapsed,
	})
}

// retrieveContext queries the vector store through the router. The span is
// passed in so the forward call nests under retrieve_context.
func (s *Server) retrieveContext(ctx context.Context, req model.AskRequest, parent *trace.Span) ([]model.Document, error) {
	s.vectorCalls.Add(1)

	resp, err := s.router.Forward(ctx, router.Call{
		Service: "vector-store",
		Method:  http.MethodPost,
		Path:    "/search",
		Body:    model.SearchRequest{Query: req.Question, Limit: req.ContextLimit},
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("qa: retrieve context: %w", err)
	}

	var docs []model.Document
	if err := resp.Decode(&docs); err != nil {
		return nil, fmt.Errorf("qa: retrieve context: %w", err)
	}
	return docs, nil
}

// writeRetrievalError maps vector store failures onto the error taxonomy.
func (s *Server) writeRetrievalError(w http.ResponseWriter, r *http.Request, err error) {
	var upErr *router.UpstreamError
	var unavailErr *router.UnavailableError

	switch {
	case errors.As(err, &upErr):
		// The vector store's own status and body pass through unchanged.
		msg := strings.TrimSpace(upErr.Body)
		if msg == "" {
			msg = fmt.Sprintf("vector store returned HTTP %d", upErr.StatusCode)
		}
		web.WriteError(w, r, upErr.StatusCode, model.ErrCodeUpstreamError, msg)
	case errors.As(err, &unavailErr):
		web.WriteError(w, r, http.StatusServiceUnavailable, model.ErrCodeServiceUnavailable,
			"vector store is unavailable")
	default:
		web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError,
			"context retrieval failed")
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		web.WriteError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "messages are required")
		return
	}
	if req.Model == "" {
		req.Model = s.llm.Model()
	}
	if req.Temperature <= 0 {
		req.Temperature = 0.7
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	resp, err := s.llm.Chat(ctx, nil, req)
	if err != nil {
		s.errorsTotal.Add(1)
		if !errors.Is(err, r.Context().Err()) {
			web.WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "chat completion failed")
		}
		return
	}
	web.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requests := s.requests.Load()
	avg := 0.0
	if requests > 0 {
		avg = float64(s.totalTimeMS.Load()) / float64(requests)
	}
	web.WriteJSON(w, http.StatusOK, model.QAMetrics{
		RequestsTotal:     requests,
		VectorSearchCalls: s.vectorCalls.Load(),
		LLMCalls:          s.llmCalls.Load(),
		ErrorsTotal:       s.errorsTotal.Load(),
		AvgResponseTimeMS: avg,
	})
}
