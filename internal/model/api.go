// Package model defines the wire types shared by the Lantern services.
package model

import "time"

// APIError is the standard error response envelope.
// Success bodies are domain-shaped (e.g. AskResponse); only failures
// are wrapped so clients can switch on a stable code.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every error response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnknownService     = "UNKNOWN_SERVICE"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// AskRequest is the request body for POST /ask on both the gateway and
// the Q&A service.
type AskRequest struct {
	Question     string  `json:"question"`
	ContextLimit int     `json:"context_limit"`
	Temperature  float64 `json:"temperature"`
}

// ApplyDefaults fills in the documented defaults for omitted fields.
func (r *AskRequest) ApplyDefaults() {
	if r.ContextLimit <= 0 {
		r.ContextLimit = 5
	}
	if r.Temperature <= 0 {
		r.Temperature = 0.7
	}
}

// AskResponse is the Q&A service's answer to POST /ask.
type AskResponse struct {
	Answer           string   `json:"answer"`
	Confidence       float64  `json:"confidence"`
	Sources          []string `json:"sources"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
}

// GatewayInfo is the metadata the gateway merges into a successful
// downstream response under the "gateway_info" key.
type GatewayInfo struct {
	UserID           string    `json:"user_id"`
	ClientIP         string    `json:"client_ip"`
	RequestTimestamp time.Time `json:"request_timestamp"`
}

// SearchRequest is the request body for POST /search on the vector store.
type SearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

// ApplyDefaults fills in the documented defaults for omitted fields.
func (r *SearchRequest) ApplyDefaults() {
	if r.Limit <= 0 {
		r.Limit = 5
	}
	if r.Threshold <= 0 {
		r.Threshold = 0.5
	}
}

// Document is a single ranked search result.
type Document struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// EmbedRequest is the request body for POST /embed.
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse is the response for POST /embed.
type EmbedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// ChatMessage is one message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /chat (OpenAI-shaped mock).
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
}

// ChatChoice is a single completion choice.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage reports mock token accounting for a chat completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the response for POST /chat.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ServiceHealth is the health sub-status of one downstream service.
type ServiceHealth struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status             string                   `json:"status"`
	Service            string                   `json:"service"`
	DownstreamServices map[string]ServiceHealth `json:"downstream_services,omitempty"`
}

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// GatewayStats is the gateway-local portion of GET /stats.
type GatewayStats struct {
	TotalRequests    int  `json:"total_requests"`
	ActiveClients    int  `json:"active_clients"`
	RateLimitsActive bool `json:"rate_limits_active"`
}

// StatsResponse is the response for GET /stats on the gateway.
// Services holds the downstream metrics bodies verbatim (best-effort).
type StatsResponse struct {
	Gateway  GatewayStats   `json:"gateway"`
	Services map[string]any `json:"services"`
}

// TraceInfo is the response for GET /trace/{trace_id}. The gateway does
// not store spans itself; this reports where the trace sink's UI lives.
type TraceInfo struct {
	TraceID  string   `json:"trace_id"`
	Status   string   `json:"status"`
	Services []string `json:"services"`
	SinkURL  string   `json:"sink_url,omitempty"`
}

// VectorStoreStats is the response for GET /stats on the vector store.
type VectorStoreStats struct {
	TotalDocuments int    `json:"total_documents"`
	Backend        string `json:"backend"`
	Dimensions     int    `json:"dimensions"`
	SearchRequests int64  `json:"search_requests"`
}

// QAMetrics is the response for GET /metrics on the Q&A service.
type QAMetrics struct {
	RequestsTotal     int64   `json:"requests_total"`
	VectorSearchCalls int64   `json:"vector_search_calls"`
	LLMCalls          int64   `json:"llm_calls"`
	ErrorsTotal       int64   `json:"errors_total"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
}
