package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lanternhq/lantern/internal/model"
)

// WriteJSON writes v as the response body. Success bodies are
// domain-shaped, not enveloped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the standard envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{Code: code, Message: message},
		Meta: model.ResponseMeta{
			RequestID: RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}

// maxRequestBodyBytes bounds request bodies; the demo's payloads are tiny.
const maxRequestBodyBytes = 1 << 20 // 1 MB

// DecodeJSON decodes a JSON request body into the target struct,
// rejecting unknown fields and oversized bodies.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("web: decode request body: %w", err)
	}
	return nil
}
