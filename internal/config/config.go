// Package config loads and validates service configuration from
// environment variables. All three services share one Config; each binary
// reads the fields it needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	// Server settings.
	GatewayPort     int
	QAPort          int
	VectorStorePort int

	// Downstream endpoints (as seen from the gateway and qa service).
	QAURL          string
	VectorStoreURL string

	// Forwarding.
	ForwardTimeout time.Duration
	RetryMax       int // additional attempts after a transport failure

	// Rate limiting.
	RateLimit          int
	RateLimitWindow    time.Duration
	RateLimitRetention int // windows kept per client before purge

	// Auth settings.
	AuthMode          string // "static" or "jwt"
	AdminToken        string // static mode sentinel; empty selects the default
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// Vector store backend settings.
	VectorBackend       string // "memory" or "qdrant"
	QdrantURL           string
	QdrantAPIKey        string
	QdrantCollection    string
	EmbeddingProvider   string // "hash" or "ollama"
	EmbeddingDimensions int
	OllamaURL           string
	OllamaModel         string

	// LLM mock settings.
	LLMModel   string
	LLMLatency time.Duration // simulated base latency per completion

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	SinkURL      string // trace sink UI base, reported by /trace lookups

	// Operational settings.
	LogLevel string
	Version  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		GatewayPort:         envInt("LANTERN_GATEWAY_PORT", 8080),
		QAPort:              envInt("LANTERN_QA_PORT", 8000),
		VectorStorePort:     envInt("LANTERN_VECTOR_STORE_PORT", 8001),
		QAURL:               envStr("LANTERN_QA_URL", "http://localhost:8000"),
		VectorStoreURL:      envStr("LANTERN_VECTOR_STORE_URL", "http://localhost:8001"),
		ForwardTimeout:      envDuration("LANTERN_FORWARD_TIMEOUT", 30*time.Second),
		RetryMax:            envInt("LANTERN_RETRY_MAX", 2),
		RateLimit:           envInt("LANTERN_RATE_LIMIT", 100),
		RateLimitWindow:     envDuration("LANTERN_RATE_LIMIT_WINDOW", time.Minute),
		RateLimitRetention:  envInt("LANTERN_RATE_LIMIT_RETENTION", 5),
		AuthMode:            envStr("LANTERN_AUTH_MODE", "static"),
		AdminToken:          envStr("LANTERN_ADMIN_TOKEN", ""),
		JWTPrivateKeyPath:   envStr("LANTERN_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:    envStr("LANTERN_JWT_PUBLIC_KEY", ""),
		JWTExpiration:       envDuration("LANTERN_JWT_EXPIRATION", 24*time.Hour),
		VectorBackend:       envStr("LANTERN_VECTOR_BACKEND", "memory"),
		QdrantURL:           envStr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:        envStr("QDRANT_API_KEY", ""),
		QdrantCollection:    envStr("QDRANT_COLLECTION", "lantern_corpus"),
		EmbeddingProvider:   envStr("LANTERN_EMBEDDING_PROVIDER", "hash"),
		EmbeddingDimensions: envInt("LANTERN_EMBEDDING_DIMENSIONS", 5),
		OllamaURL:           envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         envStr("OLLAMA_MODEL", "nomic-embed-text"),
		LLMModel:            envStr("LANTERN_LLM_MODEL", "gpt-3.5-turbo"),
		LLMLatency:          envDuration("LANTERN_LLM_LATENCY", 500*time.Millisecond),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		SinkURL:             envStr("LANTERN_SINK_URL", ""),
		LogLevel:            envStr("LANTERN_LOG_LEVEL", "info"),
		Version:             envStr("LANTERN_VERSION", "dev"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.AuthMode != "static" && c.AuthMode != "jwt" {
		return fmt.Errorf("config: LANTERN_AUTH_MODE must be \"static\" or \"jwt\", got %q", c.AuthMode)
	}
	if c.VectorBackend != "memory" && c.VectorBackend != "qdrant" {
		return fmt.Errorf("config: LANTERN_VECTOR_BACKEND must be \"memory\" or \"qdrant\", got %q", c.VectorBackend)
	}
	if c.EmbeddingProvider != "hash" && c.EmbeddingProvider != "ollama" {
		return fmt.Errorf("config: LANTERN_EMBEDDING_PROVIDER must be \"hash\" or \"ollama\", got %q", c.EmbeddingProvider)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("config: LANTERN_RATE_LIMIT must be positive")
	}
	if c.RateLimitWindow < time.Second {
		return fmt.Errorf("config: LANTERN_RATE_LIMIT_WINDOW must be at least one second")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config: LANTERN_EMBEDDING_DIMENSIONS must be positive")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("config: LANTERN_RETRY_MAX must not be negative")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
