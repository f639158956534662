package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.GatewayPort)
	assert.Equal(t, "http://localhost:8000", cfg.QAURL)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 5, cfg.RateLimitRetention)
	assert.Equal(t, "static", cfg.AuthMode)
	assert.Equal(t, "memory", cfg.VectorBackend)
	assert.Equal(t, "hash", cfg.EmbeddingProvider)
	assert.Equal(t, 2, cfg.RetryMax)
	assert.Empty(t, cfg.OTELEndpoint)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LANTERN_GATEWAY_PORT", "9090")
	t.Setenv("LANTERN_RATE_LIMIT", "10")
	t.Setenv("LANTERN_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("LANTERN_AUTH_MODE", "jwt")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.GatewayPort)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, "localhost:4318", cfg.OTELEndpoint)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LANTERN_GATEWAY_PORT", "not-a-number")
	t.Setenv("LANTERN_FORWARD_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.GatewayPort)
	assert.Equal(t, 30*time.Second, cfg.ForwardTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad auth mode", func(c *Config) { c.AuthMode = "oauth" }},
		{"bad backend", func(c *Config) { c.VectorBackend = "pinecone" }},
		{"bad provider", func(c *Config) { c.EmbeddingProvider = "openai" }},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }},
		{"sub-second window", func(c *Config) { c.RateLimitWindow = 500 * time.Millisecond }},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }},
		{"negative retries", func(c *Config) { c.RetryMax = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
