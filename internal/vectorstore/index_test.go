package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProviderDeterministic(t *testing.T) {
	p := HashProvider{}

	a, err := p.Embed(context.Background(), "What is Docker?")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "What is Docker?")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Case-insensitive: hashing happens over the lowercased text.
	c, err := p.Embed(context.Background(), "WHAT IS DOCKER?")
	require.NoError(t, err)
	assert.Equal(t, a, c)

	require.Len(t, a, 5)
	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestHashProviderDistinctInputs(t *testing.T) {
	p := HashProvider{}

	a, err := p.Embed(context.Background(), "containers")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "orchestration")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.1, 0.2, 0.3}, []float32{0.1, 0.2, 0.3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0, 0}, []float32{0.1, 0.2, 0.3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		content string
		want    float64
	}{
		{"full overlap", "docker containers", "docker ships containers", 1.0},
		{"half overlap", "docker rockets", "docker ships containers", 0.5},
		{"no overlap", "gardening tips", "docker ships containers", 0.0},
		{"case insensitive", "DOCKER", "docker ships containers", 1.0},
		{"empty query", "", "docker ships containers", 0.0},
		{"duplicate query words", "docker docker rockets", "docker ships containers", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, wordOverlap(tt.query, tt.content), 1e-9)
		})
	}
}

func TestHybridScoreBlend(t *testing.T) {
	assert.InDelta(t, 0.7, hybridScore(1.0, 0.0), 1e-9)
	assert.InDelta(t, 0.3, hybridScore(0.0, 1.0), 1e-9)
	assert.InDelta(t, 1.0, hybridScore(1.0, 1.0), 1e-9)
}

func TestMemoryIndexRanking(t *testing.T) {
	idx := NewMemoryIndex(SeedCorpus())

	// A query vector aligned with doc_2's embedding plus literal overlap
	// with its content must rank doc_2 first.
	results, err := idx.Search(context.Background(),
		"machine learning uses algorithms to find patterns in data",
		[]float32{0.2, 0.3, 0.4, 0.5, 0.6}, 5, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Contains(t, results[0].Content, "Machine learning")
	assert.Equal(t, "ml_guide.pdf", results[0].Metadata["source"])

	// Descending order.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestMemoryIndexThreshold(t *testing.T) {
	idx := NewMemoryIndex(SeedCorpus())

	// A threshold above the maximum possible score filters everything.
	results, err := idx.Search(context.Background(), "anything", []float32{0.1, 0.2, 0.3, 0.4, 0.5}, 5, 1.1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndexLimit(t *testing.T) {
	idx := NewMemoryIndex(SeedCorpus())

	// Threshold 0 admits every document; limit truncates.
	results, err := idx.Search(context.Background(), "q", []float32{0.1, 0.2, 0.3, 0.4, 0.5}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryIndexCount(t *testing.T) {
	idx := NewMemoryIndex(SeedCorpus())

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, "memory", idx.Backend())
	assert.NoError(t, idx.Healthy(context.Background()))
}

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
		wantTLS  bool
		wantErr  bool
	}{
		{"rest port remapped to grpc", "http://localhost:6333", "localhost", 6334, false, false},
		{"grpc port kept", "http://localhost:6334", "localhost", 6334, false, false},
		{"https cloud", "https://xyz.cloud.qdrant.io:6334", "xyz.cloud.qdrant.io", 6334, true, false},
		{"no port defaults to grpc", "http://qdrant", "qdrant", 6334, false, false},
		{"garbage", "://", "", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseQdrantURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantTLS, useTLS)
		})
	}
}

func TestSeedCorpusShape(t *testing.T) {
	docs := SeedCorpus()
	require.Len(t, docs, 5)
	for _, doc := range docs {
		assert.NotEmpty(t, doc.ID)
		assert.NotEmpty(t, doc.Content)
		assert.Len(t, doc.Embedding, 5)
		assert.NotEmpty(t, doc.Metadata["source"])
		for _, v := range doc.Embedding {
			assert.False(t, math.IsNaN(float64(v)))
		}
	}
}
