// Package vectorstore implements the demo's document search service: a
// small seeded corpus, a deterministic mock embedder, and similarity search
// over an in-memory index or a real Qdrant collection.
package vectorstore

import (
	"context"
	"sort"

	"github.com/lanternhq/lantern/internal/model"
)

// Index stores documents and answers similarity queries.
// Implementations must be safe for concurrent use.
type Index interface {
	// Search ranks documents by the hybrid score (embedding similarity
	// blended with word overlap against query), drops anything under
	// threshold, and returns at most limit results, best first.
	Search(ctx context.Context, query string, vector []float32, limit int, threshold float64) ([]model.Document, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Backend names the implementation, reported in /stats.
	Backend() string

	// Healthy returns nil if the index is usable.
	Healthy(ctx context.Context) error

	Close() error
}

// memoryIndex is the default backend: a fixed slice scanned linearly.
// Fine for a five-document corpus; swap in Qdrant for anything real.
type memoryIndex struct {
	docs []SeedDocument
}

// NewMemoryIndex creates an in-memory index over the given documents.
func NewMemoryIndex(docs []SeedDocument) Index {
	return &memoryIndex{docs: docs}
}

func (m *memoryIndex) Search(_ context.Context, query string, vector []float32, limit int, threshold float64) ([]model.Document, error) {
	results := make([]model.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		score := hybridScore(
			cosineSimilarity(vector, doc.Embedding),
			wordOverlap(query, doc.Content),
		)
		if score >= threshold {
			results = append(results, model.Document{
				Content:  doc.Content,
				Score:    score,
				Metadata: doc.Metadata,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *memoryIndex) Count(_ context.Context) (int, error) { return len(m.docs), nil }

func (m *memoryIndex) Backend() string { return "memory" }

func (m *memoryIndex) Healthy(_ context.Context) error { return nil }

func (m *memoryIndex) Close() error { return nil }
