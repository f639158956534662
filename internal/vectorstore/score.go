package vectorstore

import (
	"math"
	"strings"
)

// Blend weights for the hybrid score. Embedding similarity dominates; the
// word-overlap term keeps the tiny mock embeddings from producing absurd
// rankings for queries that literally name a document's subject.
const (
	embeddingWeight = 0.7
	overlapWeight   = 0.3
)

// cosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths compare over the shorter prefix; a zero vector scores 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// wordOverlap returns the fraction of query words that appear in the content.
func wordOverlap(query, content string) float64 {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return 0
	}

	contentWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(content)) {
		contentWords[w] = struct{}{}
	}

	// Overlap counts distinct query words, matching set semantics.
	seen := make(map[string]struct{}, len(queryWords))
	matched := 0
	for _, w := range queryWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := contentWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// hybridScore blends embedding similarity with literal word overlap.
func hybridScore(cosine, overlap float64) float64 {
	return cosine*embeddingWeight + overlap*overlapWeight
}
