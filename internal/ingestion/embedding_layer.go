package ingestion

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rookmemory/rook/internal/llm"
)

// EmbeddingLayer is the cascade's first and fastest stage (~1ms): it embeds
// the new content, scores it against every existing memory by cosine
// similarity, and short-circuits the cascade when the result is
// unambiguous (a clear duplicate or clearly novel).
type EmbeddingLayer struct {
	thresholds Thresholds
}

// NewEmbeddingLayer constructs a layer with the given thresholds.
func NewEmbeddingLayer(thresholds Thresholds) *EmbeddingLayer {
	return &EmbeddingLayer{thresholds: thresholds}
}

// existingMemory is the minimal view the embedding layer needs of a
// previously stored memory: its id, text, and embedding vector.
type existingMemory struct {
	ID        string
	Content   string
	Embedding []float32
}

// ExistingMemory constructs the minimal view consumed by Check.
func ExistingMemory(id, content string, embedding []float32) existingMemory {
	return existingMemory{ID: id, Content: content, Embedding: embedding}
}

// embeddingResult is the layer's internal findings, passed forward into
// later layers so they never need to re-embed or re-score.
type embeddingResult struct {
	maxSimilarity float64
	candidates    []Candidate
	decision      *Decision
	reason        string
}

// Check embeds newContent and scores it against existing, returning a
// decision when the evidence is unambiguous and otherwise a set of
// related candidates for the next layer.
func (l *EmbeddingLayer) Check(ctx context.Context, newContent string, existing []existingMemory, embedder llm.EmbeddingGenerator) (embeddingResult, error) {
	newEmbedding, err := embedder.Embed(ctx, newContent)
	if err != nil {
		return embeddingResult{}, fmt.Errorf("ingestion: embed new content: %w", err)
	}

	var candidates []Candidate
	maxSimilarity := 0.0

	for _, mem := range existing {
		similarity := cosineSimilarity(newEmbedding, mem.Embedding)
		if similarity > maxSimilarity {
			maxSimilarity = similarity
		}
		if similarity >= l.thresholds.RelatedThreshold {
			candidates = append(candidates, Candidate{
				MemoryID:   mem.ID,
				Content:    mem.Content,
				Embedding:  mem.Embedding,
				Similarity: similarity,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	result := embeddingResult{maxSimilarity: maxSimilarity, candidates: candidates}

	switch {
	case maxSimilarity >= l.thresholds.DuplicateThreshold:
		d := DecisionSkip
		result.decision = &d
		result.reason = fmt.Sprintf("duplicate detected (similarity: %.3f)", maxSimilarity)
	case maxSimilarity < l.thresholds.NovelThreshold:
		d := DecisionCreate
		result.decision = &d
		result.reason = fmt.Sprintf("novel content (max similarity: %.3f)", maxSimilarity)
	}

	return result, nil
}

// Surprise converts a similarity score into a prediction-error value:
// near-duplicates are unsurprising, near-orthogonal content is maximally
// surprising.
func (l *EmbeddingLayer) Surprise(maxSimilarity float64) float64 {
	if maxSimilarity < 0 {
		maxSimilarity = 0
	}
	if maxSimilarity > 1 {
		maxSimilarity = 1
	}
	return 1 - maxSimilarity
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
