package ingestion

import (
	"context"
	"time"

	"github.com/rookmemory/rook/internal/llm"
)

// Gate orchestrates the four-layer prediction-error cascade, executing
// layers in order of speed and short-circuiting as soon as one reaches a
// confident decision.
type Gate struct {
	embedding  *EmbeddingLayer
	keyword    *KeywordLayer
	temporal   *TemporalLayer
	semantic   *SemanticLayer
	thresholds Thresholds
}

// New constructs a Gate with default thresholds. generator may be nil, in
// which case the semantic layer is skipped and the cascade falls back to
// its default Update/Create rule when the faster layers are inconclusive.
func New(generator llm.TextGenerator) *Gate {
	return WithThresholds(DefaultThresholds(), generator)
}

// WithThresholds constructs a Gate with custom thresholds.
func WithThresholds(thresholds Thresholds, generator llm.TextGenerator) *Gate {
	g := &Gate{
		embedding:  NewEmbeddingLayer(thresholds),
		keyword:    NewKeywordLayer(),
		temporal:   NewTemporalLayer(),
		thresholds: thresholds,
	}
	if generator != nil {
		g.semantic = NewSemanticLayer(generator)
	}
	return g
}

// Thresholds returns the gate's current thresholds.
func (g *Gate) Thresholds() Thresholds { return g.thresholds }

// HasSemanticLayer reports whether the gate has an LLM fallback configured.
func (g *Gate) HasSemanticLayer() bool { return g.semantic != nil }

// Evaluate runs newContent through the cascade against existing and
// returns the resulting decision.
func (g *Gate) Evaluate(ctx context.Context, newContent string, existing []existingMemory, embedder llm.EmbeddingGenerator) (GateResult, error) {
	totalStart := time.Now()
	var timings LayerTimings

	layer1Start := time.Now()
	embeddingRes, err := g.embedding.Check(ctx, newContent, existing, embedder)
	if err != nil {
		return GateResult{}, err
	}
	d := time.Since(layer1Start)
	timings.Embedding = &d

	if embeddingRes.decision != nil {
		timings.Total = time.Since(totalStart)
		var relatedID string
		if len(embeddingRes.candidates) > 0 {
			relatedID = embeddingRes.candidates[0].MemoryID
		}
		return GateResult{
			Decision:        *embeddingRes.decision,
			Layer:           LayerEmbeddingSimilarity,
			RelatedMemoryID: relatedID,
			Surprise:        g.embedding.Surprise(embeddingRes.maxSimilarity),
			Reason:          embeddingRes.reason,
			Timings:         timings,
		}, nil
	}

	layer2Start := time.Now()
	keywordRes := g.keyword.Check(newContent, embeddingRes.candidates)
	d2 := time.Since(layer2Start)
	timings.Keyword = &d2

	if keywordRes.decision != nil {
		timings.Total = time.Since(totalStart)
		return GateResult{
			Decision:        *keywordRes.decision,
			Layer:           LayerKeywordPattern,
			RelatedMemoryID: keywordRes.contradictedID,
			Surprise:        0.8,
			Reason:          keywordRes.contradictionReason,
			Timings:         timings,
		}, nil
	}

	layer3Start := time.Now()
	temporalRes := g.temporal.Check(newContent, embeddingRes.candidates)
	d3 := time.Since(layer3Start)
	timings.Temporal = &d3

	if temporalRes.decision != nil {
		timings.Total = time.Since(totalStart)
		return GateResult{
			Decision:        *temporalRes.decision,
			Layer:           LayerTemporalConflict,
			RelatedMemoryID: temporalRes.conflictingID,
			Surprise:        0.7,
			Reason:          temporalRes.conflictReason,
			Timings:         timings,
		}, nil
	}

	if g.semantic != nil {
		layer4Start := time.Now()
		semanticRes, err := g.semantic.Evaluate(ctx, newContent, embeddingRes.candidates)
		if err != nil {
			return GateResult{}, err
		}
		d4 := time.Since(layer4Start)
		timings.Semantic = &d4
		timings.Total = time.Since(totalStart)

		var surprise float64
		switch semanticRes.decision {
		case DecisionSkip:
			surprise = 0.0
		case DecisionCreate:
			surprise = g.embedding.Surprise(embeddingRes.maxSimilarity)
		case DecisionUpdate:
			surprise = 0.4
		case DecisionSupersede:
			surprise = 0.8
		}

		return GateResult{
			Decision:        semanticRes.decision,
			Layer:           LayerSemanticLLM,
			RelatedMemoryID: semanticRes.relatedID,
			Surprise:        surprise,
			Reason:          semanticRes.reasoning,
			Timings:         timings,
		}, nil
	}

	timings.Total = time.Since(totalStart)

	decision := DecisionCreate
	var relatedID string
	if len(embeddingRes.candidates) > 0 && embeddingRes.maxSimilarity >= g.thresholds.RelatedThreshold {
		decision = DecisionUpdate
		relatedID = embeddingRes.candidates[0].MemoryID
	}

	return GateResult{
		Decision:        decision,
		Layer:           LayerDefault,
		RelatedMemoryID: relatedID,
		Surprise:        g.embedding.Surprise(embeddingRes.maxSimilarity),
		Reason:          "no layer made a definitive decision",
		Timings:         timings,
	}, nil
}

// EvaluateMemories is a convenience wrapper for callers outside this
// package, which cannot spell the unexported existingMemory type: it
// zips parallel id/content/embedding slices into candidates and runs
// Evaluate directly.
func (g *Gate) EvaluateMemories(ctx context.Context, newContent string, ids, contents []string, embeddings [][]float32, embedder llm.EmbeddingGenerator) (GateResult, error) {
	existing := make([]existingMemory, len(ids))
	for i := range ids {
		existing[i] = existingMemory{ID: ids[i], Content: contents[i], Embedding: embeddings[i]}
	}
	return g.Evaluate(ctx, newContent, existing, embedder)
}
