package retrieval

import (
	"context"
	"sort"
)

// VectorResult is a single hit from vector (embedding cosine) search.
type VectorResult struct {
	ID        string
	Score     float64
	Embedding []float32
}

// VectorSearcher performs nearest-neighbor search over memory embeddings.
// Scores are cosine similarity, already 0-1.
type VectorSearcher interface {
	SearchVector(ctx context.Context, queryEmbedding []float32, limit int) ([]VectorResult, error)
}

// TextSearcher performs BM25-scored full-text search over memory content.
// Scores are raw BM25 (unbounded); the orchestrator normalizes them before
// fusion.
type TextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]Ranked, error)
}

// ActivationScorer returns each candidate's combined base-level +
// spreading activation score (already 0-1, or will be clamped by the
// caller if not).
type ActivationScorer interface {
	ScoreActivation(ctx context.Context, candidateIDs []string) (map[string]float64, error)
}

// RetrievabilityScorer returns each candidate's current FSRS
// retrievability (0-1).
type RetrievabilityScorer interface {
	ScoreRetrievability(ctx context.Context, candidateIDs []string) (map[string]float64, error)
}

// Retriever composes the four signal sources and fuses them according to
// a Config's Mode: Quick, Standard, Precise, and Cognitive retrieval modes.
type Retriever struct {
	vector       VectorSearcher
	text         TextSearcher
	activation   ActivationScorer
	retrievability RetrievabilityScorer
	dedup        *Deduplicator
}

// NewRetriever constructs a Retriever. text, activation, and
// retrievability may be nil; modes that need a signal whose source is nil
// simply omit that signal from fusion instead of erroring.
func NewRetriever(vector VectorSearcher, text TextSearcher, activation ActivationScorer, retrievability RetrievabilityScorer) *Retriever {
	return &Retriever{
		vector:         vector,
		text:           text,
		activation:     activation,
		retrievability: retrievability,
		dedup:          NewDefaultDeduplicator(),
	}
}

// Result is a single fused, ranked retrieval hit.
type Result struct {
	ID    string
	Score float64
}

// Retrieve runs queryText/queryEmbedding through the signals cfg.Mode
// selects, fuses them, optionally deduplicates, and returns the top
// cfg.Limit results.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, queryEmbedding []float32, cfg Config) ([]Result, error) {
	fetchLimit := cfg.Limit * cfg.OversampleFactor
	if fetchLimit < cfg.Limit {
		fetchLimit = cfg.Limit
	}

	vectorHits, err := r.vector.SearchVector(ctx, queryEmbedding, fetchLimit)
	if err != nil {
		return nil, err
	}

	candidateIDs := make([]string, 0, len(vectorHits))
	embeddings := make(map[string][]float32, len(vectorHits))
	vectorRanked := make([]Ranked, 0, len(vectorHits))
	vectorScores := make(map[string]float64, len(vectorHits))
	for _, h := range vectorHits {
		candidateIDs = append(candidateIDs, h.ID)
		embeddings[h.ID] = h.Embedding
		vectorRanked = append(vectorRanked, Ranked{ID: h.ID, Score: h.Score})
		vectorScores[h.ID] = h.Score
	}

	if cfg.Mode == ModeQuick {
		return r.finish(vectorRanked, embeddings, cfg), nil
	}

	var textRanked []Ranked
	var bm25Normalized map[string]float64
	if cfg.Mode.UsesBM25() && r.text != nil {
		textHits, err := r.text.SearchText(ctx, queryText, fetchLimit)
		if err != nil {
			return nil, err
		}
		textRanked = textHits
		bm25Normalized = normalizeScores(textHits)
	}

	var activationScores map[string]float64
	if cfg.Mode.UsesActivation() && r.activation != nil {
		activationScores, err = r.activation.ScoreActivation(ctx, candidateIDs)
		if err != nil {
			return nil, err
		}
	}

	var fsrsScores map[string]float64
	if cfg.Mode.UsesFSRS() && r.retrievability != nil {
		fsrsScores, err = r.retrievability.ScoreRetrievability(ctx, candidateIDs)
		if err != nil {
			return nil, err
		}
	}

	var fused []Ranked
	switch {
	case cfg.Mode.UsesRRF():
		lists := [][]Ranked{vectorRanked}
		if textRanked != nil {
			lists = append(lists, textRanked)
		}
		if activationScores != nil {
			lists = append(lists, rankedFromScores(activationScores))
		}
		fused = cfg.RRF.Fuse(lists)

	case cfg.Mode.UsesLinear():
		weighted := make([]WeightedResult, 0, len(candidateIDs))
		for _, id := range candidateIDs {
			weighted = append(weighted, WeightedResult{
				ID: id,
				Inputs: FusionInputs{
					Vector:             vectorScores[id],
					FsrsRetrievability: fsrsScores[id],
					Activation:         activationScores[id],
					Bm25Normalized:     bm25Normalized[id],
				},
			})
		}
		fused = cfg.Linear.FuseBatch(weighted)

	default:
		fused = vectorRanked
	}

	return r.finish(fused, embeddings, cfg), nil
}

func (r *Retriever) finish(ranked []Ranked, embeddings map[string][]float32, cfg Config) []Result {
	if cfg.EnableDedup {
		items := make([]Deduplicatable, 0, len(ranked))
		for _, rk := range ranked {
			items = append(items, Deduplicatable{ID: rk.ID, Score: rk.Score, Embedding: embeddings[rk.ID]})
		}
		dedup := NewDeduplicator(cfg.Dedup)
		kept := dedup.Deduplicate(items)
		ranked = ranked[:0]
		for _, k := range kept {
			ranked = append(ranked, Ranked{ID: k.ID, Score: k.Score})
		}
	}

	if len(ranked) > cfg.Limit {
		ranked = ranked[:cfg.Limit]
	}

	results := make([]Result, 0, len(ranked))
	for _, rk := range ranked {
		results = append(results, Result{ID: rk.ID, Score: rk.Score})
	}
	return results
}

// normalizeScores min-max normalizes raw scores (e.g. BM25) to [0, 1].
// A single-element or zero-range input normalizes to 1.0 for all entries.
func normalizeScores(ranked []Ranked) map[string]float64 {
	out := make(map[string]float64, len(ranked))
	if len(ranked) == 0 {
		return out
	}

	min, max := ranked[0].Score, ranked[0].Score
	for _, r := range ranked {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	rangeVal := max - min
	for _, r := range ranked {
		if rangeVal <= 0 {
			out[r.ID] = 1.0
			continue
		}
		out[r.ID] = (r.Score - min) / rangeVal
	}
	return out
}

func rankedFromScores(scores map[string]float64) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for id, score := range scores {
		out = append(out, Ranked{ID: id, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
