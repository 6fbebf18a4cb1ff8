// Package ingestion implements the Prediction Error Gate: a cascade of
// detection layers that decides, for each piece of incoming content,
// whether it should be skipped as a duplicate, created as a new memory,
// merged into an existing one, or superseded over a contradicted one.
package ingestion

import "time"

// Decision is the outcome of gating a piece of new content against the
// memories already on file.
type Decision string

const (
	// DecisionSkip means the content is redundant with an existing memory.
	DecisionSkip Decision = "skip"
	// DecisionCreate means the content is novel and should become a new memory.
	DecisionCreate Decision = "create"
	// DecisionUpdate means the content refines an existing memory additively.
	DecisionUpdate Decision = "update"
	// DecisionSupersede means the content contradicts and replaces an existing memory.
	DecisionSupersede Decision = "supersede"
)

// Layer identifies which stage of the cascade produced a Decision.
type Layer string

const (
	LayerEmbeddingSimilarity Layer = "embedding_similarity"
	LayerKeywordPattern      Layer = "keyword_pattern"
	LayerTemporalConflict    Layer = "temporal_conflict"
	LayerSemanticLLM         Layer = "semantic_llm"
	LayerDefault             Layer = "default"
)

// Thresholds tunes the sensitivity of the embedding layer's duplicate and
// novelty classification. The gap between NovelThreshold and
// DuplicateThreshold is the "gray zone" that gets escalated to later
// layers for a closer look.
type Thresholds struct {
	// DuplicateThreshold: similarity at or above this is a clear duplicate.
	DuplicateThreshold float64
	// RelatedThreshold: similarity at or above this makes a memory a candidate.
	RelatedThreshold float64
	// NovelThreshold: similarity below this is clearly novel content.
	NovelThreshold float64
}

// DefaultThresholds matches the cascade's production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DuplicateThreshold: 0.95,
		RelatedThreshold:   0.70,
		NovelThreshold:     0.50,
	}
}

// LayerTimings records how long each stage of the cascade took, for
// performance monitoring.
type LayerTimings struct {
	Embedding *time.Duration
	Keyword   *time.Duration
	Temporal  *time.Duration
	Semantic  *time.Duration
	Total     time.Duration
}

// Candidate is an existing memory surfaced by the embedding layer as
// similar enough to the new content to warrant a closer look by later
// layers.
type Candidate struct {
	MemoryID   string
	Content    string
	Embedding  []float32
	Similarity float64
}

// GateResult is the final output of running content through the cascade.
type GateResult struct {
	Decision        Decision
	Layer           Layer
	RelatedMemoryID string
	Surprise        float64
	Reason          string
	Timings         LayerTimings
}
