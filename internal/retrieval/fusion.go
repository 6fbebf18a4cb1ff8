package retrieval

import "sort"

// FusionInputs carries the per-signal scores (each normalized to 0-1)
// that linear fusion combines into one relevance score.
type FusionInputs struct {
	Vector             float64
	FsrsRetrievability float64
	Activation         float64
	Bm25Normalized     float64
}

// RrfFusion is Reciprocal Rank Fusion: robust, parameter-light combination
// of multiple ranked lists. score(d) = Σ 1/(k + rank_i(d) + 1) over every
// list i that contains d (rank is 0-indexed).
type RrfFusion struct {
	K float64
}

// DefaultRrfFusion uses k=60, the standard literature value (Cormack,
// Clarke & Buettcher 2009).
func DefaultRrfFusion() RrfFusion { return RrfFusion{K: 60} }

// Ranked is a (id, score) pair within a single ranked list, or the fused
// (id, score) output of a fusion pass.
type Ranked struct {
	ID    string
	Score float64
}

// Fuse combines multiple pre-sorted ranked lists into one ranking, sorted
// by fused score descending.
func (f RrfFusion) Fuse(rankedLists [][]Ranked) []Ranked {
	scores := make(map[string]float64)
	order := make([]string, 0)
	seen := make(map[string]bool)

	for _, list := range rankedLists {
		for rank, r := range list {
			contribution := 1.0 / (f.K + float64(rank) + 1.0)
			if !seen[r.ID] {
				seen[r.ID] = true
				order = append(order, r.ID)
			}
			scores[r.ID] += contribution
		}
	}

	results := make([]Ranked, 0, len(order))
	for _, id := range order {
		results = append(results, Ranked{ID: id, Score: scores[id]})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// LinearFusion combines normalized per-signal scores with a fixed weight
// vector. More accurate than RRF when weights are tuned for the domain,
// but requires every input already normalized to 0-1.
type LinearFusion struct {
	VectorWeight     float64
	FsrsWeight       float64
	ActivationWeight float64
	Bm25Weight       float64
}

// DefaultLinearFusion is the balanced Standard-mode weighting.
func DefaultLinearFusion() LinearFusion {
	return LinearFusion{VectorWeight: 0.4, FsrsWeight: 0.2, ActivationWeight: 0.2, Bm25Weight: 0.2}
}

// CognitiveLinearFusion emphasizes FSRS retrievability for human-like
// memory retrieval and excludes BM25 entirely.
func CognitiveLinearFusion() LinearFusion {
	return LinearFusion{VectorWeight: 0.4, FsrsWeight: 0.4, ActivationWeight: 0.2, Bm25Weight: 0.0}
}

// PreciseLinearFusion balances all four signals for maximum accuracy.
func PreciseLinearFusion() LinearFusion {
	return LinearFusion{VectorWeight: 0.35, FsrsWeight: 0.2, ActivationWeight: 0.2, Bm25Weight: 0.25}
}

// Fuse computes the weighted sum of inputs, clamped to [0, 1].
func (f LinearFusion) Fuse(inputs FusionInputs) float64 {
	score := inputs.Vector*f.VectorWeight +
		inputs.FsrsRetrievability*f.FsrsWeight +
		inputs.Activation*f.ActivationWeight +
		inputs.Bm25Normalized*f.Bm25Weight

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// WeightedResult pairs an id with the FusionInputs to combine for it.
type WeightedResult struct {
	ID     string
	Inputs FusionInputs
}

// FuseBatch fuses a batch of per-id inputs, returning results sorted by
// fused score descending.
func (f LinearFusion) FuseBatch(results []WeightedResult) []Ranked {
	fused := make([]Ranked, 0, len(results))
	for _, r := range results {
		fused = append(fused, Ranked{ID: r.ID, Score: f.Fuse(r.Inputs)})
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

// Validate reports whether the weights are non-negative and sum to
// approximately 1.0.
func (f LinearFusion) Validate() error {
	sum := f.VectorWeight + f.FsrsWeight + f.ActivationWeight + f.Bm25Weight
	if sum-1.0 > 0.01 || 1.0-sum > 0.01 {
		return errFusionWeightsSum
	}
	if f.VectorWeight < 0 || f.FsrsWeight < 0 || f.ActivationWeight < 0 || f.Bm25Weight < 0 {
		return errFusionWeightsNegative
	}
	return nil
}
