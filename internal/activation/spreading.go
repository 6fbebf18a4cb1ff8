package activation

import "math"

// SpreadConfig bundles the tunables Spread needs so callers don't have to
// thread four positional floats and an int through every call site.
type SpreadConfig struct {
	Gamma     float64
	Threshold float64
	Epsilon   float64
	MaxHops   int
}

// DefaultSpreadConfig is a conservative, narrow spread: moderate decay,
// stops quickly once changes become negligible.
func DefaultSpreadConfig() SpreadConfig {
	return SpreadConfig{Gamma: 0.5, Threshold: 0.05, Epsilon: 0.001, MaxHops: 3}
}

// WideSpreadConfig spreads further and with less decay per hop, for
// Cognitive-mode retrieval where broader associative recall is desired.
func WideSpreadConfig() SpreadConfig {
	return SpreadConfig{Gamma: 0.65, Threshold: 0.02, Epsilon: 0.0005, MaxHops: 5}
}

// SpreadWith runs Spread using the tunables in cfg.
func SpreadWith(g GraphSnapshot, seed map[int64]float64, cfg SpreadConfig) map[int64]float64 {
	return Spread(g, seed, cfg.Gamma, cfg.Threshold, cfg.Epsilon, cfg.MaxHops)
}

// Edge is a directed, weighted edge in the graph snapshot used for
// spreading activation (source -> target).
type Edge struct {
	Source int64
	Target int64
	Weight float64
}

// GraphSnapshot is the minimal read-only view spreading activation needs: an
// adjacency list keyed by source node id, and each source's out-degree
// (used by normalise(u)).
type GraphSnapshot struct {
	OutEdges map[int64][]Edge
}

func (g GraphSnapshot) outDegree(node int64) int {
	return len(g.OutEdges[node])
}

// Spread propagates activation from seed over up to maxHops steps, applying
// a floor by threshold after every step and stopping early if the total
// change falls below epsilon. gamma is the spreading decay factor applied to
// each hop. Deterministic given the same snapshot and seed.
func Spread(g GraphSnapshot, seed map[int64]float64, gamma, threshold, epsilon float64, maxHops int) map[int64]float64 {
	activation := make(map[int64]float64, len(seed))
	for node, a := range seed {
		activation[node] = a
	}

	for hop := 0; hop < maxHops; hop++ {
		next := make(map[int64]float64, len(activation))
		for node, a := range activation {
			next[node] = a
		}

		totalChange := 0.0
		for source, edges := range g.OutEdges {
			aSource, ok := activation[source]
			if !ok || aSource == 0 {
				continue
			}
			degree := g.outDegree(source)
			if degree == 0 {
				continue
			}
			normalise := 1.0 / float64(degree)

			for _, e := range edges {
				contribution := gamma * aSource * e.Weight * normalise
				before := next[e.Target]
				next[e.Target] = before + contribution
				totalChange += math.Abs(next[e.Target] - before)
			}
		}

		for node, a := range next {
			if a < threshold {
				a = 0
			}
			next[node] = a
		}

		activation = next
		if totalChange < epsilon {
			break
		}
	}

	result := make(map[int64]float64, len(activation))
	for node, a := range activation {
		if a > 0 {
			result[node] = a
		}
	}
	return result
}
