package retrieval

import "errors"

var (
	errFusionWeightsSum      = errors.New("retrieval: fusion weights should sum to 1.0")
	errFusionWeightsNegative = errors.New("retrieval: fusion weights must be non-negative")
)
