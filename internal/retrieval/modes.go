// Package retrieval implements multi-signal memory retrieval: four modes
// trading off speed against accuracy by selecting which signals
// (vector similarity, BM25 text, spreading activation, FSRS
// retrievability) are combined and how.
package retrieval

import "github.com/rookmemory/rook/internal/activation"

// Mode selects which signals a retrieval combines and how it fuses them.
type Mode string

const (
	// ModeQuick is vector search only -- fastest retrieval.
	ModeQuick Mode = "quick"
	// ModeStandard is vector + BM25 + activation with RRF fusion (the default).
	ModeStandard Mode = "standard"
	// ModePrecise is all signals with linear fusion, at higher latency.
	ModePrecise Mode = "precise"
	// ModeCognitive is spreading activation + FSRS retrievability weighting.
	ModeCognitive Mode = "cognitive"
)

// UsesVector reports whether mode uses vector search. Every mode does.
func (m Mode) UsesVector() bool { return true }

// UsesBM25 reports whether mode uses BM25 text search.
func (m Mode) UsesBM25() bool { return m == ModeStandard || m == ModePrecise }

// UsesActivation reports whether mode uses spreading activation.
func (m Mode) UsesActivation() bool {
	return m == ModeStandard || m == ModePrecise || m == ModeCognitive
}

// UsesFSRS reports whether mode uses FSRS retrievability.
func (m Mode) UsesFSRS() bool { return m == ModePrecise || m == ModeCognitive }

// UsesRRF reports whether mode fuses via RRF.
func (m Mode) UsesRRF() bool { return m == ModeStandard }

// UsesLinear reports whether mode fuses via linear weighted combination.
func (m Mode) UsesLinear() bool { return m == ModePrecise || m == ModeCognitive }

// Config configures a single retrieval call.
type Config struct {
	Mode              Mode
	Limit             int
	Spreading         activation.SpreadConfig
	RRF               RrfFusion
	Linear            LinearFusion
	Dedup             DeduplicationConfig
	EnableDedup       bool
	OversampleFactor  int
}

// DefaultConfig is Standard mode with a limit of 10.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeStandard,
		Limit:            10,
		Spreading:        activation.DefaultSpreadConfig(),
		RRF:              DefaultRrfFusion(),
		Linear:           DefaultLinearFusion(),
		Dedup:            DefaultDeduplicationConfig(),
		EnableDedup:      true,
		OversampleFactor: 2,
	}
}

// QuickConfig returns a Quick-mode config tuned for speed over recall
// quality: no dedup pass, no oversampling.
func QuickConfig(limit int) Config {
	c := DefaultConfig()
	c.Mode = ModeQuick
	c.Limit = limit
	c.EnableDedup = false
	c.OversampleFactor = 1
	return c
}

// StandardConfig returns the default Standard-mode config with a custom limit.
func StandardConfig(limit int) Config {
	c := DefaultConfig()
	c.Limit = limit
	return c
}

// PreciseConfig returns a Precise-mode config: all signals, linear fusion,
// more oversampling for accuracy.
func PreciseConfig(limit int) Config {
	c := DefaultConfig()
	c.Mode = ModePrecise
	c.Limit = limit
	c.Linear = PreciseLinearFusion()
	c.OversampleFactor = 3
	return c
}

// CognitiveConfig returns a Cognitive-mode config: FSRS-dominant linear
// fusion with a wider activation spread.
func CognitiveConfig(limit int) Config {
	c := DefaultConfig()
	c.Mode = ModeCognitive
	c.Limit = limit
	c.Linear = CognitiveLinearFusion()
	c.Spreading = activation.WideSpreadConfig()
	return c
}

// WithLimit returns a copy of c with Limit set to limit.
func (c Config) WithLimit(limit int) Config {
	c.Limit = limit
	return c
}

// WithDedup returns a copy of c with EnableDedup set to enable.
func (c Config) WithDedup(enable bool) Config {
	c.EnableDedup = enable
	return c
}
