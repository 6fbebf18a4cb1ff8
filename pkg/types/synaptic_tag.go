package types

import "time"

// SynapticTag marks a memory for potential consolidation. Strength decays
// exponentially from TaggedAt; if PRPs
// ("plasticity-related proteins", a neuroscience metaphor for the resource
// that lets a tagged synapse actually consolidate) become available before
// the tag decays below threshold, the memory is eligible for consolidation.
// The decay/validity/consolidation logic lives in internal/strength; this
// type is the persisted shape only.
type SynapticTag struct {
	MemoryID        string     `json:"memory_id"`
	InitialStrength float64    `json:"initial_strength"`
	TauMinutes      float64    `json:"tau_minutes"`
	TaggedAt        time.Time  `json:"tagged_at"`
	PrpAvailable    bool       `json:"prp_available"`
	PrpAvailableAt  *time.Time `json:"prp_available_at,omitempty"`
}
