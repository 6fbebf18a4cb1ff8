package types

// ConsolidationPhase is the stage of memory stability, progressing
// Immediate -> Early -> Late ->
// Consolidated as the memory ages. Named hour boundaries below are taken
// from the original rook-core implementation so the transition table is
// reproduced exactly rather than re-derived.
type ConsolidationPhase int

const (
	PhaseImmediate ConsolidationPhase = iota
	PhaseEarly
	PhaseLate
	PhaseConsolidated
)

const (
	ImmediateHours int64 = 6
	EarlyHours     int64 = 24
	LateHours      int64 = 72
)

func (p ConsolidationPhase) String() string {
	switch p {
	case PhaseImmediate:
		return "immediate"
	case PhaseEarly:
		return "early"
	case PhaseLate:
		return "late"
	case PhaseConsolidated:
		return "consolidated"
	default:
		return "unknown"
	}
}

// Next returns the following phase, or false if p is already terminal.
func (p ConsolidationPhase) Next() (ConsolidationPhase, bool) {
	switch p {
	case PhaseImmediate:
		return PhaseEarly, true
	case PhaseEarly:
		return PhaseLate, true
	case PhaseLate:
		return PhaseConsolidated, true
	default:
		return PhaseConsolidated, false
	}
}

// IsVulnerable reports whether memories in this phase are susceptible to
// loss if consolidation fails (Immediate, Early).
func (p ConsolidationPhase) IsVulnerable() bool {
	return p == PhaseImmediate || p == PhaseEarly
}

// MinAgeHours returns the minimum age in hours for this phase.
func (p ConsolidationPhase) MinAgeHours() int64 {
	switch p {
	case PhaseImmediate:
		return 0
	case PhaseEarly:
		return ImmediateHours
	case PhaseLate:
		return EarlyHours
	default:
		return LateHours
	}
}

// MaxAgeHours returns the maximum age in hours for this phase, and false if
// the phase has no upper bound (Consolidated).
func (p ConsolidationPhase) MaxAgeHours() (int64, bool) {
	switch p {
	case PhaseImmediate:
		return ImmediateHours, true
	case PhaseEarly:
		return EarlyHours, true
	case PhaseLate:
		return LateHours, true
	default:
		return 0, false
	}
}

// Description returns a human-readable summary, surfaced by the REST debug
// endpoint (GET /memories/{id}?debug=1).
func (p ConsolidationPhase) Description() string {
	switch p {
	case PhaseImmediate:
		return "Immediate phase (0-6h): highly labile, requires synaptic tag and PRPs for stabilization."
	case PhaseEarly:
		return "Early consolidation (6-24h): cellular consolidation underway, still vulnerable."
	case PhaseLate:
		return "Late consolidation (24-72h): systems consolidation integrating into long-term storage."
	case PhaseConsolidated:
		return "Consolidated (72h+): stable long-term storage, subject to normal forgetting."
	default:
		return "unknown phase"
	}
}

// PhaseFromAgeHours determines the consolidation phase from memory age.
func PhaseFromAgeHours(hours int64) ConsolidationPhase {
	switch {
	case hours < ImmediateHours:
		return PhaseImmediate
	case hours < EarlyHours:
		return PhaseEarly
	case hours < LateHours:
		return PhaseLate
	default:
		return PhaseConsolidated
	}
}
