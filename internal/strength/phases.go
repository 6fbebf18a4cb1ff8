package strength

import (
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// CanAdvance reports whether a memory currently in phase p, aged ageHours,
// with synaptic-tag validity hasValidTag and PRP availability hasPRP, is
// eligible to advance to the next consolidation phase (consolidation/
// phases.rs can_advance). Immediate->Early additionally requires a valid
// synaptic tag and PRP; Early->Late and Late->Consolidated require only the
// age threshold.
func CanAdvance(p types.ConsolidationPhase, ageHours int64, hasValidTag bool, hasPRP bool) bool {
	switch p {
	case types.PhaseImmediate:
		return ageHours >= types.ImmediateHours && hasValidTag && hasPRP
	case types.PhaseEarly:
		return ageHours >= types.EarlyHours
	case types.PhaseLate:
		return ageHours >= types.LateHours
	default:
		return false
	}
}

// ConsolidationResult is the per-memory outcome of one consolidation tick.
// Evict is set when an Immediate-phase memory has missed its Immediate->
// Early deadline with an invalid tag or no PRP -- the caller archives it
// rather than advancing.
type ConsolidationResult struct {
	MemoryID  string
	Before    types.ConsolidationPhase
	After     types.ConsolidationPhase
	Advanced  bool
	Evict     bool
	Evaluated time.Time
}

// ConsolidationReport aggregates a full consolidate() batch run: counts of
// consolidated, unconsolidated, advanced, and skipped memories plus the
// run's duration.
type ConsolidationReport struct {
	Consolidated   int
	Unconsolidated int
	Advanced       int
	Skipped        int
	Evicted        int
	Duration       time.Duration
}

// Tick evaluates a single memory's consolidation state against its age and
// (if present) synaptic tag, advancing at most one phase per call -- the
// caller's scheduler loop re-evaluates on the next tick for multi-phase
// catch-up, the same incremental/idempotent tick style
// internal/engine/decay_manager.go uses (one step per call rather than
// looping internally).
func Tick(memoryID string, phase types.ConsolidationPhase, createdAt time.Time, tag *types.SynapticTag, now time.Time) ConsolidationResult {
	ageHours := int64(now.Sub(createdAt).Hours())

	hasValidTag := false
	hasPRP := false
	if tag != nil {
		hasValidTag = IsValid(*tag, now)
		hasPRP = tag.PrpAvailable
	}

	result := ConsolidationResult{MemoryID: memoryID, Before: phase, After: phase, Evaluated: now}

	if CanAdvance(phase, ageHours, hasValidTag, hasPRP) {
		if next, ok := phase.Next(); ok {
			result.After = next
			result.Advanced = true
			return result
		}
	}

	if phase == types.PhaseImmediate && ageHours >= types.ImmediateHours && (!hasValidTag || !hasPRP) {
		result.Evict = true
	}

	return result
}

// Consolidate runs Tick over every candidate and returns the aggregate
// report, classifying each outcome (consolidated/advanced/skipped/evicted).
func Consolidate(candidates []ConsolidationCandidate, now time.Time) ([]ConsolidationResult, ConsolidationReport) {
	start := now
	results := make([]ConsolidationResult, 0, len(candidates))
	report := ConsolidationReport{}

	for _, c := range candidates {
		result := Tick(c.MemoryID, c.Phase, c.CreatedAt, c.SynapticTag, now)
		results = append(results, result)

		switch {
		case result.Evict:
			report.Evicted++
		case result.Advanced && result.After == types.PhaseConsolidated:
			report.Consolidated++
			report.Advanced++
		case result.Advanced:
			report.Advanced++
		default:
			report.Skipped++
		}
		if result.After != types.PhaseConsolidated {
			report.Unconsolidated++
		}
	}

	report.Duration = time.Since(start)
	return results, report
}
