// Package engine provides the Memory Orchestrator which coordinates storage,
// ingestion, retrieval, and cognitive-strength scheduling for the memory
// system.
package engine

import (
	"time"

	"github.com/rookmemory/rook/internal/strength"
	"github.com/rookmemory/rook/pkg/types"
)

// accessBoost is the amount retrieval_strength is nudged back up whenever a
// memory is read, independent of a full FSRS review: a plain access is a
// weak signal, not a graded review.
const accessBoost = 0.05

// DecayManager computes a memory's current recall strength and keeps its
// access bookkeeping current between graded reviews. It wraps
// internal/strength's FSRS-6 scheduler rather than the flat
// Importance/DecayScore formula this package used before that scheduler
// existed.
type DecayManager struct {
	scheduler *strength.Scheduler
}

// NewDecayManager returns a DecayManager using the canonical FSRS-6
// scheduler.
func NewDecayManager() *DecayManager {
	return &DecayManager{scheduler: strength.NewScheduler()}
}

// Retrievability returns mem's current FSRS retrievability at now: the
// probability it would be successfully recalled if tested right now, in
// [0, 1]. A memory that has never been reviewed returns 1 (CurrentRetrievability's
// convention for a zero-value Fsrs state), since there is no forgetting
// curve to apply yet.
func (d *DecayManager) Retrievability(mem *types.Memory, now time.Time) float64 {
	return d.scheduler.CurrentRetrievability(mem.Fsrs, now)
}

// CombinedStrength blends FSRS retrievability with the dual-strength
// retrieval signal into a single [0, 1] recall-strength estimate, for
// callers (ranking, pruning) that want one number rather than the two
// separate signals.
func (d *DecayManager) CombinedStrength(mem *types.Memory, now time.Time) float64 {
	r := d.Retrievability(mem, now)
	return clampUnit(0.5*r + 0.5*mem.DualStrength.RetrievalStrength)
}

// ApplyAccess records a plain read (not a graded review): it bumps the
// access bookkeeping fields and nudges retrieval_strength up slightly,
// without touching the FSRS schedule itself. Only a graded review, via
// internal/strength.Processor, advances stability/difficulty.
func (d *DecayManager) ApplyAccess(mem *types.Memory, now time.Time) {
	mem.AccessCount++
	mem.LastAccessedAt = &now
	mem.DualStrength.RetrievalStrength = clampUnit(mem.DualStrength.RetrievalStrength + accessBoost)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
