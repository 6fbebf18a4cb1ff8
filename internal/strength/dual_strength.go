package strength

import (
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// dailyDecayRate is λ in the Dual-Strength Update. Chosen so
// retrieval_strength decays to roughly half over 14 days of inactivity
// (λ ≈ ln(2)/14). internal/engine/decay.go uses a 60-day half-life for a
// coarser, single-score decay; retrieval_strength is a finer-grained signal
// so a shorter half-life is used here.
const dailyDecayRate = 0.0495

// alphaByGrade and betaByGrade are the per-grade constants α_g, β_g from the
// Dual-Strength Update. Higher grades push storage_strength further toward 1
// and contribute less forgetting-driven retrieval_strength boost (since a
// higher grade implies successful recall, i.e. low surprise).
var (
	alphaByGrade = [4]float64{0.05, 0.15, 0.30, 0.45}
	betaByGrade  = [4]float64{0.40, 0.25, 0.15, 0.05}
)

// UpdateDualStrength applies the Dual-Strength Update for a review with
// grade g and retrievability r (computed at review time, before the FSRS
// state itself is updated), over elapsed time since the previous review.
func UpdateDualStrength(state types.DualStrengthState, grade types.Grade, retrievability float64, elapsed time.Duration) types.DualStrengthState {
	idx := grade.Index()
	alpha := alphaByGrade[idx]
	beta := betaByGrade[idx]

	days := elapsed.Hours() / 24.0
	if days < 0 {
		days = 0
	}
	decayFactor := 1 - dailyDecayRate*days
	if decayFactor < 0 {
		decayFactor = 0
	}

	next := types.DualStrengthState{
		StorageStrength:   state.StorageStrength + alpha*(1-state.StorageStrength),
		RetrievalStrength: decayFactor*state.RetrievalStrength + beta*(1-retrievability),
	}

	if next.StorageStrength > 1 {
		next.StorageStrength = 1
	}
	if next.StorageStrength < 0 {
		next.StorageStrength = 0
	}
	if next.RetrievalStrength > 1 {
		next.RetrievalStrength = 1
	}
	if next.RetrievalStrength < 0 {
		next.RetrievalStrength = 0
	}
	return next
}
