// Package strength implements the Cognitive Strength Engine: the FSRS-6
// scheduler, dual-strength update, synaptic tag decay, and consolidation
// phase machine.
package strength

import (
	"math"
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// defaultDecay is FSRS6_DEFAULT_DECAY from the canonical FSRS-6 parameter
// set.
const defaultDecay = 0.1542

// initialStabilityByGrade and initialDifficultyByGrade are the exact
// per-grade initial-state tables recovered from cognitive/scheduler.rs
// (indexed Again=0, Hard=1, Good=2, Easy=3).
var (
	initialStabilityByGrade  = [4]float64{0.212, 1.29, 2.31, 8.30}
	initialDifficultyByGrade = [4]float64{8.0, 6.5, 5.0, 3.5}
)

// weights holds the subset of the FSRS-6 weight vector used by the
// post-review stability/difficulty update only (the initial-state tables
// above are used verbatim rather than re-derived from w4/w5). Indices follow
// the public FSRS parameter convention: w6 = difficulty delta per grade, w7 =
// difficulty mean-reversion rate, w8..w10 = success-stability growth,
// w11..w14 = post-lapse stability, w15/w16 = hard/easy stability
// multipliers.
var weights = [17]float64{
	0, 0, 0, 0, // w0..w3 unused: initial stability comes from the table above
	0, 0, // w4, w5 unused: initial difficulty comes from the table above
	0.2407, // w6: difficulty delta per grade
	0.4268, // w7: difficulty mean-reversion weight toward D0(Easy)
	1.3549, 0.0946, // w8, w9: success-stability exponentials
	1.6468, // w10: success-stability retrievability exponent
	1.0012, 1.8467, 0.1133, 0.3127, // w11..w14: post-lapse stability
	0.2191, 2.9898, // w15, w16: hard/easy stability multipliers
}

// Scheduler computes FSRS-6 retrievability, initial state, and post-review
// state transitions (cognitive/scheduler.rs).
type Scheduler struct {
	decay              float64
	initialStability   [4]float64
	initialDifficulty  [4]float64
}

// NewScheduler returns a Scheduler using the canonical FSRS-6 defaults.
func NewScheduler() *Scheduler {
	return &Scheduler{
		decay:             defaultDecay,
		initialStability:  initialStabilityByGrade,
		initialDifficulty: initialDifficultyByGrade,
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// factor is the normalizing constant f such that Retrievability(s, s) == 0.9.
func (s *Scheduler) factor() float64 {
	return math.Pow(0.9, 1.0/-s.decay) - 1
}

// Retrievability returns FSRS-6 retrievability R given stability and elapsed
// days. Illegal inputs (stability <= 0, NaN, negative elapsed) are treated as
// "no recall possible" rather than propagated.
func (s *Scheduler) Retrievability(stabilityDays float64, daysElapsed float64) float64 {
	if math.IsNaN(stabilityDays) || math.IsNaN(daysElapsed) || stabilityDays <= 0 {
		return 0
	}
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	if daysElapsed == 0 {
		return 1
	}
	base := 1 + s.factor()*daysElapsed/stabilityDays
	return math.Pow(base, -s.decay)
}

// CurrentRetrievability returns the retrievability of state at instant now,
// using LastReview (or now, i.e. R=1, if the memory has never been reviewed).
func (s *Scheduler) CurrentRetrievability(state types.FsrsState, now time.Time) float64 {
	if state.LastReview == nil {
		return 1
	}
	elapsed := now.Sub(*state.LastReview).Hours() / 24.0
	if elapsed < 0 {
		elapsed = 0
	}
	return s.Retrievability(state.Stability, elapsed)
}

// InitialState returns the FsrsState assigned to a freshly created memory
// graded g.
func (s *Scheduler) InitialState(grade types.Grade, now time.Time) types.FsrsState {
	idx := grade.Index()
	lapses := 0
	if grade == types.GradeAgain {
		lapses = 1
	}
	ts := now
	return types.FsrsState{
		Stability:  s.initialStability[idx],
		Difficulty: s.initialDifficulty[idx],
		LastReview: &ts,
		Reps:       1,
		Lapses:     lapses,
	}
}

// Review applies grade g to state at instant now, returning the updated
// FsrsState with stability/difficulty advanced per the FSRS-6 algorithm.
func (s *Scheduler) Review(state types.FsrsState, grade types.Grade, now time.Time) types.FsrsState {
	r := s.CurrentRetrievability(state, now)

	next := types.FsrsState{
		Reps:   state.Reps + 1,
		Lapses: state.Lapses,
	}
	ts := now
	next.LastReview = &ts

	d0Easy := s.initialDifficulty[types.GradeEasy.Index()]
	next.Difficulty = s.nextDifficulty(state.Difficulty, grade, d0Easy)

	if grade == types.GradeAgain {
		next.Lapses = state.Lapses + 1
		next.Stability = s.nextStabilityAfterLapse(state.Stability, state.Difficulty, r)
		return next
	}

	next.Stability = s.nextStabilityAfterSuccess(state.Stability, state.Difficulty, r, grade)
	return next
}

func (s *Scheduler) nextDifficulty(d float64, grade types.Grade, d0Easy float64) float64 {
	g := float64(grade)
	delta := -weights[6] * (g - 3)
	preReversion := d + delta*((10-d)/9)
	reverted := weights[7]*d0Easy + (1-weights[7])*preReversion
	return clamp(reverted, 1, 10)
}

func (s *Scheduler) nextStabilityAfterSuccess(stability, difficulty, r float64, grade types.Grade) float64 {
	hardPenalty := 1.0
	if grade == types.GradeHard {
		hardPenalty = weights[15]
	}
	easyBonus := 1.0
	if grade == types.GradeEasy {
		easyBonus = weights[16]
	}
	growth := math.Exp(weights[8]) * (11 - difficulty) * math.Pow(stability, -weights[9]) *
		(math.Exp((1-r)*weights[10]) - 1) * hardPenalty * easyBonus
	return stability * (1 + growth)
}

func (s *Scheduler) nextStabilityAfterLapse(stability, difficulty, r float64) float64 {
	return weights[11] * math.Pow(difficulty, -weights[12]) *
		(math.Pow(stability+1, weights[13]) - 1) * math.Exp((1-r)*weights[14])
}
