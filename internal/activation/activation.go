// Package activation implements the ACT-R-style Activation Engine:
// base-level activation from access history, and spreading activation over
// the knowledge graph.
package activation

import (
	"math"
	"time"
)

// Default tuning constants for base-level and spreading activation.
const (
	DefaultMinTimeSeconds = 0.05
	DefaultActivation     = -5.0
	DefaultDecayLongTerm  = 0.3
	DefaultDecayWorking   = 0.7
	DefaultDecay          = 0.5
)

// Access is a single weighted access event feeding base-level activation.
type Access struct {
	At     time.Time
	Weight float64
}

// BaseLevelActivation computes B = ln(Σ wⱼ·tⱼ^(−d)) + β over accesses as of
// now, where tⱼ is seconds since the j-th access, clamped below by
// minTimeSeconds to avoid singularities. An empty history returns
// DefaultActivation.
func BaseLevelActivation(accesses []Access, now time.Time, decay float64, beta float64, minTimeSeconds float64) float64 {
	if len(accesses) == 0 {
		return DefaultActivation
	}
	if minTimeSeconds <= 0 {
		minTimeSeconds = DefaultMinTimeSeconds
	}

	sum := 0.0
	for _, a := range accesses {
		elapsed := now.Sub(a.At).Seconds()
		if elapsed < minTimeSeconds {
			elapsed = minTimeSeconds
		}
		sum += a.Weight * math.Pow(elapsed, -decay)
	}
	if sum <= 0 {
		return DefaultActivation
	}
	return math.Log(sum) + beta
}

// TimeUntilThreshold approximates, for a single-access history with weight 1
// and beta 0, the additional number of seconds until activation decays to
// tau (closed-form inversion of the single-term base-level-activation
// equation). Returns false if already below tau, or if the predicted time
// exceeds one year.
func TimeUntilThreshold(currentActivation, tau, decay float64) (time.Duration, bool) {
	if currentActivation <= tau {
		return 0, false
	}
	// B(t) = -d*ln(t), so t = exp(-B/d): the access is t0 = exp(-current/d)
	// seconds old now and activation reaches tau at t1 = exp(-tau/d).
	t0 := math.Exp(-currentActivation / decay)
	t1 := math.Exp(-tau / decay)
	const oneYearSeconds = 365.0 * 24 * 3600
	seconds := t1 - t0
	if seconds > oneYearSeconds {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
