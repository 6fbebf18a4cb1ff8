package strength

import (
	"math"
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// DefaultTauMinutes and DefaultValidityThreshold are the synaptic-tag decay
// defaults recovered from consolidation/synaptic_tag.rs.
const (
	DefaultTauMinutes        = 60.0
	DefaultValidityThreshold = 0.1
)

// NewSynapticTag returns a tag for memoryID freshly set at taggedAt with
// initialStrength (the grade-derived S0) and the default tau.
func NewSynapticTag(memoryID string, initialStrength float64, taggedAt time.Time) types.SynapticTag {
	return types.SynapticTag{
		MemoryID:        memoryID,
		InitialStrength: initialStrength,
		TauMinutes:      DefaultTauMinutes,
		TaggedAt:        taggedAt,
	}
}

// CurrentStrength returns S(t) = S0 * exp(-Δminutes/tau) evaluated at at.
func CurrentStrength(tag types.SynapticTag, at time.Time) float64 {
	elapsedMinutes := at.Sub(tag.TaggedAt).Minutes()
	if elapsedMinutes < 0 {
		elapsedMinutes = 0
	}
	tau := tag.TauMinutes
	if tau <= 0 {
		tau = DefaultTauMinutes
	}
	return tag.InitialStrength * math.Exp(-elapsedMinutes/tau)
}

// IsValid reports whether the tag's strength at `at` is still >= the default
// validity threshold.
func IsValid(tag types.SynapticTag, at time.Time) bool {
	return IsValidWithThreshold(tag, at, DefaultValidityThreshold)
}

// IsValidWithThreshold is IsValid with an explicit threshold.
func IsValidWithThreshold(tag types.SynapticTag, at time.Time, threshold float64) bool {
	return CurrentStrength(tag, at) >= threshold
}

// CanConsolidate reports whether tag is both valid and has PRP (protein
// synthesis-dependent plasticity signal) available at `at` -- the joint
// condition gating Immediate->Early consolidation advance.
func CanConsolidate(tag types.SynapticTag, at time.Time) bool {
	return IsValid(tag, at) && tag.PrpAvailable
}

// TimeToThreshold inverts the exponential decay to find when the tag's
// strength will cross the default validity threshold. Returns false if the
// tag is already below threshold, or if InitialStrength <= 0.
func TimeToThreshold(tag types.SynapticTag) (time.Duration, bool) {
	return TimeToThresholdWith(tag, DefaultValidityThreshold)
}

// TimeToThresholdWith is TimeToThreshold with an explicit threshold.
func TimeToThresholdWith(tag types.SynapticTag, threshold float64) (time.Duration, bool) {
	if tag.InitialStrength <= 0 || threshold <= 0 || threshold >= tag.InitialStrength {
		return 0, false
	}
	tau := tag.TauMinutes
	if tau <= 0 {
		tau = DefaultTauMinutes
	}
	minutes := -tau * math.Log(threshold/tag.InitialStrength)
	return time.Duration(minutes * float64(time.Minute)), true
}

// Age returns the duration since the tag was set, as of `at`.
func Age(tag types.SynapticTag, at time.Time) time.Duration {
	return at.Sub(tag.TaggedAt)
}
