package types

import "time"

// FsrsState holds the per-memory FSRS-6 scheduling state. Stability is in
// days; difficulty is on a 1-10 scale.
type FsrsState struct {
	Stability  float64    `json:"stability"`
	Difficulty float64    `json:"difficulty"`
	LastReview *time.Time `json:"last_review,omitempty"`
	Reps       int        `json:"reps"`
	Lapses     int        `json:"lapses"`
}

// NewFsrsState returns the zero-value FSRS state for a memory that has never
// been reviewed (no LastReview, so current retrievability reads as 1 until
// the first review).
func NewFsrsState() FsrsState {
	return FsrsState{}
}
