package strength

import "github.com/rookmemory/rook/pkg/types"

// SignalKind discriminates the seven strength-signal variants a host can
// report (ingestion/strength_signals.rs StrengthSignal).
type SignalKind string

const (
	SignalUsedInResponse  SignalKind = "used_in_response"
	SignalUserCorrection  SignalKind = "user_correction"
	SignalUserConfirmation SignalKind = "user_confirmation"
	SignalContradiction   SignalKind = "contradiction"
	SignalRetrievedNotUsed SignalKind = "retrieved_not_used"
	SignalMarkedIncorrect SignalKind = "marked_incorrect"
	SignalMarkedImportant SignalKind = "marked_important"
)

// Signal is a strength-signal event reported by the host. Only the fields
// relevant to Kind are populated.
type Signal struct {
	Kind SignalKind

	// UsedInResponse, UserConfirmation, UserCorrection, MarkedIncorrect,
	// MarkedImportant, RetrievedNotUsed: the single memory the signal
	// concerns.
	MemoryID string

	// Contradiction: winner and loser memory ids.
	WinnerID string
	LoserID  string
}

// GradeUpdate is a single (memory_id, Grade) pair to apply as a review.
type GradeUpdate struct {
	MemoryID string
	Grade    types.Grade
}

// ToGradeUpdates maps a signal to the grade updates it produces, mirroring
// ingestion/strength_signals.rs's to_grade_updates table.
// RetrievedNotUsed produces no update. MarkedImportant produces no grade
// update either -- it only toggles is_key, surfaced via KeyMarks.
func (s Signal) ToGradeUpdates() []GradeUpdate {
	switch s.Kind {
	case SignalUsedInResponse:
		return []GradeUpdate{{MemoryID: s.MemoryID, Grade: types.GradeGood}}
	case SignalUserConfirmation:
		return []GradeUpdate{{MemoryID: s.MemoryID, Grade: types.GradeEasy}}
	case SignalUserCorrection:
		return []GradeUpdate{{MemoryID: s.MemoryID, Grade: types.GradeAgain}}
	case SignalMarkedIncorrect:
		return []GradeUpdate{{MemoryID: s.MemoryID, Grade: types.GradeAgain}}
	case SignalContradiction:
		return []GradeUpdate{
			{MemoryID: s.WinnerID, Grade: types.GradeGood},
			{MemoryID: s.LoserID, Grade: types.GradeHard},
		}
	default:
		return nil
	}
}

// Processor consolidates pending grade updates across a flush window,
// keyed by memory id, and tracks pending is_key toggles separately
// (ingestion/strength_signals.rs StrengthSignalProcessor).
type Processor struct {
	pendingUpdates map[string][]types.Grade
	pendingKeyMarks []string
}

// NewProcessor returns an empty Processor.
func NewProcessor() *Processor {
	return &Processor{pendingUpdates: make(map[string][]types.Grade)}
}

// Process records s's effects: grade updates are appended per-memory;
// MarkedImportant is recorded as a pending key-mark instead.
func (p *Processor) Process(s Signal) {
	if s.Kind == SignalMarkedImportant {
		p.pendingKeyMarks = append(p.pendingKeyMarks, s.MemoryID)
		return
	}
	for _, update := range s.ToGradeUpdates() {
		p.pendingUpdates[update.MemoryID] = append(p.pendingUpdates[update.MemoryID], update.Grade)
	}
}

// PendingUpdates drains the consolidated (memory_id, Grade) pairs, keeping
// only the most-recently-appended grade per memory (last-write-wins).
func (p *Processor) PendingUpdates() []GradeUpdate {
	updates := make([]GradeUpdate, 0, len(p.pendingUpdates))
	for memoryID, grades := range p.pendingUpdates {
		if len(grades) == 0 {
			continue
		}
		updates = append(updates, GradeUpdate{MemoryID: memoryID, Grade: grades[len(grades)-1]})
	}
	return updates
}

// PendingKeyMarks drains the memory ids whose is_key flag should be toggled.
func (p *Processor) PendingKeyMarks() []string {
	return append([]string(nil), p.pendingKeyMarks...)
}

// HasPending reports whether any update or key-mark is queued.
func (p *Processor) HasPending() bool {
	return len(p.pendingUpdates) > 0 || len(p.pendingKeyMarks) > 0
}

// Clear drops all pending state, called after the caller has applied
// PendingUpdates/PendingKeyMarks.
func (p *Processor) Clear() {
	p.pendingUpdates = make(map[string][]types.Grade)
	p.pendingKeyMarks = nil
}
