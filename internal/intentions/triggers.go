package intentions

import (
	"fmt"
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// TriggerReasonKind discriminates why an intention fired.
type TriggerReasonKind string

const (
	ReasonKeyword       TriggerReasonKind = "keyword"
	ReasonTopic         TriggerReasonKind = "topic"
	ReasonTimeElapsed   TriggerReasonKind = "time_elapsed"
	ReasonScheduledTime TriggerReasonKind = "scheduled_time"
)

// TriggerReason records why an intention fired, with exactly the fields
// relevant to Kind populated. It collapses to a human-readable string for
// types.FiredIntention.Reason.
type TriggerReason struct {
	Kind TriggerReasonKind

	// Keyword
	MatchedKeyword string
	Context        string

	// Topic
	Similarity float64
	Topic      string

	// TimeElapsed
	ElapsedSecs int64

	// ScheduledTime
	ScheduledAt time.Time
}

func (r TriggerReason) String() string {
	switch r.Kind {
	case ReasonKeyword:
		return fmt.Sprintf("keyword %q matched in %q", r.MatchedKeyword, r.Context)
	case ReasonTopic:
		return fmt.Sprintf("topic %q matched at similarity %.3f", r.Topic, r.Similarity)
	case ReasonTimeElapsed:
		return fmt.Sprintf("%d seconds elapsed", r.ElapsedSecs)
	case ReasonScheduledTime:
		return fmt.Sprintf("scheduled time %s reached", r.ScheduledAt.UTC().Format(time.RFC3339))
	default:
		return string(r.Kind)
	}
}

// ActionOutcome is the result of executing an intention's action.
type ActionOutcome string

const (
	ActionSuccess ActionOutcome = "success"
	ActionFailed  ActionOutcome = "failed"
	ActionSkipped ActionOutcome = "skipped"
)

// ActionResult records the outcome of executing an IntentionAction.
type ActionResult struct {
	Outcome ActionOutcome
	Details string
}

func (a ActionResult) IsSuccess() bool { return a.Outcome == ActionSuccess }
func (a ActionResult) IsFailed() bool  { return a.Outcome == ActionFailed }
func (a ActionResult) IsSkipped() bool { return a.Outcome == ActionSkipped }

func (a ActionResult) String() string {
	if a.Details == "" {
		return string(a.Outcome)
	}
	return fmt.Sprintf("%s: %s", a.Outcome, a.Details)
}

// SuccessResult is a convenience ActionResult with no details.
func SuccessResult() ActionResult { return ActionResult{Outcome: ActionSuccess} }

// FailedResult builds a Failed ActionResult carrying an error message.
func FailedResult(err string) ActionResult { return ActionResult{Outcome: ActionFailed, Details: err} }

// SkippedResult builds a Skipped ActionResult carrying the skip reason.
func SkippedResult(reason string) ActionResult {
	return ActionResult{Outcome: ActionSkipped, Details: reason}
}

// Fire builds the event-bus record for an intention that fired.
func Fire(intentionID string, reason TriggerReason, result ActionResult) types.FiredIntention {
	return types.FiredIntention{
		IntentionID:  intentionID,
		FiredAt:      time.Now(),
		Reason:       reason.String(),
		ActionResult: result.String(),
	}
}
