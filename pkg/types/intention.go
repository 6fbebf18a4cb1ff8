package types

import "time"

// IntentionTriggerKind discriminates the Trigger variants of an Intention.
type IntentionTriggerKind string

const (
	TriggerKeywordMention IntentionTriggerKind = "keyword_mention"
	TriggerTopicDiscussed IntentionTriggerKind = "topic_discussed"
	TriggerTimeElapsed    IntentionTriggerKind = "time_elapsed"
	TriggerScheduledTime  IntentionTriggerKind = "scheduled_time"
)

// IntentionTrigger is a tagged union over the four trigger kinds. Exactly
// the fields relevant to Kind are populated.
type IntentionTrigger struct {
	Kind IntentionTriggerKind `json:"kind"`

	// KeywordMention
	Keywords   []string `json:"keywords,omitempty"`
	ExactMatch bool     `json:"exact_match,omitempty"`

	// TopicDiscussed
	Topic            string    `json:"topic,omitempty"`
	CachedEmbedding  []float32 `json:"cached_embedding,omitempty"`
	Threshold        float64   `json:"threshold,omitempty"`

	// TimeElapsed
	DurationSecs int64 `json:"duration_secs,omitempty"`
	Recurring    bool  `json:"recurring,omitempty"`

	// ScheduledTime
	At       *time.Time `json:"at,omitempty"`
	Cron     string     `json:"cron,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
}

// IntentionActionKind discriminates the Action variants of an Intention.
type IntentionActionKind string

const (
	ActionSurfaceMemory IntentionActionKind = "surface_memory"
	ActionNotify        IntentionActionKind = "notify"
	ActionCallback      IntentionActionKind = "callback"
	ActionLog           IntentionActionKind = "log"
)

// IntentionAction is a tagged union over the four action kinds.
type IntentionAction struct {
	Kind IntentionActionKind `json:"kind"`

	// SurfaceMemory
	Boost float64 `json:"boost,omitempty"`

	// Notify
	WebhookURL string                 `json:"webhook_url,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`

	// Callback
	CallbackID string   `json:"callback_id,omitempty"`
	Args       []string `json:"args,omitempty"`

	// Log
	Message string `json:"message,omitempty"`
}

// Intention is a registered triggered action.
type Intention struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Scope        Scope             `json:"scope"`
	Trigger      IntentionTrigger  `json:"trigger"`
	Action       IntentionAction   `json:"action"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"created_at"`
	LastFiredAt  *time.Time        `json:"last_fired_at,omitempty"`
	FireCount    int               `json:"fire_count"`
	MaxFires     *int              `json:"max_fires,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
}

// CanFire reports fire-eligibility: active, unexpired, and under max_fires.
func (i *Intention) CanFire(now time.Time) bool {
	if !i.Active {
		return false
	}
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return false
	}
	if i.MaxFires != nil && i.FireCount >= *i.MaxFires {
		return false
	}
	return true
}

// FiredIntention is the event-bus payload emitted when an intention fires.
type FiredIntention struct {
	IntentionID  string    `json:"intention_id"`
	FiredAt      time.Time `json:"fired_at"`
	Reason       string    `json:"reason"`
	ActionResult string    `json:"action_result,omitempty"`
}
