package types

import "time"

// Relationship is a typed, weighted edge between two entities.
// Uniqueness: (SourceID, TargetID, Type).
type Relationship struct {
	SourceID   int64                  `json:"source_entity"`
	TargetID   int64                  `json:"target_entity"`
	Type       string                 `json:"type"`
	Weight     float64                `json:"weight"`
	Properties map[string]interface{} `json:"properties,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryEntityLink associates a memory with an entity it mentions or
// produced.
type MemoryEntityLink struct {
	MemoryID string `json:"memory_id"`
	EntityID int64  `json:"entity_id"`
	Role     string `json:"role,omitempty"`
}

// EntityAccessLog is an append-only record of entity access, feeding the
// Activation Engine's base-level-activation calculation.
type EntityAccessLog struct {
	EntityID        int64     `json:"entity_id"`
	AccessType      string    `json:"access_type"`
	ActivationScore float64   `json:"activation_score"`
	Timestamp       time.Time `json:"timestamp"`
}
