// Package events implements the memory lifecycle event bus: a bounded,
// best-effort fan-out of MemoryLifecycleEvent to in-process subscribers
// (the websocket hub, webhook delivery manager, and any future
// collaborator).
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a memory lifecycle event variant for filtering (webhook
// registrations, websocket clients).
type EventType string

const (
	EventMemoryCreated  EventType = "memory.created"
	EventMemoryUpdated  EventType = "memory.updated"
	EventMemoryDeleted  EventType = "memory.deleted"
	EventMemoryAccessed EventType = "memory.accessed"
)

// UpdateType narrows what changed in a memory.updated event.
type UpdateType string

const (
	UpdateContent     UpdateType = "content"
	UpdateMetadata    UpdateType = "metadata"
	UpdateFsrsState   UpdateType = "fsrs_state"
	UpdateSuperseded  UpdateType = "superseded"
	UpdateMerged      UpdateType = "merged"
)

// AccessType narrows how a memory.accessed event's memory was reached.
type AccessType string

const (
	AccessDirectGet           AccessType = "direct_get"
	AccessSearch              AccessType = "search"
	AccessSpreadingActivation AccessType = "spreading_activation"
	AccessUsedInResponse      AccessType = "used_in_response"
	AccessReviewed            AccessType = "reviewed"
)

// Event is a single memory lifecycle event. It is intentionally one flat
// struct covering all four variants (rather than a Go sum-type
// simulation) -- fields irrelevant to a given Type are left zero, the same
// flattening already used for pkg/types.FiredIntention.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	MemoryID  string    `json:"memory_id"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Created
	Content  string                 `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Updated
	OldContent string     `json:"old_content,omitempty"`
	NewContent string     `json:"new_content,omitempty"`
	UpdateType UpdateType `json:"update_type,omitempty"`
	Version    int        `json:"version,omitempty"`

	// Deleted
	SoftDelete bool   `json:"soft_delete,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// Accessed
	AccessType     AccessType `json:"access_type,omitempty"`
	Query          string     `json:"query,omitempty"`
	RelevanceScore float32    `json:"relevance_score,omitempty"`
}

// NewCreatedEvent builds a memory.created Event.
func NewCreatedEvent(memoryID, content string, metadata map[string]interface{}) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      EventMemoryCreated,
		MemoryID:  memoryID,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

// NewUpdatedEvent builds a memory.updated Event.
func NewUpdatedEvent(memoryID, oldContent, newContent string, updateType UpdateType, version int) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       EventMemoryUpdated,
		MemoryID:   memoryID,
		OldContent: oldContent,
		NewContent: newContent,
		UpdateType: updateType,
		Version:    version,
		Timestamp:  time.Now(),
	}
}

// NewDeletedEvent builds a memory.deleted Event.
func NewDeletedEvent(memoryID string, softDelete bool, reason string) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       EventMemoryDeleted,
		MemoryID:   memoryID,
		SoftDelete: softDelete,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}

// NewAccessedEvent builds a memory.accessed Event.
func NewAccessedEvent(memoryID string, accessType AccessType) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       EventMemoryAccessed,
		MemoryID:   memoryID,
		AccessType: accessType,
		Timestamp:  time.Now(),
	}
}

// WithUser sets UserID and returns the Event for chaining.
func (e Event) WithUser(userID string) Event {
	e.UserID = userID
	return e
}

// WithSearchContext sets the query/score fields of an accessed Event.
func (e Event) WithSearchContext(query string, score float32) Event {
	e.Query = query
	e.RelevanceScore = score
	return e
}
