package types

import "time"

// HistoryEvent classifies a History Record.
type HistoryEvent string

const (
	HistoryEventAdd    HistoryEvent = "ADD"
	HistoryEventUpdate HistoryEvent = "UPDATE"
	HistoryEventDelete HistoryEvent = "DELETE"
)

// History is an append-only audit record of a mutation to a memory.
type History struct {
	ID         int64        `json:"id"`
	MemoryID   string       `json:"memory_id"`
	OldContent *string      `json:"old_content,omitempty"`
	NewContent *string      `json:"new_content,omitempty"`
	Event      HistoryEvent `json:"event"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Actor      string       `json:"actor,omitempty"`
	Role       string       `json:"role,omitempty"`
}

// VersionEventType classifies the kind of change a MemoryVersion snapshot
// records.
type VersionEventType string

const (
	VersionEventContent    VersionEventType = "content"
	VersionEventMetadata   VersionEventType = "metadata"
	VersionEventFsrsState  VersionEventType = "fsrs_state"
	VersionEventSuperseded VersionEventType = "superseded"
	VersionEventMerged     VersionEventType = "merged"
)

// MemoryVersion is a point-in-time snapshot of a memory. VersionNumber is
// strictly increasing and contiguous per MemoryID, starting at 1.
type MemoryVersion struct {
	VersionID      string           `json:"version_id"`
	MemoryID       string           `json:"memory_id"`
	VersionNumber  int              `json:"version_number"`
	Content        string           `json:"content"`
	MetadataJSON   string           `json:"metadata_json,omitempty"`
	FsrsJSON       string           `json:"fsrs_json,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	EventType      VersionEventType `json:"event_type"`
	Description    string           `json:"description,omitempty"`
	ChangedBy      string           `json:"changed_by,omitempty"`
}
