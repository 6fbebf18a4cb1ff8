package types

import "time"

// Entity is a named node in the knowledge graph.
// Uniqueness: (Name, Scope) is unique. DBID is the relational-store primary
// key, assigned on first persist and then mirrored into the in-memory graph
// as the arena index key.
type Entity struct {
	DBID       int64                  `json:"db_id"`
	Name       string                 `json:"name"`
	EntityType string                 `json:"entity_type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Scope      Scope                  `json:"scope"`

	IsSystem bool `json:"is_system,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryNode is a specialized Entity forming the category taxonomy DAG.
// It is stored as a regular Entity with
// IsSystem set and EntityType == EntityTypeCategory; ParentName, when set,
// is linked via a SUBCATEGORY_OF edge.
type CategoryNode struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentName  string `json:"parent_name,omitempty"`
	IsSystem    bool   `json:"is_system"`
}

// DefaultCategories is the taxonomy initialised on first use of a graph
// store.
var DefaultCategories = []CategoryNode{
	{Name: "personal_details", IsSystem: true},
	{Name: "family", IsSystem: true},
	{Name: "professional", IsSystem: true},
	{Name: "preferences", IsSystem: true},
	{Name: "goals", IsSystem: true},
	{Name: "health", IsSystem: true},
	{Name: "projects", IsSystem: true},
	{Name: "relationships", IsSystem: true},
	{Name: "milestones", IsSystem: true},
	{Name: "misc", IsSystem: true},
}
