package types

import "time"

// Memory is the atomic unit of stored information. Its ID is stable
// across content updates; ContentHash is recomputed on
// each content change. (Content, Scope) is intentionally not unique --
// deduplication is a retrieval/ingestion concern, handled by the Ingestion
// Gate, not a schema constraint.
type Memory struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Category string `json:"category,omitempty"`
	IsKey    bool   `json:"is_key"`

	Scope Scope `json:"scope"`

	MemoryType string                 `json:"memory_type,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// Cognitive strength state (internal/strength is the sole writer).
	Fsrs             FsrsState          `json:"fsrs"`
	DualStrength     DualStrengthState  `json:"dual_strength"`
	ConsolidationPhase ConsolidationPhase `json:"consolidation_phase"`
	SynapticTag      *SynapticTag       `json:"synaptic_tag,omitempty"`

	// Embedding fields, owned by the ingestion/retrieval pipelines.
	Embedding          []float32 `json:"embedding,omitempty"`
	EmbeddingModel     string    `json:"embedding_model,omitempty"`
	EmbeddingDimension int       `json:"embedding_dimension,omitempty"`

	// Provenance.
	CreatedBy string `json:"created_by,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Quality signals.
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Soft delete / evolution chain.
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
	SupersedesID         string     `json:"supersedes_id,omitempty"`
	SourceSupersededID   string     `json:"source_superseded_id,omitempty"`
}

// IsActive reports whether the memory is neither hard- nor soft-deleted.
func (m *Memory) IsActive() bool {
	return m.DeletedAt == nil
}
