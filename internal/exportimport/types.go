// Package exportimport provides JSON Lines and Parquet export/import of
// memory data, adapted from a rook-core export/import crate design.
package exportimport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// ExportStats summarizes an export operation.
type ExportStats struct {
	Total    uint64
	Exported uint64
	Errors   []string
}

// IsSuccess reports whether the export completed without per-record errors.
func (s ExportStats) IsSuccess() bool {
	return len(s.Errors) == 0
}

// ImportStats summarizes an import operation.
type ImportStats struct {
	Total    uint64
	Imported uint64
	Skipped  uint64
	Errors   []string
}

// IsSuccess reports whether the import completed without per-record errors.
func (s ImportStats) IsSuccess() bool {
	return len(s.Errors) == 0
}

// ErrorRate returns the percentage of processed lines that failed to parse
// or import.
func (s ImportStats) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(len(s.Errors)) / float64(s.Total) * 100
}

// MemoryRecord is the stable on-disk representation shared by JSONL and
// Parquet export/import. Optional fields are omitted from JSONL when empty
// and stored as nullable columns in Parquet.
type MemoryRecord struct {
	ID           string                 `json:"id"`
	Memory       string                 `json:"memory"`
	Hash         string                 `json:"hash,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    string                 `json:"created_at,omitempty"`
	UpdatedAt    string                 `json:"updated_at,omitempty"`
	FsrsState    json.RawMessage        `json:"fsrs_state,omitempty"`
	DualStrength json.RawMessage        `json:"dual_strength,omitempty"`
	Category     string                 `json:"category,omitempty"`
	IsKey        bool                   `json:"is_key,omitempty"`
}

// FromMemory converts a stored memory into the stable export representation.
func FromMemory(m *types.Memory) (MemoryRecord, error) {
	rec := MemoryRecord{
		ID:       m.ID,
		Memory:   m.Content,
		Hash:     m.ContentHash,
		Metadata: m.Metadata,
		Category: m.Category,
		IsKey:    m.IsKey,
	}
	if !m.CreatedAt.IsZero() {
		rec.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	if !m.UpdatedAt.IsZero() {
		rec.UpdatedAt = m.UpdatedAt.Format(time.RFC3339)
	}

	fsrsJSON, err := json.Marshal(m.Fsrs)
	if err != nil {
		return MemoryRecord{}, fmt.Errorf("exportimport: marshal fsrs state for %s: %w", m.ID, err)
	}
	rec.FsrsState = fsrsJSON

	dualJSON, err := json.Marshal(m.DualStrength)
	if err != nil {
		return MemoryRecord{}, fmt.Errorf("exportimport: marshal dual strength for %s: %w", m.ID, err)
	}
	rec.DualStrength = dualJSON

	return rec, nil
}

// ToMemory converts an imported record into a new Memory ready for storage.
// Fields the record leaves unset (FsrsState, DualStrength) are left at their
// Go zero values for the caller to initialize.
func (r MemoryRecord) ToMemory() (*types.Memory, error) {
	m := &types.Memory{
		ID:          r.ID,
		Content:     r.Memory,
		ContentHash: r.Hash,
		Metadata:    r.Metadata,
		Category:    r.Category,
		IsKey:       r.IsKey,
	}
	if r.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("exportimport: parse created_at for %s: %w", r.ID, err)
		}
		m.CreatedAt = t
	}
	if r.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339, r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("exportimport: parse updated_at for %s: %w", r.ID, err)
		}
		m.UpdatedAt = t
	}
	if len(r.FsrsState) > 0 {
		if err := json.Unmarshal(r.FsrsState, &m.Fsrs); err != nil {
			return nil, fmt.Errorf("exportimport: parse fsrs_state for %s: %w", r.ID, err)
		}
	}
	if len(r.DualStrength) > 0 {
		if err := json.Unmarshal(r.DualStrength, &m.DualStrength); err != nil {
			return nil, fmt.Errorf("exportimport: parse dual_strength for %s: %w", r.ID, err)
		}
	}
	return m, nil
}
