// Package extract defines the multimodal ingestion stub contract and the
// chunking/provenance orchestrator that sits in front of it. Only
// plain-text content is
// extracted concretely; every other modality is an external collaborator
// this module does not implement (see Extractor).
package extract

import "time"

// Modality identifies the original shape of ingested content.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityPDF   Modality = "pdf"
	ModalityDOCX  Modality = "docx"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// ExtractedContent is what an Extractor produces from a raw blob.
type ExtractedContent struct {
	Text     string
	Modality Modality
	// Pages holds per-page text for paginated documents (PDF/DOCX). Empty
	// when the source has no natural page structure.
	Pages []string
	// Method names the extraction technique used (e.g. "plain-text",
	// "vision_llm", "combined"), surfaced in provenance metadata.
	Method string
}

// Provenance tracks where a chunk of ingested content originated, carried
// forward onto every Memory created from it.
type Provenance struct {
	Modality         Modality
	Filename         string
	OriginalSize     int
	MIMEType         string
	ExtractionMethod string
	PageNumber       int
	Section          string
	ExtractedAt      time.Time
}

// ToMetadata flattens Provenance into the generic metadata map a Memory
// carries. Zero-value fields are omitted, matching the Rust
// SourceProvenance::to_metadata skip-if-none convention.
func (p Provenance) ToMetadata() map[string]interface{} {
	metadata := map[string]interface{}{
		"source_modality": string(p.Modality),
		"extracted_at":     p.ExtractedAt.Format(time.RFC3339),
	}
	if p.Filename != "" {
		metadata["source_filename"] = p.Filename
	}
	if p.OriginalSize > 0 {
		metadata["source_size"] = p.OriginalSize
	}
	if p.MIMEType != "" {
		metadata["source_mime_type"] = p.MIMEType
	}
	if p.ExtractionMethod != "" {
		metadata["extraction_method"] = p.ExtractionMethod
	}
	if p.PageNumber > 0 {
		metadata["source_page"] = p.PageNumber
	}
	if p.Section != "" {
		metadata["source_section"] = p.Section
	}
	return metadata
}

// Config controls how extracted content is chunked before storage.
type Config struct {
	// MaxChunkSize bounds a chunk in characters.
	MaxChunkSize int
	// ChunkOverlap is the character overlap between consecutive chunks.
	ChunkOverlap int
	// SplitByPage creates one chunk per page for paginated documents,
	// falling back to character chunking when no page structure exists.
	SplitByPage bool
	// MinTextLength is the minimum extracted text length to accept;
	// shorter extractions are treated as an extraction failure.
	MinTextLength int
}

// DefaultConfig holds the standard multimodal ingestion defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:  2000,
		ChunkOverlap:  200,
		SplitByPage:   false,
		MinTextLength: 10,
	}
}

// WithPageSplitting returns a Config tuned for paginated documents.
func WithPageSplitting() Config {
	c := DefaultConfig()
	c.SplitByPage = true
	return c
}

// WithLargeChunks returns a Config tuned for larger context windows.
func WithLargeChunks() Config {
	c := DefaultConfig()
	c.MaxChunkSize = 4000
	c.ChunkOverlap = 400
	return c
}

// IngestResult summarizes a completed ingestion.
type IngestResult struct {
	MemoryIDs     []string
	Provenance    Provenance
	ChunksCreated int
	TextLength    int
	UsedFallback  bool
	Warnings      []string
}
