package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rookmemory/rook/internal/llm"
	"github.com/rookmemory/rook/pkg/types"
)

// MemoryAdder is the narrow collaborator an Ingester stores chunks
// through. internal/engine's orchestrator satisfies this without
// internal/extract importing it directly.
type MemoryAdder interface {
	Add(ctx context.Context, content string, scope types.Scope, metadata map[string]interface{}) (string, error)
}

// Ingester coordinates extraction, chunking, and memory storage for
// non-conversational content (documents, images transcribed upstream,
// etc), adapted from a multimodal::MultimodalIngester design.
type Ingester struct {
	pipeline *Pipeline
	config   Config
	chunker  llm.Chunker
}

// NewIngester builds an Ingester with the default text-only pipeline and
// config.
func NewIngester() *Ingester {
	return &Ingester{
		pipeline: WithDefaults(),
		config:   DefaultConfig(),
		chunker:  llm.Chunker{MaxChunkSize: DefaultConfig().MaxChunkSize / 4, Overlap: DefaultConfig().ChunkOverlap / 4},
	}
}

// NewIngesterWithConfig builds an Ingester with a custom chunking Config.
func NewIngesterWithConfig(config Config) *Ingester {
	return &Ingester{
		pipeline: WithDefaults(),
		config:   config,
		chunker:  llm.Chunker{MaxChunkSize: config.MaxChunkSize / 4, Overlap: config.ChunkOverlap / 4},
	}
}

// NewIngesterWithPipeline builds an Ingester with a custom extraction
// Pipeline (e.g. one with PDF/OCR extractors registered) and Config.
func NewIngesterWithPipeline(pipeline *Pipeline, config Config) *Ingester {
	return &Ingester{
		pipeline: pipeline,
		config:   config,
		chunker:  llm.Chunker{MaxChunkSize: config.MaxChunkSize / 4, Overlap: config.ChunkOverlap / 4},
	}
}

type contentChunk struct {
	text       string
	pageNumber int
}

// Ingest extracts text from content, chunks it per Config, and stores each
// chunk as a Memory via adder, tagging every chunk with source provenance.
func (ig *Ingester) Ingest(ctx context.Context, adder MemoryAdder, content []byte, mimeType, filename string, scope types.Scope, additionalMetadata map[string]interface{}) (*IngestResult, error) {
	contentLen := len(content)
	var warnings []string

	extracted, err := ig.pipeline.Extract(ctx, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", mimeType, err)
	}

	if len(extracted.Text) < ig.config.MinTextLength {
		return nil, fmt.Errorf("extracted text too short (%d chars, minimum %d)", len(extracted.Text), ig.config.MinTextLength)
	}

	provenance := Provenance{
		Modality:         extracted.Modality,
		Filename:         filename,
		OriginalSize:     contentLen,
		MIMEType:         mimeType,
		ExtractionMethod: extracted.Method,
		ExtractedAt:      time.Now(),
	}

	chunks := ig.chunkContent(extracted, &warnings)

	var memoryIDs []string
	for i, chunk := range chunks {
		metadata := provenance.ToMetadata()
		if len(chunks) > 1 {
			metadata["chunk_index"] = i
			metadata["chunk_total"] = len(chunks)
		}
		if chunk.pageNumber > 0 {
			metadata["source_page"] = chunk.pageNumber
		}
		for k, v := range additionalMetadata {
			metadata[k] = v
		}

		id, err := adder.Add(ctx, chunk.text, scope, metadata)
		if err != nil {
			return nil, fmt.Errorf("store chunk %d/%d: %w", i+1, len(chunks), err)
		}
		memoryIDs = append(memoryIDs, id)
	}

	usedFallback := extracted.Method == "vision_llm" || extracted.Method == "combined"

	return &IngestResult{
		MemoryIDs:     memoryIDs,
		Provenance:    provenance,
		ChunksCreated: len(chunks),
		TextLength:    len(extracted.Text),
		UsedFallback:  usedFallback,
		Warnings:      warnings,
	}, nil
}

func (ig *Ingester) chunkContent(extracted ExtractedContent, warnings *[]string) []contentChunk {
	if ig.config.SplitByPage && len(extracted.Pages) > 0 {
		var chunks []contentChunk
		for i, pageText := range extracted.Pages {
			if strings.TrimSpace(pageText) != "" {
				chunks = append(chunks, contentChunk{text: pageText, pageNumber: i + 1})
			}
		}
		if len(chunks) > 0 {
			return chunks
		}
		*warnings = append(*warnings, "page splitting requested but no page structure available")
	}

	text := extracted.Text
	if len(text) <= ig.config.MaxChunkSize {
		return []contentChunk{{text: text}}
	}

	parts, err := ig.chunker.Chunk(text)
	if err != nil || len(parts) == 0 {
		return []contentChunk{{text: text}}
	}

	chunks := make([]contentChunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, contentChunk{text: strings.TrimSpace(p)})
	}
	if len(chunks) > 10 {
		*warnings = append(*warnings, fmt.Sprintf("large document split into %d chunks", len(chunks)))
	}
	return chunks
}

// Supports reports whether this ingester can extract the given MIME type.
func (ig *Ingester) Supports(mimeType string) bool {
	return ig.pipeline.Supports(mimeType)
}

// SupportedTypes lists the MIME types this ingester's pipeline can extract.
func (ig *Ingester) SupportedTypes() []string {
	return ig.pipeline.SupportedTypes()
}
