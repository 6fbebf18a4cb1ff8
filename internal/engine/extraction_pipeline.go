package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rookmemory/rook/internal/graph"
	"github.com/rookmemory/rook/internal/llm"
	"github.com/rookmemory/rook/pkg/types"
)

// ExtractionPipeline runs the multi-call LLM enrichment pipeline over a
// memory's content: entity extraction, relationship extraction,
// classification, and summarization. Entities and relationships are
// written straight into the in-memory knowledge graph rather than a
// separate relational schema, so the graph the Activation Engine and
// graph traversal queries see is always the one enrichment just updated.
type ExtractionPipeline struct {
	llmClient llm.TextGenerator
	graph     *graph.Graph
}

// NewExtractionPipeline constructs a pipeline targeting the given graph.
func NewExtractionPipeline(llmClient llm.TextGenerator, g *graph.Graph) *ExtractionPipeline {
	return &ExtractionPipeline{llmClient: llmClient, graph: g}
}

// ExtractPipelineResult captures the outcome of each of the pipeline's
// four calls, so a caller can tell partial success (e.g. entities
// extracted but relationships failed) from total failure.
type ExtractPipelineResult struct {
	MemoryID string

	EntityStatus types.EnrichmentStatus
	EntityError  string
	Entities     []llm.EntityResponse
	EntityIDs    map[string]int64 // entity name -> graph db id

	RelationshipStatus types.EnrichmentStatus
	RelationshipError  string
	Relationships      []llm.RelationshipResponse

	ClassificationStatus types.EnrichmentStatus
	ClassificationError  string
	Classification       *llm.ClassificationResponse

	SummarizationStatus types.EnrichmentStatus
	SummarizationError  string
	Summary             *llm.SummarizationResponse

	ExecutedAt time.Time
}

// Extract runs the pipeline for a single memory. Entity extraction is
// required: if it fails, the remaining three calls are not attempted and
// Extract returns an error. Relationship extraction, classification, and
// summarization are each independent and non-fatal -- a failure in one is
// recorded on the result and the others still run.
func (p *ExtractionPipeline) Extract(ctx context.Context, memoryID, content string, scope types.Scope) (*ExtractPipelineResult, error) {
	result := &ExtractPipelineResult{MemoryID: memoryID, ExecutedAt: time.Now()}

	entities, entityIDs, err := p.extractAndStoreEntities(ctx, content, scope)
	if err != nil {
		result.EntityStatus = types.EnrichmentFailed
		result.EntityError = err.Error()
		return result, fmt.Errorf("entity extraction failed: %w", err)
	}
	result.EntityStatus = types.EnrichmentCompleted
	result.Entities = entities
	result.EntityIDs = entityIDs

	relationships, err := p.extractAndStoreRelationships(ctx, content, entities, entityIDs, scope)
	if err != nil {
		result.RelationshipStatus = types.EnrichmentFailed
		result.RelationshipError = err.Error()
	} else {
		result.RelationshipStatus = types.EnrichmentCompleted
		result.Relationships = relationships
	}

	classification, err := p.extractClassification(ctx, content)
	if err != nil {
		result.ClassificationStatus = types.EnrichmentFailed
		result.ClassificationError = err.Error()
	} else {
		result.ClassificationStatus = types.EnrichmentCompleted
		result.Classification = classification
	}

	summary, err := p.extractSummary(ctx, content)
	if err != nil {
		result.SummarizationStatus = types.EnrichmentFailed
		result.SummarizationError = err.Error()
	} else {
		result.SummarizationStatus = types.EnrichmentCompleted
		result.Summary = summary
	}

	return result, nil
}

// extractAndStoreEntities runs Call 1 (entity extraction) and upserts
// each valid entity into the graph, scoped to the memory's owner.
func (p *ExtractionPipeline) extractAndStoreEntities(ctx context.Context, content string, scope types.Scope) ([]llm.EntityResponse, map[string]int64, error) {
	prompt := llm.EntityExtractionPrompt(content)
	response, err := p.llmClient.Complete(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("LLM completion failed: %w", err)
	}

	parsed, _, err := llm.ParseEntityResponseDetailed(response)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse entity response: %w", err)
	}

	ids := make(map[string]int64, len(parsed))
	valid := make([]llm.EntityResponse, 0, len(parsed))
	now := time.Now()
	for _, e := range parsed {
		if !validateEntity(e) {
			continue
		}
		entity := p.graph.UpsertEntity(types.Entity{
			Name:       e.Name,
			EntityType: e.Type,
			Properties: map[string]interface{}{"description": e.Description, "confidence": e.Confidence},
			Scope:      scope,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		ids[e.Name] = entity.DBID
		valid = append(valid, e)
	}

	return valid, ids, nil
}

// extractAndStoreRelationships runs Call 2 (relationship extraction),
// resolving each endpoint through entityIDs and adding the edge to the
// graph. Relationships whose endpoints were not extracted as entities are
// skipped, matching the graph's own mismatch-skip behavior.
func (p *ExtractionPipeline) extractAndStoreRelationships(ctx context.Context, content string, entities []llm.EntityResponse, entityIDs map[string]int64, scope types.Scope) ([]llm.RelationshipResponse, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	asTypes := make([]types.Entity, len(entities))
	for i, e := range entities {
		asTypes[i] = types.Entity{Name: e.Name, EntityType: e.Type, Scope: scope}
	}

	prompt := llm.RelationshipExtractionPrompt(content, asTypes)
	response, err := p.llmClient.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}

	parsed, _, err := llm.ParseRelationshipResponseDetailed(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relationship response: %w", err)
	}

	now := time.Now()
	valid := make([]llm.RelationshipResponse, 0, len(parsed))
	for _, r := range parsed {
		if !types.IsValidRelationshipType(r.Type) {
			continue
		}
		sourceID, ok := entityIDs[r.From]
		if !ok {
			continue
		}
		targetID, ok := entityIDs[r.To]
		if !ok {
			continue
		}
		p.graph.AddRelationship(types.Relationship{
			SourceID:  sourceID,
			TargetID:  targetID,
			Type:      r.Type,
			Weight:    r.Confidence,
			CreatedAt: now,
			UpdatedAt: now,
		})
		valid = append(valid, r)
	}

	return valid, nil
}

// extractClassification runs Call 3: category, memory type, and tags.
func (p *ExtractionPipeline) extractClassification(ctx context.Context, content string) (*llm.ClassificationResponse, error) {
	prompt := llm.ClassificationExtractionPrompt(content)
	response, err := p.llmClient.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}
	return llm.ParseClassificationResponse(response)
}

// extractSummary runs Call 4: a short summary and key points.
func (p *ExtractionPipeline) extractSummary(ctx context.Context, content string) (*llm.SummarizationResponse, error) {
	prompt := llm.SummarizationPrompt(content)
	response, err := p.llmClient.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}
	return llm.ParseSummarizationResponse(response)
}

// validateEntity rejects entities the graph would reject anyway (empty
// name, unrecognized type, or out-of-range confidence), so a bad LLM
// response can't poison the graph.
func validateEntity(e llm.EntityResponse) bool {
	if e.Name == "" {
		return false
	}
	if !types.IsValidEntityType(e.Type) {
		return false
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return false
	}
	return true
}
