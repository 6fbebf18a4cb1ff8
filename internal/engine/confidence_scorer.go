package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rookmemory/rook/internal/storage"
	"github.com/rookmemory/rook/pkg/types"
)

// ConfidenceScorer calculates confidence scores for memories and relationships.
// It uses multi-factor analysis including entity quality, relationship strength,
// source reliability, and temporal factors.
type ConfidenceScorer struct {
	memoryStore storage.MemoryStore
}

// NewConfidenceScorer creates a new confidence scorer.
func NewConfidenceScorer(store storage.MemoryStore) *ConfidenceScorer {
	return &ConfidenceScorer{
		memoryStore: store,
	}
}

// MemoryConfidence represents the overall confidence score and its components.
type MemoryConfidence struct {
	// Overall is the weighted average of all factors (0.0 to 1.0).
	Overall float64

	// EntityScore reflects the quality of entity extraction (0.0 to 1.0).
	EntityScore float64

	// RelScore reflects the quality of relationship extraction (0.0 to 1.0).
	RelScore float64

	// SourceScore reflects the reliability of the memory's creator (0.0 to 1.0).
	SourceScore float64

	// AgeScore reflects the recency of the memory (0.0 to 1.0).
	AgeScore float64
}

// CalculateMemoryConfidence computes multi-factor confidence for a memory.
// Weights: Entity=0.3, Relationship=0.2, Source=0.3, Age=0.2
func (c *ConfidenceScorer) CalculateMemoryConfidence(ctx context.Context, memory *types.Memory) (*MemoryConfidence, error) {
	confidence := &MemoryConfidence{}

	entities, err := c.memoryStore.GetMemoryEntities(ctx, memory.ID)
	if err != nil {
		// Entity lookup failing shouldn't block confidence scoring; just
		// score as if none were found.
		entities = nil
	}

	confidence.EntityScore = c.calculateEntityScore(entities)
	confidence.RelScore = c.calculateRelationshipScore(entities)
	confidence.SourceScore = c.calculateSourceScore(memory)
	confidence.AgeScore = c.calculateAgeScore(memory)

	confidence.Overall = (confidence.EntityScore * 0.3) +
		(confidence.RelScore * 0.2) +
		(confidence.SourceScore * 0.3) +
		(confidence.AgeScore * 0.2)

	return confidence, nil
}

// calculateEntityScore calculates confidence based on entity extraction yield.
func (c *ConfidenceScorer) calculateEntityScore(entities []*types.Entity) float64 {
	if len(entities) == 0 {
		return 0.5
	}
	score := 0.7
	entityBonus := min(0.3, float64(len(entities))*0.1)
	return min(1.0, score+entityBonus)
}

// calculateRelationshipScore approximates relationship extraction quality
// from entity count, since the relationship extraction pass only runs
// once at least two entities are available.
func (c *ConfidenceScorer) calculateRelationshipScore(entities []*types.Entity) float64 {
	score := 0.5
	if len(entities) >= 2 {
		score += 0.2
	}
	return min(1.0, score)
}

// calculateSourceScore calculates confidence based on who or what created
// the memory. Manual/user-entered sources are more reliable than automated
// ones.
func (c *ConfidenceScorer) calculateSourceScore(memory *types.Memory) float64 {
	sourceScores := map[string]float64{
		"manual":     1.0,
		"user":       1.0,
		"note":       0.95,
		"email":      0.8,
		"document":   0.85,
		"message":    0.75,
		"auto":       0.6,
		"imported":   0.7,
		"ai_summary": 0.5,
	}

	if score, ok := sourceScores[memory.CreatedBy]; ok {
		return score
	}

	return 0.5
}

// calculateAgeScore calculates confidence based on memory age.
// Newer memories are generally more reliable (information may become stale).
func (c *ConfidenceScorer) calculateAgeScore(memory *types.Memory) float64 {
	age := time.Since(memory.CreatedAt)

	// Age scoring (exponential decay over 1 year)
	// Fresh (< 1 day): 1.0
	// Recent (< 1 week): 0.9
	// Current (< 1 month): 0.8
	// Recent (< 3 months): 0.7
	// Relevant (< 6 months): 0.6
	// Old (< 1 year): 0.5
	// Very old (> 1 year): 0.4

	switch {
	case age < 24*time.Hour:
		return 1.0
	case age < 7*24*time.Hour:
		return 0.9
	case age < 30*24*time.Hour:
		return 0.8
	case age < 90*24*time.Hour:
		return 0.7
	case age < 180*24*time.Hour:
		return 0.6
	case age < 365*24*time.Hour:
		return 0.5
	default:
		return 0.4
	}
}

// CalculateRelationshipConfidence computes confidence for a relationship.
// Based on relationship weight and recency.
func (c *ConfidenceScorer) CalculateRelationshipConfidence(rel *types.Relationship) float64 {
	score := 0.5

	if rel.Weight > 0 {
		score = rel.Weight
	}

	if evidence, ok := rel.Properties["evidence_count"].(float64); ok && evidence > 0 {
		score += min(0.3, evidence*0.1)
	}

	age := time.Since(rel.CreatedAt)
	if age < 30*24*time.Hour {
		score += 0.1
	}

	return min(1.0, score)
}

// UpdateConfidence recalculates and stores confidence for a memory.
// The confidence score is stored in the memory's metadata.
func (c *ConfidenceScorer) UpdateConfidence(ctx context.Context, memoryID string) error {
	memory, err := c.memoryStore.Get(ctx, memoryID)
	if err != nil {
		return fmt.Errorf("failed to get memory: %w", err)
	}

	confidence, err := c.CalculateMemoryConfidence(ctx, memory)
	if err != nil {
		return fmt.Errorf("failed to calculate confidence: %w", err)
	}

	if memory.Metadata == nil {
		memory.Metadata = make(map[string]interface{})
	}

	memory.Metadata["confidence"] = confidence.Overall
	memory.Metadata["confidence_components"] = map[string]float64{
		"entity":       confidence.EntityScore,
		"relationship": confidence.RelScore,
		"source":       confidence.SourceScore,
		"age":          confidence.AgeScore,
	}
	memory.UpdatedAt = time.Now()

	if err := c.memoryStore.Update(ctx, memory); err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}

	return nil
}

// BatchUpdateConfidence updates confidence for multiple memories.
// Returns the number of memories successfully updated.
func (c *ConfidenceScorer) BatchUpdateConfidence(ctx context.Context, memoryIDs []string) (int, error) {
	updated := 0

	for _, id := range memoryIDs {
		if err := c.UpdateConfidence(ctx, id); err != nil {
			continue
		}
		updated++
	}

	return updated, nil
}

// GetConfidence retrieves the stored confidence score for a memory.
// Returns 0.5 if no confidence score is stored.
func (c *ConfidenceScorer) GetConfidence(ctx context.Context, memoryID string) (float64, error) {
	memory, err := c.memoryStore.Get(ctx, memoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to get memory: %w", err)
	}

	if memory.Metadata == nil {
		return 0.5, nil
	}

	confidence, ok := memory.Metadata["confidence"].(float64)
	if !ok {
		return 0.5, nil
	}

	return confidence, nil
}
