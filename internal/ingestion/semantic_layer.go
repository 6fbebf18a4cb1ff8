package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rookmemory/rook/internal/llm"
)

// semanticResult is the semantic layer's internal findings.
type semanticResult struct {
	decision  Decision
	reasoning string
	relatedID string
}

// SemanticLayer is the cascade's fourth and slowest stage (~500ms): an LLM
// fallback for nuanced cases the faster, pattern-based layers couldn't
// resolve. Research on LLM contradiction detection shows it performs only
// marginally better than chance, so this layer runs last and only when a
// generator is configured.
type SemanticLayer struct {
	generator llm.TextGenerator
}

// NewSemanticLayer constructs a semantic layer backed by generator.
func NewSemanticLayer(generator llm.TextGenerator) *SemanticLayer {
	return &SemanticLayer{generator: generator}
}

const semanticSystemPrompt = `You are a memory contradiction detector. Given new information and existing memories, determine their relationship.

Respond with a JSON object:
{
  "decision": "skip" | "create" | "update" | "supersede",
  "reasoning": "brief explanation",
  "related_index": null | <index of related memory>
}

Decisions:
- "skip": new info is essentially duplicate of existing memory
- "create": new info is distinct, store as new memory
- "update": new info adds to/refines existing memory (non-contradictory)
- "supersede": new info contradicts existing memory (newer info wins)

Be conservative with "supersede" -- only use for clear contradictions, not just different topics.`

// Evaluate asks the LLM to classify the relationship between newContent
// and candidates.
func (l *SemanticLayer) Evaluate(ctx context.Context, newContent string, candidates []Candidate) (semanticResult, error) {
	if len(candidates) == 0 {
		return semanticResult{decision: DecisionCreate, reasoning: "no existing memories to compare"}, nil
	}

	prompt := semanticSystemPrompt + "\n\n" + buildSemanticPrompt(newContent, candidates)

	response, err := l.generator.Complete(ctx, prompt)
	if err != nil {
		return semanticResult{}, fmt.Errorf("ingestion: semantic layer completion: %w", err)
	}

	return parseSemanticResponse(response, candidates), nil
}

func buildSemanticPrompt(newContent string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEW INFORMATION:\n%q\n\nEXISTING MEMORIES:\n", newContent)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %q (similarity: %.2f)\n", i, c.Content, c.Similarity)
	}
	b.WriteString("\nAnalyze the relationship and respond with a single JSON object.")
	return b.String()
}

type llmDecision struct {
	Decision     string `json:"decision"`
	Reasoning    string `json:"reasoning"`
	RelatedIndex *int   `json:"related_index"`
}

// parseSemanticResponse tolerates an LLM wrapping its JSON in prose by
// extracting the substring between the first '{' and the last '}'; a
// response that still fails to parse falls back to Create rather than
// erroring the whole ingestion path.
func parseSemanticResponse(response string, candidates []Candidate) semanticResult {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	var parsed llmDecision
	if start >= 0 && end >= start {
		_ = json.Unmarshal([]byte(response[start:end+1]), &parsed)
	}
	if parsed.Decision == "" {
		parsed = llmDecision{Decision: "create", Reasoning: "could not parse LLM response: " + response}
	}

	var decision Decision
	switch strings.ToLower(parsed.Decision) {
	case "skip", "duplicate":
		decision = DecisionSkip
	case "update", "refine":
		decision = DecisionUpdate
	case "supersede", "contradict", "contradiction":
		decision = DecisionSupersede
	default:
		decision = DecisionCreate
	}

	var relatedID string
	if parsed.RelatedIndex != nil && *parsed.RelatedIndex >= 0 && *parsed.RelatedIndex < len(candidates) {
		relatedID = candidates[*parsed.RelatedIndex].MemoryID
	}

	return semanticResult{decision: decision, reasoning: parsed.Reasoning, relatedID: relatedID}
}
