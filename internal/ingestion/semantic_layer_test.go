package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeGenerator) GetModel() string { return "fake" }

func TestParseSemanticResponseCreate(t *testing.T) {
	result := parseSemanticResponse(`{"decision": "create", "reasoning": "Novel information", "related_index": null}`, nil)
	assert.Equal(t, DecisionCreate, result.decision)
	assert.Equal(t, "Novel information", result.reasoning)
	assert.Empty(t, result.relatedID)
}

func TestParseSemanticResponseSupersede(t *testing.T) {
	candidates := []Candidate{{MemoryID: "mem1", Content: "test"}}
	result := parseSemanticResponse(`{"decision": "supersede", "reasoning": "Contradicts", "related_index": 0}`, candidates)
	assert.Equal(t, DecisionSupersede, result.decision)
	assert.Equal(t, "mem1", result.relatedID)
}

func TestParseSemanticResponseMalformed(t *testing.T) {
	result := parseSemanticResponse("This is not JSON at all", nil)
	assert.Equal(t, DecisionCreate, result.decision)
}

func TestParseSemanticResponseWithSurroundingText(t *testing.T) {
	response := `Here is my analysis: {"decision": "create", "reasoning": "New info", "related_index": null} That's my answer.`
	result := parseSemanticResponse(response, nil)
	assert.Equal(t, DecisionCreate, result.decision)
}

func TestBuildSemanticPrompt(t *testing.T) {
	candidates := []Candidate{
		{MemoryID: "1", Content: "User lives in Boston", Similarity: 0.85},
		{MemoryID: "2", Content: "User works at Google", Similarity: 0.72},
	}
	prompt := buildSemanticPrompt("I now live in New York", candidates)
	assert.Contains(t, prompt, "NEW INFORMATION:")
	assert.Contains(t, prompt, "I now live in New York")
	assert.Contains(t, prompt, "[0]")
	assert.Contains(t, prompt, "User lives in Boston")
	assert.Contains(t, prompt, "[1]")
}

func TestSemanticLayerEvaluateEmptyCandidates(t *testing.T) {
	l := NewSemanticLayer(&fakeGenerator{})
	result, err := l.Evaluate(context.Background(), "Some new content", nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionCreate, result.decision)
	assert.Equal(t, "no existing memories to compare", result.reasoning)
}

func TestSemanticLayerEvaluateCallsGenerator(t *testing.T) {
	gen := &fakeGenerator{response: `{"decision": "skip", "reasoning": "Duplicate", "related_index": 0}`}
	l := NewSemanticLayer(gen)
	candidates := []Candidate{{MemoryID: "mem1", Content: "User likes pizza", Similarity: 0.95}}

	result, err := l.Evaluate(context.Background(), "User likes pizza a lot", candidates)
	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, result.decision)
	assert.Equal(t, "mem1", result.relatedID)
}
