package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookmemory/rook/pkg/types"
)

type fakeAdder struct {
	nextID   int
	added    []string
	metadata []map[string]interface{}
}

func (a *fakeAdder) Add(ctx context.Context, content string, scope types.Scope, metadata map[string]interface{}) (string, error) {
	a.nextID++
	a.added = append(a.added, content)
	a.metadata = append(a.metadata, metadata)
	return fmt.Sprintf("mem-%d", a.nextID), nil
}

func TestIngestSingleChunk(t *testing.T) {
	ig := NewIngester()
	adder := &fakeAdder{}

	result, err := ig.Ingest(context.Background(), adder, []byte("a short memo about the project"), "text/plain", "notes.txt", types.Scope{UserID: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)
	require.Len(t, result.MemoryIDs, 1)
	assert.Equal(t, "mem-1", result.MemoryIDs[0])
	assert.Equal(t, ModalityText, result.Provenance.Modality)
	assert.Equal(t, "notes.txt", result.Provenance.Filename)
	assert.False(t, result.UsedFallback)

	assert.Equal(t, "text", adder.metadata[0]["source_modality"])
	assert.Equal(t, "notes.txt", adder.metadata[0]["source_filename"])
}

func TestIngestRejectsTooShortText(t *testing.T) {
	ig := NewIngester()
	adder := &fakeAdder{}

	_, err := ig.Ingest(context.Background(), adder, []byte("hi"), "text/plain", "", types.Scope{}, nil)
	require.Error(t, err)
}

func TestIngestRejectsUnsupportedMIME(t *testing.T) {
	ig := NewIngester()
	adder := &fakeAdder{}

	_, err := ig.Ingest(context.Background(), adder, []byte{0x01, 0x02}, "application/pdf", "", types.Scope{}, nil)
	require.Error(t, err)
	assert.Empty(t, adder.added)
}

func TestIngestSplitsLargeTextIntoMultipleChunks(t *testing.T) {
	cfg := Config{MaxChunkSize: 200, ChunkOverlap: 20, MinTextLength: 10}
	ig := NewIngesterWithConfig(cfg)
	adder := &fakeAdder{}

	// Distinct sentences: the chunker drops identical chunks, so repeating
	// one sentence would collapse to a single chunk.
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "This is test sentence number %d in a long document. ", i)
	}
	body := b.String()

	result, err := ig.Ingest(context.Background(), adder, []byte(body), "text/plain", "big.txt", types.Scope{}, nil)
	require.NoError(t, err)
	assert.Greater(t, result.ChunksCreated, 1)
	assert.Equal(t, result.ChunksCreated, len(adder.added))

	for _, md := range adder.metadata {
		assert.Contains(t, md, "chunk_index")
		assert.Contains(t, md, "chunk_total")
	}
}

func TestIngestMergesAdditionalMetadata(t *testing.T) {
	ig := NewIngester()
	adder := &fakeAdder{}

	_, err := ig.Ingest(context.Background(), adder, []byte("a reasonably long note to store"), "text/plain", "", types.Scope{}, map[string]interface{}{"source": "import-job"})
	require.NoError(t, err)
	assert.Equal(t, "import-job", adder.metadata[0]["source"])
}

func TestIngesterSupportsDelegatesToPipeline(t *testing.T) {
	ig := NewIngester()
	assert.True(t, ig.Supports("text/plain"))
	assert.False(t, ig.Supports("image/png"))
	assert.Contains(t, ig.SupportedTypes(), "text/plain")
}
