package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/rookmemory/rook/internal/storage"
	"github.com/rookmemory/rook/pkg/types"
)

// Ensure *MemoryStore implements storage.SearchProvider at compile time.
var _ storage.SearchProvider = (*MemoryStore)(nil)

// memorySelectColumns is the canonical unqualified SELECT column list for
// the memories table, used by queries that don't alias it.
const memorySelectColumns = memoryColumns

// memorySelectColumnsQualified is the same column list with an "m." prefix,
// for queries that join memories against another table under that alias.
const memorySelectColumnsQualified = `m.id, m.content, m.content_hash, m.created_at, m.updated_at,
	m.category, m.is_key,
	m.scope_user_id, m.scope_agent_id, m.scope_run_id,
	m.memory_type, m.tags, m.metadata,
	m.fsrs_stability, m.fsrs_difficulty, m.fsrs_last_review, m.fsrs_reps, m.fsrs_lapses,
	m.dual_storage_strength, m.dual_retrieval_strength, m.consolidation_phase, m.synaptic_tag,
	m.embedding_model, m.embedding_dimension,
	m.created_by, m.session_id,
	m.access_count, m.last_accessed_at,
	m.deleted_at, m.supersedes_id, m.source_superseded_id`

// FullTextSearch performs PostgreSQL tsvector full-text search across memory content.
//
// When opts.Query is empty the method falls back to a full table scan ordered
// by created_at DESC so the caller still receives a useful result set.
//
// When the content_tsv column is not yet populated (e.g. on a fresh row that
// hasn't been through the UPDATE trigger) we fall back gracefully to ILIKE.
func (s *MemoryStore) FullTextSearch(ctx context.Context, opts storage.SearchOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	// When the query is empty fall back to a plain list ordered by creation time.
	if strings.TrimSpace(opts.Query) == "" {
		return s.List(ctx, storage.ListOptions{
			Page:      1,
			Limit:     opts.Limit,
			SortBy:    "created_at",
			SortOrder: "desc",
		})
	}

	const querySQL = `
		SELECT ` + memorySelectColumns + `
		FROM memories
		WHERE content_tsv @@ plainto_tsquery('english', $1) AND deleted_at IS NULL
		ORDER BY ts_rank(content_tsv, plainto_tsquery('english', $1)) DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, querySQL, opts.Query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: FullTextSearch query %q: %w", opts.Query, err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: FullTextSearch scan: %w", err)
	}

	// Count total matching rows for pagination.
	const countSQL = `
		SELECT COUNT(*)
		FROM memories
		WHERE content_tsv @@ plainto_tsquery('english', $1) AND deleted_at IS NULL
	`
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, opts.Query).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: FullTextSearch count: %w", err)
	}

	page := 1
	if opts.Limit > 0 {
		page = (opts.Offset / opts.Limit) + 1
	}

	result := &storage.PaginatedResult[types.Memory]{
		Items:    memories,
		Total:    total,
		Page:     page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset+len(memories) < total,
	}

	// Fuzzy fallback: if no results and FuzzyFallback is enabled, retry with OR'd terms
	if opts.FuzzyFallback && len(result.Items) == 0 && opts.Query != "" {
		terms := strings.Fields(opts.Query)
		if len(terms) > 1 {
			relaxedOpts := opts
			relaxedOpts.Query = strings.Join(terms, " OR ")
			relaxedOpts.FuzzyFallback = false // prevent recursion
			return s.FullTextSearch(ctx, relaxedOpts)
		}
	}

	return result, nil
}

// VectorSearch performs semantic similarity search using pgvector cosine distance.
// The search is accelerated by an ivfflat index (idx_embeddings_vec_cosine) when the embeddings table is non-empty.
//
// When pgvector is not available or the embedding_vec column is not populated,
// it falls back to returning recent memories (same as FullTextSearch with empty
// query).
func (s *MemoryStore) VectorSearch(ctx context.Context, query []float64, opts storage.SearchOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	if len(query) == 0 {
		return &storage.PaginatedResult[types.Memory]{Items: []types.Memory{}, PageSize: opts.Limit}, nil
	}

	if !s.pgvectorAvailable {
		// Fall back to recent memories when pgvector is not available.
		return s.List(ctx, storage.ListOptions{
			Page:      1,
			Limit:     opts.Limit,
			SortBy:    "created_at",
			SortOrder: "desc",
		})
	}

	// Convert float64 slice to float32 for pgvector.
	f32 := make([]float32, len(query))
	for i, v := range query {
		f32[i] = float32(v)
	}
	vec := pgvector.NewVector(f32)

	const querySQL = `
		SELECT ` + memorySelectColumnsQualified + `
		FROM memories m
		JOIN embeddings e ON e.memory_id = m.id
		WHERE e.embedding_vec IS NOT NULL AND m.deleted_at IS NULL
		ORDER BY e.embedding_vec <=> $1::vector
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, querySQL, vec, opts.Limit, opts.Offset)
	if err != nil {
		// If the query fails (e.g. no rows with embedding_vec yet), fall back.
		return s.List(ctx, storage.ListOptions{
			Page:      1,
			Limit:     opts.Limit,
			SortBy:    "created_at",
			SortOrder: "desc",
		})
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: VectorSearch scan: %w", err)
	}

	// Count total rows with embedding vectors for pagination.
	const countSQL = `
		SELECT COUNT(*)
		FROM memories m
		JOIN embeddings e ON e.memory_id = m.id
		WHERE e.embedding_vec IS NOT NULL AND m.deleted_at IS NULL
	`
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&total); err != nil {
		total = len(memories) + opts.Offset
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    memories,
		Total:    total,
		PageSize: opts.Limit,
		HasMore:  opts.Offset+len(memories) < total,
	}, nil
}

// HybridSearch combines full-text search and vector similarity search using
// Reciprocal Rank Fusion (RRF) to merge and re-rank results.
// When no vector is provided or pgvector is unavailable, it falls back to
// FullTextSearch.
func (s *MemoryStore) HybridSearch(ctx context.Context, text string, vector []float64, opts storage.SearchOptions) (*storage.PaginatedResult[types.Memory], error) {
	if len(vector) == 0 || !s.pgvectorAvailable {
		opts.Query = text
		return s.FullTextSearch(ctx, opts)
	}

	// Fetch more candidates for merging (3× requested limit for each source).
	candidateLimit := opts.Limit * 3
	if candidateLimit < 30 {
		candidateLimit = 30
	}

	ftsOpts := storage.SearchOptions{Query: text, Limit: candidateLimit}
	ftsResult, err := s.FullTextSearch(ctx, ftsOpts)
	if err != nil {
		return nil, fmt.Errorf("postgres: hybrid search FTS failed: %w", err)
	}

	vecOpts := storage.SearchOptions{Limit: candidateLimit}
	vecResult, err := s.VectorSearch(ctx, vector, vecOpts)
	if err != nil {
		// Vector search failure is non-fatal — fall back to FTS only.
		opts.Query = text
		return s.FullTextSearch(ctx, opts)
	}

	// Reciprocal Rank Fusion (k=60 is a well-tuned default).
	const rrfK = 60.0
	scores := make(map[string]float64)
	for rank, mem := range ftsResult.Items {
		scores[mem.ID] += 1.0 / (rrfK + float64(rank+1))
	}
	for rank, mem := range vecResult.Items {
		scores[mem.ID] += 1.0 / (rrfK + float64(rank+1))
	}

	// Build a deduplicated list of all candidate memory IDs, sorted by RRF score.
	type scoredID struct {
		id    string
		score float64
	}
	var ranked []scoredID
	for id, score := range scores {
		ranked = append(ranked, scoredID{id, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	total := len(ranked)
	offset := opts.Offset
	if offset >= total {
		return &storage.PaginatedResult[types.Memory]{Items: []types.Memory{}, Total: total, PageSize: opts.Limit}, nil
	}
	end := offset + opts.Limit
	if end > total {
		end = total
	}

	var memories []types.Memory
	for _, r := range ranked[offset:end] {
		mem, err := s.Get(ctx, r.id)
		if err != nil {
			continue
		}
		memories = append(memories, *mem)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    memories,
		Total:    total,
		PageSize: opts.Limit,
		HasMore:  end < total,
	}, nil
}

// scanMemoryRows reads all rows returned by a query selecting
// memorySelectColumns (or memorySelectColumnsQualified) into a
// []types.Memory slice, reusing the scanMemory helper from memory_store.go.
func scanMemoryRows(rows *sql.Rows) ([]types.Memory, error) {
	var memories []types.Memory

	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan memory row: %w", err)
		}
		memories = append(memories, *mem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}

	return memories, nil
}
