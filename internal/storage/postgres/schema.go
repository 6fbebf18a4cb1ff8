// Package postgres provides PostgreSQL implementations of storage interfaces.
package postgres

// Schema contains the SQL statements to create the database schema for PostgreSQL.
// This schema supports v2.0 async enrichment with status tracking and the new
// categorization fields (category, subcategory, context_labels, priority).
const Schema = `
-- Memories table: Core memory storage with async enrichment tracking
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    content_hash TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    category TEXT,
    is_key BOOLEAN NOT NULL DEFAULT FALSE,

    scope_user_id TEXT,
    scope_agent_id TEXT,
    scope_run_id TEXT,

    memory_type TEXT,
    tags JSONB,
    metadata JSONB,

    -- Cognitive strength state (internal/strength is the sole writer).
    fsrs_stability REAL NOT NULL DEFAULT 0,
    fsrs_difficulty REAL NOT NULL DEFAULT 0,
    fsrs_last_review TIMESTAMP,
    fsrs_reps INTEGER NOT NULL DEFAULT 0,
    fsrs_lapses INTEGER NOT NULL DEFAULT 0,

    dual_storage_strength REAL NOT NULL DEFAULT 1.0,
    dual_retrieval_strength REAL NOT NULL DEFAULT 1.0,
    consolidation_phase INTEGER NOT NULL DEFAULT 0,
    synaptic_tag JSONB,

    -- Embedding fields, owned by the ingestion/retrieval pipelines. The
    -- embedding vector itself lives in the embeddings table below.
    embedding_model TEXT,
    embedding_dimension INTEGER NOT NULL DEFAULT 0,

    -- Provenance
    created_by TEXT,
    session_id TEXT,

    -- Quality signals
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed_at TIMESTAMP,

    -- Soft delete / evolution chain
    deleted_at TIMESTAMP,
    supersedes_id TEXT,
    source_superseded_id TEXT,

    -- Async enrichment pipeline bookkeeping (internal/engine). These columns
    -- have no corresponding types.Memory field; UpdateStatus/UpdateEnrichment
    -- are the only writers.
    status TEXT NOT NULL DEFAULT 'pending',
    entity_status TEXT NOT NULL DEFAULT 'pending',
    relationship_status TEXT NOT NULL DEFAULT 'pending',
    embedding_status TEXT NOT NULL DEFAULT 'pending',
    enrichment_attempts INTEGER NOT NULL DEFAULT 0,
    enrichment_error TEXT,
    enriched_at TIMESTAMP,

    decay_score REAL NOT NULL DEFAULT 1.0,
    decay_updated_at TIMESTAMP
);

-- Entities table: id is BIGSERIAL to match types.Entity.DBID (int64).
CREATE TABLE IF NOT EXISTS entities (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    properties JSONB,

    scope_user_id TEXT,
    scope_agent_id TEXT,
    scope_run_id TEXT,
    is_system BOOLEAN NOT NULL DEFAULT FALSE,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    UNIQUE(name, scope_user_id, scope_agent_id, scope_run_id)
);

-- Relationships table: source_id/target_id reference entities.id (BIGINT),
-- matching types.Relationship.SourceID/TargetID (int64).
CREATE TABLE IF NOT EXISTS relationships (
    source_id BIGINT NOT NULL,
    target_id BIGINT NOT NULL,
    type TEXT NOT NULL,

    weight REAL NOT NULL DEFAULT 1.0,
    properties JSONB,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (source_id, target_id, type),
    FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE
);

-- Memory-Entity associations: Which entities appear in which memories
CREATE TABLE IF NOT EXISTS memory_entities (
    memory_id TEXT NOT NULL,
    entity_id BIGINT NOT NULL,

    role TEXT,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (memory_id, entity_id),
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

-- Embeddings table: Vector embeddings with dimension tracking
CREATE TABLE IF NOT EXISTS embeddings (
    memory_id TEXT PRIMARY KEY,
    embedding BYTEA NOT NULL, -- Stored as binary packed float64 array
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

-- Indexes for performance

-- Memory status queries
CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status);
CREATE INDEX IF NOT EXISTS idx_memories_entity_status ON memories(entity_status);
CREATE INDEX IF NOT EXISTS idx_memories_relationship_status ON memories(relationship_status);
CREATE INDEX IF NOT EXISTS idx_memories_embedding_status ON memories(embedding_status);

-- Timestamp queries
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);
CREATE INDEX IF NOT EXISTS idx_memories_enriched_at ON memories(enriched_at);

-- Category and scope queries
CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope_user_id, scope_agent_id, scope_run_id);
CREATE INDEX IF NOT EXISTS idx_memories_is_key ON memories(is_key);

-- Entity lookups
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

-- Relationship lookups
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);

-- Memory-entity association lookups
CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);
CREATE INDEX IF NOT EXISTS idx_memory_entities_memory ON memory_entities(memory_id);

-- Embedding model lookups
CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);

-- Provenance and lifecycle indexes
CREATE INDEX IF NOT EXISTS idx_memories_session_id ON memories(session_id);
CREATE INDEX IF NOT EXISTS idx_memories_created_by ON memories(created_by);
CREATE INDEX IF NOT EXISTS idx_memories_decay_score ON memories(decay_score DESC);
CREATE INDEX IF NOT EXISTS idx_memories_memory_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_deleted_at ON memories(deleted_at);
CREATE INDEX IF NOT EXISTS idx_memories_supersedes_id ON memories(supersedes_id);

-- Memory links: memory-to-memory relationships (e.g. CONTAINS for project hierarchy)
CREATE TABLE IF NOT EXISTS memory_links (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    type TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_memory_links_source ON memory_links(source_id);
CREATE INDEX IF NOT EXISTS idx_memory_links_target ON memory_links(target_id);
CREATE INDEX IF NOT EXISTS idx_memory_links_type ON memory_links(type);

-- Settings table: Persistent key-value store for application configuration
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL,

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Unknown type stats: tracks entity/relationship types returned by the LLM
-- that were not in the allowed list.
CREATE TABLE IF NOT EXISTS unknown_type_stats (
    domain     TEXT NOT NULL,
    type_name  TEXT NOT NULL,
    count      INTEGER NOT NULL DEFAULT 1,
    first_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (domain, type_name)
);

CREATE INDEX IF NOT EXISTS idx_unknown_type_stats_domain ON unknown_type_stats(domain);
`

// MigrationFTS contains SQL to add full-text search support to the memories table.
// Uses PostgreSQL's built-in tsvector/GIN index approach.
// Safe to run multiple times (uses IF NOT EXISTS / conditional checks).
const MigrationFTS = `
-- Add tsvector column for full-text search if it doesn't already exist.
-- We use a regular tsvector column (not GENERATED ALWAYS AS) for maximum
-- compatibility across PostgreSQL versions.
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'memories' AND column_name = 'content_tsv'
    ) THEN
        ALTER TABLE memories ADD COLUMN content_tsv tsvector;
    END IF;
END
$$;

-- Populate the tsvector column for any existing rows.
UPDATE memories SET content_tsv = to_tsvector('english', content) WHERE content_tsv IS NULL;

-- Create a GIN index for fast FTS queries.
CREATE INDEX IF NOT EXISTS idx_memories_content_tsv ON memories USING GIN(content_tsv);

-- Create trigger to auto-populate content_tsv on INSERT/UPDATE.
CREATE OR REPLACE FUNCTION memories_tsv_update()
RETURNS TRIGGER AS $$
BEGIN
    NEW.content_tsv := to_tsvector('english', COALESCE(NEW.content, ''));
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS memories_tsv_trigger ON memories;
CREATE TRIGGER memories_tsv_trigger
    BEFORE INSERT OR UPDATE OF content
    ON memories
    FOR EACH ROW
    EXECUTE FUNCTION memories_tsv_update();
`

// MigrationPgvector contains SQL to add pgvector support to the embeddings table.
// This migration is only applied when the vector extension is available.
// Safe to run multiple times (uses IF NOT EXISTS / conditional checks).
const MigrationPgvector = `
-- Add embedding_vec column if it doesn't already exist.
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'embeddings' AND column_name = 'embedding_vec'
    ) THEN
        ALTER TABLE embeddings ADD COLUMN embedding_vec vector;
    END IF;
END
$$;

-- Create ivfflat index for approximate nearest-neighbor vector search.
-- Lists = 100 is a good default for up to ~1M vectors; tune upward for larger datasets.
-- The index is created CONCURRENTLY so it won't block reads on existing data.
-- IMPORTANT: ivfflat requires at least one row to exist; we guard with a DO block.
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_indexes WHERE indexname = 'idx_embeddings_vec_cosine'
  ) THEN
    IF EXISTS (SELECT 1 FROM embeddings LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_embeddings_vec_cosine ON embeddings USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;
END$$;
`
