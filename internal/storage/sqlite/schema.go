package sqlite

// Schema is the embedded SQLite DDL applied by openMemoryStore on every
// startup. Statements use IF NOT EXISTS so repeated application against an
// already-initialized database is a no-op.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id                      TEXT PRIMARY KEY,
	content                 TEXT NOT NULL,
	content_hash            TEXT,
	created_at              TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at              TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

	category                TEXT,
	is_key                  INTEGER NOT NULL DEFAULT 0,

	scope_user_id           TEXT,
	scope_agent_id          TEXT,
	scope_run_id            TEXT,

	memory_type             TEXT,
	tags                    JSON,
	metadata                JSON,

	fsrs_stability          REAL NOT NULL DEFAULT 0,
	fsrs_difficulty         REAL NOT NULL DEFAULT 0,
	fsrs_last_review        TIMESTAMP,
	fsrs_reps               INTEGER NOT NULL DEFAULT 0,
	fsrs_lapses             INTEGER NOT NULL DEFAULT 0,

	dual_storage_strength   REAL NOT NULL DEFAULT 1.0,
	dual_retrieval_strength REAL NOT NULL DEFAULT 1.0,
	consolidation_phase     INTEGER NOT NULL DEFAULT 0,
	synaptic_tag            JSON,

	embedding_model         TEXT,
	embedding_dimension     INTEGER NOT NULL DEFAULT 0,

	created_by              TEXT,
	session_id              TEXT,

	access_count            INTEGER NOT NULL DEFAULT 0,
	last_accessed_at        TIMESTAMP,

	deleted_at              TIMESTAMP,
	supersedes_id           TEXT,
	source_superseded_id    TEXT,

	-- Async enrichment pipeline bookkeeping (internal/engine). These columns
	-- are never scanned back onto types.Memory; UpdateStatus/UpdateEnrichment
	-- are the only writers, and the pipeline reads them back out-of-band.
	status                  TEXT NOT NULL DEFAULT 'pending',
	entity_status           TEXT NOT NULL DEFAULT 'pending',
	relationship_status     TEXT NOT NULL DEFAULT 'pending',
	embedding_status        TEXT NOT NULL DEFAULT 'pending',
	enrichment_attempts     INTEGER NOT NULL DEFAULT 0,
	enrichment_error        TEXT,
	enriched_at             TIMESTAMP,

	decay_score             REAL NOT NULL DEFAULT 1.0,
	decay_updated_at        TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_deleted_at ON memories(deleted_at);
CREATE INDEX IF NOT EXISTS idx_memories_supersedes_id ON memories(supersedes_id);
CREATE INDEX IF NOT EXISTS idx_memories_session_id ON memories(session_id);
CREATE INDEX IF NOT EXISTS idx_memories_memory_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope_user_id, scope_agent_id, scope_run_id);
CREATE INDEX IF NOT EXISTS idx_memories_is_key ON memories(is_key);

-- entities.id is INTEGER to match types.Entity.DBID (int64).
CREATE TABLE IF NOT EXISTS entities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	entity_type     TEXT NOT NULL,
	properties      JSON,
	scope_user_id   TEXT,
	scope_agent_id  TEXT,
	scope_run_id    TEXT,
	is_system       INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(name, scope_user_id, scope_agent_id, scope_run_id)
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);

-- source_id/target_id reference entities.id (INTEGER), matching
-- types.Relationship.SourceID/TargetID (int64).
CREATE TABLE IF NOT EXISTS relationships (
	source_id   INTEGER NOT NULL,
	target_id   INTEGER NOT NULL,
	type        TEXT NOT NULL,
	weight      REAL NOT NULL DEFAULT 1.0,
	properties  JSON,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source_id, target_id, type),
	FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
	FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);

CREATE TABLE IF NOT EXISTS memory_entities (
	memory_id   TEXT NOT NULL,
	entity_id   INTEGER NOT NULL,
	role        TEXT,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (memory_id, entity_id),
	FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE,
	FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);

CREATE TABLE IF NOT EXISTS embeddings (
	memory_id   TEXT PRIMARY KEY,
	embedding   BLOB NOT NULL,
	dimension   INTEGER NOT NULL,
	model       TEXT,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS memory_links (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_id) REFERENCES memories(id) ON DELETE CASCADE,
	FOREIGN KEY (target_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memory_links_source ON memory_links(source_id, type);

CREATE TABLE IF NOT EXISTS settings (
	key         TEXT PRIMARY KEY,
	value       TEXT,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Tracks entity/relationship type strings seen outside the constant lists in
-- pkg/types, so operators can spot drift without failing ingestion.
CREATE TABLE IF NOT EXISTS unknown_type_stats (
	domain      TEXT NOT NULL,
	type_name   TEXT NOT NULL,
	count       INTEGER NOT NULL DEFAULT 0,
	first_seen  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (domain, type_name)
);

-- FTS5 shadow index over memory content, kept in sync via triggers so
-- search_provider.go's FullTextSearch never has to rebuild it manually.
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	id UNINDEXED,
	content,
	content='memories',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, id, content) VALUES (new.rowid, new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, id, content) VALUES ('delete', old.rowid, old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, id, content) VALUES ('delete', old.rowid, old.id, old.content);
	INSERT INTO memories_fts(rowid, id, content) VALUES (new.rowid, new.id, new.content);
END;
`
