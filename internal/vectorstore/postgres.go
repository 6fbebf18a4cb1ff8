package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	pgvector "github.com/pgvector/pgvector-go"

	// Postgres driver, registered under "postgres" for database/sql.
	_ "github.com/lib/pq"

	"github.com/rookmemory/rook/pkg/filter"
)

// searchOversample multiplies the requested limit when a payload filter is
// present, since rows are filtered in Go after the ANN query runs.
const searchOversample = 5

// PostgresBackend is a pgvector-backed VectorBackend. All collections share
// one physical table, partitioned by a collection column, so CreateCollection
// is a no-op beyond recording metadata implicitly via inserted rows.
type PostgresBackend struct {
	db         *sql.DB
	collection string
	dimension  int
	distance   DistanceMetric
}

func newPostgresBackend(cfg Config) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("vectorstore: ping postgres: %w", err)
	}

	b := &PostgresBackend{
		db:         db,
		collection: cfg.CollectionName,
		dimension:  cfg.EmbeddingDimension,
		distance:   DistanceCosine,
	}
	if err := b.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("vectorstore: enable pgvector extension: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS vectorstore_records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (collection, id)
		)
	`, b.dimension)
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("vectorstore: create records table: %w", err)
	}

	// An IVFFlat index needs rows before it is useful; creation is best-effort
	// so an empty table at startup never blocks the backend from opening.
	_, err := b.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS vectorstore_records_embedding_idx
		ON vectorstore_records USING ivfflat (embedding vector_cosine_ops)
	`)
	if err != nil {
		log.Printf("vectorstore: ivfflat index creation deferred: %v", err)
	}
	return nil
}

func (b *PostgresBackend) CreateCollection(ctx context.Context, name string, dimension int, distance DistanceMetric) error {
	// Collections are logical partitions of the shared table; nothing to do
	// beyond what ensureSchema already created.
	return nil
}

func (b *PostgresBackend) Insert(ctx context.Context, records []Record) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectorstore_records (collection, id, embedding, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE SET
			embedding = excluded.embedding,
			payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("vectorstore: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, record := range records {
		payloadJSON, err := json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal payload for %s: %w", record.ID, err)
		}
		vec := pgvector.NewVector(record.Vector)
		if _, err := stmt.ExecContext(ctx, b.collection, record.ID, vec, payloadJSON); err != nil {
			return fmt.Errorf("vectorstore: insert %s: %w", record.ID, err)
		}
	}

	return tx.Commit()
}

func (b *PostgresBackend) Search(ctx context.Context, queryVector []float32, limit int, expr filter.Expr) ([]SearchResult, error) {
	fetchLimit := limit
	if !expr.IsZero() {
		fetchLimit = limit * searchOversample
	}

	vec := pgvector.NewVector(queryVector)
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, payload, 1 - (embedding <=> $1) AS score
		FROM vectorstore_records
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, vec, b.collection, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var id string
		var payloadJSON []byte
		var score float32
		if err := rows.Scan(&id, &payloadJSON, &score); err != nil {
			return nil, fmt.Errorf("vectorstore: scan search row: %w", err)
		}
		payload := map[string]any{}
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("vectorstore: unmarshal payload: %w", err)
		}

		matched, err := filter.Matches(expr, payloadResolver(payload))
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}

		results = append(results, SearchResult{ID: id, Score: score, Payload: payload})
		if len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}

func (b *PostgresBackend) Get(ctx context.Context, id string) (*Record, error) {
	var payloadJSON []byte
	var vec pgvector.Vector
	err := b.db.QueryRowContext(ctx, `
		SELECT embedding, payload FROM vectorstore_records WHERE collection = $1 AND id = $2
	`, b.collection, id).Scan(&vec, &payloadJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get %s: %w", id, err)
	}

	payload := map[string]any{}
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("vectorstore: unmarshal payload: %w", err)
	}
	return &Record{ID: id, Vector: vec.Slice(), Payload: payload}, nil
}

func (b *PostgresBackend) Update(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if vector != nil && payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal payload: %w", err)
		}
		res, err := b.db.ExecContext(ctx, `
			UPDATE vectorstore_records SET embedding = $1, payload = $2 WHERE collection = $3 AND id = $4
		`, pgvector.NewVector(vector), payloadJSON, b.collection, id)
		return checkUpdateResult(res, err, id)
	}
	if vector != nil {
		res, err := b.db.ExecContext(ctx, `
			UPDATE vectorstore_records SET embedding = $1 WHERE collection = $2 AND id = $3
		`, pgvector.NewVector(vector), b.collection, id)
		return checkUpdateResult(res, err, id)
	}
	if payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal payload: %w", err)
		}
		res, err := b.db.ExecContext(ctx, `
			UPDATE vectorstore_records SET payload = $1 WHERE collection = $2 AND id = $3
		`, payloadJSON, b.collection, id)
		return checkUpdateResult(res, err, id)
	}
	return nil
}

func checkUpdateResult(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("vectorstore: update %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("vectorstore: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM vectorstore_records WHERE collection = $1 AND id = $2`, b.collection, id)
	return checkUpdateResult(res, err, id)
}

func (b *PostgresBackend) List(ctx context.Context, expr filter.Expr, limit int) ([]Record, error) {
	fetchLimit := limit
	if !expr.IsZero() {
		fetchLimit = limit * searchOversample
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT id, embedding, payload FROM vectorstore_records WHERE collection = $1 LIMIT $2
	`, b.collection, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var id string
		var vec pgvector.Vector
		var payloadJSON []byte
		if err := rows.Scan(&id, &vec, &payloadJSON); err != nil {
			return nil, fmt.Errorf("vectorstore: scan list row: %w", err)
		}
		payload := map[string]any{}
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("vectorstore: unmarshal payload: %w", err)
		}
		matched, err := filter.Matches(expr, payloadResolver(payload))
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		records = append(records, Record{ID: id, Vector: vec.Slice(), Payload: payload})
		if len(records) >= limit {
			break
		}
	}
	return records, rows.Err()
}

func (b *PostgresBackend) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT DISTINCT collection FROM vectorstore_records`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var collections []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		collections = append(collections, name)
	}
	return collections, rows.Err()
}

func (b *PostgresBackend) DeleteCollection(ctx context.Context, name string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM vectorstore_records WHERE collection = $1`, name)
	if err != nil {
		return fmt.Errorf("vectorstore: delete collection %s: %w", name, err)
	}
	return nil
}

func (b *PostgresBackend) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	var count uint64
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectorstore_records WHERE collection = $1`, name).Scan(&count)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("vectorstore: collection info: %w", err)
	}
	return CollectionInfo{Name: name, VectorCount: count, Dimension: b.dimension, Distance: b.distance}, nil
}

func (b *PostgresBackend) Reset(ctx context.Context) error {
	return b.DeleteCollection(ctx, b.collection)
}

func (b *PostgresBackend) CollectionName() string { return b.collection }

func (b *PostgresBackend) Close() error { return b.db.Close() }

func payloadResolver(payload map[string]any) filter.FieldResolver {
	return func(field string) (interface{}, bool) {
		v, ok := payload[field]
		return v, ok
	}
}
