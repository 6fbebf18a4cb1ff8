package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/rookmemory/rook/pkg/filter"
)

// sqliteScanCap bounds how many rows a linear Search/List scan will load,
// the same guard rail a vectorSearchMaxCandidates-style limit provides for
// the "no ANN index available" fallback case.
const sqliteScanCap = 10_000

// SQLiteBackend is the local, dependency-free VectorBackend fallback. It has
// no ANN index: Search and List load candidate rows and filter them in
// process, and Search ranks them with an in-process cosine similarity scan.
type SQLiteBackend struct {
	db         *sql.DB
	collection string
	dimension  int
}

func newSQLiteBackend(cfg Config) (*SQLiteBackend, error) {
	path := cfg.Path
	if path == "" {
		path = "rook-vectorstore.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("vectorstore: set wal mode: %w", err)
	}

	b := &SQLiteBackend{db: db, collection: cfg.CollectionName, dimension: cfg.EmbeddingDimension}
	if err := b.ensureSchema(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) ensureSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS vectorstore_records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("vectorstore: create records table: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) CreateCollection(ctx context.Context, name string, dimension int, distance DistanceMetric) error {
	return nil
}

func (b *SQLiteBackend) Insert(ctx context.Context, records []Record) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectorstore_records (collection, id, embedding, payload)
		VALUES (?, ?, ?, ?)
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
		if _, err := stmt.ExecContext(ctx, b.collection, record.ID, serializeEmbedding(record.Vector), payloadJSON); err != nil {
			return fmt.Errorf("vectorstore: insert %s: %w", record.ID, err)
		}
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Search(ctx context.Context, queryVector []float32, limit int, expr filter.Expr) ([]SearchResult, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, embedding, payload FROM vectorstore_records WHERE collection = ? LIMIT ?
	`, b.collection, sqliteScanCap)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []SearchResult
	for rows.Next() {
		var id string
		var embeddingBlob []byte
		var payloadJSON []byte
		if err := rows.Scan(&id, &embeddingBlob, &payloadJSON); err != nil {
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

		score := cosineSimilarity(queryVector, deserializeEmbedding(embeddingBlob))
		candidates = append(candidates, SearchResult{ID: id, Score: score, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, id string) (*Record, error) {
	var embeddingBlob []byte
	var payloadJSON []byte
	err := b.db.QueryRowContext(ctx, `
		SELECT embedding, payload FROM vectorstore_records WHERE collection = ? AND id = ?
	`, b.collection, id).Scan(&embeddingBlob, &payloadJSON)
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
	return &Record{ID: id, Vector: deserializeEmbedding(embeddingBlob), Payload: payload}, nil
}

func (b *SQLiteBackend) Update(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if vector != nil {
		res, err := b.db.ExecContext(ctx, `
			UPDATE vectorstore_records SET embedding = ? WHERE collection = ? AND id = ?
		`, serializeEmbedding(vector), b.collection, id)
		if err := checkSQLiteResult(res, err, id); err != nil {
			return err
		}
	}
	if payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal payload: %w", err)
		}
		res, err := b.db.ExecContext(ctx, `
			UPDATE vectorstore_records SET payload = ? WHERE collection = ? AND id = ?
		`, payloadJSON, b.collection, id)
		return checkSQLiteResult(res, err, id)
	}
	return nil
}

func checkSQLiteResult(res sql.Result, err error, id string) error {
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

func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM vectorstore_records WHERE collection = ? AND id = ?`, b.collection, id)
	return checkSQLiteResult(res, err, id)
}

func (b *SQLiteBackend) List(ctx context.Context, expr filter.Expr, limit int) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, embedding, payload FROM vectorstore_records WHERE collection = ? LIMIT ?
	`, b.collection, sqliteScanCap)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var id string
		var embeddingBlob []byte
		var payloadJSON []byte
		if err := rows.Scan(&id, &embeddingBlob, &payloadJSON); err != nil {
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
		records = append(records, Record{ID: id, Vector: deserializeEmbedding(embeddingBlob), Payload: payload})
		if len(records) >= limit {
			break
		}
	}
	return records, rows.Err()
}

func (b *SQLiteBackend) ListCollections(ctx context.Context) ([]string, error) {
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

func (b *SQLiteBackend) DeleteCollection(ctx context.Context, name string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM vectorstore_records WHERE collection = ?`, name)
	if err != nil {
		return fmt.Errorf("vectorstore: delete collection %s: %w", name, err)
	}
	return nil
}

func (b *SQLiteBackend) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	var count uint64
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectorstore_records WHERE collection = ?`, name).Scan(&count)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("vectorstore: collection info: %w", err)
	}
	return CollectionInfo{Name: name, VectorCount: count, Dimension: b.dimension, Distance: DistanceCosine}, nil
}

func (b *SQLiteBackend) Reset(ctx context.Context) error {
	return b.DeleteCollection(ctx, b.collection)
}

func (b *SQLiteBackend) CollectionName() string { return b.collection }

func (b *SQLiteBackend) Close() error { return b.db.Close() }

// serializeEmbedding/deserializeEmbedding follow the same IEEE-754
// bit-conversion pattern as internal/storage/postgres, adapted from float64
// to float32 since pkg/filter and the llm package both standardize on
// float32 embeddings.
func serializeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(buf[i*4:], bits)
	}
	return buf
}

func deserializeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

// cosineSimilarity mirrors the search_provider.go scoring function,
// adapted to operate on float32 vectors directly.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
