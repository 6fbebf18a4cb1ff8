// Package vectorstore is the Vector backend collaborator contract: a small
// VectorBackend interface plus a provider-keyed factory, mirroring the
// teacher's own
// storage.SearchProvider "partial coverage, named TODO" convention for the
// providers this module's dependency set cannot back without fabricating a
// client.
package vectorstore

import (
	"context"

	"github.com/rookmemory/rook/pkg/filter"
)

// DistanceMetric is the similarity metric a collection is indexed on.
type DistanceMetric string

const (
	DistanceCosine     DistanceMetric = "cosine"
	DistanceEuclidean  DistanceMetric = "euclidean"
	DistanceDotProduct DistanceMetric = "dot_product"
)

// Record is a vector plus its payload, as stored in a backend.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is a Record ranked by similarity to a query vector.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo describes a backend collection.
type CollectionInfo struct {
	Name        string
	VectorCount uint64
	Dimension   int
	Distance    DistanceMetric
}

// Provider identifies a vector backend implementation. Only Postgres and
// SQLite have concrete Go implementations in this module (see DESIGN.md for
// why the remaining provider slots are documented but unimplemented).
type Provider string

const (
	ProviderPostgres Provider = "postgres"
	ProviderSQLite   Provider = "sqlite"
	ProviderLanceDB  Provider = "lancedb"
	ProviderSupabase Provider = "supabase"
	ProviderValkey   Provider = "valkey"
	ProviderVertexAI Provider = "vertex_ai"
)

// Config selects and configures a VectorBackend.
type Config struct {
	Provider           Provider
	CollectionName     string
	EmbeddingDimension int

	// Postgres
	DSN string
	// SQLite
	Path string
}

// DefaultEmbeddingDimension is the standard dimensionality (OpenAI
// text-embedding-3-small / ada-002).
const DefaultEmbeddingDimension = 1536

// VectorBackend is the collaborator contract every vector store
// implementation satisfies.
type VectorBackend interface {
	CreateCollection(ctx context.Context, name string, dimension int, distance DistanceMetric) error
	Insert(ctx context.Context, records []Record) error
	Search(ctx context.Context, queryVector []float32, limit int, expr filter.Expr) ([]SearchResult, error)
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, vector []float32, payload map[string]any) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, expr filter.Expr, limit int) ([]Record, error)
	ListCollections(ctx context.Context) ([]string, error)
	DeleteCollection(ctx context.Context, name string) error
	CollectionInfo(ctx context.Context, name string) (CollectionInfo, error)
	Reset(ctx context.Context) error
	CollectionName() string
	Close() error
}
