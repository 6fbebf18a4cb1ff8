package vectorstore

import "fmt"

// NewBackend builds the VectorBackend named by cfg.Provider (SPEC_FULL.md
// §4 "rook-vector-stores factory pattern"). Only postgres (pgvector) and
// sqlite have concrete implementations; the remaining provider constants are
// recognized but rejected with ErrUnsupportedProvider, matching the
// teacher's own "TODO: Implement in Phase N" partial-coverage convention
// rather than fabricating clients for services this module cannot reach.
func NewBackend(cfg Config) (VectorBackend, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "rook"
	}
	if cfg.EmbeddingDimension == 0 {
		cfg.EmbeddingDimension = DefaultEmbeddingDimension
	}

	switch cfg.Provider {
	case ProviderPostgres:
		return newPostgresBackend(cfg)
	case ProviderSQLite:
		return newSQLiteBackend(cfg)
	case ProviderLanceDB, ProviderSupabase, ProviderValkey, ProviderVertexAI:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
