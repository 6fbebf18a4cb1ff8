package graph

import (
	"context"

	"github.com/rookmemory/rook/pkg/types"
)

// Loader is the relational-store side of persistence sync: on startup, the
// graph asks the store for every row and reconstructs the in-memory arena
// and indices from them.
type Loader interface {
	LoadEntities(ctx context.Context) ([]types.Entity, error)
	LoadRelationships(ctx context.Context) ([]types.Relationship, error)
}

// LoadFrom rebuilds g from store, skipping relationships whose endpoints
// were not found among the loaded entities.
func (g *Graph) LoadFrom(ctx context.Context, store Loader) error {
	entities, err := store.LoadEntities(ctx)
	if err != nil {
		return err
	}
	for _, e := range entities {
		g.UpsertEntity(e)
	}

	rels, err := store.LoadRelationships(ctx)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		g.AddRelationship(rel)
	}
	return nil
}
