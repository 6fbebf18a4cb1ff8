package graph

import (
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// BootstrapCategories idempotently inserts the default 10-item category
// taxonomy, linking children to parents via SUBCATEGORY_OF edges. Safe to
// call on every startup: UpsertEntity is a no-op for an already-present
// (name, scope) pair.
func (g *Graph) BootstrapCategories(now time.Time) {
	globalScope := types.Scope{}

	for _, cat := range types.DefaultCategories {
		g.UpsertEntity(types.Entity{
			Name:       cat.Name,
			EntityType: types.EntityTypeCategory,
			IsSystem:   true,
			Scope:      globalScope,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	for _, cat := range types.DefaultCategories {
		if cat.ParentName == "" {
			continue
		}
		child, ok := g.GetByNameScope(cat.Name, globalScope)
		if !ok {
			continue
		}
		parent, ok := g.GetByNameScope(cat.ParentName, globalScope)
		if !ok {
			continue
		}
		g.AddRelationship(types.Relationship{
			SourceID:  child.DBID,
			TargetID:  parent.DBID,
			Type:      types.RelSubcategoryOf,
			Weight:    1.0,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
}

// LinkMemoryToCategory records a BELONGS_TO_CATEGORY edge from a memory's
// synthetic entity node to the named category. Memories are addressed in
// the graph through a reserved entity whose Name equals the memory id and
// whose EntityType is "memory_ref"; callers create that reference node (if
// absent) before linking.
const EntityTypeMemoryRef = "memory_ref"

func (g *Graph) LinkMemoryToCategory(memoryID, category string, scope types.Scope, now time.Time) bool {
	ref := g.UpsertEntity(types.Entity{
		Name:       memoryID,
		EntityType: EntityTypeMemoryRef,
		Scope:      scope,
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	cat, ok := g.GetByNameScope(category, types.Scope{})
	if !ok {
		return false
	}

	return g.AddRelationship(types.Relationship{
		SourceID:  ref.DBID,
		TargetID:  cat.DBID,
		Type:      types.RelBelongsToCategory,
		Weight:    1.0,
		CreatedAt: now,
		UpdatedAt: now,
	})
}
