// Package graph implements the in-memory Knowledge Graph: an arena-style
// directed graph of entities and typed weighted relationships, mirrored to
// a relational store.
package graph

import (
	"sync"

	"github.com/rookmemory/rook/internal/activation"
	"github.com/rookmemory/rook/pkg/types"
)

// node is the arena-held representation of an entity.
type node struct {
	entity types.Entity
	out    []types.Relationship
	in     []types.Relationship
}

// nameScopeKey is the secondary index key (name, scope).
type nameScopeKey struct {
	name  string
	scope types.Scope
}

// Graph is the in-memory directed graph: nodes indexed both by db_id and by
// (name, scope), edges stored as adjacency lists on each node. All mutating
// methods are serialized by mu; reads take mu's read lock, and Snapshot
// copies the outgoing edges for spreading activation.
type Graph struct {
	mu sync.RWMutex

	byID    map[int64]*node
	byName  map[nameScopeKey]*node
	nextID  int64
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		byID:   make(map[int64]*node),
		byName: make(map[nameScopeKey]*node),
		nextID: 1,
	}
}

// UpsertEntity inserts or updates an entity by (Name, Scope). If e.DBID is
// zero, a new id is assigned; the caller is expected to persist it to the
// relational store first and pass the resulting DBID back in for a
// consistent id space, but this in-memory path also works standalone (e.g.
// in tests) by self-assigning ids.
func (g *Graph) UpsertEntity(e types.Entity) types.Entity {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := nameScopeKey{name: e.Name, scope: e.Scope}
	if existing, ok := g.byName[key]; ok {
		existing.entity.EntityType = e.EntityType
		existing.entity.Properties = e.Properties
		existing.entity.IsSystem = e.IsSystem
		existing.entity.UpdatedAt = e.UpdatedAt
		return existing.entity
	}

	if e.DBID == 0 {
		e.DBID = g.nextID
		g.nextID++
	} else if e.DBID >= g.nextID {
		g.nextID = e.DBID + 1
	}

	n := &node{entity: e}
	g.byID[e.DBID] = n
	g.byName[key] = n
	return e
}

// GetByID returns the entity with the given db id.
func (g *Graph) GetByID(id int64) (types.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byID[id]
	if !ok {
		return types.Entity{}, false
	}
	return n.entity, true
}

// GetByNameScope returns the entity matching (name, scope) exactly.
func (g *Graph) GetByNameScope(name string, scope types.Scope) (types.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byName[nameScopeKey{name: name, scope: scope}]
	if !ok {
		return types.Entity{}, false
	}
	return n.entity, true
}

// AddRelationship inserts a directed edge, reflecting it into both
// endpoints' adjacency lists. On mismatch (an endpoint with no matching
// node in the arena), the edge is skipped.
func (g *Graph) AddRelationship(rel types.Relationship) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	source, ok := g.byID[rel.SourceID]
	if !ok {
		return false
	}
	target, ok := g.byID[rel.TargetID]
	if !ok {
		return false
	}

	source.out = append(source.out, rel)
	target.in = append(target.in, rel)
	return true
}

// Direction selects which adjacency list Neighbors walks.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Neighbors returns the relationships touching nodeID in direction dir,
// filtered to those whose far-end entity matches scope.
func (g *Graph) Neighbors(nodeID int64, dir Direction, scope types.Scope) []types.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.byID[nodeID]
	if !ok {
		return nil
	}

	var result []types.Relationship
	if dir == Outgoing || dir == Both {
		for _, rel := range n.out {
			if target, ok := g.byID[rel.TargetID]; ok && target.entity.Scope.Matches(scope) {
				result = append(result, rel)
			}
		}
	}
	if dir == Incoming || dir == Both {
		for _, rel := range n.in {
			if source, ok := g.byID[rel.SourceID]; ok && source.entity.Scope.Matches(scope) {
				result = append(result, rel)
			}
		}
	}
	return result
}

// DeleteAll removes every entity (and its incident edges) matching scope,
// cascading to incident edges. Returns the number of entities removed.
func (g *Graph) DeleteAll(scope types.Scope) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var toDelete []int64
	for id, n := range g.byID {
		if n.entity.Scope.Matches(scope) {
			toDelete = append(toDelete, id)
		}
	}

	deleteSet := make(map[int64]bool, len(toDelete))
	for _, id := range toDelete {
		deleteSet[id] = true
	}

	for id := range deleteSet {
		n := g.byID[id]
		delete(g.byID, id)
		delete(g.byName, nameScopeKey{name: n.entity.Name, scope: n.entity.Scope})
	}

	// Cascade: strip edges referencing any deleted node from the survivors.
	for _, n := range g.byID {
		n.out = filterEdges(n.out, deleteSet)
		n.in = filterEdges(n.in, deleteSet)
	}

	return len(toDelete)
}

func filterEdges(edges []types.Relationship, deleted map[int64]bool) []types.Relationship {
	kept := edges[:0]
	for _, e := range edges {
		if !deleted[e.SourceID] && !deleted[e.TargetID] {
			kept = append(kept, e)
		}
	}
	return kept
}

// Snapshot returns the adjacency view consumed by internal/activation's
// spreading-activation Spread function.
func (g *Graph) Snapshot() activation.GraphSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[int64][]activation.Edge, len(g.byID))
	for id, n := range g.byID {
		edges := make([]activation.Edge, 0, len(n.out))
		for _, rel := range n.out {
			edges = append(edges, activation.Edge{Source: id, Target: rel.TargetID, Weight: rel.Weight})
		}
		out[id] = edges
	}
	return activation.GraphSnapshot{OutEdges: out}
}
