package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/rookmemory/rook/internal/storage"
	"github.com/rookmemory/rook/pkg/types"
)

// Traverse performs a multi-hop BFS through the entity relationship graph
// starting from startMemoryID and returns up to limit connected memories
// reachable within maxHops.
//
// Algorithm:
//  1. Look up entities for startMemoryID via memory_entities.
//     These seed entities form the hop-0 frontier.
//  2. BFS loop (hop = 1..maxHops):
//     a. Find memories connected to the current frontier entities.
//        These memories are at distance `hop` from the start.
//     b. Expand the frontier: query relationships from frontier entities
//        to obtain their neighbours (new, unvisited entities).
//        The neighbours become the frontier for the next iteration.
//  3. Fetch Memory objects for all discovered memory IDs.
//  4. Return sorted by hopDistance ASC, then retrieval strength DESC.
//
// Cycle detection: visitedEntities prevents re-visiting the same entity,
// and seenMemories prevents the same memory from appearing more than once.
func (s *MemoryStore) Traverse(ctx context.Context, startMemoryID string, maxHops int, limit int) ([]storage.TraversalResult, error) {
	if startMemoryID == "" {
		return nil, fmt.Errorf("sqlite: Traverse: startMemoryID is required")
	}
	if maxHops < 1 {
		maxHops = 2
	}
	if limit < 1 {
		limit = 10
	}

	db := s.GetDB()

	// --- Step 1: seed entities from the start memory (hop-0 frontier) ---
	startEntities, err := s.getEntityIDsForMemory(ctx, db, startMemoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: Traverse: seed entities: %w", err)
	}
	if len(startEntities) == 0 {
		return nil, nil // no entities → no traversal possible
	}

	// Track visited entities to avoid cycles.
	visitedEntities := make(map[int64]bool, len(startEntities))
	for _, eid := range startEntities {
		visitedEntities[eid] = true
	}

	// Track discovered memories: memoryID → (hopDistance, sharedEntityNames).
	type discovered struct {
		hop   int
		names []string
	}
	foundMemories := make(map[string]discovered)

	// Track the start memory so we never include it in results.
	seenMemories := map[string]bool{startMemoryID: true}

	// entityNameCache maps entity IDs to their display names.
	// Pre-populate with names of the seed entities.
	entityNameCache, err := s.getEntityNamesByIDs(ctx, db, startEntities)
	if err != nil {
		return nil, fmt.Errorf("sqlite: Traverse: seed entity names: %w", err)
	}

	// --- Step 2: BFS ---
	// frontier holds the entity IDs whose memories we will surface at this hop.
	frontier := startEntities

	for hop := 1; hop <= maxHops; hop++ {
		if len(frontier) == 0 {
			break
		}

		// 2a. Discover memories connected to the current frontier entities.
		//     These memories are reachable in exactly `hop` steps.
		for _, eid := range frontier {
			memIDs, err := s.getMemoryIDsForEntity(ctx, db, eid)
			if err != nil {
				return nil, fmt.Errorf("sqlite: Traverse hop %d entity %d: %w", hop, eid, err)
			}
			// Look up entity name for display (cache to avoid redundant queries).
			name := entityNameCache[eid]
			if name == "" {
				name = strconv.FormatInt(eid, 10) // fallback to ID
			}
			for _, mid := range memIDs {
				if seenMemories[mid] {
					continue
				}
				seenMemories[mid] = true
				existing := foundMemories[mid]
				if existing.hop == 0 {
					existing.hop = hop
				}
				existing.names = append(existing.names, name)
				foundMemories[mid] = existing
			}
		}

		// 2b. Expand frontier: find entities reachable via relationships from
		//     the current frontier (both directions). These become the next frontier.
		neighbourEntities, entityNames, err := s.getNeighbourEntities(ctx, db, frontier, visitedEntities)
		if err != nil {
			return nil, fmt.Errorf("sqlite: Traverse hop %d expand: %w", hop, err)
		}

		// Cache entity names returned by the expansion.
		for id, name := range entityNames {
			entityNameCache[id] = name
		}

		// Mark newly found entities as visited.
		for _, eid := range neighbourEntities {
			visitedEntities[eid] = true
		}

		// Advance the frontier for the next hop.
		frontier = neighbourEntities
	}

	if len(foundMemories) == 0 {
		return nil, nil
	}

	// --- Step 3: Fetch Memory objects ---
	memIDs := make([]string, 0, len(foundMemories))
	for mid := range foundMemories {
		memIDs = append(memIDs, mid)
	}

	memories, err := s.getMemoriesByIDs(ctx, memIDs)
	if err != nil {
		return nil, fmt.Errorf("sqlite: Traverse: fetch memories: %w", err)
	}

	// --- Step 4: Build and sort results ---
	results := make([]storage.TraversalResult, 0, len(memories))
	for _, mem := range memories {
		d := foundMemories[mem.ID]
		memCopy := mem // avoid loop variable capture
		results = append(results, storage.TraversalResult{
			Memory:         &memCopy,
			HopDistance:    d.hop,
			SharedEntities: uniqueStrings(d.names),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].HopDistance != results[j].HopDistance {
			return results[i].HopDistance < results[j].HopDistance
		}
		// Higher retrieval strength is "more important".
		return results[i].Memory.DualStrength.RetrievalStrength > results[j].Memory.DualStrength.RetrievalStrength
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// GetMemoryEntities returns the entities associated with a specific memory.
func (s *MemoryStore) GetMemoryEntities(ctx context.Context, memoryID string) ([]*types.Entity, error) {
	if memoryID == "" {
		return nil, fmt.Errorf("sqlite: GetMemoryEntities: memoryID is required")
	}

	query := `
		SELECT e.id, e.name, e.entity_type, e.properties,
		       e.scope_user_id, e.scope_agent_id, e.scope_run_id,
		       e.is_system, e.created_at, e.updated_at
		FROM entities e
		JOIN memory_entities me ON e.id = me.entity_id
		WHERE me.memory_id = ?
		ORDER BY e.name ASC
	`

	rows, err := s.GetDB().QueryContext(ctx, query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetMemoryEntities: %w", err)
	}
	defer rows.Close()

	var entities []*types.Entity
	for rows.Next() {
		e := &types.Entity{}
		var propsJSON sql.NullString
		var scopeUserID, scopeAgentID, scopeRunID sql.NullString
		var isSystem bool
		if err := rows.Scan(&e.DBID, &e.Name, &e.EntityType, &propsJSON,
			&scopeUserID, &scopeAgentID, &scopeRunID,
			&isSystem, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: GetMemoryEntities scan: %w", err)
		}
		if propsJSON.Valid && propsJSON.String != "" {
			if err := json.Unmarshal([]byte(propsJSON.String), &e.Properties); err != nil {
				return nil, fmt.Errorf("sqlite: GetMemoryEntities unmarshal properties: %w", err)
			}
		}
		e.Scope = types.Scope{UserID: scopeUserID.String, AgentID: scopeAgentID.String, RunID: scopeRunID.String}
		e.IsSystem = isSystem
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: GetMemoryEntities rows: %w", err)
	}
	return entities, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// getEntityNamesByIDs returns a map of entityID → name for the given IDs.
func (s *MemoryStore) getEntityNamesByIDs(ctx context.Context, db *sql.DB, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return make(map[int64]string), nil
	}
	inClause := buildInClause(len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, name FROM entities WHERE id IN (%s)", inClause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		result[id] = name
	}
	return result, rows.Err()
}

// getEntityIDsForMemory returns all entity IDs linked to the given memory.
func (s *MemoryStore) getEntityIDsForMemory(ctx context.Context, db *sql.DB, memoryID string) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT entity_id FROM memory_entities WHERE memory_id = ?`, memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// getNeighbourEntities returns entity IDs reachable from the given frontier
// entities via the relationships table (both directions), excluding already-
// visited entity IDs.
// It also returns a name map so callers can track which entity was the bridge.
func (s *MemoryStore) getNeighbourEntities(ctx context.Context, db *sql.DB, frontier []int64, visited map[int64]bool) ([]int64, map[int64]string, error) {
	if len(frontier) == 0 {
		return nil, nil, nil
	}

	// Build placeholder list for IN clause.
	placeholders := make([]interface{}, len(frontier))
	for i, id := range frontier {
		placeholders[i] = id
	}
	inClause := buildInClause(len(frontier))

	// Query relationships in both directions (source→target and target→source).
	query := fmt.Sprintf(`
		SELECT r.source_id, r.target_id,
		       COALESCE(e_src.name, '') AS source_name,
		       COALESCE(e_tgt.name, '') AS target_name
		FROM relationships r
		LEFT JOIN entities e_src ON e_src.id = r.source_id
		LEFT JOIN entities e_tgt ON e_tgt.id = r.target_id
		WHERE r.source_id IN (%s) OR r.target_id IN (%s)
	`, inClause, inClause)

	// Double the placeholders: once for source_id IN, once for target_id IN.
	args := append(placeholders, placeholders...)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	// Build a set of frontier IDs for quick lookup.
	frontierSet := make(map[int64]bool, len(frontier))
	for _, id := range frontier {
		frontierSet[id] = true
	}

	newEntities := make(map[int64]string) // entityID → name (bridge entity name)
	for rows.Next() {
		var srcID, tgtID int64
		var srcName, tgtName string
		if err := rows.Scan(&srcID, &tgtID, &srcName, &tgtName); err != nil {
			return nil, nil, err
		}

		// If source is in frontier, add target as neighbour and vice versa.
		if frontierSet[srcID] && !visited[tgtID] {
			newEntities[tgtID] = srcName
		}
		if frontierSet[tgtID] && !visited[srcID] {
			newEntities[srcID] = tgtName
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	ids := make([]int64, 0, len(newEntities))
	for id := range newEntities {
		ids = append(ids, id)
	}
	return ids, newEntities, nil
}

// getMemoryIDsForEntity returns all memory IDs linked to the given entity.
func (s *MemoryStore) getMemoryIDsForEntity(ctx context.Context, db *sql.DB, entityID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT memory_id FROM memory_entities WHERE entity_id = ?`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// getMemoriesByIDs fetches Memory objects for a list of IDs.
// Soft-deleted memories are excluded.
func (s *MemoryStore) getMemoriesByIDs(ctx context.Context, ids []string) ([]types.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	inClause := buildInClause(len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("SELECT "+memoryColumns+" FROM memories WHERE id IN (%s) AND deleted_at IS NULL", inClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// buildInClause returns a comma-separated string of n "?" placeholders.
func buildInClause(n int) string {
	if n == 0 {
		return ""
	}
	clause := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			clause = append(clause, ',')
		}
		clause = append(clause, '?')
	}
	return string(clause)
}

// uniqueStrings deduplicates a string slice while preserving order.
func uniqueStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
