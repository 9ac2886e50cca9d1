package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"simplexkg/internal/logging"
)

// Search resolves the terminal node id of the simplex formed by vs, if the
// full path already exists. vs need not be sorted; an empty vs returns
// ErrNotFound. Complexity O(j log n) via the sibling index.
func (s *Store) Search(userID string, vs []int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTx(s.db, userID, vs)
}

func (s *Store) searchTx(q querier, userID string, vs []int64) (int64, error) {
	if len(vs) == 0 {
		return 0, ErrNotFound
	}
	sorted := sortedCopy(vs)

	var parent *int64
	for _, v := range sorted {
		node, err := findChild(q, userID, parent, v)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("%w: search child lookup: %v", ErrPersistence, err)
		}
		parent = &node
	}
	return *parent, nil
}

// Insert walks (and extends) the trie for vs, creating any missing nodes
// with the given type/meta. Nodes that already existed are left untouched
// — insert never overwrites a prior terminal node's type/meta. Returns the
// terminal node id. The whole walk-and-create happens inside one
// transaction, all-or-nothing.
func (s *Store) Insert(userID string, vs []int64, typ string, meta map[string]interface{}) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Insert")
	defer timer.Stop()

	if len(vs) == 0 {
		return 0, fmt.Errorf("%w: cannot insert an empty simplex", ErrInvalidSimplex)
	}
	sorted := sortedCopy(vs)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal simplex meta: %v", ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	var parent *int64
	depth := 0
	for _, v := range sorted {
		depth++
		node, err := findChild(tx, userID, parent, v)
		if err == nil {
			parent = &node
			continue
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("%w: insert child lookup: %v", ErrPersistence, err)
		}

		res, err := tx.Exec(
			`INSERT INTO simplex_vertex (user_id, parent_id, vertex_id, depth, type, meta_data)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, parent, v, depth, typ, string(metaJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("%w: insert simplex node: %v", ErrPersistence, err)
		}
		newID, err := res.LastInsertId()
		if err != nil || newID == 0 {
			return 0, fmt.Errorf("%w: no node id returned for inserted simplex node", ErrPersistence)
		}
		parent = &newID
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit simplex insert: %v", ErrPersistence, err)
	}
	return *parent, nil
}

// LocateCofaces returns every simplex σ with vs ⊆ σ. maxExtraDepth bounds
// subtree descent past the exact match: nil means unlimited, 0 means
// exact-match only (no super-simplices beyond vs itself are descended
// into). An empty vs returns an empty (nil) result, never an error.
func (s *Store) LocateCofaces(userID string, vs []int64, includeMetadata bool, maxExtraDepth *int) ([]Simplex, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LocateCofaces")
	defer timer.Stop()

	if len(vs) == 0 {
		return nil, nil
	}
	sorted := sortedCopy(vs)
	lastVertex := sorted[len(sorted)-1]
	minDepth := len(sorted)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT node_id, type, meta_data FROM simplex_vertex
		 WHERE user_id = ? AND vertex_id = ? AND depth >= ?`,
		userID, lastVertex, minDepth,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: coface candidate scan: %v", ErrPersistence, err)
	}
	defer rows.Close()

	type candidate struct {
		nodeID   int64
		typ      string
		metaJSON string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.nodeID, &c.typ, &c.metaJSON); err != nil {
			return nil, fmt.Errorf("%w: scan coface candidate: %v", ErrPersistence, err)
		}
		candidates = append(candidates, c)
	}

	var result []Simplex
	for _, c := range candidates {
		path, err := s.collectPath(c.nodeID)
		if err != nil {
			return nil, err
		}
		if !isSubsequence(sorted, path) {
			continue
		}

		meta, err := decodeMeta(c.metaJSON)
		if err != nil {
			return nil, err
		}
		result = append(result, Simplex{VertexIDs: path, NodeID: c.nodeID, Type: c.typ, Meta: meta})

		descendants, err := s.collectSubtree(c.nodeID, path, maxExtraDepth, 0, includeMetadata)
		if err != nil {
			return nil, err
		}
		result = append(result, descendants...)
	}
	_ = includeMetadata // Type/Meta are always populated; callers that don't need them simply ignore the fields.
	return result, nil
}

// LocateCofacesExact is LocateCofaces with extra depth bounded to 0: only
// the exact match and nodes already containing vs are returned, no descent
// into strictly larger super-simplices beyond the matched candidates.
func (s *Store) LocateCofacesExact(userID string, vs []int64, includeMetadata bool) ([]Simplex, error) {
	zero := 0
	return s.LocateCofaces(userID, vs, includeMetadata, &zero)
}

func (s *Store) collectPath(nodeID int64) ([]int64, error) {
	var path []int64
	current := sql.NullInt64{Int64: nodeID, Valid: true}
	for current.Valid {
		var vertexID int64
		var parentID sql.NullInt64
		err := s.db.QueryRow(
			`SELECT vertex_id, parent_id FROM simplex_vertex WHERE node_id = ?`,
			current.Int64,
		).Scan(&vertexID, &parentID)
		if err != nil {
			return nil, fmt.Errorf("%w: collect path for node %d: %v", ErrPersistence, current.Int64, err)
		}
		path = append(path, vertexID)
		current = parentID
	}
	// reverse (root-to-self order)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (s *Store) collectSubtree(rootID int64, rootVerts []int64, maxExtraDepth *int, currentExtraDepth int, includeMetadata bool) ([]Simplex, error) {
	if maxExtraDepth != nil && currentExtraDepth >= *maxExtraDepth {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT node_id, vertex_id, type, meta_data FROM simplex_vertex WHERE parent_id = ?`,
		rootID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: collect subtree children: %v", ErrPersistence, err)
	}
	type child struct {
		nodeID   int64
		vertexID int64
		typ      string
		metaJSON string
	}
	var children []child
	for rows.Next() {
		var c child
		if err := rows.Scan(&c.nodeID, &c.vertexID, &c.typ, &c.metaJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan subtree child: %v", ErrPersistence, err)
		}
		children = append(children, c)
	}
	rows.Close()

	var result []Simplex
	for _, c := range children {
		childVerts := append(append([]int64{}, rootVerts...), c.vertexID)
		meta, err := decodeMeta(c.metaJSON)
		if err != nil {
			return nil, err
		}
		result = append(result, Simplex{VertexIDs: childVerts, NodeID: c.nodeID, Type: c.typ, Meta: meta})

		nested, err := s.collectSubtree(c.nodeID, childVerts, maxExtraDepth, currentExtraDepth+1, includeMetadata)
		if err != nil {
			return nil, err
		}
		result = append(result, nested...)
	}
	return result, nil
}

// RemoveSimplex removes the node for vs. If removeCofaces is false and the
// node has children, it returns ErrHasCofaces and removes nothing. If the
// simplex does not exist, it returns (false, nil) — not-found is a value,
// not an error, for this operation too (matching search's convention, but
// remove additionally reports whether a removal happened).
func (s *Store) RemoveSimplex(userID string, vs []int64, removeCofaces bool) (bool, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RemoveSimplex")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	nodeID, err := s.searchTx(s.db, userID, vs)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	descendants, err := collectDescendantIDs(tx, nodeID)
	if err != nil {
		return false, err
	}

	if len(descendants) > 0 {
		if !removeCofaces {
			return false, fmt.Errorf("%w: node %d has %d cofaces", ErrHasCofaces, nodeID, len(descendants))
		}
		for _, id := range descendants {
			if _, err := tx.Exec(`DELETE FROM simplex_vertex WHERE node_id = ?`, id); err != nil {
				return false, fmt.Errorf("%w: delete descendant %d: %v", ErrPersistence, id, err)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM simplex_vertex WHERE node_id = ?`, nodeID); err != nil {
		return false, fmt.Errorf("%w: delete node %d: %v", ErrPersistence, nodeID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit removal: %v", ErrPersistence, err)
	}
	return true, nil
}

// collectDescendantIDs gathers every transitive child of rootID, top-down,
// via repeated child-id queries — application-side cascade rather than
// ON DELETE CASCADE, so foreign-key enforcement stays on for vertex/edge
// references without also cascading simplex-tree structure through SQL.
func collectDescendantIDs(q querier, rootID int64) ([]int64, error) {
	var all []int64
	frontier := []int64{rootID}
	for len(frontier) > 0 {
		var next []int64
		for _, parent := range frontier {
			rows, err := q.Query(`SELECT node_id FROM simplex_vertex WHERE parent_id = ?`, parent)
			if err != nil {
				return nil, fmt.Errorf("%w: collect descendants of %d: %v", ErrPersistence, parent, err)
			}
			for rows.Next() {
				var id int64
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return nil, fmt.Errorf("%w: scan descendant id: %v", ErrPersistence, err)
				}
				next = append(next, id)
			}
			rows.Close()
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

// EnumerateTheoreticalFaces returns every non-empty subset of vs, each
// itself sorted ascending. Pure function: 2^|vs|-1 subsets, used by gap
// detection. Complexity O(2^j).
func EnumerateTheoreticalFaces(vs []int64) [][]int64 {
	sorted := sortedCopy(vs)
	n := len(sorted)
	if n == 0 {
		return nil
	}
	faces := make([][]int64, 0, (1<<uint(n))-1)
	for mask := 1; mask < (1 << uint(n)); mask++ {
		var face []int64
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				face = append(face, sorted[i])
			}
		}
		faces = append(faces, face)
	}
	return faces
}

// isSubsequence reports whether needle (already sorted) appears, in order,
// within haystack. Because vertex ids within a path are strictly
// increasing, "is a subsequence of" and "is a subset of" coincide here, so
// a two-pointer walk suffices — no backtracking or hash set needed.
func isSubsequence(needle, haystack []int64) bool {
	i := 0
	for _, v := range haystack {
		if i == len(needle) {
			break
		}
		if needle[i] == v {
			i++
		}
	}
	return i == len(needle)
}

func sortedCopy(vs []int64) []int64 {
	out := append([]int64{}, vs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func decodeMeta(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("%w: decode simplex meta: %v", ErrPersistence, err)
	}
	return meta, nil
}

// querier abstracts over *sql.DB and *sql.Tx for helpers shared by both.
type querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// findChild resolves the child of parent (nil meaning root level) with the
// given vertexID within userID's partition.
func findChild(q querier, userID string, parent *int64, vertexID int64) (int64, error) {
	var row *sql.Row
	if parent == nil {
		row = q.QueryRow(
			`SELECT node_id FROM simplex_vertex WHERE user_id = ? AND parent_id IS NULL AND vertex_id = ?`,
			userID, vertexID,
		)
	} else {
		row = q.QueryRow(
			`SELECT node_id FROM simplex_vertex WHERE user_id = ? AND parent_id = ? AND vertex_id = ?`,
			userID, *parent, vertexID,
		)
	}
	var nodeID int64
	if err := row.Scan(&nodeID); err != nil {
		return 0, err
	}
	return nodeID, nil
}
