package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ListVertices returns every vertex belonging to userID, for retrieval's
// brute-force similarity scan.
func (s *Store) ListVertices(userID string) ([]Vertex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT vertex_id, content, embedding, meta_data FROM user_knowledge_vertex WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list vertices: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []Vertex
	for rows.Next() {
		var v Vertex
		var embJSON, metaJSON string
		if err := rows.Scan(&v.VertexID, &v.Content, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: scan vertex: %v", ErrPersistence, err)
		}
		if err := json.Unmarshal([]byte(embJSON), &v.Embedding); err != nil {
			return nil, fmt.Errorf("%w: decode vertex embedding: %v", ErrPersistence, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &v.Meta); err != nil {
			return nil, fmt.Errorf("%w: decode vertex meta: %v", ErrPersistence, err)
		}
		v.UserID = userID
		out = append(out, v)
	}
	return out, nil
}

// VertexContents returns the content string for every id in vertexIDs that
// exists. Missing ids are simply absent from the result.
func (s *Store) VertexContents(vertexIDs []int64) (map[int64]string, error) {
	if len(vertexIDs) == 0 {
		return map[int64]string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vertexIDs)), ",")
	args := make([]interface{}, len(vertexIDs))
	for i, id := range vertexIDs {
		args[i] = id
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT vertex_id, content FROM user_knowledge_vertex WHERE vertex_id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch vertex contents: %v", ErrPersistence, err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("%w: scan vertex content: %v", ErrPersistence, err)
		}
		out[id] = content
	}
	return out, nil
}

// EdgesAmong returns every edge whose tail and head are both within
// vertexIDs, rendered as (subject content, predicate, object content)
// triples.
func (s *Store) EdgesAmong(vertexIDs []int64) ([][3]string, error) {
	if len(vertexIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vertexIDs)), ",")
	args := make([]interface{}, 0, len(vertexIDs)*2)
	for _, id := range vertexIDs {
		args = append(args, id)
	}
	for _, id := range vertexIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT v1.content, e.content, v2.content
		FROM user_knowledge_edge e
		JOIN user_knowledge_vertex v1 ON e.tail_vertex = v1.vertex_id
		JOIN user_knowledge_vertex v2 ON e.head_vertex = v2.vertex_id
		WHERE e.tail_vertex IN (%s) AND e.head_vertex IN (%s)`, placeholders, placeholders)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch edges among vertices: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out [][3]string
	for rows.Next() {
		var subj, pred, obj string
		if err := rows.Scan(&subj, &pred, &obj); err != nil {
			return nil, fmt.Errorf("%w: scan edge triple: %v", ErrPersistence, err)
		}
		out = append(out, [3]string{subj, pred, obj})
	}
	return out, nil
}
