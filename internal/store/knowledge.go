package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"simplexkg/internal/embedding"
	"simplexkg/internal/logging"
)

// KnowledgeStore owns the canonicalization cache and mediates all
// vertex/edge writes for one (user, extractor) pair. The cache is
// write-through: every mutation lands in the database before the in-memory
// map is updated.
type KnowledgeStore struct {
	store    *Store
	userID   string
	embedder embedding.EmbeddingEngine

	cacheMu sync.Mutex
	cache   map[string]int64 // canonical key -> vertex id
}

// NewKnowledgeStore loads the existing (content, vertex_id) pairs for
// userID into the cache, keyed by case-folded, trimmed content.
func NewKnowledgeStore(s *Store, userID string, embedder embedding.EmbeddingEngine) (*KnowledgeStore, error) {
	ks := &KnowledgeStore{
		store:    s,
		userID:   userID,
		embedder: embedder,
		cache:    make(map[string]int64),
	}

	s.mu.RLock()
	rows, err := s.db.Query(
		`SELECT vertex_id, content FROM user_knowledge_vertex WHERE user_id = ?`, userID,
	)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: load vertex cache: %v", ErrPersistence, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("%w: scan cached vertex: %v", ErrPersistence, err)
		}
		ks.cache[canonicalKey(content)] = id
		count++
	}
	logging.StoreDebug("knowledge store cache warmed with %d vertices for user=%s", count, userID)
	return ks, nil
}

func canonicalKey(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// GetOrCreateVertex resolves content to a vertex id, creating and
// embedding a new vertex on first observation and updating
// frequency/last_seen on every subsequent observation. The content column
// always retains the first-observed casing.
func (ks *KnowledgeStore) GetOrCreateVertex(ctx context.Context, content string, ts time.Time) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetOrCreateVertex")
	defer timer.Stop()

	key := canonicalKey(content)

	ks.cacheMu.Lock()
	id, hit := ks.cache[key]
	ks.cacheMu.Unlock()

	if hit {
		if err := ks.touchVertex(id, ts); err != nil {
			return 0, err
		}
		return id, nil
	}

	vec, err := ks.embedder.Embed(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("%w: embed vertex content: %v", ErrExtractionFromEmbed, err)
	}

	meta := VertexMeta{FirstSeen: ts, LastSeen: ts, Frequency: 1}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal vertex meta: %v", ErrPersistence, err)
	}
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal vertex embedding: %v", ErrPersistence, err)
	}

	ks.store.mu.Lock()
	res, err := ks.store.db.Exec(
		`INSERT INTO user_knowledge_vertex (user_id, content, embedding, meta_data) VALUES (?, ?, ?, ?)`,
		ks.userID, content, string(embJSON), string(metaJSON),
	)
	ks.store.mu.Unlock()
	if err != nil {
		// Another caller may have raced us to the same canonical key; re-check.
		if existing, lookupErr := ks.lookupVertexID(content); lookupErr == nil {
			ks.cacheMu.Lock()
			ks.cache[key] = existing
			ks.cacheMu.Unlock()
			return existing, ks.touchVertex(existing, ts)
		}
		return 0, fmt.Errorf("%w: insert vertex: %v", ErrPersistence, err)
	}
	newID, err := res.LastInsertId()
	if err != nil || newID == 0 {
		return 0, fmt.Errorf("%w: no vertex id returned", ErrPersistence)
	}

	ks.cacheMu.Lock()
	ks.cache[key] = newID
	ks.cacheMu.Unlock()

	return newID, nil
}

func (ks *KnowledgeStore) lookupVertexID(content string) (int64, error) {
	ks.store.mu.RLock()
	defer ks.store.mu.RUnlock()
	var id int64
	err := ks.store.db.QueryRow(
		`SELECT vertex_id FROM user_knowledge_vertex WHERE user_id = ? AND content = ?`,
		ks.userID, content,
	).Scan(&id)
	return id, err
}

// touchVertex advances frequency and last_seen for an already-known vertex.
func (ks *KnowledgeStore) touchVertex(id int64, ts time.Time) error {
	ks.store.mu.Lock()
	defer ks.store.mu.Unlock()

	var metaJSON string
	if err := ks.store.db.QueryRow(
		`SELECT meta_data FROM user_knowledge_vertex WHERE vertex_id = ?`, id,
	).Scan(&metaJSON); err != nil {
		return fmt.Errorf("%w: load vertex meta: %v", ErrPersistence, err)
	}

	var meta VertexMeta
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return fmt.Errorf("%w: decode vertex meta: %v", ErrPersistence, err)
	}
	meta.Frequency++
	if ts.After(meta.LastSeen) {
		meta.LastSeen = ts
	}

	updated, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal vertex meta: %v", ErrPersistence, err)
	}
	if _, err := ks.store.db.Exec(
		`UPDATE user_knowledge_vertex SET meta_data = ? WHERE vertex_id = ?`, string(updated), id,
	); err != nil {
		return fmt.Errorf("%w: update vertex meta: %v", ErrPersistence, err)
	}
	return nil
}

// CreateEdge is idempotent on (user_id, tail, head, predicate): a repeated
// call returns the existing edge id rather than inserting a duplicate row.
func (ks *KnowledgeStore) CreateEdge(tail, head int64, predicate string, ts time.Time) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateEdge")
	defer timer.Stop()

	ks.store.mu.Lock()
	defer ks.store.mu.Unlock()

	var existing int64
	err := ks.store.db.QueryRow(
		`SELECT edge_id FROM user_knowledge_edge WHERE user_id = ? AND tail_vertex = ? AND head_vertex = ? AND content = ?`,
		ks.userID, tail, head, predicate,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("%w: lookup existing edge: %v", ErrPersistence, err)
	}

	meta := EdgeMeta{CreatedAt: ts}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal edge meta: %v", ErrPersistence, err)
	}

	res, err := ks.store.db.Exec(
		`INSERT INTO user_knowledge_edge (user_id, tail_vertex, head_vertex, content, meta_data) VALUES (?, ?, ?, ?, ?)`,
		ks.userID, tail, head, predicate, string(metaJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert edge: %v", ErrPersistence, err)
	}
	newID, err := res.LastInsertId()
	if err != nil || newID == 0 {
		return 0, fmt.Errorf("%w: no edge id returned", ErrPersistence)
	}
	return newID, nil
}

// ErrExtractionFromEmbed wraps embedding failures surfaced while creating a
// vertex; it is distinct from ErrPersistence because the failure came from
// the extractor, not the database.
var ErrExtractionFromEmbed = fmt.Errorf("embedding failure")
