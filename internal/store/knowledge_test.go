package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed-dimension zero vector regardless of input,
// deterministic embed calls, and counts how many times Embed was invoked.
type stubEmbedder struct {
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{0, 0, 0, 0}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return 4 }
func (e *stubEmbedder) Name() string    { return "stub" }

func newTestKnowledgeStore(t *testing.T, s *Store) (*KnowledgeStore, *stubEmbedder) {
	t.Helper()
	emb := &stubEmbedder{}
	ks, err := NewKnowledgeStore(s, testUser, emb)
	require.NoError(t, err)
	return ks, emb
}

func TestCanonicalizationIsIdempotentAcrossCasing(t *testing.T) {
	s := newTestStore(t)
	ks, emb := newTestKnowledgeStore(t, s)
	ctx := context.Background()

	t1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	id1, err := ks.GetOrCreateVertex(ctx, "Paris", t1)
	require.NoError(t, err)

	id2, err := ks.GetOrCreateVertex(ctx, "paris", t2)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "case-insensitive content must resolve to the same vertex")
	assert.Equal(t, 1, emb.calls, "a known canonical key must not be re-embedded")

	var content string
	var metaJSON string
	s.mu.RLock()
	err = s.db.QueryRow(`SELECT content, meta_data FROM user_knowledge_vertex WHERE vertex_id = ?`, id1).
		Scan(&content, &metaJSON)
	s.mu.RUnlock()
	require.NoError(t, err)

	assert.Equal(t, "Paris", content, "first-observed casing must be preserved")

	var meta VertexMeta
	require.NoError(t, json.Unmarshal([]byte(metaJSON), &meta))
	assert.Equal(t, 2, meta.Frequency)
	assert.True(t, meta.LastSeen.Equal(t2))
	assert.True(t, meta.FirstSeen.Equal(t1))
}

func TestTouchVertexNeverMovesLastSeenBackwards(t *testing.T) {
	s := newTestStore(t)
	ks, _ := newTestKnowledgeStore(t, s)
	ctx := context.Background()

	later := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := ks.GetOrCreateVertex(ctx, "golang", later)
	require.NoError(t, err)
	_, err = ks.GetOrCreateVertex(ctx, "golang", earlier)
	require.NoError(t, err)

	var metaJSON string
	s.mu.RLock()
	err = s.db.QueryRow(`SELECT meta_data FROM user_knowledge_vertex WHERE vertex_id = ?`, id).Scan(&metaJSON)
	s.mu.RUnlock()
	require.NoError(t, err)

	var meta VertexMeta
	require.NoError(t, json.Unmarshal([]byte(metaJSON), &meta))
	assert.True(t, meta.LastSeen.Equal(later), "last_seen must be monotonically non-decreasing")
	assert.Equal(t, 2, meta.Frequency)
}

func TestCreateEdgeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ks, _ := newTestKnowledgeStore(t, s)
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	v1, err := ks.GetOrCreateVertex(ctx, "Paris", ts)
	require.NoError(t, err)
	v2, err := ks.GetOrCreateVertex(ctx, "France", ts)
	require.NoError(t, err)

	e1, err := ks.CreateEdge(v1, v2, "located_in", ts)
	require.NoError(t, err)
	e2, err := ks.CreateEdge(v1, v2, "located_in", ts.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, e1, e2)

	var count int
	s.mu.RLock()
	err = s.db.QueryRow(`SELECT COUNT(*) FROM user_knowledge_edge WHERE user_id = ? AND tail_vertex = ? AND head_vertex = ?`,
		testUser, v1, v2).Scan(&count)
	s.mu.RUnlock()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a repeated edge creation must not add a duplicate row")
}

func TestDistinctPredicatesProduceDistinctEdges(t *testing.T) {
	s := newTestStore(t)
	ks, _ := newTestKnowledgeStore(t, s)
	ctx := context.Background()
	ts := time.Now().UTC()

	v1, err := ks.GetOrCreateVertex(ctx, "Alice", ts)
	require.NoError(t, err)
	v2, err := ks.GetOrCreateVertex(ctx, "Acme Corp", ts)
	require.NoError(t, err)

	e1, err := ks.CreateEdge(v1, v2, "works_at", ts)
	require.NoError(t, err)
	e2, err := ks.CreateEdge(v1, v2, "founded", ts)
	require.NoError(t, err)

	assert.NotEqual(t, e1, e2)
}

func TestKnowledgeStoreCacheWarmsFromExistingRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	ks1, _ := newTestKnowledgeStore(t, s)
	id, err := ks1.GetOrCreateVertex(ctx, "Tokyo", ts)
	require.NoError(t, err)

	ks2, emb2 := newTestKnowledgeStore(t, s)
	id2, err := ks2.GetOrCreateVertex(ctx, "tokyo", ts)
	require.NoError(t, err)

	assert.Equal(t, id, id2)
	assert.Zero(t, emb2.calls, "a vertex loaded from the warm cache must never be re-embedded")
}
