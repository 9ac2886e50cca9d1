package retrieval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplexkg/internal/store"
)

const testUser = "u1"

// fakeEmbedder returns whatever vector was registered for a piece of text,
// so tests can control similarity deterministically instead of depending on
// a real model.
type fakeEmbedder struct {
	vectors map[string][]float32
	dims    int
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float32), dims: dims}
}

func (f *fakeEmbedder) set(text string, vec []float32) { f.vectors[text] = vec }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake" }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMatchVerticesRanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	emb := newFakeEmbedder(2)
	emb.set("Paris", []float32{1, 0})
	emb.set("Berlin", []float32{0.9, 0.1})
	emb.set("unrelated", []float32{0, 1})

	ks, err := store.NewKnowledgeStore(s, testUser, emb)
	require.NoError(t, err)
	ts := time.Now().UTC()
	_, err = ks.GetOrCreateVertex(context.Background(), "Paris", ts)
	require.NoError(t, err)
	_, err = ks.GetOrCreateVertex(context.Background(), "Berlin", ts)
	require.NoError(t, err)
	_, err = ks.GetOrCreateVertex(context.Background(), "unrelated", ts)
	require.NoError(t, err)

	emb.set("query", []float32{1, 0})
	r := New(s, testUser, emb)

	matched, err := r.MatchVertices(context.Background(), "query", 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "Paris", matched[0].Content)
	assert.Equal(t, "Berlin", matched[1].Content)
	assert.Greater(t, matched[0].Similarity, matched[1].Similarity)
}

func TestMatchVerticesRespectsTopK(t *testing.T) {
	s := newTestStore(t)
	emb := newFakeEmbedder(2)
	ks, err := store.NewKnowledgeStore(s, testUser, emb)
	require.NoError(t, err)
	ts := time.Now().UTC()
	for _, content := range []string{"a", "b", "c"} {
		emb.set(content, []float32{1, 0})
		_, err := ks.GetOrCreateVertex(context.Background(), content, ts)
		require.NoError(t, err)
	}

	emb.set("query", []float32{1, 0})
	r := New(s, testUser, emb)

	matched, err := r.MatchVertices(context.Background(), "query", 2, 0.0)
	require.NoError(t, err)
	assert.Len(t, matched, 2)
}

func TestRetrieveReturnsCofacesAndGaps(t *testing.T) {
	s := newTestStore(t)
	emb := newFakeEmbedder(2)
	ks, err := store.NewKnowledgeStore(s, testUser, emb)
	require.NoError(t, err)
	ts := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for _, content := range []string{"golang", "rust", "wasm"} {
		emb.set(content, []float32{1, 0})
		_, err := ks.GetOrCreateVertex(context.Background(), content, ts)
		require.NoError(t, err)
	}

	golangID, _ := ks.GetOrCreateVertex(context.Background(), "golang", ts)
	rustID, _ := ks.GetOrCreateVertex(context.Background(), "rust", ts)
	wasmID, _ := ks.GetOrCreateVertex(context.Background(), "wasm", ts)

	_, err = s.Insert(testUser, []int64{golangID, rustID, wasmID}, "temporal", map[string]interface{}{
		"window_start": "2026-01-01T09:00:00Z",
		"window_end":   "2026-01-01T09:05:00Z",
	})
	require.NoError(t, err)

	emb.set("query", []float32{1, 0})
	r := New(s, testUser, emb)

	result, err := r.Retrieve(context.Background(), "query", 10, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, result.Cofaces)
	assert.NotEmpty(t, result.KnowledgeGaps, "the pairwise faces of the triple were never directly inserted")

	out := FormatContext(result)
	assert.Contains(t, out, "Matched Entities")
	assert.Contains(t, out, "Co-occurrence Patterns")
	assert.Contains(t, out, "Knowledge Gaps")
}

func TestRetrieveWithSubsetMatchReturnsFullCofaceNotPartial(t *testing.T) {
	s := newTestStore(t)
	emb := newFakeEmbedder(2)
	ks, err := store.NewKnowledgeStore(s, testUser, emb)
	require.NoError(t, err)
	ts := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	emb.set("golang", []float32{0, 1})
	emb.set("rust", []float32{1, 0})
	emb.set("wasm", []float32{1, 0})

	golangID, err := ks.GetOrCreateVertex(context.Background(), "golang", ts)
	require.NoError(t, err)
	rustID, err := ks.GetOrCreateVertex(context.Background(), "rust", ts)
	require.NoError(t, err)
	wasmID, err := ks.GetOrCreateVertex(context.Background(), "wasm", ts)
	require.NoError(t, err)

	_, err = s.Insert(testUser, []int64{golangID, rustID, wasmID}, "temporal", map[string]interface{}{
		"window_start": "2026-01-01T09:00:00Z",
		"window_end":   "2026-01-01T09:05:00Z",
	})
	require.NoError(t, err)

	// query matches only rust and wasm: golang's embedding is orthogonal to
	// the query and scores below threshold, so the matched set is the
	// strict subset {rust, wasm} of the stored triple.
	emb.set("query", []float32{1, 0})
	r := New(s, testUser, emb)

	matched, err := r.MatchVertices(context.Background(), "query", 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matched, 2, "only rust and wasm should clear the similarity threshold")

	result, err := r.Retrieve(context.Background(), "query", 10, 0.5)
	require.NoError(t, err)

	require.Len(t, result.Cofaces, 1, "the matched set must surface exactly the one simplex containing all of it")
	coface := result.Cofaces[0]
	assert.ElementsMatch(t, []int64{golangID, rustID, wasmID}, coface.VertexIDs,
		"a coface of {rust, wasm} must contain both matched vertices, not just one (no any-of-matched-set leakage)")

	for _, c := range result.Cofaces {
		contains := func(id int64) bool {
			for _, v := range c.VertexIDs {
				if v == id {
					return true
				}
			}
			return false
		}
		assert.True(t, contains(rustID) && contains(wasmID),
			"every returned coface must contain the full matched set, never a partial per-vertex query result")
	}
}

func TestRetrieveWithNoMatchesReturnsEmptyResult(t *testing.T) {
	s := newTestStore(t)
	emb := newFakeEmbedder(2)
	r := New(s, testUser, emb)

	result, err := r.Retrieve(context.Background(), "nothing matches", 10, 0.9)
	require.NoError(t, err)
	assert.Empty(t, result.MatchedVertices)
	assert.Empty(t, result.Cofaces)
	assert.Equal(t, "", FormatContext(result))
}

func TestDetectGapsSkipsFullSimplexItself(t *testing.T) {
	s := newTestStore(t)
	emb := newFakeEmbedder(2)
	ks, err := store.NewKnowledgeStore(s, testUser, emb)
	require.NoError(t, err)
	ts := time.Now().UTC()

	a, _ := ks.GetOrCreateVertex(context.Background(), "a", ts)
	b, _ := ks.GetOrCreateVertex(context.Background(), "b", ts)

	_, err = s.Insert(testUser, []int64{a, b}, "temporal", nil)
	require.NoError(t, err)

	r := New(s, testUser, emb)
	gaps, err := r.DetectGaps([]Coface{{VertexIDs: []int64{a, b}, Type: "temporal"}})
	require.NoError(t, err)
	assert.Empty(t, gaps, "a directly-inserted pair must never be reported as a gap")
}
