// Package retrieval answers natural-language queries against a user's
// knowledge graph: it matches the query's embedding against known vertices,
// pulls in the simplices those vertices participate in, and flags the
// subsets of those simplices that were never directly observed together.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"simplexkg/internal/embedding"
	"simplexkg/internal/logging"
	"simplexkg/internal/store"
)

// MatchedVertex is a vertex whose embedding scored above the similarity
// threshold against the query.
type MatchedVertex struct {
	VertexID   int64
	Content    string
	Similarity float64
	Meta       map[string]interface{}
}

// Coface is a simplex containing every matched vertex.
type Coface struct {
	VertexIDs []int64
	Type      string
	Meta      map[string]interface{}
}

// Relationship is one known (subject, predicate, object) edge among the
// context vertices.
type Relationship struct {
	Subject   string
	Predicate string
	Object    string
}

// Result is the full output of a Retrieve call.
type Result struct {
	MatchedVertices []MatchedVertex
	Cofaces         []Coface
	KnowledgeGaps   [][]int64
	ContextVertices map[int64]string
	Edges           []Relationship
}

// Retriever answers queries against one user's knowledge graph.
type Retriever struct {
	store    *store.Store
	userID   string
	embedder embedding.EmbeddingEngine
}

// New constructs a Retriever. embedder must be the same engine (or at least
// the same dimensionality) used to embed the vertices already in s, or
// every similarity score will be meaningless.
func New(s *store.Store, userID string, embedder embedding.EmbeddingEngine) *Retriever {
	return &Retriever{store: s, userID: userID, embedder: embedder}
}

// Retrieve runs the full pipeline: vertex matching, coface lookup, gap
// detection, and context assembly. A query with no matches above threshold
// returns a zero-value Result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64) (Result, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Retrieve")
	defer timer.Stop()

	matched, err := r.MatchVertices(ctx, query, topK, threshold)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return Result{}, nil
	}

	vertexIDs := make([]int64, len(matched))
	for i, m := range matched {
		vertexIDs[i] = m.VertexID
	}

	raw, err := r.store.LocateCofacesExact(r.userID, vertexIDs, true)
	if err != nil {
		return Result{}, fmt.Errorf("locate cofaces for matched vertices %v: %w", vertexIDs, err)
	}
	var cofaces []Coface
	for _, c := range raw {
		cofaces = append(cofaces, Coface{VertexIDs: c.VertexIDs, Type: c.Type, Meta: c.Meta})
	}

	allVertices := make(map[int64]struct{})
	for _, c := range cofaces {
		for _, v := range c.VertexIDs {
			allVertices[v] = struct{}{}
		}
	}

	gaps, err := r.DetectGaps(cofaces)
	if err != nil {
		return Result{}, err
	}

	contextVertices, err := r.vertexContents(allVertices)
	if err != nil {
		return Result{}, err
	}
	edges, err := r.edgesAmong(allVertices)
	if err != nil {
		return Result{}, err
	}

	return Result{
		MatchedVertices: matched,
		Cofaces:         cofaces,
		KnowledgeGaps:   gaps,
		ContextVertices: contextVertices,
		Edges:           edges,
	}, nil
}

// MatchVertices embeds query and scores it against every vertex belonging
// to userID via exact cosine similarity, returning the topK scoring at or
// above threshold, highest similarity first. No ANN index is used: a full
// scan is the explicit, documented tradeoff for this dataset scale.
func (r *Retriever) MatchVertices(ctx context.Context, query string, topK int, threshold float64) ([]MatchedVertex, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.store.ListVertices(r.userID)
	if err != nil {
		return nil, fmt.Errorf("list candidate vertices: %w", err)
	}

	var scored []MatchedVertex
	for _, v := range candidates {
		sim, err := embedding.CosineSimilarity(queryVec, v.Embedding)
		if err != nil {
			continue
		}
		if sim < threshold {
			continue
		}
		meta := map[string]interface{}{
			"first_seen": v.Meta.FirstSeen,
			"last_seen":  v.Meta.LastSeen,
			"frequency":  v.Meta.Frequency,
		}
		scored = append(scored, MatchedVertex{VertexID: v.VertexID, Content: v.Content, Similarity: sim, Meta: meta})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// DetectGaps enumerates every theoretical face of every coface and reports
// those that have no corresponding simplex in the tree — subsets of
// vertices that co-occur within a larger simplex but were never directly
// observed together on their own.
func (r *Retriever) DetectGaps(cofaces []Coface) ([][]int64, error) {
	var gaps [][]int64
	seen := make(map[string]bool)

	for _, c := range cofaces {
		if len(c.VertexIDs) < 2 {
			continue
		}
		for _, face := range store.EnumerateTheoreticalFaces(c.VertexIDs) {
			if len(face) < 2 {
				continue
			}
			key := sliceKey(face)
			if seen[key] {
				continue
			}
			seen[key] = true

			_, err := r.store.Search(r.userID, face)
			if err == store.ErrNotFound {
				gaps = append(gaps, face)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("search face %v: %w", face, err)
			}
		}
	}
	return gaps, nil
}

func (r *Retriever) vertexContents(vertexIDs map[int64]struct{}) (map[int64]string, error) {
	ids := make([]int64, 0, len(vertexIDs))
	for id := range vertexIDs {
		ids = append(ids, id)
	}
	contents, err := r.store.VertexContents(ids)
	if err != nil {
		return nil, fmt.Errorf("fetch context vertex contents: %w", err)
	}
	return contents, nil
}

func (r *Retriever) edgesAmong(vertexIDs map[int64]struct{}) ([]Relationship, error) {
	ids := make([]int64, 0, len(vertexIDs))
	for id := range vertexIDs {
		ids = append(ids, id)
	}
	triples, err := r.store.EdgesAmong(ids)
	if err != nil {
		return nil, fmt.Errorf("fetch edges among context vertices: %w", err)
	}
	out := make([]Relationship, len(triples))
	for i, t := range triples {
		out[i] = Relationship{Subject: t[0], Predicate: t[1], Object: t[2]}
	}
	return out, nil
}

func sliceKey(vs []int64) string {
	var b strings.Builder
	for _, v := range vs {
		fmt.Fprintf(&b, "%d,", v)
	}
	return b.String()
}
