// Package witness constructs simplices dynamically from a stream of
// activity entries, without ever materializing a batch witness set. Two
// independent witnesses run side by side: a rolling temporal window and a
// per-location vertex accumulator.
package witness

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"simplexkg/internal/logging"
	"simplexkg/internal/store"
)

const minSimplexSize = 2

// Builder is the dynamic witness complex builder. AddEntry and Finalize
// serialize on an internal mutex; callers feed entries through a single
// ingest loop, matching the single-writer discipline of the underlying
// store.
type Builder struct {
	tree          *store.Store
	userID        string
	windowMinutes int

	mu sync.Mutex

	temporalVertices map[int64]struct{}
	windowStart      time.Time
	windowEnd        time.Time
	windowOpen       bool

	locationVertices   map[string]map[int64]struct{}
	locationTimestamps map[string][]time.Time
	// locationSimplexIDs tracks the most recent node id inserted per
	// location. The old simplex is never removed before the updated one is
	// inserted — duplicate prior simplices accumulate in the tree as the
	// location set grows across calls, one per growth step.
	locationSimplexIDs map[string]int64
}

// New returns a Builder that inserts simplices into tree for userID.
// windowMinutes is the largest gap between consecutive entries that still
// extends the open temporal window; a larger gap forces a flush.
func New(tree *store.Store, userID string, windowMinutes int) *Builder {
	return &Builder{
		tree:               tree,
		userID:             userID,
		windowMinutes:      windowMinutes,
		temporalVertices:   make(map[int64]struct{}),
		locationVertices:   make(map[string]map[int64]struct{}),
		locationTimestamps: make(map[string][]time.Time),
		locationSimplexIDs: make(map[string]int64),
	}
}

// AddEntry folds one activity's vertex ids into both witness state
// machines. An empty vertexIDs is a no-op. A single vertex still joins the
// temporal window and the location set; a simplex is only inserted once a
// set holds at least two vertices.
func (b *Builder) AddEntry(vertexIDs []int64, ts time.Time, location *string) error {
	if len(vertexIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.foldTemporal(vertexIDs, ts); err != nil {
		return err
	}
	if location != nil && *location != "" {
		if err := b.foldLocation(*location, vertexIDs, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) foldTemporal(vertexIDs []int64, ts time.Time) error {
	gap := time.Duration(b.windowMinutes) * time.Minute

	switch {
	case !b.windowOpen:
		b.temporalVertices = setFrom(vertexIDs)
		b.windowStart = ts
		b.windowEnd = ts
		b.windowOpen = true
	case ts.Sub(b.windowEnd) <= gap:
		for _, v := range vertexIDs {
			b.temporalVertices[v] = struct{}{}
		}
		if ts.After(b.windowEnd) {
			b.windowEnd = ts
		}
	default:
		if err := b.flushTemporalWindow(); err != nil {
			return err
		}
		b.temporalVertices = setFrom(vertexIDs)
		b.windowStart = ts
		b.windowEnd = ts
	}
	return nil
}

func (b *Builder) flushTemporalWindow() error {
	if len(b.temporalVertices) < minSimplexSize {
		return nil
	}
	vs := sortedKeys(b.temporalVertices)
	_, err := b.tree.Insert(b.userID, vs, "temporal", map[string]interface{}{
		"window_start":   b.windowStart.Format(time.RFC3339),
		"window_end":     b.windowEnd.Format(time.RFC3339),
		"window_minutes": b.windowMinutes,
	})
	if err != nil {
		return fmt.Errorf("flush temporal window: %w", err)
	}
	logging.WitnessDebug("flushed temporal window user=%s vertices=%d span=%s..%s",
		b.userID, len(vs), b.windowStart.Format(time.RFC3339), b.windowEnd.Format(time.RFC3339))
	return nil
}

func (b *Builder) foldLocation(location string, vertexIDs []int64, ts time.Time) error {
	set, ok := b.locationVertices[location]
	if !ok {
		set = make(map[int64]struct{})
		b.locationVertices[location] = set
	}
	for _, v := range vertexIDs {
		set[v] = struct{}{}
	}
	b.locationTimestamps[location] = append(b.locationTimestamps[location], ts)

	if len(set) < minSimplexSize {
		return nil
	}

	timestamps := b.locationTimestamps[location]
	first, last := timestamps[0], timestamps[0]
	for _, t := range timestamps {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}

	vs := sortedKeys(set)
	nodeID, err := b.tree.Insert(b.userID, vs, "location", map[string]interface{}{
		"location":    location,
		"first_seen":  first.Format(time.RFC3339),
		"last_seen":   last.Format(time.RFC3339),
		"entry_count": len(timestamps),
	})
	if err != nil {
		return fmt.Errorf("update location simplex %q: %w", location, err)
	}
	b.locationSimplexIDs[location] = nodeID
	logging.WitnessDebug("updated location simplex user=%s location=%s vertices=%d entries=%d",
		b.userID, location, len(vs), len(timestamps))
	return nil
}

// Finalize flushes any still-open temporal window. Location simplices need
// no finalization: each call to foldLocation already leaves the tree
// consistent with the accumulated location state.
func (b *Builder) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushTemporalWindow()
}

func setFrom(vs []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(vs))
	for _, v := range vs {
		out[v] = struct{}{}
	}
	return out
}

func sortedKeys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
