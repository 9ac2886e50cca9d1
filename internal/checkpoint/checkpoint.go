// Package checkpoint persists ingest progress so a pipeline run can resume
// after an interruption without reprocessing already-ingested entries.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"simplexkg/internal/logging"
)

// Entry records the vertex ids produced by one processed activity entry,
// alongside its raw source timestamp.
type Entry struct {
	VertexIDs []int64 `json:"vertex_ids"`
	Timestamp string  `json:"timestamp"`
}

// State is the on-disk checkpoint shape.
type State struct {
	ProcessedIndices   []int     `json:"processed_indices"`
	EntriesWithVertices []Entry `json:"entries_with_vertices"`
}

// Empty returns a fresh, zero-progress checkpoint.
func Empty() *State {
	return &State{
		ProcessedIndices:    []int{},
		EntriesWithVertices: []Entry{},
	}
}

// Load reads the checkpoint at path. A missing file is not an error: it
// means no progress has been made yet, and Empty() is returned.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return &state, nil
}

// Save durably writes state to path: marshal, write to a temp file in the
// same directory, then rename over the destination so a crash mid-write
// never leaves a truncated checkpoint.
func Save(path string, state *State) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint directory %s: %w", dir, err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp checkpoint file into place: %w", err)
	}

	logging.IngestDebug("checkpoint saved: %d processed, %d entries with vertices", len(state.ProcessedIndices), len(state.EntriesWithVertices))
	return nil
}

// Processed reports whether index i has already been processed.
func (s *State) Processed(i int) bool {
	for _, p := range s.ProcessedIndices {
		if p == i {
			return true
		}
	}
	return false
}

// MarkProcessed appends i to the processed set if it is not already there.
func (s *State) MarkProcessed(i int) {
	if s.Processed(i) {
		return
	}
	s.ProcessedIndices = append(s.ProcessedIndices, i)
}
