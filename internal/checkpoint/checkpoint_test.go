package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	state, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, state.ProcessedIndices)
	assert.Empty(t, state.EntriesWithVertices)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	state := Empty()
	state.MarkProcessed(0)
	state.MarkProcessed(1)
	state.EntriesWithVertices = append(state.EntriesWithVertices, Entry{
		VertexIDs: []int64{1, 2, 3},
		Timestamp: "2026-01-01T09:00:00Z",
	})

	require.NoError(t, Save(path, state))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, loaded.ProcessedIndices)
	require.Len(t, loaded.EntriesWithVertices, 1)
	assert.Equal(t, []int64{1, 2, 3}, loaded.EntriesWithVertices[0].VertexIDs)
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	state := Empty()
	state.MarkProcessed(5)
	state.MarkProcessed(5)
	assert.Equal(t, []int{5}, state.ProcessedIndices)
	assert.True(t, state.Processed(5))
	assert.False(t, state.Processed(6))
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	require.NoError(t, Save(path, Empty()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "checkpoint.json", entries[0].Name())
}
