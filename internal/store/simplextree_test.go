package store

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "u1"

func seedVertices(t *testing.T, s *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = insertVertex(t, s, testUser, string(rune('a'+i)))
	}
	return ids
}

func TestInsertThenSearch(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 4)

	_, err := s.Insert(testUser, []int64{v[0], v[1], v[2]}, "temporal", map[string]interface{}{"w": 5})
	require.NoError(t, err)

	id, err := s.Search(testUser, []int64{v[0], v[1], v[2]})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = s.Search(testUser, []int64{v[0], v[1], v[3]})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Search(testUser, []int64{v[1], v[2]})
	assert.ErrorIs(t, err, ErrNotFound, "path 0->1->2 is not rooted at vertex 1")
}

func TestDuplicateInsertReturnsExistingNodeWithoutOverwrite(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 3)

	id1, err := s.Insert(testUser, []int64{v[0], v[1]}, "temporal", map[string]interface{}{"w": 1})
	require.NoError(t, err)

	id2, err := s.Insert(testUser, []int64{v[0], v[1]}, "location", map[string]interface{}{"loc": "home"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	cofaces, err := s.LocateCofacesExact(testUser, []int64{v[0], v[1]}, true)
	require.NoError(t, err)
	require.Len(t, cofaces, 1)
	assert.Equal(t, "temporal", cofaces[0].Type, "first insert's type/meta must survive the duplicate insert")
}

func TestInsertEmptySimplexIsInvalidArgument(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(testUser, nil, "temporal", nil)
	assert.ErrorIs(t, err, ErrInvalidSimplex)
}

func TestCofaceContainment(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 4)

	_, err := s.Insert(testUser, []int64{v[0], v[1], v[2]}, "temporal", nil)
	require.NoError(t, err)
	_, err = s.Insert(testUser, []int64{v[0], v[1], v[2], v[3]}, "temporal", nil)
	require.NoError(t, err)

	cofaces, err := s.LocateCofaces(testUser, []int64{v[0], v[1]}, false, nil)
	require.NoError(t, err)

	var paths [][]int64
	for _, c := range cofaces {
		paths = append(paths, c.VertexIDs)
	}
	assert.Contains(t, paths, []int64{v[0], v[1], v[2]})
	assert.Contains(t, paths, []int64{v[0], v[1], v[2], v[3]})
}

func TestCofaceSoundnessAndCorrectness(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 5)

	_, err := s.Insert(testUser, []int64{v[0], v[1], v[2], v[3]}, "temporal", nil)
	require.NoError(t, err)

	for _, tau := range [][]int64{{v[0]}, {v[1], v[2]}, {v[0], v[3]}} {
		cofaces, err := s.LocateCofaces(testUser, tau, false, nil)
		require.NoError(t, err)
		found := false
		for _, c := range cofaces {
			assert.True(t, isSubsequence(sortedCopy(tau), c.VertexIDs), "every returned path must be a superset of the query")
			if len(c.VertexIDs) == 4 {
				found = true
			}
		}
		assert.True(t, found, "the full simplex must appear among the cofaces of subset %v", tau)
	}
}

func TestGapDetectionScenario(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 3)

	_, err := s.Insert(testUser, []int64{v[0], v[1], v[2]}, "temporal", nil)
	require.NoError(t, err)

	faces := EnumerateTheoreticalFaces([]int64{v[0], v[1], v[2]})
	assert.Len(t, faces, 7)

	var gaps [][]int64
	for _, face := range faces {
		if len(face) < 2 {
			continue
		}
		_, err := s.Search(testUser, face)
		if err == ErrNotFound {
			gaps = append(gaps, face)
		}
	}

	assert.Len(t, gaps, 3)
	assert.NotContains(t, gaps, []int64{v[0], v[1], v[2]})
}

func TestEnumerateTheoreticalFacesCoversEverySubset(t *testing.T) {
	vs := []int64{3, 1, 2}
	faces := EnumerateTheoreticalFaces(vs)
	assert.Len(t, faces, 7)

	seen := make(map[string]bool)
	for _, f := range faces {
		assert.True(t, sort.SliceIsSorted(f, func(i, j int) bool { return f[i] < f[j] }))
		seen[sliceKey(f)] = true
	}
	assert.Len(t, seen, 7, "all faces must be distinct")
}

func sliceKey(vs []int64) string {
	key := ""
	for _, v := range vs {
		key += string(rune(v)) + ","
	}
	return key
}

func TestRemoveCascade(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 4)

	_, err := s.Insert(testUser, []int64{v[0], v[1]}, "temporal", nil)
	require.NoError(t, err)
	_, err = s.Insert(testUser, []int64{v[0], v[1], v[2]}, "temporal", nil)
	require.NoError(t, err)
	_, err = s.Insert(testUser, []int64{v[0], v[1], v[2], v[3]}, "temporal", nil)
	require.NoError(t, err)

	removed, err := s.RemoveSimplex(testUser, []int64{v[0], v[1]}, true)
	require.NoError(t, err)
	assert.True(t, removed)

	for _, vs := range [][]int64{{v[0], v[1]}, {v[0], v[1], v[2]}, {v[0], v[1], v[2], v[3]}} {
		_, err := s.Search(testUser, vs)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestRemoveWithoutCascadeFailsWhenCofacesExist(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 3)

	_, err := s.Insert(testUser, []int64{v[0], v[1]}, "temporal", nil)
	require.NoError(t, err)
	_, err = s.Insert(testUser, []int64{v[0], v[1], v[2]}, "temporal", nil)
	require.NoError(t, err)

	_, err = s.RemoveSimplex(testUser, []int64{v[0], v[1]}, false)
	assert.ErrorIs(t, err, ErrHasCofaces)

	_, err = s.Search(testUser, []int64{v[0], v[1]})
	assert.NoError(t, err, "failed removal must not delete anything")
}

func TestRemoveNonExistentReturnsFalseNotError(t *testing.T) {
	s := newTestStore(t)
	v := seedVertices(t, s, 2)

	removed, err := s.RemoveSimplex(testUser, []int64{v[0], v[1]}, true)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIsSubsequenceMatchesSubsetForSortedLists(t *testing.T) {
	assert.True(t, isSubsequence([]int64{1, 3}, []int64{1, 2, 3, 4}))
	assert.False(t, isSubsequence([]int64{1, 5}, []int64{1, 2, 3, 4}))
	assert.True(t, isSubsequence(nil, []int64{1, 2}))
}
