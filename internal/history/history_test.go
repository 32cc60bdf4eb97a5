package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/groundstation/internal/trsp"
)

func openStore(t *testing.T, maxRuns int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, maxRuns)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestAppendAndList(t *testing.T) {
	s, _ := openStore(t, 10)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(trsp.Summary{RunID: id, Written: len(id)}))
	}

	runs, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "a", runs[2].RunID)

	runs, err = s.List(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	last, err := s.Last()
	require.NoError(t, err)
	assert.Equal(t, "c", last.RunID)
}

func TestPrunesOldest(t *testing.T) {
	s, _ := openStore(t, 3)

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, s.Append(trsp.Summary{RunID: id}))
	}

	runs, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"5", "4", "3"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
}

func TestEmptyAndLastSuccess(t *testing.T) {
	s, _ := openStore(t, 5)

	_, err := s.Last()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = s.LastSuccess()
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, s.Append(trsp.Summary{RunID: "good"}))
	require.NoError(t, s.Append(trsp.Summary{RunID: "bad", Error: "fetch feed: timeout"}))

	ok, err := s.LastSuccess()
	require.NoError(t, err)
	assert.Equal(t, "good", ok.RunID)
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, 5)
	require.NoError(t, err)
	require.NoError(t, s.Append(trsp.Summary{RunID: "persisted", Satellites: 12}))
	require.NoError(t, s.Close())

	s, err = Open(path, 5)
	require.NoError(t, err)
	defer s.Close()

	last, err := s.Last()
	require.NoError(t, err)
	assert.Equal(t, "persisted", last.RunID)
	assert.Equal(t, 12, last.Satellites)
}
