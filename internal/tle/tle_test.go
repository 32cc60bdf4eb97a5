package tle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issTLE = `ISS (ZARYA)
1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927
2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537
`

type stubFetcher struct {
	body []byte
	err  error
}

func (f stubFetcher) Get(context.Context, string) ([]byte, error) { return f.body, f.err }

func newStore(t *testing.T, f Fetcher) *Store {
	t.Helper()
	s := New(Options{
		URL:          "https://celestrak.invalid/amateur.txt",
		Root:         t.TempDir(),
		RefreshHours: 48,
		Fetcher:      f,
	})
	s.now = func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local) }
	return s
}

func TestParse(t *testing.T) {
	sets := Parse("\r\n" + strings.ReplaceAll(issTLE, "\n", "\r\n"))
	require.Len(t, sets, 1)
	assert.Equal(t, 25544, sets[0].SatelliteNumber)

	// A stray leading line must not hide the set that follows it.
	assert.Len(t, Parse("garbage\n"+issTLE), 1)
	assert.Empty(t, Parse("<html>not found</html>"))
}

func TestRefresh_WritesFileAndStamp(t *testing.T) {
	s := newStore(t, stubFetcher{body: []byte(issTLE)})

	n, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, issTLE+"\n\n2025-03-14 09:26:53\n", string(b))

	stamp, err := os.ReadFile(filepath.Join(filepath.Dir(s.Path()), StampFile))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14 09:26:53", string(stamp))

	// The trailer must not disturb a later parse of the file.
	assert.Len(t, Parse(string(b)), 1)
}

func TestRefresh_KeepsFileOnFailure(t *testing.T) {
	for name, f := range map[string]stubFetcher{
		"transport": {err: errors.New("dial tcp: refused")},
		"no sets":   {body: []byte("No GP data found")},
	} {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, f)
			require.NoError(t, os.WriteFile(s.Path(), []byte("previous"), 0o644))

			_, err := s.Refresh(context.Background())
			require.Error(t, err)

			b, err := os.ReadFile(s.Path())
			require.NoError(t, err)
			assert.Equal(t, "previous", string(b))
		})
	}

	s := newStore(t, stubFetcher{body: []byte("nothing")})
	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoElements)
}

func TestCacheInfoAndDue(t *testing.T) {
	s := newStore(t, stubFetcher{body: []byte(issTLE)})

	info := s.CacheInfo()
	assert.False(t, info.Exists)
	assert.Equal(t, 48, info.MaxAgeHours)
	assert.True(t, s.Due())

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	// Pin the clock just after the file was written.
	st, err := os.Stat(s.Path())
	require.NoError(t, err)
	s.now = func() time.Time { return st.ModTime().Add(time.Hour) }

	info = s.CacheInfo()
	assert.True(t, info.Exists)
	assert.True(t, info.Fresh)
	assert.Equal(t, 1, info.Elements)
	assert.Equal(t, "2025-03-14 09:26:53", info.LastUpdate)
	assert.Equal(t, 3600, info.AgeS)
	assert.False(t, s.Due())

	s.now = func() time.Time { return st.ModTime().Add(49 * time.Hour) }
	assert.False(t, s.CacheInfo().Fresh)
	assert.True(t, s.Due())
}
