package trsp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body  []byte
	err   error
	calls int
	urls  []string
	gate  chan struct{} // when set, Get blocks until it is closed
	enter chan struct{}
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	f.urls = append(f.urls, url)
	if f.enter != nil {
		close(f.enter)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.body, f.err
}

type stateLog struct {
	mu     sync.Mutex
	states []string
}

func (s *stateLog) set(st string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	return New(opts)
}

func writeModes(t *testing.T, e *Engine, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.Dir(), 0o755))
	require.NoError(t, os.WriteFile(e.ModesPath(), []byte(body), 0o644))
}

func readSat(t *testing.T, e *Engine, catnum string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(e.Dir(), catnum+FileExt))
	require.NoError(t, err)
	return string(b)
}

func TestSync_ResolvesModeName(t *testing.T) {
	e := newTestEngine(t, Options{})
	writeModes(t, e, `[{"id":1,"name":"FM"}]`)

	sum, err := e.Sync(context.Background(), []byte(`[
		{"description":"FM voice","norad_cat_id":25544,"uplink_low":145990000,"uplink_high":null,
		 "downlink_low":437800000,"downlink_high":null,"mode_id":1,"invert":false,"baud":null,"alive":true}
	]`))
	require.NoError(t, err)

	assert.Equal(t, "\n[FM voice]\nUP_LOW=145990000\nDOWN_LOW=437800000\nMODE=FM\n", readSat(t, e, "25544"))
	assert.Equal(t, 1, sum.Modes)
	assert.Equal(t, 1, sum.Items)
	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, 1, sum.Satellites)
	assert.Equal(t, SourceBuffer, sum.Source)
	assert.NotEmpty(t, sum.RunID)
	assert.True(t, sum.OK())
}

func TestSync_UnknownModeFallsBackToID(t *testing.T) {
	e := newTestEngine(t, Options{})
	writeModes(t, e, `[]`)

	_, err := e.Sync(context.Background(), []byte(`[{"description":"beacon","norad_cat_id":7530,"mode_id":99}]`))
	require.NoError(t, err)
	assert.Contains(t, readSat(t, e, "7530"), "MODE=99\n")
}

func TestSync_MissingOrEmptyModeTable(t *testing.T) {
	doc := []byte(`[{"description":"a","norad_cat_id":7530,"mode_id":5}]`)

	for name, modes := range map[string]*string{
		"absent":   nil,
		"empty":    ptr(""),
		"one byte": ptr("\n"),
	} {
		t.Run(name, func(t *testing.T) {
			e := newTestEngine(t, Options{})
			if modes != nil {
				writeModes(t, e, *modes)
			}
			sum, err := e.Sync(context.Background(), doc)
			require.NoError(t, err)
			assert.Equal(t, 0, sum.Modes)
			assert.Equal(t, "\n[a]\nMODE=5\n", readSat(t, e, "7530"))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestSync_NoCarryoverBetweenRuns(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.Sync(context.Background(), []byte(`[
		{"description":"old one","norad_cat_id":43017,"mode_id":1},
		{"description":"old two","norad_cat_id":43017,"mode_id":1}
	]`))
	require.NoError(t, err)

	_, err = e.Sync(context.Background(), []byte(`[{"description":"new","norad_cat_id":43017,"mode_id":2}]`))
	require.NoError(t, err)

	assert.Equal(t, "\n[new]\nMODE=2\n", readSat(t, e, "43017"))
}

func TestSync_SameSatelliteKeepsInputOrder(t *testing.T) {
	e := newTestEngine(t, Options{})

	sum, err := e.Sync(context.Background(), []byte(`[
		{"description":"first","norad_cat_id":43017,"mode_id":1},
		{"description":"other","norad_cat_id":7530,"mode_id":1},
		{"description":"second","norad_cat_id":43017,"mode_id":2,"baud":9600}
	]`))
	require.NoError(t, err)

	assert.Equal(t, "\n[first]\nMODE=1\n\n[second]\nMODE=2\nBAUD=9600\n", readSat(t, e, "43017"))
	assert.Equal(t, 3, sum.Written)
	assert.Equal(t, 2, sum.Satellites)
}

func TestSync_ZeroFrequenciesOmitted(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.Sync(context.Background(), []byte(`[
		{"description":"rx only","norad_cat_id":40069,"uplink_low":0,"uplink_high":0,
		 "downlink_low":137100000,"downlink_high":137100000,"mode_id":3,"invert":true}
	]`))
	require.NoError(t, err)

	body := readSat(t, e, "40069")
	assert.NotContains(t, body, "UP_LOW")
	assert.NotContains(t, body, "UP_HIGH")
	assert.Equal(t, "\n[rx only]\nDOWN_LOW=137100000\nDOWN_HIGH=137100000\nMODE=3\nINVERT=true\n", body)
}

func TestSync_PathTooLongAbortsRun(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "conf", "trsp")
	limit := len(filepath.Join(dir, "25544"+FileExt))
	e := New(Options{Root: root, MaxPathLength: limit})

	sum, err := e.Sync(context.Background(), []byte(`[
		{"description":"short","norad_cat_id":1,"mode_id":1},
		{"description":"long","norad_cat_id":25544,"mode_id":1},
		{"description":"never","norad_cat_id":2,"mode_id":1}
	]`))
	require.ErrorIs(t, err, ErrPathTooLong)

	assert.FileExists(t, filepath.Join(dir, "1"+FileExt))
	assert.NoFileExists(t, filepath.Join(dir, "25544"+FileExt))
	assert.NoFileExists(t, filepath.Join(dir, "2"+FileExt))
	assert.Equal(t, 1, sum.Written)
	assert.False(t, sum.OK())
}

func TestSync_SkipsItemsWithoutIdentity(t *testing.T) {
	e := newTestEngine(t, Options{})

	sum, err := e.Sync(context.Background(), []byte(`[
		{"description":"no sat","mode_id":1},
		{"description":"no mode","norad_cat_id":7530},
		{"description":"zero","norad_cat_id":0,"mode_id":1},
		{"description":"ok","norad_cat_id":7530,"mode_id":1}
	]`))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Items)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, 1, sum.Written)
	assert.NoFileExists(t, filepath.Join(e.Dir(), "0"+FileExt))
	assert.Equal(t, "\n[ok]\nMODE=1\n", readSat(t, e, "7530"))
}

func TestSync_MalformedItemIsCountedAndSkipped(t *testing.T) {
	e := newTestEngine(t, Options{})

	sum, err := e.Sync(context.Background(), []byte(`[
		{"description":"before","norad_cat_id":7530,"mode_id":1},
		42,
		{"description":"bad id","norad_cat_id":"x","mode_id":1},
		{"description":"after","norad_cat_id":7530,"mode_id":1}
	]`))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Items)
	assert.Equal(t, 2, sum.Malformed)
	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, "\n[before]\nMODE=1\n\n[after]\nMODE=1\n", readSat(t, e, "7530"))
}

func TestSync_MalformedDocumentWritesNothing(t *testing.T) {
	for name, doc := range map[string]string{
		"object":    `{"norad_cat_id":7530,"mode_id":1}`,
		"truncated": `[{"description":"a","norad_cat_id":7530,"mode_id":1},`,
		"unclosed":  `[{"description":"a","norad_cat_id":7530,"mode_id":1}`,
		"empty":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			e := newTestEngine(t, Options{})
			sum, err := e.Sync(context.Background(), []byte(doc))
			require.NoError(t, err)
			assert.True(t, sum.DocumentMalformed)
			assert.Zero(t, sum.Items)
			assert.NoFileExists(t, filepath.Join(e.Dir(), "7530"+FileExt))
		})
	}
}

func TestSync_EmptyArray(t *testing.T) {
	e := newTestEngine(t, Options{})
	sum, err := e.Sync(context.Background(), []byte(" [ ] "))
	require.NoError(t, err)
	assert.False(t, sum.DocumentMalformed)
	assert.Zero(t, sum.Items)
}

func TestSync_UnwritableSatelliteFails(t *testing.T) {
	e := newTestEngine(t, Options{})
	// A non-empty directory in place of the file can be neither removed
	// nor opened for append.
	blocker := filepath.Join(e.Dir(), "7530"+FileExt)
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))

	sum, err := e.Sync(context.Background(), []byte(`[
		{"description":"a","norad_cat_id":7530,"mode_id":1},
		{"description":"b","norad_cat_id":7530,"mode_id":1},
		{"description":"c","norad_cat_id":25544,"mode_id":1}
	]`))
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, "\n[c]\nMODE=1\n", readSat(t, e, "25544"))
}

func TestSync_CancelledContext(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := e.Sync(ctx, []byte(`[{"description":"a","norad_cat_id":7530,"mode_id":1}]`))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Items)
	assert.NotEmpty(t, sum.Error)
	assert.NoFileExists(t, filepath.Join(e.Dir(), "7530"+FileExt))
}

func TestSync_ReportsPhases(t *testing.T) {
	var states stateLog
	e := newTestEngine(t, Options{SetState: states.set})

	_, err := e.Sync(context.Background(), []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, []string{StateLoadingModes, StateIngesting, StateCleanup, StateIdle}, states.states)
}

func TestFetchAndSync_TransportFailureTouchesNothing(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection reset")}
	e := newTestEngine(t, Options{Fetcher: f, FeedURL: "http://feed.invalid/transmitters"})

	sum, err := e.FetchAndSync(context.Background())
	require.Error(t, err)
	assert.Equal(t, SourceNetwork, sum.Source)
	assert.Equal(t, []string{"http://feed.invalid/transmitters"}, f.urls)
	assert.NoDirExists(t, e.Dir())
}

func TestFetchAndSync_CachesFeedForReplay(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, "cache", "transmitters.json.gz")
	f := &fakeFetcher{body: []byte(`[{"description":"a","norad_cat_id":7530,"mode_id":1}]`)}
	e := New(Options{Root: root, Fetcher: f, FeedCache: cache})

	_, err := e.FetchAndSync(context.Background())
	require.NoError(t, err)
	require.FileExists(t, cache)

	require.NoError(t, os.Remove(filepath.Join(e.Dir(), "7530"+FileExt)))

	sum, err := e.SyncCached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceCache, sum.Source)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "\n[a]\nMODE=1\n", readSat(t, e, "7530"))
}

func TestSyncCached_WithoutCache(t *testing.T) {
	root := t.TempDir()
	e := New(Options{Root: root, FeedCache: filepath.Join(root, "cache", "none.gz")})

	_, err := e.SyncCached(context.Background())
	assert.ErrorIs(t, err, ErrNoFeedCache)

	_, err = New(Options{Root: root}).SyncCached(context.Background())
	assert.ErrorIs(t, err, ErrNoFeedCache)
}

func TestSync_RejectsConcurrentRun(t *testing.T) {
	f := &fakeFetcher{
		body:  []byte(`[]`),
		gate:  make(chan struct{}),
		enter: make(chan struct{}),
	}
	e := newTestEngine(t, Options{Fetcher: f})

	done := make(chan error, 1)
	go func() {
		_, err := e.FetchAndSync(context.Background())
		done <- err
	}()
	<-f.enter
	assert.True(t, e.Running())

	_, err := e.Sync(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, ErrBusy)

	close(f.gate)
	require.NoError(t, <-done)
	assert.False(t, e.Running())
}
