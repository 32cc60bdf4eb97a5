package trsp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAndRead(t *testing.T) {
	e := newTestEngine(t, Options{})
	writeModes(t, e, `[{"id":1,"name":"FM"},{"id":2,"name":"CW"}]`)

	_, err := e.Sync(context.Background(), []byte(`[
		{"description":"FM voice","norad_cat_id":25544,"uplink_low":145990000,"downlink_low":437800000,"mode_id":1},
		{"description":"Beacon","norad_cat_id":25544,"downlink_low":145825000,"mode_id":2,"baud":1200},
		{"description":"Telemetry","norad_cat_id":7530,"downlink_low":145977500,"mode_id":2}
	]`))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(e.Dir(), "notes.txt"), []byte("x"), 0o644))

	files, err := e.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, int32(7530), files[0].CatalogNumber)
	assert.Equal(t, 1, files[0].Transponders)
	assert.Equal(t, int32(25544), files[1].CatalogNumber)
	assert.Equal(t, 2, files[1].Transponders)

	trs, err := e.Read(25544)
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, "FM voice", trs[0].Name)
	assert.Equal(t, []string{"UP_LOW", "DOWN_LOW", "MODE"}, trs[0].Order)
	assert.Equal(t, "FM", trs[0].Fields["MODE"])
	assert.Equal(t, "1200", trs[1].Fields["BAUD"])

	_, err = e.Read(1)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestList_NoDirectoryYet(t *testing.T) {
	e := newTestEngine(t, Options{})
	files, err := e.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFeedCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "transmitters.json.gz")
	doc := []byte(`[{"description":"a","norad_cat_id":1,"mode_id":1}]`)

	require.NoError(t, SaveFeed(path, doc))
	got, err := LoadFeed(path)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err = LoadFeed(path)
	assert.Error(t, err)
}
