package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[data]
root = "/littlefs"

[trsp]
refresh_hours = 6
modes_url = ""
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/littlefs", cfg.Data.Root)
	assert.Equal(t, 6, cfg.Trsp.RefreshHours)
	assert.Empty(t, cfg.Trsp.ModesURL)
	assert.Equal(t, Default().Trsp.FeedURL, cfg.Trsp.FeedURL)
	assert.Equal(t, 512, cfg.Trsp.MaxPathLength)
	assert.Equal(t, filepath.Join("/littlefs", "conf", "trsp"), cfg.TrspDir())
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"empty root":       "[data]\nroot = \"\"\n",
		"refresh":          "[trsp]\nrefresh_hours = 0\n",
		"path length":      "[trsp]\nmax_path_length = 4\n",
		"feed bytes":       "[trsp]\nmax_feed_bytes = 0\n",
		"retries":          "[trsp]\nfetch_retries = -1\n",
		"history":          "[history]\nmax_runs = 0\n",
		"mqtt broker":      "[mqtt]\nenabled = true\nbroker = \"\"\n",
		"tle refresh":      "[tle]\nrefresh_hours = 0\n",
		"modes refresh":    "[trsp]\nmodes_refresh_hours = 0\n",
		"fetch timeout":    "[trsp]\nfetch_timeout_seconds = 0\n",
		"missing feed url": "[trsp]\nfeed_url = \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[data\nroot = 1"))
	assert.Error(t, err)
}
