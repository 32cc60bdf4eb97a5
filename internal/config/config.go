// Package config handles loading, defaulting, and validation of the station
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data    DataConfig    `toml:"data"    json:"data"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Server  ServerConfig  `toml:"server"  json:"server"`
	Trsp    TrspConfig    `toml:"trsp"    json:"trsp"`
	TLE     TLEConfig     `toml:"tle"     json:"tle"`
	History HistoryConfig `toml:"history" json:"history"`
	MQTT    MQTTConfig    `toml:"mqtt"    json:"mqtt"`
}

// DataConfig locates the storage root. Transponder files live under
// <root>/conf/trsp, TLEs and caches directly under root.
type DataConfig struct {
	Root string `toml:"root" json:"root"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type TrspConfig struct {
	FeedURL             string `toml:"feed_url"              json:"feed_url"`
	ModesURL            string `toml:"modes_url"             json:"modes_url"`
	RefreshHours        int    `toml:"refresh_hours"         json:"refresh_hours"`
	ModesRefreshHours   int    `toml:"modes_refresh_hours"   json:"modes_refresh_hours"`
	MaxPathLength       int    `toml:"max_path_length"       json:"max_path_length"`
	MaxFeedBytes        int64  `toml:"max_feed_bytes"        json:"max_feed_bytes"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`
	FetchRetries        int    `toml:"fetch_retries"         json:"fetch_retries"`
}

type TLEConfig struct {
	URL          string `toml:"url"           json:"url"`
	RefreshHours int    `toml:"refresh_hours" json:"refresh_hours"`
}

type HistoryConfig struct {
	MaxRuns int `toml:"max_runs" json:"max_runs"`
}

type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"      json:"enabled"`
	Broker      string `toml:"broker"       json:"broker"`
	TopicPrefix string `toml:"topic_prefix" json:"topic_prefix"`
	Username    string `toml:"username"     json:"username"`
	Password    string `toml:"password"     json:"-"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "/var/lib/groundstation",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Trsp: TrspConfig{
			FeedURL:             "https://db.satnogs.org/api/transmitters/?format=json",
			ModesURL:            "https://db.satnogs.org/api/modes/?format=json",
			RefreshHours:        24,
			ModesRefreshHours:   168,
			MaxPathLength:       512,
			MaxFeedBytes:        8 << 20,
			FetchTimeoutSeconds: 30,
			FetchRetries:        3,
		},
		TLE: TLEConfig{
			URL:          "https://celestrak.org/NORAD/elements/gp.php?GROUP=amateur&FORMAT=tle",
			RefreshHours: 48,
		},
		History: HistoryConfig{
			MaxRuns: 100,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "groundstation",
		},
	}
}

// TrspDir is the directory holding the per-satellite transponder files and
// the cached mode table.
func (c Config) TrspDir() string {
	return filepath.Join(c.Data.Root, "conf", "trsp")
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if cfg.Trsp.FeedURL == "" {
		return errors.New("trsp.feed_url must not be empty")
	}
	if cfg.Trsp.RefreshHours < 1 {
		return errors.New("trsp.refresh_hours must be >= 1")
	}
	if cfg.Trsp.ModesURL != "" && cfg.Trsp.ModesRefreshHours < 1 {
		return errors.New("trsp.modes_refresh_hours must be >= 1")
	}
	if cfg.Trsp.MaxPathLength < 16 {
		return errors.New("trsp.max_path_length must be >= 16")
	}
	if cfg.Trsp.MaxFeedBytes <= 0 {
		return errors.New("trsp.max_feed_bytes must be > 0")
	}
	if cfg.Trsp.FetchTimeoutSeconds < 1 {
		return errors.New("trsp.fetch_timeout_seconds must be >= 1")
	}
	if cfg.Trsp.FetchRetries < 0 {
		return errors.New("trsp.fetch_retries must be >= 0")
	}
	if cfg.TLE.URL != "" && cfg.TLE.RefreshHours < 1 {
		return errors.New("tle.refresh_hours must be >= 1")
	}
	if cfg.History.MaxRuns < 1 {
		return errors.New("history.max_runs must be >= 1")
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return errors.New("mqtt.broker must not be empty when mqtt is enabled")
	}
	return nil
}
