package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		ConfigPath string          `json:"config_path"`
		Config     json.RawMessage `json:"config"`
	}
	if err := getJSON(baseURL, "/api/config", &resp); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(resp.Config, &v)
		return printJSON(map[string]any{"config_path": resp.ConfigPath, "config": v})
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Data struct {
			Root string `json:"root"`
		} `json:"data"`
		Logging struct {
			Level string `json:"level"`
		} `json:"logging"`
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Trsp struct {
			FeedURL             string `json:"feed_url"`
			ModesURL            string `json:"modes_url"`
			RefreshHours        int    `json:"refresh_hours"`
			ModesRefreshHours   int    `json:"modes_refresh_hours"`
			MaxPathLength       int    `json:"max_path_length"`
			MaxFeedBytes        int64  `json:"max_feed_bytes"`
			FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
			FetchRetries        int    `json:"fetch_retries"`
		} `json:"trsp"`
		TLE struct {
			URL          string `json:"url"`
			RefreshHours int    `json:"refresh_hours"`
		} `json:"tle"`
		History struct {
			MaxRuns int `json:"max_runs"`
		} `json:"history"`
		MQTT struct {
			Enabled     bool   `json:"enabled"`
			Broker      string `json:"broker"`
			TopicPrefix string `json:"topic_prefix"`
			Username    string `json:"username"`
		} `json:"mqtt"`
	}
	if err := json.Unmarshal(resp.Config, &cfg); err != nil {
		return err
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  DAEMON CONFIGURATION"))
	fmt.Fprintln(w, rule(50))
	if resp.ConfigPath != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(dim, "file:"), resp.ConfigPath)
	}

	section := func(name string) {
		fmt.Fprintf(w, "\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Fprintf(w, "    %-22s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("root", cfg.Data.Root)

	section("logging")
	field("level", cfg.Logging.Level)

	section("server")
	field("bind", cfg.Server.Bind)

	section("trsp")
	field("feed_url", cfg.Trsp.FeedURL)
	field("modes_url", cfg.Trsp.ModesURL)
	field("refresh_hours", cfg.Trsp.RefreshHours)
	field("modes_refresh_hours", cfg.Trsp.ModesRefreshHours)
	field("max_path_length", cfg.Trsp.MaxPathLength)
	field("max_feed_bytes", formatBytes(cfg.Trsp.MaxFeedBytes))
	field("fetch_timeout_seconds", cfg.Trsp.FetchTimeoutSeconds)
	field("fetch_retries", cfg.Trsp.FetchRetries)

	section("tle")
	field("url", cfg.TLE.URL)
	field("refresh_hours", cfg.TLE.RefreshHours)

	section("history")
	field("max_runs", cfg.History.MaxRuns)

	section("mqtt")
	field("enabled", cfg.MQTT.Enabled)
	field("broker", cfg.MQTT.Broker)
	field("topic_prefix", cfg.MQTT.TopicPrefix)
	field("username", cfg.MQTT.Username)

	fmt.Fprintln(w)

	return nil
}
