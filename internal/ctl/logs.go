package ctl

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LogsOptions configures the logs command.
type LogsOptions struct {
	Level string
	Limit int
	Tail  bool
	JSON  bool
}

// Logs shows recent daemon log messages, or streams them live with --tail.
func Logs(baseURL string, opts LogsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// --tail mode: use WebSocket watch with log filter.
	if opts.Tail {
		return Watch(baseURL, WatchOptions{
			Filter: []string{"log"},
			JSON:   opts.JSON,
		})
	}

	q := url.Values{}
	if opts.Level != "" {
		q.Set("level", opts.Level)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprint(opts.Limit))
	}
	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Logs []struct {
			TS        string `json:"ts"`
			Level     string `json:"level"`
			Message   string `json:"message"`
			Component string `json:"component"`
		} `json:"logs"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  DAEMON LOGS"))

	if len(resp.Logs) == 0 {
		fmt.Fprintln(w, "  No log entries found.")
		fmt.Fprintln(w)
		return nil
	}

	t := newTable("Time", "Level", "Component", "Message")
	for _, e := range resp.Logs {
		ts := e.TS
		if parsed, err := time.Parse(time.RFC3339Nano, e.TS); err == nil {
			ts = parsed.Local().Format("15:04:05")
		}
		t.AppendRow([]any{ts, formatLogLevel(e.Level), e.Component, e.Message})
	}
	t.Render()
	fmt.Fprintln(w)
	return nil
}
