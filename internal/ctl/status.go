package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string      `json:"name"`
	State         string      `json:"state"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	DataRoot      string      `json:"data_root"`
	TrspDir       string      `json:"trsp_dir"`
	Paused        bool        `json:"paused"`
	Syncing       bool        `json:"syncing"`
	WSClients     int         `json:"ws_clients"`
	LastSync      *RunSummary `json:"last_sync,omitempty"`
	Disk          *struct {
		TotalBytes     int64 `json:"total_bytes"`
		UsedBytes      int64 `json:"used_bytes"`
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)
	sched := colorize(green, "running")
	if s.Paused {
		sched = colorize(yellow, "paused")
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  GROUND STATION STATUS"))
	fmt.Fprintln(w, rule(38))
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Scheduler:"), sched)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Trsp dir:"), s.TrspDir)
	if s.Disk != nil {
		fmt.Fprintf(w, "  %-12s %s free of %s\n", colorize(dim, "Disk:"),
			formatBytes(s.Disk.AvailableBytes), formatBytes(s.Disk.TotalBytes))
	}
	fmt.Fprintf(w, "  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Host:"), baseURL)

	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  LAST SYNC"))
	fmt.Fprintln(w, rule(38))
	if s.LastSync == nil {
		fmt.Fprintln(w, "  No sync recorded yet.")
	} else {
		printSummary(s.LastSync)
	}
	fmt.Fprintln(w)

	return nil
}
