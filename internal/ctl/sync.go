package ctl

import (
	"fmt"
	"strings"
)

// SyncOptions controls the sync command.
type SyncOptions struct {
	Cache bool // replay the cached feed instead of downloading it
	JSON  bool
}

// Sync asks the daemon to run a transponder sync now and waits for the
// result.
func Sync(baseURL string, opts SyncOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	body := map[string]any{}
	if opts.Cache {
		body["source"] = "cache"
	}

	var resp struct {
		OK      bool        `json:"ok"`
		Message string      `json:"message"`
		Error   string      `json:"error"`
		Summary *RunSummary `json:"summary,omitempty"`
	}
	if err := postJSON(baseURL, "/api/sync", body, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	if resp.OK {
		fmt.Fprintf(w, "  %s  %s\n", colorize(green, "SYNCED"), resp.Message)
	} else {
		fmt.Fprintf(w, "  %s  %s\n", colorize(red, "FAILED"), resp.Error)
	}
	if resp.Summary != nil {
		fmt.Fprintln(w)
		printSummary(resp.Summary)
	}
	fmt.Fprintln(w)

	return nil
}
