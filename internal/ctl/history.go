package ctl

import (
	"fmt"
	"strings"
	"time"
)

// RunSummary mirrors one sync run as reported by the daemon.
type RunSummary struct {
	RunID             string    `json:"run_id"`
	Source            string    `json:"source"`
	StartedAt         time.Time `json:"started_at"`
	DurationMS        int64     `json:"duration_ms"`
	Modes             int       `json:"modes"`
	Items             int       `json:"items"`
	Written           int       `json:"written"`
	Skipped           int       `json:"skipped"`
	Malformed         int       `json:"malformed"`
	Failed            int       `json:"failed"`
	Satellites        int       `json:"satellites"`
	DocumentMalformed bool      `json:"document_malformed,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// result is a one-word outcome for tables.
func (r RunSummary) result() string {
	switch {
	case r.Error != "":
		return colorize(red, "error")
	case r.DocumentMalformed:
		return colorize(yellow, "malformed")
	default:
		return colorize(green, "ok")
	}
}

// HistoryOptions controls the history command.
type HistoryOptions struct {
	Limit int
	JSON  bool
}

// History lists recent sync runs, newest first.
func History(baseURL string, opts HistoryOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	path := "/api/history"
	if opts.Limit > 0 {
		path += fmt.Sprintf("?limit=%d", opts.Limit)
	}

	var resp struct {
		Runs []RunSummary `json:"runs"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  SYNC HISTORY"))

	if len(resp.Runs) == 0 {
		fmt.Fprintln(w, "  No runs recorded yet.")
		fmt.Fprintln(w)
		return nil
	}

	t := newTable("Started", "Source", "Result", "Written", "Skipped", "Malformed", "Failed", "Sats", "Took")
	for _, r := range resp.Runs {
		t.AppendRow([]any{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Source,
			r.result(),
			r.Written,
			r.Skipped,
			r.Malformed,
			r.Failed,
			r.Satellites,
			formatDuration(time.Duration(r.DurationMS) * time.Millisecond),
		})
	}
	t.Render()
	fmt.Fprintln(w)
	return nil
}

// printSummary renders one run as an indented key/value block.
func printSummary(r *RunSummary) {
	w := stdout
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Run:"), r.RunID)
	fmt.Fprintf(w, "  %-12s %s (%s)\n", colorize(dim, "Started:"),
		r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Source)
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Result:"), r.result())
	if r.Error != "" {
		fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Error:"), r.Error)
	}
	fmt.Fprintf(w, "  %-12s %d items, %d modes\n", colorize(dim, "Input:"), r.Items, r.Modes)
	fmt.Fprintf(w, "  %-12s %d records for %d satellites\n", colorize(dim, "Written:"), r.Written, r.Satellites)
	if r.Skipped+r.Malformed+r.Failed > 0 {
		fmt.Fprintf(w, "  %-12s %d skipped, %d malformed, %d failed\n", colorize(dim, "Dropped:"),
			r.Skipped, r.Malformed, r.Failed)
	}
	fmt.Fprintf(w, "  %-12s %s\n", colorize(dim, "Took:"),
		formatDuration(time.Duration(r.DurationMS)*time.Millisecond))
}
