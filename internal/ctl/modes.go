package ctl

import (
	"fmt"
	"strings"
)

// Modes lists the cached mode table.
func Modes(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Path   string `json:"path"`
		Cached bool   `json:"cached"`
		Modes  []struct {
			ID   int32  `json:"id"`
			Name string `json:"name"`
		} `json:"modes"`
	}
	if err := getJSON(baseURL, "/api/modes", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  MODE TABLE"))
	fmt.Fprintf(w, "  %s %s\n", colorize(dim, "file:"), resp.Path)

	if !resp.Cached {
		fmt.Fprintf(w, "  %s  mode ids will be written as numbers\n", colorize(yellow, "NOT CACHED"))
		fmt.Fprintln(w)
		return nil
	}

	t := newTable("ID", "Name")
	for _, m := range resp.Modes {
		t.AppendRow([]any{m.ID, m.Name})
	}
	t.Render()
	fmt.Fprintln(w)
	return nil
}
