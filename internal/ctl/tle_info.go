package ctl

import (
	"fmt"
	"strings"
	"time"
)

// TLEInfo shows TLE cache status and freshness.
func TLEInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Path       string `json:"path"`
		Exists     bool   `json:"exists"`
		Fresh      bool   `json:"fresh"`
		ModTime    string `json:"mod_time"`
		AgeS       int    `json:"age_s"`
		Size       int64  `json:"size"`
		Elements   int    `json:"elements"`
		LastUpdate string `json:"last_update"`
		SourceURL  string `json:"source_url"`
		MaxAgeH    int    `json:"max_age_hours"`
	}
	if err := getJSON(baseURL, "/api/tle-info", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  TLE CACHE INFO"))
	fmt.Fprintln(w, rule(50))
	fmt.Fprintf(w, "  Cache file: %s\n", resp.Path)

	if !resp.Exists {
		fmt.Fprintf(w, "  Status:     %s\n", colorize(red, "NOT FOUND"))
		fmt.Fprintf(w, "  Source:     %s\n", resp.SourceURL)
		fmt.Fprintln(w)
		return nil
	}

	if resp.Fresh {
		fmt.Fprintf(w, "  Status:     %s\n", colorize(green, "FRESH"))
	} else {
		fmt.Fprintf(w, "  Status:     %s\n", colorize(yellow, "STALE"))
	}

	age := time.Duration(resp.AgeS) * time.Second
	fmt.Fprintf(w, "  Age:        %s\n", formatDuration(age))
	fmt.Fprintf(w, "  Last fetch: %s\n", resp.ModTime)
	if resp.LastUpdate != "" {
		fmt.Fprintf(w, "  Stamp:      %s\n", resp.LastUpdate)
	}
	fmt.Fprintf(w, "  Max age:    %dh\n", resp.MaxAgeH)
	fmt.Fprintf(w, "  Elements:   %d\n", resp.Elements)
	fmt.Fprintf(w, "  Size:       %s\n", formatBytes(resp.Size))
	fmt.Fprintf(w, "  Source:     %s\n", resp.SourceURL)
	fmt.Fprintln(w)
	return nil
}
