package ctl

import (
	"fmt"
	"strings"
)

// Pause suspends the daemon's periodic syncs. Manual syncs still run.
func Pause(baseURL string, jsonOutput bool) error {
	return schedulerControl(baseURL, "/api/pause", "PAUSED", jsonOutput)
}

// Resume restarts periodic syncs.
func Resume(baseURL string, jsonOutput bool) error {
	return schedulerControl(baseURL, "/api/resume", "RESUMED", jsonOutput)
}

func schedulerControl(baseURL, path, label string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := postJSON(baseURL, path, nil, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	if result.OK {
		fmt.Fprintf(stdout, "\n  %s  %s\n\n", colorize(green, label), result.Message)
	} else {
		fmt.Fprintf(stdout, "\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}
