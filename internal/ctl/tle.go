package ctl

import (
	"fmt"
	"strings"
)

// TLERefresh asks the daemon to download the element sets now.
func TLERefresh(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		OK       bool   `json:"ok"`
		Message  string `json:"message"`
		Error    string `json:"error"`
		Elements int    `json:"elements"`
	}
	if err := postJSON(baseURL, "/api/tle-refresh", nil, &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	if resp.OK {
		fmt.Fprintf(w, "  %s  %s\n", colorize(green, "REFRESHED"), resp.Message)
	} else {
		fmt.Fprintf(w, "  %s  %s\n", colorize(red, "FAILED"), resp.Error)
	}
	fmt.Fprintln(w)

	return nil
}
