package ctl

import (
	"fmt"
	"strings"
	"time"
)

// Satellites lists the transponder files the daemon has written.
func Satellites(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Dir        string `json:"dir"`
		Satellites []struct {
			CatalogNumber int32     `json:"norad_cat_id"`
			Transponders  int       `json:"transponders"`
			Size          int64     `json:"size"`
			Modified      time.Time `json:"modified"`
		} `json:"satellites"`
	}
	if err := getJSON(baseURL, "/api/satellites", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  TRANSPONDER FILES"))
	fmt.Fprintf(w, "  %s %s\n", colorize(dim, "dir:"), resp.Dir)

	if len(resp.Satellites) == 0 {
		fmt.Fprintln(w, "  No satellite files yet.")
		fmt.Fprintln(w)
		return nil
	}

	t := newTable("NORAD ID", "Transponders", "Size", "Modified")
	total := 0
	for _, s := range resp.Satellites {
		total += s.Transponders
		t.AppendRow([]any{
			s.CatalogNumber,
			s.Transponders,
			formatBytes(s.Size),
			s.Modified.Local().Format("2006-01-02 15:04"),
		})
	}
	t.AppendFooter([]any{fmt.Sprintf("%d satellites", len(resp.Satellites)), total, "", ""})
	t.Render()
	fmt.Fprintln(w)

	return nil
}

// ShowOptions controls the show command.
type ShowOptions struct {
	CatalogNumber int
	Raw           bool // print the file exactly as stored
	JSON          bool
}

// Show prints the transponders stored for one satellite.
func Show(baseURL string, opts ShowOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")
	if opts.CatalogNumber <= 0 {
		return fmt.Errorf("a positive NORAD catalog number is required")
	}
	path := fmt.Sprintf("/api/satellites/%d", opts.CatalogNumber)

	if opts.Raw {
		status, body, err := getRaw(baseURL, path+"?raw=1", "")
		if err != nil {
			return err
		}
		if status != 200 {
			return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
		}
		_, err = stdout.Write(body)
		return err
	}

	var resp struct {
		CatalogNumber int32 `json:"norad_cat_id"`
		Transponders  []struct {
			Name   string            `json:"name"`
			Fields map[string]string `json:"fields"`
			Order  []string          `json:"order"`
		} `json:"transponders"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	w := stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, header(fmt.Sprintf("  SATELLITE %d", resp.CatalogNumber)))

	t := newTable("Transponder", "Uplink", "Downlink", "Mode", "Baud", "Invert")
	for _, tr := range resp.Transponders {
		f := tr.Fields
		baud := f["BAUD"]
		if baud == "" {
			baud = "-"
		}
		invert := ""
		if f["INVERT"] == "true" {
			invert = "yes"
		}
		t.AppendRow([]any{
			tr.Name,
			hzRange(f["UP_LOW"], f["UP_HIGH"]),
			hzRange(f["DOWN_LOW"], f["DOWN_HIGH"]),
			f["MODE"],
			baud,
			invert,
		})
	}
	t.Render()
	fmt.Fprintln(w)

	return nil
}

func hzRange(low, high string) string {
	if high == "" {
		return formatHz(low)
	}
	return formatHz(low) + " - " + formatHz(high)
}
