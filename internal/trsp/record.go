package trsp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sugawarayuuta/sonnet"
)

var (
	errMalformedItem = errors.New("malformed item")
	errMissingField  = errors.New("missing required field")
)

// Record is one transmitter as it is written to a satellite file.
type Record struct {
	CatalogNumber int32   `json:"norad_cat_id"`
	Description   string  `json:"description"`
	UplinkLow     int64   `json:"uplink_low,omitempty"`
	UplinkHigh    int64   `json:"uplink_high,omitempty"`
	DownlinkLow   int64   `json:"downlink_low,omitempty"`
	DownlinkHigh  int64   `json:"downlink_high,omitempty"`
	ModeID        int32   `json:"mode_id"`
	Mode          string  `json:"mode"`
	Baud          float64 `json:"baud,omitempty"`
	Invert        bool    `json:"invert,omitempty"`
	Alive         bool    `json:"alive"`
}

type feedItem struct {
	Description  *string  `json:"description"`
	NoradCatID   *int32   `json:"norad_cat_id"`
	UplinkLow    *int64   `json:"uplink_low"`
	UplinkHigh   *int64   `json:"uplink_high"`
	DownlinkLow  *int64   `json:"downlink_low"`
	DownlinkHigh *int64   `json:"downlink_high"`
	ModeID       *int32   `json:"mode_id"`
	Invert       *bool    `json:"invert"`
	Baud         *float64 `json:"baud"`
	Alive        *bool    `json:"alive"`
}

// decodeRecord turns one feed object into a Record. Absent or null numeric
// fields read as zero. The returned error wraps errMalformedItem when raw is
// not a decodable object and errMissingField when the satellite or mode
// cannot be identified.
func decodeRecord(raw []byte) (Record, error) {
	var it feedItem
	if err := sonnet.Unmarshal(raw, &it); err != nil {
		return Record{}, fmt.Errorf("%w: %v", errMalformedItem, err)
	}
	if it.NoradCatID == nil {
		return Record{}, fmt.Errorf("%w: norad_cat_id", errMissingField)
	}
	if *it.NoradCatID <= 0 {
		return Record{}, fmt.Errorf("%w: norad_cat_id %d is not a catalog number", errMissingField, *it.NoradCatID)
	}
	if it.ModeID == nil {
		return Record{}, fmt.Errorf("%w: mode_id", errMissingField)
	}

	r := Record{
		CatalogNumber: *it.NoradCatID,
		ModeID:        *it.ModeID,
		UplinkLow:     deref(it.UplinkLow),
		UplinkHigh:    deref(it.UplinkHigh),
		DownlinkLow:   deref(it.DownlinkLow),
		DownlinkHigh:  deref(it.DownlinkHigh),
		Baud:          deref(it.Baud),
		Invert:        deref(it.Invert),
		Alive:         deref(it.Alive),
	}
	if it.Description != nil {
		r.Description = clipText(sanitize(*it.Description))
	}
	return r, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Block renders r in the satellite file format. Frequency and baud lines
// appear only when positive; INVERT only when set.
func (r Record) Block() []byte {
	var b strings.Builder
	b.Grow(128)

	b.WriteString("\n[")
	b.WriteString(r.Description)
	b.WriteString("]\n")
	writeHz(&b, "UP_LOW", r.UplinkLow)
	writeHz(&b, "UP_HIGH", r.UplinkHigh)
	writeHz(&b, "DOWN_LOW", r.DownlinkLow)
	writeHz(&b, "DOWN_HIGH", r.DownlinkHigh)
	b.WriteString("MODE=")
	b.WriteString(r.Mode)
	b.WriteByte('\n')
	if r.Baud > 0 {
		b.WriteString("BAUD=")
		b.WriteString(strconv.FormatFloat(r.Baud, 'f', 0, 64))
		b.WriteByte('\n')
	}
	if r.Invert {
		b.WriteString("INVERT=true\n")
	}
	return []byte(b.String())
}

func writeHz(b *strings.Builder, key string, hz int64) {
	if hz <= 0 {
		return
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(strconv.FormatInt(hz, 10))
	b.WriteByte('\n')
}

// clipText limits s to maxTextLen bytes without splitting a UTF-8 sequence.
func clipText(s string) string {
	if len(s) <= maxTextLen {
		return s
	}
	i := maxTextLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// sanitize keeps a description on its header line.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}
