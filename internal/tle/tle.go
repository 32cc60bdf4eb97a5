// Package tle keeps the on-board element file current. It downloads the
// CelesTrak amateur group, checks that the text parses as element sets, and
// writes it to <root>/tle_eph followed by a blank line and the update time.
// The same time is written on its own to <root>/latest_update.txt.
package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"
)

const (
	// EphemerisFile is the element file name under the data root.
	EphemerisFile = "tle_eph"

	// StampFile holds the time of the last successful update.
	StampFile = "latest_update.txt"

	// StampLayout formats the update time in both files.
	StampLayout = "2006-01-02 15:04:05"
)

// ErrNoElements is returned when a download holds no parseable element set.
var ErrNoElements = errors.New("tle: no valid element sets")

// Fetcher retrieves the element text.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Store.
type Options struct {
	URL          string
	Root         string
	RefreshHours int
	Fetcher      Fetcher
	Logger       *log.Logger
}

// Store fetches and caches the element file.
type Store struct {
	url     string
	root    string
	maxAge  time.Duration
	fetcher Fetcher
	log     *log.Logger
	now     func() time.Time
}

// New returns a store that fetches TLEs from opts.URL and writes them under
// opts.Root.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		url:     opts.URL,
		root:    opts.Root,
		maxAge:  time.Duration(opts.RefreshHours) * time.Hour,
		fetcher: opts.Fetcher,
		log:     logger,
		now:     time.Now,
	}
}

// Path is the element file location.
func (s *Store) Path() string { return filepath.Join(s.root, EphemerisFile) }

// StampPath is the update-time file location.
func (s *Store) StampPath() string { return filepath.Join(s.root, StampFile) }

// Due reports whether the element file is missing or older than the
// refresh interval.
func (s *Store) Due() bool {
	info, err := os.Stat(s.Path())
	if err != nil {
		return true
	}
	return s.now().Sub(info.ModTime()) >= s.maxAge
}

// Refresh downloads the element sets and replaces both files. The existing
// files are kept if the download fails or holds nothing usable. It returns
// the number of element sets written.
func (s *Store) Refresh(ctx context.Context) (int, error) {
	if s.fetcher == nil {
		return 0, errors.New("tle: no fetcher configured")
	}
	s.log.Printf("tle: downloading %s", s.url)

	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return 0, fmt.Errorf("tle download: %w", err)
	}

	sets := Parse(string(body))
	if len(sets) == 0 {
		return 0, fmt.Errorf("%w in %d bytes from %s", ErrNoElements, len(body), s.url)
	}

	stamp := s.now().Format(StampLayout)

	var b strings.Builder
	b.Grow(len(body) + len(stamp) + 3)
	b.Write(body)
	b.WriteString("\n\n")
	b.WriteString(stamp)
	b.WriteString("\n")

	if err := writeCache(s.Path(), b.String()); err != nil {
		return 0, fmt.Errorf("tle write: %w", err)
	}
	if err := writeCache(s.StampPath(), stamp); err != nil {
		return 0, fmt.Errorf("tle stamp: %w", err)
	}

	s.log.Printf("tle: %d element sets saved to %s", len(sets), s.Path())
	return len(sets), nil
}

// Parse extracts the element sets from 3-line text (name, line 1, line 2)
// as served by CelesTrak. Lines that do not start a valid set are skipped
// one at a time so a stray line cannot shift every later set.
func Parse(raw string) []*sgp4.TLE {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	var out []*sgp4.TLE
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		l1 := strings.TrimSpace(lines[i+1])
		l2 := strings.TrimSpace(lines[i+2])
		if !elementLine(l1, '1') || !elementLine(l2, '2') {
			i++
			continue
		}

		t, err := sgp4.ParseTLE(name + "\n" + l1 + "\n" + l2)
		if err != nil {
			i++
			continue
		}
		out = append(out, t)
		i += 3
	}
	return out
}

func elementLine(l string, n byte) bool {
	return len(l) >= 69 && l[0] == n && l[1] == ' '
}

// CacheInfo describes the element file for status reporting.
type CacheInfo struct {
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Fresh       bool   `json:"fresh"`
	ModTime     string `json:"mod_time,omitempty"`
	AgeS        int    `json:"age_s"`
	Size        int64  `json:"size"`
	Elements    int    `json:"elements"`
	LastUpdate  string `json:"last_update,omitempty"`
	SourceURL   string `json:"source_url"`
	MaxAgeHours int    `json:"max_age_hours"`
}

// CacheInfo stats the element file and counts the sets it holds.
func (s *Store) CacheInfo() CacheInfo {
	info := CacheInfo{
		Path:        s.Path(),
		SourceURL:   s.url,
		MaxAgeHours: int(s.maxAge / time.Hour),
	}

	st, err := os.Stat(info.Path)
	if err != nil {
		return info
	}
	age := s.now().Sub(st.ModTime())
	info.Exists = true
	info.ModTime = st.ModTime().UTC().Format(time.RFC3339)
	info.AgeS = int(age.Seconds())
	info.Size = st.Size()
	info.Fresh = age < s.maxAge

	if b, err := os.ReadFile(info.Path); err == nil {
		info.Elements = len(Parse(string(b)))
	}
	if b, err := os.ReadFile(s.StampPath()); err == nil {
		info.LastUpdate = strings.TrimSpace(string(b))
	}
	return info
}

// writeCache atomically writes data to path via a temp file and rename
// so readers never see a half-written file.
func writeCache(path, data string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tle-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
