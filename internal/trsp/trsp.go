// Package trsp synchronizes the on-disk transponder catalog with the SatNOGS
// transmitters feed.
//
// One run reads the cached mode table, walks the feed item by item, and
// writes one <catnum>.trsp file per satellite under <root>/conf/trsp. The
// first record written for a satellite in a run replaces whatever file was
// there before; later records for the same satellite are appended. Runs are
// serial: an Engine refuses to start a second run while one is in progress.
//
// A run that is cancelled part way through leaves the files it already
// rewrote as they are, which can mean a satellite file holding fewer records
// than the feed has. Running the sync again repairs it. Readers should only
// trust the tree after a run finishes (see Summary and the run history).
package trsp

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"
)

const (
	// FileExt is appended to the catalog number to name a satellite file.
	FileExt = ".trsp"

	// ModesFile is the cached mode table, relative to the transponder dir.
	ModesFile = "modes.json"

	// DefaultMaxPathLength matches the fixed path buffer of the flight
	// firmware: a composed path must be strictly shorter than this.
	DefaultMaxPathLength = 512

	// maxTextLen bounds descriptions and mode names, in bytes.
	maxTextLen = 79
)

// Engine states reported through Options.SetState.
const (
	StateIdle         = "IDLE"
	StateFetching     = "FETCHING"
	StateLoadingModes = "LOADING_MODES"
	StateIngesting    = "INGESTING"
	StateCleanup      = "CLEANUP"
)

// Sources recorded in Summary.Source.
const (
	SourceNetwork = "network"
	SourceCache   = "cache"
	SourceBuffer  = "buffer"
)

var (
	// ErrBusy is returned when a run is requested while another is active.
	ErrBusy = errors.New("trsp: sync already running")

	// ErrDirectory means the transponder directory could not be created.
	ErrDirectory = errors.New("trsp: transponder directory unavailable")

	// ErrPathTooLong aborts a run whose derived file path would not fit.
	ErrPathTooLong = errors.New("trsp: satellite file path too long")

	// ErrNoFeedCache is returned by SyncCached when nothing has been cached.
	ErrNoFeedCache = errors.New("trsp: no cached feed")
)

// Fetcher retrieves a document over the network.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Summary describes one run. Items counts every array element looked at;
// each of them ends up in exactly one of Written, Skipped, Malformed or
// Failed unless the run was aborted.
type Summary struct {
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

// OK reports whether the run completed without a run-level error.
func (s Summary) OK() bool { return s.Error == "" }

// Options configures an Engine.
type Options struct {
	Root          string // data root; files go to <Root>/conf/trsp
	FeedURL       string
	FeedCache     string // gzip copy of the last fetched feed; "" disables
	MaxPathLength int
	Fetcher       Fetcher
	Logger        *log.Logger
	SetState      func(string)
}

// Engine runs synchronization passes. It is safe to share between
// goroutines, but only one run proceeds at a time.
type Engine struct {
	root      string
	dir       string
	feedURL   string
	feedCache string
	maxPath   int
	fetcher   Fetcher
	log       *log.Logger
	setState  func(string)

	running atomic.Bool
}

// New creates an Engine rooted at opts.Root.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	maxPath := opts.MaxPathLength
	if maxPath <= 0 {
		maxPath = DefaultMaxPathLength
	}
	return &Engine{
		root:      opts.Root,
		dir:       filepath.Join(opts.Root, "conf", "trsp"),
		feedURL:   opts.FeedURL,
		feedCache: opts.FeedCache,
		maxPath:   maxPath,
		fetcher:   opts.Fetcher,
		log:       logger,
		setState:  opts.SetState,
	}
}

// Dir returns the transponder directory.
func (e *Engine) Dir() string { return e.dir }

// ModesPath returns the location of the cached mode table.
func (e *Engine) ModesPath() string { return filepath.Join(e.dir, ModesFile) }

// Running reports whether a run is in progress.
func (e *Engine) Running() bool { return e.running.Load() }

func (e *Engine) state(s string) {
	if e.setState != nil {
		e.setState(s)
	}
}
