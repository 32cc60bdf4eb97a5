// Package scheduler drives the periodic work of the station daemon: refresh
// the mode table and TLEs when they are due, synchronize the transponder
// files, then sleep until the next interval or an external command.
//
// Everything that touches the transponder tree runs on the goroutine that
// calls Run, one run at a time.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/large-farva/groundstation/internal/telemetry"
	"github.com/large-farva/groundstation/internal/trsp"
)

// Syncer runs transponder syncs.
type Syncer interface {
	FetchAndSync(ctx context.Context) (trsp.Summary, error)
	SyncCached(ctx context.Context) (trsp.Summary, error)
	ModesPath() string
}

// TLERefresher keeps the element file current.
type TLERefresher interface {
	Due() bool
	Refresh(ctx context.Context) (int, error)
}

// Broadcaster receives telemetry events.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Command represents an external command sent to the scheduler via its
// Commands channel. The Reply channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK       bool          `json:"ok"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Summary  *trsp.Summary `json:"summary,omitempty"`
	Elements int           `json:"elements,omitempty"`
}

// Options configures a Runner. TLE and RefreshModes may be nil to disable
// those steps.
type Options struct {
	Engine       Syncer
	TLE          TLERefresher
	RefreshModes func(ctx context.Context) (int, error)
	ModesMaxAge  time.Duration
	Interval     time.Duration
	Hub          Broadcaster
	Log          *log.Logger
}

// Runner owns the scheduling loop.
type Runner struct {
	// Commands receives external commands from HTTP handlers. The loop
	// checks it while sleeping between runs.
	Commands chan Command

	engine       Syncer
	tle          TLERefresher
	refreshModes func(ctx context.Context) (int, error)
	modesMaxAge  time.Duration
	interval     time.Duration
	hub          Broadcaster
	log          *log.Logger

	paused atomic.Bool

	syncCallback func(trsp.Summary, error)
	tleCallback  func(int, error)
}

// New creates a scheduler.
func New(opts Options) *Runner {
	interval := opts.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Runner{
		Commands:     make(chan Command, 4),
		engine:       opts.Engine,
		tle:          opts.TLE,
		refreshModes: opts.RefreshModes,
		modesMaxAge:  opts.ModesMaxAge,
		interval:     interval,
		hub:          opts.Hub,
		log:          opts.Log,
	}
}

// SetSyncCallback registers a function called after every sync attempt.
func (r *Runner) SetSyncCallback(fn func(trsp.Summary, error)) {
	r.syncCallback = fn
}

// SetTLECallback registers a function called after every TLE refresh.
func (r *Runner) SetTLECallback(fn func(int, error)) {
	r.tleCallback = fn
}

// IsPaused reports whether periodic runs are suspended.
func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// Run is the main loop.
//
// Lifecycle:
//  1. If paused, wait for a command and loop
//  2. When the interval has elapsed, refresh modes and TLEs if due
//  3. Fetch the feed and sync the transponder files
//  4. Sleep until the next interval, handling commands as they arrive
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	r.logEvent("info", "scheduler started")

	next := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}

		if r.paused.Load() {
			setState("PAUSED")
			// Sleep for a very long time; a resume command will interrupt.
			if r.sleepOrCommand(ctx, 24*365*time.Hour, setState) == sleepCancelled {
				return
			}
			if !r.paused.Load() {
				setState(trsp.StateIdle)
			}
			continue
		}

		if !time.Now().Before(next) {
			r.maintain(ctx)
			r.runSync(ctx, trsp.SourceNetwork)
			next = time.Now().Add(r.interval)
			r.logEvent("info", fmt.Sprintf("next sync at %s", next.UTC().Format(time.RFC3339)))
		}

		if r.sleepOrCommand(ctx, time.Until(next), setState) == sleepCancelled {
			return
		}
	}
}

// maintain refreshes the cached mode table and the TLE file when due.
// Failures are reported and leave the existing files in place.
func (r *Runner) maintain(ctx context.Context) {
	if r.refreshModes != nil && r.modesDue() {
		n, err := r.refreshModes(ctx)
		if err != nil {
			r.logEvent("warn", "mode table refresh failed: "+err.Error())
		} else {
			r.logEvent("info", fmt.Sprintf("mode table refreshed, %d modes", n))
		}
	}
	if r.tle != nil && r.tle.Due() {
		r.refreshTLE(ctx)
	}
}

func (r *Runner) modesDue() bool {
	info, err := os.Stat(r.engine.ModesPath())
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) >= r.modesMaxAge
}

func (r *Runner) refreshTLE(ctx context.Context) (int, error) {
	n, err := r.tle.Refresh(ctx)
	if err != nil {
		r.logEvent("error", "TLE refresh failed: "+err.Error())
	} else {
		r.logEvent("info", fmt.Sprintf("TLE data refreshed, %d element sets", n))
	}
	r.emit(telemetry.NewTLERefreshed(n, err))
	if r.tleCallback != nil {
		r.tleCallback(n, err)
	}
	return n, err
}

func (r *Runner) runSync(ctx context.Context, source string) (trsp.Summary, error) {
	r.emit(telemetry.NewSyncStarted(source))

	var (
		sum trsp.Summary
		err error
	)
	if source == trsp.SourceCache {
		sum, err = r.engine.SyncCached(ctx)
	} else {
		sum, err = r.engine.FetchAndSync(ctx)
	}

	if err != nil {
		r.logEvent("error", "sync failed: "+err.Error())
	} else if sum.DocumentMalformed {
		r.logEvent("warn", "feed was not a JSON array, nothing written")
	}
	r.emit(telemetry.NewSyncFinished(sum))
	if r.syncCallback != nil {
		r.syncCallback(sum, err)
	}
	return sum, err
}

// sleepResult indicates what ended a sleep period.
type sleepResult int

const (
	sleepCompleted   sleepResult = iota // timer expired normally
	sleepCancelled                      // context was cancelled
	sleepInterrupted                    // a command was received and handled
)

// sleepOrCommand blocks for duration d, until ctx is cancelled, or until a
// command arrives on r.Commands. Commands are handled inline. Returns what
// ended the sleep.
func (r *Runner) sleepOrCommand(ctx context.Context, d time.Duration, setState func(string)) sleepResult {
	if d < 0 {
		d = 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return sleepCancelled
	case <-t.C:
		return sleepCompleted
	case cmd := <-r.Commands:
		r.handleCommand(ctx, cmd, setState)
		return sleepInterrupted
	}
}

// handleCommand dispatches an incoming command to the appropriate handler.
func (r *Runner) handleCommand(ctx context.Context, cmd Command, setState func(string)) {
	switch cmd.Type {
	case "sync":
		r.handleSyncCommand(ctx, cmd)
	case "tle_refresh":
		r.handleTLERefreshCommand(ctx, cmd)
	case "pause":
		r.handlePauseCommand(cmd)
	case "resume":
		r.handleResumeCommand(cmd)
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleSyncCommand runs a sync now and replies with its summary. A manual
// sync runs even while periodic runs are paused.
func (r *Runner) handleSyncCommand(ctx context.Context, cmd Command) {
	var payload struct {
		Source string `json:"source"`
	}
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			cmd.Reply <- CommandResult{OK: false, Error: "invalid payload: " + err.Error()}
			return
		}
	}

	source := trsp.SourceNetwork
	switch payload.Source {
	case "", "network":
	case "cache":
		source = trsp.SourceCache
	default:
		cmd.Reply <- CommandResult{OK: false, Error: fmt.Sprintf("unknown source %q", payload.Source)}
		return
	}

	r.logEvent("info", "manual sync from "+source)
	sum, err := r.runSync(ctx, source)
	if err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: err.Error(), Summary: &sum}
		return
	}
	cmd.Reply <- CommandResult{
		OK:      true,
		Message: fmt.Sprintf("%d records written for %d satellites", sum.Written, sum.Satellites),
		Summary: &sum,
	}
}

// handleTLERefreshCommand forces an immediate TLE refresh.
func (r *Runner) handleTLERefreshCommand(ctx context.Context, cmd Command) {
	if r.tle == nil {
		cmd.Reply <- CommandResult{OK: false, Error: "TLE updates are disabled"}
		return
	}
	n, err := r.refreshTLE(ctx)
	if err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "TLE refresh failed: " + err.Error()}
		return
	}
	cmd.Reply <- CommandResult{
		OK:       true,
		Message:  fmt.Sprintf("TLE data refreshed, %d element sets", n),
		Elements: n,
	}
}

func (r *Runner) handlePauseCommand(cmd Command) {
	if r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already paused"}
		return
	}
	r.paused.Store(true)
	r.logEvent("info", "scheduler paused by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler paused"}
}

func (r *Runner) handleResumeCommand(cmd Command) {
	if !r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already running"}
		return
	}
	r.paused.Store(false)
	r.logEvent("info", "scheduler resumed by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler resumed"}
}

func (r *Runner) logEvent(level, msg string) {
	if r.log != nil {
		r.log.Printf("scheduler: %s", msg)
	}
	r.emit(telemetry.NewLogLine("scheduler", level, msg))
}

func (r *Runner) emit(v any) {
	if r.hub != nil {
		r.hub.BroadcastJSON(v)
	}
}
