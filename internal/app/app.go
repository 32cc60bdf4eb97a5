// Package app wires together the HTTP server, WebSocket hub, sync engine,
// and scheduler. It owns the daemon's lifecycle and is the single source of
// truth for the current operating state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/groundstation/internal/config"
	"github.com/large-farva/groundstation/internal/fetch"
	"github.com/large-farva/groundstation/internal/history"
	"github.com/large-farva/groundstation/internal/metrics"
	"github.com/large-farva/groundstation/internal/scheduler"
	"github.com/large-farva/groundstation/internal/telemetry"
	"github.com/large-farva/groundstation/internal/tle"
	"github.com/large-farva/groundstation/internal/trsp"
	"github.com/large-farva/groundstation/internal/ws"
)

const logBufSize = 500

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string
}

// logEntry is one line kept for /api/logs.
type logEntry struct {
	TS        string `json:"ts"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// App is the top-level daemon process.
type App struct {
	log        *log.Logger
	cfg        config.Config
	configPath string
	bind       string
	server     *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, etc.)

	wsHub     *ws.Hub
	metrics   *metrics.Metrics
	engine    *trsp.Engine
	tle       *tle.Store
	fetcher   *fetch.Client
	history   *history.Store
	scheduler *scheduler.Runner
	publisher telemetry.Publisher

	lastSync atomic.Pointer[trsp.Summary]

	logBufMu sync.Mutex
	logBuf   []logEntry
}

// New creates an App in the BOOTING state. Nothing touches the network or
// the data root until Run (or RunOnce) is called.
func New(opts Options) *App {
	cfg := opts.Cfg
	a := &App{
		log:        opts.Logger,
		cfg:        cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
		metrics:    metrics.New(),
	}
	a.state.Store("BOOTING")

	fopts := fetch.Options{
		Timeout:   time.Duration(cfg.Trsp.FetchTimeoutSeconds) * time.Second,
		RetryMax:  cfg.Trsp.FetchRetries,
		MaxBytes:  cfg.Trsp.MaxFeedBytes,
		UserAgent: "groundstation/" + Version,
	}
	// The retrying client logs every attempt; only wanted when debugging.
	if cfg.Logging.Level == "debug" {
		fopts.Logger = a.log
	}
	a.fetcher = fetch.New(fopts)
	a.engine = trsp.New(trsp.Options{
		Root:          cfg.Data.Root,
		FeedURL:       cfg.Trsp.FeedURL,
		FeedCache:     filepath.Join(cfg.Data.Root, "cache", "transmitters.json.gz"),
		MaxPathLength: cfg.Trsp.MaxPathLength,
		Fetcher:       a.fetcher,
		Logger:        a.log,
		SetState:      a.transition,
	})
	if cfg.TLE.URL != "" {
		a.tle = tle.New(tle.Options{
			URL:          cfg.TLE.URL,
			Root:         cfg.Data.Root,
			RefreshHours: cfg.TLE.RefreshHours,
			Fetcher:      a.fetcher,
			Logger:       a.log,
		})
	}

	sopts := scheduler.Options{
		Engine:      a.engine,
		ModesMaxAge: time.Duration(cfg.Trsp.ModesRefreshHours) * time.Hour,
		Interval:    time.Duration(cfg.Trsp.RefreshHours) * time.Hour,
		Hub:         a,
		Log:         a.log,
	}
	if a.tle != nil {
		sopts.TLE = a.tle
	}
	if cfg.Trsp.ModesURL != "" {
		sopts.RefreshModes = a.refreshModes
	}
	a.scheduler = scheduler.New(sopts)
	a.scheduler.SetSyncCallback(a.recordSync)
	a.scheduler.SetTLECallback(a.recordTLE)
	return a
}

// Run opens the history, starts the hub, heartbeat and scheduler, and serves
// HTTP until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	if err := a.open(); err != nil {
		return err
	}
	defer a.close()

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", bind)

	a.start(ctx)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunOnce performs one maintenance pass and one sync without serving HTTP.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.open(); err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Trsp.ModesURL != "" {
		if n, err := a.refreshModes(ctx); err != nil {
			a.log.Printf("modes: refresh failed: %v", err)
		} else {
			a.log.Printf("modes: %d modes cached", n)
		}
	}
	if a.tle != nil {
		n, err := a.tle.Refresh(ctx)
		a.recordTLE(n, err)
	}

	sum, err := a.engine.FetchAndSync(ctx)
	a.recordSync(sum, err)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (a *App) open() error {
	if err := os.MkdirAll(a.cfg.Data.Root, 0o755); err != nil {
		return fmt.Errorf("data root: %w", err)
	}
	h, err := history.Open(filepath.Join(a.cfg.Data.Root, "history.db"), a.cfg.History.MaxRuns)
	if err != nil {
		return err
	}
	a.history = h
	if last, err := h.Last(); err == nil {
		a.lastSync.Store(&last)
	}

	if a.cfg.MQTT.Enabled {
		p, err := telemetry.NewMQTTPublisher(a.cfg.MQTT, a.log)
		if err != nil {
			a.log.Printf("mqtt: disabled: %v", err)
		} else {
			a.publisher = p
		}
	}
	return nil
}

func (a *App) close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.history != nil {
		_ = a.history.Close()
	}
}

// start launches the background goroutines. They stop with ctx.
func (a *App) start(ctx context.Context) {
	go a.wsHub.Run(ctx)
	a.transition(trsp.StateIdle)
	go a.heartbeatLoop(ctx)
	go a.scheduler.Run(ctx, a.transition)
}

func (a *App) refreshModes(ctx context.Context) (int, error) {
	return trsp.RefreshModes(ctx, a.fetcher, a.cfg.Trsp.ModesURL, a.engine.ModesPath())
}

// recordSync is called after every sync attempt, from the scheduler or
// RunOnce.
func (a *App) recordSync(sum trsp.Summary, err error) {
	a.metrics.ObserveSync(sum, err)
	if errors.Is(err, trsp.ErrBusy) {
		return
	}
	a.lastSync.Store(&sum)
	if a.history != nil {
		if herr := a.history.Append(sum); herr != nil {
			a.log.Printf("history: %v", herr)
		}
	}
	if a.publisher != nil {
		if perr := a.publisher.PublishSync(sum); perr != nil {
			a.log.Printf("mqtt: %v", perr)
		}
	}
}

func (a *App) recordTLE(n int, err error) {
	a.metrics.ObserveTLE(n, err)
	if err != nil {
		a.log.Printf("tle: refresh failed: %v", err)
	}
	if a.publisher != nil {
		if perr := a.publisher.PublishTLE(n, err); perr != nil {
			a.log.Printf("mqtt: %v", perr)
		}
	}
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)
	a.wsHub.BroadcastJSON(telemetry.NewStateTransition(old, newState))
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.NewHeartbeat(
				a.state.Load().(string), a.scheduler.IsPaused(), time.Since(a.startedAt)))
		}
	}
}

// BroadcastJSON forwards events to the hub, keeping log lines for
// /api/logs on the way through.
func (a *App) BroadcastJSON(v any) {
	if l, ok := v.(telemetry.LogLine); ok {
		a.keepLog(logEntry{TS: l.TS, Component: l.Component, Level: l.Level, Message: l.Message})
	}
	a.wsHub.BroadcastJSON(v)
}

func (a *App) keepLog(e logEntry) {
	a.logBufMu.Lock()
	defer a.logBufMu.Unlock()
	a.logBuf = append(a.logBuf, e)
	if len(a.logBuf) > logBufSize {
		a.logBuf = a.logBuf[len(a.logBuf)-logBufSize:]
	}
}
