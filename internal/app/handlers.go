package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/groundstation/internal/scheduler"
	"github.com/large-farva/groundstation/internal/trsp"
)

// routes builds the daemon's HTTP API.
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/sync", a.handleSync)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/api/satellites", a.handleSatellites)
	mux.HandleFunc("/api/satellites/", a.handleSatellite)
	mux.HandleFunc("/api/modes", a.handleModes)
	mux.HandleFunc("/api/tle-info", a.handleTLEInfo)
	mux.HandleFunc("/api/tle-refresh", a.handleTLERefresh)
	mux.HandleFunc("/api/pause", a.handlePause)
	mux.HandleFunc("/api/resume", a.handleResume)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.Handle("/ws", a.wsHub.Handler())
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":           "groundstation",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"data_root":      a.cfg.Data.Root,
		"trsp_dir":       a.engine.Dir(),
		"paused":         a.scheduler.IsPaused(),
		"syncing":        a.engine.Running(),
		"ws_clients":     a.wsHub.Clients(),
		"ws_dropped":     a.wsHub.Dropped(),
	}
	if last := a.lastSync.Load(); last != nil {
		resp["last_sync"] = last
	}
	if du := diskUsage(a.cfg.Data.Root); du != nil {
		resp["disk"] = du
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	goVersion := GoVersion
	if goVersion == "unknown" {
		goVersion = runtime.Version()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": goVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"config_path": a.configPath,
		"config":      a.cfg,
	})
}

// ---------------------------------------------------------------------------
// Sync + catalog
// ---------------------------------------------------------------------------

func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.engine.Running() {
		jsonError(w, trsp.ErrBusy.Error(), http.StatusConflict)
		return
	}

	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	payload, _ := json.Marshal(req)
	result := a.sendSchedulerCommand(r.Context(), "sync", payload)
	writeCommandResult(w, result)
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := a.history.List(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []trsp.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *App) handleSatellites(w http.ResponseWriter, _ *http.Request) {
	files, err := a.engine.List()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []trsp.SatelliteFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dir":        a.engine.Dir(),
		"satellites": files,
	})
}

// handleSatellite serves /api/satellites/<catnum>. With ?raw=1 the file is
// returned as stored.
func (a *App) handleSatellite(w http.ResponseWriter, r *http.Request) {
	s := strings.TrimPrefix(r.URL.Path, "/api/satellites/")
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		jsonError(w, "catalog number must be a positive integer", http.StatusBadRequest)
		return
	}
	catnum := int32(n)

	if r.URL.Query().Get("raw") != "" {
		http.ServeFile(w, r, filepath.Join(a.engine.Dir(), s+trsp.FileExt))
		return
	}

	trs, err := a.engine.Read(catnum)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			jsonError(w, "no transponder file for "+s, http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"norad_cat_id": catnum,
		"transponders": trs,
	})
}

func (a *App) handleModes(w http.ResponseWriter, _ *http.Request) {
	modes, err := trsp.ReadModes(a.engine.ModesPath())
	cached := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if modes == nil {
		modes = []trsp.Mode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   a.engine.ModesPath(),
		"cached": cached,
		"modes":  modes,
	})
}

// ---------------------------------------------------------------------------
// TLE
// ---------------------------------------------------------------------------

func (a *App) handleTLEInfo(w http.ResponseWriter, _ *http.Request) {
	if a.tle == nil {
		jsonError(w, "TLE updates are disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a.tle.CacheInfo())
}

func (a *App) handleTLERefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result := a.sendSchedulerCommand(r.Context(), "tle_refresh", nil)
	writeCommandResult(w, result)
}

// ---------------------------------------------------------------------------
// Logs + health
// ---------------------------------------------------------------------------

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.logBufMu.Lock()
	entries := make([]logEntry, len(a.logBuf))
	copy(entries, a.logBuf)
	a.logBufMu.Unlock()

	levelFilter := r.URL.Query().Get("level")
	if levelFilter != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Level == levelFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	// Data directory must be writable.
	tmpPath := filepath.Join(a.cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		_ = os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": a.cfg.Data.Root}
	}

	if last := a.lastSync.Load(); last == nil {
		checks["last_sync"] = map[string]any{"ok": false, "error": "no sync recorded"}
		allOK = false
	} else {
		ok := last.OK() && !last.DocumentMalformed
		if !ok {
			allOK = false
		}
		checks["last_sync"] = map[string]any{
			"ok":         ok,
			"run_id":     last.RunID,
			"started_at": last.StartedAt,
			"error":      last.Error,
		}
	}

	if a.tle != nil {
		info := a.tle.CacheInfo()
		if !info.Exists {
			checks["tle_cache"] = map[string]any{"ok": false, "error": "cache file not found"}
			allOK = false
		} else {
			if !info.Fresh {
				allOK = false
			}
			checks["tle_cache"] = map[string]any{"ok": info.Fresh, "age_s": info.AgeS, "fresh": info.Fresh}
		}
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Scheduler controls
// ---------------------------------------------------------------------------

func (a *App) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendSchedulerCommand(r.Context(), "pause", nil))
}

func (a *App) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendSchedulerCommand(r.Context(), "resume", nil))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendSchedulerCommand sends a command to the scheduler and waits for the
// reply or for the request to go away.
func (a *App) sendSchedulerCommand(ctx context.Context, cmdType string, payload json.RawMessage) scheduler.CommandResult {
	reply := make(chan scheduler.CommandResult, 1)
	select {
	case a.scheduler.Commands <- scheduler.Command{Type: cmdType, Payload: payload, Reply: reply}:
	case <-ctx.Done():
		return scheduler.CommandResult{OK: false, Error: "request cancelled"}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return scheduler.CommandResult{OK: false, Error: "request cancelled"}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a scheduler.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	code := http.StatusOK
	if !result.OK {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, result)
}
