// Package telemetry defines the typed events that stationd broadcasts over
// WebSocket (and, for run results, MQTT). Every event carries a type tag and
// an RFC 3339 timestamp so clients can filter and order them.
package telemetry

import (
	"time"

	"github.com/large-farva/groundstation/internal/trsp"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventHeartbeat    EventType = "heartbeat"
	EventState        EventType = "state"
	EventLog          EventType = "log"
	EventSyncStarted  EventType = "sync_started"
	EventSyncFinished EventType = "sync_finished"
	EventTLERefreshed EventType = "tle_refreshed"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type EventType `json:"type"`
	TS   string    `json:"ts"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType) Event { return Event{Type: t, TS: NowTS()} }

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	Paused        bool   `json:"paused"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func NewHeartbeat(state string, paused bool, uptime time.Duration) Heartbeat {
	return Heartbeat{Event: envelope(EventHeartbeat), State: state, Paused: paused, UptimeSeconds: int64(uptime.Seconds())}
}

// StateTransition is emitted whenever the daemon moves between states
// (e.g. IDLE -> FETCHING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateTransition(from, to string) StateTransition {
	return StateTransition{Event: envelope(EventState), From: from, To: to}
}

// LogLine carries a human-readable message at a severity level.
type LogLine struct {
	Event
	Component string `json:"component,omitempty"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

func NewLogLine(component, level, msg string) LogLine {
	return LogLine{Event: envelope(EventLog), Component: component, Level: level, Message: msg}
}

// SyncStarted marks the start of a run.
type SyncStarted struct {
	Event
	Source string `json:"source"`
}

func NewSyncStarted(source string) SyncStarted {
	return SyncStarted{Event: envelope(EventSyncStarted), Source: source}
}

// SyncFinished carries the summary of a completed or aborted run.
type SyncFinished struct {
	Event
	trsp.Summary
}

func NewSyncFinished(sum trsp.Summary) SyncFinished {
	return SyncFinished{Event: envelope(EventSyncFinished), Summary: sum}
}

// TLERefreshed reports the outcome of a TLE refresh.
type TLERefreshed struct {
	Event
	Elements int    `json:"elements"`
	Error    string `json:"error,omitempty"`
}

func NewTLERefreshed(elements int, err error) TLERefreshed {
	ev := TLERefreshed{Event: envelope(EventTLERefreshed), Elements: elements}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
