// Package status provides a thread-safe status tracker for the lamp-control
// daemon. It is read by the HTTP handlers and serialized into MQTT system
// events.
package status

import (
	"sync"
	"time"

	"github.com/stscde/lamp-control/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs             int64
	SwitchDelaySeconds int
	DarkLevel          int
	HeartbeatMs        int64
	Broker             string
	HTTPAddr           string
	ConfigPath         string
	WSBroker           string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Relay          logic.State
	Classification logic.Classification
	Level          int
	Stability      int
	RestartPending bool
	Counts         logic.EventCounts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the relay state, classification, light level, stability counter
// and event counts. Called from runLoop on every tick.
func (t *Tracker) Update(relay logic.State, class logic.Classification, level, stability int, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Relay = relay
	t.snap.Classification = class
	t.snap.Level = level
	t.snap.Stability = stability
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetRestartPending marks that a configuration save requires a restart.
// There is no way to clear it; the process restarts instead.
func (t *Tracker) SetRestartPending() {
	t.mu.Lock()
	t.snap.RestartPending = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
