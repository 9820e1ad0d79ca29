// Package logic contains the pure lamp-switching policy.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the relay state.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Classification labels a light reading relative to the dark level.
type Classification string

const (
	ClassDark   Classification = "DARK"
	ClassBright Classification = "BRIGHT"
)

// EventType represents a relay transition event.
type EventType string

const (
	EventLampOn  EventType = "LAMP_ON"
	EventLampOff EventType = "LAMP_OFF"
)

// Settings are the two tunable parameters. The config store bounds-checks
// them before the controller ever sees a value.
type Settings struct {
	// SwitchDelaySeconds is the number of consecutive stable seconds required
	// before the relay may change state.
	SwitchDelaySeconds int
	// DarkLevel is the highest light level still classified as dark.
	DarkLevel int
}

// Input is a single light sensor sample.
type Input struct {
	// Level is the raw light level, nominally 0 (dark) .. 1023 (bright).
	// Out-of-range values are accepted as-is.
	Level int
	Time  time.Time
}

// Event represents a relay transition to be published.
type Event struct {
	Timestamp      time.Time
	Type           EventType
	Relay          State
	Level          int
	Classification Classification
}

// EventCounts tracks the number of each transition type since startup.
type EventCounts struct {
	LampOn  int
	LampOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
