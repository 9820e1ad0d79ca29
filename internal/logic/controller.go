package logic

import "time"

// Controller holds the lamp policy state: the current dark/bright
// classification, how long it has held steady, and the relay it drives.
type Controller struct {
	settings Settings

	relay     State
	dark      bool
	level     int
	stability int

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewController creates a controller with the relay OFF and the classification
// assumed bright. A fresh boot treats the room as lit until the sensor says
// otherwise, so a dark boot still has to sit through the full switch delay.
func NewController(settings Settings, startTime time.Time) *Controller {
	return &Controller{
		settings:      settings,
		relay:         StateOff,
		level:         1023,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Tick processes one sensor sample and returns the relay transition, if any.
// At most one transition happens per tick, and only when the classification
// has held for at least SwitchDelaySeconds consecutive samples.
func (c *Controller) Tick(input Input) *Event {
	dark := input.Level <= c.settings.DarkLevel

	// Consecutive samples with an unchanged classification; any flip restarts
	// the count from zero.
	if dark == c.dark {
		c.stability++
	} else {
		c.stability = 0
	}
	c.dark = dark
	c.level = input.Level

	// Clamp so the counter never exceeds the delay.
	if c.stability > c.settings.SwitchDelaySeconds {
		c.stability = c.settings.SwitchDelaySeconds
	}

	switchAllowed := c.stability >= c.settings.SwitchDelaySeconds

	if c.relay == StateOff && dark && switchAllowed {
		c.relay = StateOn
		c.eventCounts.LampOn++
		return c.event(EventLampOn, input)
	}
	if c.relay == StateOn && !dark && switchAllowed {
		c.relay = StateOff
		c.eventCounts.LampOff++
		return c.event(EventLampOff, input)
	}
	return nil
}

func (c *Controller) event(t EventType, input Input) *Event {
	return &Event{
		Timestamp:      input.Time,
		Type:           t,
		Relay:          c.relay,
		Level:          input.Level,
		Classification: c.Classification(),
	}
}

// Relay returns the current relay state.
func (c *Controller) Relay() State {
	return c.relay
}

// Classification returns the current dark/bright classification.
func (c *Controller) Classification() Classification {
	if c.dark {
		return ClassDark
	}
	return ClassBright
}

// Level returns the most recent light reading.
func (c *Controller) Level() int {
	return c.level
}

// Stability returns the clamped count of consecutive samples the current
// classification has held.
func (c *Controller) Stability() int {
	return c.stability
}

// EventCountsSnapshot returns a copy of the transition counts.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
