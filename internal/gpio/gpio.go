// Package gpio drives the relay and status LED outputs with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Driver sets the relay output state.
type Driver interface {
	// Set drives the relay (and its status LED) to the given logical state.
	// The relay module input is active low; Set hides the inversion.
	Set(on bool) error

	// Close de-energizes the relay and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinRelay = 17 // relay module IN, active low
	DefaultPinLED   = 27 // status LED, active high
)
