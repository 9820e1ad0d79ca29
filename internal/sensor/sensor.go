// Package sensor provides ambient light level input with hardware abstraction.
// The real implementation reads a raw ADC channel through the Linux IIO sysfs
// interface. The fake implementation allows testing without hardware.
package sensor

// Reader reads the ambient light level.
type Reader interface {
	// Read returns the raw light level, nominally 0 (dark) .. 1023 (bright).
	// Values outside that range are passed through as-is.
	Read() (int, error)

	// Close releases sensor resources.
	Close() error
}

// DefaultDevice is the IIO device directory for the ADC the photoresistor
// divider is wired to.
const DefaultDevice = "/sys/bus/iio/devices/iio:device0"

// DefaultChannel is the ADC voltage channel index.
const DefaultChannel = 0
