//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealDriver drives the relay and status LED through the Linux GPIO
// character device.
type RealDriver struct {
	chip  *gpiocdev.Chip
	relay *gpiocdev.Line
	led   *gpiocdev.Line
}

// NewRealDriver requests the relay and LED lines as outputs, starting in the
// relay-off position. The relay input is active low, so "off" means driving
// the line high.
func NewRealDriver(pinRelay, pinLED int) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	relayLine, err := chip.RequestLine(pinRelay, gpiocdev.AsOutput(1))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pinRelay, err)
	}

	ledLine, err := chip.RequestLine(pinLED, gpiocdev.AsOutput(0))
	if err != nil {
		relayLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request led pin %d: %w", pinLED, err)
	}

	return &RealDriver{
		chip:  chip,
		relay: relayLine,
		led:   ledLine,
	}, nil
}

// Set drives both output lines. The LED mirrors the logical state; the relay
// line is inverted.
func (d *RealDriver) Set(on bool) error {
	relayValue, ledValue := 1, 0
	if on {
		relayValue, ledValue = 0, 1
	}

	if err := d.relay.SetValue(relayValue); err != nil {
		return fmt.Errorf("set relay pin: %w", err)
	}
	if err := d.led.SetValue(ledValue); err != nil {
		return fmt.Errorf("set led pin: %w", err)
	}
	return nil
}

// Close drives the relay to its off position before releasing the lines, so
// the lamp never stays energized across a daemon restart.
func (d *RealDriver) Close() error {
	var errs []error

	if d.relay != nil {
		if err := d.relay.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("park relay pin: %w", err))
		}
		if err := d.relay.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	if d.led != nil {
		if err := d.led.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("park led pin: %w", err))
		}
		if err := d.led.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led pin: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
