package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RealReader reads the raw ADC value from a Linux IIO sysfs attribute
// (in_voltageN_raw). The kernel exposes one such file per ADC channel.
type RealReader struct {
	path string
}

// NewRealReader creates a reader for the given IIO device directory and
// voltage channel index.
func NewRealReader(device string, channel int) (*RealReader, error) {
	path := filepath.Join(device, fmt.Sprintf("in_voltage%d_raw", channel))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open adc channel: %w", err)
	}
	return &RealReader{path: path}, nil
}

// Read returns the current raw ADC value. The value is not range-checked;
// whatever the kernel reports is what the controller sees.
func (r *RealReader) Read() (int, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse adc value %q: %w", raw, err)
	}
	return v, nil
}

// Close releases sensor resources. Sysfs needs no cleanup.
func (r *RealReader) Close() error {
	return nil
}
