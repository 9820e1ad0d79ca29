// Package config persists the two lamp tuning parameters in a JSON file.
// The control loop reads the parameters once at startup; the web portal
// writes them, after which the daemon restarts to pick them up.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Version guards the on-disk format. Bumping it discards any previously
// saved configuration on the next load.
const Version = "1.0.2"

// Both parameters share the same declared bounds.
const (
	MinValue = 1
	MaxValue = 100
)

// Defaults used when no valid configuration file exists.
const (
	DefaultSwitchDelaySeconds = 30
	DefaultDarkLevel          = 25
)

// Params are the tunable lamp parameters.
type Params struct {
	// SwitchDelaySeconds is the number of consecutive stable seconds required
	// before the relay may switch.
	SwitchDelaySeconds int `json:"switch_delay_seconds"`
	// DarkLevel is the highest light level still treated as dark.
	DarkLevel int `json:"dark_level"`
}

// DefaultParams returns the factory defaults.
func DefaultParams() Params {
	return Params{
		SwitchDelaySeconds: DefaultSwitchDelaySeconds,
		DarkLevel:          DefaultDarkLevel,
	}
}

// Validate checks both parameters against the declared bounds.
func (p Params) Validate() error {
	if p.SwitchDelaySeconds < MinValue || p.SwitchDelaySeconds > MaxValue {
		return fmt.Errorf("switch_delay_seconds %d out of range [%d,%d]", p.SwitchDelaySeconds, MinValue, MaxValue)
	}
	if p.DarkLevel < MinValue || p.DarkLevel > MaxValue {
		return fmt.Errorf("dark_level %d out of range [%d,%d]", p.DarkLevel, MinValue, MaxValue)
	}
	return nil
}

// fileFormat is the on-disk envelope.
type fileFormat struct {
	Version string `json:"version"`
	Params  Params `json:"params"`
}

// Store is a JSON-file backed parameter store. Reads and writes are
// synchronized: the portal saves while the status page reads.
type Store struct {
	path string

	mu      sync.RWMutex
	params  Params
	onSaved func(Params)
}

// NewStore creates a store for the given file path, initialized to defaults
// until Load is called.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		params: DefaultParams(),
	}
}

// OnSaved registers fn to be called after every successful Save.
func (s *Store) OnSaved(fn func(Params)) {
	s.mu.Lock()
	s.onSaved = fn
	s.mu.Unlock()
}

// Load reads the configuration file. A missing file, malformed JSON, a
// version mismatch, or out-of-bounds values all fall back to defaults — the
// daemon must always come up with a working configuration.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("config: %s is not valid JSON (%v), using defaults", s.path, err)
		return nil
	}
	if f.Version != Version {
		log.Printf("config: version %q does not match %q, using defaults", f.Version, Version)
		return nil
	}
	if err := f.Params.Validate(); err != nil {
		log.Printf("config: stored parameters invalid (%v), using defaults", err)
		return nil
	}

	s.mu.Lock()
	s.params = f.Params
	s.mu.Unlock()
	return nil
}

// Save validates and persists the parameters, then notifies the OnSaved
// callback. The write is atomic (temp file + rename) so a crash mid-save
// never leaves a torn file.
func (s *Store) Save(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileFormat{Version: Version, Params: p}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}

	s.mu.Lock()
	s.params = p
	fn := s.onSaved
	s.mu.Unlock()

	if fn != nil {
		fn(p)
	}
	return nil
}

// Params returns the current parameters.
func (s *Store) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}
