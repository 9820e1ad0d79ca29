package gpio

// FakeDriver records relay commands for test assertions.
type FakeDriver struct {
	// States contains every value passed to Set, in order.
	States []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver for testing.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// Set records the requested state.
func (f *FakeDriver) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, on)
	return nil
}

// Last returns the most recent state set, and whether Set was called at all.
func (f *FakeDriver) Last() (bool, bool) {
	if len(f.States) == 0 {
		return false, false
	}
	return f.States[len(f.States)-1], true
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded state.
func (f *FakeDriver) Reset() {
	f.States = nil
	f.SetError = nil
	f.Closed = false
}
