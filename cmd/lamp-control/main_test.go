package main

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stscde/lamp-control/internal/config"
	"github.com/stscde/lamp-control/internal/gpio"
	"github.com/stscde/lamp-control/internal/logic"
	"github.com/stscde/lamp-control/internal/mqtt"
	"github.com/stscde/lamp-control/internal/sensor"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants — not the other way around.
func TestEnvVarNames(t *testing.T) {
	// These are the canonical names from pi-helper.
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Type != "wifi" {
		t.Errorf("Type: got %q, want wifi", info.Type)
	}
	if info.IP != "192.168.1.100" {
		t.Errorf("IP: got %q, want 192.168.1.100", info.IP)
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want connected", info.Status)
	}
	if info.SSID != "MyNetwork" {
		t.Errorf("SSID: got %q, want MyNetwork", info.SSID)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	info := readNetworkInfo()
	if info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestResolveWSBroker(t *testing.T) {
	cases := []struct {
		name   string
		ws     string
		broker string
		want   string
	}{
		{"derive from broker", "=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"explicit url", "ws://other:9001", "tcp://192.168.1.200:1883", "ws://other:9001"},
		{"disabled", "off", "tcp://192.168.1.200:1883", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveWSBroker(tc.ws, tc.broker); got != tc.want {
				t.Errorf("resolveWSBroker(%q, %q): got %q, want %q", tc.ws, tc.broker, got, tc.want)
			}
		})
	}
}

// --- control loop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from the loop goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of level.
func repeat(level, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = level
	}
	return out
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
// No shared mutable state — the fault range is fixed at construction.
type faultReader struct {
	inner      *sensor.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (int, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return 0, errors.New("sensor fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

func testLoopSettings() logic.Settings {
	return logic.Settings{SwitchDelaySeconds: 3, DarkLevel: 25}
}

func testLoop(reader sensor.Reader, relay gpio.Driver, pub *mqtt.FakePublisher, settings logic.Settings, heartbeat time.Duration, clock func() time.Time) *loop {
	return &loop{
		reader:     reader,
		relay:      relay,
		publisher:  pub,
		mqttStatus: pub,
		settings:   settings,
		heartbeat:  heartbeat,
		now:        clock,
	}
}

// runRunLoop drives the loop with nTicks ticks and then the given signal,
// returning the loop's error.
func runRunLoop(t *testing.T, reader sensor.Reader, relay gpio.Driver, pub *mqtt.FakePublisher, settings logic.Settings, heartbeat time.Duration, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	l := testLoop(reader, relay, pub, settings, heartbeat, clock)
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run(tick, sig, nil)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopNoTransitionWhileBright(t *testing.T) {
	// Stable bright readings with the relay off: nothing to do.
	reader := sensor.NewFakeReader(repeat(500, 6))
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, 6, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 lamp events, got %d", len(pub.Events))
	}
	if len(relay.States) != 0 {
		t.Errorf("expected no relay commands, got %d", len(relay.States))
	}

	// Should have exactly one system event: SHUTDOWN
	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", pub.SystemEvents[0].Event)
	}
	if pub.SystemEvents[0].Reason != "SIGTERM" {
		t.Errorf("expected SIGTERM reason, got %q", pub.SystemEvents[0].Reason)
	}
}

func TestRunLoopDarkSwitchesOn(t *testing.T) {
	// Dark readings: flip tick resets the counter, then 3 more reach the delay.
	reader := sensor.NewFakeReader(repeat(10, 5))
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, 5, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 lamp event, got %d", len(pub.Events))
	}
	if pub.Events[0].Type != logic.EventLampOn {
		t.Errorf("expected LAMP_ON, got %s", pub.Events[0].Type)
	}

	last, ok := relay.Last()
	if !ok {
		t.Fatal("expected relay to be driven")
	}
	if !last {
		t.Error("expected relay driven ON")
	}
	if len(relay.States) != 1 {
		t.Errorf("expected exactly 1 relay command, got %d", len(relay.States))
	}
}

func TestRunLoopFullCycle(t *testing.T) {
	// Night falls, then morning: exactly one ON and one OFF.
	samples := append(repeat(10, 5), repeat(600, 5)...)
	reader := sensor.NewFakeReader(samples)
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 lamp events, got %d", len(pub.Events))
	}
	if pub.Events[0].Type != logic.EventLampOn {
		t.Errorf("event 0: expected LAMP_ON, got %s", pub.Events[0].Type)
	}
	if pub.Events[1].Type != logic.EventLampOff {
		t.Errorf("event 1: expected LAMP_OFF, got %s", pub.Events[1].Type)
	}

	want := []bool{true, false}
	if len(relay.States) != len(want) {
		t.Fatalf("relay commands: got %d, want %d", len(relay.States), len(want))
	}
	for i, w := range want {
		if relay.States[i] != w {
			t.Errorf("relay command %d: got %v, want %v", i, relay.States[i], w)
		}
	}
}

func TestRunLoopOscillationNeverSwitches(t *testing.T) {
	samples := make([]int, 12)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 10
		} else {
			samples[i] = 500
		}
	}
	reader := sensor.NewFakeReader(samples)
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 lamp events for oscillating input, got %d", len(pub.Events))
	}
	if len(relay.States) != 0 {
		t.Errorf("expected no relay commands, got %d", len(relay.States))
	}
}

func TestRunLoopSensorError(t *testing.T) {
	// 2 valid reads then 2 faults. Loop should continue past errors
	// and still publish SHUTDOWN.
	inner := sensor.NewFakeReader(repeat(500, 2))
	reader := &faultReader{
		inner:      inner,
		faultStart: 2, // calls 2,3 return error
		faultEnd:   4,
	}
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN after sensor faults, got %+v", pub.SystemEvents)
	}
}

func TestRunLoopPublishErrorDoesNotStopLoop(t *testing.T) {
	reader := sensor.NewFakeReader(repeat(10, 6))
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker unreachable")
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, 6, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	// The relay must still be driven even though publishing failed.
	last, ok := relay.Last()
	if !ok || !last {
		t.Error("expected relay ON despite publish failure")
	}
}

func TestRunLoopRestartAfterConfigSave(t *testing.T) {
	reader := sensor.NewFakeReader(repeat(500, 4))
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	restart := make(chan config.Params, 1)

	l := testLoop(reader, relay, pub, testLoopSettings(), 0, clock)
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run(tick, sig, restart)
	}()

	// A couple of ordinary ticks, then the portal saves.
	tick <- time.Time{}
	tick <- time.Time{}
	restart <- config.Params{SwitchDelaySeconds: 5, DarkLevel: 40}
	// The loop waits one grace tick before returning.
	tick <- time.Time{}

	err := <-errCh
	if !errors.Is(err, errRestartRequired) {
		t.Fatalf("expected errRestartRequired, got %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	ev := pub.SystemEvents[0]
	if ev.Event != "RESTART" {
		t.Errorf("expected RESTART event, got %q", ev.Event)
	}
	if ev.Reason != "CONFIG_SAVED" {
		t.Errorf("expected CONFIG_SAVED reason, got %q", ev.Reason)
	}
	if !ev.Retained {
		t.Error("RESTART event should be retained")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	reader := sensor.NewFakeReader(repeat(500, 5))
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	// Clock steps one minute per call; heartbeat every 2 minutes.
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 2*time.Minute, clock, 5, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	var heartbeats int
	for _, ev := range pub.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			heartbeats++
		}
	}
	if heartbeats == 0 {
		t.Error("expected at least one HEARTBEAT system event")
	}
}

func TestRunLoopShutdownOnSIGINT(t *testing.T) {
	reader := sensor.NewFakeReader(repeat(500, 1))
	relay := gpio.NewFakeDriver()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	err := runRunLoop(t, reader, relay, pub, testLoopSettings(), 0, clock, 1, syscall.SIGINT)
	if err != nil {
		t.Fatalf("loop returned error: %v", err)
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("expected SHUTDOWN with SIGINT reason, got %+v", pub.SystemEvents)
	}
}
