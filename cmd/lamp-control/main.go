// Command lamp-control drives a lamp relay from an ambient light sensor and
// serves a web portal for the two tuning parameters.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/stscde/lamp-control/internal/config"
	"github.com/stscde/lamp-control/internal/gpio"
	"github.com/stscde/lamp-control/internal/logic"
	"github.com/stscde/lamp-control/internal/mqtt"
	"github.com/stscde/lamp-control/internal/sensor"
	"github.com/stscde/lamp-control/internal/status"
	"github.com/stscde/lamp-control/internal/web"
)

// Bootstrap holds environment-provided defaults (LAMP_* variables, optionally
// from a .env file next to the binary). Flags override.
type Bootstrap struct {
	Broker     string `envconfig:"BROKER" default:"tcp://192.168.1.200:1883"`
	HTTPAddr   string `envconfig:"HTTP_ADDR" default:":80"`
	ConfigPath string `envconfig:"CONFIG_PATH" default:"/var/lib/lamp-control/config.json"`
	ADCDevice  string `envconfig:"ADC_DEVICE" default:"/sys/bus/iio/devices/iio:device0"`
	ADCChannel int    `envconfig:"ADC_CHANNEL" default:"0"`
	PinRelay   int    `envconfig:"PIN_RELAY" default:"17"`
	PinLED     int    `envconfig:"PIN_LED" default:"27"`
}

// options are the resolved daemon settings after env and flag layering.
type options struct {
	poll       time.Duration
	broker     string
	heartbeat  time.Duration
	httpAddr   string
	configPath string
	adcDevice  string
	adcChannel int
	pinRelay   int
	pinLED     int
	printLevel bool
	wsBroker   string
}

// errRestartRequired ends the run loop after a configuration save. It is a
// lifecycle transition, not a failure: main exits with restartExitCode and
// the supervisor starts a fresh process with the new parameters.
var errRestartRequired = errors.New("restart required after configuration change")

// restartExitCode distinguishes a config-change restart from a crash for the
// systemd unit (RestartForceExitStatus=3).
const restartExitCode = 3

func main() {
	_ = godotenv.Load()

	var boot Bootstrap
	if err := envconfig.Process("lamp", &boot); err != nil {
		log.Fatalf("fatal: parse environment: %v", err)
	}

	poll := flag.Duration("poll", time.Second, "Light sampling interval")
	broker := flag.String("broker", boot.Broker, "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", boot.HTTPAddr, "HTTP status/portal address (empty to disable)")
	configPath := flag.String("config", boot.ConfigPath, "Parameter store file")
	adcDevice := flag.String("adc-device", boot.ADCDevice, "IIO device directory of the light sensor ADC")
	adcChannel := flag.Int("adc-channel", boot.ADCChannel, "IIO voltage channel index")
	pinRelay := flag.Int("pin-relay", boot.PinRelay, "BCM pin number for the relay")
	pinLED := flag.Int("pin-led", boot.PinLED, "BCM pin number for the status LED")
	printLevel := flag.Bool("print-level", false, "Print current light level and exit")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	opts := options{
		poll:       *poll,
		broker:     *broker,
		heartbeat:  *heartbeat,
		httpAddr:   *httpAddr,
		configPath: *configPath,
		adcDevice:  *adcDevice,
		adcChannel: *adcChannel,
		pinRelay:   *pinRelay,
		pinLED:     *pinLED,
		printLevel: *printLevel,
		wsBroker:   resolveWSBroker(*wsBroker, *broker),
	}

	err := run(opts)
	if errors.Is(err, errRestartRequired) {
		log.Printf("restarting for configuration change")
		os.Exit(restartExitCode)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	// Initialize light sensor
	lightReader, err := sensor.NewRealReader(opts.adcDevice, opts.adcChannel)
	if err != nil {
		return fmt.Errorf("init light sensor: %w", err)
	}
	defer lightReader.Close()

	// Print level mode
	if opts.printLevel {
		level, err := lightReader.Read()
		if err != nil {
			return fmt.Errorf("read light level: %w", err)
		}
		fmt.Printf("light level: %d\n", level)
		return nil
	}

	// Initialize relay driver, relay off until the policy says otherwise
	relay, err := gpio.NewRealDriver(opts.pinRelay, opts.pinLED)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer relay.Close()
	if err := relay.Set(false); err != nil {
		return fmt.Errorf("reset relay: %w", err)
	}

	// Load the tuning parameters
	store := config.NewStore(opts.configPath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	params := store.Params()
	settings := logic.Settings{
		SwitchDelaySeconds: params.SwitchDelaySeconds,
		DarkLevel:          params.DarkLevel,
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:             opts.poll.Milliseconds(),
		SwitchDelaySeconds: params.SwitchDelaySeconds,
		DarkLevel:          params.DarkLevel,
		HeartbeatMs:        opts.heartbeat.Milliseconds(),
		Broker:             opts.broker,
		HTTPAddr:           opts.httpAddr,
		ConfigPath:         opts.configPath,
		WSBroker:           opts.wsBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// A portal save only flags the restart; the control loop finishes its
	// tick and then winds the process down.
	restartCh := make(chan config.Params, 1)
	store.OnSaved(func(p config.Params) {
		tracker.SetRestartPending()
		select {
		case restartCh <- p:
		default:
		}
	})

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(opts.broker)
	defer publisher.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server and configuration portal
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, store)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", opts.httpAddr)
	}

	log.Printf("started: poll=%v delay=%ds dark-level=%d broker=%s heartbeat=%v",
		opts.poll, params.SwitchDelaySeconds, params.DarkLevel, opts.broker, opts.heartbeat)

	ticker := time.NewTicker(opts.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		reader:     lightReader,
		relay:      relay,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		settings:   settings,
		heartbeat:  opts.heartbeat,
		now:        time.Now,
	}
	return l.run(ticker.C, sigCh, restartCh)
}

// loop bundles the control loop's collaborators. Everything here is fixed for
// the lifetime of the process; the channels driving the loop stay explicit so
// tests can feed ticks, signals, and restarts deterministically.
type loop struct {
	reader     sensor.Reader
	relay      gpio.Driver
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	settings   logic.Settings
	heartbeat  time.Duration
	now        func() time.Time
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal, restart <-chan config.Params) error {
	controller := logic.NewController(l.settings, l.now())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				if l.mqttStatus != nil {
					l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
				}
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case p := <-restart:
			log.Printf("config saved (delay=%ds dark-level=%d), restart in 1s", p.SwitchDelaySeconds, p.DarkLevel)
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "RESTART",
				Reason:    "CONFIG_SAVED",
				Retained:  true,
			}
			if l.tracker != nil {
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "RESTART", "CONFIG_SAVED")
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish restart event: %v", err)
			}
			// One more tick of grace so the portal can deliver its
			// confirmation page before the listener goes away.
			select {
			case <-tick:
			case <-sig:
			}
			return errRestartRequired

		case <-tick:
			t := l.now()
			level, err := l.reader.Read()
			if err != nil {
				log.Printf("light sensor read error: %v", err)
				continue
			}

			event := controller.Tick(logic.Input{Level: level, Time: t})
			if event != nil {
				log.Printf("event: %s (level=%d, %s)", event.Type, event.Level, event.Classification)
				if err := l.relay.Set(event.Relay == logic.StateOn); err != nil {
					log.Printf("relay set error: %v", err)
				}
				if err := l.publisher.Publish(*event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Check for heartbeat
			if hbData := controller.CheckHeartbeat(t, l.heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v lamp_on=%d lamp_off=%d",
					hbData.Uptime, hbData.Counts.LampOn, hbData.Counts.LampOff)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if l.tracker != nil {
					if l.mqttStatus != nil {
						l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						l.tracker.SetNetwork(net)
					}
					l.tracker.Update(controller.Relay(), controller.Classification(), controller.Level(), controller.Stability(), controller.EventCountsSnapshot())
					snap := l.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if l.tracker != nil {
				l.tracker.Update(controller.Relay(), controller.Classification(), controller.Level(), controller.Stability(), controller.EventCountsSnapshot())
				if l.mqttStatus != nil {
					l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
