// Command silence-sensor watches caregiver call buttons on GPIO and sends
// alerts when one stays held past the configured threshold.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"github.com/sweeney/silence-sensor/internal/config"
	"github.com/sweeney/silence-sensor/internal/dispatch"
	"github.com/sweeney/silence-sensor/internal/gpio"
	"github.com/sweeney/silence-sensor/internal/history"
	"github.com/sweeney/silence-sensor/internal/logging"
	"github.com/sweeney/silence-sensor/internal/logic"
	"github.com/sweeney/silence-sensor/internal/mail"
	"github.com/sweeney/silence-sensor/internal/mqtt"
	"github.com/sweeney/silence-sensor/internal/natspub"
	"github.com/sweeney/silence-sensor/internal/status"
	"github.com/sweeney/silence-sensor/internal/web"
)

const clientID = "silence-sensor"

func main() {
	configPath := flag.String("config", config.DefaultPath, "Configuration file (JSON, or YAML by extension)")
	printState := flag.Bool("print-state", false, "Print current input states and exit")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config; "off" disables)`)
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for the live status page ("=broker" derives from the broker, "off" disables)`)

	flag.Parse()

	log := logging.New(*logLevel, os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	applyFlags(cfg, *httpAddr, *broker, *logLevel)
	if *logLevel == "" {
		log = logging.New(cfg.LogLevel, os.Stderr)
	}

	ws := resolveWSBroker(*wsBroker, cfg.MQTTBroker, log)

	if err := run(cfg, *printState, ws, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// applyFlags lets command-line flags override values from the file.
func applyFlags(cfg *config.Config, httpAddr, broker, logLevel string) {
	if httpAddr == "off" {
		cfg.HTTP = ""
	} else if httpAddr != "" {
		cfg.HTTP = httpAddr
	}
	if broker != "" {
		cfg.MQTTBroker = broker
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func run(cfg *config.Config, printState bool, wsBroker string, log zerolog.Logger) error {
	names, skipped := cfg.Names()
	for _, err := range skipped {
		log.Warn().Err(err).Msg("skipping input")
	}
	inputs, _ := cfg.Inputs()

	// Initialize GPIO
	watcher, err := gpio.NewRealWatcher(cfg.Chip())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer watcher.Close()

	// Print state mode
	if printState {
		return printInputs(watcher, inputs)
	}

	// Mail first, then the optional sinks.
	sender, err := mail.NewSender(cfg.Mail())
	if err != nil {
		return fmt.Errorf("init mail: %w", err)
	}
	transports := dispatch.Multi{sender}

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTTBroker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTTBroker, clientID, log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		transports = append(transports, p)
	}

	if cfg.NATSURL != "" {
		np, err := natspub.Connect(cfg.NATSURL, natspub.DefaultPrefix)
		if err != nil {
			log.Error().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable, continuing without it")
		} else {
			defer np.Close()
			transports = append(transports, np)
		}
	}

	var recent web.Recent
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("init history: %w", err)
		}
		defer store.Close()
		recent = store
		transports = append(transports, store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := dispatch.New(transports, cfg.Dispatch(), log)
	go dispatcher.Run(ctx)

	registry := logic.NewRegistry()
	monitor := logic.NewMonitor(registry, names, dispatcher)
	scanner := logic.NewScanner(registry, names, dispatcher, cfg.ThresholdDuration(), cfg.RepeatDuration())

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, skipped, wsBroker), statusInputs(inputs))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	watched := watchInputs(watcher, monitor, inputs, cfg.Debounce(), time.Now, log)
	if watched == 0 {
		return errors.New("no inputs could be watched")
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Warn().Err(err).Msg("failed to publish startup event")
		} else {
			log.Info().Msg("published startup event")
		}
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, recent)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP).Msg("http status server listening")
	}

	log.Info().
		Int("inputs", watched).
		Dur("threshold", cfg.ThresholdDuration()).
		Dur("repeat", cfg.RepeatDuration()).
		Dur("debounce", cfg.Debounce()).
		Str("recipient", cfg.Recipient).
		Msg("started")

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("systemd notify failed")
	} else if ok {
		log.Debug().Msg("notified systemd ready")
	}

	var notify func()
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		notify = func() { daemon.SdNotify(false, daemon.SdNotifyWatchdog) }
		log.Info().Dur("interval", interval).Msg("systemd watchdog enabled")
	}

	ticker := time.NewTicker(logic.ScanPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		scanner:    scanner,
		registry:   registry,
		names:      names,
		stats:      dispatcher.Stats,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  cfg.HeartbeatInterval(),
		watchdog:   notify,
		log:        log,
	}
	err = l.run(time.Now, ticker.C, sigCh)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	return err
}

// printInputs prints the level of every configured input.
func printInputs(w gpio.Watcher, inputs []config.Input) error {
	for _, in := range inputs {
		held, err := w.IsAsserted(in.Pin)
		if err != nil {
			return fmt.Errorf("read %s: %w", in.Name, err)
		}
		fmt.Printf("%s (pin %d): %s\n", in.Name, in.Pin, levelString(held))
	}
	return nil
}

func levelString(held bool) string {
	if held {
		return "HELD"
	}
	return "RELEASED"
}

func statusConfig(cfg *config.Config, skipped []error, wsBroker string) status.Config {
	sc := status.Config{
		ThresholdMs: cfg.ThresholdDuration().Milliseconds(),
		RepeatMs:    cfg.RepeatDuration().Milliseconds(),
		DebounceMs:  cfg.Debounce().Milliseconds(),
		HeartbeatMs: cfg.HeartbeatInterval().Milliseconds(),
		QueueSize:   cfg.QueueSize,
		Recipient:   cfg.Recipient,
		Broker:      cfg.MQTTBroker,
		NATS:        cfg.NATSURL,
		HistoryDB:   cfg.HistoryDB,
		HTTPPort:    cfg.HTTP,
		WSBroker:    wsBroker,
	}
	if sc.QueueSize == 0 {
		sc.QueueSize = dispatch.DefaultQueueSize
	}
	for _, err := range skipped {
		sc.SkippedInputs = append(sc.SkippedInputs, err.Error())
	}
	return sc
}

// resolveWSBroker converts the -ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string, log zerolog.Logger) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		log.Warn().Err(err).Str("broker", broker).Msg("cannot derive websocket broker, live page disabled")
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

func statusInputs(inputs []config.Input) []status.Input {
	out := make([]status.Input, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, status.Input{Pin: in.Pin, Name: in.Name})
	}
	return out
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
