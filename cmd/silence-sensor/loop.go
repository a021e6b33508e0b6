package main

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/silence-sensor/internal/config"
	"github.com/sweeney/silence-sensor/internal/dispatch"
	"github.com/sweeney/silence-sensor/internal/gpio"
	"github.com/sweeney/silence-sensor/internal/logic"
	"github.com/sweeney/silence-sensor/internal/mqtt"
	"github.com/sweeney/silence-sensor/internal/status"
)

// watchInputs starts edge delivery for every input, then primes the registry
// with inputs already held. Watching first means a press between the two
// steps is recorded normally and the prime becomes a duplicate press. A
// release that lands between the read and the prime finds no entry, so the
// level is read again after priming and a released input is let go.
// It returns the number of inputs being watched.
func watchInputs(w gpio.Watcher, m *logic.Monitor, inputs []config.Input, debounce time.Duration, now func() time.Time, log zerolog.Logger) int {
	watched := 0
	for _, in := range inputs {
		ilog := log.With().Str("input", in.Name).Int("pin", in.Pin).Logger()

		if err := w.Watch(in.Pin, debounce, edgeHandler(m, ilog)); err != nil {
			ilog.Error().Err(err).Msg("cannot watch input, skipping")
			continue
		}
		watched++

		held, err := w.IsAsserted(in.Pin)
		if err != nil {
			ilog.Warn().Err(err).Msg("cannot read initial state")
			continue
		}
		if !held {
			continue
		}
		res := m.Prime(in.Pin, now())
		if !res.Changed {
			continue
		}
		ilog.Warn().Msg("input held at startup")

		if still, err := w.IsAsserted(in.Pin); err == nil && !still {
			logEdge(ilog, m.HandleEdge(logic.Edge{Pin: in.Pin, Kind: logic.EdgeReleased, Time: now()}))
		}
	}
	return watched
}

// edgeHandler converts hardware events into registry edges.
func edgeHandler(m *logic.Monitor, log zerolog.Logger) gpio.Handler {
	return func(e gpio.Event) {
		kind := logic.EdgeReleased
		if e.Asserted {
			kind = logic.EdgeAsserted
		}
		logEdge(log, m.HandleEdge(logic.Edge{Pin: e.Pin, Kind: kind, Time: e.Time}))
	}
}

func logEdge(log zerolog.Logger, res logic.EdgeResult) {
	switch {
	case !res.Changed && res.Edge.Kind == logic.EdgeAsserted:
		log.Debug().Msg("press on held input ignored")
	case !res.Changed:
		log.Debug().Msg("release on idle input ignored")
	case res.Edge.Kind == logic.EdgeAsserted:
		log.Info().Msg("event: pressed")
	case res.Notification != nil:
		log.Info().
			Dur("held", res.Held()).
			Int("alerts", res.State.Alerts).
			Bool("queued", !res.Dropped).
			Msg("event: silence ended")
	default:
		log.Info().Dur("held", res.Held()).Msg("event: released")
	}
}

// loop drives the scanner and the periodic status work.
type loop struct {
	scanner    *logic.Scanner
	registry   *logic.Registry
	names      logic.NameTable
	stats      func() dispatch.Stats
	publisher  mqtt.Publisher        // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker    *status.Tracker
	heartbeat  time.Duration
	watchdog   func() // nil unless systemd asked for watchdog pings
	log        zerolog.Logger

	// in-flight heartbeat publishes
	wg sync.WaitGroup
}

// run scans on every tick until a signal arrives.
func (l *loop) run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now())

	for {
		select {
		case s := <-sig:
			l.log.Info().Str("signal", s.String()).Msg("shutting down")
			l.wg.Wait()
			l.shutdown(now(), signalName(s))
			return nil

		case <-tick:
			t := now()
			res := l.scanner.Scan(t)
			for _, n := range res.Queued {
				l.log.Warn().
					Str("input", n.Name).
					Int("pin", n.Pin).
					Dur("silent", n.Duration).
					Int("alerts", n.Alerts).
					Msg("event: silence alert")
			}
			// The dispatcher already logged the drop.
			for _, n := range res.Dropped {
				l.log.Debug().Str("input", n.Name).Int("pin", n.Pin).Msg("silence alert not queued")
			}

			l.updateTracker()

			if hbData := hb.Check(t, l.heartbeat, l.registry.Counts()); hbData != nil {
				l.sendHeartbeat(hbData)
			}

			if l.watchdog != nil {
				l.watchdog()
			}
		}
	}
}

func (l *loop) updateTracker() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.registry.Snapshot(l.names), l.registry.Counts(), queueStats(l.stats))
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// sendHeartbeat publishes off the scan goroutine so a slow broker cannot
// delay alerts.
func (l *loop) sendHeartbeat(hbData *logic.HeartbeatData) {
	l.log.Info().
		Dur("uptime", hbData.Uptime).
		Int("presses", hbData.Counts.Presses).
		Int("alerts", hbData.Counts.Alerts).
		Int("resolutions", hbData.Counts.Resolutions).
		Msg("heartbeat")

	if l.publisher == nil {
		return
	}

	event := mqtt.SystemEvent{
		Timestamp: hbData.Timestamp,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.publisher.PublishSystem(event); err != nil {
			l.log.Warn().Err(err).Msg("heartbeat publish error")
		}
	}()
}

func (l *loop) shutdown(t time.Time, reason string) {
	if l.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.updateTracker()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.log.Warn().Err(err).Msg("failed to publish shutdown event")
	} else {
		l.log.Info().Msg("published shutdown event")
	}
}

func queueStats(stats func() dispatch.Stats) status.QueueStats {
	if stats == nil {
		return status.QueueStats{}
	}
	s := stats()
	return status.QueueStats{
		Pending: s.Pending,
		Queued:  s.Queued,
		Sent:    s.Sent,
		Failed:  s.Failed,
		Dropped: s.Dropped,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
