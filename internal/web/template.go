package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/silence-sensor/internal/history"
	"github.com/sweeney/silence-sensor/internal/logic"
	"github.com/sweeney/silence-sensor/internal/mqtt"
	"github.com/sweeney/silence-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"ago":     humanize.Time,
	"silence": logic.FormatDuration,
	"stamp":   logic.FormatTimestamp,
	"comma":   func(n uint64) string { return humanize.Comma(int64(n)) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if not .Config.WSBroker}}<meta http-equiv="refresh" content="10">{{end}}
<title>Silence Sensor</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.held { color: red; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Silence Sensor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Inputs</h2>
<table>
{{range .Rows}}<tr><th>{{.Name}} (pin {{.Pin}})</th>{{if .Held}}<td id="input-{{.Pin}}" class="held">SILENT for {{silence .Silent}} since {{stamp .Started}}{{if .Alerts}}, {{.Alerts}} alert{{if ne .Alerts 1}}s{{end}} sent{{end}}</td>{{else}}<td id="input-{{.Pin}}" class="idle">idle</td>{{end}}</tr>
{{else}}<tr><td>no inputs configured</td></tr>
{{end}}</table>

<h2>Recent Notifications</h2>
{{if .HistoryErr}}<p class="disconnected">history unavailable: {{.HistoryErr}}</p>
{{else if .Entries}}<table>
{{range .Entries}}<tr><th>{{ago .At}}</th><td>{{.Subject}}</td></tr>
{{end}}</table>
{{else}}<p>none</p>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.NATS}}<tr><th>NATS</th><td>{{.Config.NATS}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Releases</th><td>{{.Counts.Releases}}</td></tr>
<tr><th>Alerts</th><td>{{.Counts.Alerts}}</td></tr>
<tr><th>Ended silences</th><td>{{.Counts.Resolutions}}</td></tr>
</table>

<h2>Notification Queue</h2>
<table>
<tr><th>Pending</th><td>{{.Queue.Pending}} / {{.Config.QueueSize}}</td></tr>
<tr><th>Sent</th><td>{{comma .Queue.Sent}}</td></tr>
<tr><th>Failed</th><td>{{comma .Queue.Failed}}</td></tr>
<tr><th>Dropped</th><td>{{comma .Queue.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Threshold</th><td>{{.Config.ThresholdMs}}ms</td></tr>
<tr><th>Alert repeat</th><td>{{.Config.RepeatMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Recipient</th><td>{{.Config.Recipient}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
{{range .Config.SkippedInputs}}<tr><th>Skipped input</th><td>{{.}}</td></tr>
{{end}}</table>

<p><a href="/index.json">JSON</a>{{if .HistoryEnabled}} | <a href="/history.json">history</a>{{end}}</p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var eventsTopic = "{{.EventsTopic}}";
  var systemTopic = "{{.SystemTopic}}";
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function plural(n, unit) {
    return n + " " + unit + (n === 1 ? "" : "s");
  }

  function silentFor(secs) {
    var h = Math.floor(secs / 3600), m = Math.floor(secs % 3600 / 60), s = secs % 60;
    var parts = [];
    if (h) parts.push(plural(h, "hour"));
    if (m) parts.push(plural(m, "minute"));
    if (s || !parts.length) parts.push(plural(s, "second"));
    return parts.join(" ");
  }

  function setInput(pin, held, secs, since, alerts) {
    var el = document.getElementById("input-" + pin);
    if (!el) return;
    if (!held) {
      el.className = "idle";
      el.textContent = "idle";
      return;
    }
    var text = "SILENT for " + silentFor(secs || 0);
    if (since) text += " since " + since;
    if (alerts) text += ", " + plural(alerts, "alert") + " sent";
    el.className = "held";
    el.textContent = text;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe([eventsTopic, systemTopic]);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (t === eventsTopic && msg.silence) {
        var n = msg.silence;
        setInput(n.pin, n.event === "SILENCE", n.duration_seconds, n.started, n.alerts);
      } else if (t === systemTopic && msg.status && msg.status.inputs) {
        msg.status.inputs.forEach(function(in_) {
          setInput(in_.pin, in_.held, in_.silent_seconds, in_.since, in_.alerts);
        });
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

// inputRow is one line of the inputs table.
type inputRow struct {
	Pin     int
	Name    string
	Held    bool
	Started time.Time
	Silent  time.Duration
	Alerts  int
}

func buildRows(snap status.Snapshot) []inputRow {
	rows := make([]inputRow, 0, len(snap.Inputs))
	for _, in := range snap.Inputs {
		row := inputRow{Pin: in.Pin, Name: in.Name}
		if sil, ok := snap.Silence(in.Pin); ok {
			row.Held = true
			row.Started = sil.State.Started
			row.Silent = snap.Now.Sub(sil.State.Started)
			row.Alerts = sil.State.Alerts
		}
		rows = append(rows, row)
	}
	return rows
}

func renderHTML(w io.Writer, snap status.Snapshot, entries []history.Entry, histErr error) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime         time.Duration
		Rows           []inputRow
		Entries        []history.Entry
		HistoryErr     error
		HistoryEnabled bool
		EventsTopic    string
		SystemTopic    string
	}{
		Snapshot:       snap,
		Uptime:         snap.Uptime(),
		Rows:           buildRows(snap),
		Entries:        entries,
		HistoryErr:     histErr,
		HistoryEnabled: snap.Config.HistoryDB != "",
		EventsTopic:    mqtt.Topic,
		SystemTopic:    mqtt.TopicSystem,
	}
	indexTmpl.Execute(w, data)
}
