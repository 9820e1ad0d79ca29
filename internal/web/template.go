package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/stscde/lamp-control/internal/config"
	"github.com/stscde/lamp-control/internal/status"
)

var tmplFuncs = template.FuncMap{
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(tmplFuncs).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lamp Control</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.restart { background: #fff3cd; padding: 8px; border: 1px solid #e0c060; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Lamp Control{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

{{if .RestartPending}}<p class="restart">Configuration saved — restarting to apply.</p>{{end}}

<h2>State</h2>
<table>
<tr><th>Relay</th><td id="relay-state" class="{{if eq (stateOrUnknown (printf "%s" .Relay)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .Relay)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Relay)}}</td></tr>
<tr><th>Light</th><td id="light-class">{{stateOrUnknown (printf "%s" .Classification)}}</td></tr>
<tr><th>Light level</th><td id="light-level">{{.Level}}</td></tr>
<tr><th>Stable for</th><td>{{.Stability}}s</td></tr>
</table>

<h2>Settings</h2>
<table>
<tr><th>Switch delay</th><td>{{.Config.SwitchDelaySeconds}}s</td></tr>
<tr><th>Dark level</th><td>&le; {{.Config.DarkLevel}}</td></tr>
</table>
<p>Go to the <a href="/config">configure page</a> to change values.</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>LAMP ON</th><td>{{.Counts.LampOn}}</td></tr>
<tr><th>LAMP OFF</th><td>{{.Counts.LampOff}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>Config file</th><td>{{.Config.ConfigPath}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "home/lamp/control/events";
  var dot = document.getElementById("live-dot");
  var relayEl = document.getElementById("relay-state");
  var classEl = document.getElementById("light-class");
  var levelEl = document.getElementById("light-level");

  function setState(el, state) {
    el.textContent = state;
    el.className = state === "ON" ? "on" : state === "OFF" ? "off" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
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
      if (msg.lamp) {
        setState(relayEl, msg.lamp.relay.state);
        classEl.textContent = msg.lamp.classification;
        levelEl.textContent = msg.lamp.light_level;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

var configTmpl = template.Must(template.New("config").Parse(configHTML))

const configHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lamp Control — Settings</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
label { display: block; margin: 1em 0 0.25em; }
input[type=number] { width: 6em; }
.error { color: red; }
.hint { color: #888; }
</style>
</head>
<body>
<h1>Settings</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/config">
<label for="switch_delay_seconds">Delay switch seconds</label>
<input type="number" id="switch_delay_seconds" name="switch_delay_seconds" min="{{.Min}}" max="{{.Max}}" step="1" value="{{.Params.SwitchDelaySeconds}}" required>
<span class="hint">{{.Min}}..{{.Max}} — stable seconds required before the relay switches</span>
<label for="dark_level">Dark level</label>
<input type="number" id="dark_level" name="dark_level" min="{{.Min}}" max="{{.Max}}" step="1" value="{{.Params.DarkLevel}}" required>
<span class="hint">{{.Min}}..{{.Max}} — light level at or below this counts as dark</span>
<p><button type="submit">Save</button> <a href="/">Back</a></p>
</form>
<p class="hint">Saving restarts the controller; the new values take effect after the restart.</p>
</body>
</html>
`

var savedTmpl = template.Must(template.New("saved").Parse(savedHTML))

const savedHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5;url=/">
<title>Lamp Control — Saved</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
</style>
</head>
<body>
<h1>Configuration saved</h1>
<p>Switch delay: {{.SwitchDelaySeconds}}s, dark level: {{.DarkLevel}}.</p>
<p>The controller is restarting to apply the new values. This page returns to the <a href="/">status page</a> in a few seconds.</p>
</body>
</html>
`

func renderIndex(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

func renderConfig(w io.Writer, params config.Params, errMsg string) {
	data := struct {
		Params config.Params
		Error  string
		Min    int
		Max    int
	}{
		Params: params,
		Error:  errMsg,
		Min:    config.MinValue,
		Max:    config.MaxValue,
	}
	configTmpl.Execute(w, data)
}

func renderSaved(w io.Writer, params config.Params) {
	savedTmpl.Execute(w, params)
}
