// Package config loads the sensor configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/silence-sensor/internal/dispatch"
	"github.com/sweeney/silence-sensor/internal/gpio"
	"github.com/sweeney/silence-sensor/internal/logging"
	"github.com/sweeney/silence-sensor/internal/logic"
	"github.com/sweeney/silence-sensor/internal/mail"
)

// DefaultPath is where the deployed configuration lives.
const DefaultPath = "/etc/silence_sense.json"

// DefaultHeartbeat is the MQTT heartbeat interval when none is configured.
const DefaultHeartbeat = 15 * time.Minute

// maxPin bounds pin numbers to what a GPIO header offset can be.
const maxPin = 255

// Config mirrors the configuration file. Field names follow the deployed
// JSON file; the optional keys below Pins were added later.
type Config struct {
	Threshold   int    `json:"threshold"`    // seconds
	AlertRepeat int    `json:"alert_repeat"` // minutes
	SMTPServer  string `json:"smtp_server"`
	Port        int    `json:"port"`
	TLS         bool   `json:"tls"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromName    string `json:"fromname"`
	Recipient   string `json:"recipient"`

	// Pins maps input name to pin number.
	Pins map[string]PinRef `json:"pins"`

	DebounceMS        int    `json:"debounce_ms,omitempty"`
	QueueSize         int    `json:"queue_size,omitempty"`
	SendTimeout       string `json:"send_timeout,omitempty"`
	MailRatePerMinute int    `json:"mail_rate_per_minute,omitempty"`
	LogLevel          string `json:"log_level,omitempty"`
	GPIOChip          string `json:"gpio_chip,omitempty"`
	MQTTBroker        string `json:"mqtt_broker,omitempty"`
	NATSURL           string `json:"nats_url,omitempty"`
	HistoryDB         string `json:"history_db,omitempty"`
	HTTP              string `json:"http,omitempty"`
	Heartbeat         string `json:"heartbeat,omitempty"`
}

// PinRef is a pin identifier as written in the file. The deployed file
// quotes pin numbers; YAML files usually do not, so both are accepted.
type PinRef string

// UnmarshalJSON accepts a JSON string or number.
func (p *PinRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PinRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("pin must be a string or number, got %s", b)
	}
	*p = PinRef(n.String())
	return nil
}

// Input is one usable named input.
type Input struct {
	Name string
	Pin  int
}

// Load reads, parses and validates the file at path. Files ending in .yaml
// or .yml are parsed as YAML; everything else as JSON.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data strictly. path only selects the format.
func Parse(path string, data []byte) (*Config, error) {
	jb, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("parse config: trailing data")
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem that would stop monitoring from starting.
// Individual unusable pins are not errors unless none are left.
func (c *Config) Validate() error {
	var errs []error
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %d", c.Threshold))
	}
	if c.AlertRepeat <= 0 {
		errs = append(errs, fmt.Errorf("alert_repeat must be positive, got %d", c.AlertRepeat))
	}
	if c.SMTPServer == "" {
		errs = append(errs, errors.New("smtp_server is required"))
	}
	if c.FromName == "" {
		errs = append(errs, errors.New("fromname is required"))
	}
	if c.Recipient == "" {
		errs = append(errs, errors.New("recipient is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("debounce_ms must not be negative, got %d", c.DebounceMS))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize))
	}
	if c.MailRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("mail_rate_per_minute must not be negative, got %d", c.MailRatePerMinute))
	}
	if _, err := parseDuration("send_timeout", c.SendTimeout, dispatch.DefaultSendTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("heartbeat", c.Heartbeat, DefaultHeartbeat); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if inputs, _ := c.Inputs(); len(inputs) == 0 {
		errs = append(errs, errors.New("no usable pins configured"))
	}
	return errors.Join(errs...)
}

// ThresholdDuration is how long an input must be held before alerting.
func (c *Config) ThresholdDuration() time.Duration {
	return time.Duration(c.Threshold) * time.Second
}

// RepeatDuration is the minimum gap between repeated alerts.
func (c *Config) RepeatDuration() time.Duration {
	return time.Duration(c.AlertRepeat) * time.Minute
}

// Debounce is the kernel debounce period for every input.
func (c *Config) Debounce() time.Duration {
	if c.DebounceMS == 0 {
		return gpio.DefaultDebounce
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Chip is the GPIO chip name.
func (c *Config) Chip() string {
	if c.GPIOChip == "" {
		return gpio.DefaultChip
	}
	return c.GPIOChip
}

// HeartbeatInterval is the MQTT heartbeat interval. An explicit "0s"
// disables heartbeats.
func (c *Config) HeartbeatInterval() time.Duration {
	d, _ := parseDuration("heartbeat", c.Heartbeat, DefaultHeartbeat)
	return d
}

// Mail returns the SMTP settings.
func (c *Config) Mail() mail.Config {
	timeout, _ := parseDuration("send_timeout", c.SendTimeout, dispatch.DefaultSendTimeout)
	return mail.Config{
		Server:    c.SMTPServer,
		Port:      c.Port,
		TLS:       c.TLS,
		Username:  c.Username,
		Password:  c.Password,
		From:      c.FromName,
		Recipient: c.Recipient,
		Timeout:   timeout,
	}
}

// Dispatch returns the dispatcher settings.
func (c *Config) Dispatch() dispatch.Config {
	timeout, _ := parseDuration("send_timeout", c.SendTimeout, dispatch.DefaultSendTimeout)
	return dispatch.Config{
		QueueSize:     c.QueueSize,
		SendTimeout:   timeout,
		RatePerMinute: c.MailRatePerMinute,
	}
}

// Inputs returns the usable inputs sorted by pin, and one error for every
// input that was skipped. A pin that appears under two names is kept for the
// name that sorts first.
func (c *Config) Inputs() ([]Input, []error) {
	names := make([]string, 0, len(c.Pins))
	for name := range c.Pins {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		inputs  []Input
		skipped []error
		owner   = make(map[int]string)
	)
	for _, name := range names {
		raw := strings.TrimSpace(string(c.Pins[name]))
		pin, err := strconv.Atoi(raw)
		if err != nil || pin < 0 || pin > maxPin {
			skipped = append(skipped, fmt.Errorf("input %q: invalid pin %q", name, raw))
			continue
		}
		if prev, ok := owner[pin]; ok {
			skipped = append(skipped, fmt.Errorf("input %q: pin %d already used by %q", name, pin, prev))
			continue
		}
		owner[pin] = name
		inputs = append(inputs, Input{Name: name, Pin: pin})
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Pin < inputs[j].Pin })
	return inputs, skipped
}

// Names returns the pin to name table for the usable inputs, and the errors
// for skipped ones.
func (c *Config) Names() (logic.NameTable, []error) {
	inputs, skipped := c.Inputs()
	names := make(logic.NameTable, len(inputs))
	for _, in := range inputs {
		names[in.Pin] = in.Name
	}
	return names, skipped
}

// parseDuration parses a Go duration string. Empty means def.
func parseDuration(key, s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return def, fmt.Errorf("%s must not be negative, got %s", key, s)
	}
	return d, nil
}
