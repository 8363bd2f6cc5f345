// Package config loads the daemon's device list from TOML, YAML or an
// embedded per-board default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"touchcode-go/bus"
)

const (
	ChipGoodix = "goodix"
	ChipMXT    = "mxt"

	SinkUinput = "uinput"
	SinkBus    = "bus"
	SinkLog    = "log"
)

var (
	ErrNoDevices   = errors.New("config: no devices")
	ErrUnknownChip = errors.New("config: unknown chip")
	ErrUnknownSink = errors.New("config: unknown sink")
	ErrDuplicateID = errors.New("config: duplicate device id")
	ErrFormat      = errors.New("config: unsupported file format")
	ErrBridge      = errors.New("config: bridge needs type tcp or unix and an address")
)

// EmbeddedConfigLookup allows overriding how board defaults are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

type Config struct {
	Log       Log       `toml:"log" yaml:"log"`
	Heartbeat Heartbeat `toml:"heartbeat" yaml:"heartbeat"`
	Bridge    Bridge    `toml:"bridge" yaml:"bridge"`
	Devices   []Device  `toml:"device" yaml:"devices"`
}

// Bridge forwards touch topics to a remote peer. An empty Type disables it.
type Bridge struct {
	Type    string   `toml:"type" yaml:"type"` // "tcp" or "unix"
	Address string   `toml:"address" yaml:"address"`
	Export  []string `toml:"export" yaml:"export"`
	Import  []string `toml:"import" yaml:"import"`
}

// Heartbeat controls the periodic stats publisher. Zero disables it.
type Heartbeat struct {
	Interval time.Duration `toml:"interval" yaml:"interval"`
}

type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "text" or "json"
}

// Device describes one touch controller and where its output goes. An empty
// Name keeps the name the controller reports.
type Device struct {
	ID   string `toml:"id" yaml:"id"`
	Name string `toml:"name" yaml:"name"`
	Chip string `toml:"chip" yaml:"chip"`
	Bus  string `toml:"bus" yaml:"bus"`
	Addr uint16 `toml:"addr" yaml:"addr"`

	// IRQPin names the interrupt GPIO. Empty polls at PollInterval.
	IRQPin       string        `toml:"irq_pin" yaml:"irq_pin"`
	PollInterval time.Duration `toml:"poll_interval" yaml:"poll_interval"`

	SwapXY  bool   `toml:"swap_xy" yaml:"swap_xy"`
	InvertX bool   `toml:"invert_x" yaml:"invert_x"`
	InvertY bool   `toml:"invert_y" yaml:"invert_y"`
	ScaleX  uint16 `toml:"scale_x" yaml:"scale_x"`
	ScaleY  uint16 `toml:"scale_y" yaml:"scale_y"`

	Timings Timings `toml:"timings" yaml:"timings"`

	// RotationFile is watched for the display rotation. Rotation is used
	// when it is empty.
	RotationFile string `toml:"rotation_file" yaml:"rotation_file"`
	Rotation     int    `toml:"rotation" yaml:"rotation"`

	Sink string `toml:"sink" yaml:"sink"`
}

type Timings struct {
	Settle      time.Duration `toml:"settle" yaml:"settle"`
	Click       time.Duration `toml:"click" yaml:"click"`
	RightClick  time.Duration `toml:"right_click" yaml:"right_click"`
	Lift        time.Duration `toml:"lift" yaml:"lift"`
	DwellRadius uint16        `toml:"dwell_radius" yaml:"dwell_radius"`
	SleepDrain  time.Duration `toml:"sleep_drain" yaml:"sleep_drain"`
}

// Default timings.
const (
	DefaultSettle       = 50 * time.Millisecond
	DefaultClick        = 100 * time.Millisecond
	DefaultRightClick   = 500 * time.Millisecond
	DefaultLift         = 30 * time.Millisecond
	DefaultDwellRadius  = 10
	DefaultSleepDrain   = time.Second
	DefaultPollInterval = 10 * time.Millisecond
	DefaultBus          = "/dev/i2c-1"
)

func DefaultConfig() *Config {
	return &Config{Log: Log{Level: "info", Format: "text"}}
}

// Load reads path, choosing the decoder by extension, then fills defaults
// and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(raw, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadEmbedded returns the built-in configuration for board.
func LoadEmbedded(board string) (*Config, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return nil, errors.New("config: no embedded config for board: " + board)
	}
	return Decode(raw, ".toml")
}

// Decode parses raw as TOML or YAML according to ext.
func Decode(raw []byte, ext string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(raw)).Decode(cfg)
		if err != nil {
			return nil, err
		}
		if un := md.Undecoded(); len(un) > 0 {
			return nil, fmt.Errorf("config: unknown key %q", un[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, ext)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	for i := range c.Devices {
		c.Devices[i].applyDefaults(i)
	}
}

func (d *Device) applyDefaults(i int) {
	d.Chip = strings.ToLower(d.Chip)
	if d.ID == "" {
		d.ID = fmt.Sprintf("touch%d", i)
	}
	if d.Bus == "" {
		d.Bus = DefaultBus
	}
	if d.Addr == 0 {
		switch d.Chip {
		case ChipGoodix:
			d.Addr = 0x5D
		case ChipMXT:
			d.Addr = 0x4A
		}
	}
	if d.PollInterval == 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.Sink == "" {
		d.Sink = SinkUinput
	}
	t := &d.Timings
	if t.Settle == 0 {
		t.Settle = DefaultSettle
	}
	if t.Click == 0 {
		t.Click = DefaultClick
	}
	if t.RightClick == 0 {
		t.RightClick = DefaultRightClick
	}
	if t.Lift == 0 {
		t.Lift = DefaultLift
	}
	if t.DwellRadius == 0 {
		t.DwellRadius = DefaultDwellRadius
	}
	if t.SleepDrain == 0 {
		t.SleepDrain = DefaultSleepDrain
	}
}

func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return ErrNoDevices
	}
	if b := c.Bridge; b.Type != "" {
		if (b.Type != "tcp" && b.Type != "unix") || b.Address == "" {
			return ErrBridge
		}
	}
	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		switch d.Chip {
		case ChipGoodix, ChipMXT:
		default:
			return fmt.Errorf("%w %q (device %s)", ErrUnknownChip, d.Chip, d.ID)
		}
		switch d.Sink {
		case SinkUinput, SinkBus, SinkLog:
		default:
			return fmt.Errorf("%w %q (device %s)", ErrUnknownSink, d.Sink, d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w %q", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// Publish retains each device's resolved configuration on config/device/<id>.
func Publish(conn *bus.Connection, c *Config) {
	for _, d := range c.Devices {
		conn.Publish(&bus.Message{
			Topic:    bus.Topic{"config", "device", d.ID},
			Payload:  d,
			Retained: true,
		})
	}
}
