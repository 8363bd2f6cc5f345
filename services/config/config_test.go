// services/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"touchcode-go/bus"
)

func TestEmbeddedBoards(t *testing.T) {
	cfg, err := LoadEmbedded("rpi")
	if err != nil {
		t.Fatalf("rpi: %v", err)
	}
	d := cfg.Devices[0]
	if d.Chip != ChipGoodix || d.Addr != 0x5D || d.IRQPin != "GPIO4" {
		t.Fatalf("unexpected device %+v", d)
	}
	if d.Timings.Click != DefaultClick || d.Timings.DwellRadius != DefaultDwellRadius {
		t.Fatalf("defaults not filled: %+v", d.Timings)
	}
	if cfg.Heartbeat.Interval != 10*time.Second {
		t.Fatalf("heartbeat = %v", cfg.Heartbeat.Interval)
	}

	cfg, err = LoadEmbedded("mxtdev")
	if err != nil {
		t.Fatalf("mxtdev: %v", err)
	}
	if cfg.Devices[0].Timings.Settle != 100*time.Millisecond {
		t.Fatalf("settle = %v", cfg.Devices[0].Timings.Settle)
	}

	if _, err := LoadEmbedded("nope"); err == nil {
		t.Fatal("unknown board accepted")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "touch.yaml")
	src := `
log:
  level: debug
devices:
  - chip: MXT
    bus: /dev/i2c-3
    sink: bus
    swap_xy: true
    timings:
      lift: 40ms
`
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	d := cfg.Devices[0]
	if d.ID != "touch0" || d.Chip != ChipMXT || d.Addr != 0x4A || !d.SwapXY {
		t.Fatalf("device = %+v", d)
	}
	if d.Timings.Lift != 40*time.Millisecond || d.Sink != SinkBus {
		t.Fatalf("timings/sink = %+v %q", d.Timings, d.Sink)
	}
}

func TestLoadTOMLUnknownKey(t *testing.T) {
	_, err := Decode([]byte("[[device]]\nchip = \"goodix\"\nbogus = 1\n"), ".toml")
	if err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		src  string
		want error
	}{
		{"[log]\nlevel = \"info\"\n", ErrNoDevices},
		{"[[device]]\nchip = \"elan\"\n", ErrUnknownChip},
		{"[[device]]\nchip = \"goodix\"\nsink = \"x11\"\n", ErrUnknownSink},
		{"[[device]]\nid = \"a\"\nchip = \"goodix\"\n[[device]]\nid = \"a\"\nchip = \"mxt\"\n", ErrDuplicateID},
		{"[bridge]\ntype = \"udp\"\naddress = \"x\"\n[[device]]\nchip = \"goodix\"\n", ErrBridge},
		{"[bridge]\ntype = \"tcp\"\n[[device]]\nchip = \"goodix\"\n", ErrBridge},
	}
	for _, c := range cases {
		if _, err := Decode([]byte(c.src), ".toml"); !errors.Is(err, c.want) {
			t.Fatalf("%q: err = %v, want %v", c.src, err, c.want)
		}
	}
	if _, err := Decode(nil, ".json"); !errors.Is(err, ErrFormat) {
		t.Fatalf("json accepted: %v", err)
	}
}

func TestPublishRetainsDevices(t *testing.T) {
	cfg, err := LoadEmbedded("rpi")
	if err != nil {
		t.Fatal(err)
	}
	b := bus.NewBus(4)
	conn := b.NewConnection("config")
	Publish(conn, cfg)

	sub := conn.Subscribe(bus.Topic{"config", "device", "+"})
	select {
	case m := <-sub.Channel():
		d, ok := m.Payload.(Device)
		if !ok || d.ID != "panel0" || !m.Retained {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no retained config")
	}
}

func TestBridgeSection(t *testing.T) {
	src := `
[bridge]
type = "unix"
address = "/run/touch/bridge.sock"
export = ["touch/+/contacts"]

[[device]]
chip = "goodix"
`
	cfg, err := Decode([]byte(src), ".toml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := cfg.Bridge
	if b.Type != "unix" || b.Address != "/run/touch/bridge.sock" || len(b.Export) != 1 || b.Import != nil {
		t.Fatalf("bridge = %+v", b)
	}
}
