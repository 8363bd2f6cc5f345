package goodix

import (
	"errors"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

// fakePanel serves the id, config and coordinate registers of a Goodix chip.
type fakePanel struct {
	id       [6]byte
	cfgAddr  uint16
	cfg      []byte
	coords   []byte
	notReady int // status reads answered "not ready" before coords
	writes   []fakeWrite
	failTx   error
}

type fakeWrite struct {
	reg uint16
	v   byte
}

var _ drivers.I2C = (*fakePanel)(nil)

func (p *fakePanel) Tx(addr uint16, w, r []byte) error {
	if p.failTx != nil {
		return p.failTx
	}
	reg := uint16(w[0])<<8 | uint16(w[1])
	if len(w) == 3 {
		p.writes = append(p.writes, fakeWrite{reg, w[2]})
		return nil
	}
	for i := range r {
		r[i] = 0
	}
	switch {
	case reg == regID:
		copy(r, p.id[:])
	case reg == p.cfgAddr:
		copy(r, p.cfg)
	case reg == regCoords && p.notReady > 0:
		p.notReady--
	case reg >= regCoords && int(reg-regCoords) < len(p.coords):
		copy(r, p.coords[reg-regCoords:])
	}
	return nil
}

func (p *fakePanel) ended() int {
	n := 0
	for _, w := range p.writes {
		if w.reg == regCoords && w.v == 0 {
			n++
		}
	}
	return n
}

// gt911Config builds a checked 186-byte config.
func gt911Config(maxX, maxY uint16, touches, trigger byte) []byte {
	cfg := make([]byte, config911Length)
	cfg[0] = 0x41
	cfg[cfgResolution] = byte(maxX)
	cfg[cfgResolution+1] = byte(maxX >> 8)
	cfg[cfgResolution+2] = byte(maxY)
	cfg[cfgResolution+3] = byte(maxY >> 8)
	cfg[cfgMaxTouch] = touches
	cfg[cfgTrigger] = trigger
	n := len(cfg)
	cfg[n-2] = Checksum8(cfg[:n-2])
	cfg[n-1] = cfgFresh
	return cfg
}

func newGT911(maxX, maxY uint16, touches byte) *fakePanel {
	return &fakePanel{
		id:      [6]byte{'9', '1', '1', 0, 0x60, 0x10},
		cfgAddr: regConfigGT9x,
		cfg:     gt911Config(maxX, maxY, touches, 0x01),
	}
}

// report lays out status + records + key byte.
func report(key byte, recs ...Record) []byte {
	b := make([]byte, 1+len(recs)*contactSize+1)
	b[0] = statusReady | byte(len(recs))
	if key != 0 {
		b[0] |= statusHaveKey
	}
	for i, r := range recs {
		EncodeRecord(r, b[1+i*contactSize:])
	}
	b[len(b)-1] = key
	return b
}

func initPanel(t *testing.T, p *fakePanel, cfg Config) (*Device, types.DeviceInfo) {
	t.Helper()
	d := New(p, cfg)
	info, err := d.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d, info
}

func TestLookupChipTable(t *testing.T) {
	cases := map[string]ChipData{
		"1151": chipGT1x, "917S": chipGT1x, "9286": chipGT1x,
		"911": chipGT911, "928": chipGT911, "9110": chipGT911,
		"912": chipGT967, "967": chipGT967,
		"9999": chipGT9x, "": chipGT9x,
	}
	for id, want := range cases {
		if got := Lookup(id); got != want {
			t.Fatalf("Lookup(%q) = %+v, want %+v", id, got, want)
		}
	}
	if chipGT1x.ConfigAddr != 0x8050 || chipGT911.ConfigLen != 186 || chipGT967.ConfigLen != 228 {
		t.Fatal("chip table layout drifted")
	}
}

func TestChecksum8(t *testing.T) {
	cfg := gt911Config(800, 480, 5, 1)
	if err := chipGT911.Check(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg[10] ^= 1
	if err := chipGT911.Check(cfg); !errors.Is(err, ErrChecksum) {
		t.Fatalf("err = %v, want checksum", err)
	}
	cfg[10] ^= 1
	cfg[len(cfg)-1] = 0
	if err := chipGT911.Check(cfg); !errors.Is(err, ErrConfigStale) {
		t.Fatalf("err = %v, want stale", err)
	}
}

func TestChecksum16(t *testing.T) {
	cfg := make([]byte, configMaxLength)
	for i := range cfg {
		cfg[i] = byte(i * 7)
	}
	n := len(cfg)
	sum := Checksum16(cfg[:n-3])
	cfg[n-3], cfg[n-2], cfg[n-1] = byte(sum>>8), byte(sum), cfgFresh
	if err := chipGT1x.Check(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	// Word sum plus checksum wraps to zero.
	var total uint16
	for i := 0; i+1 < n-3; i += 2 {
		total += uint16(cfg[i])<<8 | uint16(cfg[i+1])
	}
	total += uint16(cfg[n-4]) << 8
	if total+sum != 0 {
		t.Fatalf("checksum does not cancel the sum: %#x + %#x", total, sum)
	}
	cfg[0]++
	if err := chipGT1x.Check(cfg); errcode.Of(err) != errcode.Integrity {
		t.Fatalf("err = %v, want integrity", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := Record{ID: 9, X: 0x1234, Y: 0x0FED, W: 0x0102, Flags: idStylus}
	var b [contactSize]byte
	EncodeRecord(in, b[:])
	if got := DecodeRecord(b[:]); got != in {
		t.Fatalf("round trip = %+v, want %+v", got, in)
	}
}

func TestInitReadsConfig(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, info := initPanel(t, p, Config{})
	g := d.Geometry()
	if g.ID != "911" || g.Firmware != 0x1060 || g.Defaulted {
		t.Fatalf("geometry = %+v", g)
	}
	if info.MaxX != 800 || info.MaxY != 480 || info.MaxContacts != 5 {
		t.Fatalf("info = %+v", info)
	}
	if g.Trigger != TriggerFalling {
		t.Fatalf("trigger = %v", g.Trigger)
	}
	if len(info.Warnings) != 0 {
		t.Fatalf("warnings = %v", info.Warnings)
	}
}

func TestInitChecksumMismatchDefaults(t *testing.T) {
	p := newGT911(800, 480, 5)
	p.cfg[len(p.cfg)-2]++
	d, info := initPanel(t, p, Config{})
	g := d.Geometry()
	if !g.Defaulted || g.MaxX != 4096 || g.MaxY != 4096 || g.MaxTouch != 10 || g.Trigger != TriggerFalling {
		t.Fatalf("geometry = %+v, want defaults", g)
	}
	if len(info.Warnings) != 1 {
		t.Fatalf("warnings = %v", info.Warnings)
	}
}

func TestInitTransportFails(t *testing.T) {
	p := newGT911(800, 480, 5)
	p.failTx = errors.New("nack")
	if _, err := New(p, Config{}).Init(); errcode.Of(err) != errcode.Transport {
		t.Fatalf("err = %v", err)
	}
}

func TestPollSingleTouch(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, _ := initPanel(t, p, Config{})
	p.coords = report(0, Record{ID: 2, X: 100, Y: 200, W: 30})

	var f types.Frame
	if err := d.Poll(&f); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if f.Count() != 1 {
		t.Fatalf("contacts = %+v", f.Contacts)
	}
	c := f.Contacts[0]
	if c.ID != 2 || c.X != 100 || c.Y != 200 || c.Width != 30 || c.Stylus {
		t.Fatalf("contact = %+v", c)
	}
	if p.ended() != 1 {
		t.Fatalf("end command writes = %d", p.ended())
	}
}

func TestPollBoundsAtMaxPlusOne(t *testing.T) {
	p := newGT911(800, 480, 2)
	d, _ := initPanel(t, p, Config{})
	p.coords = report(0,
		Record{ID: 0, X: 1, Y: 1},
		Record{ID: 1, X: 2, Y: 2},
		Record{ID: 2, X: 3, Y: 3})

	var f types.Frame
	err := d.Poll(&f)
	if errcode.Of(err) != errcode.Bounds {
		t.Fatalf("err = %v, want bounds", err)
	}
	if len(f.Contacts) != 0 {
		t.Fatalf("contacts leaked: %+v", f.Contacts)
	}

	p.coords = report(0, Record{ID: 0, X: 1, Y: 1}, Record{ID: 1, X: 2, Y: 2})
	if err := d.Poll(&f); err != nil || f.Count() != 2 {
		t.Fatalf("at max: err=%v contacts=%+v", err, f.Contacts)
	}
}

func TestPollWaitsForReady(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, _ := initPanel(t, p, Config{PollInterval: 100 * time.Microsecond})
	p.notReady = 3
	p.coords = report(0, Record{ID: 0, X: 5, Y: 6})
	var f types.Frame
	if err := d.Poll(&f); err != nil || f.Count() != 1 {
		t.Fatalf("err=%v contacts=%+v", err, f.Contacts)
	}
}

func TestPollTimeout(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, _ := initPanel(t, p, Config{PollInterval: time.Millisecond, PollTimeout: 3 * time.Millisecond})
	var f types.Frame
	if err := d.Poll(&f); errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestLiftReleasesMissingSlots(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, _ := initPanel(t, p, Config{})
	var f types.Frame

	p.coords = report(0, Record{ID: 0, X: 1, Y: 1}, Record{ID: 3, X: 9, Y: 9})
	if err := d.Poll(&f); err != nil || f.Count() != 2 {
		t.Fatalf("down: err=%v contacts=%+v", err, f.Contacts)
	}
	p.coords = report(0, Record{ID: 3, X: 9, Y: 9})
	if err := d.Poll(&f); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(f.Contacts) != 2 || f.Count() != 1 || f.Contacts[0].Tip {
		t.Fatalf("lift cycle contacts = %+v", f.Contacts)
	}
	p.coords = report(0)
	if err := d.Poll(&f); err != nil || f.Count() != 0 || len(f.Contacts) != 1 {
		t.Fatalf("all up: err=%v contacts=%+v", err, f.Contacts)
	}
	if err := d.Poll(&f); err != nil || len(f.Contacts) != 0 {
		t.Fatalf("after sweep: err=%v contacts=%+v", err, f.Contacts)
	}
}

func TestStylusAndButtons(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, _ := initPanel(t, p, Config{})
	p.coords = report(keyStylus2, Record{ID: 0, X: 40, Y: 50, Flags: idStylus})

	var f types.Frame
	if err := d.Poll(&f); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !f.Contacts[0].Stylus {
		t.Fatal("stylus flag lost")
	}
	if f.Buttons.Primary || !f.Buttons.Secondary {
		t.Fatalf("buttons = %+v", f.Buttons)
	}

	p.coords = report(0, Record{ID: 0, X: 40, Y: 50, Flags: idStylus})
	if err := d.Poll(&f); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if f.Buttons.Primary || f.Buttons.Secondary {
		t.Fatalf("buttons not cleared: %+v", f.Buttons)
	}
}

func TestCorrectionOrder(t *testing.T) {
	g := Geometry{MaxX: 1000, MaxY: 500, ScaleX: 2000, ScaleY: 1000, InvertX: true, SwapXY: true}
	// scale: (100,50) -> (200,100); invert x in scaled range: 1800; swap.
	x, y := g.Correct(100, 50)
	if x != 100 || y != 1800 {
		t.Fatalf("Correct = %d,%d, want 100,1800", x, y)
	}
	if mx, my := g.Bounds(); mx != 1000 || my != 2000 {
		t.Fatalf("Bounds = %d,%d", mx, my)
	}

	plain := Geometry{MaxX: 1000, MaxY: 500, InvertY: true}
	if x, y := plain.Correct(10, 20); x != 10 || y != 480 {
		t.Fatalf("invert only = %d,%d", x, y)
	}
}

func TestSleepWake(t *testing.T) {
	p := newGT911(800, 480, 5)
	d, _ := initPanel(t, p, Config{})
	if err := d.Sleep(); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	last := p.writes[len(p.writes)-1]
	if last.reg != regCommand || last.v != cmdScreenOff {
		t.Fatalf("sleep write = %+v", last)
	}

	p.cfg = gt911Config(1024, 600, 10, 0x02)
	if err := d.Wake(); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	if g := d.Geometry(); g.MaxX != 1024 || g.Trigger != TriggerLow {
		t.Fatalf("config not re-read: %+v", g)
	}
}
