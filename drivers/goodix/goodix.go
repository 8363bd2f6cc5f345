// Package goodix provides a TinyGo-compatible driver for Goodix GT9xx/GT1x
// capacitive touch controllers.
//
// The chip exposes a fixed register map: a product id at 0x8140, a config
// block whose address and checksum scheme depend on the product, and a
// coordinate buffer at 0x814E that must be acknowledged after each read.
package goodix

import (
	"strings"
	"time"

	"tinygo.org/x/drivers"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x5D if zero.
	Address uint16

	SwapXY  bool
	InvertX bool
	InvertY bool
	// ScaleX/ScaleY remap native coordinates onto [0,Scale]. Zero disables.
	ScaleX uint16
	ScaleY uint16

	// PollInterval is the wait between status reads. Default 1 ms.
	PollInterval time.Duration
	// PollTimeout bounds the wait for the buffer-ready bit. Default 20 ms.
	PollTimeout time.Duration
}

// Device wraps an I2C connection to a Goodix controller.
type Device struct {
	i2c  drivers.I2C
	addr uint16
	cfg  Config

	geo    Geometry
	slots  types.Slots
	frame  []types.Contact
	buf    [1 + types.MaxContacts*contactSize + 1]byte
	cfgBuf [configMaxLength]byte
	w      [3]byte
}

// New creates a Goodix device handle. It does not touch the bus.
func New(i2c drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = AddressDefault
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 20 * time.Millisecond
	}
	return &Device{
		i2c:   i2c,
		addr:  cfg.Address,
		cfg:   cfg,
		slots: types.NewSlots(),
		frame: make([]types.Contact, 0, types.MaxContacts),
	}
}

// Geometry returns the resolved configuration (valid after Init).
func (d *Device) Geometry() *Geometry { return &d.geo }

// Init identifies the chip and reads its config block. A bad checksum or
// unreadable block falls back to default geometry and is reported in
// DeviceInfo.Warnings.
func (d *Device) Init() (types.DeviceInfo, error) {
	var info types.DeviceInfo

	var id [6]byte
	if err := d.readReg(regID, id[:]); err != nil {
		return info, err
	}
	d.geo = Geometry{
		ID:       parseID(id[:4]),
		Firmware: uint16(id[4]) | uint16(id[5])<<8,
		ScaleX:   d.cfg.ScaleX,
		ScaleY:   d.cfg.ScaleY,
		InvertX:  d.cfg.InvertX,
		InvertY:  d.cfg.InvertY,
		SwapXY:   d.cfg.SwapXY,
	}
	d.geo.Chip = Lookup(d.geo.ID)

	if err := d.readConfig(); err != nil {
		info.Warnings = append(info.Warnings, err.Error())
	}
	d.slots.Reset()

	info.Name = "Goodix " + d.geo.ID
	info.Chip = "goodix"
	info.Vendor = VendorID
	info.Product = ProductID
	info.Firmware = d.geo.Firmware
	info.MaxX, info.MaxY = d.geo.Bounds()
	info.MaxContacts = d.geo.MaxTouch
	return info, nil
}

// readConfig loads the config block. On failure the geometry holds the
// defaults and the cause is returned.
func (d *Device) readConfig() error {
	cfg := d.cfgBuf[:d.geo.Chip.ConfigLen]
	if err := d.readReg(d.geo.Chip.ConfigAddr, cfg); err != nil {
		d.geo.setDefaults()
		return err
	}
	if err := d.geo.Chip.Check(cfg); err != nil {
		d.geo.setDefaults()
		return err
	}
	d.geo.parseConfig(cfg)
	return nil
}

// parseID trims the NUL padding of the 4-byte ASCII product id.
func parseID(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// Poll reads one coordinate report into f. The end command is written after
// every read that reached the chip.
func (d *Device) Poll(f *types.Frame) error {
	f.Reset()
	d.slots.Sweep()

	count, err := d.readReport()
	if err != nil {
		if errcode.Of(err) != errcode.Transport {
			_ = d.endCmd()
		}
		return err
	}
	d.store(count, f)
	if err := d.endCmd(); err != nil {
		return err
	}
	f.Contacts = d.slots.Collect(d.frame[:0])
	f.At = time.Now()
	return nil
}

// Sleep sends the screen-off command.
func (d *Device) Sleep() error {
	return d.writeReg(regCommand, cmdScreenOff)
}

// Wake re-reads the config block and releases every slot. Only a bus
// failure is returned; a bad block leaves the defaults in place.
func (d *Device) Wake() error {
	d.slots.Reset()
	if err := d.readConfig(); errcode.Of(err) == errcode.Transport {
		return err
	}
	return nil
}

// ReleaseAll lifts every contact still down. The event layer calls it when
// an interaction ends without the panel reporting the lift.
func (d *Device) ReleaseAll() int { return d.slots.ReleaseAll() }
