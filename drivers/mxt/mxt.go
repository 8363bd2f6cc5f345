// Package mxt provides a TinyGo-compatible driver for Atmel/Microchip
// maXTouch (mXT) touch controllers.
//
// Design notes:
//   - The chip describes itself: an information block at address 0 lists every
//     object (T5 message processor, T6 command processor, T7 power, T9/T100
//     multitouch, T44 message count) with its address and report-id count.
//   - Touch data arrives as fixed-size T5 messages tagged with a report id;
//     the id selects the producing object and, for touch objects, the slot.
//   - Register addresses are 16-bit, sent low byte first.
//   - No allocation on the poll path: the message buffer and contact backing
//     array are sized once in Init.
package mxt

import (
	"time"

	"tinygo.org/x/drivers"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x4A if zero.
	Address uint16
	// ResetDelay is the settle time after a T6 reset. Default 100 ms.
	ResetDelay time.Duration
}

// Device wraps an I2C connection to a maXTouch controller.
type Device struct {
	i2c  drivers.I2C
	addr uint16
	cfg  Config

	table Table
	t5    *Object
	t6    *Object
	t7    *Object // optional
	t44   *Object // optional; bounds message reads when present
	touch *Object // T9 or T100
	gen   uint8   // typeTouchMultiT9 or typeTouchScreenT100

	msgSize     int
	t6ReportID  uint8
	numTouchIDs int
	maxReportID int
	lastCount   int

	// Max report values (range+1), after any XY switch.
	maxX int
	maxY int
	// T100 aux byte carrying the touch area; 0 when not enabled.
	auxArea int

	// Last T6 status and configuration checksum seen in the stream.
	status uint8
	cfgCRC uint32

	slots  types.Slots
	frame  []types.Contact
	msgBuf []byte
	w      [10]byte
}

// New creates a maXTouch device handle. It does not touch the bus.
func New(i2c drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = AddressDefault
	}
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = 100 * time.Millisecond
	}
	return &Device{
		i2c:   i2c,
		addr:  cfg.Address,
		cfg:   cfg,
		slots: types.NewSlots(),
	}
}

// Table returns the parsed object table (valid after Init).
func (d *Device) Table() *Table { return &d.table }

// Status returns the last T6 status byte and configuration checksum.
func (d *Device) Status() (uint8, uint32) { return d.status, d.cfgCRC }

// Init reads the object table, resolves object addresses, reads the touch
// geometry, resets the controller and enables acquisition.
//
// A table checksum mismatch or unreadable geometry is reported in
// DeviceInfo.Warnings and does not fail Init. A missing T5/T6 does.
func (d *Device) Init() (types.DeviceInfo, error) {
	var info types.DeviceInfo

	var hdr [infoSize]byte
	if err := d.readReg(0, hdr[:]); err != nil {
		return info, err
	}
	// the count is one byte, so the table read is bounded
	n := int(parseInfo(hdr[:]).Objects)
	raw := make([]byte, TableSize(n))
	if err := d.readReg(0, raw); err != nil {
		return info, err
	}
	t, err := ParseTable(raw)
	if err != nil {
		return info, err
	}
	d.table = t
	if !t.CRCValid() {
		info.Warnings = append(info.Warnings, ErrCRCMismatch.Error())
	}

	if err := d.resolveObjects(); err != nil {
		return info, err
	}
	if d.touch == nil {
		info.Warnings = append(info.Warnings, ErrNoTouchObj.Error())
	}
	if err := d.readGeometry(); err != nil {
		info.Warnings = append(info.Warnings, "geometry: "+err.Error())
	}

	if d.msgSize < 1 {
		return info, ErrMsgBufferNil
	}
	// One spare message for the trailing invalid message, one byte for the
	// T44 count.
	d.msgBuf = make([]byte, (d.maxReportID+1)*d.msgSize+1)
	d.frame = make([]types.Contact, 0, types.MaxContacts)

	if err := d.Reset(); err != nil {
		return info, err
	}
	if err := d.enable(); err != nil {
		return info, err
	}

	info.Name = "Atmel maXTouch"
	info.Chip = "mxt"
	info.Vendor = VendorID
	info.Product = ProductID
	info.Firmware = uint16(t.Info.Version)<<8 | uint16(t.Info.Build)
	info.MaxX = clampU16(d.maxX - 1)
	info.MaxY = clampU16(d.maxY - 1)
	info.MaxContacts = d.numTouchIDs
	if info.MaxContacts > types.MaxContacts {
		info.MaxContacts = types.MaxContacts
	}
	return info, nil
}

func (d *Device) resolveObjects() error {
	t := &d.table
	var ok bool
	if d.t5, ok = t.Find(typeMessageProcessor); !ok {
		return ErrNoMsgProc
	}
	if d.t6, ok = t.Find(typeCommandProcessor); !ok {
		return ErrNoCmdProc
	}
	d.t7, _ = t.Find(typePowerT7)
	d.t44, _ = t.Find(typeMessageCountT44)
	d.t6ReportID = d.t6.MinReportID

	// mXT224 firmware before 2.0 appends a CRC byte that must be read to keep
	// reads aligned; everything else drops the unused trailing byte.
	if t.Info.Family == mxt224Family && t.Info.Version < mxt224CRCFw {
		d.msgSize = d.t5.Size()
	} else {
		d.msgSize = d.t5.Size() - 1
	}

	d.touch, d.gen = nil, 0
	if o, ok := t.Find(typeTouchScreenT100); ok {
		d.touch, d.gen = o, typeTouchScreenT100
		d.numTouchIDs = int(o.ReportIDs) - t100Reserved
	} else if o, ok := t.Find(typeTouchMultiT9); ok {
		d.touch, d.gen = o, typeTouchMultiT9
		d.numTouchIDs = int(o.ReportIDs) * o.Instances()
	}
	if d.numTouchIDs < 0 {
		d.numTouchIDs = 0
	}
	d.maxReportID = t.NextReportID
	return nil
}

// readGeometry loads the touch object's range and orientation. Ranges left
// at zero by the chip (or unreadable) fall back to 1023.
func (d *Device) readGeometry() error {
	rx, ry := defaultRange, defaultRange
	switched := false
	var err error

	switch d.gen {
	case typeTouchMultiT9:
		var rng [4]byte
		var orient [1]byte
		if err = d.readObject(d.touch, t9Range, rng[:]); err == nil {
			rx = int(rng[0]) | int(rng[1])<<8
			ry = int(rng[2]) | int(rng[3])<<8
			if err = d.readObject(d.touch, t9Orient, orient[:]); err == nil {
				switched = orient[0]&t9OrientSwitch != 0
			}
		}
	case typeTouchScreenT100:
		var xr, yr [2]byte
		var cfg, aux [1]byte
		if err = d.readObject(d.touch, t100XRange, xr[:]); err != nil {
			break
		}
		if err = d.readObject(d.touch, t100YRange, yr[:]); err != nil {
			break
		}
		rx = int(xr[0]) | int(xr[1])<<8
		ry = int(yr[0]) | int(yr[1])<<8
		if err = d.readObject(d.touch, t100Cfg1, cfg[:]); err != nil {
			break
		}
		switched = cfg[0]&t100SwitchXY != 0
		if err = d.readObject(d.touch, t100TchAux, aux[:]); err != nil {
			break
		}
		d.auxArea = t100AuxIndex(aux[0])
	}

	if rx == 0 {
		rx = defaultRange
	}
	if ry == 0 {
		ry = defaultRange
	}
	if switched {
		rx, ry = ry, rx
	}
	d.maxX, d.maxY = rx+1, ry+1
	return err
}

// t100AuxIndex returns the message offset of the area byte. Aux bytes follow
// X/Y in the order vector, amplitude, area.
func t100AuxIndex(tchaux byte) int {
	idx := 6
	if tchaux&t100AuxVect != 0 {
		idx++
	}
	if tchaux&t100AuxAmpl != 0 {
		idx++
	}
	if tchaux&t100AuxArea != 0 {
		return idx
	}
	return 0
}

// Reset issues a T6 software reset, releases every slot and waits for the
// controller to come back.
func (d *Device) Reset() error {
	d.slots.Reset()
	d.lastCount = 0
	if err := d.writeObject(d.t6, t6Reset, 1); err != nil {
		return err
	}
	time.Sleep(d.cfg.ResetDelay)
	return nil
}

func (d *Device) enable() error {
	switch d.gen {
	case typeTouchScreenT100:
		return d.setPowerCfg(powerCfgRun)
	case typeTouchMultiT9:
		return d.writeObject(d.touch, t9Ctrl, t9CtrlEnable)
	}
	return nil
}

func (d *Device) setPowerCfg(mode int) error {
	if d.t7 == nil {
		return nil
	}
	if mode == powerCfgDeep {
		return d.writeObject(d.t7, 0, 0, 0)
	}
	return d.writeObject(d.t7, 0, t7IdleRun, t7ActiveRun)
}

// Sleep puts the controller into deep sleep (T7 intervals zeroed).
func (d *Device) Sleep() error {
	return d.setPowerCfg(powerCfgDeep)
}

// Wake resets the controller and re-enables acquisition.
func (d *Device) Wake() error {
	if err := d.Reset(); err != nil {
		return err
	}
	if d.gen == typeTouchMultiT9 {
		// T9 keeps its power config; only the CTRL enable is volatile.
		if err := d.setPowerCfg(powerCfgRun); err != nil {
			return err
		}
	}
	return d.enable()
}

// Poll drains pending messages and fills f with every valid slot.
func (d *Device) Poll(f *types.Frame) error {
	f.Reset()
	if d.t5 == nil {
		return errcode.NotReady
	}
	// Lifts reported by the previous cycle have been dispatched by now.
	d.slots.Sweep()

	var err error
	if d.t44 != nil {
		err = d.readWithCount()
	} else {
		err = d.readUntilInvalid()
	}
	if err != nil {
		return err
	}
	f.Contacts = d.slots.Collect(d.frame[:0])
	f.At = time.Now()
	return nil
}

func clampU16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
