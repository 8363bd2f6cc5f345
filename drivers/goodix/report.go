package goodix

import (
	"time"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

var (
	errTooMany = &errcode.E{C: errcode.Bounds, Op: "goodix", Msg: "touch count above configured maximum"}
	errNoData  = &errcode.E{C: errcode.Timeout, Op: "goodix", Msg: "coordinate buffer not ready"}
)

// readReport waits for the buffer-ready bit and reads the status byte, count
// contact records and the key byte into d.buf. It returns the touch count.
func (d *Device) readReport() (int, error) {
	first := d.buf[:1+contactSize]
	deadline := time.Now().Add(d.cfg.PollTimeout)
	for {
		if err := d.readReg(regCoords, first); err != nil {
			return 0, err
		}
		if first[0]&statusReady != 0 {
			break
		}
		if time.Now().After(deadline) {
			// Spurious interrupts follow a lift; nothing to report.
			return 0, errNoData
		}
		time.Sleep(d.cfg.PollInterval)
	}

	count := int(first[0] & statusCountMask)
	if count > d.geo.MaxTouch {
		return 0, errTooMany
	}
	// Records past the first plus the trailing key byte.
	if rest := count*contactSize + 1 - contactSize; rest > 0 {
		if err := d.readReg(regCoords+1+contactSize, d.buf[1+contactSize:1+contactSize+rest]); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Record is one decoded contact record.
type Record struct {
	ID    int
	X, Y  uint16
	W     uint16
	Flags byte
}

// DecodeRecord reads an 8-byte record {id, x le16, y le16, w le16, reserved}.
func DecodeRecord(b []byte) Record {
	return Record{
		ID:    int(b[0] & idMask),
		X:     uint16(b[1]) | uint16(b[2])<<8,
		Y:     uint16(b[3]) | uint16(b[4])<<8,
		W:     uint16(b[5]) | uint16(b[6])<<8,
		Flags: b[0] &^ idMask,
	}
}

// EncodeRecord is the inverse of DecodeRecord.
func EncodeRecord(r Record, b []byte) {
	b[0] = byte(r.ID)&idMask | r.Flags&^idMask
	b[1], b[2] = byte(r.X), byte(r.X>>8)
	b[3], b[4] = byte(r.Y), byte(r.Y>>8)
	b[5], b[6] = byte(r.W), byte(r.W>>8)
	b[7] = 0
}

// store decodes count records from d.buf into the slot pool. Slots not
// present in this report are released.
func (d *Device) store(count int, f *types.Frame) {
	var seen [types.MaxContacts]bool
	stylus := false
	if count == 1 {
		stylus = d.buf[1]&idStylus != 0
	}
	for i := 0; i < count; i++ {
		r := DecodeRecord(d.buf[1+i*contactSize:])
		x, y := d.geo.Correct(r.X, r.Y)
		if d.slots.Touch(r.ID, x, y, r.W, stylus) {
			seen[r.ID] = true
		}
	}
	for i := range seen {
		if !seen[i] {
			d.slots.Release(i)
		}
	}

	status := d.buf[0]
	if status&statusHaveKey != 0 {
		key := d.buf[1+count*contactSize]
		f.Buttons.Primary = key&keyStylus1 != 0
		f.Buttons.Secondary = key&keyStylus2 != 0
	}
}
