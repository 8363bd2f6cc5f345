package goodix

import "touchcode-go/errcode"

// Register addresses go out high byte first.

func (d *Device) readReg(reg uint16, r []byte) error {
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	if err := d.i2c.Tx(d.addr, d.w[:2], r); err != nil {
		return errcode.Wrap(errcode.Transport, "goodix read", err)
	}
	return nil
}

func (d *Device) writeReg(reg uint16, v byte) error {
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	d.w[2] = v
	if err := d.i2c.Tx(d.addr, d.w[:3], nil); err != nil {
		return errcode.Wrap(errcode.Transport, "goodix write", err)
	}
	return nil
}

// endCmd acknowledges a coordinate read so the chip can latch the next one.
func (d *Device) endCmd() error {
	return d.writeReg(regCoords, 0)
}
