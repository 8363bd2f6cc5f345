package mxt

import "touchcode-go/errcode"

// Register addresses go out low byte first.

func (d *Device) readReg(reg uint16, r []byte) error {
	d.w[0] = byte(reg)
	d.w[1] = byte(reg >> 8)
	if err := d.i2c.Tx(d.addr, d.w[:2], r); err != nil {
		return errcode.Wrap(errcode.Transport, "mxt read", err)
	}
	return nil
}

func (d *Device) writeReg(reg uint16, data ...byte) error {
	if len(data) > len(d.w)-2 {
		return errcode.Wrap(errcode.Unsupported, "mxt write", errcode.Bounds)
	}
	d.w[0] = byte(reg)
	d.w[1] = byte(reg >> 8)
	n := copy(d.w[2:], data)
	if err := d.i2c.Tx(d.addr, d.w[:2+n], nil); err != nil {
		return errcode.Wrap(errcode.Transport, "mxt write", err)
	}
	return nil
}

func (d *Device) writeObject(o *Object, off uint16, data ...byte) error {
	return d.writeReg(o.Start+off, data...)
}

func (d *Device) readObject(o *Object, off uint16, r []byte) error {
	return d.readReg(o.Start+off, r)
}
