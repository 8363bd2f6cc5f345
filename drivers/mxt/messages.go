package mxt

import "touchcode-go/errcode"

// readWithCount reads the T44 count together with the first T5 message,
// then the remaining count-1 messages in one transfer.
func (d *Device) readWithCount() error {
	buf := d.msgBuf[:d.msgSize+1]
	if err := d.readReg(d.t44.Start, buf); err != nil {
		return err
	}
	count := int(buf[0])
	if count == 0 {
		return nil
	}
	if count > d.maxReportID {
		count = d.maxReportID
	}
	d.process(buf[1:])
	if count > 1 {
		_, err := d.readMessages(count - 1)
		return err
	}
	return nil
}

// readUntilInvalid is used when the chip has no T44. It reads one more
// message than last cycle produced; if all of them were valid the queue may
// hold more, so it keeps reading pairs until an invalid message shows up or
// every touch id has been seen.
func (d *Device) readUntilInvalid() error {
	count := d.lastCount
	if count < 1 || count > d.maxReportID {
		count = 1
	}
	total, err := d.readMessages(count + 1)
	if err != nil {
		return err
	}
	if total > count {
		for {
			n, err := d.readMessages(2)
			if err != nil {
				return err
			}
			total += n
			if n < 2 || total >= d.numTouchIDs {
				break
			}
		}
	}
	d.lastCount = total
	return nil
}

// readMessages reads n consecutive T5 messages and processes each. It
// returns how many were valid.
func (d *Device) readMessages(n int) (int, error) {
	size := n * d.msgSize
	if n <= 0 || size > len(d.msgBuf) {
		return 0, errcode.Wrap(errcode.Bounds, "mxt messages", ErrReportIDs)
	}
	buf := d.msgBuf[:size]
	if err := d.readReg(d.t5.Start, buf); err != nil {
		return 0, err
	}
	valid := 0
	for i := 0; i < n; i++ {
		if d.process(buf[i*d.msgSize : (i+1)*d.msgSize]) {
			valid++
		}
	}
	return valid, nil
}

// process routes one message by report id. It returns false for the invalid
// sentinel; messages from objects that are not handled still count as valid.
func (d *Device) process(msg []byte) bool {
	id := msg[0]
	if id == reportInvalid {
		return false
	}
	switch {
	case id == d.t6ReportID && id != 0:
		if len(msg) >= 5 {
			d.status = msg[1]
			d.cfgCRC = le24(msg[2:])
		}
	case d.touch == nil:
	case d.gen == typeTouchMultiT9 && d.touch.Owns(id):
		d.processT9(id, msg)
	case d.gen == typeTouchScreenT100 && d.touch.Owns(id):
		d.processT100(id, msg)
	}
	return true
}

// decodeT9 extracts the 12-bit position and touch state of a T9 message.
// Axes whose maximum is under 1024 are reported in 10-bit resolution.
func decodeT9(msg []byte, maxX, maxY int) (x, y uint16, down bool) {
	flags := msg[1]
	x = uint16(msg[2])<<4 | uint16(msg[4]>>4)
	y = uint16(msg[3])<<4 | uint16(msg[4]&0x0F)
	if maxX < tenBitLimit {
		x >>= 2
	}
	if maxY < tenBitLimit {
		y >>= 2
	}
	return x, y, flags&(t9Detect|t9Press) != 0
}

func (d *Device) processT9(id uint8, msg []byte) {
	if len(msg) < 5 {
		return
	}
	slot := int(id - d.touch.MinReportID)
	x, y, down := decodeT9(msg, d.maxX, d.maxY)
	if !down {
		d.slots.Release(slot)
		return
	}
	var w uint16
	if len(msg) > t9MsgAreaByte {
		w = uint16(msg[t9MsgAreaByte])
	}
	d.slots.Touch(slot, x, y, w, false)
}

func (d *Device) processT100(id uint8, msg []byte) {
	// Screen status and aux ids carry no contact.
	if id < d.touch.MinReportID+t100Reserved || len(msg) < 2 {
		return
	}
	slot := int(id - d.touch.MinReportID - t100Reserved)
	flags := msg[1]
	if flags&t100Detect == 0 {
		d.slots.Release(slot)
		return
	}
	if len(msg) < 6 {
		return
	}
	x := uint16(msg[2]) | uint16(msg[3])<<8
	y := uint16(msg[4]) | uint16(msg[5])<<8
	typ := (flags >> t100TypeShift) & t100TypeMask
	stylus := typ == t100TypePassiv || typ == t100TypeActive
	var w uint16
	if d.auxArea > 0 && d.auxArea < len(msg) {
		w = uint16(msg[d.auxArea])
	}
	d.slots.Touch(slot, x, y, w, stylus)
}
