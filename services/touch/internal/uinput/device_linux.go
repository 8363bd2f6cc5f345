//go:build linux

package uinput

import (
	"bytes"
	"fmt"
	"os"

	"github.com/lunixbochs/struc"
	"golang.org/x/sys/unix"

	"touchcode-go/types"
)

// Spec describes the devices to create for one panel.
type Spec struct {
	Name    string
	Vendor  uint16
	Product uint16
	MaxX    uint16
	MaxY    uint16
	// Pointer also creates the absolute mouse device.
	Pointer bool
}

// Devices holds the created uinput devices.
type Devices struct {
	Touch   *Touchscreen
	Pointer *Pointer // nil unless requested

	files []*os.File
}

const uinputPath = "/dev/uinput"

// Open creates the devices described by s.
func Open(s Spec) (*Devices, error) {
	d := &Devices{}
	f, err := create(s.Name, s, true)
	if err != nil {
		return nil, err
	}
	d.files = append(d.files, f)
	d.Touch = newTouchscreen(f)

	if s.Pointer {
		f, err := create(s.Name+" pointer", s, false)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.files = append(d.files, f)
		d.Pointer = newPointer(f)
	}
	return d, nil
}

// Close destroys every device.
func (d *Devices) Close() error {
	var first error
	for _, f := range d.files {
		_ = unix.IoctlSetInt(int(f.Fd()), uiDevDestroy, 0)
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.files = nil
	return first
}

func create(name string, s Spec, touch bool) (*os.File, error) {
	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0o660)
	if err != nil {
		return nil, fmt.Errorf("uinput: %w", err)
	}
	fd := int(f.Fd())
	set := func(req uint, v int) {
		if err == nil {
			err = unix.IoctlSetInt(fd, req, v)
		}
	}

	set(uiSetEvBit, evKey)
	set(uiSetEvBit, evAbs)
	set(uiSetAbsBit, absX)
	set(uiSetAbsBit, absY)
	if touch {
		set(uiSetPropBit, inputPropDirect)
		for _, k := range []int{btnTouch, btnToolFinger, btnToolPen, btnStylus, btnStylus2} {
			set(uiSetKeyBit, k)
		}
		for _, a := range []int{absMtSlot, absMtTrackingID, absMtPositionX, absMtPositionY, absMtTouchMajor, absMtToolType} {
			set(uiSetAbsBit, a)
		}
	} else {
		set(uiSetKeyBit, btnLeft)
		set(uiSetKeyBit, btnRight)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("uinput: ioctl: %w", err)
	}

	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, userDevFor(name, s), packOpts); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("uinput: setup: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("uinput: create: %w", err)
	}
	return f, nil
}

// userDevFor fills the uinput_user_dev block for one device.
func userDevFor(name string, s Spec) *userDev {
	u := &userDev{
		ID: inputID{BusType: busI2C, Vendor: s.Vendor, Product: s.Product, Version: 1},
	}
	copy(u.Name[:maxNameSize-1], name)
	u.AbsMax[absX] = int32(s.MaxX)
	u.AbsMax[absY] = int32(s.MaxY)
	u.AbsMax[absMtPositionX] = int32(s.MaxX)
	u.AbsMax[absMtPositionY] = int32(s.MaxY)
	u.AbsMax[absMtSlot] = types.MaxContacts - 1
	u.AbsMax[absMtTrackingID] = 0xFFFF
	u.AbsMax[absMtTouchMajor] = 255
	u.AbsMax[absMtToolType] = mtToolPen
	return u
}
