package uinput

// Values from linux/input-event-codes.h and linux/uinput.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0

	btnLeft       = 0x110
	btnRight      = 0x111
	btnToolPen    = 0x140
	btnToolFinger = 0x145
	btnTouch      = 0x14a
	btnStylus     = 0x14b
	btnStylus2    = 0x14c

	absX            = 0x00
	absY            = 0x01
	absMtSlot       = 0x2f
	absMtTouchMajor = 0x30
	absMtPositionX  = 0x35
	absMtPositionY  = 0x36
	absMtToolType   = 0x37
	absMtTrackingID = 0x39
	absCnt          = 0x40

	mtToolFinger = 0
	mtToolPen    = 1

	inputPropPointer = 0x00
	inputPropDirect  = 0x01

	busI2C = 0x18

	maxNameSize = 80

	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567
	uiSetPropBit = 0x4004556e
)

// inputID mirrors struct input_id.
type inputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// userDev mirrors struct uinput_user_dev.
type userDev struct {
	Name       [maxNameSize]byte
	ID         inputID
	EffectsMax uint32
	AbsMax     [absCnt]int32
	AbsMin     [absCnt]int32
	AbsFuzz    [absCnt]int32
	AbsFlat    [absCnt]int32
}
