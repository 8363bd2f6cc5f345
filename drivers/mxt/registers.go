// Package mxt constants: object types, object-relative register offsets and
// message bitfields of the Atmel maXTouch object protocol.
package mxt

const (
	// 7-bit I2C address (0x4A with ADDSEL low, 0x4B high).
	AddressDefault = 0x4A

	// Vendor/product reported to the sink.
	VendorID  = 0x03EB
	ProductID = 0x8A03

	// --- Object types ---
	typeMessageT5        = 5
	typeCommandT6        = 6
	typePowerT7          = 7
	typeTouchMultiT9     = 9
	typeGPIOPWMT19       = 19
	typeMessageCountT44  = 44
	typeTouchScreenT100  = 100
	typeMessageProcessor = typeMessageT5
	typeCommandProcessor = typeCommandT6

	// --- Layout of the information block ---
	infoSize   = 7 // family, variant, version, build, matrix x, matrix y, object count
	objectSize = 6 // type, start (le16), size-1, instances-1, report ids
	crcSize    = 3 // le24 after the object table

	// --- T6 command processor ---
	t6Reset = 0 // write 1 to reset

	// --- T7 power config (idle, active acquisition intervals in ms) ---
	t7IdleRun    = 100
	t7ActiveRun  = 20
	powerCfgRun  = 0
	powerCfgDeep = 1

	// --- T9 multitouch (legacy) ---
	t9Ctrl         = 0
	t9Orient       = 9
	t9Range        = 18 // x le16, y le16
	t9CtrlEnable   = 0x83
	t9OrientSwitch = 1 << 0

	t9Detect = 1 << 7
	t9Press  = 1 << 6

	// --- T100 multitouch screen ---
	t100Cfg1       = 1
	t100TchAux     = 3
	t100XRange     = 13
	t100YRange     = 24
	t100SwitchXY   = 1 << 5
	t100AuxVect    = 1 << 1
	t100AuxAmpl    = 1 << 2
	t100AuxArea    = 1 << 3
	t100Detect     = 1 << 7
	t100TypeMask   = 0x07
	t100TypeShift  = 4
	t100TypePassiv = 2 // passive stylus
	t100TypeActive = 3 // active stylus
	t100Reserved   = 2 // first two report ids: screen status, aux

	// Message stream sentinel.
	reportInvalid = 0xFF

	// 10-bit mode threshold.
	tenBitLimit   = 1024
	defaultRange  = 1023
	mxt224Family  = 0x80
	mxt224CRCFw   = 0x20
	t9MsgAreaByte = 5
)
