package goodix

const (
	// 7-bit I2C address (0x5D, or 0x14 depending on INT level at reset).
	AddressDefault = 0x5D

	// Goodix reports its USB vendor id for both fields.
	VendorID  = 0x0416
	ProductID = 0x0416

	// --- Registers (16-bit, big-endian on the wire) ---
	regCoords     = 0x814E // status byte, then contact records, then key byte
	regID         = 0x8140 // 4-byte ASCII product id + le16 firmware version
	regCommand    = 0x8040
	regConfigGT9x = 0x8047
	regConfigGT1x = 0x8050

	cmdScreenOff = 0x05

	// --- Config block lengths ---
	configMaxLength = 240
	config911Length = 186
	config967Length = 228

	// --- Config field offsets ---
	cfgResolution = 1 // x le16, y le16
	cfgMaxTouch   = 5
	cfgTrigger    = 6
	cfgFresh      = 1 // value of the last byte when the config is current

	// --- Status byte ---
	statusReady     = 0x80
	statusHaveKey   = 0x10
	statusCountMask = 0x0F

	// --- Contact records ---
	contactSize = 8
	idMask      = 0x0F
	idStylus    = 0x80
	keyStylus1  = 0x10
	keyStylus2  = 0x20

	// Defaults used when the config block cannot be trusted.
	defaultMaxX     = 4096
	defaultMaxY     = 4096
	defaultMaxTouch = 10
	defaultTrigger  = TriggerFalling
)

// Trigger is the interrupt trigger type stored in the config block.
type Trigger uint8

const (
	TriggerRising Trigger = iota
	TriggerFalling
	TriggerLow
	TriggerHigh
)

func (t Trigger) String() string {
	switch t {
	case TriggerRising:
		return "rising"
	case TriggerFalling:
		return "falling"
	case TriggerLow:
		return "low"
	default:
		return "high"
	}
}
