package goodix

import (
	"touchcode-go/types"
	"touchcode-go/x/mathx"
)

// Geometry is the resolved protocol configuration of one panel. It is
// immutable after Init (Wake re-reads it).
type Geometry struct {
	ID       string
	Firmware uint16
	Chip     ChipData

	// Native coordinate maxima as reported by the chip.
	MaxX uint16
	MaxY uint16
	// MaxTouch is the configured contact ceiling, at most types.MaxContacts.
	MaxTouch int
	Trigger  Trigger

	// Corrections, applied in this order: scale, invert, swap.
	ScaleX  uint16 // 0 keeps the native range
	ScaleY  uint16
	InvertX bool
	InvertY bool
	SwapXY  bool

	// Defaulted is set when the config block was unreadable or failed its
	// checksum and the defaults above were used.
	Defaulted bool
}

func (g *Geometry) setDefaults() {
	g.MaxX = defaultMaxX
	g.MaxY = defaultMaxY
	g.MaxTouch = defaultMaxTouch
	g.Trigger = defaultTrigger
	g.Defaulted = true
}

// parseConfig loads the fields the driver needs from a checked config block.
// Zero values in the block fall back to the defaults.
func (g *Geometry) parseConfig(cfg []byte) {
	g.MaxX = uint16(cfg[cfgResolution]) | uint16(cfg[cfgResolution+1])<<8
	g.MaxY = uint16(cfg[cfgResolution+2]) | uint16(cfg[cfgResolution+3])<<8
	g.MaxTouch = int(cfg[cfgMaxTouch] & 0x0F)
	g.Trigger = Trigger(cfg[cfgTrigger] & 0x03)
	g.Defaulted = false
	if g.MaxX == 0 {
		g.MaxX = defaultMaxX
	}
	if g.MaxY == 0 {
		g.MaxY = defaultMaxY
	}
	if g.MaxTouch == 0 {
		g.MaxTouch = defaultMaxTouch
	}
	g.MaxTouch = mathx.Clamp(g.MaxTouch, 1, types.MaxContacts)
}

// axisMax returns the per-axis maxima after scaling, before any swap.
func (g *Geometry) axisMax() (uint16, uint16) {
	mx, my := g.MaxX, g.MaxY
	if g.ScaleX != 0 {
		mx = g.ScaleX
	}
	if g.ScaleY != 0 {
		my = g.ScaleY
	}
	return mx, my
}

// Bounds returns the reported maxima, swap included.
func (g *Geometry) Bounds() (uint16, uint16) {
	mx, my := g.axisMax()
	if g.SwapXY {
		return my, mx
	}
	return mx, my
}

// Correct maps a raw chip coordinate into the reported space.
func (g *Geometry) Correct(x, y uint16) (uint16, uint16) {
	if g.ScaleX != 0 {
		x = mathx.Rescale(x, g.MaxX, g.ScaleX)
	}
	if g.ScaleY != 0 {
		y = mathx.Rescale(y, g.MaxY, g.ScaleY)
	}
	mx, my := g.axisMax()
	if g.InvertX {
		x = mathx.Mirror(x, mx)
	}
	if g.InvertY {
		y = mathx.Mirror(y, my)
	}
	if g.SwapXY {
		x, y = y, x
	}
	return x, y
}
