package types

import "touchcode-go/x/mathx"

// Rotation is the clockwise rotation of the display the panel is bonded to.
type Rotation uint8

const (
	Rot0 Rotation = iota
	Rot90
	Rot180
	Rot270
)

// RotationFromDegrees maps 0/90/180/270 (any multiple, negative allowed).
func RotationFromDegrees(deg int) Rotation {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return Rotation((deg + 45) / 90 % 4)
}

func (r Rotation) Degrees() int { return int(r%4) * 90 }

// Apply maps panel coordinates into display coordinates for a panel whose
// native range is [0,maxX]x[0,maxY].
func (r Rotation) Apply(x, y, maxX, maxY uint16) (uint16, uint16) {
	switch r % 4 {
	case Rot90:
		return mathx.Mirror(y, maxY), x
	case Rot180:
		return mathx.Mirror(x, maxX), mathx.Mirror(y, maxY)
	case Rot270:
		return y, mathx.Mirror(x, maxX)
	default:
		return x, y
	}
}

// Bounds returns the display-space maxima for the native maxima.
func (r Rotation) Bounds(maxX, maxY uint16) (uint16, uint16) {
	if r%2 == 1 {
		return maxY, maxX
	}
	return maxX, maxY
}

// RotationSource reports the display's current transform.
type RotationSource interface {
	Rotation() Rotation
}

// FixedRotation is a RotationSource that never changes.
type FixedRotation Rotation

func (f FixedRotation) Rotation() Rotation { return Rotation(f) }
