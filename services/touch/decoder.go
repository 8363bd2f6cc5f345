package touch

import (
	"touchcode-go/drivers/goodix"
	"touchcode-go/drivers/mxt"
	"touchcode-go/errcode"
	"touchcode-go/services/config"
	"touchcode-go/services/touch/internal/platform"
	"touchcode-go/types"
)

// HostFactories returns the periph.io backed bus and pin factories.
func HostFactories() platform.Factories { return platform.Default() }

// newDecoder opens the device's bus and builds the chip driver. Nothing is
// sent to the chip until Init.
func newDecoder(dev config.Device, f platform.Factories) (types.Decoder, error) {
	if f.I2C == nil {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "open", Msg: "no i2c on this platform"}
	}
	i2c, ok := f.I2C.ByID(dev.Bus)
	if !ok {
		return nil, &errcode.E{C: errcode.NotReady, Op: "open", Msg: "i2c bus " + dev.Bus}
	}
	switch dev.Chip {
	case config.ChipGoodix:
		return goodix.New(i2c, goodix.Config{
			Address: dev.Addr,
			SwapXY:  dev.SwapXY,
			InvertX: dev.InvertX,
			InvertY: dev.InvertY,
			ScaleX:  dev.ScaleX,
			ScaleY:  dev.ScaleY,
		}), nil
	case config.ChipMXT:
		// Orientation comes from the chip's own T9/T100 config.
		return mxt.New(i2c, mxt.Config{Address: dev.Addr}), nil
	}
	return nil, config.ErrUnknownChip
}

// releaser is implemented by decoders whose slots can be force-lifted.
type releaser interface {
	ReleaseAll() int
}

// edgeFor picks the interrupt edge, following the chip's own trigger
// setting where it has one.
func edgeFor(dec types.Decoder) string {
	if g, ok := dec.(*goodix.Device); ok {
		return g.Geometry().Trigger.String()
	}
	return "falling"
}
