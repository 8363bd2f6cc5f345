// Package platform resolves configured bus and pin names to host resources
// and turns the panel interrupt line into calls on the acquisition loop.
package platform

import (
	"context"
	"io"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers"
)

// I2CFactory opens I2C buses by name ("1", "/dev/i2c-1", ...).
type I2CFactory interface {
	ByID(name string) (drivers.I2C, bool)
}

// EdgeWaiter is the part of gpio.PinIn the interrupt bridge needs.
type EdgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// IRQFactory configures a named pin as an interrupt input.
type IRQFactory interface {
	ByName(name string, edge gpio.Edge) (EdgeWaiter, error)
}

// Factories bundles the host resource factories.
type Factories struct {
	I2C I2CFactory
	IRQ IRQFactory
}

// Close releases the buses opened through f. Factories that hold nothing
// open are left alone.
func (f Factories) Close() error {
	if c, ok := f.I2C.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// EdgeFor maps a trigger name to the edge to wait for. Level triggers are
// approximated by the edge entering that level.
func EdgeFor(trigger string) gpio.Edge {
	switch strings.ToLower(trigger) {
	case "rising", "high":
		return gpio.RisingEdge
	case "both":
		return gpio.BothEdges
	default:
		return gpio.FallingEdge
	}
}

// waitSlice bounds each WaitForEdge so cancellation is noticed.
const waitSlice = 100 * time.Millisecond

// RunIRQ calls fire for every edge on line until ctx is done.
func RunIRQ(ctx context.Context, line EdgeWaiter, fire func()) {
	for ctx.Err() == nil {
		if line.WaitForEdge(waitSlice) {
			fire()
		}
	}
}

// RunPoll calls fire every interval until ctx is done. Used for panels
// wired without an interrupt line.
func RunPoll(ctx context.Context, every time.Duration, fire func()) {
	if every <= 0 {
		every = 10 * time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fire()
		}
	}
}
