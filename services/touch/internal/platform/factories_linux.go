//go:build linux

package platform

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"touchcode-go/services/touch/internal/drvshim"
)

var hostOnce struct {
	sync.Once
	err error
}

func initHost() error {
	hostOnce.Do(func() { _, hostOnce.err = host.Init() })
	return hostOnce.err
}

// Default returns periph.io backed factories.
func Default() Factories {
	return Factories{I2C: &hostI2C{open: map[string]drvshim.I2C{}}, IRQ: hostIRQ{}}
}

type hostI2C struct {
	mu      sync.Mutex
	open    map[string]drvshim.I2C
	closers []i2c.BusCloser
}

// ByID opens the bus once; devices on the same bus share one shim.
func (f *hostI2C) ByID(name string) (drivers.I2C, bool) {
	if initHost() != nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.open[name]; ok {
		return s, true
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, false
	}
	s := drvshim.NewI2C(bus, 1)
	f.open[name] = s
	f.closers = append(f.closers, bus)
	return s, true
}

// Close releases every bus opened through the factory.
func (f *hostI2C) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.closers = nil
	f.open = map[string]drvshim.I2C{}
	return first
}

type hostIRQ struct{}

func (hostIRQ) ByName(name string, edge gpio.Edge) (EdgeWaiter, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("platform: no gpio %q", name)
	}
	if err := p.In(gpio.PullUp, edge); err != nil {
		return nil, fmt.Errorf("platform: gpio %s: %w", name, err)
	}
	return p, nil
}
