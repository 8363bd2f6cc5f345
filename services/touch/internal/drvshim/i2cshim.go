// Package drvshim adapts host I2C buses to the tinygo driver Tx shape.
package drvshim

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers"
)

// I2C serialises transfers on a shared periph bus and retries failed ones.
// Several devices on the same bus share one lock.
type I2C struct {
	bus     i2c.Bus
	mu      *sync.Mutex
	retries int
}

var _ drivers.I2C = I2C{}

// NewI2C wraps bus. retries is the number of extra attempts after a failed
// transfer; negative means none.
func NewI2C(bus i2c.Bus, retries int) I2C {
	if retries < 0 {
		retries = 0
	}
	return I2C{bus: bus, mu: &sync.Mutex{}, retries: retries}
}

// Tx performs one write-then-read transaction.
func (s I2C) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for i := 0; i <= s.retries; i++ {
		if err = s.bus.Tx(addr, w, r); err == nil {
			return nil
		}
	}
	return err
}
