//go:build !linux

package platform

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers"
)

// Default returns factories that resolve nothing. Tests inject fakes.
func Default() Factories {
	return Factories{I2C: noI2C{}, IRQ: noIRQ{}}
}

type noI2C struct{}

func (noI2C) ByID(string) (drivers.I2C, bool) { return nil, false }

type noIRQ struct{}

func (noIRQ) ByName(string, gpio.Edge) (EdgeWaiter, error) {
	return nil, errors.New("platform: no gpio on this host")
}
