// Package hostbus opens a Linux I2C adapter through periph.io and exposes it
// as an SMBus transport.
package hostbus

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"smartbattery-go/drivers/smbus"
)

// Bus adapts a periph i2c.BusCloser. periph's Tx already matches
// drivers.I2C, so only clock setup and closing are added.
type Bus struct {
	bc i2c.BusCloser
}

var (
	_ smbus.Configurer = (*Bus)(nil)
)

// Open initialises the host drivers and opens the named adapter. name is a
// periph bus name ("1", "I2C1") or a /dev/i2c-N path; empty picks the first
// adapter found.
func Open(name string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hostbus: init: %w", err)
	}
	bc, err := i2creg.Open(normalise(name))
	if err != nil {
		return nil, fmt.Errorf("hostbus: open %q: %w", name, err)
	}
	return &Bus{bc: bc}, nil
}

// Wrap adapts an already open periph bus.
func Wrap(bc i2c.BusCloser) *Bus { return &Bus{bc: bc} }

func normalise(name string) string {
	return strings.TrimPrefix(name, "/dev/i2c-")
}

func (b *Bus) Tx(addr uint16, w, r []byte) error { return b.bc.Tx(addr, w, r) }

// ConfigureBus sets the SCL clock. The Linux adapter enforces its own
// timeout, so timeout is not applied.
func (b *Bus) ConfigureBus(speedHz uint32, _ time.Duration) error {
	if speedHz == 0 {
		return nil
	}
	return b.bc.SetSpeed(physic.Frequency(speedHz) * physic.Hertz)
}

func (b *Bus) Close() error { return b.bc.Close() }

func (b *Bus) String() string { return b.bc.String() }

// Names lists the adapters periph can open.
func Names() ([]string, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hostbus: init: %w", err)
	}
	var out []string
	for _, ref := range i2creg.All() {
		out = append(out, ref.Name)
	}
	return out, nil
}
