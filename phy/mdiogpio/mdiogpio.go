// Package mdiogpio bitbangs an MDIO management bus over two periph.io GPIO pins.
package mdiogpio

import (
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/soypat/ethphy/phy"
)

var _ phy.MDIOBus = (*Bus)(nil)

// Config selects the pins of the bus.
type Config struct {
	// MDC is the management clock, driven by the station.
	MDC gpio.PinOut
	// MDIO is the bidirectional data line.
	MDIO gpio.PinIO
	// HalfPeriod is the time MDC is held in each state. IEEE 802.3 requires
	// at least 160ns. Zero relies on GPIO latency alone.
	HalfPeriod time.Duration
}

// Bus is an MDIO bus bitbanged over GPIO. Pin errors are reported by the
// Read or Write call during which they occur. Bus is safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	bb   phy.MDIOBitBang
	mdc  gpio.PinOut
	mdio gpio.PinIO
	half time.Duration
	err  error
}

// New configures the pins and returns a ready to use bus.
func New(cfg Config) (*Bus, error) {
	if cfg.MDC == nil || cfg.MDIO == nil {
		return nil, errors.New("mdiogpio: nil pin")
	}
	b := &Bus{mdc: cfg.MDC, mdio: cfg.MDIO, half: cfg.HalfPeriod}
	if err := b.mdc.Out(gpio.Low); err != nil {
		return nil, err
	}
	if err := b.bb.Configure(b.sendBit, b.getBit, b.setDir); err != nil {
		return nil, err
	}
	if err := b.takeErr(); err != nil {
		return nil, err
	}
	return b, nil
}

// Read implements phy.MDIOBus.
func (b *Bus) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
	v, err := b.bb.Read(phyAddr, devAddr, regAddr)
	if perr := b.takeErr(); perr != nil {
		return 0xffff, perr
	}
	return v, err
}

// Write implements phy.MDIOBus.
func (b *Bus) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
	err := b.bb.Write(phyAddr, devAddr, regAddr, value)
	if perr := b.takeErr(); perr != nil {
		return perr
	}
	return err
}

func (b *Bus) takeErr() error {
	err := b.err
	b.err = nil
	return err
}

func (b *Bus) keep(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func (b *Bus) delay() {
	if b.half > 0 {
		time.Sleep(b.half)
	}
}

func (b *Bus) sendBit(bit bool) {
	b.keep(b.mdio.Out(gpio.Level(bit)))
	b.delay()
	b.keep(b.mdc.Out(gpio.High))
	b.delay()
	b.keep(b.mdc.Out(gpio.Low))
}

func (b *Bus) getBit() bool {
	b.delay()
	b.keep(b.mdc.Out(gpio.High))
	b.delay()
	b.keep(b.mdc.Out(gpio.Low))
	return b.mdio.Read() == gpio.High
}

func (b *Bus) setDir(out bool) {
	if out {
		b.keep(b.mdio.Out(gpio.High))
		return
	}
	b.keep(b.mdio.In(gpio.PullUp, gpio.NoEdge))
}
