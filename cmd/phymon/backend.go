package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/soypat/ethphy/dp83826"
	"github.com/soypat/ethphy/extint"
	"github.com/soypat/ethphy/internal/physim"
	"github.com/soypat/ethphy/nic"
	"github.com/soypat/ethphy/phy"
	"github.com/soypat/ethphy/phy/mdiogpio"
	"github.com/soypat/ethphy/phy/mdiolinux"
)

// backend is an opened management bus plus what phymon needs to drive a nic.Interface over it.
type backend struct {
	bus     phy.MDIOBus
	smi     nic.SMIDriver
	mac     nic.NICDriver
	addr    uint8
	intPin  gpio.PinIn
	sim     *physim.PHY
	simLink phy.LinkMode
	closers []io.Closer
}

func openBackend(cfg *Config, log *slog.Logger) (*backend, error) {
	b := &backend{addr: cfg.phyAddr(dp83826.DefaultPHYAddr)}
	needHost := cfg.Backend == backendGPIO || cfg.InterruptPin != ""
	if needHost {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init: %w", err)
		}
	}
	switch cfg.Backend {
	case backendLinux:
		bus, err := mdiolinux.Open(cfg.Interface)
		if err != nil {
			return nil, err
		}
		b.bus = bus
		b.addr = cfg.phyAddr(bus.PHYAddr())
		b.closers = append(b.closers, bus)
	case backendGPIO:
		mdc := gpioreg.ByName(cfg.GPIO.MDC)
		if mdc == nil {
			return nil, fmt.Errorf("gpio %q not found", cfg.GPIO.MDC)
		}
		mdio := gpioreg.ByName(cfg.GPIO.MDIO)
		if mdio == nil {
			return nil, fmt.Errorf("gpio %q not found", cfg.GPIO.MDIO)
		}
		bus, err := mdiogpio.New(mdiogpio.Config{MDC: mdc, MDIO: mdio, HalfPeriod: cfg.GetHalfPeriod()})
		if err != nil {
			return nil, err
		}
		b.bus = bus
	case backendSim:
		lm, err := cfg.simLink()
		if err != nil {
			return nil, err
		}
		simAddr := b.addr
		if simAddr > 31 {
			simAddr = dp83826.DefaultPHYAddr
		}
		sim := physim.New(simAddr)
		sim.ResetDelay = cfg.Sim.ResetDelay
		b.sim = sim
		b.simLink = lm
		b.plugSim()
		b.bus = sim
		b.smi = sim.SMI()
		b.mac = physim.NewNIC(sim)
	default:
		return nil, fmt.Errorf("invalid backend %q", cfg.Backend)
	}
	if b.smi == nil {
		b.smi = &nic.MDIOSMI{Bus: b.bus}
	}
	if b.mac == nil {
		b.mac = &logMAC{PHYBus: b.smi, log: log}
	}
	if cfg.InterruptPin != "" {
		pin := gpioreg.ByName(cfg.InterruptPin)
		if pin == nil {
			b.Close()
			return nil, fmt.Errorf("gpio %q not found", cfg.InterruptPin)
		}
		b.intPin = pin
	}
	return b, nil
}

// plugSim sets the simulated wire to the configured link, latching a link
// interrupt like a cable being plugged in.
func (b *backend) plugSim() {
	if b.sim == nil || b.simLink == phy.LinkDown {
		return
	}
	b.sim.SetLink(true, b.simLink.SpeedMbps() == 10, !b.simLink.IsFullDuplex())
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	b.closers = nil
	return errors.Join(errs...)
}

// setup configures iface over the backend with a DP83826 driver. If an
// interrupt pin is configured an extint.Line is attached to it and closed
// along with the backend.
func (b *backend) setup(iface *nic.Interface, cfg *Config, log *slog.Logger, onLink func(*nic.Interface, nic.Link)) error {
	drvCfg, err := cfg.driverConfig(log)
	if err != nil {
		return err
	}
	nicCfg := nic.Config{
		Name:         cfg.Interface,
		PHYAddr:      b.addr,
		SMI:          b.smi,
		NIC:          b.mac,
		PHY:          dp83826.New(drvCfg),
		OnLinkChange: onLink,
		TickInterval: cfg.GetTickInterval(),
		Logger:       log,
	}
	if b.intPin != nil {
		line, err := extint.New(extint.Config{
			Pin:    b.intPin,
			Signal: iface.SetPHYEvent,
			Logger: log,
		})
		if err != nil {
			return err
		}
		b.closers = append(b.closers, line)
		nicCfg.ExtInt = line
	}
	return iface.Configure(nicCfg)
}

// logMAC stands in for a MAC driver when phymon talks to the PHY directly.
// MAC reconfiguration is only logged.
type logMAC struct {
	nic.PHYBus
	log *slog.Logger
}

func (m *logMAC) UpdateMACConfig(iface *nic.Interface) error {
	link := iface.Link()
	if m.log != nil {
		m.log.Info("mac:update", slog.String("speed", link.Speed.String()), slog.String("duplex", link.Duplex.String()))
	}
	return nil
}
