// Package dp83826 drives the Texas Instruments DP83826 10/100 Ethernet PHY.
//
// The driver implements [nic.PHYDriver]. It keeps no link state of its own:
// every operation reads and updates the [nic.Interface] it is passed.
//
// Two modes of operation exist, selected by the presence of an external
// interrupt line on the interface:
//   - Polled: the host calls Tick periodically. Tick watches BMSR and raises a
//     PHY event on a link transition, the event handler then commits the new state.
//   - Interrupt driven: the PHY interrupt pin wakes the host which calls EventHandler.
package dp83826

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soypat/ethphy/internal"
	"github.com/soypat/ethphy/nic"
	"github.com/soypat/ethphy/phy"
)

var _ nic.PHYDriver = (*Driver)(nil)

// Config configures a Driver. The zero value is ready to use.
type Config struct {
	// ResetTimeout bounds the wait for the software reset to complete.
	// Defaults to phy.DefaultResetTimeout.
	ResetTimeout time.Duration
	// Advertisement, if non-zero, is written to ANAR after reset and
	// auto-negotiation is restarted. Must carry the IEEE 802.3 selector, see phy.NewANAR.
	Advertisement phy.ANAR
	// Logger overrides the interface logger.
	Logger *slog.Logger
}

// Driver is a DP83826 PHY driver. A single Driver may serve several interfaces.
type Driver struct {
	resetTimeout time.Duration
	adv          phy.ANAR
	log          *slog.Logger
}

// New returns a driver configured with cfg.
func New(cfg Config) *Driver {
	d := &Driver{}
	d.Configure(cfg)
	return d
}

// Configure replaces the driver configuration.
func (d *Driver) Configure(cfg Config) {
	d.resetTimeout = cfg.ResetTimeout
	if d.resetTimeout <= 0 {
		d.resetTimeout = phy.DefaultResetTimeout
	}
	d.adv = cfg.Advertisement
	d.log = cfg.Logger
}

// Init resets the PHY and configures link status change interrupts.
// The wait for reset completion is bounded by the configured reset timeout and ctx;
// phy.ErrResetTimeout is returned if the PHY stays in reset.
// On success a PHY event is raised so the host evaluates the link state at startup.
func (d *Driver) Init(ctx context.Context, iface *nic.Interface) error {
	d.info(iface, "dp83826:init")
	if iface.PHYAddr() >= 32 {
		d.debug(iface, "dp83826:default-phyaddr", internal.SlogUint8("got", iface.PHYAddr()))
		iface.SetPHYAddr(DefaultPHYAddr)
	}
	if smi := iface.SMI(); smi != nil {
		if err := smi.Init(); err != nil {
			return fmt.Errorf("dp83826: smi init: %w", err)
		}
	}
	if ext := iface.ExtInt(); ext != nil {
		if err := ext.Init(); err != nil {
			return fmt.Errorf("dp83826: external interrupt init: %w", err)
		}
	}
	dev, err := iface.PHYDevice()
	if err != nil {
		return err
	}
	err = dev.ResetPHY(ctx, d.resetTimeout)
	if err != nil {
		return fmt.Errorf("dp83826: reset: %w", err)
	}
	id, err := readID(&dev)
	if err != nil {
		return fmt.Errorf("dp83826: read id: %w", err)
	} else if !id.IsDP83826() {
		d.logattrs(iface, slog.LevelWarn, "dp83826:unexpected-id",
			internal.SlogHex16("idr1", id.IDR1), internal.SlogHex16("idr2", id.IDR2))
	}

	d.DumpRegisters(iface)

	if d.adv != 0 {
		err = dev.SetAdvertisement(d.adv)
		if err == nil {
			err = dev.RestartAutoNeg()
		}
		if err != nil {
			return fmt.Errorf("dp83826: advertisement: %w", err)
		}
	}
	// PWR_DOWN/INT pin as interrupt output.
	err = dev.WriteReg(RegPHYSCR, uint16(PHYSCRIntEn|PHYSCRIntOE))
	if err == nil {
		// Interrupt on link status change.
		err = dev.WriteReg(RegMISR1, uint16(MISR1LinkIntEn))
	}
	if err != nil {
		return fmt.Errorf("dp83826: interrupt setup: %w", err)
	}
	// Have the host poll the link state at startup.
	iface.SetPHYEvent()
	return nil
}

// Tick checks for link transitions when no external interrupt line is configured.
// On a transition it raises a PHY event. The new link state is committed by
// EventHandler, which the host runs in response to the event.
func (d *Driver) Tick(iface *nic.Interface) error {
	if iface.ExtInt() != nil {
		return nil
	}
	dev, err := iface.PHYDevice()
	if err != nil {
		return err
	}
	bmsr, err := dev.BasicStatus()
	if err != nil {
		return err
	}
	linkState := bmsr.LinkUp()
	if linkState != iface.LinkState() {
		d.trace(iface, "dp83826:link-transition", slog.Bool("up", linkState))
		iface.SetPHYEvent()
	}
	return nil
}

// EnableIRQ enables the external interrupt line, if any.
func (d *Driver) EnableIRQ(iface *nic.Interface) {
	if ext := iface.ExtInt(); ext != nil {
		ext.EnableIRQ()
	}
}

// DisableIRQ disables the external interrupt line, if any.
func (d *Driver) DisableIRQ(iface *nic.Interface) {
	if ext := iface.ExtInt(); ext != nil {
		ext.DisableIRQ()
	}
}

// EventHandler acknowledges pending PHY interrupts and, on a link status change,
// commits the link state read from PHYSTS. When the link is up the MAC
// configuration is updated to the negotiated speed and duplex. The host is
// notified of every link status change interrupt, including those after which
// the link presence is unchanged.
func (d *Driver) EventHandler(iface *nic.Interface) error {
	dev, err := iface.PHYDevice()
	if err != nil {
		return err
	}
	// Reading MISR1 acknowledges the interrupt.
	v, err := dev.ReadReg(RegMISR1)
	if err != nil {
		return err
	}
	if MISR1(v)&MISR1LinkInt == 0 {
		return nil
	}
	v, err = dev.ReadReg(RegPHYSTS)
	if err != nil {
		return err
	}
	status := PHYSTS(v)
	if status.LinkUp() {
		speed := nic.LinkSpeed100Mbps
		if status.Is10Mbps() {
			speed = nic.LinkSpeed10Mbps
		}
		duplex := nic.FullDuplex
		if status.HalfDuplex() {
			duplex = nic.HalfDuplex
		}
		iface.SetLinkUp(speed, duplex)
		// MAC config errors are logged by the interface.
		_ = iface.UpdateMACConfig()
	} else {
		iface.SetLinkDown()
	}
	iface.NotifyLinkChange()
	return nil
}

// ReadID reads the PHY identifier registers.
func ReadID(iface *nic.Interface) (ID, error) {
	dev, err := iface.PHYDevice()
	if err != nil {
		return ID{}, err
	}
	return readID(&dev)
}

func readID(dev *phy.Device) (ID, error) {
	id1, id2, err := dev.ID()
	return ID{IDR1: id1, IDR2: id2}, err
}
