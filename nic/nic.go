// Package nic is the host side of a network interface as seen by a PHY driver.
//
// An [Interface] owns the link state (presence, speed, duplex), the pending PHY
// event flag and the capability handles a PHY driver uses to reach its
// transceiver: an optional SMI (MDIO) peripheral, the MAC driver and an optional
// external interrupt line. PHY drivers implement [PHYDriver] and operate on the
// Interface they are passed; they hold no state of their own.
//
// All link state mutation happens on the goroutine running [Interface.Run]. The
// external interrupt line only raises the pending PHY event, which Run consumes
// by calling the PHY driver's event handler.
package nic

import (
	"context"

	"github.com/soypat/ethphy/phy"
)

// PHYBus is the register access surface shared by SMI peripherals and MAC
// drivers with an embedded management interface. op is [phy.OpcodeRead] or
// [phy.OpcodeWrite].
type PHYBus interface {
	WritePHYReg(op uint8, phyAddr, regAddr uint8, data uint16) error
	ReadPHYReg(op uint8, phyAddr, regAddr uint8) (uint16, error)
}

// SMIDriver is a dedicated serial management interface (MDIO) peripheral.
type SMIDriver interface {
	PHYBus
	// Init prepares the peripheral. Init may be called more than once.
	Init() error
}

// NICDriver is the MAC collaborator. Its PHYBus methods are used for register
// access when no SMIDriver is configured.
type NICDriver interface {
	PHYBus
	// UpdateMACConfig adjusts MAC clock, speed and duplex settings to the
	// link parameters currently stored in iface.
	UpdateMACConfig(iface *Interface) error
}

// ExtIntDriver is an external interrupt line wired to the PHY interrupt output.
// On an interrupt the line must call [Interface.SetPHYEvent].
type ExtIntDriver interface {
	Init() error
	EnableIRQ()
	DisableIRQ()
}

// PHYDriver drives a PHY transceiver on behalf of an Interface.
type PHYDriver interface {
	// Init resets and configures the transceiver and requests an initial link evaluation.
	Init(ctx context.Context, iface *Interface) error
	// Tick is called periodically by the host.
	Tick(iface *Interface) error
	EnableIRQ(iface *Interface)
	DisableIRQ(iface *Interface)
	// EventHandler services a pending PHY event.
	EventHandler(iface *Interface) error
}

// LinkSpeed is the negotiated link speed.
type LinkSpeed uint8

const (
	LinkSpeedUnknown LinkSpeed = iota
	LinkSpeed10Mbps
	LinkSpeed100Mbps
)

func (s LinkSpeed) String() string {
	switch s {
	case LinkSpeed10Mbps:
		return "10Mbps"
	case LinkSpeed100Mbps:
		return "100Mbps"
	}
	return "unknown"
}

// Mbps returns the speed in megabits per second, 0 if unknown.
func (s LinkSpeed) Mbps() int {
	switch s {
	case LinkSpeed10Mbps:
		return 10
	case LinkSpeed100Mbps:
		return 100
	}
	return 0
}

// DuplexMode is the negotiated duplex mode.
type DuplexMode uint8

const (
	DuplexUnknown DuplexMode = iota
	HalfDuplex
	FullDuplex
)

func (d DuplexMode) String() string {
	switch d {
	case HalfDuplex:
		return "half-duplex"
	case FullDuplex:
		return "full-duplex"
	}
	return "unknown"
}

// Link is a snapshot of the link state of an interface. Speed and Duplex are
// only meaningful when Up is true; after a link drop they keep their last values.
type Link struct {
	Up     bool
	Speed  LinkSpeed
	Duplex DuplexMode
}

// LinkMode converts the link to its phy package representation.
func (l Link) LinkMode() phy.LinkMode {
	if !l.Up {
		return phy.LinkDown
	}
	full := l.Duplex == FullDuplex
	switch {
	case l.Speed == LinkSpeed100Mbps && full:
		return phy.Link100FDX
	case l.Speed == LinkSpeed100Mbps:
		return phy.Link100HDX
	case l.Speed == LinkSpeed10Mbps && full:
		return phy.Link10FDX
	case l.Speed == LinkSpeed10Mbps:
		return phy.Link10HDX
	}
	return phy.LinkDown
}
