package nic

import "github.com/soypat/ethphy/phy"

var _ phy.MDIOBus = regAccessor{}

// regAccessor adapts the PHYBus selected at Configure to phy.MDIOBus.
// Register addresses are forwarded without range checks.
type regAccessor struct {
	bus PHYBus
}

func (r regAccessor) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if devAddr != 0 {
		return 0xffff, phy.ErrUnsupported
	}
	return r.bus.ReadPHYReg(phy.OpcodeRead, phyAddr, uint8(regAddr))
}

func (r regAccessor) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if devAddr != 0 {
		return phy.ErrUnsupported
	}
	return r.bus.WritePHYReg(phy.OpcodeWrite, phyAddr, uint8(regAddr), value)
}

// MDIOSMI exposes a phy.MDIOBus, such as a [phy.MDIOBitBang] or a kernel
// MDIO handle, as an SMIDriver.
type MDIOSMI struct {
	Bus phy.MDIOBus
	// InitFunc, if set, is called by Init.
	InitFunc func() error
}

var _ SMIDriver = (*MDIOSMI)(nil)

func (s *MDIOSMI) Init() error {
	if s.Bus == nil {
		return phy.ErrInvalidConfig
	}
	if s.InitFunc != nil {
		return s.InitFunc()
	}
	return nil
}

func (s *MDIOSMI) ReadPHYReg(op uint8, phyAddr, regAddr uint8) (uint16, error) {
	if op != phy.OpcodeRead {
		return 0xffff, phy.ErrUnsupported
	}
	return s.Bus.Read(phyAddr, 0, uint16(regAddr))
}

func (s *MDIOSMI) WritePHYReg(op uint8, phyAddr, regAddr uint8, data uint16) error {
	if op != phy.OpcodeWrite {
		return phy.ErrUnsupported
	}
	return s.Bus.Write(phyAddr, 0, uint16(regAddr), data)
}
