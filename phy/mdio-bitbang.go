package phy

import "errors"

var _ MDIOBus = (*MDIOBitBang)(nil)

// Start of frame and opcodes. Clause 45 frames start with 00 and have their
// own opcode set: an address frame loads the register address of an MMD and
// the following read or write frame acts on it.
const (
	startC22 = 0b01
	startC45 = 0b00

	opC45Addr  = 0b00
	opC45Write = 0b01
	opC45Read  = 0b11
)

var errTurnaround = errors.New("phy: no PHY drove the turnaround bit")

// MDIOBitBang is a management station that clocks MDIO frames through three
// callbacks, so any pair of GPIOs can serve as MDC and MDIO. See package
// mdiogpio for periph.io pins.
//
//   - sendBit drives MDIO to bit and pulses MDC.
//   - getBit pulses MDC and samples MDIO.
//   - setDir(true) drives MDIO, setDir(false) releases it to the PHY.
type MDIOBitBang struct {
	sendBit func(bit bool)
	getBit  func() bool
	setDir  func(output bool)
}

// Configure sets the pin callbacks and leaves MDIO driven idle high.
func (m *MDIOBitBang) Configure(sendBit func(bit bool), getBit func() bool, setDir func(output bool)) error {
	if sendBit == nil || getBit == nil || setDir == nil {
		return ErrInvalidConfig
	}
	m.sendBit, m.getBit, m.setDir = sendBit, getBit, setDir
	m.setDir(true)
	return nil
}

// Read reads a register, using Clause 45 frames if devAddr is non-zero.
// Returns 0xffff and an error if no PHY answers.
func (m *MDIOBitBang) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if m.sendBit == nil {
		return 0xffff, ErrInvalidConfig
	}
	if devAddr == 0 {
		m.header(startC22, OpcodeRead, phyAddr, uint8(regAddr))
	} else {
		m.address45(phyAddr, devAddr, regAddr)
		m.header(startC45, opC45Read, phyAddr, devAddr)
	}
	m.setDir(false)
	// The PHY drives the second turnaround bit low. A released bus stays high.
	if m.getBit() {
		for i := 0; i < 32; i++ {
			m.getBit()
		}
		return 0xffff, errTurnaround
	}
	v := m.recv16()
	m.getBit() // idle.
	return v, nil
}

// Write writes a register, using Clause 45 frames if devAddr is non-zero.
// MDIO writes are not acknowledged so an absent PHY goes unnoticed.
func (m *MDIOBitBang) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if m.sendBit == nil {
		return ErrInvalidConfig
	}
	if devAddr == 0 {
		m.header(startC22, OpcodeWrite, phyAddr, uint8(regAddr))
	} else {
		m.address45(phyAddr, devAddr, regAddr)
		m.header(startC45, opC45Write, phyAddr, devAddr)
	}
	m.data(value)
	return nil
}

func (m *MDIOBitBang) address45(phyAddr, devAddr uint8, regAddr uint16) {
	m.header(startC45, opC45Addr, phyAddr, devAddr)
	m.data(regAddr)
}

// header sends the preamble followed by start, opcode and the two 5 bit address fields.
func (m *MDIOBitBang) header(start, op, phyAddr, field uint8) {
	m.setDir(true)
	for i := 0; i < 32; i++ {
		m.sendBit(true)
	}
	hdr := uint16(start)<<12 | uint16(op)<<10 | uint16(phyAddr&0x1f)<<5 | uint16(field&0x1f)
	m.send(hdr, 14)
}

// data sends the 10 turnaround and a 16 bit value, then releases the bus.
func (m *MDIOBitBang) data(v uint16) {
	m.send(0b10, 2)
	m.send(v, 16)
	m.setDir(false)
	m.getBit()
}

func (m *MDIOBitBang) send(v uint16, n int) {
	for i := n - 1; i >= 0; i-- {
		m.sendBit(v>>i&1 != 0)
	}
}

func (m *MDIOBitBang) recv16() (v uint16) {
	for i := 0; i < 16; i++ {
		v <<= 1
		if m.getBit() {
			v |= 1
		}
	}
	return v
}
