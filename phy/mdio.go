package phy

// MDIOBus performs management frames on an MDIO bus.
//
// devAddr selects the frame format: 0 issues a Clause 22 frame with regAddr in
// 0..31, non-zero issues Clause 45 frames to that MMD (1 PMA/PMD, 3 PCS, 7 AN...)
// with a full 16 bit regAddr. Buses that only speak Clause 22 return
// ErrUnsupported for non-zero devAddr. Out of range addresses are
// implementation defined.
type MDIOBus interface {
	Read(phyAddr, devAddr uint8, regAddr uint16) (value uint16, err error)
	Write(phyAddr, devAddr uint8, regAddr, value uint16) error
}

// Clause 22 opcodes as sent on the wire after the start of frame. SMI
// peripherals that expose the opcode take one of these per transaction.
const (
	OpcodeWrite uint8 = 0b01
	OpcodeRead  uint8 = 0b10
)
