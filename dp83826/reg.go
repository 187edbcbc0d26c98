package dp83826

import "github.com/soypat/ethphy/phy"

// DefaultPHYAddr is used when the interface carries a PHY address outside 0..31.
const DefaultPHYAddr = 0

// DP83826 register map. Registers 0x00..0x0F are the IEEE 802.3 Clause 22 set.
const (
	RegBMCR    = phy.AddrBMCR
	RegBMSR    = phy.AddrBMSR
	RegPHYIDR1 = phy.AddrPHYID1
	RegPHYIDR2 = phy.AddrPHYID2
	RegANAR    = phy.AddrANAR
	RegANLPAR  = phy.AddrANLPAR
	RegANER    = 0x06
	RegANNPTR  = 0x07
	RegANLNPTR = 0x08
	RegCR1     = 0x09
	RegCR2     = 0x0A
	RegCR3     = 0x0B
	RegREGCR   = 0x0D
	RegADDAR   = 0x0E
	RegFLDS    = 0x0F
	RegPHYSTS  = 0x10 // PHY Status Register.
	RegPHYSCR  = 0x11 // PHY Specific Control Register.
	RegMISR1   = 0x12 // MII Interrupt Status Register 1.
	RegMISR2   = 0x13 // MII Interrupt Status Register 2.
	RegFCSCR   = 0x14
	RegRECR    = 0x15
	RegBISCR   = 0x16
	RegRCSR    = 0x17
	RegLEDCR   = 0x18
	RegPHYCR   = 0x19
	Reg10BTSCR = 0x1A
	RegBICSR1  = 0x1B
	RegBICSR2  = 0x1C
	RegCDCR    = 0x1E
	RegPHYRCR  = 0x1F
)

// PHYSTS is the PHY Status Register (0x10).
type PHYSTS uint16

const (
	PHYSTSLinkStatus   PHYSTS = 0x0001 // Valid link established.
	PHYSTSSpeedStatus  PHYSTS = 0x0002 // Set for 10Mbps, clear for 100Mbps.
	PHYSTSDuplexStatus PHYSTS = 0x0004 // Duplex status bit, see Duplex.
	PHYSTSLoopback     PHYSTS = 0x0008
	PHYSTSANComplete   PHYSTS = 0x0010
	PHYSTSJabberDetect PHYSTS = 0x0020
	PHYSTSRemoteFault  PHYSTS = 0x0040
	PHYSTSMIIInterrupt PHYSTS = 0x0080
)

// LinkUp reports PHYSTS.LINK_STATUS.
func (s PHYSTS) LinkUp() bool { return s&PHYSTSLinkStatus != 0 }

// Is10Mbps reports a set speed status bit. A clear bit means 100Mbps.
func (s PHYSTS) Is10Mbps() bool { return s&PHYSTSSpeedStatus != 0 }

// HalfDuplex reports a set duplex status bit. A clear bit means full duplex.
func (s PHYSTS) HalfDuplex() bool { return s&PHYSTSDuplexStatus != 0 }

// PHYSCR is the PHY Specific Control Register (0x11).
type PHYSCR uint16

const (
	PHYSCRIntOE   PHYSCR = 0x0001 // PWR_DOWN/INT pin acts as interrupt output.
	PHYSCRIntEn   PHYSCR = 0x0002 // Enable interrupts.
	PHYSCRTestInt PHYSCR = 0x0004
	PHYSCRIntPol  PHYSCR = 0x0008
)

// MISR1 is the MII Interrupt Status Register 1 (0x12). The upper byte holds
// latched interrupt status bits which clear on read, the lower byte their enables.
type MISR1 uint16

const (
	MISR1RHFIntEn  MISR1 = 0x0001
	MISR1FHFIntEn  MISR1 = 0x0002
	MISR1ANCIntEn  MISR1 = 0x0004
	MISR1DupIntEn  MISR1 = 0x0008
	MISR1SpdIntEn  MISR1 = 0x0010
	MISR1LinkIntEn MISR1 = 0x0020 // Enable link status change interrupt.
	MISR1EDIntEn   MISR1 = 0x0040
	MISR1LQIntEn   MISR1 = 0x0080
	MISR1RHFInt    MISR1 = 0x0100
	MISR1FHFInt    MISR1 = 0x0200
	MISR1ANCInt    MISR1 = 0x0400
	MISR1DupInt    MISR1 = 0x0800
	MISR1SpdInt    MISR1 = 0x1000
	MISR1LinkInt   MISR1 = 0x2000 // Link status changed.
	MISR1EDInt     MISR1 = 0x4000
	MISR1LQInt     MISR1 = 0x8000
)

// Identification values of PHYIDR1/PHYIDR2.
const (
	OUIMSB      = 0x2000 // PHYIDR1 of TI PHYs.
	ModelNumber = 0x13   // PHYIDR2 bits 9:4.
)

// ID is the content of the PHY identifier registers.
type ID struct {
	IDR1, IDR2 uint16
}

// Model returns the vendor model number (PHYIDR2 bits 9:4).
func (id ID) Model() uint8 { return uint8(id.IDR2>>4) & 0x3f }

// Revision returns the silicon revision (PHYIDR2 bits 3:0).
func (id ID) Revision() uint8 { return uint8(id.IDR2) & 0xf }

// IsDP83826 reports whether the identifier matches a DP83826.
func (id ID) IsDP83826() bool { return id.IDR1 == OUIMSB && id.Model() == ModelNumber }

var regNames = [phy.NumRegisters]string{
	RegBMCR: "BMCR", RegBMSR: "BMSR", RegPHYIDR1: "PHYIDR1", RegPHYIDR2: "PHYIDR2",
	RegANAR: "ANAR", RegANLPAR: "ANLPAR", RegANER: "ANER", RegANNPTR: "ANNPTR",
	RegANLNPTR: "ANLNPTR", RegCR1: "CR1", RegCR2: "CR2", RegCR3: "CR3",
	RegREGCR: "REGCR", RegADDAR: "ADDAR", RegFLDS: "FLDS", RegPHYSTS: "PHYSTS",
	RegPHYSCR: "PHYSCR", RegMISR1: "MISR1", RegMISR2: "MISR2", RegFCSCR: "FCSCR",
	RegRECR: "RECR", RegBISCR: "BISCR", RegRCSR: "RCSR", RegLEDCR: "LEDCR",
	RegPHYCR: "PHYCR", Reg10BTSCR: "10BTSCR", RegBICSR1: "BICSR1", RegBICSR2: "BICSR2",
	RegCDCR: "CDCR", RegPHYRCR: "PHYRCR",
}

// RegName returns the datasheet name of a register in the directly addressed
// range, or an empty string for reserved and out of range addresses.
func RegName(reg uint8) string {
	if int(reg) >= len(regNames) {
		return ""
	}
	return regNames[reg]
}
