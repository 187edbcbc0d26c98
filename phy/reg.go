package phy

// Clause 22 register addresses. 0x00..0x0F are defined by IEEE 802.3,
// 0x10..0x1F belong to the vendor.
const (
	AddrBMCR   = 0x00 // Basic Mode Control.
	AddrBMSR   = 0x01 // Basic Mode Status.
	AddrPHYID1 = 0x02 // Identifier 1, OUI bits 3..18.
	AddrPHYID2 = 0x03 // Identifier 2, OUI bits 19..24, model and revision.
	AddrANAR   = 0x04 // Auto-Negotiation Advertisement.
	AddrANLPAR = 0x05 // Auto-Negotiation Link Partner Ability.

	// NumRegisters is the number of directly addressable registers.
	NumRegisters = 32
)

// BMCR is the Basic Mode Control Register (IEEE 802.3 22.2.4.1).
type BMCR uint16

const (
	BMCRCollision  BMCR = 1 << 7  // Collision test.
	BMCRFullDuplex BMCR = 1 << 8  // Forced full duplex when auto-negotiation is off.
	BMCRANRestart  BMCR = 1 << 9  // Restart auto-negotiation, self clearing.
	BMCRIsolate    BMCR = 1 << 10 // Electrically isolate the PHY from the MII.
	BMCRPowerDown  BMCR = 1 << 11
	BMCRANEnable   BMCR = 1 << 12
	BMCRSpeed100   BMCR = 1 << 13 // Forced 100Mbps when auto-negotiation is off.
	BMCRLoopback   BMCR = 1 << 14
	BMCRReset      BMCR = 1 << 15 // Software reset, self clearing.
)

// BMSR is the Basic Mode Status Register (IEEE 802.3 22.2.4.2).
type BMSR uint16

const (
	BMSRExtCap      BMSR = 1 << 0
	BMSRJabber      BMSR = 1 << 1
	BMSRLinkStatus  BMSR = 1 << 2 // Latched low.
	BMSRANCap       BMSR = 1 << 3
	BMSRRemoteFault BMSR = 1 << 4
	BMSRANComplete  BMSR = 1 << 5
	BMSRNoPreamble  BMSR = 1 << 6 // Management frames accepted without preamble.
	BMSR10Half      BMSR = 1 << 11
	BMSR10Full      BMSR = 1 << 12
	BMSR100Half     BMSR = 1 << 13
	BMSR100Full     BMSR = 1 << 14
	BMSR100T4       BMSR = 1 << 15
)

// LinkUp reports the link status bit. The bit latches low, so the first read
// after a drop reports the drop even if the link already recovered.
func (s BMSR) LinkUp() bool { return s&BMSRLinkStatus != 0 }

// AutoNegotiationComplete reports whether auto-negotiation has finished.
func (s BMSR) AutoNegotiationComplete() bool { return s&BMSRANComplete != 0 }

// Abilities returns the technologies the PHY reports it supports, encoded as
// advertisement bits with the IEEE 802.3 selector.
func (s BMSR) Abilities() ANAR {
	a := NewANAR()
	for _, m := range [...]struct {
		bmsr BMSR
		anar ANAR
	}{
		{BMSR10Half, ANAR10Half},
		{BMSR10Full, ANAR10Full},
		{BMSR100Half, ANAR100Half},
		{BMSR100Full, ANAR100Full},
		{BMSR100T4, ANAR100T4},
	} {
		if s&m.bmsr != 0 {
			a |= m.anar
		}
	}
	return a
}

// ANAR is the Auto-Negotiation Advertisement Register (IEEE 802.3 28.2.4.1).
// The link partner ability register (ANLPAR) uses the same layout.
type ANAR uint16

const (
	ANARSelector     ANAR = 0x1f // Selector field mask.
	ANARSelector8023 ANAR = 0x01 // IEEE 802.3 selector, must be present in every advertisement.
	ANAR10Half       ANAR = 1 << 5
	ANAR10Full       ANAR = 1 << 6
	ANAR100Half      ANAR = 1 << 7
	ANAR100Full      ANAR = 1 << 8
	ANAR100T4        ANAR = 1 << 9
	ANARPause        ANAR = 1 << 10
	ANARPauseAsym    ANAR = 1 << 11
	ANARRemoteFault  ANAR = 1 << 13
	ANARAck          ANAR = 1 << 14 // Only meaningful in ANLPAR.
	ANARNextPage     ANAR = 1 << 15

	ANARPauseMask = ANARPause | ANARPauseAsym
)

// NewANAR returns an empty advertisement carrying the IEEE 802.3 selector.
func NewANAR() ANAR {
	return ANARSelector8023
}

// WithPause returns a with the pause bits replaced: symmetric sets PAUSE,
// asymmetric sets ASM_DIR.
func (a ANAR) WithPause(symmetric, asymmetric bool) ANAR {
	a &^= ANARPauseMask
	if symmetric {
		a |= ANARPause
	}
	if asymmetric {
		a |= ANARPauseAsym
	}
	return a
}

// LinkMode returns the best technology in a following the IEEE 802.3
// Annex 28B.3 priority order, or LinkDown if none is set.
func (a ANAR) LinkMode() LinkMode {
	modes := a.Modes()
	if len(modes) == 0 {
		return LinkDown
	}
	return modes[0]
}

// Modes lists the technologies set in a from highest to lowest priority.
func (a ANAR) Modes() []LinkMode {
	var modes []LinkMode
	for _, lm := range priority {
		if a&lm.ANAR() != 0 {
			modes = append(modes, lm)
		}
	}
	return modes
}

// priority is the Annex 28B.3 resolution order of the 10/100 technologies.
var priority = [...]LinkMode{Link100FDX, Link100T4, Link100HDX, Link10FDX, Link10HDX}
