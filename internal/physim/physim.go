// Package physim simulates a DP83826 register file behind a management bus.
// Every transaction is recorded so tests can assert on the exact sequence of
// register accesses a driver issues.
package physim

import (
	"errors"
	"sync"
	"time"

	"github.com/soypat/ethphy/dp83826"
	"github.com/soypat/ethphy/nic"
	"github.com/soypat/ethphy/phy"
)

var _ phy.MDIOBus = (*PHY)(nil)

// Op is a recorded bus transaction.
type Op struct {
	Write   bool
	Via     string // "mdio" for direct bus access, "nic" when issued through the NIC driver.
	PHYAddr uint8
	Reg     uint16
	Value   uint16
}

// Defaults after power on or software reset.
const (
	resetBMCR = 0x3100 // 100Mbps, AN enabled, full duplex.
	resetBMSR = 0x7849 // 10/100 capable, AN capable, extended capability.
	resetIDR2 = 0xA130
	resetANAR = 0x01E1
)

// DefaultLinkUpDelay is how long the link takes to come back after a software
// reset when the wire is up.
const DefaultLinkUpDelay = 10 * time.Millisecond

// PHY is a simulated DP83826. The zero value is not ready for use, see New.
type PHY struct {
	mu   sync.Mutex
	addr uint8
	regs [phy.NumRegisters]uint16
	ops  []Op
	// resetReads is the number of BMCR reads that still report reset in progress.
	resetReads int
	// ResetDelay is the number of BMCR reads after a reset during which the reset bit stays set.
	ResetDelay int
	// StuckInReset keeps BMCR.RESET set forever.
	StuckInReset bool
	readErr      map[int]error
	// Wire state, survives software reset.
	linkUp, tenMbps, halfDuplex bool
	// LinkUpDelay is the time after a software reset during which an up wire
	// reports link down. When it elapses the next register read sees the link
	// up and MISR1.LINK_INT latched. Defaults to DefaultLinkUpDelay.
	LinkUpDelay time.Duration
	relinkAt    time.Time
	// OnInterrupt, if set, is called when a link change is latched while
	// interrupts are enabled in PHYSCR and MISR1. Called without locks held.
	OnInterrupt func()
}

// New returns a simulated PHY answering at addr with link down.
func New(addr uint8) *PHY {
	p := &PHY{addr: addr, LinkUpDelay: DefaultLinkUpDelay}
	p.powerOn()
	return p
}

func (p *PHY) powerOn() {
	p.regs = [phy.NumRegisters]uint16{}
	p.regs[dp83826.RegBMCR] = resetBMCR
	p.regs[dp83826.RegBMSR] = resetBMSR
	p.regs[dp83826.RegPHYIDR1] = dp83826.OUIMSB
	p.regs[dp83826.RegPHYIDR2] = resetIDR2
	p.regs[dp83826.RegANAR] = resetANAR
}

// Addr returns the bus address the PHY answers at.
func (p *PHY) Addr() uint8 { return p.addr }

// SetReadError makes reads of reg fail with err. reg<0 fails all reads. A nil err clears.
func (p *PHY) SetReadError(reg int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr == nil {
		p.readErr = make(map[int]error)
	}
	if err == nil {
		delete(p.readErr, reg)
	} else {
		p.readErr[reg] = err
	}
}

// Poke sets a register value without recording a transaction.
func (p *PHY) Poke(reg uint8, v uint16) {
	p.mu.Lock()
	p.regs[reg&0x1f] = v
	p.mu.Unlock()
}

// Peek returns a register value without recording a transaction or triggering read side effects.
func (p *PHY) Peek(reg uint8) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[reg&0x1f]
}

// Ops returns a copy of the recorded transactions.
func (p *PHY) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Op(nil), p.ops...)
}

// ClearOps discards recorded transactions.
func (p *PHY) ClearOps() {
	p.mu.Lock()
	p.ops = p.ops[:0]
	p.mu.Unlock()
}

// Writes returns the recorded writes to reg.
func (p *PHY) Writes(reg uint16) (vals []uint16) {
	for _, op := range p.Ops() {
		if op.Write && op.Reg == reg {
			vals = append(vals, op.Value)
		}
	}
	return vals
}

// SetLink changes the wire state. It updates BMSR and PHYSTS, latches
// MISR1.LINK_INT and raises OnInterrupt if interrupts are enabled.
// tenMbps and halfDuplex select the status bits reported in PHYSTS.
func (p *PHY) SetLink(up, tenMbps, halfDuplex bool) {
	p.mu.Lock()
	p.linkUp, p.tenMbps, p.halfDuplex = up, tenMbps, halfDuplex
	p.relinkAt = time.Time{}
	p.applyLink()
	p.regs[dp83826.RegMISR1] |= uint16(dp83826.MISR1LinkInt)
	fire := p.irqEnabled() && p.OnInterrupt != nil
	cb := p.OnInterrupt
	p.mu.Unlock()
	if fire {
		cb()
	}
}

// linkEstablished reports whether the wire is up and no reset is pending on it.
func (p *PHY) linkEstablished() bool { return p.linkUp && p.relinkAt.IsZero() }

func (p *PHY) applyLink() {
	bmsr := p.regs[dp83826.RegBMSR] &^ uint16(phy.BMSRLinkStatus|phy.BMSRANComplete)
	var physts dp83826.PHYSTS
	if p.linkEstablished() {
		bmsr |= uint16(phy.BMSRLinkStatus | phy.BMSRANComplete)
		physts |= dp83826.PHYSTSLinkStatus | dp83826.PHYSTSANComplete
		if p.tenMbps {
			physts |= dp83826.PHYSTSSpeedStatus
		}
		if p.halfDuplex {
			physts |= dp83826.PHYSTSDuplexStatus
		}
	}
	p.regs[dp83826.RegBMSR] = bmsr
	p.regs[dp83826.RegPHYSTS] = uint16(physts)
	p.regs[dp83826.RegANLPAR] = uint16(p.partnerAbility())
}

// partnerAbility is the link partner page matching the wire state.
func (p *PHY) partnerAbility() phy.ANAR {
	if !p.linkEstablished() {
		return 0
	}
	lm := phy.Link100FDX
	switch {
	case p.tenMbps && p.halfDuplex:
		lm = phy.Link10HDX
	case p.tenMbps:
		lm = phy.Link10FDX
	case p.halfDuplex:
		lm = phy.Link100HDX
	}
	return phy.NewANAR() | lm.ANAR()
}

// relink brings the link back once LinkUpDelay elapsed after a reset and
// reports whether an interrupt must be raised.
func (p *PHY) relink() (fire bool) {
	if p.relinkAt.IsZero() || time.Now().Before(p.relinkAt) {
		return false
	}
	p.relinkAt = time.Time{}
	p.applyLink()
	p.regs[dp83826.RegMISR1] |= uint16(dp83826.MISR1LinkInt)
	return p.irqEnabled() && p.OnInterrupt != nil
}

func (p *PHY) irqEnabled() bool {
	scr := dp83826.PHYSCR(p.regs[dp83826.RegPHYSCR])
	misr := dp83826.MISR1(p.regs[dp83826.RegMISR1])
	return scr&dp83826.PHYSCRIntEn != 0 && misr&dp83826.MISR1LinkIntEn != 0
}

// Read implements phy.MDIOBus. Addresses other than the PHY's read as 0xffff like an empty bus.
func (p *PHY) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	return p.read("mdio", phyAddr, devAddr, regAddr)
}

// Write implements phy.MDIOBus.
func (p *PHY) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	return p.write("mdio", phyAddr, devAddr, regAddr, value)
}

func (p *PHY) read(via string, phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	p.mu.Lock()
	fire := p.relink()
	cb := p.OnInterrupt
	v, err := p.readLocked(via, phyAddr, devAddr, regAddr)
	p.mu.Unlock()
	if fire {
		cb()
	}
	return v, err
}

func (p *PHY) readLocked(via string, phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	p.ops = append(p.ops, Op{Via: via, PHYAddr: phyAddr, Reg: regAddr})
	if devAddr != 0 {
		return 0xffff, phy.ErrUnsupported
	}
	if err := p.readErr[-1]; err != nil {
		return 0xffff, err
	} else if err = p.readErr[int(regAddr)]; err != nil {
		return 0xffff, err
	}
	if phyAddr != p.addr || regAddr >= phy.NumRegisters {
		return 0xffff, nil
	}
	v := p.regs[regAddr]
	switch regAddr {
	case dp83826.RegBMCR:
		if p.StuckInReset {
			v |= uint16(phy.BMCRReset)
		} else if p.resetReads > 0 {
			p.resetReads--
			v |= uint16(phy.BMCRReset)
		}
	case dp83826.RegMISR1, dp83826.RegMISR2:
		// Interrupt status bits clear on read.
		p.regs[regAddr] &= 0x00ff
	}
	return v, nil
}

func (p *PHY) write(via string, phyAddr, devAddr uint8, regAddr, value uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, Op{Write: true, Via: via, PHYAddr: phyAddr, Reg: regAddr, Value: value})
	if devAddr != 0 {
		return phy.ErrUnsupported
	}
	if phyAddr != p.addr || regAddr >= phy.NumRegisters {
		return nil
	}
	switch regAddr {
	case dp83826.RegBMCR:
		if value&uint16(phy.BMCRReset) != 0 {
			p.powerOn()
			if p.linkUp {
				// The link drops and renegotiates after reset.
				p.relinkAt = time.Now().Add(p.LinkUpDelay)
			}
			p.applyLink()
			p.resetReads = p.ResetDelay
			return nil
		}
		value &^= uint16(phy.BMCRANRestart) // self clearing.
	case dp83826.RegMISR1, dp83826.RegMISR2:
		// Only enable bits are writable.
		value = p.regs[regAddr]&0xff00 | value&0x00ff
	case dp83826.RegBMSR, dp83826.RegPHYIDR1, dp83826.RegPHYIDR2, dp83826.RegPHYSTS:
		return nil // read only.
	}
	p.regs[regAddr] = value
	return nil
}

// SMI returns the simulated PHY as a dedicated management bus driver.
func (p *PHY) SMI() *SMI {
	return &SMI{MDIOSMI: nic.MDIOSMI{Bus: p}}
}

// SMI is a nic.SMIDriver over the simulated PHY that counts Init calls.
type SMI struct {
	nic.MDIOSMI
	Inits int
}

func (s *SMI) Init() error {
	s.Inits++
	return s.MDIOSMI.Init()
}

// MACConfig is a recorded call to NIC.UpdateMACConfig.
type MACConfig struct {
	Link nic.Link
}

// NIC is a nic.NICDriver whose embedded management bus is the simulated PHY.
type NIC struct {
	PHY *PHY
	// UpdateErr is returned by UpdateMACConfig.
	UpdateErr error
	mu        sync.Mutex
	updates   []MACConfig
}

var _ nic.NICDriver = (*NIC)(nil)

// NewNIC returns a NIC with the simulated PHY on its management bus.
func NewNIC(p *PHY) *NIC { return &NIC{PHY: p} }

func (n *NIC) ReadPHYReg(op uint8, phyAddr, regAddr uint8) (uint16, error) {
	if op != phy.OpcodeRead {
		return 0xffff, errBadOpcode
	}
	return n.PHY.read("nic", phyAddr, 0, uint16(regAddr))
}

func (n *NIC) WritePHYReg(op uint8, phyAddr, regAddr uint8, data uint16) error {
	if op != phy.OpcodeWrite {
		return errBadOpcode
	}
	return n.PHY.write("nic", phyAddr, 0, uint16(regAddr), data)
}

func (n *NIC) UpdateMACConfig(iface *nic.Interface) error {
	n.mu.Lock()
	n.updates = append(n.updates, MACConfig{Link: iface.Link()})
	n.mu.Unlock()
	return n.UpdateErr
}

// MACUpdates returns the recorded UpdateMACConfig calls.
func (n *NIC) MACUpdates() []MACConfig {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]MACConfig(nil), n.updates...)
}

var errBadOpcode = errors.New("physim: bad SMI opcode")

// IRQLine is a nic.ExtIntDriver that counts calls. Fire raises a PHY event on
// Signal when enabled, otherwise the interrupt is held until EnableIRQ.
type IRQLine struct {
	Signal   func()
	mu       sync.Mutex
	Inits    int
	Enables  int
	Disables int
	enabled  bool
	pending  bool
}

var _ nic.ExtIntDriver = (*IRQLine)(nil)

func (l *IRQLine) Init() error {
	l.mu.Lock()
	l.Inits++
	l.mu.Unlock()
	return nil
}

func (l *IRQLine) EnableIRQ() {
	l.mu.Lock()
	l.Enables++
	l.enabled = true
	deliver := l.pending
	l.pending = false
	l.mu.Unlock()
	if deliver && l.Signal != nil {
		l.Signal()
	}
}

func (l *IRQLine) DisableIRQ() {
	l.mu.Lock()
	l.Disables++
	l.enabled = false
	l.mu.Unlock()
}

// Fire simulates an interrupt edge.
func (l *IRQLine) Fire() {
	l.mu.Lock()
	deliver := l.enabled
	if !deliver {
		l.pending = true
	}
	l.mu.Unlock()
	if deliver && l.Signal != nil {
		l.Signal()
	}
}

// Counts returns the number of Init, EnableIRQ and DisableIRQ calls.
func (l *IRQLine) Counts() (inits, enables, disables int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inits, l.Enables, l.Disables
}
