// Package phy implements IEEE 802.3 Clause 22 management of Ethernet PHYs
// over an MDIO bus: register access, software reset and auto-negotiation.
package phy

import (
	"context"
	"time"
)

// DefaultResetTimeout is the time IEEE 802.3 gives a PHY to finish a software reset.
const DefaultResetTimeout = 500 * time.Millisecond

// resetPolls is how many times BMCR is read while waiting for reset.
const resetPolls = 50

// maxAddr is the highest Clause 22 PHY address.
const maxAddr = 31

// FindClause22PHYs reads BMSR at every address on the bus and stores the
// addresses that answer in dst, which must hold 32 entries. A floating bus reads
// all ones and a shorted one all zeros, neither is a valid BMSR.
// ErrNoPHY is returned if nothing answers.
func FindClause22PHYs(mdio MDIOBus, dst []uint8) (n int, err error) {
	if len(dst) <= maxAddr {
		return -1, ErrShortBuffer
	}
	for addr := uint8(0); addr <= maxAddr; addr++ {
		v, err := mdio.Read(addr, 0, AddrBMSR)
		if err != nil || v == 0xffff || v == 0 {
			continue
		}
		dst[n] = addr
		n++
	}
	if n == 0 {
		return 0, ErrNoPHY
	}
	return n, nil
}

// Device is a Clause 22 PHY at a fixed address on an MDIO bus.
// Register access errors are returned as *[BusError].
type Device struct {
	mdio MDIOBus
	addr uint8
}

// ConfigureAs22 binds d to the PHY at phyAddr on mdio. The PHY is not accessed.
func (d *Device) ConfigureAs22(mdio MDIOBus, phyAddr uint8) error {
	if phyAddr > maxAddr {
		return ErrInvalidAddr
	} else if mdio == nil {
		return ErrInvalidConfig
	}
	*d = Device{mdio: mdio, addr: phyAddr}
	return nil
}

// PHYAddr returns the address d was configured with.
func (d *Device) PHYAddr() uint8 { return d.addr }

// ReadReg reads register reg. reg is not range checked.
func (d *Device) ReadReg(reg uint16) (uint16, error) {
	v, err := d.mdio.Read(d.addr, 0, reg)
	if err != nil {
		return v, &BusError{Op: "read", PHYAddr: d.addr, Reg: reg, Err: err}
	}
	return v, nil
}

// WriteReg writes value to register reg. reg is not range checked.
func (d *Device) WriteReg(reg, value uint16) error {
	err := d.mdio.Write(d.addr, 0, reg, value)
	if err != nil {
		return &BusError{Op: "write", PHYAddr: d.addr, Reg: reg, Err: err}
	}
	return nil
}

func (d *Device) BasicControl() (BMCR, error) {
	v, err := d.ReadReg(AddrBMCR)
	return BMCR(v), err
}

func (d *Device) BasicStatus() (BMSR, error) {
	v, err := d.ReadReg(AddrBMSR)
	return BMSR(v), err
}

// ID returns the PHY identifier registers.
func (d *Device) ID() (id1, id2 uint16, err error) {
	if id1, err = d.ReadReg(AddrPHYID1); err != nil {
		return 0, 0, err
	}
	id2, err = d.ReadReg(AddrPHYID2)
	return id1, id2, err
}

// ResetPHY sets BMCR.RESET and waits for the PHY to clear it.
// BMCR is read a fixed number of times spread over timeout, DefaultResetTimeout
// if timeout<=0. A read error does not end the wait but is returned if the final
// read also fails. Returns ErrResetTimeout if the bit stays set, ctx.Err() if
// ctx ends first.
func (d *Device) ResetPHY(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultResetTimeout
	}
	if err := d.WriteReg(AddrBMCR, uint16(BMCRReset)); err != nil {
		return err
	}
	interval := timeout / resetPolls
	var lastErr error
	for i := 0; i < resetPolls; i++ {
		ctl, err := d.BasicControl()
		if err == nil && ctl&BMCRReset == 0 {
			return nil
		}
		lastErr = err
		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrResetTimeout
}

// Abilities returns the technologies the PHY supports according to BMSR.
func (d *Device) Abilities() (ANAR, error) {
	s, err := d.BasicStatus()
	if err != nil {
		return 0, err
	}
	return s.Abilities(), nil
}

func (d *Device) Advertisement() (ANAR, error) {
	v, err := d.ReadReg(AddrANAR)
	return ANAR(v), err
}

// SetAdvertisement writes ANAR. ad must carry the IEEE 802.3 selector, see NewANAR.
// Auto-negotiation is not restarted.
func (d *Device) SetAdvertisement(ad ANAR) error {
	if ad&ANARSelector != ANARSelector8023 {
		return ErrInvalidConfig
	}
	return d.WriteReg(AddrANAR, uint16(ad))
}

// LinkPartnerAdvertisement reads ANLPAR.
func (d *Device) LinkPartnerAdvertisement() (ANAR, error) {
	v, err := d.ReadReg(AddrANLPAR)
	return ANAR(v), err
}

// RestartAutoNeg enables auto-negotiation, restarting it if it was running.
func (d *Device) RestartAutoNeg() error {
	ctl, err := d.BasicControl()
	if err != nil {
		return err
	}
	return d.WriteReg(AddrBMCR, uint16(ctl|BMCRANEnable|BMCRANRestart))
}

func (d *Device) IsLinkUp() (bool, error) {
	s, err := d.BasicStatus()
	return err == nil && s.LinkUp(), err
}

// WaitForLink polls BMSR until the link is up, and auto-negotiation complete
// if it is enabled. It returns false and no error when ctx ends first.
// An isolated or powered down PHY fails immediately.
func (d *Device) WaitForLink(ctx context.Context) (bool, error) {
	const pollInterval = 50 * time.Millisecond
	ctl, err := d.BasicControl()
	switch {
	case err != nil:
		return false, err
	case ctl&BMCRIsolate != 0:
		return false, ErrIsolated
	case ctl&BMCRPowerDown != 0:
		return false, ErrPoweredDown
	}
	needAN := ctl&BMCRANEnable != 0
	// Discard the latched value.
	if _, err = d.BasicStatus(); err != nil {
		return false, err
	}
	for {
		s, err := d.BasicStatus()
		if err != nil {
			return false, err
		}
		if s.LinkUp() && (!needAN || s.AutoNegotiationComplete()) {
			return true, nil
		}
		if sleepCtx(ctx, pollInterval) != nil {
			return false, nil
		}
	}
}

// NegotiatedLink resolves the link mode from our advertisement and the link
// partner's. Returns ErrANIncomplete before auto-negotiation finished.
func (d *Device) NegotiatedLink() (LinkMode, error) {
	s, err := d.BasicStatus()
	if err != nil {
		return LinkDown, err
	} else if !s.AutoNegotiationComplete() {
		return LinkDown, ErrANIncomplete
	}
	local, err := d.Advertisement()
	if err != nil {
		return LinkDown, err
	}
	partner, err := d.LinkPartnerAdvertisement()
	if err != nil {
		return LinkDown, err
	}
	return (local & partner).LinkMode(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
