package phy

import (
	"errors"
	"strconv"
)

var (
	// ErrResetTimeout is returned when the PHY does not clear BMCR.RESET within the reset timeout.
	ErrResetTimeout = errors.New("phy: reset timeout")
	// ErrInvalidAddr is returned for PHY addresses outside of the Clause 22 range 0..31.
	ErrInvalidAddr = errors.New("phy: invalid PHY address")
	// ErrInvalidConfig is returned when a device is configured with missing or invalid parameters.
	ErrInvalidConfig = errors.New("phy: invalid configuration")
	// ErrUnsupported is returned for operations the PHY or bus cannot perform.
	ErrUnsupported = errors.New("phy: unsupported")
	// ErrShortBuffer is returned when a destination buffer cannot hold the result.
	ErrShortBuffer = errors.New("phy: short buffer")
	// ErrNoPHY is returned by bus scans that find no PHY.
	ErrNoPHY = errors.New("phy: no PHY found")
	// ErrIsolated and ErrPoweredDown are returned when waiting for a link that cannot come up.
	ErrIsolated    = errors.New("phy: isolated from MII")
	ErrPoweredDown = errors.New("phy: powered down")
	// ErrANIncomplete is returned when negotiated parameters are requested before auto-negotiation finished.
	ErrANIncomplete = errors.New("phy: auto-negotiation not complete")
)

// BusError is a failed MDIO transaction. It is the error kind returned by
// [Device] register access so callers can tell bus faults apart from
// device level conditions such as [ErrResetTimeout].
type BusError struct {
	Op      string // "read" or "write".
	PHYAddr uint8
	Reg     uint16
	Err     error
}

func (e *BusError) Error() string {
	return "phy: mdio " + e.Op + " phy=" + strconv.Itoa(int(e.PHYAddr)) +
		" reg=" + strconv.Itoa(int(e.Reg)) + ": " + e.Err.Error()
}

func (e *BusError) Unwrap() error { return e.Err }
