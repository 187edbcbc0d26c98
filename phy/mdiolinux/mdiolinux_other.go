//go:build !linux

package mdiolinux

import (
	"github.com/soypat/ethphy/phy"
)

// Bus is unavailable outside Linux. Every operation returns phy.ErrUnsupported.
type Bus struct{}

func Open(ifname string) (*Bus, error) { return nil, phy.ErrUnsupported }

func (b *Bus) Name() string   { return "" }
func (b *Bus) PHYAddr() uint8 { return 0 }
func (b *Bus) Close() error   { return nil }

func (b *Bus) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	return 0xffff, phy.ErrUnsupported
}

func (b *Bus) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	return phy.ErrUnsupported
}
