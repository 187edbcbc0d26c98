//go:build linux

// Package mdiolinux accesses the MDIO bus behind a Linux network interface
// through the kernel's MII ioctls.
package mdiolinux

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/soypat/ethphy/phy"
)

// MII ioctl requests from linux/sockios.h.
const (
	siocgmiiphy = 0x8947
	siocgmiireg = 0x8948
	siocsmiireg = 0x8949
)

var _ phy.MDIOBus = (*Bus)(nil)

// Bus is a Clause 22 MDIO bus reached through the driver of a network interface.
// Access usually requires CAP_NET_ADMIN.
type Bus struct {
	mu      sync.Mutex
	sock    int
	open    bool
	name    string
	phyAddr uint8
}

// Open opens the management bus of the named interface and queries the
// address of the PHY attached to it.
func Open(ifname string) (*Bus, error) {
	ifr, err := makeifreq(ifname)
	if err != nil {
		return nil, err
	}
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.IPPROTO_IP)
	if err != nil {
		return nil, fmt.Errorf("mdiolinux: socket: %w", err)
	}
	err = ioctl(sock, siocgmiiphy, &ifr)
	if err != nil {
		unix.Close(sock)
		return nil, fmt.Errorf("mdiolinux: %s: %w", ifname, err)
	}
	return &Bus{sock: sock, open: true, name: ifname, phyAddr: uint8(ifr.mii.phyID)}, nil
}

// Name returns the interface name the bus was opened on.
func (b *Bus) Name() string { return b.name }

// PHYAddr returns the address the kernel driver reports for the attached PHY.
func (b *Bus) PHYAddr() uint8 { return b.phyAddr }

// Read implements phy.MDIOBus. Only Clause 22 (devAddr 0) is supported.
func (b *Bus) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if devAddr != 0 {
		return 0xffff, phy.ErrUnsupported
	}
	ifr, err := makeifreq(b.name)
	if err != nil {
		return 0xffff, err
	}
	ifr.mii.phyID = uint16(phyAddr)
	ifr.mii.regNum = regAddr
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return 0xffff, os.ErrClosed
	}
	err = ioctl(b.sock, siocgmiireg, &ifr)
	if err != nil {
		return 0xffff, err
	}
	return ifr.mii.valOut, nil
}

// Write implements phy.MDIOBus. Only Clause 22 (devAddr 0) is supported.
func (b *Bus) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if devAddr != 0 {
		return phy.ErrUnsupported
	}
	ifr, err := makeifreq(b.name)
	if err != nil {
		return err
	}
	ifr.mii.phyID = uint16(phyAddr)
	ifr.mii.regNum = regAddr
	ifr.mii.valIn = value
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return os.ErrClosed
	}
	return ioctl(b.sock, siocsmiireg, &ifr)
}

// Close releases the socket. Calling Close more than once is not an error.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	b.open = false
	return unix.Close(b.sock)
}

type miiData struct {
	phyID  uint16
	regNum uint16
	valIn  uint16
	valOut uint16
}

type ifreq struct {
	name [unix.IFNAMSIZ]byte
	mii  miiData
	_    [16]byte // rest of the ifr_ifru union.
}

func makeifreq(name string) (ifr ifreq, err error) {
	if name == "" {
		return ifr, errors.New("mdiolinux: empty interface name")
	}
	if len(name) >= unix.IFNAMSIZ {
		return ifr, errors.New("mdiolinux: interface name too long")
	}
	copy(ifr.name[:], name)
	return ifr, nil
}

func ioctl(fd int, request uintptr, ifr *ifreq) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(unsafe.Pointer(ifr)))
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}
