package nic

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/ethphy/internal"
	"github.com/soypat/ethphy/phy"
)

// DefaultTickInterval is the period at which Run calls the PHY driver's Tick.
const DefaultTickInterval = 100 * time.Millisecond

var (
	errNoNIC = errors.New("nic: missing NIC driver")
	errNoPHY = errors.New("nic: missing PHY driver")
)

// Config configures an [Interface].
type Config struct {
	// Name identifies the interface in logs.
	Name string
	// PHYAddr is the PHY address on the management bus. Values outside 0..31
	// are replaced by the PHY driver's default address during PHY Init.
	PHYAddr uint8
	// SMI is an optional dedicated management bus. If nil register access goes
	// through NIC.
	SMI SMIDriver
	// NIC is the MAC driver. Required.
	NIC NICDriver
	// ExtInt is an optional interrupt line connected to the PHY interrupt output.
	// Its presence selects interrupt driven operation over polling.
	ExtInt ExtIntDriver
	// PHY is the transceiver driver. Required.
	PHY PHYDriver
	// OnLinkChange is called from the Run goroutine on every link change event.
	OnLinkChange func(iface *Interface, link Link)
	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration
	Logger       *slog.Logger
}

// Interface is the network interface context shared between the host and a PHY driver.
// Methods that mutate link state must only be called from the goroutine running
// Run (or, before Run is started, from the goroutine that configured the interface).
// Link, LinkState, SetPHYEvent and PHYEventPending are safe for concurrent use.
type Interface struct {
	name    string
	phyAddr uint8
	smi     SMIDriver
	nic     NICDriver
	extInt  ExtIntDriver
	phy     PHYDriver
	// mdio is the register accessor chosen at Configure: SMI if present, else NIC.
	mdio         phy.MDIOBus
	onLinkChange func(*Interface, Link)
	tick         time.Duration
	log          *slog.Logger

	mu   sync.Mutex
	link Link

	phyEvent atomic.Bool
	event    chan struct{}
}

// Configure resets the interface and binds it to the drivers in cfg.
// Configure does not touch hardware; see Up.
func (iface *Interface) Configure(cfg Config) error {
	if cfg.NIC == nil {
		return errNoNIC
	} else if cfg.PHY == nil {
		return errNoPHY
	} else if cfg.TickInterval < 0 {
		return phy.ErrInvalidConfig
	}
	tick := cfg.TickInterval
	if tick == 0 {
		tick = DefaultTickInterval
	}
	var bus PHYBus = cfg.NIC
	if cfg.SMI != nil {
		bus = cfg.SMI
	}
	event := iface.event
	if event == nil {
		event = make(chan struct{}, 1)
	}
	iface.mu.Lock()
	iface.link = Link{}
	iface.mu.Unlock()
	iface.phyEvent.Store(false)
	iface.name = cfg.Name
	iface.phyAddr = cfg.PHYAddr
	iface.smi = cfg.SMI
	iface.nic = cfg.NIC
	iface.extInt = cfg.ExtInt
	iface.phy = cfg.PHY
	iface.mdio = regAccessor{bus: bus}
	iface.onLinkChange = cfg.OnLinkChange
	iface.tick = tick
	iface.log = cfg.Logger
	iface.event = event
	return nil
}

func (iface *Interface) Name() string { return iface.name }

// Logger returns the interface logger, possibly nil.
func (iface *Interface) Logger() *slog.Logger { return iface.log }

// PHYAddr returns the configured PHY address.
func (iface *Interface) PHYAddr() uint8 { return iface.phyAddr }

// SetPHYAddr changes the PHY address. Used by PHY drivers to substitute a
// default for an out of range address.
func (iface *Interface) SetPHYAddr(addr uint8) { iface.phyAddr = addr }

// SMI returns the dedicated management bus driver or nil.
func (iface *Interface) SMI() SMIDriver { return iface.smi }

// NIC returns the MAC driver.
func (iface *Interface) NIC() NICDriver { return iface.nic }

// ExtInt returns the external interrupt line driver or nil when the PHY is polled.
func (iface *Interface) ExtInt() ExtIntDriver { return iface.extInt }

// PHY returns the transceiver driver.
func (iface *Interface) PHY() PHYDriver { return iface.phy }

// MDIO returns the register accessor selected at Configure.
func (iface *Interface) MDIO() phy.MDIOBus { return iface.mdio }

// PHYDevice returns a Clause 22 device handle for the configured PHY address
// over the register accessor. It fails with phy.ErrInvalidAddr if the address is out of range.
func (iface *Interface) PHYDevice() (dev phy.Device, err error) {
	if iface.mdio == nil {
		return dev, phy.ErrInvalidConfig
	}
	err = dev.ConfigureAs22(iface.mdio, iface.phyAddr)
	return dev, err
}

// Link returns a snapshot of the link state.
func (iface *Interface) Link() Link {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.link
}

// LinkState reports the last committed link presence.
func (iface *Interface) LinkState() bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.link.Up
}

// SetLinkUp commits an established link with its negotiated parameters.
func (iface *Interface) SetLinkUp(speed LinkSpeed, duplex DuplexMode) {
	iface.mu.Lock()
	iface.link = Link{Up: true, Speed: speed, Duplex: duplex}
	iface.mu.Unlock()
}

// SetLinkDown commits a link drop. Speed and duplex keep their stale values.
func (iface *Interface) SetLinkDown() {
	iface.mu.Lock()
	iface.link.Up = false
	iface.mu.Unlock()
}

// SetPHYEvent flags a pending PHY event and wakes the host. Safe to call from
// interrupt servicing goroutines.
func (iface *Interface) SetPHYEvent() {
	iface.phyEvent.Store(true)
	select {
	case iface.event <- struct{}{}:
	default:
		// A wakeup is already pending, or the interface is not configured yet.
	}
}

// PHYEventPending reports whether a PHY event awaits servicing.
func (iface *Interface) PHYEventPending() bool { return iface.phyEvent.Load() }

// Events returns the host event channel. A value is sent (without blocking)
// every time SetPHYEvent is called.
func (iface *Interface) Events() <-chan struct{} { return iface.event }

// UpdateMACConfig propagates the current link parameters to the MAC.
func (iface *Interface) UpdateMACConfig() error {
	err := iface.nic.UpdateMACConfig(iface)
	if err != nil {
		iface.logerr("nic:update-mac-config", internal.SlogErr(err))
	}
	return err
}

// NotifyLinkChange reports the current link state to the host.
// It is called for every link change interrupt even if link presence did not flip.
func (iface *Interface) NotifyLinkChange() {
	link := iface.Link()
	if link.Up {
		iface.info("nic:link-up",
			slog.String("iface", iface.name),
			slog.String("speed", link.Speed.String()),
			slog.String("duplex", link.Duplex.String()),
		)
	} else {
		iface.info("nic:link-down", slog.String("iface", iface.name))
	}
	if iface.onLinkChange != nil {
		iface.onLinkChange(iface, link)
	}
}

// Up initializes the PHY and enables its interrupts.
func (iface *Interface) Up(ctx context.Context) error {
	if iface.phy == nil {
		return errNoPHY
	}
	iface.debug("nic:up", slog.String("iface", iface.name), internal.SlogUint8("phyaddr", iface.phyAddr))
	err := iface.phy.Init(ctx, iface)
	if err != nil {
		return err
	}
	iface.phy.EnableIRQ(iface)
	return nil
}

// ServicePHYEvent consumes a pending PHY event, if any, and runs the PHY
// driver's event handler with PHY interrupts disabled. It returns true if an
// event was serviced.
func (iface *Interface) ServicePHYEvent() (bool, error) {
	if !iface.phyEvent.CompareAndSwap(true, false) {
		return false, nil
	}
	iface.trace("nic:phy-event", slog.String("iface", iface.name))
	iface.phy.DisableIRQ(iface)
	err := iface.phy.EventHandler(iface)
	iface.phy.EnableIRQ(iface)
	return true, err
}

// Run services the interface until ctx is done: it calls the PHY driver's Tick
// every tick interval and dispatches PHY events as they are signaled. Errors
// returned by the PHY driver are logged and do not stop Run.
// Run returns ctx.Err().
func (iface *Interface) Run(ctx context.Context) error {
	if iface.phy == nil {
		return errNoPHY
	}
	ticker := time.NewTicker(iface.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := iface.phy.Tick(iface); err != nil {
				iface.logerr("nic:phy-tick", slog.String("iface", iface.name), internal.SlogErr(err))
			}
		case <-iface.event:
		}
		if _, err := iface.ServicePHYEvent(); err != nil {
			iface.logerr("nic:phy-event", slog.String("iface", iface.name), internal.SlogErr(err))
		}
	}
}
