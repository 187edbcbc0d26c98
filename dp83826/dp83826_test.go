package dp83826_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soypat/ethphy/dp83826"
	"github.com/soypat/ethphy/internal/physim"
	"github.com/soypat/ethphy/nic"
	"github.com/soypat/ethphy/phy"
)

type fixture struct {
	sim     *physim.PHY
	mac     *physim.NIC
	smi     *physim.SMI
	irq     *physim.IRQLine
	drv     *dp83826.Driver
	iface   *nic.Interface
	changes []nic.Link
}

type fixtureOpts struct {
	simAddr   uint8
	ifaceAddr uint8
	withSMI   bool
	withIRQ   bool
	drvCfg    dp83826.Config
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	f := &fixture{
		sim:   physim.New(opts.simAddr),
		iface: &nic.Interface{},
	}
	f.mac = physim.NewNIC(f.sim)
	f.drv = dp83826.New(opts.drvCfg)
	cfg := nic.Config{
		Name:    "eth0",
		PHYAddr: opts.ifaceAddr,
		NIC:     f.mac,
		PHY:     f.drv,
		OnLinkChange: func(_ *nic.Interface, link nic.Link) {
			f.changes = append(f.changes, link)
		},
	}
	if opts.withSMI {
		f.smi = f.sim.SMI()
		cfg.SMI = f.smi
	}
	if opts.withIRQ {
		f.irq = &physim.IRQLine{Signal: f.iface.SetPHYEvent}
		cfg.ExtInt = f.irq
	}
	require.NoError(t, f.iface.Configure(cfg))
	return f
}

func signaled(iface *nic.Interface) bool {
	select {
	case <-iface.Events():
		return true
	default:
		return false
	}
}

func TestInitSubstitutesDefaultAddress(t *testing.T) {
	for _, addr := range []uint8{32, 33, 100, 255} {
		f := newFixture(t, fixtureOpts{simAddr: dp83826.DefaultPHYAddr, ifaceAddr: addr})
		require.NoError(t, f.drv.Init(context.Background(), f.iface))
		assert.EqualValues(t, dp83826.DefaultPHYAddr, f.iface.PHYAddr(), "addr %d", addr)
		for _, op := range f.sim.Ops() {
			assert.EqualValues(t, dp83826.DefaultPHYAddr, op.PHYAddr)
		}
	}
}

func TestInitKeepsValidAddress(t *testing.T) {
	f := newFixture(t, fixtureOpts{simAddr: 7, ifaceAddr: 7})
	require.NoError(t, f.drv.Init(context.Background(), f.iface))
	assert.EqualValues(t, 7, f.iface.PHYAddr())
}

func TestInitConfiguresInterruptsOnce(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	require.NoError(t, f.drv.Init(context.Background(), f.iface))

	assert.Equal(t, []uint16{uint16(dp83826.PHYSCRIntEn | dp83826.PHYSCRIntOE)}, f.sim.Writes(dp83826.RegPHYSCR))
	assert.Equal(t, []uint16{uint16(dp83826.MISR1LinkIntEn)}, f.sim.Writes(dp83826.RegMISR1))
	assert.Equal(t, []uint16{uint16(phy.BMCRReset)}, f.sim.Writes(dp83826.RegBMCR))
	assert.True(t, f.iface.PHYEventPending(), "init must request an initial link evaluation")
	assert.True(t, signaled(f.iface))
}

func TestInitWaitsForResetCompletion(t *testing.T) {
	f := newFixture(t, fixtureOpts{drvCfg: dp83826.Config{ResetTimeout: 50 * time.Millisecond}})
	f.sim.ResetDelay = 3
	require.NoError(t, f.drv.Init(context.Background(), f.iface))
	bmcrReads := 0
	for _, op := range f.sim.Ops() {
		if !op.Write && op.Reg == dp83826.RegBMCR {
			bmcrReads++
		}
	}
	// 3 reads with reset set, one clear, one more from the register dump.
	assert.Equal(t, 5, bmcrReads)
}

func TestInitResetTimeout(t *testing.T) {
	f := newFixture(t, fixtureOpts{drvCfg: dp83826.Config{ResetTimeout: 5 * time.Millisecond}})
	f.sim.StuckInReset = true
	start := time.Now()
	err := f.drv.Init(context.Background(), f.iface)
	require.ErrorIs(t, err, phy.ErrResetTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, f.sim.Writes(dp83826.RegPHYSCR), "no configuration after failed reset")
	assert.False(t, f.iface.PHYEventPending())
}

func TestInitResetCancelled(t *testing.T) {
	f := newFixture(t, fixtureOpts{drvCfg: dp83826.Config{ResetTimeout: time.Hour}})
	f.sim.StuckInReset = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := f.drv.Init(ctx, f.iface)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInitCallsCollaboratorInit(t *testing.T) {
	f := newFixture(t, fixtureOpts{withSMI: true, withIRQ: true})
	require.NoError(t, f.drv.Init(context.Background(), f.iface))
	assert.Equal(t, 1, f.smi.Inits)
	inits, enables, disables := f.irq.Counts()
	assert.Equal(t, 1, inits)
	assert.Zero(t, enables)
	assert.Zero(t, disables)
}

func TestInitAdvertisement(t *testing.T) {
	adv := phy.NewANAR() | phy.ANAR100Full | phy.ANAR10Full
	f := newFixture(t, fixtureOpts{drvCfg: dp83826.Config{Advertisement: adv}})
	require.NoError(t, f.drv.Init(context.Background(), f.iface))
	assert.Equal(t, []uint16{uint16(adv)}, f.sim.Writes(dp83826.RegANAR))
	bmcr := f.sim.Writes(dp83826.RegBMCR)
	require.Len(t, bmcr, 2)
	assert.NotZero(t, phy.BMCR(bmcr[1])&phy.BMCRANRestart)
}

func TestInitBadAdvertisement(t *testing.T) {
	f := newFixture(t, fixtureOpts{drvCfg: dp83826.Config{Advertisement: phy.ANAR100Full}})
	err := f.drv.Init(context.Background(), f.iface)
	require.ErrorIs(t, err, phy.ErrInvalidConfig)
}

func TestRegisterAccessRouting(t *testing.T) {
	t.Run("SMI", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{withSMI: true})
		require.NoError(t, f.drv.Init(context.Background(), f.iface))
		for _, op := range f.sim.Ops() {
			assert.Equal(t, "mdio", op.Via)
		}
	})
	t.Run("NICFallback", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		require.NoError(t, f.drv.Init(context.Background(), f.iface))
		ops := f.sim.Ops()
		require.NotEmpty(t, ops)
		for _, op := range ops {
			assert.Equal(t, "nic", op.Via)
		}
	})
}

func TestTickDetectsLinkUpWithoutCommit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetLink(true, false, false)

	require.NoError(t, f.drv.Tick(f.iface))
	assert.True(t, f.iface.PHYEventPending())
	assert.True(t, signaled(f.iface))
	// Polling only flags the transition; EventHandler commits it.
	assert.False(t, f.iface.LinkState())
	assert.Empty(t, f.changes)
	assert.Empty(t, f.mac.MACUpdates())
}

func TestTickDetectsLinkDown(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.iface.SetLinkUp(nic.LinkSpeed100Mbps, nic.FullDuplex)
	require.NoError(t, f.drv.Tick(f.iface))
	assert.True(t, f.iface.PHYEventPending())
	assert.True(t, f.iface.LinkState())
}

func TestTickNoTransition(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	require.NoError(t, f.drv.Tick(f.iface))
	assert.False(t, f.iface.PHYEventPending())
	assert.False(t, signaled(f.iface))

	ops := f.sim.Ops()
	require.Len(t, ops, 1)
	assert.EqualValues(t, dp83826.RegBMSR, ops[0].Reg)
}

func TestTickInactiveWithInterruptLine(t *testing.T) {
	f := newFixture(t, fixtureOpts{withIRQ: true})
	f.sim.SetLink(true, false, false)
	require.NoError(t, f.drv.Tick(f.iface))
	assert.Empty(t, f.sim.Ops())
	assert.False(t, f.iface.PHYEventPending())
}

func TestTickBusError(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetReadError(dp83826.RegBMSR, io.ErrUnexpectedEOF)
	err := f.drv.Tick(f.iface)
	var busErr *phy.BusError
	require.ErrorAs(t, err, &busErr)
	assert.EqualValues(t, dp83826.RegBMSR, busErr.Reg)
	assert.False(t, f.iface.PHYEventPending())
}

func TestEventHandlerLinkUp(t *testing.T) {
	tests := []struct {
		name       string
		tenMbps    bool
		halfDuplex bool
		speed      nic.LinkSpeed
		duplex     nic.DuplexMode
	}{
		{name: "100M-F", speed: nic.LinkSpeed100Mbps, duplex: nic.FullDuplex},
		{name: "100M-H", halfDuplex: true, speed: nic.LinkSpeed100Mbps, duplex: nic.HalfDuplex},
		{name: "10M-F", tenMbps: true, speed: nic.LinkSpeed10Mbps, duplex: nic.FullDuplex},
		{name: "10M-H", tenMbps: true, halfDuplex: true, speed: nic.LinkSpeed10Mbps, duplex: nic.HalfDuplex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{})
			f.sim.SetLink(true, tt.tenMbps, tt.halfDuplex)
			require.NoError(t, f.drv.EventHandler(f.iface))

			want := nic.Link{Up: true, Speed: tt.speed, Duplex: tt.duplex}
			assert.Equal(t, want, f.iface.Link())
			assert.Equal(t, []physim.MACConfig{{Link: want}}, f.mac.MACUpdates())
			assert.Equal(t, []nic.Link{want}, f.changes)
			assert.Equal(t, tt.name, want.LinkMode().String())
		})
	}
}

func TestEventHandlerLinkDown(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetLink(true, true, true)
	require.NoError(t, f.drv.EventHandler(f.iface))
	require.Len(t, f.mac.MACUpdates(), 1)

	f.sim.SetLink(false, false, false)
	require.NoError(t, f.drv.EventHandler(f.iface))
	link := f.iface.Link()
	assert.False(t, link.Up)
	// Speed and duplex are left as they were.
	assert.Equal(t, nic.LinkSpeed10Mbps, link.Speed)
	assert.Equal(t, nic.HalfDuplex, link.Duplex)
	assert.Len(t, f.mac.MACUpdates(), 1, "MAC must not be reconfigured on link down")
	require.Len(t, f.changes, 2)
	assert.False(t, f.changes[1].Up)
}

func TestEventHandlerLinkDownFromStart(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetLink(false, false, false)
	require.NoError(t, f.drv.EventHandler(f.iface))
	assert.False(t, f.iface.LinkState())
	assert.Empty(t, f.mac.MACUpdates())
	assert.Len(t, f.changes, 1)
}

func TestEventHandlerNotifiesRepeatedLinkInterrupts(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	for i := 0; i < 2; i++ {
		f.sim.SetLink(true, false, false)
		require.NoError(t, f.drv.EventHandler(f.iface))
	}
	// No deduplication: both interrupts are reported although link stayed up.
	assert.Len(t, f.changes, 2)
	assert.Len(t, f.mac.MACUpdates(), 2)
}

func TestEventHandlerWithoutLinkInterrupt(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	require.NoError(t, f.drv.EventHandler(f.iface))
	ops := f.sim.Ops()
	require.Len(t, ops, 1)
	assert.EqualValues(t, dp83826.RegMISR1, ops[0].Reg)
	assert.Empty(t, f.changes)
}

func TestEventHandlerAcknowledgesInterrupt(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetLink(true, false, false)
	require.NoError(t, f.drv.EventHandler(f.iface))
	assert.Zero(t, dp83826.MISR1(f.sim.Peek(dp83826.RegMISR1))&dp83826.MISR1LinkInt)
	require.NoError(t, f.drv.EventHandler(f.iface))
	assert.Len(t, f.changes, 1)
}

func TestEventHandlerBusError(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetLink(true, false, false)
	f.sim.SetReadError(dp83826.RegPHYSTS, io.EOF)
	err := f.drv.EventHandler(f.iface)
	require.ErrorIs(t, err, io.EOF)
	var busErr *phy.BusError
	require.True(t, errors.As(err, &busErr))
	assert.Equal(t, "read", busErr.Op)
	assert.EqualValues(t, dp83826.RegPHYSTS, busErr.Reg)
	assert.False(t, f.iface.LinkState())
	assert.Empty(t, f.changes)
}

func TestEventHandlerMACConfigError(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.mac.UpdateErr = errors.New("clock not ready")
	f.sim.SetLink(true, false, false)
	require.NoError(t, f.drv.EventHandler(f.iface))
	assert.True(t, f.iface.LinkState())
	assert.Len(t, f.changes, 1)
}

func TestPollingCommitsThroughEventHandler(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	require.NoError(t, f.drv.Init(context.Background(), f.iface))
	serviced, err := f.iface.ServicePHYEvent()
	require.NoError(t, err)
	assert.True(t, serviced)
	assert.False(t, f.iface.LinkState())

	f.sim.SetLink(true, false, false)
	require.NoError(t, f.drv.Tick(f.iface))
	serviced, err = f.iface.ServicePHYEvent()
	require.NoError(t, err)
	assert.True(t, serviced)
	assert.Equal(t, nic.Link{Up: true, Speed: nic.LinkSpeed100Mbps, Duplex: nic.FullDuplex}, f.iface.Link())

	// Link is committed, ticking again raises nothing.
	require.NoError(t, f.drv.Tick(f.iface))
	assert.False(t, f.iface.PHYEventPending())
}

func TestPollingNoCommitWithoutLinkInterrupt(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	// Link status without a latched LINK_INT, as after a reset that kept the link.
	f.sim.Poke(dp83826.RegBMSR, f.sim.Peek(dp83826.RegBMSR)|uint16(phy.BMSRLinkStatus))
	require.NoError(t, f.drv.Tick(f.iface))
	require.True(t, f.iface.PHYEventPending())

	serviced, err := f.iface.ServicePHYEvent()
	require.NoError(t, err)
	assert.True(t, serviced)
	assert.False(t, f.iface.LinkState())
	assert.Empty(t, f.changes)
	assert.Empty(t, f.mac.MACUpdates())
}

func TestPollingCommitsLinkUpBeforeInit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.LinkUpDelay = 20 * time.Millisecond
	f.sim.SetLink(true, false, false)
	require.NoError(t, f.drv.Init(context.Background(), f.iface))

	// Reset dropped the link; the initial evaluation sees it down.
	serviced, err := f.iface.ServicePHYEvent()
	require.NoError(t, err)
	assert.True(t, serviced)
	assert.False(t, f.iface.LinkState())

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, f.drv.Tick(f.iface))
	require.True(t, f.iface.PHYEventPending())
	serviced, err = f.iface.ServicePHYEvent()
	require.NoError(t, err)
	assert.True(t, serviced)
	want := nic.Link{Up: true, Speed: nic.LinkSpeed100Mbps, Duplex: nic.FullDuplex}
	assert.Equal(t, want, f.iface.Link())
	require.NotEmpty(t, f.changes)
	assert.Equal(t, want, f.changes[len(f.changes)-1])
	assert.Equal(t, []physim.MACConfig{{Link: want}}, f.mac.MACUpdates())
}

func TestInterruptGate(t *testing.T) {
	t.Run("NoLine", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		f.drv.EnableIRQ(f.iface)
		f.drv.DisableIRQ(f.iface)
		assert.Empty(t, f.sim.Ops())
		assert.False(t, f.iface.PHYEventPending())
	})
	t.Run("Line", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{withIRQ: true})
		f.drv.EnableIRQ(f.iface)
		f.drv.DisableIRQ(f.iface)
		_, enables, disables := f.irq.Counts()
		assert.Equal(t, 1, enables)
		assert.Equal(t, 1, disables)
		assert.Empty(t, f.sim.Ops())
	})
}

func TestDumpRegisters(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetLink(true, false, false)
	f.sim.ClearOps()
	before := f.iface.Link()

	f.drv.DumpRegisters(f.iface)
	ops := f.sim.Ops()
	require.Len(t, ops, phy.NumRegisters)
	for i, op := range ops {
		assert.False(t, op.Write)
		assert.EqualValues(t, i, op.Reg)
	}
	assert.Equal(t, before, f.iface.Link())
	assert.False(t, f.iface.PHYEventPending())
	assert.Empty(t, f.changes)
}

func TestDumpRegistersContinuesOnError(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.sim.SetReadError(5, io.EOF)
	f.drv.DumpRegisters(f.iface)
	assert.Len(t, f.sim.Ops(), phy.NumRegisters)
}

func TestDumpRegistersLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, fixtureOpts{drvCfg: dp83826.Config{Logger: log}})
	f.sim.SetReadError(int(dp83826.RegANAR), io.EOF)

	f.drv.DumpRegisters(f.iface)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, phy.NumRegisters)
	assert.Contains(t, lines[dp83826.RegPHYIDR1], "reg=2 val=0x2000")
	// The bus error keeps the register context.
	assert.Contains(t, lines[dp83826.RegANAR], `err="phy: mdio read phy=0 reg=4: EOF"`)
}

func TestReadRegisters(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	var regs [phy.NumRegisters]uint16
	require.NoError(t, dp83826.ReadRegisters(f.iface, &regs))
	assert.EqualValues(t, dp83826.OUIMSB, regs[dp83826.RegPHYIDR1])

	f.sim.SetReadError(3, io.EOF)
	require.ErrorIs(t, dp83826.ReadRegisters(f.iface, &regs), io.EOF)
}

func TestReadID(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id, err := dp83826.ReadID(f.iface)
	require.NoError(t, err)
	assert.True(t, id.IsDP83826())
	assert.EqualValues(t, dp83826.ModelNumber, id.Model())
	assert.Zero(t, id.Revision())
}
