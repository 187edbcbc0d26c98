package mdiogpio_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/soypat/ethphy/phy"
	"github.com/soypat/ethphy/phy/mdiogpio"
)

// clockPin samples the data pin on every rising edge.
type clockPin struct {
	gpiotest.Pin
	data    *gpiotest.Pin
	samples []bool
}

func (c *clockPin) Out(l gpio.Level) error {
	if l == gpio.High {
		c.samples = append(c.samples, c.data.Read() == gpio.High)
	}
	return c.Pin.Out(l)
}

type failPin struct {
	gpiotest.Pin
	err error
}

func (f *failPin) Out(l gpio.Level) error { return f.err }

func bits(b []bool) (v uint16) {
	for _, bit := range b {
		v <<= 1
		if bit {
			v |= 1
		}
	}
	return v
}

func TestWriteFrame(t *testing.T) {
	data := &gpiotest.Pin{N: "MDIO"}
	clk := &clockPin{Pin: gpiotest.Pin{N: "MDC"}, data: data}
	bus, err := mdiogpio.New(mdiogpio.Config{MDC: clk, MDIO: data})
	require.NoError(t, err)

	require.NoError(t, bus.Write(3, 0, phy.AddrANAR, 0x01e1))
	s := clk.samples
	require.GreaterOrEqual(t, len(s), 64)
	for i := 0; i < 32; i++ {
		require.True(t, s[i], "preamble bit %d", i)
	}
	f := s[32:64]
	assert.EqualValues(t, 0b01, bits(f[0:2]), "start of frame")
	assert.EqualValues(t, phy.OpcodeWrite, bits(f[2:4]))
	assert.EqualValues(t, 3, bits(f[4:9]))
	assert.EqualValues(t, phy.AddrANAR, bits(f[9:14]))
	assert.EqualValues(t, 0b10, bits(f[14:16]), "turnaround")
	assert.EqualValues(t, 0x01e1, bits(f[16:32]))
	assert.Equal(t, gpio.Low, clk.Read(), "MDC idles low")
}

func TestReadNoPHY(t *testing.T) {
	data := &gpiotest.Pin{N: "MDIO"}
	clk := &gpiotest.Pin{N: "MDC"}
	bus, err := mdiogpio.New(mdiogpio.Config{MDC: clk, MDIO: data})
	require.NoError(t, err)
	// Released MDIO is pulled up so the turnaround bit reads high.
	v, err := bus.Read(1, 0, phy.AddrBMSR)
	require.Error(t, err)
	assert.EqualValues(t, 0xffff, v)
	assert.Equal(t, gpio.PullUp, data.Pull())
}

func TestPinErrors(t *testing.T) {
	_, err := mdiogpio.New(mdiogpio.Config{})
	require.Error(t, err)

	pinErr := errors.New("gpio busy")
	data := &failPin{err: pinErr}
	_, err = mdiogpio.New(mdiogpio.Config{MDC: &gpiotest.Pin{}, MDIO: data})
	require.ErrorIs(t, err, pinErr)

	clk := &failPin{err: pinErr}
	_, err = mdiogpio.New(mdiogpio.Config{MDC: clk, MDIO: &gpiotest.Pin{}})
	require.ErrorIs(t, err, pinErr)
}

func TestPinErrorDuringTransfer(t *testing.T) {
	clk := &failPin{}
	bus, err := mdiogpio.New(mdiogpio.Config{MDC: clk, MDIO: &gpiotest.Pin{}})
	require.NoError(t, err)

	pinErr := errors.New("gpio gone")
	clk.err = pinErr
	var dev phy.Device
	require.NoError(t, dev.ConfigureAs22(bus, 1))
	_, err = dev.BasicStatus()
	require.ErrorIs(t, err, pinErr)
	var busErr *phy.BusError
	require.True(t, errors.As(err, &busErr))
	assert.EqualValues(t, phy.AddrBMSR, busErr.Reg)

	// Errors do not stick to later transfers.
	clk.err = nil
	require.NoError(t, bus.Write(1, 0, 0, 0))
}

func TestConcurrentWrites(t *testing.T) {
	data := &gpiotest.Pin{N: "MDIO"}
	clk := &clockPin{Pin: gpiotest.Pin{N: "MDC"}, data: data}
	bus, err := mdiogpio.New(mdiogpio.Config{MDC: clk, MDIO: data})
	require.NoError(t, err)

	const writes = 50
	values := map[uint16]uint16{1: 0x1111, 2: 0xbeef}
	var wg sync.WaitGroup
	for addr, v := range values {
		addr, v := addr, v
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				bus.Write(uint8(addr), 0, phy.AddrANAR, v)
			}
		}()
	}
	wg.Wait()

	// Each write clocks 64 frame bits plus one idle cycle. Interleaved
	// transfers would corrupt the frames.
	const frameLen = 65
	s := clk.samples
	require.Len(t, s, 2*writes*frameLen)
	for i := 0; i < len(s); i += frameLen {
		f := s[i : i+frameLen]
		assert.EqualValues(t, 0xffff, bits(f[0:16]))
		assert.EqualValues(t, 0xffff, bits(f[16:32]))
		assert.EqualValues(t, 0b01, bits(f[32:34]))
		assert.EqualValues(t, phy.OpcodeWrite, bits(f[34:36]))
		addr := bits(f[36:41])
		require.Contains(t, values, addr)
		assert.Equal(t, values[addr], bits(f[48:64]))
	}
}
