package extint_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/soypat/ethphy/extint"
)

func newLine(t *testing.T) (*extint.Line, *gpiotest.Pin, chan struct{}) {
	t.Helper()
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17, EdgesChan: make(chan gpio.Level, 4)}
	signals := make(chan struct{}, 8)
	line, err := extint.New(extint.Config{
		Pin:         pin,
		Signal:      func() { signals <- struct{}{} },
		WaitTimeout: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return line, pin, signals
}

func waitSignal(t *testing.T, signals <-chan struct{}) {
	t.Helper()
	select {
	case <-signals:
	case <-time.After(time.Second):
		t.Fatal("no interrupt delivered")
	}
}

func noSignal(t *testing.T, signals <-chan struct{}) {
	t.Helper()
	select {
	case <-signals:
		t.Fatal("unexpected interrupt")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestNewValidation(t *testing.T) {
	_, err := extint.New(extint.Config{Signal: func() {}})
	assert.Error(t, err)
	_, err = extint.New(extint.Config{Pin: &gpiotest.Pin{}})
	assert.Error(t, err)
}

func TestInitConfiguresPin(t *testing.T) {
	defer goleak.VerifyNone(t)
	line, pin, _ := newLine(t)
	require.NoError(t, line.Init())
	require.NoError(t, line.Init(), "second Init is a no-op")
	assert.Equal(t, gpio.PullUp, pin.Pull())
	require.NoError(t, line.Close())
	require.NoError(t, line.Close())
}

func TestInitFloatingPull(t *testing.T) {
	defer goleak.VerifyNone(t)
	pin := &gpiotest.Pin{N: "GPIO4", EdgesChan: make(chan gpio.Level)}
	line, err := extint.New(extint.Config{Pin: pin, Signal: func() {}, Pull: gpio.Float, WaitTimeout: 5 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, line.Init())
	assert.Equal(t, gpio.Float, pin.Pull(), "external pull-up, no internal pull")
	require.NoError(t, line.Close())
}

func TestInitRequiresEdgeSupport(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4"} // No EdgesChan: edge detection unsupported.
	line, err := extint.New(extint.Config{Pin: pin, Signal: func() {}})
	require.NoError(t, err)
	assert.Error(t, line.Init())
}

func TestEdgeDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)
	line, pin, signals := newLine(t)
	require.NoError(t, line.Init())
	defer line.Close()

	// Disabled after Init.
	pin.EdgesChan <- gpio.Low
	noSignal(t, signals)

	line.EnableIRQ()
	waitSignal(t, signals)

	pin.EdgesChan <- gpio.Low
	waitSignal(t, signals)

	line.DisableIRQ()
	pin.EdgesChan <- gpio.Low
	pin.EdgesChan <- gpio.Low
	noSignal(t, signals)
	line.EnableIRQ()
	waitSignal(t, signals)
	noSignal(t, signals)
}
