// Package extint implements external interrupt lines for PHY interrupt
// outputs using periph.io GPIO edge detection.
package extint

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/soypat/ethphy/internal"
	"github.com/soypat/ethphy/nic"
)

var _ nic.ExtIntDriver = (*Line)(nil)

var errNoPin = errors.New("extint: nil pin")

// DefaultWaitTimeout bounds each wait for an edge so Close is honored promptly.
const DefaultWaitTimeout = 100 * time.Millisecond

// Config configures a Line.
type Config struct {
	// Pin is wired to the PHY interrupt output. Required.
	Pin gpio.PinIn
	// Signal is called on every delivered interrupt, typically nic.Interface.SetPHYEvent. Required.
	Signal func()
	// Edge defaults to gpio.FallingEdge: the DP83826 INT pin is active low.
	Edge gpio.Edge
	// Pull is applied to the pin. The zero value (gpio.PullNoChange) selects
	// gpio.PullUp since the INT pin is open drain; use gpio.Float to leave the
	// pin without a pull, i.e. when the board has an external pull-up.
	Pull        gpio.Pull
	WaitTimeout time.Duration
	Logger      *slog.Logger
}

// Line watches a GPIO for interrupt edges on a dedicated goroutine and calls
// Signal for each one. While the line is disabled edges are held and a single
// interrupt is delivered on EnableIRQ, as a level triggered interrupt controller would.
type Line struct {
	pin     gpio.PinIn
	signal  func()
	edge    gpio.Edge
	pull    gpio.Pull
	timeout time.Duration
	log     *slog.Logger

	enabled atomic.Bool
	pending atomic.Bool

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns a Line configured with cfg. The pin is not touched until Init.
func New(cfg Config) (*Line, error) {
	if cfg.Pin == nil {
		return nil, errNoPin
	} else if cfg.Signal == nil {
		return nil, errors.New("extint: nil signal")
	}
	l := &Line{
		pin:     cfg.Pin,
		signal:  cfg.Signal,
		edge:    cfg.Edge,
		pull:    cfg.Pull,
		timeout: cfg.WaitTimeout,
		log:     cfg.Logger,
	}
	if l.edge == gpio.NoEdge {
		l.edge = gpio.FallingEdge
	}
	if l.pull == gpio.PullNoChange {
		l.pull = gpio.PullUp
	}
	if l.timeout <= 0 {
		l.timeout = DefaultWaitTimeout
	}
	return l, nil
}

// Init configures the pin for edge detection and starts watching it.
// The line starts out disabled. Calling Init on a running line is a no-op.
func (l *Line) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	err := l.pin.In(l.pull, l.edge)
	if err != nil {
		return err
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.running = true
	go l.watch(l.stop, l.done)
	internal.LogAttrs(l.log, slog.LevelDebug, "extint:init", slog.String("pin", l.pin.Name()), slog.String("edge", l.edge.String()))
	return nil
}

// EnableIRQ enables interrupt delivery. An edge seen while disabled is delivered now.
func (l *Line) EnableIRQ() {
	l.enabled.Store(true)
	if l.pending.Swap(false) {
		l.signal()
	}
}

// DisableIRQ holds interrupts until EnableIRQ.
func (l *Line) DisableIRQ() {
	l.enabled.Store(false)
}

// Close stops watching the pin and halts it.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil
	}
	close(l.stop)
	<-l.done
	l.running = false
	return l.pin.Halt()
}

func (l *Line) watch(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !l.pin.WaitForEdge(l.timeout) {
			continue
		}
		internal.LogAttrs(l.log, internal.LevelTrace, "extint:edge", slog.String("pin", l.pin.Name()))
		if l.enabled.Load() {
			l.signal()
		} else {
			l.pending.Store(true)
			// EnableIRQ may have run between the load and the store.
			if l.enabled.Load() && l.pending.Swap(false) {
				l.signal()
			}
		}
	}
}
