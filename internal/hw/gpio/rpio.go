package gpio

import (
	"fmt"
	"slices"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// line is the subset of rpio.Pin the slider uses: STEP, DIR and ENABLE are
// outputs, the menu button is an input pulled up to 3V3.
type line interface {
	Input()
	Output()
	PullUp()
	PullOff()
	High()
	Low()
	Read() rpio.State
}

// RPiDriver drives the slider's BCM pins through /dev/gpiomem.
type RPiDriver struct {
	lines map[int]line
	modes map[int]PinMode
	open  func(pin int) line
	unmap func() error
}

// NewRPiRealDriver maps the GPIO registers. It fails off a Raspberry Pi or
// without access to /dev/gpiomem.
func NewRPiRealDriver() (*RPiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: map registers: %w", err)
	}
	debug.Info("GPIO registers mapped (go-rpio)")
	return newRPiDriver(func(pin int) line { return rpio.Pin(pin) }, rpio.Close), nil
}

func newRPiDriver(open func(int) line, unmap func() error) *RPiDriver {
	return &RPiDriver{
		lines: make(map[int]line),
		modes: make(map[int]PinMode),
		open:  open,
		unmap: unmap,
	}
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	l := r.open(pin)
	switch mode {
	case Output:
		l.Output()
	case Input:
		l.Input()
		l.PullOff()
	case InputPullUp:
		l.Input()
		l.PullUp()
	default:
		return fmt.Errorf("gpio: pin %d: unknown mode %d", pin, mode)
	}
	r.lines[pin] = l
	r.modes[pin] = mode
	return nil
}

// lineFor returns the configured pin, setting it up as mode on first use.
func (r *RPiDriver) lineFor(pin int, mode PinMode) (line, error) {
	if l, ok := r.lines[pin]; ok {
		return l, nil
	}
	if err := r.SetupPin(pin, mode); err != nil {
		return nil, err
	}
	return r.lines[pin], nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	l, err := r.lineFor(pin, Output)
	if err != nil {
		return err
	}
	if r.modes[pin] != Output {
		return fmt.Errorf("gpio: pin %d is an input", pin)
	}
	if level == High {
		l.High()
	} else {
		l.Low()
	}
	return nil
}

// ReadPin is called on every poll for the button, so it is not traced.
func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	l, err := r.lineFor(pin, Input)
	if err != nil {
		return Low, err
	}
	return l.Read() == rpio.High, nil
}

// Close floats every pin the slider claimed, so the driver's ENABLE input
// falls back to its own pull-up, and unmaps the registers.
func (r *RPiDriver) Close() error {
	pins := make([]int, 0, len(r.lines))
	for pin := range r.lines {
		pins = append(pins, pin)
	}
	slices.Sort(pins)

	for _, pin := range pins {
		l := r.lines[pin]
		l.PullOff()
		l.Input()
		debug.Verbose("GPIO %d released", pin)
	}
	clear(r.lines)
	clear(r.modes)
	return r.unmap()
}
