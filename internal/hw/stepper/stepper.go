package stepper

import (
	"errors"
	"time"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hw/clock"
	"github.com/cjeanneret/SlideGo/internal/hw/gpio"
)

// ErrInterrupted is returned by MoveTo when the gate closed before the
// target was reached. Position then holds the partial travel.
var ErrInterrupted = errors.New("stepper: move interrupted")

// DefaultChunk bounds how long Wait sleeps before polling and re-checking
// the gate.
const DefaultChunk = 10 * time.Millisecond

// Unit is the resolution of a Speed value.
type Unit int

const (
	Millisecond Unit = iota
	Microsecond
)

// Speed is the time budget for one whole step.
type Speed struct {
	Value uint32
	Unit  Unit
}

// Millis returns a Speed of v milliseconds per step.
func Millis(v uint32) Speed { return Speed{Value: v, Unit: Millisecond} }

// Micros returns a Speed of v microseconds per step.
func Micros(v uint32) Speed { return Speed{Value: v, Unit: Microsecond} }

// Duration converts the speed to a per-step duration.
func (s Speed) Duration() time.Duration {
	if s.Unit == Microsecond {
		return time.Duration(s.Value) * time.Microsecond
	}
	return time.Duration(s.Value) * time.Millisecond
}

// Gate decides whether the motor may keep stepping.
type Gate interface {
	ShouldStep() bool
}

// Poller is invoked between wait chunks so the rest of the system
// (button, host link, display) stays responsive during long moves.
type Poller interface {
	PollOnce()
}

type openGate struct{}

func (openGate) ShouldStep() bool { return true }

type nopPoller struct{}

func (nopPoller) PollOnce() {}

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // driver ENABLE pin (BCM). 0 = not used. Active LOW.
	MS1Pin        int // microstep select lines. 0 = not wired.
	MS2Pin        int
	MS3Pin        int
	Microstepping int           // 1, 2, 4, 8 or 16. Anything else is full step.
	AccelSteps    int           // whole steps of ramp at each end of a move. 0 = no ramp.
	AccelDelay    time.Duration // extra delay added per ramp pulse
	ChunkSize     time.Duration // longest uninterrupted sleep. 0 = DefaultChunk.

	Clock  clock.Clock // nil = wall clock
	Gate   Gate        // nil = always open
	Poller Poller      // nil = no cooperative callback
}

// Stepper drives a single axis and owns its position.
type Stepper struct {
	gpio       gpio.Driver
	cfg        Config
	clock      clock.Clock
	gate       Gate
	poller     Poller
	chunk      time.Duration
	microsteps int
	position   int64
}

// NewStepper creates a new stepper motor controller.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	s := &Stepper{
		gpio:   g,
		cfg:    cfg,
		clock:  cfg.Clock,
		gate:   cfg.Gate,
		poller: cfg.Poller,
		chunk:  cfg.ChunkSize,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.gate == nil {
		s.gate = openGate{}
	}
	if s.poller == nil {
		s.poller = nopPoller{}
	}
	if s.chunk <= 0 {
		s.chunk = DefaultChunk
	}

	for _, pin := range []int{cfg.MS1Pin, cfg.MS2Pin, cfg.MS3Pin} {
		if pin > 0 {
			_ = g.SetupPin(pin, gpio.Output)
		}
	}
	s.SetMicrostepping(cfg.Microstepping)

	// ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return s
}

// SetGate replaces the interrupt condition.
func (s *Stepper) SetGate(g Gate) {
	if g == nil {
		g = openGate{}
	}
	s.gate = g
}

// SetPoller replaces the cooperative callback.
func (s *Stepper) SetPoller(p Poller) {
	if p == nil {
		p = nopPoller{}
	}
	s.poller = p
}

// Position returns the current position in whole steps.
func (s *Stepper) Position() int64 {
	return s.position
}

// SetHome declares the current position to be zero without moving.
func (s *Stepper) SetHome() {
	debug.Live("Set home at position %d", s.position)
	s.position = 0
}

// Microsteps returns the active microstep factor.
func (s *Stepper) Microsteps() int {
	return s.microsteps
}

// SetMicrostepping drives the MS1..MS3 lines for mode. Invalid modes fall
// back to full step.
func (s *Stepper) SetMicrostepping(mode int) {
	var ms [3]gpio.Level
	switch mode {
	case 1:
	case 2:
		ms = [3]gpio.Level{gpio.High, gpio.Low, gpio.Low}
	case 4:
		ms = [3]gpio.Level{gpio.Low, gpio.High, gpio.Low}
	case 8:
		ms = [3]gpio.Level{gpio.High, gpio.High, gpio.Low}
	case 16:
		ms = [3]gpio.Level{gpio.High, gpio.High, gpio.High}
	default:
		debug.Verbose("Stepper: invalid microstepping %d, using full step", mode)
		mode = 1
	}
	s.microsteps = mode

	for i, pin := range []int{s.cfg.MS1Pin, s.cfg.MS2Pin, s.cfg.MS3Pin} {
		if pin > 0 {
			_ = s.gpio.WritePin(pin, ms[i])
		}
	}
}

// MoveTo moves to target, spending speed per whole step. With microstepping
// the pulse count is multiplied and the per-pulse delay divided so total
// travel time is preserved.
//
// The gate is checked before every pulse. When it closes, the position is
// set to the whole steps actually travelled and ErrInterrupted is returned.
func (s *Stepper) MoveTo(target int64, speed Speed) error {
	delta := target - s.position
	if delta == 0 {
		return nil
	}

	dirLevel, sign, direction := gpio.High, int64(1), "forward"
	if delta < 0 {
		dirLevel, sign, direction = gpio.Low, -1, "backward"
		delta = -delta
	}

	debug.Move(target, delta, direction)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	m := int64(s.microsteps)
	pulses := delta * m
	perPulse := speed.Duration() / time.Duration(m)
	high := perPulse / 2
	low := perPulse - high
	ramp := s.rampPulses(pulses)

	var done int64
	for done < pulses {
		if !s.gate.ShouldStep() {
			s.position += sign * (done / m)
			debug.Live("Move interrupted after %d/%d pulses at position %d", done, pulses, s.position)
			return ErrInterrupted
		}

		if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
			s.position += sign * (done / m)
			return err
		}
		done++
		s.Wait(high)
		if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
			s.position += sign * (done / m)
			return err
		}
		s.Wait(low + s.rampDelay(done-1, pulses, ramp))
	}

	s.position = target
	return nil
}

// rampPulses returns how many pulses at each end of a move get extra delay.
func (s *Stepper) rampPulses(pulses int64) int64 {
	if s.cfg.AccelSteps <= 0 || s.cfg.AccelDelay <= 0 {
		return 0
	}
	n := int64(s.cfg.AccelSteps) * int64(s.microsteps)
	if n > pulses/2 {
		n = pulses / 2
	}
	return n
}

// rampDelay is the extra delay for pulse i: decreasing over the first n
// pulses, increasing over the last n.
func (s *Stepper) rampDelay(i, pulses, n int64) time.Duration {
	switch {
	case n == 0:
		return 0
	case i < n:
		return time.Duration(n-i) * s.cfg.AccelDelay
	case i >= pulses-n:
		return time.Duration(i-(pulses-n)+1) * s.cfg.AccelDelay
	}
	return 0
}

// Wait blocks for d and returns how long it actually slept. Delays longer
// than one chunk are split into chunks, polling after each and returning
// early once the gate closes.
func (s *Stepper) Wait(d time.Duration) time.Duration {
	if d <= s.chunk {
		if d > 0 {
			s.clock.Sleep(d)
		}
		s.poller.PollOnce()
		return max(d, 0)
	}

	var slept time.Duration
	for slept < d && s.gate.ShouldStep() {
		chunk := min(d-slept, s.chunk)
		s.clock.Sleep(chunk)
		slept += chunk
		s.poller.PollOnce()
	}
	return slept
}

// Enable turns on the motor driver (ENABLE=LOW). Motor holds position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (ENABLE=HIGH). Motor freewheels.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
