package motion

import (
	"time"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
)

// Gate reports whether motion may continue. runstate.State satisfies it.
type Gate interface {
	ShouldStep() bool
}

// Controller drives the slider axis. It's an intermediate layer between
// business logic (loop and waypoint programs, host moves) and low-level
// (stepper pulses on GPIO).
type Controller struct {
	axis *stepper.Stepper
	gate Gate
}

// NewController binds the axis to gate: the stepper stops pulsing and
// holds return early as soon as gate closes.
func NewController(axis *stepper.Stepper, gate Gate) *Controller {
	axis.SetGate(gate)
	return &Controller{axis: axis, gate: gate}
}

// MoveTo moves the carriage to an absolute position. It returns
// stepper.ErrInterrupted when the gate closed on the way.
func (c *Controller) MoveTo(target int64, speed stepper.Speed) error {
	if err := c.axis.Enable(); err != nil {
		return err
	}
	return c.axis.MoveTo(target, speed)
}

// Hold waits for d without moving and returns the time actually held. ok is
// false when the gate closed before d elapsed.
func (c *Controller) Hold(d time.Duration) (held time.Duration, ok bool) {
	if d > 0 {
		debug.Verbose("Hold %v at position %d", d, c.axis.Position())
		held = c.axis.Wait(d)
	}
	return held, c.gate.ShouldStep()
}

// Position returns the carriage position in whole steps.
func (c *Controller) Position() int64 {
	return c.axis.Position()
}

// SetHome declares the current position to be zero.
func (c *Controller) SetHome() {
	c.axis.SetHome()
}

// EnableMotors energizes the driver so the carriage holds position.
func (c *Controller) EnableMotors() error {
	return c.axis.Enable()
}

// DisableMotors releases the driver. The carriage can be pushed by hand.
func (c *Controller) DisableMotors() error {
	return c.axis.Disable()
}
