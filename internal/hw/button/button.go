// Package button reads the single front-panel push button.
package button

import (
	"github.com/cjeanneret/SlideGo/internal/hw/gpio"
)

// Input is a push button wired between a GPIO line and ground, using the
// internal pull-up: the line reads Low while pressed.
type Input struct {
	gpio gpio.Driver
	pin  int
}

// New configures pin as a pulled-up input.
func New(g gpio.Driver, pin int) (*Input, error) {
	if err := g.SetupPin(pin, gpio.InputPullUp); err != nil {
		return nil, err
	}
	return &Input{gpio: g, pin: pin}, nil
}

// Pressed samples the raw, undebounced level.
func (b *Input) Pressed() (bool, error) {
	lvl, err := b.gpio.ReadPin(b.pin)
	if err != nil {
		return false, err
	}
	return lvl == gpio.Low, nil
}
