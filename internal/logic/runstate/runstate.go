// Package runstate holds the run/pause flags shared by the scheduler, the
// button coordinator and the motion gate.
package runstate

import "github.com/cjeanneret/SlideGo/internal/debug"

// Label is the user-visible run state.
type Label int

const (
	Idle Label = iota
	Running
	Paused
)

func (l Label) String() string {
	switch l {
	case Running:
		return "RUN"
	case Paused:
		return "PAUSE"
	}
	return "IDLE"
}

// State is two flags: paused only means something while running.
// It is owned by the controller goroutine and is not safe for concurrent use.
type State struct {
	running bool
	paused  bool
}

// ShouldStep reports whether the motor may keep moving.
func (s *State) ShouldStep() bool {
	return s.running && !s.paused
}

func (s *State) Running() bool { return s.running }
func (s *State) Paused() bool  { return s.running && s.paused }

// Label derives the display label from the flags.
func (s *State) Label() Label {
	switch {
	case !s.running:
		return Idle
	case s.paused:
		return Paused
	}
	return Running
}

// Start sets the running flag. A pending pause is kept.
func (s *State) Start() {
	s.set(true, s.paused)
}

// Stop returns to idle.
func (s *State) Stop() {
	s.set(false, false)
}

// Pause holds a running job. It has no effect when idle.
func (s *State) Pause() {
	if s.running {
		s.set(true, true)
	}
}

// Resume clears the pause flag.
func (s *State) Resume() {
	s.set(s.running, false)
}

func (s *State) set(running, paused bool) {
	from := s.Label()
	s.running, s.paused = running, paused
	if to := s.Label(); to != from {
		debug.State(from.String(), to.String())
	}
}
