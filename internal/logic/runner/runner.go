// Package runner replays stored programs on the slider axis.
package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
)

// ErrLoad is returned when a job's slot does not hold the expected program.
var ErrLoad = errors.New("runner: cannot load program")

// LoopHold is the pause at each end of a loop leg.
const LoopHold = 100 * time.Millisecond

// Outcome tells the scheduler what to do with a job after Run returns.
type Outcome int

const (
	Completed Outcome = iota // job finished, drop it
	Paused                   // run state is paused, keep the job
	Aborted                  // run state went idle, drop the job
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Paused:
		return "paused"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Axis is the motion side the runner drives. motion.Controller satisfies it.
type Axis interface {
	MoveTo(target int64, speed stepper.Speed) error
	Hold(d time.Duration) (time.Duration, bool)
	Position() int64
}

// State is the run state the runner observes. runstate.State satisfies it.
type State interface {
	ShouldStep() bool
	Running() bool
}

// Runner executes jobs until they finish or the run state stops them.
type Runner struct {
	axis     Axis
	programs Programs
	state    State
}

func NewRunner(axis Axis, programs Programs, state State) *Runner {
	return &Runner{
		axis:     axis,
		programs: programs,
		state:    state,
	}
}

// Run executes job from its saved progress. It returns as soon as the run
// state stops allowing motion.
func (r *Runner) Run(job *Job) (Outcome, error) {
	debug.Live("Running %s", job)

	var (
		out Outcome
		err error
	)
	switch job.Kind {
	case KindLoop:
		out, err = r.runLoop(job)
	case KindComplex:
		out, err = r.runComplex(job)
	case KindMove:
		out, err = r.runMove(job)
	default:
		return Aborted, fmt.Errorf("runner: unknown job kind %d", job.Kind)
	}

	if err != nil {
		debug.Error(err)
	} else {
		debug.Live("Job %s %s at position %d", job, out, r.axis.Position())
	}
	return out, err
}

func (r *Runner) runLoop(job *Job) (Outcome, error) {
	p, err := r.programs.ReadLoop(job.Slot)
	if err != nil {
		return Aborted, fmt.Errorf("%w: slot %d: %w", ErrLoad, job.Slot, err)
	}
	if !job.started {
		job.started = true
		job.origin = r.axis.Position()
		debug.Verbose("Loop origin %d, %d steps, %d ms/step, cycles %d", job.origin, p.Steps, p.DelayMs, p.Cycles)
	}

	speed := stepper.Millis(p.DelayMs)
	far := job.origin + int64(p.Steps)

	for p.Cycles == 0 || job.cycle < int(p.Cycles) {
		if !r.state.ShouldStep() {
			return r.interrupted(), nil
		}

		if !job.back {
			if out, ok, err := r.leg(job, far, speed, LoopHold); !ok {
				return out, err
			}
			job.back = true
		}
		if out, ok, err := r.leg(job, job.origin, speed, LoopHold); !ok {
			return out, err
		}
		job.back = false
		job.cycle++
		debug.Verbose("Loop cycle %d done", job.cycle)
	}
	return Completed, nil
}

func (r *Runner) runComplex(job *Job) (Outcome, error) {
	p, err := r.programs.ReadComplex(job.Slot)
	if err != nil {
		return Aborted, fmt.Errorf("%w: slot %d: %w", ErrLoad, job.Slot, err)
	}

	for job.index < len(p.Steps) {
		if !r.state.ShouldStep() {
			return r.interrupted(), nil
		}
		wp := p.Steps[job.index]
		debug.Step(job.index+1, fmt.Sprintf("waypoint %d at %d ms/step, pause %d ms", wp.Position, wp.Speed, wp.PauseMs))

		hold := time.Duration(wp.PauseMs) * time.Millisecond
		if out, ok, err := r.leg(job, int64(wp.Position), stepper.Millis(wp.Speed), hold); !ok {
			return out, err
		}
		job.index++
	}
	return Completed, nil
}

func (r *Runner) runMove(job *Job) (Outcome, error) {
	if out, ok, err := r.leg(job, job.Target, job.Speed, 0); !ok {
		return out, err
	}
	return Completed, nil
}

// leg moves to target then holds. ok is false when the job must stop. A
// hold cut short by a pause is credited to job, so resuming only waits out
// the rest of it.
func (r *Runner) leg(job *Job, target int64, speed stepper.Speed, hold time.Duration) (Outcome, bool, error) {
	if job.held == 0 {
		if err := r.axis.MoveTo(target, speed); err != nil {
			if errors.Is(err, stepper.ErrInterrupted) {
				return r.interrupted(), false, nil
			}
			return Aborted, false, err
		}
	}
	held, ok := r.axis.Hold(hold - job.held)
	job.held += held
	if !ok {
		return r.interrupted(), false, nil
	}
	job.held = 0
	return Completed, true, nil
}

func (r *Runner) interrupted() Outcome {
	if r.state.Running() {
		return Paused
	}
	return Aborted
}
