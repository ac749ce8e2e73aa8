package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
	"github.com/cjeanneret/SlideGo/internal/store"
)

// ErrInvalidProgram is returned when a slot holds no runnable program.
var ErrInvalidProgram = errors.New("runner: invalid program")

// Kind selects what a Job does.
type Kind int

const (
	KindLoop Kind = iota
	KindComplex
	KindMove
)

func (k Kind) String() string {
	switch k {
	case KindLoop:
		return "loop"
	case KindComplex:
		return "complex"
	case KindMove:
		return "move"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Job is one unit of work for the runner. It keeps its progress so that a
// paused job picks up where it stopped.
type Job struct {
	Kind Kind
	Slot int

	// Move jobs only.
	Target int64
	Speed  stepper.Speed

	started bool
	origin  int64
	cycle   int
	back    bool          // loop: on the return leg
	index   int           // complex: next waypoint
	held    time.Duration // hold already served on the current leg
}

// LoopJob runs the loop program stored in slot.
func LoopJob(slot int) *Job {
	return &Job{Kind: KindLoop, Slot: slot}
}

// ComplexJob runs the waypoint program stored in slot.
func ComplexJob(slot int) *Job {
	return &Job{Kind: KindComplex, Slot: slot}
}

// MoveJob moves to an absolute position.
func MoveJob(target int64, speed stepper.Speed) *Job {
	return &Job{Kind: KindMove, Slot: -1, Target: target, Speed: speed}
}

// Cycle returns the number of completed loop cycles.
func (j *Job) Cycle() int { return j.cycle }

// Index returns the next waypoint of a complex job.
func (j *Job) Index() int { return j.index }

func (j *Job) String() string {
	if j.Kind == KindMove {
		return fmt.Sprintf("move to %d", j.Target)
	}
	return fmt.Sprintf("%s slot %d", j.Kind, j.Slot)
}

// Programs is the read side of the program store.
type Programs interface {
	ProgramType(slot int) store.ProgramType
	ReadLoop(slot int) (store.LoopProgram, error)
	ReadComplex(slot int) (store.ComplexProgram, error)
}

// JobForSlot builds the job matching the type stored in slot.
func JobForSlot(p Programs, slot int) (*Job, error) {
	switch t := p.ProgramType(slot); t {
	case store.TypeLoop:
		return LoopJob(slot), nil
	case store.TypeComplex:
		return ComplexJob(slot), nil
	default:
		return nil, fmt.Errorf("%w: slot %d is %s", ErrInvalidProgram, slot, t)
	}
}
