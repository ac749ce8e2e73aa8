package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/SlideGo/internal/hw/clock"
	"github.com/cjeanneret/SlideGo/internal/hw/eeprom"
	"github.com/cjeanneret/SlideGo/internal/hw/gpio"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
	"github.com/cjeanneret/SlideGo/internal/logic/motion"
	"github.com/cjeanneret/SlideGo/internal/logic/runstate"
	"github.com/cjeanneret/SlideGo/internal/store"
)

type rig struct {
	state  *runstate.State
	clock  *clock.Fake
	axis   *motion.Controller
	store  *store.Store
	runner *Runner
}

func newRig(t *testing.T) *rig {
	t.Helper()
	st, err := store.New(eeprom.NewMemory(store.ImageSize))
	require.NoError(t, err)
	require.NoError(t, st.Initialize())

	state := &runstate.State{}
	clk := clock.NewFake(time.Unix(0, 0))
	axis := motion.NewController(stepper.NewStepper(&gpio.MockDriver{}, stepper.Config{
		StepPin:       1,
		DirPin:        2,
		Microstepping: 1,
		Clock:         clk,
	}), state)

	return &rig{
		state:  state,
		clock:  clk,
		axis:   axis,
		store:  st,
		runner: NewRunner(axis, st, state),
	}
}

// pauseAfter pauses the run state once, when d of virtual time has been slept.
func (r *rig) pauseAfter(d time.Duration) {
	fired := false
	r.clock.OnSleep(func(time.Time) {
		if !fired && r.clock.Slept() >= d {
			fired = true
			r.state.Pause()
		}
	})
}

func TestRun_LoopBoundedEndsAtOrigin(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(2, "SWEEP", store.LoopProgram{Steps: 100, DelayMs: 1000, Cycles: 3}))

	r.state.Start()
	out, err := r.runner.Run(MoveJob(37, stepper.Millis(1)))
	require.NoError(t, err)
	require.Equal(t, Completed, out)
	start := r.clock.Slept()

	job, err := JobForSlot(r.store, 2)
	require.NoError(t, err)
	out, err = r.runner.Run(job)
	require.NoError(t, err)

	assert.Equal(t, Completed, out)
	assert.Equal(t, int64(37), r.axis.Position())
	assert.Equal(t, 3, job.Cycle())

	// 3 cycles of 2 legs: 100 steps at 1000 ms plus the end hold.
	want := 3 * 2 * (100*time.Second + LoopHold)
	assert.Equal(t, want, r.clock.Slept()-start)
}

func TestRun_LoopPauseResume(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(0, "L", store.LoopProgram{Steps: 10, DelayMs: 20, Cycles: 2}))

	r.state.Start()
	job := LoopJob(0)

	r.pauseAfter(350 * time.Millisecond)
	out, err := r.runner.Run(job)
	require.NoError(t, err)
	require.Equal(t, Paused, out)
	assert.Equal(t, runstate.Paused, r.state.Label())
	paused := r.axis.Position()
	assert.Greater(t, paused, int64(0))
	assert.Less(t, paused, int64(10))

	r.state.Resume()
	out, err = r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Completed, out)
	assert.Equal(t, int64(0), r.axis.Position())
	assert.Equal(t, 2, job.Cycle())
}

func TestRun_LoopPausedOnReturnLegResumesReturn(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(0, "L", store.LoopProgram{Steps: 10, DelayMs: 10, Cycles: 1}))

	r.state.Start()
	job := LoopJob(0)

	// Forward leg is 100 ms plus the 100 ms hold.
	r.pauseAfter(250 * time.Millisecond)
	out, err := r.runner.Run(job)
	require.NoError(t, err)
	require.Equal(t, Paused, out)
	assert.Less(t, r.axis.Position(), int64(10))

	r.state.Resume()
	before := r.clock.Slept()
	out, err = r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Completed, out)
	assert.Equal(t, int64(0), r.axis.Position())
	assert.Equal(t, 1, job.Cycle())
	assert.Less(t, r.clock.Slept()-before, 200*time.Millisecond, "forward leg must not be repeated")
}

func TestRun_LoopForeverRunsUntilStopped(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(1, "FOREVER", store.LoopProgram{Steps: 5, DelayMs: 10, Cycles: store.CyclesForever}))

	r.state.Start()
	r.clock.OnSleep(func(time.Time) {
		if r.clock.Slept() >= 10*time.Second {
			r.state.Stop()
		}
	})

	job := LoopJob(1)
	out, err := r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Aborted, out)
	assert.Greater(t, job.Cycle(), 10)
}

func TestRun_StopMidMoveKeepsPartialPosition(t *testing.T) {
	r := newRig(t)
	r.state.Start()
	r.clock.OnSleep(func(time.Time) {
		if r.clock.Slept() >= 5500*time.Millisecond {
			r.state.Stop()
		}
	})

	out, err := r.runner.Run(MoveJob(100, stepper.Millis(1000)))
	require.NoError(t, err)
	assert.Equal(t, Aborted, out)
	assert.Equal(t, int64(6), r.axis.Position())
	assert.Less(t, r.clock.Slept(), 5500*time.Millisecond+stepper.DefaultChunk+time.Millisecond)
}

func TestRun_Complex(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteComplex(4, "PATH", store.ComplexProgram{Steps: []store.MovementStep{
		{Position: 20, Speed: 10, PauseMs: 500},
		{Position: 5, Speed: 2, PauseMs: 0},
		{Position: 30, Speed: 1, PauseMs: 1000},
	}}))

	r.state.Start()
	job, err := JobForSlot(r.store, 4)
	require.NoError(t, err)
	require.Equal(t, KindComplex, job.Kind)

	out, err := r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Completed, out)
	assert.Equal(t, int64(30), r.axis.Position())
	assert.Equal(t, 3, job.Index())

	want := 20*10*time.Millisecond + 500*time.Millisecond +
		15*2*time.Millisecond +
		25*time.Millisecond + time.Second
	assert.Equal(t, want, r.clock.Slept())
}

func TestRun_ComplexPauseKeepsWaypoint(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteComplex(0, "PATH", store.ComplexProgram{Steps: []store.MovementStep{
		{Position: 10, Speed: 10, PauseMs: 0},
		{Position: 50, Speed: 10, PauseMs: 0},
	}}))

	r.state.Start()
	job := ComplexJob(0)
	r.pauseAfter(200 * time.Millisecond)

	out, err := r.runner.Run(job)
	require.NoError(t, err)
	require.Equal(t, Paused, out)
	assert.Equal(t, 1, job.Index())

	r.state.Resume()
	out, err = r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Completed, out)
	assert.Equal(t, int64(50), r.axis.Position())
}

func TestRun_ComplexPauseDuringHoldKeepsHeldTime(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteComplex(1, "DWELL", store.ComplexProgram{Steps: []store.MovementStep{
		{Position: 10, Speed: 1, PauseMs: 1000},
	}}))

	r.state.Start()
	job := ComplexJob(1)
	// 10ms to arrive, then 890ms into the 1s hold.
	r.pauseAfter(900 * time.Millisecond)

	out, err := r.runner.Run(job)
	require.NoError(t, err)
	require.Equal(t, Paused, out)
	require.Equal(t, int64(10), r.axis.Position())
	assert.Equal(t, 0, job.Index())
	assert.Equal(t, 900*time.Millisecond, r.clock.Slept())

	r.state.Resume()
	out, err = r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Completed, out)
	assert.Equal(t, 1, job.Index())
	assert.Equal(t, 10*time.Millisecond+time.Second, r.clock.Slept())
}

func TestRun_LoopPauseDuringEndHoldKeepsHeldTime(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(0, "SWEEP", store.LoopProgram{Steps: 10, DelayMs: 1, Cycles: 1}))

	r.state.Start()
	job := LoopJob(0)
	// Out leg takes 10ms, then 50ms of the end hold.
	r.pauseAfter(60 * time.Millisecond)

	out, err := r.runner.Run(job)
	require.NoError(t, err)
	require.Equal(t, Paused, out)
	require.Equal(t, int64(10), r.axis.Position())

	r.state.Resume()
	out, err = r.runner.Run(job)
	require.NoError(t, err)
	assert.Equal(t, Completed, out)
	assert.Equal(t, int64(0), r.axis.Position())
	assert.Equal(t, 2*(10*time.Millisecond+LoopHold), r.clock.Slept())
}

func TestRun_LoadErrors(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteComplex(1, "C", store.ComplexProgram{}))
	r.state.Start()

	_, err := r.runner.Run(LoopJob(1))
	assert.True(t, errors.Is(err, ErrLoad))
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = r.runner.Run(ComplexJob(3))
	assert.True(t, errors.Is(err, ErrLoad))
	assert.Equal(t, int64(0), r.axis.Position())
}

func TestRun_IdleStateDoesNothing(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(0, "L", store.LoopProgram{Steps: 10, DelayMs: 1, Cycles: 1}))

	out, err := r.runner.Run(LoopJob(0))
	require.NoError(t, err)
	assert.Equal(t, Aborted, out)
	assert.Equal(t, time.Duration(0), r.clock.Slept())
}

func TestJobForSlot(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.WriteLoop(0, "L", store.LoopProgram{}))
	require.NoError(t, r.store.WriteComplex(1, "C", store.ComplexProgram{}))

	tests := []struct {
		slot    int
		want    Kind
		wantErr bool
	}{
		{0, KindLoop, false},
		{1, KindComplex, false},
		{2, 0, true},
		{store.MaxPrograms, 0, true},
	}
	for _, tt := range tests {
		job, err := JobForSlot(r.store, tt.slot)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidProgram), "slot %d", tt.slot)
			assert.Nil(t, job)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, job.Kind)
		assert.Equal(t, tt.slot, job.Slot)
	}
}
