// Package clock is the "block for a duration" primitive the motion engine
// and the scheduler are built on.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time and blocks for a duration.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time        { return time.Now() }
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a virtual clock: Sleep advances Now instantly.
// Used by tests to check pulse timing without waiting for it.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
	hooks []func(now time.Time)
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances the virtual time by d and runs any registered hooks.
func (f *Fake) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.slept += d
	now := f.now
	hooks := append([]func(time.Time){}, f.hooks...)
	f.mu.Unlock()

	for _, h := range hooks {
		h(now)
	}
}

// Advance moves time forward without counting it as slept.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Slept returns the total duration passed to Sleep.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slept
}

// OnSleep registers a hook called after every Sleep with the new time.
func (f *Fake) OnSleep(h func(now time.Time)) {
	f.mu.Lock()
	f.hooks = append(f.hooks, h)
	f.mu.Unlock()
}
