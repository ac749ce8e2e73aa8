// Package slider is the controller: it owns the run state, the current job
// and the cooperative scheduler that interleaves motion with host commands,
// the button and the display.
package slider

import (
	"context"
	"time"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hostlink"
	"github.com/cjeanneret/SlideGo/internal/hw/clock"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
	"github.com/cjeanneret/SlideGo/internal/logic/menu"
	"github.com/cjeanneret/SlideGo/internal/logic/motion"
	"github.com/cjeanneret/SlideGo/internal/logic/runner"
	"github.com/cjeanneret/SlideGo/internal/logic/runstate"
	"github.com/cjeanneret/SlideGo/internal/store"
)

// Button is a raw push-button level. button.Input satisfies it.
type Button interface {
	Pressed() (bool, error)
}

// Config tunes the scheduler.
type Config struct {
	DefaultSpeed    stepper.Speed // POS and HOME
	DisplayInterval time.Duration
	IdleTick        time.Duration
	NoticeDuration  time.Duration
	InboundSize     int
	Timing          menu.Timing
}

// DefaultConfig matches the stock firmware timings.
var DefaultConfig = Config{
	DefaultSpeed:    stepper.Millis(1),
	DisplayInterval: 500 * time.Millisecond,
	IdleTick:        10 * time.Millisecond,
	NoticeDuration:  2 * time.Second,
	InboundSize:     16,
	Timing:          menu.DefaultTiming,
}

// Slider is the application state. All methods must be called from the
// goroutine running Run; other goroutines talk to it through Inbound.
type Slider struct {
	cfg      Config
	clock    clock.Clock
	state    runstate.State
	axis     *motion.Controller
	store    *store.Store
	runner   *runner.Runner
	menu     *menu.Coordinator
	button   Button
	displays []Display
	inbound  chan hostlink.Packet

	job    *runner.Job // current job, kept while paused
	active *runner.Job // job inside runner.Run
	done   <-chan struct{}

	polling     bool
	lastRender  time.Time
	notice      string
	noticeUntil time.Time
}

// New wires the controller around st and programs. button may be nil.
// The stepper's gate and poller are taken over by the slider.
func New(st *stepper.Stepper, programs *store.Store, button Button, clk clock.Clock, cfg Config) *Slider {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.InboundSize <= 0 {
		cfg.InboundSize = DefaultConfig.InboundSize
	}

	s := &Slider{
		cfg:     cfg,
		clock:   clk,
		store:   programs,
		button:  button,
		inbound: make(chan hostlink.Packet, cfg.InboundSize),
	}
	gate := jobGate{s}
	s.axis = motion.NewController(st, gate)
	st.SetPoller(s)
	s.runner = runner.NewRunner(s.axis, programs, gate)
	s.menu = menu.NewCoordinator(cfg.Timing, s, programs, s)
	return s
}

// AddDisplay registers a display refreshed every DisplayInterval.
func (s *Slider) AddDisplay(d Display) {
	s.displays = append(s.displays, d)
}

// Inbound is where host links send frames.
func (s *Slider) Inbound() chan<- hostlink.Packet {
	return s.inbound
}

// Label returns the run state label.
func (s *Slider) Label() runstate.Label {
	return s.state.Label()
}

// Position returns the carriage position in whole steps.
func (s *Slider) Position() int64 {
	return s.axis.Position()
}

// Job returns the current job, nil when idle.
func (s *Slider) Job() *runner.Job {
	return s.job
}

// Run schedules until ctx is cancelled. A job in progress is interrupted
// at the next chunk boundary and the motor driver is released.
func (s *Slider) Run(ctx context.Context) error {
	s.done = ctx.Done()
	debug.Info("Controller running")
	for ctx.Err() == nil {
		s.Step()
	}
	s.state.Stop()
	s.job = nil
	if err := s.axis.DisableMotors(); err != nil {
		debug.Error(err)
	}
	debug.Info("Controller stopped at position %d", s.axis.Position())
	return nil
}

// Step is one scheduler iteration: poll, then run the current job or idle
// for one tick.
func (s *Slider) Step() {
	s.PollOnce()

	if s.state.ShouldStep() && !s.stopping() {
		if s.job == nil {
			s.pickJob()
		}
		if s.job != nil {
			s.runJob(s.job)
			return
		}
	}
	s.clock.Sleep(s.cfg.IdleTick)
}

func (s *Slider) runJob(job *runner.Job) {
	s.active = job
	out, err := s.runner.Run(job)
	s.active = nil

	if s.job != job {
		// Replaced or dropped by a command while running.
		return
	}
	if err != nil || out != runner.Paused {
		s.job = nil
		s.state.Stop()
		if err != nil {
			s.Notice("ERROR")
		} else if out == runner.Completed {
			s.Notice("DONE")
		}
	}
	s.render(s.clock.Now())
}

// pickJob starts the menu selection, or the first valid program, after a
// START with nothing queued.
func (s *Slider) pickJob() {
	slot, ok := s.menu.Selected()
	if !ok {
		slots := s.store.Slots()
		if len(slots) == 0 {
			s.Notice("NO PROGRAM")
			s.state.Stop()
			return
		}
		slot = slots[0].Slot
	}
	job, err := runner.JobForSlot(s.store, slot)
	if err != nil {
		debug.Error(err)
		s.Notice("INVALID PROGRAM")
		s.state.Stop()
		return
	}
	s.job = job
}

// PollOnce services the button, the host links and the displays. It is
// called between scheduler steps and from inside every motion wait chunk.
func (s *Slider) PollOnce() {
	if s.polling {
		return
	}
	s.polling = true
	defer func() { s.polling = false }()

	now := s.clock.Now()
	if s.button != nil {
		pressed, err := s.button.Pressed()
		if err != nil {
			debug.Error(err)
		} else {
			s.menu.Sample(now, pressed)
		}
	}

	for drained := false; !drained; {
		select {
		case p := <-s.inbound:
			s.handle(p)
		default:
			drained = true
		}
	}

	s.menu.Sync(s.state.Label())

	if now.Sub(s.lastRender) >= s.cfg.DisplayInterval {
		s.render(now)
	}
}

// Summary returns the display snapshot.
func (s *Slider) Summary() Summary {
	sum := Summary{
		State:    s.state.Label().String(),
		Position: s.axis.Position(),
		Overlay:  s.menu.Overlay().String(),
		Index:    s.menu.Index(),
	}
	if s.job != nil {
		sum.Job = s.job.String()
	}
	switch s.menu.Overlay() {
	case menu.Menu:
		for _, it := range s.menu.Items() {
			sum.Items = append(sum.Items, it.Label)
		}
	case menu.PauseMenu:
		sum.Choice = s.menu.Choice().String()
	}
	if s.notice != "" && s.clock.Now().Before(s.noticeUntil) {
		sum.Notice = s.notice
	}
	return sum
}

func (s *Slider) render(now time.Time) {
	s.lastRender = now
	sum := s.Summary()
	for _, d := range s.displays {
		if err := d.Render(sum); err != nil {
			debug.Error(err)
		}
	}
}

func (s *Slider) stopping() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// RunSlot queues the program in slot and starts it.
func (s *Slider) RunSlot(slot int) {
	if s.job != nil {
		s.Notice("BUSY")
		return
	}
	job, err := runner.JobForSlot(s.store, slot)
	if err != nil {
		debug.Error(err)
		s.Notice("INVALID PROGRAM")
		return
	}
	s.job = job
	s.state.Resume()
	s.state.Start()
}

// Pause holds the current job.
func (s *Slider) Pause() {
	s.state.Pause()
}

// Resume continues a paused job.
func (s *Slider) Resume() {
	s.state.Resume()
}

// Abort stops and drops the current job.
func (s *Slider) Abort() {
	s.state.Stop()
	s.job = nil
}

// Notice shows a transient message on the displays.
func (s *Slider) Notice(text string) {
	debug.Live("Notice: %s", text)
	s.notice = text
	s.noticeUntil = s.clock.Now().Add(s.cfg.NoticeDuration)
	s.lastRender = time.Time{}
}

// jobGate lets motion continue only while the run state allows it and the
// job being executed is still the current one.
type jobGate struct {
	s *Slider
}

func (g jobGate) ShouldStep() bool {
	return g.s.state.ShouldStep() && g.s.job == g.s.active && !g.s.stopping()
}

func (g jobGate) Running() bool {
	return g.s.state.Running() && g.s.job == g.s.active
}
