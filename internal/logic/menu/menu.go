// Package menu turns single-button gestures into run-state intents and
// keeps the on-device menu overlay.
package menu

import (
	"fmt"
	"time"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/logic/runstate"
	"github.com/cjeanneret/SlideGo/internal/store"
)

// Overlay is the UI layer shown on top of the run state.
type Overlay int

const (
	None Overlay = iota
	Menu
	PauseMenu
)

func (o Overlay) String() string {
	switch o {
	case Menu:
		return "MENU"
	case PauseMenu:
		return "PAUSE_MENU"
	}
	return "NONE"
}

// Choice is the highlighted entry of the pause menu.
type Choice int

const (
	ChoiceResume Choice = iota
	ChoiceAbort
)

func (c Choice) String() string {
	if c == ChoiceAbort {
		return "ABORT"
	}
	return "RESUME"
}

// InfoLabel is the trailing menu entry that shows the carriage position.
const InfoLabel = "INFO"

// Item is one menu entry: a stored program or the INFO entry.
type Item struct {
	Slot  int // -1 for INFO
	Label string
}

// Info reports whether the item is the INFO entry.
func (it Item) Info() bool { return it.Slot < 0 }

// Press is a classified button gesture.
type Press int

const (
	NoPress Press = iota
	ShortPress
	LongPress
)

func (p Press) String() string {
	switch p {
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	}
	return "none"
}

// Timing holds the button thresholds.
type Timing struct {
	Debounce  time.Duration // level must be stable longer than this
	MinPress  time.Duration // shorter presses are noise
	LongPress time.Duration // at or above is a long press
}

// DefaultTiming matches the stock button wiring.
var DefaultTiming = Timing{
	Debounce:  50 * time.Millisecond,
	MinPress:  50 * time.Millisecond,
	LongPress: 1000 * time.Millisecond,
}

// Actions receives the intents produced by gestures. The coordinator never
// touches hardware itself.
type Actions interface {
	RunSlot(slot int)
	Pause()
	Resume()
	Abort()
	Notice(text string)
}

// Programs lists the runnable slots. store.Store satisfies it.
type Programs interface {
	Slots() []store.SlotInfo
}

// StateView exposes the run state and the carriage position.
type StateView interface {
	Label() runstate.Label
	Position() int64
}

// Coordinator debounces the button, classifies presses and drives the
// overlay state machine.
type Coordinator struct {
	timing   Timing
	state    StateView
	programs Programs
	actions  Actions

	overlay Overlay
	items   []Item
	index   int
	choice  Choice

	started  bool
	raw      bool
	rawSince time.Time
	stable   bool
	pressAt  time.Time
}

func NewCoordinator(t Timing, state StateView, programs Programs, actions Actions) *Coordinator {
	return &Coordinator{
		timing:   t,
		state:    state,
		programs: programs,
		actions:  actions,
	}
}

// Sample feeds one button level taken at now. It returns the gesture
// recognised on this sample, if any, after acting on it.
func (c *Coordinator) Sample(now time.Time, pressed bool) Press {
	if !c.started {
		c.started = true
		c.raw, c.stable, c.rawSince = pressed, pressed, now
		return NoPress
	}
	if pressed != c.raw {
		c.raw, c.rawSince = pressed, now
		return NoPress
	}
	if c.raw == c.stable || now.Sub(c.rawSince) <= c.timing.Debounce {
		return NoPress
	}

	c.stable = c.raw
	if c.stable {
		c.pressAt = c.rawSince
		debug.Trace("Button down at %v", c.pressAt)
		return NoPress
	}

	held := c.rawSince.Sub(c.pressAt)
	p := c.classify(held)
	debug.Button(p.String(), held)
	if p != NoPress {
		c.Handle(p)
	}
	return p
}

func (c *Coordinator) classify(held time.Duration) Press {
	switch {
	case held < c.timing.MinPress:
		return NoPress
	case held >= c.timing.LongPress:
		return LongPress
	}
	return ShortPress
}

// Handle applies a classified gesture to the overlay and run state.
func (c *Coordinator) Handle(p Press) {
	switch c.overlay {
	case None:
		c.handleNone(p)
	case Menu:
		c.handleMenu(p)
	case PauseMenu:
		c.handlePauseMenu(p)
	}
}

func (c *Coordinator) handleNone(p Press) {
	switch c.state.Label() {
	case runstate.Idle:
		c.openMenu()
	case runstate.Running:
		if p == LongPress {
			c.actions.Pause()
			c.openPauseMenu()
		}
	case runstate.Paused:
		c.openPauseMenu()
	}
}

func (c *Coordinator) handleMenu(p Press) {
	if len(c.items) == 0 {
		c.openMenu()
	}
	if p == ShortPress {
		c.index = (c.index + 1) % len(c.items)
		debug.Verbose("Menu: %s", c.items[c.index].Label)
		return
	}

	it := c.items[c.index]
	if it.Info() {
		c.actions.Notice(fmt.Sprintf("POS:%d", c.state.Position()))
		c.openMenu()
		return
	}
	c.overlay = None
	c.actions.RunSlot(it.Slot)
}

func (c *Coordinator) handlePauseMenu(p Press) {
	if p == ShortPress {
		if c.choice == ChoiceResume {
			c.choice = ChoiceAbort
		} else {
			c.choice = ChoiceResume
		}
		return
	}

	if c.choice == ChoiceResume {
		c.overlay = None
		c.actions.Resume()
		return
	}
	c.actions.Abort()
	c.openMenu()
}

// Sync reconciles the overlay with run-state changes made elsewhere, such as
// a host STOP while the pause menu is shown.
func (c *Coordinator) Sync(label runstate.Label) {
	switch {
	case c.overlay == PauseMenu && label == runstate.Idle:
		c.openMenu()
	case c.overlay == PauseMenu && label == runstate.Running:
		c.overlay = None
	case c.overlay == Menu && label != runstate.Idle:
		c.overlay = None
	}
}

func (c *Coordinator) openMenu() {
	c.items = c.items[:0]
	for _, s := range c.programs.Slots() {
		c.items = append(c.items, Item{Slot: s.Slot, Label: s.Name})
	}
	c.items = append(c.items, Item{Slot: -1, Label: InfoLabel})
	c.index = 0
	c.overlay = Menu
	debug.Verbose("Menu: %d program(s)", len(c.items)-1)
}

func (c *Coordinator) openPauseMenu() {
	c.overlay = PauseMenu
	c.choice = ChoiceResume
}

func (c *Coordinator) Overlay() Overlay { return c.overlay }
func (c *Coordinator) Choice() Choice   { return c.choice }
func (c *Coordinator) Index() int       { return c.index }

// Items returns a copy of the menu entries.
func (c *Coordinator) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Selected returns the highlighted program slot while the menu is open.
func (c *Coordinator) Selected() (int, bool) {
	if c.overlay != Menu || c.index >= len(c.items) || c.items[c.index].Info() {
		return 0, false
	}
	return c.items[c.index].Slot, true
}
