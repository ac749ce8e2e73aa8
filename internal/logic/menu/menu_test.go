package menu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/SlideGo/internal/logic/runstate"
	"github.com/cjeanneret/SlideGo/internal/store"
)

type fakeState struct {
	label    runstate.Label
	position int64
}

func (f *fakeState) Label() runstate.Label { return f.label }
func (f *fakeState) Position() int64       { return f.position }

type fakePrograms []store.SlotInfo

func (f fakePrograms) Slots() []store.SlotInfo { return f }

type recorder struct {
	calls   []string
	runs    []int
	notices []string
}

func (r *recorder) RunSlot(slot int) { r.calls = append(r.calls, "run"); r.runs = append(r.runs, slot) }
func (r *recorder) Pause()           { r.calls = append(r.calls, "pause") }
func (r *recorder) Resume()          { r.calls = append(r.calls, "resume") }
func (r *recorder) Abort()           { r.calls = append(r.calls, "abort") }
func (r *recorder) Notice(text string) {
	r.calls = append(r.calls, "notice")
	r.notices = append(r.notices, text)
}

type harness struct {
	now   time.Time
	state *fakeState
	acts  *recorder
	c     *Coordinator
}

func newHarness() *harness {
	h := &harness{
		now:   time.Unix(1000, 0),
		state: &fakeState{},
		acts:  &recorder{},
	}
	programs := fakePrograms{
		{Slot: 0, Type: store.TypeLoop, Name: "SWEEP"},
		{Slot: 3, Type: store.TypeComplex, Name: "PATH"},
	}
	h.c = NewCoordinator(DefaultTiming, h.state, programs, h.acts)
	h.hold(false, 100*time.Millisecond)
	return h
}

// hold samples level every 10 ms for d and returns the last gesture seen.
func (h *harness) hold(pressed bool, d time.Duration) Press {
	got := NoPress
	for t := time.Duration(0); t < d; t += 10 * time.Millisecond {
		if p := h.c.Sample(h.now, pressed); p != NoPress {
			got = p
		}
		h.now = h.now.Add(10 * time.Millisecond)
	}
	return got
}

func (h *harness) press(d time.Duration) Press {
	if p := h.hold(true, d); p != NoPress {
		return p
	}
	return h.hold(false, 100*time.Millisecond)
}

func TestSample_Classification(t *testing.T) {
	tests := []struct {
		name string
		held time.Duration
		want Press
	}{
		{"glitch", 30 * time.Millisecond, NoPress},
		{"not_debounced", 50 * time.Millisecond, NoPress},
		{"shortest", 70 * time.Millisecond, ShortPress},
		{"short", 300 * time.Millisecond, ShortPress},
		{"just_below_long", 990 * time.Millisecond, ShortPress},
		{"long", 1000 * time.Millisecond, LongPress},
		{"very_long", 5 * time.Second, LongPress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			assert.Equal(t, tt.want, h.press(tt.held))
		})
	}
}

func TestClassify_MinPress(t *testing.T) {
	c := NewCoordinator(DefaultTiming, &fakeState{}, fakePrograms{}, &recorder{})
	assert.Equal(t, NoPress, c.classify(49*time.Millisecond))
	assert.Equal(t, ShortPress, c.classify(50*time.Millisecond))
	assert.Equal(t, ShortPress, c.classify(999*time.Millisecond))
	assert.Equal(t, LongPress, c.classify(time.Second))
}

func TestSample_BounceIgnored(t *testing.T) {
	h := newHarness()
	for i := 0; i < 10; i++ {
		h.c.Sample(h.now, i%2 == 0)
		h.now = h.now.Add(5 * time.Millisecond)
	}
	assert.Equal(t, NoPress, h.hold(false, 200*time.Millisecond))
	assert.Equal(t, None, h.c.Overlay())
}

func TestIdle_PressOpensMenu(t *testing.T) {
	for _, d := range []time.Duration{200 * time.Millisecond, 1500 * time.Millisecond} {
		h := newHarness()
		h.press(d)
		require.Equal(t, Menu, h.c.Overlay())
		assert.Equal(t, []Item{{0, "SWEEP"}, {3, "PATH"}, {-1, InfoLabel}}, h.c.Items())
		assert.Equal(t, 0, h.c.Index())
		assert.Empty(t, h.acts.calls)
	}
}

func TestMenu_ShortPressWraps(t *testing.T) {
	h := newHarness()
	h.press(200 * time.Millisecond)

	var seen []int
	for i := 0; i < 4; i++ {
		h.press(200 * time.Millisecond)
		seen = append(seen, h.c.Index())
	}
	assert.Equal(t, []int{1, 2, 0, 1}, seen)
}

func TestMenu_LongPressRunsProgram(t *testing.T) {
	h := newHarness()
	h.press(200 * time.Millisecond)
	h.press(200 * time.Millisecond)

	slot, ok := h.c.Selected()
	require.True(t, ok)
	assert.Equal(t, 3, slot)

	h.press(1200 * time.Millisecond)
	assert.Equal(t, None, h.c.Overlay())
	assert.Equal(t, []int{3}, h.acts.runs)
}

func TestMenu_InfoShowsPosition(t *testing.T) {
	h := newHarness()
	h.state.position = -42
	h.press(200 * time.Millisecond)
	h.press(200 * time.Millisecond)
	h.press(200 * time.Millisecond)

	_, ok := h.c.Selected()
	assert.False(t, ok, "INFO is not a program")

	h.press(1200 * time.Millisecond)
	assert.Equal(t, []string{"POS:-42"}, h.acts.notices)
	assert.Equal(t, Menu, h.c.Overlay())
	assert.Equal(t, 0, h.c.Index())
	assert.Empty(t, h.acts.runs)
}

func TestMenu_EmptyStoreOnlyInfo(t *testing.T) {
	acts := &recorder{}
	c := NewCoordinator(DefaultTiming, &fakeState{}, fakePrograms{}, acts)
	c.Handle(ShortPress)
	require.Equal(t, Menu, c.Overlay())
	assert.Equal(t, []Item{{-1, InfoLabel}}, c.Items())

	c.Handle(ShortPress)
	assert.Equal(t, 0, c.Index())
}

func TestRunning_ShortPressIgnored(t *testing.T) {
	h := newHarness()
	h.state.label = runstate.Running
	h.press(200 * time.Millisecond)
	assert.Equal(t, None, h.c.Overlay())
	assert.Empty(t, h.acts.calls)
}

func TestRunning_LongPressPauses(t *testing.T) {
	h := newHarness()
	h.state.label = runstate.Running
	h.press(1200 * time.Millisecond)

	assert.Equal(t, PauseMenu, h.c.Overlay())
	assert.Equal(t, ChoiceResume, h.c.Choice())
	assert.Equal(t, []string{"pause"}, h.acts.calls)
}

func TestPauseMenu_Resume(t *testing.T) {
	c := NewCoordinator(DefaultTiming, &fakeState{label: runstate.Running}, fakePrograms{}, &recorder{})
	acts := c.actions.(*recorder)
	c.Handle(LongPress)
	c.Handle(LongPress)

	assert.Equal(t, None, c.Overlay())
	assert.Equal(t, []string{"pause", "resume"}, acts.calls)
}

func TestPauseMenu_Abort(t *testing.T) {
	state := &fakeState{label: runstate.Running}
	acts := &recorder{}
	c := NewCoordinator(DefaultTiming, state, fakePrograms{{Slot: 1, Name: "A"}}, acts)
	c.Handle(LongPress)
	c.Handle(ShortPress)
	require.Equal(t, ChoiceAbort, c.Choice())
	c.Handle(ShortPress)
	require.Equal(t, ChoiceResume, c.Choice())
	c.Handle(ShortPress)

	c.Handle(LongPress)
	assert.Equal(t, Menu, c.Overlay())
	assert.Equal(t, []string{"pause", "abort"}, acts.calls)
	assert.Len(t, c.Items(), 2)
}

func TestSync(t *testing.T) {
	state := &fakeState{label: runstate.Running}
	c := NewCoordinator(DefaultTiming, state, fakePrograms{}, &recorder{})

	c.Handle(LongPress)
	require.Equal(t, PauseMenu, c.Overlay())
	c.Sync(runstate.Paused)
	assert.Equal(t, PauseMenu, c.Overlay())

	c.Sync(runstate.Idle)
	assert.Equal(t, Menu, c.Overlay(), "host stop during pause menu")

	c.Sync(runstate.Running)
	assert.Equal(t, None, c.Overlay(), "run started while browsing")

	c.Handle(LongPress)
	c.Sync(runstate.Running)
	assert.Equal(t, None, c.Overlay(), "host resumed")
}
