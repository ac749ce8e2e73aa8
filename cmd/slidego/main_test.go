package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/SlideGo/internal/config"
	"github.com/cjeanneret/SlideGo/internal/hw/eeprom"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
	"github.com/cjeanneret/SlideGo/internal/store"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- wiring ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Stepper: config.StepperConfig{
			StepPin: 17, DirPin: 27, EnablePin: 22,
			MS1Pin: 5, MS2Pin: 6, MS3Pin: 13,
			Microstepping: 4, AccelSteps: 10, AccelDelayUs: 200,
		},
		Button: config.ButtonConfig{Pin: 26, DebounceMs: 30, MinPressMs: 60, LongPressMs: 900},
		Host:   config.HostConfig{SerialDevice: "/dev/ttyUSB0", Baud: 9600, ReadTimeoutMs: 100},
		Defaults: config.DefaultsConfig{
			SpeedMs: 3, ChunkMs: 20, DisplayIntervalMs: 250, MockGPIO: true,
		},
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := newTestConfig()
	applyFlags(cfg, "")
	if cfg.Host.SerialDevice != "/dev/ttyUSB0" {
		t.Errorf("empty flag changed device to %q", cfg.Host.SerialDevice)
	}
	applyFlags(cfg, "/dev/ttyACM0")
	if cfg.Host.SerialDevice != "/dev/ttyACM0" {
		t.Errorf("device = %q, want /dev/ttyACM0", cfg.Host.SerialDevice)
	}
}

func TestStepperConfig(t *testing.T) {
	got := stepperConfig(newTestConfig())
	want := stepper.Config{
		StepPin: 17, DirPin: 27, EnablePin: 22,
		MS1Pin: 5, MS2Pin: 6, MS3Pin: 13,
		Microstepping: 4,
		AccelSteps:    10,
		AccelDelay:    200 * time.Microsecond,
		ChunkSize:     20 * time.Millisecond,
	}
	if got != want {
		t.Errorf("stepperConfig() = %+v, want %+v", got, want)
	}
}

func TestSliderConfig(t *testing.T) {
	got := sliderConfig(newTestConfig())
	if got.DefaultSpeed != stepper.Millis(3) {
		t.Errorf("DefaultSpeed = %+v, want 3ms", got.DefaultSpeed)
	}
	if got.DisplayInterval != 250*time.Millisecond {
		t.Errorf("DisplayInterval = %v, want 250ms", got.DisplayInterval)
	}
	if got.Timing.Debounce != 30*time.Millisecond || got.Timing.MinPress != 60*time.Millisecond || got.Timing.LongPress != 900*time.Millisecond {
		t.Errorf("Timing = %+v", got.Timing)
	}
	if got.IdleTick <= 0 || got.InboundSize <= 0 {
		t.Errorf("scheduler defaults lost: %+v", got)
	}
}

func TestOpenMedium_Memory(t *testing.T) {
	m, closeFn, err := openMedium("")
	if err != nil {
		t.Fatalf("openMedium: %v", err)
	}
	defer closeFn()
	if _, ok := m.(*eeprom.Memory); !ok {
		t.Errorf("medium = %T, want *eeprom.Memory", m)
	}
	if m.Size() != store.ImageSize {
		t.Errorf("size = %d, want %d", m.Size(), store.ImageSize)
	}
}

func TestOpenMedium_FilePersistsPrograms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.img")

	m, closeFn, err := openMedium(path)
	if err != nil {
		t.Fatalf("openMedium: %v", err)
	}
	s, err := store.New(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteLoop(1, "KEEP", store.LoopProgram{Steps: 50, DelayMs: 10, Cycles: 2}); err != nil {
		t.Fatal(err)
	}
	closeFn()

	m, closeFn, err = openMedium(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer closeFn()
	s, err = store.New(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}
	if got := s.ProgramName(1); got != "KEEP" {
		t.Errorf("ProgramName(1) = %q after reopen, want KEEP", got)
	}
}
