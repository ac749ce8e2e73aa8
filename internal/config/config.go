package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 * 1024

// StepperConfig holds the configuration for the carriage stepper.
type StepperConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // driver ENABLE pin (BCM). 0 = not used. Active LOW.
	MS1Pin        int `yaml:"ms1_pin"`    // microstep select lines. 0 = not wired.
	MS2Pin        int `yaml:"ms2_pin"`
	MS3Pin        int `yaml:"ms3_pin"`
	Microstepping int `yaml:"microstepping"`
	AccelSteps    int `yaml:"accel_steps"`    // ramp length in whole steps
	AccelDelayUs  int `yaml:"accel_delay_us"` // extra delay per ramp pulse
}

// ButtonConfig describes the single push button. Pin 0 means no button.
type ButtonConfig struct {
	Pin         int `yaml:"pin"`
	DebounceMs  int `yaml:"debounce_ms"`
	MinPressMs  int `yaml:"min_press_ms"`
	LongPressMs int `yaml:"long_press_ms"`
}

// StorageConfig locates the program image. An empty path keeps it in memory.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// HostConfig describes the serial host link. An empty device disables it.
type HostConfig struct {
	SerialDevice  string `yaml:"serial_device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// DefaultsConfig contains generic parameters (speed, timings, debug).
type DefaultsConfig struct {
	SpeedMs           int  `yaml:"speed_ms"`            // per-step time for POS and HOME
	ChunkMs           int  `yaml:"chunk_ms"`            // longest uninterrupted wait
	DisplayIntervalMs int  `yaml:"display_interval_ms"` // display refresh period
	DebugLevel        int  `yaml:"debug_level"`         // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO          bool `yaml:"mock_gpio"`           // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Stepper  StepperConfig  `yaml:"stepper"`
	Button   ButtonConfig   `yaml:"button"`
	Storage  StorageConfig  `yaml:"storage"`
	Host     HostConfig     `yaml:"host"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files whose parent directory is
// named configs.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	// Basic validation
	if cfg.Stepper.StepPin <= 0 || cfg.Stepper.DirPin <= 0 {
		return fmt.Errorf("stepper.step_pin and stepper.dir_pin are required")
	}
	if cfg.Stepper.StepPin == cfg.Stepper.DirPin {
		return fmt.Errorf("stepper.step_pin and stepper.dir_pin must differ, both %d", cfg.Stepper.StepPin)
	}
	switch cfg.Stepper.Microstepping {
	case 0:
		cfg.Stepper.Microstepping = 1
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("stepper.microstepping must be 1, 2, 4, 8 or 16, got %d", cfg.Stepper.Microstepping)
	}
	if cfg.Stepper.AccelSteps < 0 || cfg.Stepper.AccelDelayUs < 0 {
		return fmt.Errorf("stepper acceleration settings must not be negative")
	}

	if cfg.Button.DebounceMs <= 0 {
		cfg.Button.DebounceMs = 50
	}
	if cfg.Button.MinPressMs <= 0 {
		cfg.Button.MinPressMs = 50
	}
	if cfg.Button.LongPressMs <= 0 {
		cfg.Button.LongPressMs = 1000
	}
	if cfg.Button.LongPressMs <= cfg.Button.MinPressMs {
		return fmt.Errorf("button.long_press_ms (%d) must exceed min_press_ms (%d)", cfg.Button.LongPressMs, cfg.Button.MinPressMs)
	}

	if cfg.Host.Baud <= 0 {
		cfg.Host.Baud = 9600
	}
	if cfg.Host.ReadTimeoutMs <= 0 {
		cfg.Host.ReadTimeoutMs = 100
	}

	if cfg.Defaults.SpeedMs <= 0 {
		cfg.Defaults.SpeedMs = 1 // stock firmware POS speed
	}
	if cfg.Defaults.ChunkMs <= 0 {
		cfg.Defaults.ChunkMs = 10
	}
	if cfg.Defaults.DisplayIntervalMs <= 0 {
		cfg.Defaults.DisplayIntervalMs = 500
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	return nil
}

// Environment overrides.
const (
	EnvSerialDevice = "SLIDEGO_SERIAL_DEVICE"
	EnvStoragePath  = "SLIDEGO_STORAGE_PATH"
	EnvDebugLevel   = "SLIDEGO_DEBUG_LEVEL"
	EnvMockGPIO     = "SLIDEGO_MOCK_GPIO"
)

// ApplyEnv loads envFiles (missing files are skipped) into the process
// environment without overriding variables already set, then applies the
// SLIDEGO_* overrides to cfg.
func (cfg *Config) ApplyEnv(envFiles ...string) error {
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}

	if v, ok := os.LookupEnv(EnvSerialDevice); ok {
		cfg.Host.SerialDevice = v
	}
	if v, ok := os.LookupEnv(EnvStoragePath); ok {
		cfg.Storage.Path = v
	}
	if v, ok := os.LookupEnv(EnvDebugLevel); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 4 {
			return fmt.Errorf("%s must be 0-4, got %q", EnvDebugLevel, v)
		}
		cfg.Defaults.DebugLevel = n
	}
	if v, ok := os.LookupEnv(EnvMockGPIO); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMockGPIO, err)
		}
		cfg.Defaults.MockGPIO = b
	}
	return nil
}

// MoveSpeed returns the per-step time for POS and HOME.
func (c *Config) MoveSpeed() time.Duration {
	return time.Duration(c.Defaults.SpeedMs) * time.Millisecond
}

// Chunk returns the longest uninterrupted wait.
func (c *Config) Chunk() time.Duration {
	return time.Duration(c.Defaults.ChunkMs) * time.Millisecond
}

// DisplayInterval returns the display refresh period.
func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.Defaults.DisplayIntervalMs) * time.Millisecond
}

// AccelDelay returns the extra delay per ramp pulse.
func (c *Config) AccelDelay() time.Duration {
	return time.Duration(c.Stepper.AccelDelayUs) * time.Microsecond
}

// ReadTimeout returns the serial read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Host.ReadTimeoutMs) * time.Millisecond
}

// Debounce returns the button debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

// MinPress returns the shortest accepted press.
func (c *Config) MinPress() time.Duration {
	return time.Duration(c.Button.MinPressMs) * time.Millisecond
}

// LongPress returns the hold time that makes a press long.
func (c *Config) LongPress() time.Duration {
	return time.Duration(c.Button.LongPressMs) * time.Millisecond
}
