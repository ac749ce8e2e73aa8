package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/cjeanneret/SlideGo/internal/config"
	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hostlink"
	"github.com/cjeanneret/SlideGo/internal/hw/button"
	"github.com/cjeanneret/SlideGo/internal/hw/eeprom"
	"github.com/cjeanneret/SlideGo/internal/hw/gpio"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
	"github.com/cjeanneret/SlideGo/internal/logic/menu"
	"github.com/cjeanneret/SlideGo/internal/logic/slider"
	"github.com/cjeanneret/SlideGo/internal/store"
	"github.com/cjeanneret/SlideGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	serialDevice := flag.String("serial", "", "serial device for the host link (overrides host.serial_device)")
	envFile := flag.String("env", ".env", "optional dotenv file with SLIDEGO_* overrides")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatalf("environment overrides: %v", err)
	}
	applyFlags(cfg, *serialDevice)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Open the program store
	debug.Step(2, "Opening program store")
	medium, closeMedium, err := openMedium(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("open program image failed: %v", err)
	}
	defer closeMedium()
	programs, err := store.New(medium)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	if err := programs.Initialize(); err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// Initialize stepper and button
	debug.Step(3, "Initializing stepper motor")
	motor := stepper.NewStepper(gpioDriver, stepperConfig(cfg))
	debug.PrintStruct("Stepper config", cfg.Stepper)

	var btn slider.Button
	if cfg.Button.Pin > 0 {
		in, err := button.New(gpioDriver, cfg.Button.Pin)
		if err != nil {
			log.Fatalf("init button failed: %v", err)
		}
		btn = in
		debug.Value("Button pin", cfg.Button.Pin)
	}

	debug.Summary(fmt.Sprintf("SlideGo: %d program(s) stored", len(programs.Slots())))

	debug.Step(4, "Starting controller")
	ctrl := slider.New(motor, programs, btn, nil, sliderConfig(cfg))
	ctrl.AddDisplay(&slider.LogDisplay{})

	var wg sync.WaitGroup

	if cfg.Host.SerialDevice != "" {
		link, err := hostlink.OpenSerial(hostlink.SerialConfig{
			Device:      cfg.Host.SerialDevice,
			Baud:        cfg.Host.Baud,
			ReadTimeout: cfg.ReadTimeout(),
		})
		if err != nil {
			log.Fatalf("open serial link failed: %v", err)
		}
		defer link.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.Serve(ctx, ctrl.Inbound()); err != nil && ctx.Err() == nil {
				log.Printf("serial link: %v", err)
			}
		}()
	}

	if port := webPort.port(); port > 0 {
		broadcaster := web.NewBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, broadcaster.Writer()))
		status := web.NewStatusDisplay(broadcaster)
		ctrl.AddDisplay(status)

		srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, status, ctrl.Inbound())
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	if err := ctrl.Run(ctx); err != nil {
		log.Printf("controller: %v", err)
	}
	wg.Wait()
}

// applyFlags applies command-line overrides on top of config and environment.
func applyFlags(cfg *config.Config, serialDevice string) {
	if serialDevice != "" {
		cfg.Host.SerialDevice = serialDevice
	}
}

// openMedium returns the program image: a locked file when path is set,
// RAM otherwise.
func openMedium(path string) (eeprom.Medium, func(), error) {
	if path == "" {
		debug.Info("No storage path, programs are kept in memory")
		return eeprom.NewMemory(store.ImageSize), func() {}, nil
	}
	f, err := eeprom.OpenFile(path, store.ImageSize)
	if err != nil {
		return nil, nil, err
	}
	debug.Value("Program image", path)
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("closing program image failed: %v", err)
		}
	}, nil
}

func stepperConfig(cfg *config.Config) stepper.Config {
	return stepper.Config{
		StepPin:       cfg.Stepper.StepPin,
		DirPin:        cfg.Stepper.DirPin,
		EnablePin:     cfg.Stepper.EnablePin,
		MS1Pin:        cfg.Stepper.MS1Pin,
		MS2Pin:        cfg.Stepper.MS2Pin,
		MS3Pin:        cfg.Stepper.MS3Pin,
		Microstepping: cfg.Stepper.Microstepping,
		AccelSteps:    cfg.Stepper.AccelSteps,
		AccelDelay:    cfg.AccelDelay(),
		ChunkSize:     cfg.Chunk(),
	}
}

func sliderConfig(cfg *config.Config) slider.Config {
	sc := slider.DefaultConfig
	sc.DefaultSpeed = stepper.Millis(uint32(cfg.Defaults.SpeedMs))
	sc.DisplayInterval = cfg.DisplayInterval()
	sc.Timing = menu.Timing{
		Debounce:  cfg.Debounce(),
		MinPress:  cfg.MinPress(),
		LongPress: cfg.LongPress(),
	}
	return sc
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
