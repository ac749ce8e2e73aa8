// Command slidectl talks to a SlideGo controller over a serial port.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cjeanneret/SlideGo/internal/config"
	"github.com/cjeanneret/SlideGo/internal/hostlink"
	"github.com/cjeanneret/SlideGo/internal/protocol"
	"github.com/cjeanneret/SlideGo/internal/store"
)

var errUsage = errors.New("usage")

const usage = `usage: slidectl [flags] <command> [args]

commands:
  ping
  start | stop | home | sethome
  run <id>
  move <pos> [speedMs]
  save-loop <id> <name> <steps> <delayMs> [cycles]
  save-complex <id> <name> <pos:speedMs:pauseMs>...
  dump

flags:
`

func main() {
	device := flag.String("device", os.Getenv(config.EnvSerialDevice), "serial device of the controller")
	baud := flag.Int("baud", 9600, "baud rate")
	timeout := flag.Duration("timeout", 3*time.Second, "reply timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}
	if *device == "" {
		log.Fatalf("no serial device: use -device or %s", config.EnvSerialDevice)
	}

	port, err := hostlink.OpenPort(hostlink.SerialConfig{
		Device:      *device,
		Baud:        *baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer port.Close()

	reply, err := hostlink.NewClient(port, *timeout).Do(cmd)
	if err != nil {
		log.Fatalf("%s: %v", cmd.Op, err)
	}
	if err := printReply(os.Stdout, cmd, reply); err != nil {
		log.Fatalf("%v", err)
	}
}

// parseCommand turns command-line arguments into a frame.
func parseCommand(args []string) (protocol.Command, error) {
	if len(args) == 0 {
		return protocol.Command{}, errUsage
	}
	verb, rest := strings.ToLower(args[0]), args[1:]

	want := func(lo, hi int) error {
		if len(rest) < lo || len(rest) > hi {
			return fmt.Errorf("%s: %w", verb, errUsage)
		}
		return nil
	}

	switch verb {
	case "ping", "start", "stop", "home", "sethome", "dump":
		if err := want(0, 0); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: map[string]protocol.Opcode{
			"ping":    protocol.OpPing,
			"start":   protocol.OpStart,
			"stop":    protocol.OpStop,
			"home":    protocol.OpHome,
			"sethome": protocol.OpSetHome,
			"dump":    protocol.OpGetAllData,
		}[verb]}, nil

	case "run":
		if err := want(1, 1); err != nil {
			return protocol.Command{}, err
		}
		slot, err := parseUint(rest[0], "id", 8)
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: protocol.OpRun, Slot: int(slot)}, nil

	case "move":
		if err := want(1, 2); err != nil {
			return protocol.Command{}, err
		}
		pos, err := parseUint(rest[0], "pos", 16)
		if err != nil {
			return protocol.Command{}, err
		}
		if len(rest) == 1 {
			return protocol.Command{Op: protocol.OpPos, Position: uint16(pos)}, nil
		}
		speed, err := parseUint(rest[1], "speedMs", 32)
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: protocol.OpPosWithSpeed, Position: uint16(pos), SpeedMs: uint32(speed)}, nil

	case "save-loop":
		if err := want(4, 5); err != nil {
			return protocol.Command{}, err
		}
		slot, err := parseUint(rest[0], "id", 8)
		if err != nil {
			return protocol.Command{}, err
		}
		steps, err := parseUint(rest[2], "steps", 16)
		if err != nil {
			return protocol.Command{}, err
		}
		delay, err := parseUint(rest[3], "delayMs", 32)
		if err != nil {
			return protocol.Command{}, err
		}
		var cycles uint64
		if len(rest) == 5 {
			if cycles, err = parseUint(rest[4], "cycles", 8); err != nil {
				return protocol.Command{}, err
			}
		}
		return protocol.Command{
			Op:   protocol.OpSaveLoop,
			Slot: int(slot),
			Name: rest[1],
			Loop: store.LoopProgram{Steps: uint16(steps), DelayMs: uint32(delay), Cycles: uint8(cycles)},
		}, nil

	case "save-complex":
		if err := want(2, 2+store.MaxStepsPerProgram); err != nil {
			return protocol.Command{}, err
		}
		slot, err := parseUint(rest[0], "id", 8)
		if err != nil {
			return protocol.Command{}, err
		}
		var prog store.ComplexProgram
		for _, arg := range rest[2:] {
			step, err := parseStep(arg)
			if err != nil {
				return protocol.Command{}, err
			}
			prog.Steps = append(prog.Steps, step)
		}
		return protocol.Command{Op: protocol.OpSaveComplex, Slot: int(slot), Name: rest[1], Complex: prog}, nil
	}
	return protocol.Command{}, fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}

func parseUint(s, what string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return v, nil
}

// parseStep reads pos:speedMs:pauseMs.
func parseStep(s string) (store.MovementStep, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return store.MovementStep{}, fmt.Errorf("step %q must be pos:speedMs:pauseMs", s)
	}
	pos, err := parseUint(parts[0], "pos", 16)
	if err != nil {
		return store.MovementStep{}, err
	}
	speed, err := parseUint(parts[1], "speedMs", 32)
	if err != nil {
		return store.MovementStep{}, err
	}
	pause, err := parseUint(parts[2], "pauseMs", 16)
	if err != nil {
		return store.MovementStep{}, err
	}
	return store.MovementStep{Position: uint16(pos), Speed: uint32(speed), PauseMs: uint16(pause)}, nil
}

// printReply writes a text reply as is and a dump as one line per program.
func printReply(w io.Writer, cmd protocol.Command, reply []byte) error {
	if cmd.Op != protocol.OpGetAllData {
		_, err := fmt.Fprint(w, string(reply))
		return err
	}
	entries, err := protocol.ParseDump(reply)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no programs")
		return nil
	}
	for _, e := range entries {
		switch e.Type {
		case store.TypeLoop:
			fmt.Fprintf(w, "%d %-8s loop steps=%d delay=%dms cycles=%d\n",
				e.Slot, e.Name, e.Loop.Steps, e.Loop.DelayMs, e.Loop.Cycles)
		case store.TypeComplex:
			fmt.Fprintf(w, "%d %-8s complex %d step(s)\n", e.Slot, e.Name, len(e.Complex.Steps))
			for i, s := range e.Complex.Steps {
				fmt.Fprintf(w, "    %d: pos=%d speed=%dms pause=%dms\n", i, s.Position, s.Speed, s.PauseMs)
			}
		}
	}
	return nil
}
