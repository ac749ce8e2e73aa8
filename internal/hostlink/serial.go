package hostlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/protocol"
)

// SerialConfig selects the host serial port.
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// OpenPort opens the serial device with tarm/serial.
func OpenPort(cfg SerialConfig) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Serial is the host link over a byte stream.
type Serial struct {
	name string
	port io.ReadWriteCloser
	mu   sync.Mutex // serializes replies
}

// OpenSerial opens cfg.Device and wraps it in a link.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	port, err := OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	debug.Info("Serial link on %s at %d baud", cfg.Device, cfg.Baud)
	return NewSerial(cfg.Device, port), nil
}

// NewSerial wraps an already open stream.
func NewSerial(name string, port io.ReadWriteCloser) *Serial {
	return &Serial{name: name, port: port}
}

// Serve reads frames until ctx is done or the stream fails, sending each to
// out. Read timeouts are not errors.
func (s *Serial) Serve(ctx context.Context, out chan<- Packet) error {
	fr := protocol.NewFrameReader(IdleReader{R: s.port})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := fr.Next()
		if errors.Is(err, ErrIdle) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				debug.Info("Serial link %s closed", s.name)
				return nil
			}
			return fmt.Errorf("serial %s: %w", s.name, err)
		}

		debug.Frame(f.Data)
		p := Packet{Data: f.Data, Text: f.Text, Source: s.name, Reply: s.reply}
		if err := Send(ctx, out, p); err != nil {
			return err
		}
	}
}

func (s *Serial) reply(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.port.Write(b); err != nil {
		debug.Error(fmt.Errorf("serial %s reply: %w", s.name, err))
	}
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// IdleReader turns the (0, nil) result of a timed-out serial read into
// ErrIdle, so buffered readers do not treat it as a stalled stream.
type IdleReader struct {
	R io.Reader
}

func (r IdleReader) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrIdle
	}
	return n, err
}
