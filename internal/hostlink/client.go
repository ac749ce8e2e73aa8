package hostlink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/SlideGo/internal/protocol"
)

// ErrNoReply is returned when the controller does not answer in time.
var ErrNoReply = errors.New("hostlink: no reply")

// Client sends frames to a controller and reads its replies.
type Client struct {
	w       io.Writer
	r       *bufio.Reader
	timeout time.Duration
}

// NewClient talks over rw. Reads returning (0, nil) count as idle time.
func NewClient(rw io.ReadWriter, timeout time.Duration) *Client {
	return &Client{
		w:       rw,
		r:       bufio.NewReader(IdleReader{R: rw}),
		timeout: timeout,
	}
}

// Do sends cmd and returns its reply: the dump for GET_ALL_DATA, one line
// otherwise.
func (c *Client) Do(cmd protocol.Command) ([]byte, error) {
	if _, err := c.w.Write(protocol.Encode(cmd)); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.Op, err)
	}
	if cmd.Op == protocol.OpGetAllData {
		return c.readDump()
	}
	return c.readLine()
}

func (c *Client) readLine() ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	var line []byte
	for {
		chunk, err := c.r.ReadBytes('\n')
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case !errors.Is(err, ErrIdle):
			return line, err
		case time.Now().After(deadline):
			return line, ErrNoReply
		}
	}
}

func (c *Client) readDump() ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	var buf []byte
	for {
		if n, ok := protocol.DumpLen(buf); ok {
			return buf[:n], nil
		}
		b, err := c.r.ReadByte()
		if err == nil {
			buf = append(buf, b)
			continue
		}
		if !errors.Is(err, ErrIdle) {
			return buf, err
		}
		if time.Now().After(deadline) {
			return buf, ErrNoReply
		}
	}
}
