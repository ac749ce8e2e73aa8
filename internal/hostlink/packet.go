// Package hostlink carries command frames between host transports and the
// controller goroutine.
package hostlink

import (
	"context"
	"errors"
)

// Packet is one inbound frame plus the way to answer it. Reply must be safe
// to call from the controller goroutine and must not block for long.
type Packet struct {
	Data   []byte
	Text   bool // legacy text line
	Source string
	Reply  func([]byte)
}

// ErrIdle reports a read timeout with no data. Links keep waiting.
var ErrIdle = errors.New("hostlink: read timeout")

// Send hands p to the controller, giving up when ctx is done.
func Send(ctx context.Context, out chan<- Packet, p Packet) error {
	select {
	case out <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
