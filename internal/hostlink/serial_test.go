package hostlink

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/SlideGo/internal/protocol"
	"github.com/cjeanneret/SlideGo/internal/store"
)

func recv(t *testing.T, ch <-chan Packet) Packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no packet")
	}
	return Packet{}
}

func TestSerial_ServeDeliversFrames(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()

	link := NewSerial("pipe", dev)
	out := make(chan Packet, 4)
	done := make(chan error, 1)
	go func() { done <- link.Serve(context.Background(), out) }()

	go func() {
		_, _ = host.Write(append([]byte{byte(protocol.OpPing)}, "LOOP 1 2\n"...))
	}()

	p := recv(t, out)
	assert.Equal(t, []byte{byte(protocol.OpPing)}, p.Data)
	assert.False(t, p.Text)
	assert.Equal(t, "pipe", p.Source)

	text := recv(t, out)
	assert.True(t, text.Text)
	assert.Equal(t, "LOOP 1 2", string(text.Data))

	go p.Reply(protocol.Pong)
	buf := make([]byte, len(protocol.Pong))
	_, err := io.ReadFull(host, buf)
	require.NoError(t, err)
	assert.Equal(t, "PONG\n", string(buf))

	require.NoError(t, host.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after close")
	}
}

func TestSerial_ServeStopsOnCancel(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	link := NewSerial("pipe", dev)
	out := make(chan Packet) // unbuffered and never read
	done := make(chan error, 1)
	go func() { done <- link.Serve(ctx, out) }()

	wrote := make(chan struct{})
	go func() {
		_, _ = host.Write([]byte{byte(protocol.OpStop)})
		close(wrote)
	}()
	<-wrote
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

type idleOnce struct {
	idle bool
	data []byte
}

func (r *idleOnce) Read(p []byte) (int, error) {
	if !r.idle {
		r.idle = true
		return 0, nil
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestIdleReader(t *testing.T) {
	r := IdleReader{R: &idleOnce{data: []byte{1, 2}}}
	buf := make([]byte, 4)

	_, err := r.Read(buf)
	assert.True(t, errors.Is(err, ErrIdle))

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = r.Read(buf)
	assert.Equal(t, io.EOF, err)
}

// fakeController answers each frame read from dev with reply(frame).
func fakeController(t *testing.T, dev net.Conn, reply func(protocol.Command) []byte) {
	t.Helper()
	go func() {
		fr := protocol.NewFrameReader(dev)
		for {
			f, err := fr.Next()
			if err != nil {
				return
			}
			cmd, err := protocol.Decode(f.Data)
			if err != nil {
				_, _ = dev.Write(protocol.DecodeErrorReply(f.Data, err))
				continue
			}
			if _, err := dev.Write(reply(cmd)); err != nil {
				return
			}
		}
	}()
}

func TestClient_Do(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()
	defer dev.Close()

	dump := protocol.EncodeDump([]protocol.DumpEntry{
		{Slot: 1, Type: store.TypeLoop, Name: "A", Loop: store.LoopProgram{Steps: 10, DelayMs: 10, Cycles: 1}},
	})
	fakeController(t, dev, func(cmd protocol.Command) []byte {
		switch cmd.Op {
		case protocol.OpPing:
			return protocol.Pong
		case protocol.OpGetAllData:
			return dump
		}
		return protocol.OK(cmd.Op.String())
	})

	c := NewClient(host, time.Second)

	got, err := c.Do(protocol.Command{Op: protocol.OpPing})
	require.NoError(t, err)
	assert.Equal(t, "PONG\n", string(got))

	got, err = c.Do(protocol.Command{Op: protocol.OpRun, Slot: 1})
	require.NoError(t, err)
	assert.Equal(t, "OK RUN\n", string(got))

	got, err = c.Do(protocol.Command{Op: protocol.OpGetAllData})
	require.NoError(t, err)
	assert.Equal(t, dump, got)
}
