package protocol

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cjeanneret/SlideGo/internal/store"
)

// Frame is one unit read from a byte stream: a binary command frame, or a
// legacy text line when Text is set.
type Frame struct {
	Data []byte
	Text bool
}

// FrameReader splits a byte stream into frames. The stream carries no
// length prefix, so the payload size is derived from the opcode.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next returns the next frame. An error from the underlying reader while
// waiting for a lead byte is returned as is. An error in the middle of a
// frame delivers the bytes read so far; Decode then reports the frame as
// truncated.
func (f *FrameReader) Next() (Frame, error) {
	lead, err := f.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}

	if lead >= 0x20 {
		line, _ := f.r.ReadBytes('\n')
		data := append([]byte{lead}, line...)
		return Frame{Data: bytes.TrimRight(data, "\r\n"), Text: true}, nil
	}

	op := Opcode(lead)
	n := payloadLen(op)
	if n <= 0 {
		return Frame{Data: []byte{lead}}, nil
	}

	buf := make([]byte, 1+n)
	buf[0] = lead
	got, err := io.ReadFull(f.r, buf[1:])
	if err != nil {
		return Frame{Data: buf[:1+got]}, nil
	}
	if op != OpSaveComplex {
		return Frame{Data: buf}, nil
	}

	steps := make([]byte, int(buf[n])*store.StepSize)
	got, _ = io.ReadFull(f.r, steps)
	buf = append(buf, steps[:got]...)
	return Frame{Data: buf}, nil
}
