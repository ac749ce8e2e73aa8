package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/cjeanneret/SlideGo/internal/store"
)

var (
	ErrEmptyFrame     = errors.New("protocol: empty frame")
	ErrTruncatedFrame = errors.New("protocol: truncated frame")
	ErrUnknownOpcode  = errors.New("protocol: unknown opcode")
)

// Command is a decoded frame. Only the fields of its opcode are set.
type Command struct {
	Op Opcode

	Slot     int    // RUN, SAVE_*
	Position uint16 // POS, POS_WITH_SPEED
	SpeedMs  uint32 // POS_WITH_SPEED
	Name     string // SAVE_*

	Loop    store.LoopProgram
	Complex store.ComplexProgram
}

func (c Command) String() string {
	switch c.Op {
	case OpRun:
		return fmt.Sprintf("RUN %d", c.Slot)
	case OpPos:
		return fmt.Sprintf("POS %d", c.Position)
	case OpPosWithSpeed:
		return fmt.Sprintf("POS %d @%dms", c.Position, c.SpeedMs)
	case OpSaveLoop:
		return fmt.Sprintf("SAVE_LOOP %d %q", c.Slot, c.Name)
	case OpSaveComplex:
		return fmt.Sprintf("SAVE_COMPLEX %d %q (%d steps)", c.Slot, c.Name, len(c.Complex.Steps))
	}
	return c.Op.String()
}

// Decode parses one frame. The full payload must be present; extra trailing
// bytes are ignored.
func Decode(frame []byte) (Command, error) {
	if len(frame) == 0 {
		return Command{}, ErrEmptyFrame
	}
	cmd := Command{Op: Opcode(frame[0])}
	p := frame[1:]

	need := payloadLen(cmd.Op)
	switch {
	case need < 0:
		return cmd, fmt.Errorf("%w: %d", ErrUnknownOpcode, frame[0])
	case cmd.Op == OpSaveLoop:
		need = saveLoopShort
	}
	if len(p) < need {
		return cmd, fmt.Errorf("%w: %s needs %d payload bytes, got %d", ErrTruncatedFrame, cmd.Op, need, len(p))
	}

	le := binary.LittleEndian
	switch cmd.Op {
	case OpPos:
		cmd.Position = le.Uint16(p)
	case OpRun:
		cmd.Slot = int(p[0])
	case OpPosWithSpeed:
		cmd.Position = le.Uint16(p)
		cmd.SpeedMs = le.Uint32(p[2:])
	case OpSaveLoop:
		cmd.Slot = int(p[0])
		cmd.Name = decodeName(p[1:9])
		cmd.Loop.Steps = le.Uint16(p[9:])
		cmd.Loop.DelayMs = le.Uint32(p[11:])
		if len(p) >= saveLoopFull {
			cmd.Loop.Cycles = p[15]
		}
	case OpSaveComplex:
		cmd.Slot = int(p[0])
		cmd.Name = decodeName(p[1:9])
		count := int(p[9])
		steps, err := store.UnmarshalComplex(p[saveComplexFixed:], count)
		if err != nil {
			return cmd, fmt.Errorf("%w: %s: %w", ErrTruncatedFrame, cmd.Op, err)
		}
		cmd.Complex = steps
	}
	return cmd, nil
}

// Encode builds the frame for cmd. SAVE_LOOP is always sent in its full
// form.
func Encode(cmd Command) []byte {
	b := []byte{byte(cmd.Op)}
	le := binary.LittleEndian
	switch cmd.Op {
	case OpPos:
		b = le.AppendUint16(b, cmd.Position)
	case OpRun:
		b = append(b, byte(cmd.Slot))
	case OpPosWithSpeed:
		b = le.AppendUint16(b, cmd.Position)
		b = le.AppendUint32(b, cmd.SpeedMs)
	case OpSaveLoop:
		name := store.EncodeName(cmd.Name)
		b = append(b, byte(cmd.Slot))
		b = append(b, name[:]...)
		b = append(b, store.MarshalLoop(cmd.Loop)...)
	case OpSaveComplex:
		name := store.EncodeName(cmd.Name)
		b = append(b, byte(cmd.Slot))
		b = append(b, name[:]...)
		b = append(b, byte(len(cmd.Complex.Steps)))
		b = append(b, store.MarshalComplex(cmd.Complex)...)
	}
	return b
}

func decodeName(b []byte) string {
	name := string(b)
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return strings.TrimRight(name, " ")
}
