package store

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Non-volatile layout. Multi-byte fields are little-endian.
//
//	offset 0                 header: magic u16, programCount u8, reserved u8
//	HeaderSize + i*SlotSize  slot i: type u8, count u8, name [8]byte, body
const (
	Magic              uint16 = 0xA5C3
	MaxPrograms               = 5
	MaxStepsPerProgram        = 10
	NameLen                   = 8

	HeaderSize     = 4
	SlotSize       = 128
	SlotHeaderSize = 2 + NameLen
	LoopBodySize   = 7 // steps u16, delayMs u32, cycles u8
	StepSize       = 8 // position u16, speed u32, pauseMs u16
	ImageSize      = HeaderSize + MaxPrograms*SlotSize
)

// CyclesForever is the LoopProgram.Cycles value meaning "run until stopped".
const CyclesForever uint8 = 0

// ErrShortBuffer is returned when decoding from fewer bytes than the
// layout requires.
var ErrShortBuffer = errors.New("store: short buffer")

// ProgramType is the tag at the start of every slot.
type ProgramType uint8

const (
	TypeLoop    ProgramType = 0
	TypeComplex ProgramType = 1
	TypeInvalid ProgramType = 0xFF
)

func (t ProgramType) String() string {
	switch t {
	case TypeLoop:
		return "loop"
	case TypeComplex:
		return "complex"
	default:
		return "invalid"
	}
}

// Valid reports whether t tags a runnable program.
func (t ProgramType) Valid() bool {
	return t == TypeLoop || t == TypeComplex
}

// Header is the store header at offset 0.
type Header struct {
	Magic        uint16
	ProgramCount uint8
}

// SlotHeader starts every slot. Count holds the cycle count for loop
// programs and the step count for complex ones.
type SlotHeader struct {
	Type  ProgramType
	Count uint8
	Name  [NameLen]byte
}

// LoopProgram oscillates Steps forward and back Cycles times.
type LoopProgram struct {
	Steps   uint16
	DelayMs uint32
	Cycles  uint8
}

// MovementStep is one waypoint of a complex program.
type MovementStep struct {
	Position uint16
	Speed    uint32 // ms per step
	PauseMs  uint16
}

// ComplexProgram visits its steps in order, once.
type ComplexProgram struct {
	Steps []MovementStep
}

func slotOffset(slot int) int64 {
	return int64(HeaderSize + slot*SlotSize)
}

// EncodeName packs name into the fixed name field, truncating to NameLen
// bytes and padding with NUL.
func EncodeName(name string) [NameLen]byte {
	var b [NameLen]byte
	copy(b[:], name)
	return b
}

func encodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(b[0:], h.Magic)
	b[2] = h.ProgramCount
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrShortBuffer, HeaderSize, len(b))
	}
	return Header{
		Magic:        binary.LittleEndian.Uint16(b[0:]),
		ProgramCount: b[2],
	}, nil
}

func encodeSlotHeader(h SlotHeader) []byte {
	b := make([]byte, SlotHeaderSize)
	b[0] = byte(h.Type)
	b[1] = h.Count
	copy(b[2:], h.Name[:])
	return b
}

func decodeSlotHeader(b []byte) (SlotHeader, error) {
	if len(b) < SlotHeaderSize {
		return SlotHeader{}, fmt.Errorf("%w: slot header needs %d bytes, got %d", ErrShortBuffer, SlotHeaderSize, len(b))
	}
	h := SlotHeader{Type: ProgramType(b[0]), Count: b[1]}
	copy(h.Name[:], b[2:SlotHeaderSize])
	return h, nil
}

// MarshalLoop encodes a loop program body.
func MarshalLoop(p LoopProgram) []byte {
	b := make([]byte, LoopBodySize)
	binary.LittleEndian.PutUint16(b[0:], p.Steps)
	binary.LittleEndian.PutUint32(b[2:], p.DelayMs)
	b[6] = p.Cycles
	return b
}

// UnmarshalLoop decodes a loop program body.
func UnmarshalLoop(b []byte) (LoopProgram, error) {
	if len(b) < LoopBodySize {
		return LoopProgram{}, fmt.Errorf("%w: loop body needs %d bytes, got %d", ErrShortBuffer, LoopBodySize, len(b))
	}
	return LoopProgram{
		Steps:   binary.LittleEndian.Uint16(b[0:]),
		DelayMs: binary.LittleEndian.Uint32(b[2:]),
		Cycles:  b[6],
	}, nil
}

// AppendStep appends the encoding of one waypoint to b.
func AppendStep(b []byte, s MovementStep) []byte {
	b = binary.LittleEndian.AppendUint16(b, s.Position)
	b = binary.LittleEndian.AppendUint32(b, s.Speed)
	return binary.LittleEndian.AppendUint16(b, s.PauseMs)
}

// MarshalComplex encodes the waypoints of a complex program. The step
// count travels separately (slot header or frame field).
func MarshalComplex(p ComplexProgram) []byte {
	b := make([]byte, 0, len(p.Steps)*StepSize)
	for _, s := range p.Steps {
		b = AppendStep(b, s)
	}
	return b
}

// UnmarshalComplex decodes count waypoints from b.
func UnmarshalComplex(b []byte, count int) (ComplexProgram, error) {
	if need := count * StepSize; len(b) < need {
		return ComplexProgram{}, fmt.Errorf("%w: %d steps need %d bytes, got %d", ErrShortBuffer, count, need, len(b))
	}
	p := ComplexProgram{Steps: make([]MovementStep, count)}
	for i := range p.Steps {
		o := i * StepSize
		p.Steps[i] = MovementStep{
			Position: binary.LittleEndian.Uint16(b[o:]),
			Speed:    binary.LittleEndian.Uint32(b[o+2:]),
			PauseMs:  binary.LittleEndian.Uint16(b[o+6:]),
		}
	}
	return p, nil
}
