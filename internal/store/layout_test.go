package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalLoop_Layout(t *testing.T) {
	b := MarshalLoop(LoopProgram{Steps: 0x0102, DelayMs: 0x03040506, Cycles: 7})
	assert.Equal(t, []byte{0x02, 0x01, 0x06, 0x05, 0x04, 0x03, 0x07}, b)
}

func TestMarshalComplex_Layout(t *testing.T) {
	b := MarshalComplex(ComplexProgram{Steps: []MovementStep{{Position: 0x0A0B, Speed: 0x01020304, PauseMs: 0x0C0D}}})
	assert.Equal(t, []byte{0x0B, 0x0A, 0x04, 0x03, 0x02, 0x01, 0x0D, 0x0C}, b)
}

func TestUnmarshal_ShortBuffers(t *testing.T) {
	_, err := UnmarshalLoop(make([]byte, LoopBodySize-1))
	assert.True(t, errors.Is(err, ErrShortBuffer))

	_, err = UnmarshalComplex(make([]byte, StepSize*2-1), 2)
	assert.True(t, errors.Is(err, ErrShortBuffer))

	_, err = decodeHeader([]byte{1})
	assert.True(t, errors.Is(err, ErrShortBuffer))

	_, err = decodeSlotHeader(make([]byte, SlotHeaderSize-1))
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func TestSlotHeader_Encoding(t *testing.T) {
	h := SlotHeader{Type: TypeComplex, Count: 4, Name: EncodeName("SUNRISE")}
	b := encodeSlotHeader(h)
	require.Len(t, b, SlotHeaderSize)
	assert.Equal(t, byte(1), b[0])
	assert.Equal(t, byte(4), b[1])
	assert.Equal(t, "SUNRISE\x00", string(b[2:]))

	got, err := decodeSlotHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestLayout_LargestProgramFitsSlot(t *testing.T) {
	assert.LessOrEqual(t, SlotHeaderSize+MaxStepsPerProgram*StepSize, SlotSize)
	assert.LessOrEqual(t, SlotHeaderSize+LoopBodySize, SlotSize)
	assert.LessOrEqual(t, ImageSize, 1024)
}

func TestProgramType_String(t *testing.T) {
	assert.Equal(t, "loop", TypeLoop.String())
	assert.Equal(t, "complex", TypeComplex.String())
	assert.Equal(t, "invalid", TypeInvalid.String())
	assert.Equal(t, "invalid", ProgramType(9).String())
}
