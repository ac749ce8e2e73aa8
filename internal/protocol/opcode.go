// Package protocol is the binary host-link command set: frame decoding and
// encoding, stream framing, replies and the bulk program dump.
package protocol

import "fmt"

// Opcode is the first byte of every frame.
type Opcode uint8

const (
	OpPos          Opcode = 2
	OpRun          Opcode = 3
	OpStart        Opcode = 4
	OpStop         Opcode = 5
	OpHome         Opcode = 6
	OpSetHome      Opcode = 8
	OpSaveLoop     Opcode = 9
	OpSaveComplex  Opcode = 10
	OpGetAllData   Opcode = 13
	OpPing         Opcode = 14
	OpPosWithSpeed Opcode = 15
)

var opNames = map[Opcode]string{
	OpPos:          "POS",
	OpRun:          "RUN",
	OpStart:        "START",
	OpStop:         "STOP",
	OpHome:         "HOME",
	OpSetHome:      "SET_HOME",
	OpSaveLoop:     "SAVE_LOOP_PROGRAM",
	OpSaveComplex:  "SAVE_COMPLEX_PROGRAM",
	OpGetAllData:   "GET_ALL_DATA",
	OpPing:         "PING",
	OpPosWithSpeed: "POS_WITH_SPEED",
}

func (o Opcode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("OP_%d", uint8(o))
}

// Known reports whether o is part of the command set.
func (o Opcode) Known() bool {
	_, ok := opNames[o]
	return ok
}

// Moves reports whether o starts a motion job.
func (o Opcode) Moves() bool {
	switch o {
	case OpRun, OpPos, OpHome, OpPosWithSpeed:
		return true
	}
	return false
}

// Payload sizes. SAVE_LOOP accepts a short form without the cycles byte;
// SAVE_COMPLEX is followed by count steps.
const (
	saveLoopShort    = 1 + 8 + 2 + 4
	saveLoopFull     = saveLoopShort + 1
	saveComplexFixed = 1 + 8 + 1
)

// payloadLen returns the fixed payload length expected on a stream for op,
// or -1 for opcodes outside the command set.
func payloadLen(op Opcode) int {
	switch op {
	case OpPos:
		return 2
	case OpRun:
		return 1
	case OpStart, OpStop, OpHome, OpSetHome, OpGetAllData, OpPing:
		return 0
	case OpSaveLoop:
		return saveLoopFull
	case OpSaveComplex:
		return saveComplexFixed
	case OpPosWithSpeed:
		return 2 + 4
	}
	return -1
}
