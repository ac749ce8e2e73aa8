package protocol

import (
	"errors"
	"fmt"
)

// Pong is the reply to PING.
var Pong = []byte("PONG\n")

// OK acknowledges a state-changing command.
func OK(what string) []byte {
	return []byte("OK " + what + "\n")
}

// Errorf formats a diagnostic reply line.
func Errorf(format string, args ...interface{}) []byte {
	return []byte("ERR " + fmt.Sprintf(format, args...) + "\n")
}

var (
	ReplySlot           = Errorf("SLOT")
	ReplyInvalidProgram = Errorf("INVALID PROGRAM")
	ReplyBusy           = Errorf("BUSY")
)

// DecodeErrorReply maps a Decode error on frame to its diagnostic line.
func DecodeErrorReply(frame []byte, err error) []byte {
	var op byte
	if len(frame) > 0 {
		op = frame[0]
	}
	switch {
	case errors.Is(err, ErrUnknownOpcode):
		return Errorf("UNKNOWN %d", op)
	case errors.Is(err, ErrTruncatedFrame):
		return Errorf("TRUNCATED %d", op)
	case errors.Is(err, ErrEmptyFrame):
		return Errorf("EMPTY")
	}
	return Errorf("%v", err)
}
