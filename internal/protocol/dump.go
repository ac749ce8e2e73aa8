package protocol

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/SlideGo/internal/store"
)

// ErrBadDump is returned by ParseDump for malformed data.
var ErrBadDump = errors.New("protocol: malformed dump")

// DumpEntry is one program in a GET_ALL_DATA reply.
type DumpEntry struct {
	Slot    int
	Type    store.ProgramType
	Name    string
	Loop    store.LoopProgram
	Complex store.ComplexProgram
}

// EncodeDump builds the GET_ALL_DATA reply: count, then per program the id,
// type, 8-byte name and body, then a newline.
func EncodeDump(entries []DumpEntry) []byte {
	b := []byte{byte(len(entries))}
	for _, e := range entries {
		name := store.EncodeName(e.Name)
		b = append(b, byte(e.Slot), byte(e.Type))
		b = append(b, name[:]...)
		switch e.Type {
		case store.TypeLoop:
			b = append(b, store.MarshalLoop(e.Loop)...)
		case store.TypeComplex:
			b = append(b, byte(len(e.Complex.Steps)))
			b = append(b, store.MarshalComplex(e.Complex)...)
		}
	}
	return append(b, '\n')
}

// ParseDump decodes a GET_ALL_DATA reply. The trailing newline is optional.
func ParseDump(b []byte) ([]DumpEntry, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadDump)
	}
	count := int(b[0])
	rest := b[1:]
	entries := make([]DumpEntry, 0, count)

	for i := 0; i < count; i++ {
		if len(rest) < 2+store.NameLen {
			return entries, fmt.Errorf("%w: entry %d header cut short", ErrBadDump, i)
		}
		e := DumpEntry{
			Slot: int(rest[0]),
			Type: store.ProgramType(rest[1]),
			Name: decodeName(rest[2 : 2+store.NameLen]),
		}
		rest = rest[2+store.NameLen:]

		switch e.Type {
		case store.TypeLoop:
			p, err := store.UnmarshalLoop(rest)
			if err != nil {
				return entries, fmt.Errorf("%w: entry %d: %w", ErrBadDump, i, err)
			}
			e.Loop = p
			rest = rest[store.LoopBodySize:]
		case store.TypeComplex:
			if len(rest) < 1 {
				return entries, fmt.Errorf("%w: entry %d missing step count", ErrBadDump, i)
			}
			n := int(rest[0])
			p, err := store.UnmarshalComplex(rest[1:], n)
			if err != nil {
				return entries, fmt.Errorf("%w: entry %d: %w", ErrBadDump, i, err)
			}
			e.Complex = p
			rest = rest[1+n*store.StepSize:]
		default:
			return entries, fmt.Errorf("%w: entry %d has type %d", ErrBadDump, i, uint8(e.Type))
		}
		entries = append(entries, e)
	}

	if len(rest) > 0 && rest[0] != '\n' {
		return entries, fmt.Errorf("%w: %d trailing bytes", ErrBadDump, len(rest))
	}
	return entries, nil
}

// DumpLen returns the length of the dump at the start of b, including the
// trailing newline, or false when b does not yet hold a complete dump.
func DumpLen(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	off := 1
	for i := 0; i < int(b[0]); i++ {
		if len(b) < off+2+store.NameLen {
			return 0, false
		}
		typ := store.ProgramType(b[off+1])
		off += 2 + store.NameLen
		switch typ {
		case store.TypeLoop:
			off += store.LoopBodySize
		case store.TypeComplex:
			if len(b) <= off {
				return 0, false
			}
			off += 1 + int(b[off])*store.StepSize
		}
	}
	off++
	if len(b) < off {
		return 0, false
	}
	return off, true
}
