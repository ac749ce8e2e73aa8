package store

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hw/eeprom"
)

var (
	ErrSlotOutOfRange = errors.New("store: slot out of range")
	ErrNotFound       = errors.New("store: program not found")
	ErrTypeMismatch   = errors.New("store: program type mismatch")
	ErrTooManySteps   = errors.New("store: too many steps")
)

// SlotInfo describes one valid slot.
type SlotInfo struct {
	Slot int
	Type ProgramType
	Name string
}

// Store keeps up to MaxPrograms programs in fixed-size slots on a
// non-volatile medium.
//
// Writes go body first, slot header second, store header last: a slot whose
// tag is valid always has its body written. A power cut can still leave a
// new body behind an old header.
type Store struct {
	medium eeprom.Medium
	header Header
}

// New returns a store on m. Call Initialize before use.
func New(m eeprom.Medium) (*Store, error) {
	if m.Size() < ImageSize {
		return nil, fmt.Errorf("store: medium has %d bytes, need %d", m.Size(), ImageSize)
	}
	return &Store{medium: m}, nil
}

// Initialize loads the header. If the magic does not match, the store is
// treated as uninitialized: every slot is tagged invalid and a fresh header
// with zero programs is persisted.
func (s *Store) Initialize() error {
	buf := make([]byte, HeaderSize)
	if _, err := s.medium.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("read store header: %w", err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return err
	}

	if h.Magic == Magic {
		if int(h.ProgramCount) > MaxPrograms {
			debug.Info("Store: program count %d out of range, clamping to %d", h.ProgramCount, MaxPrograms)
			h.ProgramCount = MaxPrograms
		}
		s.header = h
		debug.Info("Store: loaded, %d program slot(s) in use", h.ProgramCount)
		return nil
	}

	debug.Info("Store: uninitialized (magic 0x%04X, want 0x%04X), resetting to defaults", h.Magic, Magic)
	empty := encodeSlotHeader(SlotHeader{Type: TypeInvalid})
	for slot := 0; slot < MaxPrograms; slot++ {
		if _, err := s.medium.WriteAt(empty, slotOffset(slot)); err != nil {
			return fmt.Errorf("reset slot %d: %w", slot, err)
		}
	}
	s.header = Header{Magic: Magic}
	return s.persistHeader()
}

// ProgramCount returns one past the highest slot ever written.
func (s *Store) ProgramCount() int {
	return int(s.header.ProgramCount)
}

// WriteLoop stores a loop program in slot.
func (s *Store) WriteLoop(slot int, name string, p LoopProgram) error {
	return s.write(slot, SlotHeader{Type: TypeLoop, Count: p.Cycles, Name: EncodeName(name)}, MarshalLoop(p))
}

// WriteComplex stores a complex program in slot.
func (s *Store) WriteComplex(slot int, name string, p ComplexProgram) error {
	if len(p.Steps) > MaxStepsPerProgram {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManySteps, len(p.Steps), MaxStepsPerProgram)
	}
	return s.write(slot, SlotHeader{Type: TypeComplex, Count: uint8(len(p.Steps)), Name: EncodeName(name)}, MarshalComplex(p))
}

func (s *Store) write(slot int, h SlotHeader, body []byte) error {
	if slot < 0 || slot >= MaxPrograms {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}

	off := slotOffset(slot)
	if _, err := s.medium.WriteAt(body, off+SlotHeaderSize); err != nil {
		return fmt.Errorf("write slot %d body: %w", slot, err)
	}
	if _, err := s.medium.WriteAt(encodeSlotHeader(h), off); err != nil {
		return fmt.Errorf("write slot %d header: %w", slot, err)
	}
	debug.Info("Store: saved %s program %q in slot %d", h.Type, trimName(h.Name), slot)

	if slot >= int(s.header.ProgramCount) {
		s.header.ProgramCount = uint8(slot + 1)
		return s.persistHeader()
	}
	return nil
}

// ReadLoop loads the loop program in slot. Slots holding anything else
// report ErrNotFound.
func (s *Store) ReadLoop(slot int) (LoopProgram, error) {
	body, _, err := s.readBody(slot, TypeLoop, LoopBodySize)
	if err != nil {
		return LoopProgram{}, err
	}
	return UnmarshalLoop(body)
}

// ReadComplex loads the complex program in slot. Slots holding anything
// else, or a step count beyond the slot capacity, report ErrNotFound.
func (s *Store) ReadComplex(slot int) (ComplexProgram, error) {
	body, h, err := s.readBody(slot, TypeComplex, MaxStepsPerProgram*StepSize)
	if err != nil {
		return ComplexProgram{}, err
	}
	if int(h.Count) > MaxStepsPerProgram {
		return ComplexProgram{}, fmt.Errorf("%w: slot %d claims %d steps", ErrNotFound, slot, h.Count)
	}
	return UnmarshalComplex(body, int(h.Count))
}

func (s *Store) readBody(slot int, want ProgramType, size int) ([]byte, SlotHeader, error) {
	h, err := s.slotHeader(slot)
	if err != nil {
		return nil, SlotHeader{}, err
	}
	if h.Type != want {
		return nil, h, fmt.Errorf("%w: slot %d holds %s, want %s: %w", ErrNotFound, slot, h.Type, want, ErrTypeMismatch)
	}
	body := make([]byte, size)
	if _, err := s.medium.ReadAt(body, slotOffset(slot)+SlotHeaderSize); err != nil {
		return nil, h, fmt.Errorf("read slot %d body: %w", slot, err)
	}
	return body, h, nil
}

func (s *Store) slotHeader(slot int) (SlotHeader, error) {
	if slot < 0 || slot >= MaxPrograms {
		return SlotHeader{}, fmt.Errorf("%w: %w: %d", ErrNotFound, ErrSlotOutOfRange, slot)
	}
	buf := make([]byte, SlotHeaderSize)
	if _, err := s.medium.ReadAt(buf, slotOffset(slot)); err != nil {
		return SlotHeader{}, fmt.Errorf("read slot %d header: %w", slot, err)
	}
	return decodeSlotHeader(buf)
}

// ProgramType returns the tag of slot, or TypeInvalid for out-of-range
// slots, unreadable slots and unknown tags.
func (s *Store) ProgramType(slot int) ProgramType {
	h, err := s.slotHeader(slot)
	if err != nil {
		if !errors.Is(err, ErrSlotOutOfRange) {
			debug.Error(err)
		}
		return TypeInvalid
	}
	if !h.Type.Valid() {
		return TypeInvalid
	}
	return h.Type
}

// ProgramName returns the stored name of slot when it starts with a
// printable ASCII byte, and "PGM<slot+1>" otherwise, so erased slots still
// list cleanly.
func (s *Store) ProgramName(slot int) string {
	if slot < 0 || slot >= MaxPrograms {
		return "INVALID"
	}
	if h, err := s.slotHeader(slot); err == nil && h.Name[0] >= 0x20 && h.Name[0] <= 0x7E {
		if name := trimName(h.Name); name != "" {
			return name
		}
	}
	return fmt.Sprintf("PGM%d", slot+1)
}

// Slots lists every slot holding a valid program.
func (s *Store) Slots() []SlotInfo {
	var out []SlotInfo
	for slot := 0; slot < MaxPrograms; slot++ {
		if t := s.ProgramType(slot); t.Valid() {
			out = append(out, SlotInfo{Slot: slot, Type: t, Name: s.ProgramName(slot)})
		}
	}
	return out
}

// VerifyHeader reads the header back and compares it with the in-memory
// copy. Diagnostic only: the medium has no fault signal to act on.
func (s *Store) VerifyHeader() bool {
	buf := make([]byte, HeaderSize)
	if _, err := s.medium.ReadAt(buf, 0); err != nil {
		return false
	}
	return bytes.Equal(buf, encodeHeader(s.header))
}

func (s *Store) persistHeader() error {
	if _, err := s.medium.WriteAt(encodeHeader(s.header), 0); err != nil {
		return fmt.Errorf("write store header: %w", err)
	}
	if !s.VerifyHeader() {
		debug.Info("Store: header read-back mismatch")
	}
	return nil
}

func trimName(b [NameLen]byte) string {
	name := string(b[:])
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return strings.TrimRight(name, " ")
}
