// Package eeprom provides the byte-addressable non-volatile medium the
// program store lives on.
package eeprom

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfBounds is returned for accesses past the end of the medium.
var ErrOutOfBounds = errors.New("eeprom: access out of bounds")

// Erased is the value of a never-written cell.
const Erased = 0xFF

// Medium is a fixed-size byte-addressable store.
type Medium interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int
}

// Memory is a RAM-backed medium, used in mock mode and tests.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns an erased medium of size bytes.
func NewMemory(size int) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = Erased
	}
	return &Memory{data: data}
}

func (m *Memory) Size() int { return len(m.data) }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(len(m.data), len(p), off); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(len(m.data), len(p), off); err != nil {
		return 0, err
	}
	return copy(m.data[off:], p), nil
}

// Bytes returns a copy of the whole image.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

func checkBounds(size, n int, off int64) error {
	if off < 0 || off+int64(n) > int64(size) {
		return fmt.Errorf("%w: %d bytes at offset %d (size %d)", ErrOutOfBounds, n, off, size)
	}
	return nil
}
