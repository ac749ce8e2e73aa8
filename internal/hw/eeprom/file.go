package eeprom

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cjeanneret/SlideGo/internal/debug"
)

// File is a medium backed by a fixed-size image file. The file is locked
// for exclusive use while open and every write is synced before returning.
type File struct {
	f    *os.File
	size int
}

// OpenFile opens (or creates) the image at path. A new or short image is
// extended with erased cells up to size.
func OpenFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open eeprom image: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock eeprom image %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("stat eeprom image: %w", err)
	}
	if have := info.Size(); have < int64(size) {
		debug.Info("EEPROM image %s: extending from %d to %d bytes", path, have, size)
		pad := bytes.Repeat([]byte{Erased}, size-int(have))
		if _, err := f.WriteAt(pad, have); err != nil {
			unlockFile(f)
			f.Close()
			return nil, fmt.Errorf("extend eeprom image: %w", err)
		}
		if err := f.Sync(); err != nil {
			unlockFile(f)
			f.Close()
			return nil, fmt.Errorf("sync eeprom image: %w", err)
		}
	}

	return &File{f: f, size: size}, nil
}

func (e *File) Size() int { return e.size }

func (e *File) ReadAt(p []byte, off int64) (int, error) {
	if err := checkBounds(e.size, len(p), off); err != nil {
		return 0, err
	}
	return e.f.ReadAt(p, off)
}

func (e *File) WriteAt(p []byte, off int64) (int, error) {
	if err := checkBounds(e.size, len(p), off); err != nil {
		return 0, err
	}
	n, err := e.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, e.f.Sync()
}

// Close releases the lock and closes the image.
func (e *File) Close() error {
	unlockFile(e.f)
	return e.f.Close()
}
