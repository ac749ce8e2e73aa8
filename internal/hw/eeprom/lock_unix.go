//go:build !windows

package eeprom

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another process holds the image.
var ErrLocked = errors.New("eeprom: image in use by another process")

func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return fmt.Errorf("flock: %w", err)
	}
	return nil
}

func unlockFile(f *os.File) {
	// Flock on unix doesn't report errors for LOCK_UN worth acting on.
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
