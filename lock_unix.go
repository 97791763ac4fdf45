//go:build unix

package fsfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes a non-blocking advisory exclusive lock on f, so
// that a second process attempting to open or create the same device
// file observes ErrAlreadyOpenDevice instead of silently racing with it
// (spec §4.1: "exactly one device may be open at a time").
func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
