//go:build !windows

package writer

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an advisory, exclusive, blocking flock(2) on file so
// concurrent writers serialize around the read-validate-append sequence
// in Write.
func lockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_EX)
}

// unlockFile releases the lock taken by lockFile.
func unlockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}
