//go:build windows

package writer

import "os"

// lockFile is a no-op placeholder on Windows; robust locking there needs
// LockFileEx, which this package does not yet wire up.
func lockFile(file *os.File) error {
	return nil
}

// unlockFile is the no-op counterpart to lockFile.
func unlockFile(file *os.File) error {
	return nil
}
