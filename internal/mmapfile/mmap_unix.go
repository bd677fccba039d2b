//go:build linux || darwin

// Package mmapfile memory-maps a file read-only with a trailing guard
// region so callers may safely over-read up to 16 bytes past the logical
// end of the file without risking a segfault.
package mmapfile

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// guardSize must cover the widest over-read the parser performs (one
// StringSpanner window).
const guardSize = 16

// File is a read-only memory mapping of a file, followed immediately by a
// zero-filled guard region of at least guardSize bytes.
type File struct {
	reservation []byte // full reservation: data + guard, unmapped as one region
	size        int64
}

// Open maps path read-only. The returned File's Bytes() has length equal
// to the file size; the guardSize bytes immediately following are always
// safely readable zeros.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}
	size := st.Size()

	if size == 0 {
		// Nothing to map; still hand back guardSize zero bytes so Bytes()
		// plus the guard region is safely readable.
		return &File{reservation: make([]byte, guardSize), size: 0}, nil
	}

	pageSize := int64(os.Getpagesize())
	mappedLen := roundUp(size, pageSize) + pageSize

	// Step 1: reserve an anonymous region, kernel picks the address. This
	// becomes the guard once we overlay the file mapping on its head.
	reservation, err := unix.Mmap(-1, 0, int(mappedLen), unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: reserve anon region: %w", err)
	}

	// Step 2: overlay the file mapping at the start of the reservation
	// using MAP_FIXED so it lands exactly where we reserved it. The
	// public unix.Mmap wrapper never accepts a caller-chosen address, so
	// the fixed-placement overlay goes through the raw mmap(2) syscall.
	addr := uintptr(unsafe.Pointer(&reservation[0]))
	got, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		unix.PROT_READ,
		unix.MAP_PRIVATE|unix.MAP_FIXED,
		uintptr(f.Fd()),
		0,
	)
	if errno != 0 {
		_ = unix.Munmap(reservation)
		return nil, fmt.Errorf("mmapfile: fixed map %s: %w", path, errno)
	}
	if got != addr {
		_ = unix.Munmap(reservation)
		return nil, fmt.Errorf("mmapfile: fixed mapping landed at %#x, wanted %#x", got, addr)
	}

	_ = unix.Madvise(reservation[:size], unix.MADV_SEQUENTIAL)

	return &File{reservation: reservation, size: size}, nil
}

// Bytes returns the file's contents. cap(Bytes()) extends guardSize bytes
// beyond len(Bytes()); those extra bytes are always safe to read as
// zeros (the kernel's unmodified anonymous guard page).
func (m *File) Bytes() []byte {
	if m.size == 0 {
		return m.reservation[:0]
	}
	return m.reservation[:m.size]
}

// Close unmaps the file and its guard region.
func (m *File) Close() error {
	if m.reservation == nil {
		return nil
	}
	if m.size == 0 {
		m.reservation = nil
		return nil
	}
	pageSize := int64(os.Getpagesize())
	full := m.reservation[:roundUp(m.size, pageSize)+pageSize]
	err := unix.Munmap(full)
	m.reservation = nil
	return err
}

func roundUp(n, multiple int64) int64 {
	if multiple == 0 {
		return n
	}
	rem := n % multiple
	if rem == 0 {
		return n
	}
	return n + (multiple - rem)
}
