//go:build !linux && !darwin

package mmapfile

import (
	"fmt"
	"os"
)

// File is a read-only, heap-backed stand-in for the mmap implementation on
// platforms without raw mmap control. It reads the whole file into memory
// once and appends a zero-filled guard region, preserving the same
// over-read contract at the cost of one extra copy.
type File struct {
	data []byte
	size int64
}

// Open reads path fully into memory and appends guardSize zero bytes.
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

	buf := make([]byte, size+guardSize)
	if _, err := readFull(f, buf[:size]); err != nil {
		return nil, fmt.Errorf("mmapfile: read %s: %w", path, err)
	}

	return &File{data: buf, size: size}, nil
}

const guardSize = 16

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if n > 0 && total == len(buf) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Bytes returns the file's contents, with guardSize safe zero bytes past
// the end (len(Bytes())..cap(Bytes())).
func (m *File) Bytes() []byte {
	return m.data[:m.size]
}

// Close releases the backing buffer.
func (m *File) Close() error {
	m.data = nil
	return nil
}
