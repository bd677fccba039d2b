package common

import (
	"os"
	"sync"
	"unsafe"

	"github.com/dw/csvninja/internal/mmapfile"
)

// MmapFile maps an already-open file read-only and returns its contents.
// The returned slice carries the same over-read guarantee as mmapfile.File:
// at least 16 bytes past the end are safe to read as zeros, which is what
// lets the indexer and query engine run SIMD/span scans right up to EOF
// without a bounds check on every iteration.
//
// The mapping backing the returned slice is tracked internally and released
// by MunmapFile; callers never see the *mmapfile.File itself.
func MmapFile(f *os.File) ([]byte, error) {
	m, err := mmapfile.Open(f.Name())
	if err != nil {
		return nil, err
	}
	data := m.Bytes()
	trackMapping(data, m)
	return data, nil
}

// MunmapFile releases a mapping previously returned by MmapFile. Calling it
// with a slice MmapFile didn't produce is a no-op.
func MunmapFile(data []byte) error {
	m := untrackMapping(data)
	if m == nil {
		return nil
	}
	return m.Close()
}

var (
	mappingsMu sync.Mutex
	mappings   = map[uintptr]*mmapfile.File{}
)

func mappingKey(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

func trackMapping(data []byte, m *mmapfile.File) {
	key := mappingKey(data)
	if key == 0 {
		return
	}
	mappingsMu.Lock()
	mappings[key] = m
	mappingsMu.Unlock()
}

func untrackMapping(data []byte) *mmapfile.File {
	key := mappingKey(data)
	if key == 0 {
		return nil
	}
	mappingsMu.Lock()
	m := mappings[key]
	delete(mappings, key)
	mappingsMu.Unlock()
	return m
}
