package csvcore

import "github.com/dw/csvninja/internal/mmapfile"

// MappedFileCursor presents a memory-mapped file as a single, non-refillable
// window. Fill is always a no-op that reports false: the whole file is
// already resident, so there is nothing further to produce.
type MappedFileCursor struct {
	file   *mmapfile.File // non-nil when this cursor owns the mapping
	data   []byte         // window bytes, cap extends guardSize past len
	offset int
}

// OpenMappedFile memory-maps path read-only and returns a cursor over its
// full contents.
func OpenMappedFile(path string) (*MappedFileCursor, error) {
	f, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}
	return &MappedFileCursor{file: f, data: f.Bytes()}, nil
}

// NewWindowedMappedCursor builds a cursor over data[start:end], reusing an
// already-open mapping (or any other buffer satisfying the over-read
// guarantee, such as the whole-file slice of a *mmapfile.File). This is
// how the indexer drives one CsvReader per parallel chunk without mapping
// the file more than once: cap(data) must extend at least guardSize bytes
// past end, which a *mmapfile.File slice guarantees for every end up to
// len(data) (mid-file the slack is the next chunk's bytes, at the final
// chunk it is the mapping's own guard region).
//
// The returned cursor does not own data and Close is a no-op; the caller
// remains responsible for the underlying mapping's lifetime.
func NewWindowedMappedCursor(data []byte, start, end int) *MappedFileCursor {
	return &MappedFileCursor{data: window(data, start, end)}
}

// window slices data[start:end] while keeping the full capacity of data
// visible past end. The bytes between end and cap(data) are what the
// over-read guarantee reads through: the next chunk's data mid-file, or
// the mapping's guard region at the final chunk. Slicing with len(data)
// as the max would cut that slack off exactly when end == len(data).
func window(data []byte, start, end int) []byte {
	return data[start:end:cap(data)]
}

// Bytes returns the pending window.
func (m *MappedFileCursor) Bytes() []byte {
	return m.data[m.offset:]
}

// Size returns the number of pending bytes.
func (m *MappedFileCursor) Size() int {
	return len(m.data) - m.offset
}

// Consume advances past parsed bytes.
func (m *MappedFileCursor) Consume(n int) {
	if n > m.Size() {
		n = m.Size()
	}
	m.offset += n
}

// Reset repoints the cursor at data[start:end], discarding any pending
// position. It lets a caller that looks up many scattered rows in the
// same mapping — the query engine, jumping to each matching record's
// byte offset — reuse one CsvReader instead of allocating a fresh reader
// (and its per-cell scratch slice) for every row.
func (m *MappedFileCursor) Reset(data []byte, start, end int) {
	m.data = window(data, start, end)
	m.offset = 0
}

// Offset returns how many bytes have been consumed from the start of this
// cursor's window, letting a caller who knows the window's absolute start
// (as the indexer does, from NewWindowedMappedCursor's start argument)
// recover the absolute file offset of whatever comes next.
func (m *MappedFileCursor) Offset() int {
	return m.offset
}

// Fill never has anything to add: the mapping is the whole window already.
func (m *MappedFileCursor) Fill() bool {
	return false
}

// Err is always nil; mapping failures surface from OpenMappedFile itself.
func (m *MappedFileCursor) Err() error {
	return nil
}

// Close unmaps the file, if this cursor owns a mapping. Windowed cursors
// built via NewWindowedMappedCursor return nil; the owner of the
// underlying mapping closes it separately.
func (m *MappedFileCursor) Close() error {
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}
