package common

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

const (
	// cidxMagic tags the start of every compressed index file.
	cidxMagic = "CIDX"
	// blockTargetSize is the uncompressed size a block is flushed at.
	blockTargetSize = 64 * 1024
)

// BlockMeta describes one compressed block in a .cidx file's footer.
type BlockMeta struct {
	StartKey    string `json:"startKey"`
	Offset      int64  `json:"offset"`
	Length      int64  `json:"length"`
	RecordCount int64  `json:"recordCount"`
	// IsDistinct is set when every record in the block shares one key,
	// which lets a COUNT query skip decompression entirely.
	IsDistinct bool `json:"isDistinct"`
}

// SparseIndex is the JSON footer written at the tail of a .cidx file: one
// entry per compressed block, sorted by StartKey.
type SparseIndex struct {
	Blocks []BlockMeta `json:"blocks"`
}

// BlockWriter accumulates sorted IndexRecords and flushes them as
// LZ4-compressed blocks, closing with a JSON sparse-index footer.
type BlockWriter struct {
	w           io.Writer
	buffer      []IndexRecord
	currentSize int
	index       SparseIndex
	offset      int64
	lz          *lz4.Writer
	rawBuf      bytes.Buffer
	compBuf     bytes.Buffer
}

// NewBlockWriter writes the CIDX magic header and returns a writer ready to
// accept records via WriteRecord.
func NewBlockWriter(w io.Writer) (*BlockWriter, error) {
	n, err := w.Write([]byte(cidxMagic))
	if err != nil {
		return nil, err
	}
	lz := lz4.NewWriter(io.Discard)
	if err := lz.Apply(lz4.BlockSizeOption(lz4.Block64Kb)); err != nil {
		return nil, err
	}
	return &BlockWriter{
		w:      w,
		buffer: make([]IndexRecord, 0, 1000),
		offset: int64(n),
		lz:     lz,
	}, nil
}

// WriteRecord buffers rec, flushing the current block once it crosses
// blockTargetSize. Callers must pass records in ascending key order;
// BlockWriter never sorts.
func (bw *BlockWriter) WriteRecord(rec IndexRecord) error {
	bw.buffer = append(bw.buffer, rec)
	bw.currentSize += RecordSize
	if bw.currentSize >= blockTargetSize {
		return bw.FlushBlock()
	}
	return nil
}

// FlushBlock compresses the pending buffer and appends it as one block,
// recording its footer metadata. A no-op on an empty buffer.
func (bw *BlockWriter) FlushBlock() error {
	if len(bw.buffer) == 0 {
		return nil
	}

	bw.rawBuf.Reset()
	if err := WriteBatchRecords(&bw.rawBuf, bw.buffer); err != nil {
		return err
	}

	bw.compBuf.Reset()
	bw.lz.Reset(&bw.compBuf)
	if _, err := bw.lz.Write(bw.rawBuf.Bytes()); err != nil {
		return err
	}
	if err := bw.lz.Close(); err != nil {
		return err
	}
	compressed := bw.compBuf.Bytes()

	startKey := string(bytes.TrimRight(bw.buffer[0].Key[:], "\x00"))
	distinct := true
	first := bw.buffer[0].Key
	for i := 1; i < len(bw.buffer); i++ {
		if first != bw.buffer[i].Key {
			distinct = false
			break
		}
	}

	bw.index.Blocks = append(bw.index.Blocks, BlockMeta{
		StartKey:    startKey,
		Offset:      bw.offset,
		Length:      int64(len(compressed)),
		RecordCount: int64(len(bw.buffer)),
		IsDistinct:  distinct,
	})

	n, err := bw.w.Write(compressed)
	if err != nil {
		return err
	}
	bw.offset += int64(n)

	bw.buffer = bw.buffer[:0]
	bw.currentSize = 0
	return nil
}

// Close flushes any pending block and writes the sparse-index footer
// followed by its 8-byte big-endian length, so a reader can seek from the
// end of the file to find it without scanning forward first.
func (bw *BlockWriter) Close() error {
	if err := bw.FlushBlock(); err != nil {
		return err
	}

	footer, err := json.Marshal(bw.index)
	if err != nil {
		return err
	}
	n, err := bw.w.Write(footer)
	if err != nil {
		return err
	}
	return binary.Write(bw.w, binary.BigEndian, int64(n))
}

// BlockReader reads blocks out of a .cidx file, either through a
// ReadSeeker (NewBlockReader) or a zero-copy mmap (NewBlockReaderMmap).
type BlockReader struct {
	r         io.ReadSeeker
	mmapData  []byte
	Footer    SparseIndex
	compBuf   []byte
	decompBuf []byte
	recBuf    []IndexRecord
}

// NewBlockReader validates the magic header, seeks to the tail of r to
// load the sparse-index footer, then leaves the cursor ready for
// ReadBlock's seek-based path.
func NewBlockReader(r io.ReadSeeker) (*BlockReader, error) {
	var magic [len(cidxMagic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("common: reading index header: %w", err)
	}
	if string(magic[:]) != cidxMagic {
		return nil, fmt.Errorf("common: not a cidx file (header %q)", magic)
	}
	if _, err := r.Seek(-8, io.SeekEnd); err != nil {
		return nil, err
	}
	var footerLen int64
	if err := binary.Read(r, binary.BigEndian, &footerLen); err != nil {
		return nil, err
	}
	if _, err := r.Seek(-(8 + footerLen), io.SeekEnd); err != nil {
		return nil, err
	}
	footerBytes := make([]byte, footerLen)
	if _, err := io.ReadFull(r, footerBytes); err != nil {
		return nil, err
	}
	var footer SparseIndex
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return nil, err
	}
	return &BlockReader{r: r, Footer: footer}, nil
}

// NewBlockReaderMmap memory-maps path and parses the footer directly out
// of the mapped bytes, skipping the seek+read NewBlockReader needs. Call
// Cleanup when done.
func NewBlockReaderMmap(path string) (*BlockReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := MmapFile(f)
	if err != nil {
		return nil, err
	}
	if len(data) < len(cidxMagic)+8 {
		_ = MunmapFile(data)
		return nil, fmt.Errorf("common: index file too small: %d bytes", len(data))
	}
	if string(data[:len(cidxMagic)]) != cidxMagic {
		_ = MunmapFile(data)
		return nil, fmt.Errorf("common: not a cidx file (header %q)", data[:len(cidxMagic)])
	}

	footerLen := int64(binary.BigEndian.Uint64(data[len(data)-8:]))
	footerStart := int64(len(data)) - 8 - footerLen
	if footerStart < int64(len(cidxMagic)) {
		_ = MunmapFile(data)
		return nil, fmt.Errorf("common: invalid cidx footer: start=%d", footerStart)
	}

	var footer SparseIndex
	if err := json.Unmarshal(data[footerStart:int64(len(data))-8], &footer); err != nil {
		_ = MunmapFile(data)
		return nil, err
	}
	return &BlockReader{mmapData: data, Footer: footer}, nil
}

// Cleanup releases the mmap backing a NewBlockReaderMmap reader. Safe to
// call on a seek-based reader, where it does nothing.
func (br *BlockReader) Cleanup() {
	if br.mmapData != nil {
		_ = MunmapFile(br.mmapData)
		br.mmapData = nil
	}
}

// ReadBlock decompresses the block described by meta and batch-parses its
// records, reusing internal scratch buffers across calls.
func (br *BlockReader) ReadBlock(meta BlockMeta) ([]IndexRecord, error) {
	var compData []byte

	if br.mmapData != nil {
		end := meta.Offset + meta.Length
		if end > int64(len(br.mmapData)) {
			return nil, fmt.Errorf("common: block extends past mmap boundary: %d > %d", end, len(br.mmapData))
		}
		compData = br.mmapData[meta.Offset:end]
	} else {
		if _, err := br.r.Seek(meta.Offset, io.SeekStart); err != nil {
			return nil, err
		}
		needed := int(meta.Length)
		if cap(br.compBuf) < needed {
			br.compBuf = make([]byte, needed)
		}
		br.compBuf = br.compBuf[:needed]
		if _, err := io.ReadFull(br.r, br.compBuf); err != nil {
			return nil, err
		}
		compData = br.compBuf
	}

	lr := lz4.NewReader(bytes.NewReader(compData))

	if meta.RecordCount > 0 {
		// The footer tells us the exact uncompressed size, so decompress
		// straight into a right-sized buffer instead of growing through
		// a chunked copy loop.
		need := int(meta.RecordCount) * RecordSize
		if cap(br.decompBuf) < need {
			br.decompBuf = make([]byte, need)
		}
		br.decompBuf = br.decompBuf[:need]
		if _, err := io.ReadFull(lr, br.decompBuf); err != nil {
			return nil, fmt.Errorf("common: block at %d: %w", meta.Offset, err)
		}
	} else {
		// Footer written before RecordCount existed: size is unknown, so
		// fall back to reading until EOF.
		br.decompBuf = br.decompBuf[:0]
		var tmp [8192]byte
		for {
			n, err := lr.Read(tmp[:])
			if n > 0 {
				br.decompBuf = append(br.decompBuf, tmp[:n]...)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
		}
	}

	count := len(br.decompBuf) / RecordSize
	if count == 0 {
		br.recBuf = br.recBuf[:0]
		return br.recBuf, nil
	}
	if cap(br.recBuf) < count {
		br.recBuf = make([]IndexRecord, count)
	}
	br.recBuf = br.recBuf[:count]
	for i := 0; i < count; i++ {
		br.recBuf[i] = decodeRecord(br.decompBuf[i*RecordSize:])
	}
	return br.recBuf, nil
}
