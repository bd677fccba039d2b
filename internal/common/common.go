// Package common holds the types and on-disk formats shared by the
// indexer and the query engine: the fixed-width IndexRecord that every
// .cidx file is built from, its compressed block container (cidx.go), a
// bloom filter for fast negative lookups (bloom.go), an LRU block cache
// (cache.go), and the mmap wrapper both sides use to read a CSV file
// without copying it (mmap.go).
package common

import (
	"encoding/binary"
	"io"
	"time"
)

// KeySize is the fixed width of an index key. A materialized cell value
// longer than this is truncated at the key boundary; MakeKey reports the
// loss so the indexer can count it per index.
const KeySize = 64

// RecordSize is the on-disk size of one IndexRecord: Key + Offset(8) + Line(8).
const RecordSize = KeySize + 8 + 8

// IndexRecord is one entry in a column index: the indexed value (padded
// or truncated to KeySize bytes), the byte offset of its row in the
// source CSV, and that row's line number.
type IndexRecord struct {
	Key    [KeySize]byte
	Offset int64
	Line   int64
}

// MakeKey copies a materialized cell value into a fixed-width index key,
// reporting whether the value was longer than KeySize and lost bytes.
// This is the one place a parser cell crosses into the index's
// fixed-width world; everything downstream (sorting, block storage,
// lookup comparison) operates on the truncated form.
func MakeKey(value []byte) ([KeySize]byte, bool) {
	var key [KeySize]byte
	n := copy(key[:], value)
	return key, n < len(value)
}

// IndexMeta is the per-run metadata JSON written alongside a file's
// indexes: the source CSV's size/mtime/fingerprint (used to detect a
// stale index) and per-index distinct-value counts.
type IndexMeta struct {
	CapturedAt time.Time             `json:"capturedAt"`
	TotalRows  int64                 `json:"totalRows"`
	CsvSize    int64                 `json:"csvSize"`
	CsvMtime   int64                 `json:"csvMtime"`
	CsvHash    string                `json:"csvHash"`
	Indexes    map[string]IndexStats `json:"indexes"`
}

type IndexStats struct {
	DistinctCount int64 `json:"distinctCount"`
	FileSize      int64 `json:"fileSize"`
	// TruncatedKeys counts rows whose cell value exceeded KeySize and was
	// cut at the key boundary; lookups against such keys match on the
	// truncated prefix only.
	TruncatedKeys int64 `json:"truncatedKeys,omitempty"`
}

// decodeRecord parses one on-disk record out of buf, which must hold at
// least RecordSize bytes.
func decodeRecord(buf []byte) IndexRecord {
	return IndexRecord{
		Key:    *(*[KeySize]byte)(buf[0:KeySize]),
		Offset: int64(binary.BigEndian.Uint64(buf[KeySize : KeySize+8])),
		Line:   int64(binary.BigEndian.Uint64(buf[KeySize+8 : KeySize+16])),
	}
}

func encodeRecord(buf []byte, rec IndexRecord) {
	copy(buf[0:KeySize], rec.Key[:])
	binary.BigEndian.PutUint64(buf[KeySize:KeySize+8], uint64(rec.Offset))
	binary.BigEndian.PutUint64(buf[KeySize+8:KeySize+16], uint64(rec.Line))
}

// ReadRecord reads a single IndexRecord from reader, returning io.EOF at
// end of stream. The scratch buffer is stack-allocated; record-at-a-time
// reads are only used by the sorter's merge, behind a bufio.Reader.
func ReadRecord(reader io.Reader) (IndexRecord, error) {
	var buf [RecordSize]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return IndexRecord{}, err
	}
	return decodeRecord(buf[:]), nil
}

// ReadBatchRecords reads count records with one read call.
func ReadBatchRecords(r io.Reader, count int) ([]IndexRecord, error) {
	buf := make([]byte, count*RecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	recs := make([]IndexRecord, count)
	for i := 0; i < count; i++ {
		recs[i] = decodeRecord(buf[i*RecordSize:])
	}
	return recs, nil
}

// WriteRecord writes a single IndexRecord to w.
func WriteRecord(w io.Writer, rec IndexRecord) error {
	var buf [RecordSize]byte
	encodeRecord(buf[:], rec)
	_, err := w.Write(buf[:])
	return err
}

// WriteBatchRecords writes a slice of records with one write call. The
// single allocation is as large as the batch: a sorter chunk flush is
// memoryLimit/100 records, about 8MB at the indexer's 10MB-per-index
// minimum.
func WriteBatchRecords(w io.Writer, recs []IndexRecord) error {
	if len(recs) == 0 {
		return nil
	}

	buf := make([]byte, len(recs)*RecordSize)
	for i, rec := range recs {
		encodeRecord(buf[i*RecordSize:], rec)
	}
	_, err := w.Write(buf)
	return err
}
