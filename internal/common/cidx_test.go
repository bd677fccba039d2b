package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func makeRecord(key string, offset, line int64) IndexRecord {
	var rec IndexRecord
	copy(rec.Key[:], key)
	rec.Offset = offset
	rec.Line = line
	return rec
}

func TestBlockWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw, err := NewBlockWriter(&buf)
	if err != nil {
		t.Fatalf("NewBlockWriter: %v", err)
	}

	const n = 3000 // enough to cross blockTargetSize and flush more than once
	for i := 0; i < n; i++ {
		rec := makeRecord(fmt.Sprintf("key_%06d", i), int64(i*10), int64(i+2))
		if err := bw.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord %d: %v", i, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	br, err := NewBlockReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewBlockReader: %v", err)
	}
	if len(br.Footer.Blocks) < 2 {
		t.Fatalf("expected multiple blocks, got %d", len(br.Footer.Blocks))
	}

	total := 0
	prevKey := ""
	for _, meta := range br.Footer.Blocks {
		recs, err := br.ReadBlock(meta)
		if err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
		total += len(recs)
		for _, r := range recs {
			key := string(bytes.TrimRight(r.Key[:], "\x00"))
			if key < prevKey {
				t.Fatalf("records out of order: %q after %q", key, prevKey)
			}
			prevKey = key
		}
	}
	if total != n {
		t.Fatalf("read back %d records, want %d", total, n)
	}
}

func TestBlockReaderMmapReadsBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cidx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	bw, err := NewBlockWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		if err := bw.WriteRecord(makeRecord(fmt.Sprintf("k%03d", i), int64(i), 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	br, err := NewBlockReaderMmap(path)
	if err != nil {
		t.Fatalf("NewBlockReaderMmap: %v", err)
	}
	defer br.Cleanup()

	recs, err := br.ReadBlock(br.Footer.Blocks[0])
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if len(recs) != 100 {
		t.Fatalf("got %d records, want 100", len(recs))
	}
	if got := string(bytes.TrimRight(recs[0].Key[:], "\x00")); got != "k000" {
		t.Fatalf("first key = %q", got)
	}
}

func TestBlockMetaDistinctFlag(t *testing.T) {
	var buf bytes.Buffer
	bw, err := NewBlockWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := bw.WriteRecord(makeRecord("same", int64(i), 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}

	br, err := NewBlockReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(br.Footer.Blocks) != 1 || !br.Footer.Blocks[0].IsDistinct {
		t.Fatalf("expected one distinct block, got %+v", br.Footer.Blocks)
	}
	if br.Footer.Blocks[0].RecordCount != 10 {
		t.Fatalf("RecordCount = %d, want 10", br.Footer.Blocks[0].RecordCount)
	}
}
