package csvcore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMappedFileCursorReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "name,age\nalice,30\nbob,25\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cur, err := OpenMappedFile(path)
	if err != nil {
		t.Fatalf("OpenMappedFile: %v", err)
	}
	defer cur.Close()

	if cur.Size() != len(content) {
		t.Fatalf("got size %d, want %d", cur.Size(), len(content))
	}
	if string(cur.Bytes()) != content {
		t.Fatalf("got %q, want %q", cur.Bytes(), content)
	}
	if cur.Fill() {
		t.Fatalf("Fill on a mapped cursor must always report false")
	}

	r := NewGenericReader(cur, ReaderConfig{})
	rows := readAllRows(t, r)
	assertRows(t, rows, [][]string{{"name", "age"}, {"alice", "30"}, {"bob", "25"}})
}

func TestMappedFileCursorOverReadIsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cur, err := OpenMappedFile(path)
	if err != nil {
		t.Fatalf("OpenMappedFile: %v", err)
	}
	defer cur.Close()

	data := cur.Bytes()
	full := data[:cap(data)]
	for i := cur.Size(); i < cur.Size()+guardSize; i++ {
		if full[i] != 0 {
			t.Fatalf("expected guard byte at %d to be zero, got %d", i, full[i])
		}
	}
}

func TestWindowedMappedCursor(t *testing.T) {
	backing := append([]byte("aaa,bbb\nccc,ddd\n"), make([]byte, guardSize)...)
	full := backing[:len(backing)-guardSize]

	first := NewWindowedMappedCursor(full, 0, 8) // "aaa,bbb\n"
	second := NewWindowedMappedCursor(full, 8, len(full))

	r1 := NewReader[*MappedFileCursor](first, ReaderConfig{})
	ok, err := r1.ReadRow()
	if err != nil || !ok {
		t.Fatalf("first window ReadRow: ok=%v err=%v", ok, err)
	}
	if !r1.Row().Cell(0).Equal("aaa") || !r1.Row().Cell(1).Equal("bbb") {
		t.Fatalf("unexpected first row: %+v", r1.Row().Cells())
	}

	r2 := NewReader[*MappedFileCursor](second, ReaderConfig{})
	ok, err = r2.ReadRow()
	if err != nil || !ok {
		t.Fatalf("second window ReadRow: ok=%v err=%v", ok, err)
	}
	if !r2.Row().Cell(0).Equal("ccc") || !r2.Row().Cell(1).Equal("ddd") {
		t.Fatalf("unexpected second row: %+v", r2.Row().Cells())
	}
}
