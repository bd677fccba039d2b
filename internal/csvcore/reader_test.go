package csvcore

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func readAllRows(t *testing.T, r *Reader) [][]string {
	t.Helper()
	var rows [][]string
	for {
		ok, err := r.ReadRow()
		if err != nil {
			t.Fatalf("ReadRow: %v", err)
		}
		if !ok {
			return rows
		}
		row := r.Row()
		cells := make([]string, row.Count)
		for i, c := range row.Cells() {
			cells[i] = string(c.Materialize(r.cfg.Quote, r.cfg.Escape))
		}
		rows = append(rows, cells)
	}
}

func newTestReader(input string, cfg ReaderConfig) *Reader {
	return NewGenericReader(NewReaderCursor(strings.NewReader(input)), cfg)
}

func assertRows(t *testing.T, got, want [][]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rows %v, want %d rows %v", len(got), got, len(want), want)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("row %d: got %v, want %v", i, got[i], want[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("row %d cell %d: got %q, want %q", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestBoundaryLFOnly(t *testing.T) {
	r := newTestReader("\n\n\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, nil)
}

func TestBoundarySimpleRow(t *testing.T) {
	r := newTestReader("a,b,c\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{"a", "b", "c"}})
}

func TestBoundaryEmptyMiddleField(t *testing.T) {
	r := newTestReader("a,,c\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{"a", "", "c"}})
	if r2 := got[0][1]; r2 != "" {
		t.Fatalf("expected empty middle field, got %q", r2)
	}
}

func TestBoundaryQuotedCellWithDelimiter(t *testing.T) {
	r := newTestReader(`"a,b",c` + "\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{"a,b", "c"}})
}

func TestBoundaryDoubledQuote(t *testing.T) {
	r := newTestReader(`"a""b",c` + "\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{`a"b`, "c"}})
}

func TestBoundaryCRLF(t *testing.T) {
	r := newTestReader("x\r\ny\r\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{"x"}, {"y"}})
}

func TestBoundaryEscapedQuoteInQuoted(t *testing.T) {
	r := newTestReader(`a,"he said ""hi""",b`+"\n", ReaderConfig{})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{"a", `he said "hi"`, "b"}})
}

func TestIncompleteRowYielded(t *testing.T) {
	r := newTestReader("1,2,3", ReaderConfig{YieldIncompleteRow: true})
	got := readAllRows(t, r)
	assertRows(t, got, [][]string{{"1", "2", "3"}})
	if !r.InNewlineSkip() {
		t.Fatalf("expected InNewlineSkip true after yielded incomplete row")
	}
}

func TestIncompleteRowRejectedWithoutFlag(t *testing.T) {
	r := newTestReader("1,2,3", ReaderConfig{})
	ok, err := r.ReadRow()
	if ok {
		t.Fatalf("expected no row, got one")
	}
	var trailing *ErrTrailingData
	if !errors.As(err, &trailing) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
	if trailing.Bytes != len("1,2,3") {
		t.Fatalf("expected %d trailing bytes, got %d", len("1,2,3"), trailing.Bytes)
	}
	if r.InNewlineSkip() {
		t.Fatalf("expected InNewlineSkip false for a genuine parse failure")
	}
}

func TestHeaderLookupScenario(t *testing.T) {
	r := newTestReader("name,age\nalice,30\nbob,25\n", ReaderConfig{})

	ok, err := r.ReadRow()
	if err != nil || !ok {
		t.Fatalf("reading header row: ok=%v err=%v", ok, err)
	}
	header := r.Row()
	index := map[string]int{}
	for i, c := range header.Cells() {
		index[string(c.Materialize(r.cfg.Quote, r.cfg.Escape))] = i
	}
	if index["name"] != 0 || index["age"] != 1 {
		t.Fatalf("unexpected header index map: %v", index)
	}

	var rows []map[string]string
	for {
		ok, err := r.ReadRow()
		if err != nil {
			t.Fatalf("ReadRow: %v", err)
		}
		if !ok {
			break
		}
		row := r.Row()
		m := map[string]string{}
		for name, i := range index {
			m[name] = string(row.Cell(i).Materialize(r.cfg.Quote, r.cfg.Escape))
		}
		rows = append(rows, m)
	}
	if len(rows) != 2 || rows[0]["name"] != "alice" || rows[0]["age"] != "30" ||
		rows[1]["name"] != "bob" || rows[1]["age"] != "25" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestCustomDelimiterAndEscape(t *testing.T) {
	r := newTestReader("a\\,b;c\n", ReaderConfig{Delimiter: ';', Escape: '\\'})
	ok, err := r.ReadRow()
	if err != nil || !ok {
		t.Fatalf("ReadRow: ok=%v err=%v", ok, err)
	}
	row := r.Row()
	if !row.Cell(0).Escaped {
		t.Fatalf("expected first cell to be marked escaped")
	}
	if got := string(row.Cell(0).Materialize(r.cfg.Quote, r.cfg.Escape)); got != "a,b" {
		t.Fatalf("got %q, want %q", got, "a,b")
	}
	if got := string(row.Cell(1).Materialize(r.cfg.Quote, r.cfg.Escape)); got != "c" {
		t.Fatalf("got %q, want %q", got, "c")
	}
}

func TestCellNotEscapedMaterializeIsVerbatim(t *testing.T) {
	r := newTestReader("plain,text\n", ReaderConfig{})
	ok, err := r.ReadRow()
	if err != nil || !ok {
		t.Fatalf("ReadRow: ok=%v err=%v", ok, err)
	}
	c := r.Row().Cell(0)
	if c.Escaped {
		t.Fatalf("expected unescaped cell")
	}
	if !bytes.Equal(c.Materialize(r.cfg.Quote, r.cfg.Escape), c.Data) {
		t.Fatalf("materialize of unescaped cell must equal raw bytes")
	}
}

func TestEscapedCellMaterializeIsShorter(t *testing.T) {
	r := newTestReader(`"a""b"`+"\n", ReaderConfig{})
	ok, err := r.ReadRow()
	if err != nil || !ok {
		t.Fatalf("ReadRow: ok=%v err=%v", ok, err)
	}
	c := r.Row().Cell(0)
	if !c.Escaped {
		t.Fatalf("expected escaped cell")
	}
	mat := c.Materialize(r.cfg.Quote, r.cfg.Escape)
	if len(mat) >= len(c.Data) {
		t.Fatalf("materialized cell (%d bytes) should be shorter than raw range (%d bytes)", len(mat), len(c.Data))
	}
}

func TestFloat64InvalidYieldsZero(t *testing.T) {
	r := newTestReader("not-a-number\n", ReaderConfig{})
	ok, err := r.ReadRow()
	if err != nil || !ok {
		t.Fatalf("ReadRow: ok=%v err=%v", ok, err)
	}
	if got := r.Row().Cell(0).Float64(); got != 0.0 {
		t.Fatalf("expected 0.0 for malformed float, got %v", got)
	}
	if _, err := r.Row().Cell(0).ParseFloat(); err == nil {
		t.Fatalf("expected ParseFloat to surface the error")
	}
}

func TestRowOverflowTruncatesByDefault(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(byte('a' + i))
	}
	sb.WriteByte('\n')

	r := newTestReader(sb.String(), ReaderConfig{MaxCells: 4})
	ok, err := r.ReadRow()
	if err != nil || !ok {
		t.Fatalf("ReadRow: ok=%v err=%v", ok, err)
	}
	if r.Row().Count != 4 {
		t.Fatalf("expected 4 stored cells, got %d", r.Row().Count)
	}
	if !r.Row().Truncated {
		t.Fatalf("expected Truncated to be set")
	}
}

func TestRowOverflowErrorsWhenConfigured(t *testing.T) {
	r := newTestReader("a,b,c,d\n", ReaderConfig{MaxCells: 2, Overflow: OverflowError})
	ok, err := r.ReadRow()
	if ok {
		t.Fatalf("expected failure, got a row")
	}
	var overflow *ErrRowOverflow
	if !errors.As(err, &overflow) {
		t.Fatalf("expected ErrRowOverflow, got %v", err)
	}
}

func TestManySmallRowsThroughChunkedProducer(t *testing.T) {
	const n = 2000
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("foo,bar,baz\n")
	}

	// Force many small reads to exercise compaction and growth together.
	chunked := &fixedChunkReader{data: []byte(sb.String()), chunk: 17}
	r := NewGenericReader(NewReaderCursor(chunked), ReaderConfig{})

	count := 0
	for {
		ok, err := r.ReadRow()
		if err != nil {
			t.Fatalf("ReadRow at row %d: %v", count, err)
		}
		if !ok {
			break
		}
		row := r.Row()
		if row.Count != 3 || !row.Cell(0).Equal("foo") || !row.Cell(1).Equal("bar") || !row.Cell(2).Equal("baz") {
			t.Fatalf("row %d unexpected: %+v", count, row.Cells())
		}
		count++
	}
	if count != n {
		t.Fatalf("expected %d rows, got %d", n, count)
	}
}

// fixedChunkReader serves Read in small fixed-size pieces regardless of
// the caller's buffer size, to exercise the cursor's refill/compact/grow
// paths under adversarial chunking.
type fixedChunkReader struct {
	data  []byte
	chunk int
	pos   int
}

func (f *fixedChunkReader) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		return 0, io.EOF
	}
	n := f.chunk
	if n > len(p) {
		n = len(p)
	}
	remaining := len(f.data) - f.pos
	if n > remaining {
		n = remaining
	}
	copy(p, f.data[f.pos:f.pos+n])
	f.pos += n
	return n, nil
}
