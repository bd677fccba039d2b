package query

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dw/csvninja/internal/csvcore"
)

func writeTestCsv(t *testing.T, rows ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCountAllViaCsv(t *testing.T) {
	path := writeTestCsv(t,
		"id,name",
		"1,alice",
		"2,bob",
		"3,carol",
	)

	var out bytes.Buffer
	eng := NewQueryEngine(QueryConfig{CsvPath: path, CountOnly: true})
	eng.Writer = &out
	if err := eng.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "3" {
		t.Fatalf("count = %q, want 3", got)
	}
}

func TestFullScanWhereFilter(t *testing.T) {
	path := writeTestCsv(t,
		"id,state,amount",
		"1,CA,100",
		"2,NY,200",
		"3,CA,300",
	)

	cond, err := ParseCondition([]byte(`{"state":"CA"}`))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	eng := NewQueryEngine(QueryConfig{
		CsvPath:  path,
		IndexDir: filepath.Dir(path), // no indexes there; forces full scan
		Where:    cond,
		CountOnly: true,
	})
	eng.Writer = &out
	if err := eng.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "2" {
		t.Fatalf("count = %q, want 2", got)
	}
}

func TestFullScanQuotedCells(t *testing.T) {
	path := writeTestCsv(t,
		"id,desc",
		`1,"contains, comma"`,
		`2,"has ""quotes"""`,
		"3,plain",
	)

	cond, err := ParseCondition([]byte(`{"desc":"contains, comma"}`))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	eng := NewQueryEngine(QueryConfig{
		CsvPath:   path,
		IndexDir:  filepath.Dir(path),
		Where:     cond,
		CountOnly: true,
	})
	eng.Writer = &out
	if err := eng.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "1" {
		t.Fatalf("count = %q, want 1 (quoted cell should match its materialized value)", got)
	}
}

func TestFullScanOffsetsAndLines(t *testing.T) {
	path := writeTestCsv(t,
		"id,name",
		"1,alice",
		"2,bob",
	)

	cond, err := ParseCondition([]byte(`{"name":"bob"}`))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	eng := NewQueryEngine(QueryConfig{
		CsvPath:  path,
		IndexDir: filepath.Dir(path),
		Where:    cond,
	})
	eng.Writer = &out
	if err := eng.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// "id,name\n" is 8 bytes, "1,alice\n" is 8 bytes; bob's row starts at 16
	// and is line 3 (header is line 1).
	want := fmt.Sprintf("%d,%d", 16, 3)
	if got := strings.TrimSpace(out.String()); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRowExtractorScatteredLookups(t *testing.T) {
	content := "a,b\nc,d\ne,f" // final row has no trailing newline
	data := append([]byte(content), make([]byte, 16)...)
	full := data[:len(content)]

	re := newRowExtractor(csvcore.ReaderConfig{}, 1)
	for _, tt := range []struct {
		offset int64
		want   []string
	}{
		{0, []string{"a", "b"}},
		{4, []string{"c", "d"}},
		{8, []string{"e", "f"}},
	} {
		row, err := re.row(full, tt.offset)
		if err != nil {
			t.Fatalf("row(%d): %v", tt.offset, err)
		}
		got := re.strings(row, nil)
		if len(got) != len(tt.want) || got[0] != tt.want[0] || got[1] != tt.want[1] {
			t.Fatalf("row(%d) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}
