package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCreatesFileWithHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCsvWriter(WriterConfig{CsvPath: path})

	err := w.Write([]string{"id", "name"}, [][]string{{"1", "alice"}, {"2", "bob"}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "id,name\n1,alice\n2,bob\n"
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}
}

func TestWriteAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCsvWriter(WriterConfig{CsvPath: path})

	if err := w.Write([]string{"id", "name"}, [][]string{{"1", "alice"}}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := w.Write([]string{"id", "name"}, [][]string{{"2", "bob"}}); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "id,name\n1,alice\n2,bob\n" {
		t.Fatalf("file = %q", got)
	}
}

func TestWriteRejectsHeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCsvWriter(WriterConfig{CsvPath: path})

	if err := w.Write([]string{"id", "name"}, nil); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	err := w.Write([]string{"id", "email"}, [][]string{{"1", "a@b"}})
	if err == nil || !strings.Contains(err.Error(), "header mismatch") {
		t.Fatalf("expected header mismatch error, got %v", err)
	}
}

func TestWriteNewFileWithoutHeadersFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCsvWriter(WriterConfig{CsvPath: path})

	if err := w.Write(nil, [][]string{{"1"}}); err == nil {
		t.Fatalf("expected error creating a new file without headers")
	}
}

func TestWriteCustomSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCsvWriter(WriterConfig{CsvPath: path, Separator: ";"})

	if err := w.Write([]string{"a", "b"}, [][]string{{"1", "2"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if got := string(data); got != "a;b\n1;2\n" {
		t.Fatalf("file = %q", got)
	}
}
