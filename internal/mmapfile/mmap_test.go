package mmapfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenGuardRegion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "a,b,c\n1,2,3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got := f.Bytes()
	if string(got) != content {
		t.Fatalf("Bytes() = %q, want %q", got, content)
	}

	if cap(got)-len(got) < 16 {
		t.Fatalf("expected at least 16 guard bytes past len, got cap-len=%d", cap(got)-len(got))
	}
}

func TestOpenEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if len(f.Bytes()) != 0 {
		t.Fatalf("expected empty Bytes(), got %d", len(f.Bytes()))
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error opening missing file")
	}
}
