package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingSidecarIsEmpty(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "data.csv")
	s, err := Load(csvPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.VirtualColumns) != 0 {
		t.Fatalf("expected empty schema, got %v", s.VirtualColumns)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")

	s, err := Load(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	s.AddVirtualColumn("region", "unknown")
	s.AddVirtualColumn("tier", "standard")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "data.csv_schema.json")); err != nil {
		t.Fatalf("sidecar not written where expected: %v", err)
	}

	s2, err := Load(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if s2.VirtualColumns["region"] != "unknown" || s2.VirtualColumns["tier"] != "standard" {
		t.Fatalf("round-trip lost columns: %v", s2.VirtualColumns)
	}

	s2.RemoveVirtualColumn("tier")
	if _, ok := s2.VirtualColumns["tier"]; ok {
		t.Fatalf("RemoveVirtualColumn left the column behind")
	}
}
