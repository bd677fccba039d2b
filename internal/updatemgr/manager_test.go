package updatemgr

import (
	"path/filepath"
	"testing"
)

func TestSetGetSaveLoad(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "data.csv")

	um, err := Load(csvPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if um.GetRow(7) != nil {
		t.Fatalf("expected no overrides for a fresh manager")
	}

	um.Set(7, "status", "void")
	um.Set(7, "amount", "0")
	um.Set(12, "status", "paid")

	if row := um.GetRow(7); row["status"] != "void" || row["amount"] != "0" {
		t.Fatalf("GetRow(7) = %v", row)
	}

	if err := um.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	um2, err := Load(csvPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row := um2.GetRow(12); row["status"] != "paid" {
		t.Fatalf("reloaded GetRow(12) = %v", row)
	}
	if len(um2.Overrides) != 2 {
		t.Fatalf("expected 2 overridden rows, got %d", len(um2.Overrides))
	}
}
