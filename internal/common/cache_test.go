package common

import "testing"

func blockAt(offset int64) BlockKey {
	return BlockKey{Path: "data_id.cidx", Offset: offset}
}

func TestBlockCacheGetPut(t *testing.T) {
	bc := NewBlockCache(int64(RecordSize) * 100)

	recs := []IndexRecord{makeRecord("a", 1, 1), makeRecord("b", 2, 2)}
	bc.Put(blockAt(0), recs)

	got := bc.Get(blockAt(0))
	if len(got) != 2 {
		t.Fatalf("Get returned %d records, want 2", len(got))
	}
	if bc.Get(blockAt(999)) != nil {
		t.Fatalf("expected miss for unknown key")
	}
	if bc.Get(BlockKey{Path: "other.cidx", Offset: 0}) != nil {
		t.Fatalf("expected miss for same offset in a different file")
	}
}

func TestBlockCacheEvictsLRU(t *testing.T) {
	// Budget for exactly 4 records: two 2-record entries fit, a third evicts
	// the least recently used.
	bc := NewBlockCache(int64(RecordSize) * 4)

	two := func(k string) []IndexRecord {
		return []IndexRecord{makeRecord(k, 0, 0), makeRecord(k, 1, 0)}
	}
	bc.Put(blockAt(0), two("a"))
	bc.Put(blockAt(1), two("b"))

	// Touch the first block so the second becomes the eviction victim.
	if bc.Get(blockAt(0)) == nil {
		t.Fatal("expected hit for block 0")
	}
	bc.Put(blockAt(2), two("c"))

	if bc.Get(blockAt(1)) != nil {
		t.Fatalf("expected block 1 to be evicted")
	}
	if bc.Get(blockAt(0)) == nil || bc.Get(blockAt(2)) == nil {
		t.Fatalf("expected blocks 0 and 2 to survive")
	}
}

func TestBlockCacheRejectsOversizedEntry(t *testing.T) {
	bc := NewBlockCache(int64(RecordSize))
	bc.Put(blockAt(0), []IndexRecord{makeRecord("x", 0, 0), makeRecord("y", 0, 0)})
	if bc.Get(blockAt(0)) != nil {
		t.Fatalf("entry larger than the whole budget must not be cached")
	}
	entries, used, _ := bc.Stats()
	if entries != 0 || used != 0 {
		t.Fatalf("expected empty cache, got entries=%d used=%d", entries, used)
	}
}
