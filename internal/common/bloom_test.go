package common

import (
	"fmt"
	"testing"
)

func TestBloomFilterMembership(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	keys := make([]string, 500)
	for i := range keys {
		keys[i] = fmt.Sprintf("key_%d", i)
		bf.Add(keys[i])
	}

	for _, k := range keys {
		if !bf.MightContain(k) {
			t.Fatalf("added key %q reported absent; negatives must be exact", k)
		}
	}

	// Absent keys: the false-positive rate is ~1%, so out of 10000 probes a
	// generous bound still catches a broken hash scheme.
	falsePositives := 0
	for i := 0; i < 10000; i++ {
		if bf.MightContain(fmt.Sprintf("absent_%d", i)) {
			falsePositives++
		}
	}
	if falsePositives > 500 {
		t.Fatalf("false positive rate way above target: %d/10000", falsePositives)
	}
}

func TestBloomFilterSerializeRoundTrip(t *testing.T) {
	bf := NewBloomFilter(100, 0.01)
	bf.Add("alpha")
	bf.Add("beta")

	restored := DeserializeBloom(bf.Serialize())
	if restored == nil {
		t.Fatal("DeserializeBloom returned nil for valid data")
	}

	size, hashes, count := bf.GetStats()
	rSize, rHashes, rCount := restored.GetStats()
	if size != rSize || hashes != rHashes || count != rCount {
		t.Fatalf("stats changed across round-trip: (%d,%d,%d) vs (%d,%d,%d)",
			size, hashes, count, rSize, rHashes, rCount)
	}

	if !restored.MightContain("alpha") || !restored.MightContain("beta") {
		t.Fatalf("restored filter lost members")
	}
}

func TestDeserializeBloomRejectsShortData(t *testing.T) {
	if DeserializeBloom(make([]byte, 10)) != nil {
		t.Fatal("expected nil for truncated data")
	}
}
