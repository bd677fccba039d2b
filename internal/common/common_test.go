package common

import (
	"bytes"
	"strings"
	"testing"
)

func TestMakeKeyFits(t *testing.T) {
	key, truncated := MakeKey([]byte("short"))
	if truncated {
		t.Fatalf("short value reported truncated")
	}
	if got := string(bytes.TrimRight(key[:], "\x00")); got != "short" {
		t.Fatalf("key = %q", got)
	}
}

func TestMakeKeyExactBoundary(t *testing.T) {
	val := strings.Repeat("x", KeySize)
	key, truncated := MakeKey([]byte(val))
	if truncated {
		t.Fatalf("value of exactly KeySize bytes reported truncated")
	}
	if string(key[:]) != val {
		t.Fatalf("key lost bytes at the boundary")
	}
}

func TestMakeKeyTruncates(t *testing.T) {
	val := strings.Repeat("y", KeySize+10)
	key, truncated := MakeKey([]byte(val))
	if !truncated {
		t.Fatalf("oversized value not reported truncated")
	}
	if string(key[:]) != val[:KeySize] {
		t.Fatalf("truncated key must be the KeySize-byte prefix")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	key, _ := MakeKey([]byte("answer"))
	in := IndexRecord{Key: key, Offset: 42, Line: 7}
	if err := WriteRecord(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadRecord(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round-trip mismatch: %+v != %+v", out, in)
	}
}
