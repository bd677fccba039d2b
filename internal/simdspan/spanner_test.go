package simdspan

import "testing"

func pad16(s string) []byte {
	buf := make([]byte, 16)
	copy(buf, s)
	return buf
}

func TestIndex16Basic(t *testing.T) {
	tests := []struct {
		name    string
		targets []byte
		input   string
		want    int
	}{
		{"first byte matches", []byte{','}, ",abc", 0},
		{"mid match", []byte{','}, "abc,def", 3},
		{"no match hits NUL padding", []byte{','}, "abcdef", 16},
		{"quote and escape", []byte{'"', '\\'}, `ab\c"d`, 2},
		{"delimiter cr lf escape", []byte{',', '\r', '\n'}, "field\n", 5},
		{"empty targets never match", nil, "xxxxxxxxxxxxxxxx", 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.targets...)
			got := s.Index16(pad16(tt.input))
			if got != tt.want {
				t.Errorf("Index16(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestIndex16NulShortCircuits(t *testing.T) {
	// A NUL at position 2, target at position 5: NUL must win even though
	// the target byte is physically present later in the window.
	buf := pad16("ab\x00de,ghijklm")
	s := New(',')
	if got := s.Index16(buf); got != 16 {
		t.Errorf("Index16 = %d, want 16 (NUL at 2 should short-circuit)", got)
	}
}

func TestIndex16NulAtMatchPosition(t *testing.T) {
	// NUL and target coincide conceptually: NUL is never itself a target
	// (0 is the unused-slot sentinel), so it always reports 16 once hit.
	buf := make([]byte, 16)
	s := New(',')
	if got := s.Index16(buf); got != 16 {
		t.Errorf("Index16 on all-NUL buffer = %d, want 16", got)
	}
}

func TestIndex16UpToFourTargets(t *testing.T) {
	s := New('a', 'b', 'c', 'd')
	buf := pad16("xxxdxxx")
	if got := s.Index16(buf); got != 3 {
		t.Errorf("Index16 = %d, want 3", got)
	}
}

func TestNewFoldsZeroTargets(t *testing.T) {
	// escapechar == 0 must behave as if that slot were never configured.
	s := New(',', '\r', '\n', 0)
	buf := pad16("xxx,")
	if got := s.Index16(buf); got != 3 {
		t.Errorf("Index16 = %d, want 3", got)
	}
	// A literal NUL byte anywhere still short-circuits regardless.
	buf2 := []byte("xxx\x00,xxxxxxxxxxx")
	if got := s.Index16(buf2); got != 16 {
		t.Errorf("Index16 with embedded NUL = %d, want 16", got)
	}
}
