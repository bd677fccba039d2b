// Package simdspan implements the 16-byte character-class scan that the
// row parser's inner loop drives over cell content.
//
// It reproduces the semantics of x86 PCMPISTRI used with implicit-length
// (NUL-terminated) operands: a NUL byte short-circuits the scan exactly as
// if it were the end of the haystack, even when a target byte appears
// later in the 16-byte window. This is intentionally NOT the same as a
// plain bytes.IndexAny loop.
package simdspan

// Span holds up to four target bytes to scan a 16-byte window for.
// A zero-valued slot is a sentinel and never matches; constructing a Span
// with fewer than four real targets just leaves the remaining slots zero.
type Span struct {
	t0, t1, t2, t3 byte
	n              int
}

// New builds a Span over the given target bytes (0 to 4 of them). A zero
// byte passed as a target is folded away since 0 already means "unused".
func New(targets ...byte) Span {
	var s Span
	for _, t := range targets {
		if t == 0 {
			continue
		}
		switch s.n {
		case 0:
			s.t0 = t
		case 1:
			s.t1 = t
		case 2:
			s.t2 = t
		case 3:
			s.t3 = t
		default:
			continue
		}
		s.n++
	}
	return s
}

// Index16 examines exactly 16 bytes beginning at buf[0] (the caller must
// guarantee at least 16 bytes are safe to read — the over-read guarantee
// of the cursor contract) and returns the index of the first byte matching
// any configured target, or 16 if no target appears in the window, or if a
// NUL byte occurs at or before the first match.
func (s Span) Index16(buf []byte) int {
	_ = buf[15] // bounds-check hint: panics loudly if the guarantee is violated
	for i := 0; i < 16; i++ {
		b := buf[i]
		if b == 0 {
			return 16
		}
		if s.match(b) {
			return i
		}
	}
	return 16
}

func (s Span) match(b byte) bool {
	switch s.n {
	case 0:
		return false
	case 1:
		return b == s.t0
	case 2:
		return b == s.t0 || b == s.t1
	case 3:
		return b == s.t0 || b == s.t1 || b == s.t2
	default:
		return b == s.t0 || b == s.t1 || b == s.t2 || b == s.t3
	}
}
