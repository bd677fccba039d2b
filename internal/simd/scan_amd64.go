//go:build amd64

// Package simd provides bulk CSV delimiter scanning: Scan and
// ScanWithSeparator build 64-bit bitmaps of quote/separator/newline
// positions over a chunk in one pass, and ScanSeparators counts one byte.
// The indexer's safe-record-boundary search uses ScanSeparators to count
// the quotes on each candidate line.
//
// On AMD64 the inner loop processes 8 bytes per word using the classic
// "has zero byte" SWAR trick (no cgo, no hand-written assembly — Go
// cannot inline an asm call across this loop cheaply enough to be worth
// it; see DESIGN.md), falling back to a straight byte loop only for a
// chunk's final partial word.
package simd

import "golang.org/x/sys/cpu"

// useAVX2 / useSSE42 report which wide-register instruction set the CPU
// advertises. Neither changes the scan algorithm below (every CPU runs
// the same portable SWAR word scan); HasAVX2 exposes the AVX2 result to
// callers.
var useAVX2 bool
var useSSE42 bool

func init() {
	useAVX2 = cpu.X86.HasAVX2
	useSSE42 = cpu.X86.HasSSE42
}

// HasAVX2 returns true if AVX2 is available on this CPU.
func HasAVX2() bool {
	return useAVX2
}

const swarOnes = 0x0101010101010101
const swarHighBits = 0x8080808080808080

// hasByteMask returns a mask with the 0x80 bit of byte i set whenever
// word's byte i equals b, and no other bits set. It tests each byte of
// v = word^broadcast(b) for zero without letting a borrow or carry cross
// into the next byte, so a match never flags its neighbour.
func hasByteMask(word uint64, b byte) uint64 {
	const low7 = 0x7f7f7f7f7f7f7f7f
	v := word ^ (swarOnes * uint64(b))
	return ^(((v & low7) + low7) | v | low7)
}

// scanWord sets, for each byte in the 8-byte word starting at bitBase,
// the corresponding bit in quotes/commas/newlines.
func scanWord(word uint64, bitBase int, quotes, commas, newlines []uint64) {
	qMask := hasByteMask(word, '"')
	cMask := hasByteMask(word, ',')
	nMask := hasByteMask(word, '\n')
	if qMask|cMask|nMask == 0 {
		return
	}
	for i := 0; i < 8; i++ {
		bit := bitBase + i
		wordIdx := bit / 64
		bitPos := uint(bit % 64)
		shift := uint(i * 8)
		if (qMask>>shift)&0x80 != 0 {
			quotes[wordIdx] |= 1 << bitPos
		}
		if (cMask>>shift)&0x80 != 0 {
			commas[wordIdx] |= 1 << bitPos
		}
		if (nMask>>shift)&0x80 != 0 {
			newlines[wordIdx] |= 1 << bitPos
		}
	}
}

// Scan scans the input buffer and populates bitmaps for quotes, commas, and
// newlines.
//
// Each bit in the output slices corresponds to one byte in the input. A bit
// is set to 1 if that byte is the corresponding character.
//
// The bitmaps must be pre-allocated with length >= (len(input) + 63) / 64.
func Scan(input []byte, quotes, commas, newlines []uint64) {
	n := len(input)
	i := 0
	for ; i+8 <= n; i += 8 {
		word := le64(input[i : i+8])
		scanWord(word, i, quotes, commas, newlines)
	}
	for ; i < n; i++ {
		b := input[i]
		wordIdx := i / 64
		bitPos := uint(i % 64)
		switch b {
		case '"':
			quotes[wordIdx] |= 1 << bitPos
		case ',':
			commas[wordIdx] |= 1 << bitPos
		case '\n':
			newlines[wordIdx] |= 1 << bitPos
		}
	}
}

// ScanWithSeparator scans the input buffer for quotes, a custom separator,
// and newlines. Useful for CSV files that use semicolons, tabs, or other
// separators in place of a comma.
func ScanWithSeparator(input []byte, sep byte, quotes, seps, newlines []uint64) {
	n := len(input)
	i := 0
	for ; i+8 <= n; i += 8 {
		word := le64(input[i : i+8])
		qMask := hasByteMask(word, '"')
		sMask := hasByteMask(word, sep)
		nMask := hasByteMask(word, '\n')
		if qMask|sMask|nMask == 0 {
			continue
		}
		for j := 0; j < 8; j++ {
			bit := i + j
			wordIdx := bit / 64
			bitPos := uint(bit % 64)
			shift := uint(j * 8)
			if (qMask>>shift)&0x80 != 0 {
				quotes[wordIdx] |= 1 << bitPos
			}
			if (sMask>>shift)&0x80 != 0 {
				seps[wordIdx] |= 1 << bitPos
			}
			if (nMask>>shift)&0x80 != 0 {
				newlines[wordIdx] |= 1 << bitPos
			}
		}
	}
	for ; i < n; i++ {
		b := input[i]
		wordIdx := i / 64
		bitPos := uint(i % 64)
		switch b {
		case '"':
			quotes[wordIdx] |= 1 << bitPos
		case sep:
			seps[wordIdx] |= 1 << bitPos
		case '\n':
			newlines[wordIdx] |= 1 << bitPos
		}
	}
}

// le64 reads 8 bytes as a little-endian word, matching the byte order the
// SWAR masks above assume (byte i occupies bits [8i, 8i+8)).
func le64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}
