package simd

// ScanSeparators counts the occurrences of sep in data using the
// implementation chosen for the build architecture.
func ScanSeparators(data []byte, sep byte) uint64 {
	return scanImpl(data, sep)
}

// scanImpl is set in init() by build architecture: the SWAR counter on
// amd64 (simd_amd64.go), bytes.Count elsewhere (simd_generic.go).
var scanImpl func(data []byte, sep byte) uint64

// Scan and ScanWithSeparator (bitmap-producing) live in scan_amd64.go /
// scan_generic.go, selected by build tag.
