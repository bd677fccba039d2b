package common

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
)

// BloomFilter is a space-efficient probabilistic set used to skip .cidx
// blocks that provably don't contain a lookup key. A negative answer
// (MightContain == false) is exact; a positive one only means "maybe",
// at the configured false-positive rate.
//
// Membership uses double hashing (Kirsch-Mitzenmacher) over two CRC32
// hashes rather than k independent hash functions. The sorter's k-way
// merge feeds each distinct key into the filter as it streams past.
type BloomFilter struct {
	bits      []byte
	size      int // size in bits
	hashCount int
	count     int // elements added
}

// NewBloomFilter sizes a filter for n expected elements at the given
// false-positive rate, using the standard optima m = -n·ln(p)/ln(2)² and
// k = (m/n)·ln(2). k is capped at 10; beyond that the extra hashes cost
// more than the accuracy they buy.
func NewBloomFilter(n int, fpRate float64) *BloomFilter {
	if n < 1 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	ln2 := math.Ln2
	m := int(-float64(n) * math.Log(fpRate) / (ln2 * ln2))
	if m < 1024 {
		m = 1024
	}
	m = ((m + 7) / 8) * 8

	k := int(float64(m) / float64(n) * ln2)
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}

	return &BloomFilter{
		bits:      make([]byte, m/8),
		size:      m,
		hashCount: k,
	}
}

// hashPair derives the two base hashes for key: CRC32 of the key itself,
// and CRC32 of the reversed key plus a salt. Reversal happens on bytes,
// not runes; keys here are index keys, compared byte-wise everywhere
// else too.
func hashPair(key string) (uint32, uint32) {
	keyBytes := []byte(key)
	h1 := crc32.ChecksumIEEE(keyBytes)

	var buf [256]byte
	reversed := appendReversed(buf[:0], keyBytes)
	reversed = append(reversed, "salt"...)
	h2 := crc32.ChecksumIEEE(reversed)
	return h1, h2
}

// Add inserts a key into the filter.
func (bf *BloomFilter) Add(key string) {
	h1, h2 := hashPair(key)
	for i := 0; i < bf.hashCount; i++ {
		combined := int(h1) + i*int(h2)
		if combined < 0 {
			combined = -combined
		}
		pos := combined % bf.size
		bf.bits[pos/8] |= 1 << (pos % 8)
	}
	bf.count++
}

// MightContain reports whether key might be in the set. false is exact;
// true is subject to the configured false-positive rate.
func (bf *BloomFilter) MightContain(key string) bool {
	h1, h2 := hashPair(key)
	for i := 0; i < bf.hashCount; i++ {
		combined := int(h1) + i*int(h2)
		if combined < 0 {
			combined = -combined
		}
		pos := combined % bf.size
		if bf.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// appendReversed appends s to dst back-to-front without the []rune
// allocation a string reversal would cost.
func appendReversed(dst []byte, s []byte) []byte {
	start := len(dst)
	dst = append(dst, s...)
	for i, j := start, len(dst)-1; i < j; i, j = i+1, j-1 {
		dst[i], dst[j] = dst[j], dst[i]
	}
	return dst
}

// Serialize renders the filter as a 24-byte header (size, hashCount,
// count as big-endian int64) followed by the bit array.
func (bf *BloomFilter) Serialize() []byte {
	header := make([]byte, 24)
	binary.BigEndian.PutUint64(header[0:8], uint64(bf.size))
	binary.BigEndian.PutUint64(header[8:16], uint64(bf.hashCount))
	binary.BigEndian.PutUint64(header[16:24], uint64(bf.count))
	return append(header, bf.bits...)
}

// DeserializeBloom rebuilds a filter from Serialize's output. The bit
// array aliases data, so a caller that mmapped data must keep the
// mapping alive for the filter's lifetime.
func DeserializeBloom(data []byte) *BloomFilter {
	if len(data) < 24 {
		return nil
	}
	return &BloomFilter{
		bits:      data[24:],
		size:      int(binary.BigEndian.Uint64(data[0:8])),
		hashCount: int(binary.BigEndian.Uint64(data[8:16])),
		count:     int(binary.BigEndian.Uint64(data[16:24])),
	}
}

// GetStats returns the filter's size in bits, hash count, and element
// count.
func (bf *BloomFilter) GetStats() (size, hashCount, count int) {
	return bf.size, bf.hashCount, bf.count
}

// GetMemoryUsage returns the serialized footprint in bytes.
func (bf *BloomFilter) GetMemoryUsage() int {
	return len(bf.bits) + 24
}

// LoadBloomFilter reads a serialized filter from a file.
func LoadBloomFilter(path string) (*BloomFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bloom := DeserializeBloom(data)
	if bloom == nil {
		return nil, fmt.Errorf("invalid bloom filter data")
	}
	return bloom, nil
}

// LoadBloomFilterMmap maps a serialized filter for zero-copy access. The
// returned cleanup releases the mapping; the filter must not be used
// after calling it.
func LoadBloomFilterMmap(path string) (*BloomFilter, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	data, err := MmapFile(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	// The descriptor can go as soon as the mapping exists.
	f.Close()

	bloom := DeserializeBloom(data)
	if bloom == nil {
		MunmapFile(data)
		return nil, nil, fmt.Errorf("invalid bloom filter data")
	}

	return bloom, func() { MunmapFile(data) }, nil
}
