// Package indexer builds the sorted, compressed column indexes the query
// engine searches. Scanner is its ingestion half: it memory-maps a CSV
// file once, splits it into per-worker byte ranges on safe record
// boundaries, and drives a csvcore reader over each range in parallel so
// every worker gets correctly quote- and escape-aware field extraction
// without copying the file.
package indexer

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dw/csvninja/internal/common"
	"github.com/dw/csvninja/internal/csvcore"
	"github.com/dw/csvninja/internal/simd"
)

// Scanner reads a CSV file through a single mmap and fans row parsing out
// across workers. The dialect (delimiter, quote, escape) flows from the
// caller through every reader the scanner builds, including the
// quote-parity walk that picks chunk boundaries.
type Scanner struct {
	filePath    string
	dialect     csvcore.ReaderConfig
	headers     []string
	headerMap   map[string]int
	data        []byte
	fileSize    int64
	workers     int
	startTime   time.Time
	rowsScanned int64
	scanBytes   int64
}

// NewScanner opens and memory-maps filePath and reads its header row.
// Zero-valued dialect fields take the csvcore defaults (",", `"`, no
// escape).
func NewScanner(filePath string, dialect csvcore.ReaderConfig) (*Scanner, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	data, err := common.MmapFile(file)
	if err != nil {
		return nil, err
	}

	s := &Scanner{
		filePath:  filePath,
		dialect:   dialect,
		data:      data,
		fileSize:  stat.Size(),
		workers:   runtime.NumCPU(),
		startTime: time.Now(),
	}

	if err := s.readHeaders(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// readHeaders parses the first row through csvcore so a quoted header name
// (one containing the separator, say) is handled the same way as any
// other cell, instead of the raw byte split the original scanner used.
// It also captures the reader's effective configuration, so the rest of
// the scanner sees the dialect with defaults substituted.
func (s *Scanner) readHeaders() error {
	cur := csvcore.NewWindowedMappedCursor(s.data, 0, len(s.data))
	r := csvcore.NewReader[*csvcore.MappedFileCursor](cur, s.dialect)
	s.dialect = r.Config()
	ok, err := r.ReadRow()
	if err != nil {
		return fmt.Errorf("parsing header row: %w", err)
	}
	if !ok {
		return fmt.Errorf("empty or invalid csv")
	}

	row := r.Row()
	s.headers = make([]string, row.Count)
	s.headerMap = make(map[string]int, row.Count)

	for i, cell := range row.Cells() {
		name := strings.TrimSpace(string(cell.Materialize(s.dialect.Quote, s.dialect.Escape)))
		name = strings.TrimPrefix(name, "\ufeff") // leading BOM on the first header
		s.headers[i] = name
		s.headerMap[strings.ToLower(name)] = i
	}
	return nil
}

// GetColumnIndex returns the zero-based index of a column, matched
// case-insensitively.
func (s *Scanner) GetColumnIndex(name string) (int, bool) {
	idx, ok := s.headerMap[strings.ToLower(strings.TrimSpace(name))]
	return idx, ok
}

// GetHeaders returns the column names in file order.
func (s *Scanner) GetHeaders() []string {
	return s.headers
}

// ValidateColumns returns an error naming the first column in columns that
// isn't present in the file's header row.
func (s *Scanner) ValidateColumns(columns []string) error {
	for _, col := range columns {
		if _, ok := s.GetColumnIndex(col); !ok {
			return fmt.Errorf("column not found: %s (headers: %v)", col, s.headers)
		}
	}
	return nil
}

// SetWorkers overrides the parallelism Scan uses; n <= 0 is ignored.
func (s *Scanner) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// Scan partitions the data region after the header into s.workers ranges,
// each starting on a safe record boundary, and runs handler once per data
// row with the key columns named by indexDefs. handler must be
// thread-safe; it's called concurrently from every worker.
func (s *Scanner) Scan(indexDefs [][]int, handler func(workerID int, keys [][]byte, offset, line int64)) error {
	startIdx := bytes.IndexByte(s.data, '\n') + 1
	if startIdx <= 0 || startIdx >= len(s.data) {
		return nil
	}

	dataSize := len(s.data)
	chunkSize := (dataSize - startIdx) / s.workers

	// Precompute every boundary up front so workers never race to decide
	// where one chunk ends and the next begins.
	boundaries := make([]int, s.workers+1)
	boundaries[0] = startIdx
	boundaries[s.workers] = dataSize
	for i := 1; i < s.workers; i++ {
		hint := startIdx + i*chunkSize
		if hint < dataSize {
			boundaries[i] = findSafeRecordBoundary(s.data, hint, s.dialect.Quote)
		} else {
			boundaries[i] = dataSize
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		start, end := boundaries[i], boundaries[i+1]
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(chunkStart, chunkEnd, workerID int) {
			defer wg.Done()
			s.processChunk(chunkStart, chunkEnd, workerID, indexDefs, handler)
		}(start, end, i)
	}
	wg.Wait()

	s.scanBytes = int64(dataSize)
	return nil
}

// findSafeRecordBoundary walks forward from hint to the next newline that
// is not inside a quoted field, so a chunk boundary never splits a
// multi-line quoted cell across two workers. quote is the dialect's
// quoting byte. The quote count per candidate line uses
// simd.ScanSeparators as a fast prefilter; only the parity of that count
// matters here; the per-cell parsing itself happens later, in
// processChunk, through csvcore.
func findSafeRecordBoundary(data []byte, hint int, quote byte) int {
	pos := hint
	if pos >= len(data) {
		return len(data)
	}
	nextNL := bytes.IndexByte(data[pos:], '\n')
	if nextNL == -1 {
		return len(data)
	}
	currentNL := pos + nextNL

	for {
		if currentNL+1 >= len(data) {
			return len(data)
		}
		nextNL := bytes.IndexByte(data[currentNL+1:], '\n')
		if nextNL == -1 {
			return currentNL + 1
		}
		nextPos := currentNL + 1 + nextNL

		quotes := simd.ScanSeparators(data[currentNL+1:nextPos], quote)
		if quotes%2 == 0 {
			return currentNL + 1
		}
		// An odd quote count means this candidate line is half of a
		// multi-line quoted cell; the real boundary is further out.
		currentNL = nextPos
	}
}

// processChunk parses every complete row in data[start:end] with a
// csvcore reader scoped to that window, emitting the configured key
// columns for each row through handler.
func (s *Scanner) processChunk(start, end, workerID int, indexDefs [][]int, handler func(workerID int, keys [][]byte, offset, line int64)) {
	if start >= len(s.data) || start >= end {
		return
	}
	if end > len(s.data) {
		end = len(s.data)
	}

	maxCol := -1
	for _, indices := range indexDefs {
		for _, idx := range indices {
			if idx > maxCol {
				maxCol = idx
			}
		}
	}

	keys := make([][]byte, len(indexDefs))
	var scratch []byte

	chunkCfg := s.dialect
	chunkCfg.MaxCells = maxCol + 1
	chunkCfg.Overflow = csvcore.OverflowTruncate
	chunkCfg.YieldIncompleteRow = false // a chunk boundary is always a safe row boundary

	cur := csvcore.NewWindowedMappedCursor(s.data, start, end)
	reader := csvcore.NewReader[*csvcore.MappedFileCursor](cur, chunkCfg)

	var localRows, localBytes int64
	cfg := reader.Config()

	for {
		rowStart := int64(start + cur.Offset())
		ok, err := reader.ReadRow()
		if err != nil || !ok {
			break
		}
		row := reader.Row()
		rowEnd := int64(start + cur.Offset())
		if row.Count == 0 {
			continue
		}

		keys, scratch = buildIndexKeys(row, indexDefs, keys, scratch[:0], cfg)
		handler(workerID, keys, rowStart, 0)

		localRows++
		localBytes += rowEnd - rowStart

		if localRows%65536 == 0 {
			atomic.AddInt64(&s.scanBytes, localBytes)
			atomic.AddInt64(&s.rowsScanned, localRows)
			localBytes, localRows = 0, 0
		}
	}

	atomic.AddInt64(&s.scanBytes, localBytes)
	atomic.AddInt64(&s.rowsScanned, localRows)
}

// buildIndexKeys materializes the key column(s) for each index definition
// into keys, using scratch as backing storage for composite (multi-column)
// keys. It returns the possibly-reallocated keys and scratch slices.
func buildIndexKeys(row *csvcore.CsvCursor, indexDefs [][]int, keys [][]byte, scratch []byte, cfg csvcore.ReaderConfig) ([][]byte, []byte) {
	get := func(idx int) []byte {
		if idx >= row.Count {
			return nil
		}
		return row.Cell(idx).Materialize(cfg.Quote, cfg.Escape)
	}

	for i, indices := range indexDefs {
		if len(indices) == 1 {
			keys[i] = get(indices[0])
			continue
		}
		start := len(scratch)
		scratch = append(scratch, '[')
		for j, idx := range indices {
			if j > 0 {
				scratch = append(scratch, ',')
			}
			scratch = append(scratch, '"')
			scratch = append(scratch, get(idx)...)
			scratch = append(scratch, '"')
		}
		scratch = append(scratch, ']')
		keys[i] = scratch[start:len(scratch):len(scratch)]
	}
	return keys, scratch
}

// GetStats reports cumulative scan progress.
func (s *Scanner) GetStats() (rowsScanned int64, bytesRead int64, elapsed time.Duration) {
	return atomic.LoadInt64(&s.rowsScanned), atomic.LoadInt64(&s.scanBytes), time.Since(s.startTime)
}

// Close releases the scanner's mmap.
func (s *Scanner) Close() error {
	return common.MunmapFile(s.data)
}

// ScanProgress renders a short human-readable progress line.
func (s *Scanner) ScanProgress() string {
	elapsed := time.Since(s.startTime)
	mb := float64(s.fileSize) / 1024 / 1024
	return fmt.Sprintf("Scanned %.1f MB in %v", mb, elapsed.Round(time.Millisecond))
}
