package query

import (
	"io"

	"github.com/dw/csvninja/internal/csvcore"
)

// rowExtractor pulls one CSV row at a time out of an mmapped file at an
// arbitrary byte offset, the access pattern runStandardOutput and
// runAggregation have: each matching IndexRecord names a scattered
// rec.Offset into the same mapping, not a sequential stream. A single
// CsvReader is reused across every lookup by repointing its cursor with
// Reset instead of allocating a fresh reader (and cell buffer) per row.
type rowExtractor struct {
	cursor *csvcore.MappedFileCursor
	reader *csvcore.CsvReader[*csvcore.MappedFileCursor]
	cfg    csvcore.ReaderConfig
}

// newRowExtractor builds an extractor for the given dialect, sized to
// hold at least maxCol+1 cells. YieldIncompleteRow is set so the file's
// final row is still returned even when it has no trailing newline.
func newRowExtractor(dialect csvcore.ReaderConfig, maxCol int) *rowExtractor {
	cells := maxCol + 2
	if cells < csvcore.DefaultMaxCells {
		cells = csvcore.DefaultMaxCells
	}
	dialect.MaxCells = cells
	dialect.Overflow = csvcore.OverflowTruncate
	dialect.YieldIncompleteRow = true
	cursor := csvcore.NewWindowedMappedCursor(nil, 0, 0)
	reader := csvcore.NewReader[*csvcore.MappedFileCursor](cursor, dialect)
	return &rowExtractor{cursor: cursor, reader: reader, cfg: reader.Config()}
}

// row repoints the shared cursor at data[offset:] and parses the single
// row starting there.
func (re *rowExtractor) row(data []byte, offset int64) (*csvcore.CsvCursor, error) {
	re.cursor.Reset(data, int(offset), len(data))
	ok, err := re.reader.ReadRow()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return re.reader.Row(), nil
}

// strings materializes every cell of row into buf (reusing its backing
// array), as the []string the Where-clause evaluator and aggregation code
// consume.
func (re *rowExtractor) strings(row *csvcore.CsvCursor, buf []string) []string {
	out := buf[:0]
	for _, c := range row.Cells() {
		out = append(out, string(c.Materialize(re.cfg.Quote, re.cfg.Escape)))
	}
	return out
}
