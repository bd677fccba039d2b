package csvcore

import (
	"fmt"
	"strconv"

	"github.com/dw/csvninja/internal/simdspan"
)

// Cell is a zero-copy view into a cursor's current window: a byte range
// plus a flag recording whether it contains quote/escape byte pairs that
// must be reduced on Materialize. Cells are only valid until the next
// ReadRow call on the CsvReader that produced them.
type Cell struct {
	Data    []byte
	Escaped bool
}

// Equal does a byte-exact comparison against the cell's raw (unescaped)
// range.
func (c Cell) Equal(s string) bool {
	return string(c.Data) == s
}

// Float64 parses the cell's byte range as a decimal floating-point number.
// Invalid input yields 0.0, matching the source's silent-failure behavior
// (see DESIGN.md's note on this Open Question). Callers that want to
// observe a parse failure should use ParseFloat instead.
func (c Cell) Float64() float64 {
	f, _ := strconv.ParseFloat(string(c.Data), 64)
	return f
}

// ParseFloat parses the cell the same way Float64 does but surfaces the
// error instead of swallowing it.
func (c Cell) ParseFloat() (float64, error) {
	return strconv.ParseFloat(string(c.Data), 64)
}

// Materialize returns an owned byte buffer equal to the cell's logical
// value: the raw range verbatim when Escaped is false, or the raw range
// with every quote (and, if non-zero, escape) byte that appears paired
// with its following byte removed, when Escaped is true. Linear in cell
// size.
func (c Cell) Materialize(quote, escape byte) []byte {
	if !c.Escaped {
		out := make([]byte, len(c.Data))
		copy(out, c.Data)
		return out
	}
	out := make([]byte, 0, len(c.Data))
	data := c.Data
	for i := 0; i < len(data); i++ {
		b := data[i]
		if (b == quote || (escape != 0 && b == escape)) && i+1 < len(data) {
			out = append(out, data[i+1])
			i++
			continue
		}
		out = append(out, b)
	}
	return out
}

// OverflowPolicy decides what happens when a row accumulates more cells
// than ReaderConfig.MaxCells allows.
type OverflowPolicy int

const (
	// OverflowTruncate parses (and discards) cells beyond MaxCells so the
	// state machine stays correctly positioned for the next row, and sets
	// CsvCursor.Truncated. This is the default.
	OverflowTruncate OverflowPolicy = iota
	// OverflowError fails the row with ErrRowOverflow instead.
	OverflowError
)

// DefaultMaxCells is the row cell capacity used when ReaderConfig.MaxCells
// is left at zero.
const DefaultMaxCells = 256

// ReaderConfig configures a CsvReader's delimiter, quoting, escaping, and
// end-of-stream behavior. The zero value is not directly usable; use
// NewReader, which applies the defaults documented per field.
type ReaderConfig struct {
	Delimiter byte // field separator; default ','
	Quote     byte // field-quoting byte; default '"'
	Escape    byte // in-field escape; 0 means none, the default

	// YieldIncompleteRow, when true, emits a final row built from
	// whatever cells were accumulated even if the stream ends without a
	// terminating newline.
	YieldIncompleteRow bool

	MaxCells int // row cell capacity; default DefaultMaxCells
	Overflow OverflowPolicy

	// Debug, if non-nil, receives parser trace messages. nil (the
	// default) is a no-op; there is no global debug flag.
	Debug func(format string, args ...any)
}

func (cfg *ReaderConfig) setDefaults() {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if cfg.Quote == 0 {
		cfg.Quote = '"'
	}
	if cfg.MaxCells == 0 {
		cfg.MaxCells = DefaultMaxCells
	}
}

// CsvCursor is the current row: up to MaxCells cells, zero-copy views into
// the CsvReader's cursor window. It is owned by the CsvReader and reused
// across ReadRow calls — retain a cell past the next ReadRow by calling
// Materialize.
type CsvCursor struct {
	cells     []Cell
	Count     int
	Truncated bool
}

// Cell returns the i'th cell of the current row.
func (row *CsvCursor) Cell(i int) Cell {
	return row.cells[i]
}

// Cells returns the populated prefix of the row's cell slice. The
// returned slice aliases CsvCursor's storage and is invalidated by the
// next ReadRow.
func (row *CsvCursor) Cells() []Cell {
	return row.cells[:row.Count]
}

// ByValue does a linear scan over the row's cells, comparing each cell's
// materialized value against value. It is intended for one-off header
// lookups, not hot-path field access.
func (row *CsvCursor) ByValue(value string, quote, escape byte) (Cell, bool) {
	for i := 0; i < row.Count; i++ {
		if string(row.cells[i].Materialize(quote, escape)) == value {
			return row.cells[i], true
		}
	}
	return Cell{}, false
}

func (row *CsvCursor) reset() {
	row.Count = 0
	row.Truncated = false
}

// ErrTrailingData reports that the stream ended with unparsed residue
// that was not a clean row boundary — typically a missing final newline
// or an unbalanced quote.
type ErrTrailingData struct {
	Bytes int
}

func (e *ErrTrailingData) Error() string {
	return fmt.Sprintf("csvcore: %d trailing bytes after last complete row (missing final newline or unbalanced quote?)", e.Bytes)
}

// ErrRowOverflow reports that a row exceeded ReaderConfig.MaxCells and
// ReaderConfig.Overflow was set to OverflowError.
type ErrRowOverflow struct {
	MaxCells int
}

func (e *ErrRowOverflow) Error() string {
	return fmt.Sprintf("csvcore: row exceeded %d cells", e.MaxCells)
}

// parseState is the row state machine's state tag. Transitions between
// states are direct assignments inside a single tight loop rather than
// goto labels or per-state closures, so the compiler can keep p, n and
// state themselves in registers across the loop body.
type parseState int

const (
	stateRowStart parseState = iota
	stateCellStart
	stateInQuoted
	stateAfterQuoted
	stateInUnquoted
	stateAfterUnquoted
)

// CsvReader drives a row parser state machine over a Cursor's window,
// calling Fill when a row cannot be completed within the current window.
// C is the concrete cursor type; instantiate CsvReader[*MappedFileCursor]
// or CsvReader[*BufferedStreamCursor] directly on a hot path to avoid
// interface dispatch around Bytes/Size, or CsvReader[Cursor] for the
// general case where the concrete type isn't known until runtime.
type CsvReader[C Cursor] struct {
	cursor C
	cfg    ReaderConfig

	quotedSpan   simdspan.Span
	unquotedSpan simdspan.Span

	row         CsvCursor
	newlineSkip bool
}

// NewReader builds a CsvReader over cursor with the given configuration.
// Zero-valued fields in cfg take their documented defaults.
func NewReader[C Cursor](cursor C, cfg ReaderConfig) *CsvReader[C] {
	cfg.setDefaults()
	return &CsvReader[C]{
		cursor:       cursor,
		cfg:          cfg,
		quotedSpan:   simdspan.New(cfg.Quote, cfg.Escape),
		unquotedSpan: simdspan.New(cfg.Delimiter, '\r', '\n', cfg.Escape),
		row:          CsvCursor{cells: make([]Cell, cfg.MaxCells)},
		newlineSkip:  true,
	}
}

// Reader is a CsvReader over the Cursor interface, for callers that don't
// know (or don't care about) the concrete cursor type.
type Reader = CsvReader[Cursor]

// NewGenericReader builds a Reader (CsvReader[Cursor]) — the general
// entry point for io.Reader/callable/iterator producers.
func NewGenericReader(cursor Cursor, cfg ReaderConfig) *Reader {
	return NewReader[Cursor](cursor, cfg)
}

// Row returns the current row. Valid only immediately after a ReadRow
// call that returned (true, nil).
func (r *CsvReader[C]) Row() *CsvCursor {
	return &r.row
}

// InNewlineSkip reports whether the reader is positioned exactly at a row
// boundary: true immediately after any successfully-terminated row
// (including a YieldIncompleteRow emission), false whenever residual
// bytes remain that do not parse as a complete row. Callers use this to
// distinguish "trailing unparsed bytes" from a benign end-of-stream.
func (r *CsvReader[C]) InNewlineSkip() bool {
	return r.newlineSkip
}

// Err returns the underlying cursor's Err(): the producer failure ReadRow
// surfaced, if any. ErrTrailingData and ErrRowOverflow are returned by
// ReadRow only and are not reported here.
func (r *CsvReader[C]) Err() error {
	return r.cursor.Err()
}

// Config returns the effective configuration (after default substitution)
// this reader was built with, for callers that need the active
// Quote/Escape/Delimiter bytes to materialize cells themselves.
func (r *CsvReader[C]) Config() ReaderConfig {
	return r.cfg
}

func (r *CsvReader[C]) addCell(data []byte, escaped bool) {
	if r.row.Count >= len(r.row.cells) {
		r.row.Truncated = true
		return
	}
	r.row.cells[r.row.Count] = Cell{Data: data, Escaped: escaped}
	r.row.Count++
}

// ReadRow parses the next row from the cursor. It returns (true, nil) with
// Row() populated on success, (false, nil) on clean end-of-stream, or
// (false, err) if the producer failed or the stream ended with unparsed
// trailing data.
func (r *CsvReader[C]) ReadRow() (bool, error) {
	for {
		data := r.cursor.Bytes()
		n := r.cursor.Size()

		ok, consumed := r.tryParse(data, n, false)
		if ok {
			r.cursor.Consume(consumed)
			r.newlineSkip = true
			if r.row.Truncated && r.cfg.Overflow == OverflowError {
				return false, &ErrRowOverflow{MaxCells: len(r.row.cells)}
			}
			if r.cfg.Debug != nil {
				r.cfg.Debug("csvcore: row with %d cells (truncated=%v)", r.row.Count, r.row.Truncated)
			}
			return true, nil
		}

		if r.cursor.Fill() {
			continue // window grew; retry tryParse from its start
		}

		if err := r.cursor.Err(); err != nil {
			r.newlineSkip = false
			return false, err
		}

		// Clean producer exhaustion. Re-read the (now final) window.
		data = r.cursor.Bytes()
		n = r.cursor.Size()

		if r.cfg.YieldIncompleteRow {
			ok, consumed = r.tryParse(data, n, true)
			if ok {
				r.cursor.Consume(consumed)
				r.newlineSkip = true
				if r.row.Truncated && r.cfg.Overflow == OverflowError {
					return false, &ErrRowOverflow{MaxCells: len(r.row.cells)}
				}
				return true, nil
			}
		}

		// A run of bare trailing CR/LF (blank lines after the last
		// record) is benign end-of-stream, not trailing garbage.
		skip := 0
		for skip < n && (data[skip] == '\r' || data[skip] == '\n') {
			skip++
		}
		if skip > 0 {
			r.cursor.Consume(skip)
			n -= skip
		}

		if n > 0 {
			r.newlineSkip = false
			return false, &ErrTrailingData{Bytes: n}
		}
		r.newlineSkip = true
		return false, nil
	}
}

// spanFind scans data[p:n] (the confirmed pending region) for the first
// byte matching span, using 16-byte Span.Index16 windows — including, at
// the tail, a window that reads past n into the cursor's guard region,
// which the over-read guarantee promises is always safe to touch. A match
// reported at or past n is not yet confirmed data and is ignored; the
// caller must wait for a refill (or, at true end of stream, treat it as
// absent). It returns (idx, true) on a confirmed match, or (n, false) if
// none was found within the confirmed region.
func spanFind(span simdspan.Span, data []byte, p, n int) (idx int, found bool) {
	for p+16 <= n {
		off := span.Index16(data[p : p+16])
		if off != 16 {
			return p + off, true
		}
		p += 16
	}
	if p >= n {
		return n, false
	}
	off := span.Index16(data[p : p+16])
	if off != 16 && p+off < n {
		return p + off, true
	}
	return n, false
}

// tryParse attempts to parse exactly one row out of data[:n], the
// cursor's current confirmed window. On success it populates r.row and
// returns (true, consumed) where consumed is the byte count the caller
// should Consume from the cursor. On failure (ran off the confirmed end
// mid-row) it returns (false, 0); the caller refills and retries from the
// start of the (now larger) window, since nothing was consumed.
//
// final indicates the producer is exhausted and no further Fill can grow
// n: in that case, running off the end while scanning unquoted content
// closes the in-progress cell at the true end of input instead of
// requesting more data, implementing YieldIncompleteRow.
func (r *CsvReader[C]) tryParse(data []byte, n int, final bool) (done bool, consumed int) {
	r.row.reset()

	p := 0
	state := stateRowStart
	cellStart := 0
	escaped := false

	for {
		switch state {
		case stateRowStart:
			for p < n && (data[p] == '\r' || data[p] == '\n') {
				p++
			}
			if p >= n {
				return false, 0
			}
			state = stateCellStart

		case stateCellStart:
			if p >= n {
				if final && r.row.Count > 0 {
					r.addCell(data[n:n], false)
					return true, n
				}
				return false, 0
			}
			switch b := data[p]; {
			case b == '\r' || b == '\n':
				r.addCell(data[p:p], false)
				p++
				return true, p
			case b == r.cfg.Quote:
				p++
				cellStart = p
				escaped = false
				state = stateInQuoted
			default:
				cellStart = p
				escaped = false
				state = stateInUnquoted
			}

		case stateInQuoted:
			idx, found := spanFind(r.quotedSpan, data, p, n)
			if !found {
				return false, 0 // unterminated quote: need more input, or
				// (at final) this is malformed trailing data, not a row.
			}
			p = idx + 1
			state = stateAfterQuoted

		case stateAfterQuoted:
			if p >= n {
				return false, 0
			}
			switch b := data[p]; {
			case b == r.cfg.Delimiter:
				r.addCell(data[cellStart:p-1], escaped)
				p++
				cellStart = p
				escaped = false
				state = stateCellStart
			case b == '\r' || b == '\n':
				r.addCell(data[cellStart:p-1], escaped)
				p++
				return true, p
			default:
				escaped = true
				state = stateInQuoted
			}

		case stateInUnquoted:
			idx, found := spanFind(r.unquotedSpan, data, p, n)
			if !found {
				if final {
					r.addCell(data[cellStart:n], escaped)
					return true, n
				}
				return false, 0
			}
			p = idx
			state = stateAfterUnquoted

		case stateAfterUnquoted:
			switch b := data[p]; {
			case b == r.cfg.Delimiter:
				r.addCell(data[cellStart:p], escaped)
				p++
				cellStart = p
				escaped = false
				state = stateCellStart
			case b == '\r' || b == '\n':
				r.addCell(data[cellStart:p], escaped)
				p++
				return true, p
			default:
				escaped = true
				p++
				state = stateInUnquoted
			}
		}
	}
}
