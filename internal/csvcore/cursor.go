// Package csvcore is the streaming RFC-4180 parser at the heart of this
// repository: a cursor abstraction over a contiguous, refillable byte
// window with an over-read guarantee, and a row parser state machine that
// turns that window into zero-copy cell views.
//
// The package never allocates a decoded string on the hot path, never
// interprets encodings, and never buffers more than one row's worth of
// cells. Callers who need a cell's value to outlive the next ReadRow call
// must materialize it.
package csvcore

import "io"

// guardSize is the number of trailing bytes every cursor window guarantees
// are safe to read past Size(): either genuine data or zero fill. It must
// cover the widest single over-read the parser performs, one
// simdspan.Span window.
const guardSize = 16

// Cursor is a contiguous byte window that can be advanced (Consume) and
// extended (Fill). Implementations are MappedFileCursor (single window,
// Fill always false) and BufferedStreamCursor (growable, refillable from
// a producer closure).
//
// Bytes() is stable between mutating calls; Consume and Fill both
// invalidate any slice previously returned by Bytes. cap(Bytes()) extends
// at least guardSize bytes past len(Bytes()), and those extra bytes are
// always safe to read.
type Cursor interface {
	Bytes() []byte
	Size() int
	Consume(n int)
	Fill() bool
	Err() error
}

// producerFunc writes at most len(dst) bytes into dst starting at its
// head and reports how many it wrote. It returns io.EOF (with n possibly
// > 0) when the producer is exhausted, and any other error is sticky and
// surfaced through BufferedStreamCursor.Err.
type producerFunc func(dst []byte) (int, error)

// BufferedStreamCursor maintains a growable contiguous byte buffer with
// read/write offsets, compacting unread bytes to the front on refill and
// delegating byte production to a producer closure — the Go-native
// rendering of the source's subclass-hook pattern.
type BufferedStreamCursor struct {
	buf      []byte // len(buf) == capacity + guardSize; writePos <= capacity
	readPos  int
	writePos int
	produce  producerFunc
	err      error
	eof      bool
}

const initialBufCap = 128 * 1024

// NewBufferedCursor builds a cursor around an arbitrary producer closure.
// Most callers want NewReaderCursor, NewCallableCursor, or
// NewIteratorCursor instead of calling this directly.
func NewBufferedCursor(produce producerFunc) *BufferedStreamCursor {
	return &BufferedStreamCursor{
		// len(buf) always equals capacity+guardSize; make zero-fills it,
		// which doubles as the initial guard.
		buf:     make([]byte, initialBufCap+guardSize),
		produce: produce,
	}
}

// NewReaderCursor drives refills with blocking Read calls, the cursor
// form for an io.Reader (a plain file descriptor or any other byte
// stream).
func NewReaderCursor(r io.Reader) *BufferedStreamCursor {
	return NewBufferedCursor(func(dst []byte) (int, error) {
		return r.Read(dst)
	})
}

// ErrBadProducer reports that a pull-callable or iterator producer
// violated its contract — an adapter bridging a foreign source returns it
// when the source yields something that isn't a byte chunk. It poisons
// the cursor: once surfaced through Err, every further Fill call returns
// false immediately.
type ErrBadProducer struct {
	Detail string
}

func (e *ErrBadProducer) Error() string { return "csvcore: bad producer: " + e.Detail }

// carryOver buffers the tail of a producer chunk that didn't fit the
// cursor's free write region, handing it out on the next produce call
// before the producer is pulled again. The tail is copied because the
// producer may reuse its chunk's backing array between pulls.
type carryOver struct {
	tail []byte
}

func (c *carryOver) drain(dst []byte) (int, bool) {
	if len(c.tail) == 0 {
		return 0, false
	}
	n := copy(dst, c.tail)
	c.tail = c.tail[n:]
	return n, true
}

func (c *carryOver) stash(rest []byte) {
	c.tail = append(c.tail[:0], rest...)
}

// NewCallableCursor wraps a pull-callable that returns one byte chunk per
// invocation. A zero-length, nil-error return signals end of stream; any
// returned error aborts the stream and is surfaced via Err. Chunks larger
// than the cursor's free space are delivered across multiple refills.
func NewCallableCursor(pull func() ([]byte, error)) *BufferedStreamCursor {
	var carry carryOver
	return NewBufferedCursor(func(dst []byte) (int, error) {
		if n, ok := carry.drain(dst); ok {
			return n, nil
		}
		chunk, err := pull()
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return 0, io.EOF
		}
		n := copy(dst, chunk)
		if n < len(chunk) {
			carry.stash(chunk[n:])
		}
		return n, nil
	})
}

// NewIteratorCursor wraps an iterator: next returns the next byte chunk
// and whether one was produced. false signals end of stream.
func NewIteratorCursor(next func() ([]byte, bool)) *BufferedStreamCursor {
	var carry carryOver
	return NewBufferedCursor(func(dst []byte) (int, error) {
		if n, ok := carry.drain(dst); ok {
			return n, nil
		}
		chunk, ok := next()
		if !ok {
			return 0, io.EOF
		}
		if len(chunk) == 0 {
			// An empty-but-present yield is not EOF; ask again next Fill.
			return 0, nil
		}
		n := copy(dst, chunk)
		if n < len(chunk) {
			carry.stash(chunk[n:])
		}
		return n, nil
	})
}

// Bytes returns the pending byte window. cap(Bytes()) extends guardSize
// bytes past len(Bytes()); those extra bytes are always safe to read —
// zeros freshly written by the last refill.
func (c *BufferedStreamCursor) Bytes() []byte {
	return c.buf[c.readPos:c.writePos:len(c.buf)]
}

// Size returns the number of pending bytes.
func (c *BufferedStreamCursor) Size() int {
	return c.writePos - c.readPos
}

// Consume advances the logical start of the window by min(n, Size()).
func (c *BufferedStreamCursor) Consume(n int) {
	if n > c.Size() {
		n = c.Size()
	}
	c.readPos += n
	if c.readPos == c.writePos {
		// Nothing pending: reset to the front so the buffer doesn't creep
		// forward forever on a steady stream of small rows.
		c.readPos = 0
		c.writePos = 0
	}
}

// Err returns the first error observed by Fill, if any.
func (c *BufferedStreamCursor) Err() error {
	return c.err
}

// Fill attempts to extend the pending region by invoking the producer.
// It returns true if the pending region grew (or already held unconsumed
// data), false on clean EOF, a poisoned cursor, or producer error.
func (c *BufferedStreamCursor) Fill() bool {
	if c.err != nil {
		return false
	}
	if c.eof {
		// Already exhausted: no further call to produce can add bytes, so
		// report no growth even though Size() may still be positive. The
		// call during which eof was first observed already returned
		// whatever growth that last produce call yielded.
		return false
	}

	c.compact()
	c.grow()

	// Compaction can leave stale bytes sitting where the guard needs to
	// read as zero (or genuine pending data, neither of which holds yet
	// for this not-actually-written region); re-establish it before the
	// producer runs so a reader overlapping writePos..writePos+guardSize
	// never observes garbage, even if produce writes nothing at all.
	for i := c.writePos; i < c.writePos+guardSize; i++ {
		c.buf[i] = 0
	}

	dst := c.buf[c.writePos : len(c.buf)-guardSize]
	n, err := c.produce(dst)
	if n > 0 {
		c.writePos += n
		for i := c.writePos; i < c.writePos+guardSize; i++ {
			c.buf[i] = 0
		}
	}
	if err != nil {
		if err == io.EOF {
			c.eof = true
		} else {
			c.err = err
		}
	}
	return c.Size() > 0
}

// compact moves unread bytes to the front of the buffer.
func (c *BufferedStreamCursor) compact() {
	if c.readPos == 0 {
		return
	}
	n := copy(c.buf, c.buf[c.readPos:c.writePos])
	c.writePos = n
	c.readPos = 0
}

// grow enlarges the buffer by half its capacity plus minFreeSpace when
// the write region has gotten too small
// to make meaningful progress. It never shrinks the guard tail.
func (c *BufferedStreamCursor) grow() {
	const minFreeSpace = 4096
	free := len(c.buf) - guardSize - c.writePos
	if free >= minFreeSpace {
		return
	}
	oldCap := len(c.buf) - guardSize
	newCap := oldCap + oldCap/2 + minFreeSpace
	nbuf := make([]byte, newCap+guardSize)
	copy(nbuf, c.buf[:c.writePos])
	c.buf = nbuf
}
