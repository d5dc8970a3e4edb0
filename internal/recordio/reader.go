// Package recordio reads logical CSV records from a byte stream.
//
// A logical record is one table row. It may span several physical lines:
// a line break inside a quoted field is field content, not a record
// terminator, so the reader tracks quoting state across read boundaries and
// keeps accumulating until it sees an unquoted CR, LF, or CRLF. Whatever the
// input used, the returned record always ends in exactly one LF.
package recordio

import (
	"errors"
	"io"

	"github.com/shapestone/shape-csvtable/internal/grow"
)

// ErrRecordTooLong is returned when a single record would exceed the
// configured maximum length.
var ErrRecordTooLong = errors.New("csv record exceeds maximum length")

const (
	// chunkSize is the fixed size of raw reads from the underlying stream.
	chunkSize = 4096

	// initialRecordCap is the first allocation for the record buffer. If it
	// overshoots the typical row, the buffer is shrunk once after the first
	// successful read.
	initialRecordCap = 100

	// poisonByte fills the previous record before the next one is read when
	// poisoning is enabled, so stale field views fail loudly in tests.
	poisonByte = 0xDB
)

// Config configures a Reader.
type Config struct {
	// Delimiter is the field separator. A quote character only opens a
	// quoted field when it is the first byte of the record or immediately
	// follows the delimiter, so the reader needs to know it.
	Delimiter byte

	// MaxRecordBytes caps the record buffer. Zero means a 1 GB default.
	MaxRecordBytes int

	// PoisonOnAdvance overwrites the previous record's bytes before reading
	// the next record. Field views alias the record buffer and are invalid
	// after an advance; poisoning makes holding one past that point
	// detectable instead of silently wrong.
	PoisonOnAdvance bool
}

// DefaultMaxRecordBytes caps record length when Config.MaxRecordBytes is zero.
const DefaultMaxRecordBytes = 1_000_000_000

// Reader accumulates logical CSV records from an underlying stream.
//
// Reader does its own chunked buffering, so the stream offset it reports via
// Tell is the logical position of the next unconsumed byte, independent of
// how far ahead the underlying file has physically been read.
type Reader struct {
	src io.Reader
	cfg Config

	chunk    []byte // staging buffer for raw reads
	chunkPos int    // next unconsumed byte in chunk
	chunkLen int    // valid bytes in chunk
	offset   int64  // stream offset of chunk[0]
	srcErr   error  // sticky error from src, including io.EOF

	buf    []byte // record accumulator, reused across records
	shrunk bool   // one-time shrink-to-fit already considered
}

// quote-state machine for one record. The reader never needs lookahead: an
// ambiguous quote inside a quoted field is resolved by the byte after it.
type scanState int

const (
	stateFieldStart scanState = iota // record start or just after a delimiter
	stateUnquoted                    // inside an unquoted field
	stateQuoted                      // inside a quoted field
	stateQuoteInQuoted               // saw a quote while quoted: close or escape
)

// NewReader returns a Reader pulling from src starting at stream offset 0.
func NewReader(src io.Reader, cfg Config) *Reader {
	if cfg.MaxRecordBytes <= 0 {
		cfg.MaxRecordBytes = DefaultMaxRecordBytes
	}
	return &Reader{
		src:   src,
		cfg:   cfg,
		chunk: make([]byte, chunkSize),
		buf:   make([]byte, 0, initialRecordCap),
	}
}

// Tell returns the stream offset of the next unconsumed byte. Calling it
// before ReadRecord yields the offset the next record starts at, which is
// the row's stable identifier.
func (r *Reader) Tell() int64 {
	return r.offset + int64(r.chunkPos)
}

// Reset re-points the reader after the caller repositioned the underlying
// stream to offset. Staged bytes are dropped; the record buffer and its
// capacity are reused.
func (r *Reader) Reset(src io.Reader, offset int64) {
	r.src = src
	r.offset = offset
	r.chunkPos = 0
	r.chunkLen = 0
	r.srcErr = nil
}

// fill makes at least one staged byte available, or returns the stream error.
func (r *Reader) fill() error {
	if r.chunkPos < r.chunkLen {
		return nil
	}
	if r.srcErr != nil {
		return r.srcErr
	}
	r.offset += int64(r.chunkLen)
	r.chunkPos = 0
	r.chunkLen = 0
	for {
		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.chunkLen = n
			if err != nil {
				r.srcErr = err
			}
			return nil
		}
		if err != nil {
			r.srcErr = err
			return err
		}
	}
}

// ReadRecord returns the next logical record, terminated by exactly one LF.
//
// It returns io.EOF when the stream is exhausted with no bytes read. A final
// record lacking a trailing newline is not an error: its content is returned
// with the terminator normalized in. The returned slice aliases the reader's
// internal buffer and is valid only until the next ReadRecord or Reset.
func (r *Reader) ReadRecord() ([]byte, error) {
	if r.cfg.PoisonOnAdvance {
		for i := range r.buf {
			r.buf[i] = poisonByte
		}
	}
	r.buf = r.buf[:0]
	state := stateFieldStart

	for {
		if err := r.fill(); err != nil {
			if err != io.EOF {
				return nil, err
			}
			if len(r.buf) == 0 {
				return nil, io.EOF
			}
			// Stream ended mid-record. The partial content is the final
			// record; give it the canonical terminator.
			return r.finish()
		}
		b := r.chunk[r.chunkPos]

		switch state {
		case stateQuoted:
			if b == '"' {
				state = stateQuoteInQuoted
			}
			// CR, LF, and the delimiter are ordinary content here.

		case stateQuoteInQuoted:
			switch b {
			case '"':
				state = stateQuoted // escaped pair, stays literal
			case r.cfg.Delimiter:
				state = stateFieldStart
			case '\r', '\n':
				return r.endOfRecord(b)
			default:
				// Quote closed the field; trailing bytes before the next
				// delimiter are carried through for the tokenizer to judge.
				state = stateUnquoted
			}

		case stateFieldStart:
			switch b {
			case '"':
				state = stateQuoted
			case r.cfg.Delimiter:
				// empty field, stay at field start
			case '\r', '\n':
				return r.endOfRecord(b)
			default:
				state = stateUnquoted
			}

		case stateUnquoted:
			switch b {
			case r.cfg.Delimiter:
				state = stateFieldStart
			case '\r', '\n':
				return r.endOfRecord(b)
			}
			// A quote mid-field is literal content, matching the dialect's
			// all-or-nothing quoting.
		}

		if err := r.appendByte(b); err != nil {
			return nil, err
		}
		r.chunkPos++
	}
}

// endOfRecord consumes the terminator byte (and the LF of a CRLF pair),
// appends the canonical LF, and finalizes the record.
func (r *Reader) endOfRecord(b byte) ([]byte, error) {
	r.chunkPos++
	if b == '\r' {
		// CRLF collapses to one terminator. A lone CR still ends the record.
		if err := r.fill(); err == nil && r.chunk[r.chunkPos] == '\n' {
			r.chunkPos++
		}
	}
	return r.finish()
}

// finish appends the canonical LF terminator and applies the one-time
// shrink-to-fit if the initial capacity guess overshot.
func (r *Reader) finish() ([]byte, error) {
	if err := r.appendByte('\n'); err != nil {
		return nil, err
	}
	if !r.shrunk {
		r.shrunk = true
		if cap(r.buf) >= 2*(len(r.buf)+1) {
			nb := make([]byte, len(r.buf), len(r.buf)+1)
			copy(nb, r.buf)
			r.buf = nb
		}
	}
	return r.buf, nil
}

func (r *Reader) appendByte(b byte) error {
	nb, ok := grow.Bytes(r.buf, len(r.buf)+1, r.cfg.MaxRecordBytes)
	if !ok {
		return ErrRecordTooLong
	}
	r.buf = nb[:len(nb)+1]
	r.buf[len(r.buf)-1] = b
	return nil
}
