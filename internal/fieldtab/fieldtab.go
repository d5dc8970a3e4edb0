// Package fieldtab splits one CSV record into field spans.
//
// The tokenizer does not copy field content. Each field is recorded as an
// offset+length span into the record buffer, together with the number of
// escaped quotes ("" pairs) it contains. Counting escapes during the split
// means unescaping later is a single exact-size copy with no pre-scan, and
// fields without escapes never need a copy at all.
//
// Spans alias the record buffer, so they are valid only until the buffer is
// refilled with the next record.
package fieldtab

import (
	"bytes"
	"errors"
	"unsafe"

	"github.com/shapestone/shape-csvtable/internal/grow"
)

// Tokenizer and field-access errors. Each malformation is distinguishable so
// callers can report what specifically went wrong.
var (
	// ErrUnterminatedQuote is returned when a quoted field has no closing
	// quote before the record ends.
	ErrUnterminatedQuote = errors.New("csv quoted field is not terminated")

	// ErrMissingDelimiter is returned when a field is followed by neither a
	// delimiter nor the record terminator.
	ErrMissingDelimiter = errors.New("csv field has no trailing delimiter or terminator")

	// ErrTooManyColumns is returned when a record has more fields than the
	// configured maximum.
	ErrTooManyColumns = errors.New("csv record exceeds maximum column count")

	// ErrValueTooLarge is returned when an unescaped field value would
	// exceed the configured maximum.
	ErrValueTooLarge = errors.New("csv field value exceeds maximum length")
)

// Config configures a Table.
type Config struct {
	// MaxColumns caps the field arrays. Zero means 2000.
	MaxColumns int

	// MaxValueBytes caps the size of an unescaped field value. Zero means
	// 1 GB.
	MaxValueBytes int
}

// Defaults applied when Config fields are zero.
const (
	DefaultMaxColumns    = 2000
	DefaultMaxValueBytes = 1_000_000_000
)

// span locates one field inside the record buffer. For a quoted field the
// span covers the raw content between the quotes, escapes included.
type span struct {
	start  int
	length int
}

// Table holds the fields of the most recently tokenized record. It is
// overwritten in place on every Tokenize; nothing carries over between rows
// except the capacity of its arrays, which only grows.
type Table struct {
	cfg Config

	rec     []byte // record last passed to Tokenize
	spans   []span // field locations, len == capacity high-water mark
	escapes []int  // escaped-quote count per field, parallel to spans
	n       int    // fields in the current record
}

// New returns an empty Table. The field arrays are sized lazily from the
// first record.
func New(cfg Config) *Table {
	if cfg.MaxColumns <= 0 {
		cfg.MaxColumns = DefaultMaxColumns
	}
	if cfg.MaxValueBytes <= 0 {
		cfg.MaxValueBytes = DefaultMaxValueBytes
	}
	return &Table{cfg: cfg}
}

// Tokenize splits record into fields separated by delim. The record must end
// with a single LF terminator, which is what recordio produces.
//
// A field starting with a quote is quoted: its span excludes the enclosing
// quotes, "" pairs inside count as one escaped quote, and anything between
// the closing quote and the next delimiter is dropped. A quote anywhere else
// is literal content. This matches the permissive dialect of the common
// spreadsheet exports this package targets, not strict RFC 4180.
func (t *Table) Tokenize(record []byte, delim byte) error {
	t.rec = record
	t.n = 0

	i := 0
	for {
		if err := t.ensure(t.n + 1); err != nil {
			return err
		}

		var sp span
		esc := 0
		if i < len(record) && record[i] == '"' {
			i++
			sp.start = i
			for {
				j := bytes.IndexByte(record[i:], '"')
				if j < 0 {
					return ErrUnterminatedQuote
				}
				i += j
				if i+1 < len(record) && record[i+1] == '"' {
					esc++
					i += 2
					continue
				}
				break
			}
			sp.length = i - sp.start
			i++ // closing quote
			j := nextBreak(record[i:], delim)
			if j < 0 {
				return ErrMissingDelimiter
			}
			i += j
		} else {
			sp.start = i
			j := nextBreak(record[i:], delim)
			if j < 0 {
				return ErrMissingDelimiter
			}
			i += j
			sp.length = i - sp.start
		}

		t.spans[t.n] = sp
		t.escapes[t.n] = esc
		t.n++

		if record[i] == '\n' {
			return nil
		}
		i++ // skip delimiter, next field follows
	}
}

// nextBreak returns the index of the next delimiter or record terminator in
// s, or -1 when neither occurs.
func nextBreak(s []byte, delim byte) int {
	for i, b := range s {
		if b == delim || b == '\n' {
			return i
		}
	}
	return -1
}

// Len returns the number of fields in the current record.
func (t *Table) Len() int {
	return t.n
}

// EscapeCount returns the number of escaped quotes in field i, or 0 when i
// is out of range.
func (t *Table) EscapeCount(i int) int {
	if i < 0 || i >= t.n {
		return 0
	}
	return t.escapes[i]
}

// FieldBytes returns the value of field i.
//
// An index outside [0, Len()) yields (nil, nil): no such column, which is
// distinct from an empty field (a non-nil empty slice). When the field
// contains no escaped quotes the result aliases the record buffer and is
// valid only until the next Tokenize; otherwise it is a freshly allocated
// unescaped copy owned by the caller.
func (t *Table) FieldBytes(i int) ([]byte, error) {
	if i < 0 || i >= t.n {
		return nil, nil
	}
	sp := t.spans[i]
	raw := t.rec[sp.start : sp.start+sp.length]
	esc := t.escapes[i]
	if esc == 0 {
		return raw, nil
	}

	size := len(raw) - esc
	if size > t.cfg.MaxValueBytes {
		return nil, ErrValueTooLarge
	}
	out := make([]byte, 0, size)
	for j := 0; j < len(raw); j++ {
		out = append(out, raw[j])
		if raw[j] == '"' {
			j++ // collapse the doubled quote
		}
	}
	return out, nil
}

// Field returns field i as a string. ok is false when the record has no
// field i. The same aliasing rule as FieldBytes applies: retain the value
// past the next Tokenize only after copying it.
func (t *Table) Field(i int) (value string, ok bool, err error) {
	b, err := t.FieldBytes(i)
	if err != nil {
		return "", false, err
	}
	if b == nil {
		return "", false, nil
	}
	return unsafeString(b), true, nil
}

// ensure grows the field arrays to hold at least n fields.
func (t *Table) ensure(n int) error {
	if n <= len(t.spans) {
		return nil
	}
	newCap, ok := grow.Next(len(t.spans), n, t.cfg.MaxColumns)
	if !ok {
		return ErrTooManyColumns
	}
	spans := make([]span, newCap)
	copy(spans, t.spans)
	t.spans = spans
	escapes := make([]int, newCap)
	copy(escapes, t.escapes)
	t.escapes = escapes
	return nil
}

// unsafeString converts b to a string without copying. The bytes must not be
// mutated afterwards; here they are either a view of the record buffer
// (immutable until the next Tokenize) or a fresh unescape allocation that is
// never written again.
func unsafeString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
