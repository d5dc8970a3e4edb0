// Package csvtable exposes a CSV file as a rewindable, row-addressable
// table of text values.
//
// A Table is bound to one file. Opening it reads the first row once to
// determine the column shape; cursors then scan forward row by row from the
// first data row, and can rewind back to it. Each row's identifier is the
// byte offset it starts at, stable for the lifetime of the open file.
//
// The parser handles quoted fields containing embedded delimiters, embedded
// line breaks, and doubled-quote escaping. Quoting is all-or-nothing per
// field: a quote only opens a quoted field as the field's first byte, and a
// quote appearing mid-field is literal content. That is laxer than RFC 4180
// but matches the hand-edited and spreadsheet-exported files this package
// targets. A final row without a trailing newline is accepted for the same
// reason.
//
// # Concurrency
//
// A Table and its cursors are single-threaded. The record buffer and field
// table are shared by all cursors of one Table and overwritten on every
// advance, so concurrent scans of one Table corrupt each other; open one
// Table per scan instead. Field values returned without escapes alias that
// shared buffer and are invalid after the next advance; copy them if they
// must outlive the row.
//
// Example usage:
//
//	tbl, err := csvtable.Open("people.csv")
//	if err != nil {
//	    // handle error
//	}
//	defer tbl.Close()
//
//	cur, _ := tbl.NewCursor()
//	defer cur.Close()
//	for cur.Next() {
//	    name, _, _ := cur.Field(0)
//	    fmt.Println(cur.RowID(), name)
//	}
//	if err := cur.Err(); err != nil {
//	    // handle error
//	}
package csvtable

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shapestone/shape-csvtable/internal/fieldtab"
	"github.com/shapestone/shape-csvtable/internal/recordio"
)

// Table is the long-lived parser state bound to one open CSV file.
type Table struct {
	path string
	opts Options
	log  *zap.Logger

	f  *os.File
	rd *recordio.Reader
	ft *fieldtab.Table

	cols           []string
	firstRowOffset int64 // where scans (re)start: 0, or just past the header
	curRowOffset   int64 // offset of the row currently in the buffer
	eof            bool

	// nBusy counts users of the shared buffers: the table itself plus every
	// open cursor. The file and buffers are released when it reaches zero,
	// so closing the table does not pull the rug from under an open cursor.
	nBusy    int
	released bool // table's own reference already dropped
}

// Open opens the CSV file at path with default options.
func Open(path string) (*Table, error) {
	return OpenWithOptions(path, DefaultOptions())
}

// OpenWithOptions opens the CSV file at path.
//
// The first row is read immediately to derive the table's columns: with
// Options.UseHeaderRow its cells become the column names (an empty cell is
// ErrMissingHeaderName) and scanning starts at the row after it; otherwise
// columns are named col1..colN and the first row is also the first data row.
func OpenWithOptions(path string, opts Options) (*Table, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvtable: open %q: %w", path, err)
	}

	t := &Table{
		path:  path,
		opts:  opts,
		log:   opts.Logger,
		f:     f,
		nBusy: 1,
	}

	if opts.DetectDelimiter {
		if err := t.sniffDelimiter(); err != nil {
			t.release()
			return nil, err
		}
	}

	t.rd = recordio.NewReader(f, recordio.Config{
		Delimiter:       t.opts.Delimiter,
		MaxRecordBytes:  t.opts.MaxRecordBytes,
		PoisonOnAdvance: t.opts.PoisonOnAdvance,
	})
	t.ft = fieldtab.New(fieldtab.Config{
		MaxColumns:    t.opts.MaxColumns,
		MaxValueBytes: t.opts.MaxValueBytes,
	})

	// Read the first row once to size the schema.
	if err := t.advance(); err != nil {
		t.release()
		if err == io.EOF {
			return nil, ErrNoColumns
		}
		return nil, err
	}
	cols, err := t.deriveColumns()
	if err != nil {
		t.release()
		return nil, err
	}
	t.cols = cols
	if opts.UseHeaderRow {
		t.firstRowOffset = t.rd.Tell()
	}
	return t, nil
}

// Path returns the file the table was opened from.
func (t *Table) Path() string {
	return t.path
}

// Delimiter returns the delimiter in effect, after any detection.
func (t *Table) Delimiter() byte {
	return t.opts.Delimiter
}

// Columns returns the column names derived from the first row: the header
// cells in header mode, col1..colN otherwise.
func (t *Table) Columns() []string {
	return t.cols
}

// ColumnCount returns the number of columns in the first row. Individual
// data rows may be narrower or wider; see Cursor.FieldCount.
func (t *Table) ColumnCount() int {
	return len(t.cols)
}

// NewCursor returns a new scan over the table, positioned before the first
// data row. The cursor shares the table's buffers; see the package comment
// for the single-scan rule.
func (t *Table) NewCursor() (*Cursor, error) {
	if t.released {
		return nil, ErrTableClosed
	}
	t.nBusy++
	return &Cursor{t: t, state: cursorReady}, nil
}

// Close drops the table's own reference. Resources are released once every
// cursor has also been closed.
func (t *Table) Close() error {
	if t.released {
		return ErrTableClosed
	}
	t.released = true
	return t.release()
}

// release decrements the busy count and tears down at zero.
func (t *Table) release() error {
	t.nBusy--
	if t.nBusy > 0 {
		return nil
	}
	var err error
	if t.f != nil {
		err = multierr.Append(err, t.f.Close())
		t.f = nil
	}
	t.rd = nil
	t.ft = nil
	return err
}

// advance reads and tokenizes the next row into the shared buffers. It
// returns io.EOF at end of stream and a *ScanError for any malformation or
// limit violation, after which the table is positioned at end of stream.
func (t *Table) advance() error {
	if t.eof {
		return io.EOF
	}
	t.curRowOffset = t.rd.Tell()

	rec, err := t.rd.ReadRecord()
	if err == io.EOF {
		t.eof = true
		return io.EOF
	}
	if err != nil {
		t.eof = true
		t.log.Error("csv record read failed",
			zap.String("path", t.path),
			zap.Int64("offset", t.curRowOffset),
			zap.Error(err))
		return &ScanError{Offset: t.curRowOffset, Err: err}
	}
	if err := t.ft.Tokenize(rec, t.opts.Delimiter); err != nil {
		t.eof = true
		t.log.Error("csv record tokenize failed",
			zap.String("path", t.path),
			zap.Int64("offset", t.curRowOffset),
			zap.Error(err))
		return &ScanError{Offset: t.curRowOffset, Err: err}
	}
	return nil
}

// seekFirst repositions the stream at the first data row and clears the
// end-of-stream state. The buffers keep their capacity.
func (t *Table) seekFirst() error {
	if _, err := t.f.Seek(t.firstRowOffset, io.SeekStart); err != nil {
		return fmt.Errorf("csvtable: seek %q: %w", t.path, err)
	}
	t.rd.Reset(t.f, t.firstRowOffset)
	t.eof = false
	return nil
}
