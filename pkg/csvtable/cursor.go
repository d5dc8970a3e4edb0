package csvtable

import "io"

// cursorState tracks one scan's position in its lifecycle.
type cursorState int

const (
	cursorReady     cursorState = iota // positioned before the first data row
	cursorScanning                     // on a row
	cursorExhausted                    // end of stream or failed
)

// Cursor is one forward scan over a Table, rewindable to the first data row.
//
// A Cursor reads through the Table's shared record buffer and field table,
// so only one cursor of a table should be advanced at a time. Values
// returned by Field and FieldBytes may alias that buffer and are invalid
// after the next Next or Rewind.
type Cursor struct {
	t      *Table
	state  cursorState
	rowID  int64
	err    error
	closed bool
}

// Next advances to the next row. It returns false at end of stream or on
// error; Err tells them apart. The first call (and the first call after
// Rewind) repositions the stream at the first data row.
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil || c.state == cursorExhausted {
		return false
	}
	if c.state == cursorReady {
		if err := c.t.seekFirst(); err != nil {
			c.fail(err)
			return false
		}
		c.state = cursorScanning
	}

	err := c.t.advance()
	if err == io.EOF {
		c.state = cursorExhausted
		return false
	}
	if err != nil {
		c.fail(err)
		return false
	}
	c.rowID = c.t.curRowOffset
	return true
}

// Err returns the error that stopped the scan, or nil after a clean end of
// stream. Errors are terminal: the scan stays exhausted and is not retried.
func (c *Cursor) Err() error {
	return c.err
}

// RowID returns the byte offset of the current row's start. It identifies
// the row stably within this open table, but not across file modification.
func (c *Cursor) RowID() int64 {
	return c.rowID
}

// FieldCount returns the number of fields in the current row, which may
// differ from the table's column count for ragged input. It is 0 when the
// cursor is not on a row.
func (c *Cursor) FieldCount() int {
	if c.state != cursorScanning {
		return 0
	}
	return c.t.ft.Len()
}

// Field returns the value of column i for the current row. ok is false when
// the row has no column i: an index outside the row is null, not an error,
// which tolerates rows narrower than the declared schema. An empty field is
// ("", true).
//
// The returned string may alias the shared record buffer; copy it if it must
// outlive the row.
func (c *Cursor) Field(i int) (value string, ok bool, err error) {
	if c.state != cursorScanning {
		return "", false, nil
	}
	value, ok, err = c.t.ft.Field(i)
	if err != nil {
		err = c.fieldErr(err)
	}
	return value, ok, err
}

// FieldBytes returns the value of column i for the current row. A nil slice
// with nil error means null (no such column); an empty non-nil slice is an
// empty field. Without escaped quotes the slice aliases the shared record
// buffer; with them it is a fresh unescaped copy owned by the caller.
func (c *Cursor) FieldBytes(i int) ([]byte, error) {
	if c.state != cursorScanning {
		return nil, nil
	}
	b, err := c.t.ft.FieldBytes(i)
	if err != nil {
		return nil, c.fieldErr(err)
	}
	return b, nil
}

// Rewind returns the scan to the first data row and clears end-of-stream
// and error state. The stream is repositioned lazily on the next Next, so
// rewinding does not disturb the row another cursor currently holds.
func (c *Cursor) Rewind() error {
	if c.closed {
		return ErrCursorClosed
	}
	c.err = nil
	c.rowID = 0
	c.state = cursorReady
	return nil
}

// Close releases the cursor's reference on the table. The table's file and
// buffers are freed when the last reference is dropped.
func (c *Cursor) Close() error {
	if c.closed {
		return ErrCursorClosed
	}
	c.closed = true
	c.state = cursorExhausted
	return c.t.release()
}

// fail records a terminal scan error.
func (c *Cursor) fail(err error) {
	c.err = err
	c.state = cursorExhausted
}

// fieldErr records a field-access failure (value too large). Limit
// violations abort the scan like any other row error.
func (c *Cursor) fieldErr(err error) error {
	werr := &ScanError{Offset: c.rowID, Err: err}
	c.fail(werr)
	return werr
}
