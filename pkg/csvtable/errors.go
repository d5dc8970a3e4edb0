package csvtable

import (
	"errors"
	"fmt"

	"github.com/shapestone/shape-csvtable/internal/fieldtab"
	"github.com/shapestone/shape-csvtable/internal/recordio"
)

// Errors surfaced by Open and by scans. The first four re-export the
// internal parser sentinels so callers only ever import this package.
var (
	// ErrRecordTooLong indicates a record exceeded Options.MaxRecordBytes.
	ErrRecordTooLong = recordio.ErrRecordTooLong

	// ErrTooManyColumns indicates a record exceeded Options.MaxColumns.
	ErrTooManyColumns = fieldtab.ErrTooManyColumns

	// ErrValueTooLarge indicates an unescaped field value exceeded
	// Options.MaxValueBytes.
	ErrValueTooLarge = fieldtab.ErrValueTooLarge

	// ErrUnterminatedQuote indicates a quoted field with no closing quote.
	ErrUnterminatedQuote = fieldtab.ErrUnterminatedQuote

	// ErrMissingDelimiter indicates a malformed record where a field was
	// followed by neither a delimiter nor a record terminator.
	ErrMissingDelimiter = fieldtab.ErrMissingDelimiter

	// ErrNoColumns indicates the file's first row produced no columns, so
	// no table shape could be derived.
	ErrNoColumns = errors.New("csvtable: no columns found")

	// ErrMissingHeaderName indicates header mode was requested but a header
	// cell is empty.
	ErrMissingHeaderName = errors.New("csvtable: empty column name in header row")

	// ErrBadDelimiter indicates the configured delimiter collides with the
	// quote character or a line terminator.
	ErrBadDelimiter = errors.New("csvtable: invalid delimiter")

	// ErrTableClosed indicates use of a Table after Close.
	ErrTableClosed = errors.New("csvtable: table is closed")

	// ErrCursorClosed indicates use of a Cursor after Close.
	ErrCursorClosed = errors.New("csvtable: cursor is closed")
)

// ScanError wraps a scan failure with the stream offset of the row that
// caused it. Use errors.Is against the sentinels above to classify it.
type ScanError struct {
	// Offset is the byte offset of the start of the failing row.
	Offset int64
	// Err is the underlying error.
	Err error
}

// Error returns the failure with its row offset.
func (e *ScanError) Error() string {
	return fmt.Sprintf("csvtable: scan failed at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}
