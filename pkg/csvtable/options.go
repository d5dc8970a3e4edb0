package csvtable

import (
	"go.uber.org/zap"

	"github.com/shapestone/shape-csvtable/internal/fieldtab"
	"github.com/shapestone/shape-csvtable/internal/recordio"
)

// Options configures a Table. Options are fixed at Open time and cannot be
// renegotiated once the first row has been read.
type Options struct {
	// Delimiter is the field separator. It must be a single byte and must
	// not be a quote, CR, LF, or NUL.
	// Default: ','
	Delimiter byte

	// UseHeaderRow treats the first physical row as column names rather
	// than data. Scans then start at the row after it.
	// Default: false
	UseHeaderRow bool

	// DetectDelimiter sniffs the delimiter from the start of the file
	// before the first row is read, overriding Delimiter. Candidates are
	// comma, tab, semicolon, and pipe.
	// Default: false
	DetectDelimiter bool

	// MaxRecordBytes caps the length of one logical record, embedded
	// newlines included.
	// Default: 1_000_000_000
	MaxRecordBytes int

	// MaxColumns caps the number of fields per record.
	// Default: 2000
	MaxColumns int

	// MaxValueBytes caps the size of a single unescaped field value.
	// Default: 1_000_000_000
	MaxValueBytes int

	// Logger receives diagnostics for scan failures and limit violations.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// PoisonOnAdvance overwrites the previous record buffer before each
	// advance so that field views held across rows fail loudly. Intended
	// for tests; it costs one pass over the buffer per row.
	// Default: false
	PoisonOnAdvance bool
}

// DefaultOptions returns the default table configuration.
func DefaultOptions() Options {
	return Options{
		Delimiter:      ',',
		MaxRecordBytes: recordio.DefaultMaxRecordBytes,
		MaxColumns:     fieldtab.DefaultMaxColumns,
		MaxValueBytes:  fieldtab.DefaultMaxValueBytes,
	}
}

// normalize fills zero values with defaults and validates the delimiter.
func (o *Options) normalize() error {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	switch o.Delimiter {
	case '"', '\r', '\n':
		return ErrBadDelimiter
	}
	if o.MaxRecordBytes <= 0 {
		o.MaxRecordBytes = recordio.DefaultMaxRecordBytes
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = fieldtab.DefaultMaxColumns
	}
	if o.MaxValueBytes <= 0 {
		o.MaxValueBytes = fieldtab.DefaultMaxValueBytes
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}
