package csvtable_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapestone/shape-csvtable/pkg/csvtable"
)

// writeCSV drops content into a temp file and returns its path.
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// scanAll drains a cursor, copying every row out of the shared buffer.
func scanAll(t *testing.T, cur *csvtable.Cursor) [][]string {
	t.Helper()
	var rows [][]string
	for cur.Next() {
		row := make([]string, cur.FieldCount())
		for i := range row {
			v, ok, err := cur.Field(i)
			require.NoError(t, err)
			require.True(t, ok)
			row[i] = v
		}
		rows = append(rows, row)
	}
	require.NoError(t, cur.Err())
	return rows
}

func TestOpenSimpleRow(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "a,b,c\n"))
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, 3, tbl.ColumnCount())
	assert.Equal(t, []string{"col1", "col2", "col3"}, tbl.Columns())

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	rows := scanAll(t, cur)
	require.Equal(t, [][]string{{"a", "b", "c"}}, rows)
}

func TestQuotedFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "embedded delimiter preserved",
			input: "\"a,b\",c\n",
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "escaped quote collapsed",
			input: "\"a\"\"b\",c\n",
			want:  [][]string{{`a"b`, "c"}},
		},
		{
			name:  "embedded newline does not end the record",
			input: "\"line1\nline2\",x\n",
			want:  [][]string{{"line1\nline2", "x"}},
		},
		{
			name:  "final row without trailing newline",
			input: "a,b\nc,d",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := csvtable.Open(writeCSV(t, tt.input))
			require.NoError(t, err)
			defer tbl.Close()

			cur, err := tbl.NewCursor()
			require.NoError(t, err)
			defer cur.Close()

			assert.Equal(t, tt.want, scanAll(t, cur))
		})
	}
}

func TestHeaderRow(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.UseHeaderRow = true
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "id,name\n1,Ann\n2,Bob\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, []string{"id", "name"}, tbl.Columns())

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	rows := scanAll(t, cur)
	require.Equal(t, [][]string{{"1", "Ann"}, {"2", "Bob"}}, rows)

	// Rewinding must land on the first data row, never the header.
	require.NoError(t, cur.Rewind())
	require.Equal(t, rows, scanAll(t, cur))
}

func TestHeaderWithMissingName(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.UseHeaderRow = true
	_, err := csvtable.OpenWithOptions(writeCSV(t, "id,,name\n1,2,3\n"), opts)
	require.ErrorIs(t, err, csvtable.ErrMissingHeaderName)
}

func TestQuotedHeaderNamesAreUnescapedAndCopied(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.UseHeaderRow = true
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "\"the \"\"id\"\"\",name\nx,y\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()
	scanAll(t, cur)

	// Column names must survive the buffer being overwritten by the scan.
	assert.Equal(t, []string{`the "id"`, "name"}, tbl.Columns())
}

func TestRewindMidScanYieldsIdenticalSequence(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "a,1\nb,2\nc,3\nd,4\n"))
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	full := scanAll(t, cur)
	require.Len(t, full, 4)

	require.NoError(t, cur.Rewind())
	require.True(t, cur.Next())
	require.True(t, cur.Next()) // stop partway through

	require.NoError(t, cur.Rewind())
	assert.Equal(t, full, scanAll(t, cur))
}

func TestRowIDIsByteOffset(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "aa,bb\ncc,dd\nee,ff\n"))
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	var ids []int64
	for cur.Next() {
		ids = append(ids, cur.RowID())
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []int64{0, 6, 12}, ids)

	// Row ids are stable across a rewind.
	require.NoError(t, cur.Rewind())
	require.True(t, cur.Next())
	assert.Equal(t, int64(0), cur.RowID())
}

func TestRowIDSkipsHeader(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.UseHeaderRow = true
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "id,name\n1,Ann\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	require.True(t, cur.Next())
	assert.Equal(t, int64(8), cur.RowID()) // len("id,name\n")
}

func TestFieldOutsideRowIsNull(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "a,b\n"))
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()
	require.True(t, cur.Next())

	_, ok, err := cur.Field(5)
	require.NoError(t, err)
	assert.False(t, ok)

	b, err := cur.FieldBytes(-1)
	require.NoError(t, err)
	assert.Nil(t, b)

	// An empty field is a value, not null.
	tbl2, err := csvtable.Open(writeCSV(t, "a,\n"))
	require.NoError(t, err)
	defer tbl2.Close()
	cur2, err := tbl2.NewCursor()
	require.NoError(t, err)
	defer cur2.Close()
	require.True(t, cur2.Next())
	v, ok, err := cur2.Field(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestRaggedRows(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "a,b,c\nd\ne,f,g,h\n"))
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, 3, tbl.ColumnCount())

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	rows := scanAll(t, cur)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 1)
	assert.Len(t, rows[2], 4)
}

func TestUnterminatedQuoteExhaustsScan(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "ok,row\n\"unterminated,x\n"))
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	require.True(t, cur.Next())
	require.False(t, cur.Next())
	require.ErrorIs(t, cur.Err(), csvtable.ErrUnterminatedQuote)

	var scanErr *csvtable.ScanError
	require.ErrorAs(t, cur.Err(), &scanErr)
	assert.Equal(t, int64(7), scanErr.Offset) // len("ok,row\n")

	// Terminal: the error is surfaced once and the scan stays exhausted.
	require.False(t, cur.Next())

	// A rewind clears the failure and the good row is readable again.
	require.NoError(t, cur.Rewind())
	require.True(t, cur.Next())
	require.NoError(t, cur.Err())
}

func TestMalformedFirstRowFailsOpen(t *testing.T) {
	_, err := csvtable.Open(writeCSV(t, "\"unterminated,x\n"))
	require.ErrorIs(t, err, csvtable.ErrUnterminatedQuote)
}

func TestRecordTooLong(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.MaxRecordBytes = 8
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "a,b\nmuch longer row than eight\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	require.True(t, cur.Next())
	require.False(t, cur.Next())
	require.ErrorIs(t, cur.Err(), csvtable.ErrRecordTooLong)
}

func TestTooManyColumns(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.MaxColumns = 2
	_, err := csvtable.OpenWithOptions(writeCSV(t, "a,b,c\n"), opts)
	require.ErrorIs(t, err, csvtable.ErrTooManyColumns)
}

func TestValueTooLargeExhaustsScan(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.MaxValueBytes = 4
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "\"long \"\"escaped\"\" value\",x\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	require.True(t, cur.Next())
	_, _, err = cur.Field(0)
	require.ErrorIs(t, err, csvtable.ErrValueTooLarge)
	require.False(t, cur.Next())
	require.ErrorIs(t, cur.Err(), csvtable.ErrValueTooLarge)
}

func TestOpenErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := csvtable.Open(filepath.Join(t.TempDir(), "absent.csv"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := csvtable.Open(writeCSV(t, ""))
		require.ErrorIs(t, err, csvtable.ErrNoColumns)
	})

	t.Run("bad delimiter", func(t *testing.T) {
		opts := csvtable.DefaultOptions()
		opts.Delimiter = '"'
		_, err := csvtable.OpenWithOptions(writeCSV(t, "a\n"), opts)
		require.ErrorIs(t, err, csvtable.ErrBadDelimiter)
	})
}

func TestCustomDelimiter(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.Delimiter = ';'
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "a;b,c;d\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	assert.Equal(t, [][]string{{"a", "b,c", "d"}}, scanAll(t, cur))
}

func TestDetectDelimiter(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.DetectDelimiter = true
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "a;b;c\n1;2;3\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, byte(';'), tbl.Delimiter())
	assert.Equal(t, 3, tbl.ColumnCount())
}

func TestCloseReferenceCounting(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "a,b\nc,d\n"))
	require.NoError(t, err)

	cur, err := tbl.NewCursor()
	require.NoError(t, err)

	// Closing the table must not pull the file out from under the cursor.
	require.NoError(t, tbl.Close())
	rows := scanAll(t, cur)
	assert.Len(t, rows, 2)

	require.NoError(t, cur.Close())

	// Everything is torn down now.
	require.ErrorIs(t, tbl.Close(), csvtable.ErrTableClosed)
	require.ErrorIs(t, cur.Close(), csvtable.ErrCursorClosed)
	_, err = tbl.NewCursor()
	require.ErrorIs(t, err, csvtable.ErrTableClosed)
}

func TestCursorBeforeFirstNext(t *testing.T) {
	tbl, err := csvtable.Open(writeCSV(t, "a,b\n"))
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	assert.Equal(t, 0, cur.FieldCount())
	_, ok, err := cur.Field(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFieldAliasesInvalidatedByAdvance(t *testing.T) {
	opts := csvtable.DefaultOptions()
	opts.PoisonOnAdvance = true
	tbl, err := csvtable.OpenWithOptions(writeCSV(t, "abcdef,gh\nx,y\n"), opts)
	require.NoError(t, err)
	defer tbl.Close()

	cur, err := tbl.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	require.True(t, cur.Next())
	held, err := cur.FieldBytes(0)
	require.NoError(t, err)
	snapshot := string(held)

	require.True(t, cur.Next())
	assert.NotEqual(t, snapshot, string(held),
		"field view held across an advance must not survive intact")
}
