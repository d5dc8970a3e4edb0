package csvtable

import (
	"fmt"
	"strings"
)

// deriveColumns builds the column names from the row currently in the
// buffer. Header cells are copied out of the shared record buffer, since
// the buffer is overwritten by the first scan.
func (t *Table) deriveColumns() ([]string, error) {
	n := t.ft.Len()
	if n == 0 {
		return nil, ErrNoColumns
	}
	cols := make([]string, n)
	for i := 0; i < n; i++ {
		if !t.opts.UseHeaderRow {
			cols[i] = fmt.Sprintf("col%d", i+1)
			continue
		}
		name, _, err := t.ft.Field(i)
		if err != nil {
			return nil, &ScanError{Offset: t.curRowOffset, Err: err}
		}
		if name == "" {
			return nil, ErrMissingHeaderName
		}
		cols[i] = strings.Clone(name)
	}
	return cols, nil
}
