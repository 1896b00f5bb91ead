// Package dataset provides the in-memory tabular layer the costing
// engines operate on: a named-column frame, the cleaning and validation
// operations applied to raw ERP extracts, and the binding from cleaned
// frames to typed records.
package dataset

import (
	"github.com/rotisserie/eris"
)

// ErrConfiguration marks a fatal configuration problem: a required
// column or parameter is missing. Runs abort on it; it is never retried.
var ErrConfiguration = eris.New("dataset: configuration error")

// Frame is a small ordered named-column table over string cells.
// Empty cells stand for NA. Engines own their Frame exclusively; use
// Clone before handing one to a stage that mutates it.
type Frame struct {
	cols  []string
	index map[string]int
	rows  [][]string
}

// New creates a Frame from a header and rows. Rows shorter than the
// header are padded with empty cells.
func New(cols []string, rows [][]string) *Frame {
	f := &Frame{cols: append([]string(nil), cols...), index: make(map[string]int, len(cols))}
	for i, c := range f.cols {
		f.index[c] = i
	}
	f.rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(f.cols))
		copy(row, r)
		f.rows = append(f.rows, row)
	}
	return f
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.cols...) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Has reports whether the column exists.
func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Cell returns the cell at (row, col). Missing columns yield "".
func (f *Frame) Cell(row int, col string) string {
	i, ok := f.index[col]
	if !ok {
		return ""
	}
	return f.rows[row][i]
}

// SetCell overwrites the cell at (row, col).
func (f *Frame) SetCell(row int, col, value string) {
	if i, ok := f.index[col]; ok {
		f.rows[row][i] = value
	}
}

// Row returns a copy of one row.
func (f *Frame) Row(row int) []string {
	return append([]string(nil), f.rows[row]...)
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	return New(f.cols, f.rows)
}

// Select returns a new frame containing the rows for which keep is true.
func (f *Frame) Select(keep func(row int) bool) *Frame {
	out := New(f.cols, nil)
	for i := range f.rows {
		if keep(i) {
			out.rows = append(out.rows, append([]string(nil), f.rows[i]...))
		}
	}
	return out
}

// RequireColumns returns a ConfigurationError naming every column in
// cols that the frame does not carry.
func (f *Frame) RequireColumns(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrConfiguration, "missing required columns %v", missing)
	}
	return nil
}
