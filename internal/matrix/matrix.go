package matrix

import (
	"fmt"
)

// Default row-1 labels of columns A and B.
const (
	DefaultNameHeader = "display name"
	DefaultKeyHeader  = "symbol key"
)

// FirstDataColumn is the 1-based column of the first date label.
const FirstDataColumn = 3

// Row is one symbol of a TimeMatrix.
type Row struct {
	Key    string
	Name   string
	Values []CellValue
}

// Value returns the cell at position i, Absent when out of range.
func (r Row) Value(i int) CellValue {
	if i < 0 || i >= len(r.Values) {
		return Absent()
	}
	return r.Values[i]
}

// TimeMatrix is a date-columns by symbol-rows table.
//
// Header holds every header cell from column C on, so Header[i] sits in
// column FirstDataColumn+i. A header cell may be Text, Number or Date;
// AsDateLabel decides whether it names a date. Rows are padded to the
// header width.
type TimeMatrix struct {
	Header []CellValue
	Rows   []Row
}

// DatedColumn ties a strict date label to its header position.
type DatedColumn struct {
	Label string
	Index int
}

// New returns an empty matrix whose header holds labels as text cells.
func New(labels []string) *TimeMatrix {
	h := make([]CellValue, len(labels))
	for i, l := range labels {
		h[i] = Text(l)
	}
	return &TimeMatrix{Header: h}
}

// FromHeader returns an empty matrix over header cells read from a store.
func FromHeader(cells []CellValue) *TimeMatrix {
	h := make([]CellValue, len(cells))
	copy(h, cells)
	return &TimeMatrix{Header: h}
}

// Width is the number of date columns.
func (m *TimeMatrix) Width() int { return len(m.Header) }

// HeaderText renders every header cell the way it is written to the store.
func (m *TimeMatrix) HeaderText() []string {
	out := make([]string, len(m.Header))
	for i, h := range m.Header {
		out[i] = h.String()
	}
	return out
}

// AddRow appends a symbol row padded with Absent cells. The pointer is
// valid until the next AddRow.
func (m *TimeMatrix) AddRow(key, name string) *Row {
	m.Rows = append(m.Rows, Row{Key: key, Name: name, Values: make([]CellValue, len(m.Header))})
	return &m.Rows[len(m.Rows)-1]
}

// Dated returns the date-label columns in header order. A label that
// repeats keeps only its first column.
func (m *TimeMatrix) Dated() []DatedColumn {
	seen := make(map[string]struct{}, len(m.Header))
	out := make([]DatedColumn, 0, len(m.Header))
	for i, h := range m.Header {
		label, ok := h.AsDateLabel()
		if !ok {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, DatedColumn{Label: label, Index: i})
	}
	return out
}

// Labels returns the strict date labels in header order.
func (m *TimeMatrix) Labels() []string {
	dated := m.Dated()
	out := make([]string, len(dated))
	for i, d := range dated {
		out[i] = d.Label
	}
	return out
}

// KeyIndex maps symbol keys to row positions. The first row wins on duplicates.
func (m *TimeMatrix) KeyIndex() map[string]int {
	idx := make(map[string]int, len(m.Rows))
	for i, r := range m.Rows {
		if _, ok := idx[r.Key]; !ok {
			idx[r.Key] = i
		}
	}
	return idx
}

// Row returns the row for key.
func (m *TimeMatrix) Row(key string) (*Row, bool) {
	for i := range m.Rows {
		if m.Rows[i].Key == key {
			return &m.Rows[i], true
		}
	}
	return nil, false
}

// Latest returns the greatest strict label, compared numerically.
func (m *TimeMatrix) Latest() (string, bool) {
	best, bestVal := "", -1
	for _, d := range m.Dated() {
		if v := LabelValue(d.Label); v > bestVal {
			best, bestVal = d.Label, v
		}
	}
	return best, bestVal >= 0
}

// Validate checks that strict labels are unique and rows match the header width.
func (m *TimeMatrix) Validate() error {
	seen := make(map[string]int, len(m.Header))
	for i, h := range m.Header {
		label, ok := h.AsDateLabel()
		if !ok {
			continue
		}
		if j, dup := seen[label]; dup {
			return fmt.Errorf("date label %s repeated at columns %d and %d", label, j+FirstDataColumn, i+FirstDataColumn)
		}
		seen[label] = i
	}
	for _, r := range m.Rows {
		if len(r.Values) != len(m.Header) {
			return fmt.Errorf("row %s has %d values, header has %d", r.Key, len(r.Values), len(m.Header))
		}
	}
	return nil
}
