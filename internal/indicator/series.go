package indicator

import "stockmatrix/internal/matrix"

// Series is one symbol's observations aligned to the source date columns.
type Series struct {
	values  []float64
	present []bool
}

// NewSeries takes the numeric cells; anything else counts as absent.
func NewSeries(cells []matrix.CellValue) Series {
	s := Series{values: make([]float64, len(cells)), present: make([]bool, len(cells))}
	for i, c := range cells {
		s.values[i], s.present[i] = c.AsNumber()
	}
	return s
}

// SeriesOf builds a fully present series.
func SeriesOf(values ...float64) Series {
	s := Series{values: append([]float64(nil), values...), present: make([]bool, len(values))}
	for i := range s.present {
		s.present[i] = true
	}
	return s
}

// Len is the number of positions in the series.
func (s Series) Len() int { return len(s.values) }

// Window returns the n values ending at end. It fails when the window
// runs off either edge or holds an absent value.
func (s Series) Window(end, n int) ([]float64, bool) {
	start := end - n + 1
	if n <= 0 || start < 0 || end >= len(s.values) {
		return nil, false
	}
	for i := start; i <= end; i++ {
		if !s.present[i] {
			return nil, false
		}
	}
	return s.values[start : end+1], true
}
