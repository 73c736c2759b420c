package exporter

import (
	"fmt"
	"io"
	"sort"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
)

// MatrixOptions controls how a sheet is flattened.
type MatrixOptions struct {
	NameHeader string
	KeyHeader  string
	// Decimals fixes the number of decimal places; negative keeps values as stored.
	Decimals int
	// DatedOnly drops header columns that are not 8-digit date labels.
	DatedOnly bool
	BOMPrefix bool
}

// MatrixExporter writes one sheet as a wide CSV table.
type MatrixExporter struct {
	csvWriter *CSVWriter
}

// NewMatrixExporter creates a new sheet exporter
func NewMatrixExporter(w *CSVWriter) *MatrixExporter {
	return &MatrixExporter{csvWriter: w}
}

// Records converts m to a header row and one record per symbol.
func (e *MatrixExporter) Records(m *matrix.TimeMatrix, opts MatrixOptions) ([]string, [][]string) {
	nameHeader, keyHeader := opts.NameHeader, opts.KeyHeader
	if nameHeader == "" {
		nameHeader = matrix.DefaultNameHeader
	}
	if keyHeader == "" {
		keyHeader = matrix.DefaultKeyHeader
	}

	var cols []int
	var labels []string
	if opts.DatedOnly {
		for _, d := range m.Dated() {
			cols = append(cols, d.Index)
			labels = append(labels, d.Label)
		}
	} else {
		for i, h := range m.Header {
			cols = append(cols, i)
			labels = append(labels, h.String())
		}
	}

	headers := append([]string{nameHeader, keyHeader}, labels...)
	records := make([][]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		rec := make([]string, 0, len(headers))
		rec = append(rec, row.Name, row.Key)
		for _, c := range cols {
			rec = append(rec, formatCell(row.Value(c), opts.Decimals))
		}
		records = append(records, rec)
	}
	return headers, records
}

// Export writes m to out.
func (e *MatrixExporter) Export(out io.Writer, m *matrix.TimeMatrix, opts MatrixOptions) error {
	headers, records := e.Records(m, opts)
	return e.csvWriter.Write(out, WriteOptions{Headers: headers, Records: records, BOMPrefix: opts.BOMPrefix})
}

// ExportFile writes m to filePath.
func (e *MatrixExporter) ExportFile(filePath string, m *matrix.TimeMatrix, opts MatrixOptions) error {
	headers, records := e.Records(m, opts)
	return e.csvWriter.WriteFile(filePath, WriteOptions{Headers: headers, Records: records, BOMPrefix: opts.BOMPrefix})
}

// SymbolExporter writes the history of one symbol across several sheets.
type SymbolExporter struct {
	csvWriter *CSVWriter
}

// NewSymbolExporter creates a new symbol history exporter
func NewSymbolExporter(w *CSVWriter) *SymbolExporter {
	return &SymbolExporter{csvWriter: w}
}

// NamedMatrix is a sheet and its loaded matrix.
type NamedMatrix struct {
	Sheet  string
	Matrix *matrix.TimeMatrix
}

// Records builds a "date" column plus one column per sheet, oldest date
// first. A sheet without the symbol or the date leaves the cell empty.
func (e *SymbolExporter) Records(key string, sheets []NamedMatrix, decimals int) ([]string, [][]string, error) {
	headers := []string{"date"}
	byDate := map[string][]string{}
	found := false

	for i, nm := range sheets {
		headers = append(headers, nm.Sheet)
		row, ok := nm.Matrix.Row(key)
		if !ok {
			continue
		}
		found = true
		for _, d := range nm.Matrix.Dated() {
			rec, ok := byDate[d.Label]
			if !ok {
				rec = make([]string, len(sheets))
				byDate[d.Label] = rec
			}
			rec[i] = formatCell(row.Value(d.Index), decimals)
		}
	}
	if !found {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("symbol %s", key))
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	records := make([][]string, 0, len(dates))
	for _, d := range dates {
		records = append(records, append([]string{d}, byDate[d]...))
	}
	return headers, records, nil
}

// Export writes the history of key to out.
func (e *SymbolExporter) Export(out io.Writer, key string, sheets []NamedMatrix, decimals int, bom bool) error {
	headers, records, err := e.Records(key, sheets, decimals)
	if err != nil {
		return err
	}
	return e.csvWriter.Write(out, WriteOptions{Headers: headers, Records: records, BOMPrefix: bom})
}

// ExportFile writes the history of key to filePath.
func (e *SymbolExporter) ExportFile(filePath, key string, sheets []NamedMatrix, decimals int, bom bool) error {
	headers, records, err := e.Records(key, sheets, decimals)
	if err != nil {
		return err
	}
	return e.csvWriter.WriteFile(filePath, WriteOptions{Headers: headers, Records: records, BOMPrefix: bom})
}
