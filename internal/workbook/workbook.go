// Package workbook stores TimeMatrix sheets in an xlsx file.
//
// A Workbook is opened once per operation, changed in memory and written
// back with a single Save that replaces the file through a temp file and
// rename. Callers always defer Close.
package workbook

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
)

const dateColumnWidth = 12

// maxDateSerial is the serial day after 9999-12-31.
const maxDateSerial = 2958466

// Options carries the row-1 labels of the name and key columns and the
// logger for store events.
type Options struct {
	NameHeader string
	KeyHeader  string
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.NameHeader == "" {
		o.NameHeader = matrix.DefaultNameHeader
	}
	if o.KeyHeader == "" {
		o.KeyHeader = matrix.DefaultKeyHeader
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Workbook is an open store file.
type Workbook struct {
	path       string
	opts       Options
	f          *excelize.File
	logger     *slog.Logger
	created    bool
	dirty      bool
	date1904   bool
	style      int
	dateStyles map[int]bool
}

// Header is the row-1 cells and column-B keys of a sheet without its values.
// Labels holds each header cell as written to the store.
type Header struct {
	Cells  []matrix.CellValue
	Labels []string
	Keys   []string
}

func newWorkbook(path string, opts Options, f *excelize.File) *Workbook {
	opts = opts.withDefaults()
	w := &Workbook{
		path:       path,
		opts:       opts,
		f:          f,
		logger:     opts.Logger.With(slog.String("component", "workbook")),
		style:      -1,
		dateStyles: map[int]bool{},
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		w.date1904 = *props.Date1904
	}
	return w
}

// Open opens an existing store. A missing file yields ErrMissingStore.
func Open(path string, opts Options) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewMissingStoreError(path, err)
		}
		return nil, apperrors.NewStorageError("stat store", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("open %s", path), err)
	}
	return newWorkbook(path, opts, f), nil
}

// OpenOrCreate opens path, or starts an empty workbook that Save will create.
func OpenOrCreate(path string, opts Options) (*Workbook, error) {
	wb, err := Open(path, opts)
	if err == nil {
		return wb, nil
	}
	if !errors.Is(err, apperrors.ErrMissingStore) {
		return nil, err
	}
	w := newWorkbook(path, opts, excelize.NewFile())
	w.created, w.dirty = true, true
	return w, nil
}

// Path returns the file the workbook saves to.
func (w *Workbook) Path() string { return w.path }

// Dirty reports whether there are unsaved changes.
func (w *Workbook) Dirty() bool { return w.dirty }

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Sheets lists sheet names in workbook order. A freshly created workbook
// hides its placeholder sheet until something is written to it.
func (w *Workbook) Sheets() []string {
	list := w.f.GetSheetList()
	if w.created && len(list) == 1 && w.isPlaceholder(list[0]) {
		return nil
	}
	return list
}

// HasSheet reports whether sheet exists.
func (w *Workbook) HasSheet(sheet string) bool {
	for _, s := range w.Sheets() {
		if s == sheet {
			return true
		}
	}
	return false
}

func (w *Workbook) isPlaceholder(sheet string) bool {
	rows, err := w.f.GetRows(sheet)
	return err == nil && len(rows) == 0
}

func (w *Workbook) rows(sheet string) ([][]string, error) {
	if !w.HasSheet(sheet) {
		return nil, apperrors.NewMissingSheetError(sheet)
	}
	rows, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("read sheet %s", sheet), err)
	}
	return rows, nil
}

// headerOf types the row-1 cells from the first data column on. Raw reads
// hand back numbers unformatted, so the cell type and number format decide
// between Text, Number and Date.
func (w *Workbook) headerOf(sheet string, rows [][]string) ([]matrix.CellValue, error) {
	if len(rows) == 0 || len(rows[0]) < matrix.FirstDataColumn {
		return []matrix.CellValue{}, nil
	}
	raw := rows[0][matrix.FirstDataColumn-1:]
	out := make([]matrix.CellValue, len(raw))
	for i, v := range raw {
		c, err := w.headerCell(sheet, matrix.FirstDataColumn+i, v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (w *Workbook) headerCell(sheet string, col int, raw string) (matrix.CellValue, error) {
	if strings.TrimSpace(raw) == "" {
		return matrix.Absent(), nil
	}
	cell, err := excelize.CoordinatesToCellName(col, 1)
	if err != nil {
		return matrix.Absent(), apperrors.NewStorageError("cell address", err)
	}
	typ, err := w.f.GetCellType(sheet, cell)
	if err != nil {
		return matrix.Absent(), apperrors.NewStorageError(fmt.Sprintf("read type of %s!%s", sheet, cell), err)
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return matrix.Text(raw), nil
		}
		isDate, err := w.dateFormatted(sheet, cell)
		if err != nil {
			return matrix.Absent(), err
		}
		if isDate && f >= 0 && f < maxDateSerial {
			if t, err := excelize.ExcelDateToTime(f, w.date1904); err == nil {
				return matrix.Date(t), nil
			}
		}
		return matrix.Number(f), nil
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return matrix.Date(t), nil
		}
	}
	return matrix.Text(raw), nil
}

// dateFormatted reports whether the cell's number format renders a date.
// Results are cached per style id.
func (w *Workbook) dateFormatted(sheet, cell string) (bool, error) {
	id, err := w.f.GetCellStyle(sheet, cell)
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Sprintf("read style of %s!%s", sheet, cell), err)
	}
	if id == 0 {
		return false, nil
	}
	if isDate, ok := w.dateStyles[id]; ok {
		return isDate, nil
	}
	style, err := w.f.GetStyle(id)
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Sprintf("read style %d", id), err)
	}
	isDate := isDateNumFmt(style.NumFmt)
	if style.CustomNumFmt != nil {
		isDate = isDateLayout(*style.CustomNumFmt)
	}
	w.dateStyles[id] = isDate
	return isDate, nil
}

// isDateNumFmt reports whether a built-in number format id is a date or
// date-time format.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateLayout reports whether a custom format code has a year or day
// token outside quoted text and bracketed sections.
func isDateLayout(code string) bool {
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'y' || r == 'd':
			return true
		}
	}
	return false
}

var isoLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseISODate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// LoadMatrix reads a whole sheet. Entirely blank rows are skipped.
func (w *Workbook) LoadMatrix(sheet string) (*matrix.TimeMatrix, error) {
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}

	header, err := w.headerOf(sheet, rows)
	if err != nil {
		return nil, err
	}
	m := matrix.FromHeader(header)
	for _, raw := range rowsAfterHeader(rows) {
		name, key := cellAt(raw, 0), cellAt(raw, 1)
		if name == "" && key == "" {
			continue
		}
		values := make([]matrix.CellValue, m.Width())
		for i := range values {
			col := matrix.FirstDataColumn - 1 + i
			if col < len(raw) {
				values[i] = matrix.ParseCell(raw[col])
			}
		}
		m.Rows = append(m.Rows, matrix.Row{Key: key, Name: name, Values: values})
	}
	return m, nil
}

// LoadHeader reads only the date labels and symbol keys of a sheet.
func (w *Workbook) LoadHeader(sheet string) (*Header, error) {
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}

	cells, err := w.headerOf(sheet, rows)
	if err != nil {
		return nil, err
	}
	h := &Header{Cells: cells, Labels: matrix.FromHeader(cells).HeaderText()}
	for _, raw := range rowsAfterHeader(rows) {
		if key := cellAt(raw, 1); key != "" {
			h.Keys = append(h.Keys, key)
		}
	}
	return h, nil
}

func rowsAfterHeader(rows [][]string) [][]string {
	if len(rows) < 2 {
		return nil
	}
	return rows[1:]
}

// CreateMatrix writes m as a new sheet, replacing any sheet of that name.
func (w *Workbook) CreateMatrix(sheet string, m *matrix.TimeMatrix) error {
	if err := w.resetSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{w.opts.NameHeader, w.opts.KeyHeader}
	for _, c := range m.Header {
		header = append(header, c.Interface())
	}
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return apperrors.NewStorageError("write header", err)
	}
	if err := w.styleHeader(sheet, 1, len(header)); err != nil {
		return err
	}

	for r, row := range m.Rows {
		if err := w.writeRow(sheet, r+2, row, 0); err != nil {
			return err
		}
	}

	if m.Width() > 0 {
		if err := w.widen(sheet, matrix.FirstDataColumn, matrix.FirstDataColumn+m.Width()-1); err != nil {
			return err
		}
	}
	w.dirty = true
	return nil
}

func (w *Workbook) resetSheet(sheet string) error {
	if w.created {
		list := w.f.GetSheetList()
		if len(list) == 1 && w.isPlaceholder(list[0]) && list[0] != sheet {
			if err := w.f.SetSheetName(list[0], sheet); err != nil {
				return apperrors.NewStorageError("rename placeholder sheet", err)
			}
			return nil
		}
	}
	idx, _ := w.f.GetSheetIndex(sheet)
	if idx < 0 {
		if _, err := w.f.NewSheet(sheet); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("create sheet %s", sheet), err)
		}
		return nil
	}

	// excelize keeps the last remaining sheet on DeleteSheet, so swap in a
	// fresh one before dropping the old.
	const scratch = "~rebuild"
	if _, err := w.f.NewSheet(scratch); err != nil {
		return apperrors.NewStorageError("create scratch sheet", err)
	}
	if err := w.f.DeleteSheet(sheet); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("drop sheet %s", sheet), err)
	}
	if err := w.f.SetSheetName(scratch, sheet); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("rename sheet %s", sheet), err)
	}
	return nil
}

// writeRow writes the values of row starting at column startCol. With
// startCol 0 it writes name and key too and starts at the first data column.
func (w *Workbook) writeRow(sheet string, rowNum int, row matrix.Row, startCol int) error {
	if startCol == 0 {
		startCol = matrix.FirstDataColumn
		if err := w.setCell(sheet, 1, rowNum, row.Name); err != nil {
			return err
		}
		if err := w.setCell(sheet, 2, rowNum, row.Key); err != nil {
			return err
		}
	}
	for i, c := range row.Values {
		if c.IsAbsent() {
			continue
		}
		if err := w.setCell(sheet, startCol+i, rowNum, c.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) setCell(sheet string, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return apperrors.NewStorageError("cell address", err)
	}
	if err := w.f.SetCellValue(sheet, cell, v); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s!%s", sheet, cell), err)
	}
	return nil
}

func (w *Workbook) styleHeader(sheet string, fromCol, toCol int) error {
	if w.style < 0 {
		id, err := w.f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"CCCCCC"}, Pattern: 1},
		})
		if err != nil {
			return apperrors.NewStorageError("create header style", err)
		}
		w.style = id
	}
	from, _ := excelize.CoordinatesToCellName(fromCol, 1)
	to, _ := excelize.CoordinatesToCellName(toCol, 1)
	if err := w.f.SetCellStyle(sheet, from, to, w.style); err != nil {
		return apperrors.NewStorageError("style header", err)
	}
	return nil
}

func (w *Workbook) widen(sheet string, fromCol, toCol int) error {
	from, err := excelize.ColumnNumberToName(fromCol)
	if err != nil {
		return apperrors.NewStorageError("column name", err)
	}
	to, err := excelize.ColumnNumberToName(toCol)
	if err != nil {
		return apperrors.NewStorageError("column name", err)
	}
	if err := w.f.SetColWidth(sheet, from, to, dateColumnWidth); err != nil {
		return apperrors.NewStorageError("set column width", err)
	}
	return nil
}

// AppendStats describes what AppendColumns wrote.
type AppendStats struct {
	Columns int
	NewRows int
}

// AppendColumns appends block's date columns after the last header cell of
// sheet. Rows are matched by symbol key; keys not yet in the sheet get a
// new row at the bottom. Existing cells are never rewritten.
func (w *Workbook) AppendColumns(sheet string, block *matrix.TimeMatrix) (AppendStats, error) {
	var stats AppendStats
	if block.Width() == 0 {
		return stats, nil
	}

	rows, err := w.rows(sheet)
	if err != nil {
		return stats, err
	}

	// an emptied sheet gets its name and key labels back
	if len(rows) == 0 || (cellAt(rows[0], 0) == "" && cellAt(rows[0], 1) == "") {
		if err := w.setCell(sheet, 1, 1, w.opts.NameHeader); err != nil {
			return stats, err
		}
		if err := w.setCell(sheet, 2, 1, w.opts.KeyHeader); err != nil {
			return stats, err
		}
		if err := w.styleHeader(sheet, 1, 2); err != nil {
			return stats, err
		}
	}

	header, err := w.headerOf(sheet, rows)
	if err != nil {
		return stats, err
	}
	start := matrix.FirstDataColumn + len(header)
	for i, c := range block.Header {
		if err := w.setCell(sheet, start+i, 1, c.Interface()); err != nil {
			return stats, err
		}
	}
	if err := w.styleHeader(sheet, start, start+block.Width()-1); err != nil {
		return stats, err
	}

	rowOf := make(map[string]int, len(rows))
	lastRow := 1
	for i, raw := range rows {
		if i == 0 {
			continue
		}
		if key := cellAt(raw, 1); key != "" {
			if _, ok := rowOf[key]; !ok {
				rowOf[key] = i + 1
			}
		}
		if cellAt(raw, 0) != "" || cellAt(raw, 1) != "" {
			lastRow = i + 1
		}
	}

	for _, row := range block.Rows {
		rowNum, ok := rowOf[row.Key]
		if !ok {
			lastRow++
			rowNum = lastRow
			rowOf[row.Key] = rowNum
			stats.NewRows++
			if err := w.setCell(sheet, 1, rowNum, row.Name); err != nil {
				return stats, err
			}
			if err := w.setCell(sheet, 2, rowNum, row.Key); err != nil {
				return stats, err
			}
		}
		if err := w.writeRow(sheet, rowNum, row, start); err != nil {
			return stats, err
		}
	}

	if err := w.widen(sheet, start, start+block.Width()-1); err != nil {
		return stats, err
	}
	stats.Columns = block.Width()
	w.dirty = true
	return stats, nil
}

// HeaderCells returns the typed row-1 cells from the first data column on.
func (w *Workbook) HeaderCells(sheet string) ([]matrix.CellValue, error) {
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}
	return w.headerOf(sheet, rows)
}

// DeleteColumnByDate removes the first column whose header digits equal
// label. Date cells count by their YYYYMMDD rendering. It reports whether
// a column was removed.
func (w *Workbook) DeleteColumnByDate(sheet, label string) (bool, error) {
	cells, err := w.HeaderCells(sheet)
	if err != nil {
		return false, err
	}
	for i, c := range cells {
		if d, ok := matrix.DigitLabel(c.String()); ok && d == label {
			return true, w.DeleteColumnAt(sheet, matrix.FirstDataColumn+i)
		}
	}
	return false, nil
}

// DeleteColumnAt removes the 1-based column col. The name and key columns
// cannot be removed.
func (w *Workbook) DeleteColumnAt(sheet string, col int) error {
	if col < matrix.FirstDataColumn {
		return apperrors.NewAppValidationError(fmt.Sprintf("column %d is not a date column", col))
	}
	if !w.HasSheet(sheet) {
		return apperrors.NewMissingSheetError(sheet)
	}
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return apperrors.NewStorageError("column name", err)
	}
	if err := w.f.RemoveCol(sheet, name); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("remove column %s of %s", name, sheet), err)
	}
	w.dirty = true
	return nil
}

// Save writes the workbook to a temp file next to the target and renames
// it into place, so readers see either the old or the new file.
func (w *Workbook) Save() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageError("create store directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return apperrors.NewStorageError("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := w.f.WriteTo(tmp); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("write workbook", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("sync workbook", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("close temp file", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return apperrors.NewStorageError("replace store", err)
	}

	w.logger.Debug("workbook saved", slog.String("path", w.path), slog.Int("sheets", len(w.Sheets())))
	w.dirty = false
	w.created = false
	return nil
}
