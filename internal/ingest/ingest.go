// Package ingest applies observation batches from the acquisition side to
// a source sheet. Only dates newer than the sheet's latest are appended;
// stored columns are never rewritten.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"stockmatrix/internal/matrix"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// KeyWidth is the zero-padded width of numeric symbol keys in the catalog.
const KeyWidth = 6

// Ingester extends source sheets.
type Ingester struct {
	catalogSheet string
	validate     *validator.Validate
	logger       *slog.Logger
}

// New returns an Ingester. When catalogSheet exists in the store, only
// symbols listed there are accepted.
func New(catalogSheet string, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		catalogSheet: catalogSheet,
		validate:     newValidator(),
		logger:       logger.With(slog.String("component", "ingest")),
	}
}

type symbolValues struct {
	name   string
	values map[string]matrix.CellValue
}

// hasAny reports whether the symbol was observed on any of dates, even
// with an empty value.
func (sv *symbolValues) hasAny(dates []string) bool {
	for _, d := range dates {
		if _, ok := sv.values[d]; ok {
			return true
		}
	}
	return false
}

// Apply stages batches onto sheet. The sheet is created when missing.
func (in *Ingester) Apply(ctx context.Context, wb *workbook.Workbook, field, sheet string, batches []domain.ObservationBatch) (domain.IngestReport, error) {
	report := domain.IngestReport{Field: field, Sheet: sheet, AddedDates: []string{}}

	if err := validateBatches(in.validate, batches); err != nil {
		return report, err
	}

	catalog, err := in.catalog(wb)
	if err != nil {
		return report, err
	}

	symbols := map[string]*symbolValues{}
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := strings.TrimSpace(b.SymbolKey)
		name := strings.TrimSpace(b.SymbolName)
		if catalog != nil {
			catName, ok := catalog[normalizeKey(key)]
			if !ok {
				report.Rejected = append(report.Rejected, key)
				continue
			}
			key = normalizeKey(key)
			if name == "" {
				name = catName
			}
		}
		if name == "" {
			name = key
		}

		sv, ok := symbols[key]
		if !ok {
			sv = &symbolValues{name: name, values: map[string]matrix.CellValue{}}
			symbols[key] = sv
		}
		for _, o := range b.Observations {
			t, _ := matrix.ParseDateArg(o.Date)
			cell := matrix.Absent()
			if o.Value != nil {
				cell = matrix.Number(*o.Value)
			}
			sv.values[matrix.FormatLabel(t)] = cell
		}
	}

	if !wb.HasSheet(sheet) {
		return in.create(ctx, wb, report, symbols)
	}
	return in.extend(ctx, wb, report, symbols)
}

func (in *Ingester) create(ctx context.Context, wb *workbook.Workbook, report domain.IngestReport, symbols map[string]*symbolValues) (domain.IngestReport, error) {
	dates := map[string]struct{}{}
	for _, sv := range symbols {
		for d := range sv.values {
			dates[d] = struct{}{}
		}
	}
	if len(dates) == 0 {
		in.logger.InfoContext(ctx, "no observations to store", slog.String("sheet", report.Sheet))
		return report, nil
	}

	header := sortedLabels(dates)
	m := matrix.New(header)
	for _, key := range sortedKeys(symbols) {
		sv := symbols[key]
		row := m.AddRow(key, sv.name)
		for i, d := range header {
			row.Values[i] = sv.values[d]
		}
	}

	if err := wb.CreateMatrix(report.Sheet, m); err != nil {
		return report, fmt.Errorf("create %s: %w", report.Sheet, err)
	}

	report.Created = true
	report.AddedDates = header
	report.NewSymbols = len(m.Rows)
	report.SymbolCount = len(m.Rows)
	in.logger.InfoContext(ctx, "source sheet created",
		slog.String("sheet", report.Sheet),
		slog.Int("dates", len(header)),
		slog.Int("symbols", len(m.Rows)))
	return report, nil
}

func (in *Ingester) extend(ctx context.Context, wb *workbook.Workbook, report domain.IngestReport, symbols map[string]*symbolValues) (domain.IngestReport, error) {
	existing, err := wb.LoadMatrix(report.Sheet)
	if err != nil {
		return report, err
	}
	latest, _ := existing.Latest()
	floor := matrix.LabelValue(latest)

	fresh := map[string]struct{}{}
	for _, sv := range symbols {
		for d := range sv.values {
			if matrix.LabelValue(d) > floor {
				fresh[d] = struct{}{}
			} else {
				report.Skipped++
			}
		}
	}

	known := existing.KeyIndex()
	report.SymbolCount = len(known)
	if len(fresh) == 0 {
		in.logger.InfoContext(ctx, "source sheet already current",
			slog.String("sheet", report.Sheet),
			slog.String("latest", latest),
			slog.Int("skipped", report.Skipped))
		return report, nil
	}

	header := sortedLabels(fresh)
	block := matrix.New(header)
	for _, key := range sortedKeys(symbols) {
		sv := symbols[key]
		if _, ok := known[key]; !ok && !sv.hasAny(header) {
			continue
		}
		row := block.AddRow(key, sv.name)
		for i, d := range header {
			row.Values[i] = sv.values[d]
		}
	}

	stats, err := wb.AppendColumns(report.Sheet, block)
	if err != nil {
		return report, fmt.Errorf("append to %s: %w", report.Sheet, err)
	}

	report.AddedDates = header
	report.NewSymbols = stats.NewRows
	report.SymbolCount += stats.NewRows
	in.logger.InfoContext(ctx, "source sheet extended",
		slog.String("sheet", report.Sheet),
		slog.Int("added_dates", len(header)),
		slog.Int("new_symbols", stats.NewRows),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

func (in *Ingester) catalog(wb *workbook.Workbook) (map[string]string, error) {
	if in.catalogSheet == "" || !wb.HasSheet(in.catalogSheet) {
		return nil, nil
	}
	symbols, err := LoadCatalog(wb, in.catalogSheet)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(symbols))
	for _, s := range symbols {
		out[s.Key] = s.Name
	}
	return out, nil
}

// LoadCatalog reads the symbol catalog: name in column A, key in column B,
// header row skipped. Rows missing either are ignored and numeric keys are
// zero-padded to KeyWidth.
func LoadCatalog(wb *workbook.Workbook, sheet string) ([]domain.Symbol, error) {
	m, err := wb.LoadMatrix(sheet)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Symbol, 0, len(m.Rows))
	for _, r := range m.Rows {
		if r.Name == "" || r.Key == "" {
			continue
		}
		out = append(out, domain.Symbol{Key: normalizeKey(r.Key), Name: r.Name})
	}
	return out, nil
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || len(key) >= KeyWidth {
		return key
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return key
		}
	}
	return strings.Repeat("0", KeyWidth-len(key)) + key
}

func sortedLabels(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(symbols map[string]*symbolValues) []string {
	out := make([]string, 0, len(symbols))
	for k := range symbols {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
