// Package merge extends an indicator sheet with the source dates it does
// not have yet. Columns already in the sheet are never recomputed.
package merge

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"stockmatrix/internal/indicator"
	"stockmatrix/internal/matrix"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// Merger computes and stages new indicator columns. It never saves; the
// caller persists the workbook once after all merges of a run.
type Merger struct {
	workers int
	logger  *slog.Logger
}

// New returns a Merger that evaluates up to workers symbols at once.
func New(workers int, logger *slog.Logger) *Merger {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{workers: workers, logger: logger.With(slog.String("component", "merge"))}
}

// Plan is the outcome of comparing a source header with a derived sheet.
type Plan struct {
	Eligible    []string
	NewDates    []string
	FullRebuild bool
}

// PlanDates returns the dates spec still has to write to its sheet.
func PlanDates(wb *workbook.Workbook, source *matrix.TimeMatrix, spec indicator.Spec) (Plan, error) {
	dated := source.Dated()
	var plan Plan
	for i := spec.Calculator.Offset(); i < len(dated); i++ {
		if i >= 0 {
			plan.Eligible = append(plan.Eligible, dated[i].Label)
		}
	}

	existing := map[string]struct{}{}
	if wb.HasSheet(spec.Sheet) {
		h, err := wb.LoadHeader(spec.Sheet)
		if err != nil {
			return plan, err
		}
		for _, label := range matrix.FromHeader(h.Cells).Labels() {
			existing[label] = struct{}{}
		}
	} else {
		plan.FullRebuild = true
	}

	for _, d := range plan.Eligible {
		if _, ok := existing[d]; !ok {
			plan.NewDates = append(plan.NewDates, d)
		}
	}
	return plan, nil
}

// Merge appends spec's missing dates to its sheet, creating the sheet from
// the source rows when it does not exist.
func (m *Merger) Merge(ctx context.Context, wb *workbook.Workbook, source *matrix.TimeMatrix, spec indicator.Spec) (domain.UpdateReport, error) {
	report := domain.UpdateReport{
		Indicator:      string(spec.Kind),
		Sheet:          spec.Sheet,
		FormulaVersion: spec.FormulaVersion,
		AddedDates:     []string{},
	}

	plan, err := PlanDates(wb, source, spec)
	if err != nil {
		return report, fmt.Errorf("plan %s: %w", spec.Sheet, err)
	}
	report.FullRebuild = plan.FullRebuild

	rows := keyedRows(source)
	report.SymbolCount = len(rows)

	if len(plan.NewDates) == 0 {
		report.Status = domain.StatusUpToDate
		m.logger.InfoContext(ctx, "indicator up to date",
			slog.String("indicator", report.Indicator),
			slog.String("sheet", spec.Sheet),
			slog.Int("symbols", report.SymbolCount))
		return report, nil
	}

	block, err := m.compute(ctx, source, rows, spec.Calculator, plan.NewDates)
	if err != nil {
		return report, err
	}

	if plan.FullRebuild {
		if err := wb.CreateMatrix(spec.Sheet, block); err != nil {
			return report, fmt.Errorf("create %s: %w", spec.Sheet, err)
		}
		report.Status = domain.StatusCreated
	} else {
		stats, err := wb.AppendColumns(spec.Sheet, block)
		if err != nil {
			return report, fmt.Errorf("append to %s: %w", spec.Sheet, err)
		}
		report.NewSymbols = stats.NewRows
		report.Status = domain.StatusUpdated
	}

	report.AddedDates = plan.NewDates
	report.AddedDateCount = len(plan.NewDates)

	m.logger.InfoContext(ctx, "indicator merged",
		slog.String("indicator", report.Indicator),
		slog.String("sheet", spec.Sheet),
		slog.String("status", report.Status),
		slog.Int("added_dates", report.AddedDateCount),
		slog.Int("symbols", report.SymbolCount),
		slog.Int("new_symbols", report.NewSymbols))
	return report, nil
}

func keyedRows(source *matrix.TimeMatrix) []matrix.Row {
	rows := make([]matrix.Row, 0, len(source.Rows))
	for _, r := range source.Rows {
		if r.Key == "" {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

// compute evaluates calc at every new date for every row. Rows fan out
// over a bounded group and land in their own slot, keeping source order.
func (m *Merger) compute(ctx context.Context, source *matrix.TimeMatrix, rows []matrix.Row, calc indicator.Calculator, dates []string) (*matrix.TimeMatrix, error) {
	dated := source.Dated()
	position := make(map[string]int, len(dated))
	for i, d := range dated {
		position[d.Label] = i
	}

	out := make([]matrix.Row, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := rows[i]
			cells := make([]matrix.CellValue, len(dated))
			for j, d := range dated {
				cells[j] = row.Value(d.Index)
			}
			series := indicator.NewSeries(cells)

			values := make([]matrix.CellValue, len(dates))
			for j, date := range dates {
				idx, ok := position[date]
				if !ok {
					continue
				}
				if res := calc.Compute(series, idx); res.Defined {
					values[j] = matrix.Number(res.Value)
				}
			}
			out[i] = matrix.Row{Key: row.Key, Name: row.Name, Values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute indicator: %w", err)
	}

	block := matrix.New(dates)
	block.Rows = out
	return block, nil
}
