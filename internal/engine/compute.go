package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/indicator"
	"stockmatrix/internal/infrastructure"
	"stockmatrix/internal/matrix"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// ComputeIndicator extends the sheet of one indicator kind ("z20", "gap", ...).
func (e *Engine) ComputeIndicator(ctx context.Context, storePath, kind string) (domain.UpdateReport, error) {
	spec, ok := indicator.Lookup(e.specs, kind)
	if !ok {
		return domain.UpdateReport{}, apperrors.NewAppValidationError(
			fmt.Sprintf("unknown indicator %q", kind)).
			WithContext("known", indicator.Kinds(e.specs))
	}
	reports, err := e.compute(ctx, storePath, []indicator.Spec{spec})
	if len(reports) == 0 {
		return domain.UpdateReport{}, err
	}
	return reports[0], err
}

// ComputeAll extends every indicator sheet in one pass and one save.
// Each source sheet is read once however many indicators use it.
func (e *Engine) ComputeAll(ctx context.Context, storePath string) ([]domain.UpdateReport, error) {
	return e.compute(ctx, storePath, e.specs)
}

func (e *Engine) compute(ctx context.Context, storePath string, specs []indicator.Spec) (reports []domain.UpdateReport, err error) {
	store := e.storePath(storePath)
	ctx, r := e.begin(ctx, OpCompute, store)
	defer func() {
		var parts []string
		for _, rep := range reports {
			parts = append(parts, fmt.Sprintf("%s:%s(+%d)", rep.Indicator, rep.Status, rep.AddedDateCount))
		}
		e.finish(ctx, r, summarize(parts), err)
	}()

	wb, err := workbook.Open(store, e.workbookOptions())
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	// source sheets are loaded once and shared between indicators
	sources := map[string]*matrix.TimeMatrix{}
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := e.computeOne(ctx, wb, spec, sources)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	if err := ctx.Err(); err != nil {
		return reports, err
	}
	if wb.Dirty() {
		if err := wb.Save(); err != nil {
			return reports, err
		}
	}

	// provenance only after the store is written
	for _, rep := range reports {
		e.telemetry.Metrics.RecordMerge(ctx, rep.Indicator, rep.Sheet, rep.Status, rep.AddedDateCount)
		if rep.Changed() && e.recorder != nil {
			e.ledgerWarn(ctx, "record columns",
				e.recorder.RecordColumns(ctx, r.id, rep.Sheet, rep.FormulaVersion, rep.AddedDates))
		}
	}
	return reports, nil
}

func (e *Engine) computeOne(ctx context.Context, wb *workbook.Workbook, spec indicator.Spec, sources map[string]*matrix.TimeMatrix) (domain.UpdateReport, error) {
	sheet, ok := e.cfg.SourceSheet(spec.SourceField)
	if !ok || !wb.HasSheet(sheet) {
		e.logger.WarnContext(ctx, "source sheet missing, indicator skipped",
			slog.String("indicator", string(spec.Kind)),
			slog.String("source", sheet))
		return domain.UpdateReport{
			Indicator:      string(spec.Kind),
			Sheet:          spec.Sheet,
			SourceSheet:    sheet,
			FormulaVersion: spec.FormulaVersion,
			Status:         domain.StatusNoSource,
			AddedDates:     []string{},
		}, nil
	}

	source, ok := sources[sheet]
	if !ok {
		var err error
		source, err = wb.LoadMatrix(sheet)
		if err != nil {
			return domain.UpdateReport{}, fmt.Errorf("load source %s: %w", sheet, err)
		}
		sources[sheet] = source
	}

	report, err := e.merger.Merge(ctx, wb, source, spec)
	report.SourceSheet = sheet
	if err != nil {
		return report, err
	}
	infrastructure.SetSpanAttributes(ctx,
		attribute.Int(string(spec.Kind)+".added_dates", report.AddedDateCount))
	return report, nil
}
