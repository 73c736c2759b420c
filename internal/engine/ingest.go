package engine

import (
	"context"
	"fmt"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// Ingest appends observation batches to the sheet of a source field
// ("close", "volume", ...). The store and the sheet are created on first use.
func (e *Engine) Ingest(ctx context.Context, storePath, field string, batches []domain.ObservationBatch) (report domain.IngestReport, err error) {
	sheet, ok := e.cfg.SourceSheet(field)
	if !ok {
		return domain.IngestReport{}, apperrors.NewAppValidationError(
			fmt.Sprintf("no sheet configured for field %q", field)).
			WithContext("fields", e.cfg.SourceFields())
	}
	store := e.storePath(storePath)

	ctx, r := e.begin(ctx, OpIngest, store)
	defer func() {
		e.finish(ctx, r, fmt.Sprintf("%s:+%d dates,+%d symbols", sheet, len(report.AddedDates), report.NewSymbols), err)
	}()

	wb, err := workbook.OpenOrCreate(store, e.workbookOptions())
	if err != nil {
		return domain.IngestReport{}, err
	}
	defer wb.Close()

	report, err = e.ingester.Apply(ctx, wb, field, sheet, batches)
	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if wb.Dirty() && len(wb.Sheets()) > 0 {
		if err := wb.Save(); err != nil {
			return report, err
		}
	}
	return report, nil
}
