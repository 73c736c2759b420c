package engine

import (
	"context"
	"errors"
	"time"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// RollbackLatest deletes the newest date column from sheets, or from the
// configured latest-sheets list when sheets is empty. The sheets must agree
// on the newest date; on disagreement the store is untouched and the
// result carries each sheet's observed date.
func (e *Engine) RollbackLatest(ctx context.Context, storePath string, sheets []string) (result domain.RollbackResult, err error) {
	store := e.storePath(storePath)
	if len(sheets) == 0 {
		sheets = e.cfg.Rollback.LatestSheets
	}

	ctx, r := e.begin(ctx, OpRollbackLatest, store)
	defer func() {
		e.telemetry.Metrics.RecordRollback(ctx, "latest", rollbackStatus(err))
		e.finish(ctx, r, result.DeletedDate, err)
	}()

	wb, err := workbook.Open(store, e.workbookOptions())
	if err != nil {
		return domain.RollbackResult{}, err
	}
	defer wb.Close()

	result, err = e.rollback.DeleteLatest(ctx, wb, sheets)
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := wb.Save(); err != nil {
		return result, err
	}

	if e.recorder != nil {
		for _, s := range result.DeletedSheets {
			_, lerr := e.recorder.ForgetColumns(ctx, s, []string{result.DeletedDate})
			e.ledgerWarn(ctx, "forget columns", lerr)
		}
	}
	return result, nil
}

// RollbackRange deletes every column dated within [start, end] from all
// sheets except excluded, or the configured exclusions when excluded is nil.
func (e *Engine) RollbackRange(ctx context.Context, storePath string, start, end time.Time, excluded []string) (result domain.RangeResult, err error) {
	store := e.storePath(storePath)
	if excluded == nil {
		excluded = e.cfg.Rollback.RangeExcluded
	}

	ctx, r := e.begin(ctx, OpRollbackRange, store)
	defer func() {
		e.telemetry.Metrics.RecordRollback(ctx, "range", rollbackStatus(err))
		e.finish(ctx, r, countDetail("deleted", result.Total), err)
	}()

	wb, err := workbook.Open(store, e.workbookOptions())
	if err != nil {
		return domain.RangeResult{}, err
	}
	defer wb.Close()

	result, err = e.rollback.DeleteRange(ctx, wb, start, end, excluded)
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if result.Total > 0 {
		if err := wb.Save(); err != nil {
			return result, err
		}
	}

	if e.recorder != nil {
		for sheet, n := range result.PerSheet {
			if n == 0 {
				continue
			}
			_, lerr := e.recorder.ForgetRange(ctx, sheet, result.Start, result.End)
			e.ledgerWarn(ctx, "forget range", lerr)
		}
	}
	return result, nil
}

func rollbackStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrSheetsDisagree):
		return "disagree"
	case errors.Is(err, apperrors.ErrNoResolvableDates):
		return "nothing_to_delete"
	default:
		return "failure"
	}
}
