// Package rollback removes date columns across sheets. Deletions are only
// staged on the workbook; the caller saves once, so a failure before the
// save leaves the store as it was.
package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// Rollback performs latest-date and date-range deletions.
type Rollback struct {
	logger *slog.Logger
}

// New creates a Rollback.
func New(logger *slog.Logger) *Rollback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rollback{logger: logger.With(slog.String("component", "rollback"))}
}

// LatestDate returns the greatest 8-digit date found in a sheet's header.
// Digits are pulled out of each cell, so "2025-01-03" counts as 20250103
// and a date cell counts by its YYYYMMDD rendering.
func LatestDate(wb *workbook.Workbook, sheet string) (string, bool, error) {
	cells, err := wb.HeaderCells(sheet)
	if err != nil {
		return "", false, err
	}
	best, bestVal := "", -1
	for _, c := range cells {
		d, ok := matrix.DigitLabel(c.String())
		if !ok {
			continue
		}
		if v := matrix.LabelValue(d); v > bestVal {
			best, bestVal = d, v
		}
	}
	return best, bestVal >= 0, nil
}

// DeleteLatest deletes the newest date column from every listed sheet,
// provided all sheets that have a date agree on which one is newest.
// On disagreement nothing is staged and the result carries every
// sheet's observed date.
func (r *Rollback) DeleteLatest(ctx context.Context, wb *workbook.Workbook, sheets []string) (domain.RollbackResult, error) {
	result := domain.RollbackResult{Observed: map[string]string{}, DeletedSheets: []string{}}

	var present []string
	for _, s := range sheets {
		if wb.HasSheet(s) {
			present = append(present, s)
			continue
		}
		result.Missing = append(result.Missing, s)
		r.logger.InfoContext(ctx, "sheet not in store, skipping", slog.String("sheet", s))
	}
	if len(present) == 0 {
		return result, apperrors.NewNoResolvableDatesError("none of the rollback sheets exist")
	}

	dates := map[string]struct{}{}
	var dated []string
	for _, s := range present {
		latest, ok, err := LatestDate(wb, s)
		if err != nil {
			return result, fmt.Errorf("read header of %s: %w", s, err)
		}
		if !ok {
			result.Skipped = append(result.Skipped, s)
			r.logger.WarnContext(ctx, "sheet has no date header, skipping", slog.String("sheet", s))
			continue
		}
		result.Observed[s] = latest
		dates[latest] = struct{}{}
		dated = append(dated, s)
	}

	if len(dated) == 0 {
		return result, apperrors.NewNoResolvableDatesError("no sheet has a date header")
	}
	if len(dates) > 1 {
		r.logger.ErrorContext(ctx, "sheets disagree on latest date", slog.Any("observed", result.Observed))
		return result, apperrors.NewSheetsDisagreeError(result.Observed)
	}

	target := result.Observed[dated[0]]
	for _, s := range dated {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		deleted, err := wb.DeleteColumnByDate(s, target)
		if err != nil {
			return result, fmt.Errorf("delete %s from %s: %w", target, s, err)
		}
		if deleted {
			result.DeletedSheets = append(result.DeletedSheets, s)
		}
	}

	if len(result.DeletedSheets) == 0 {
		return result, apperrors.NewNoResolvableDatesError(fmt.Sprintf("no sheet had a %s column", target))
	}
	result.DeletedDate = target

	r.logger.InfoContext(ctx, "latest date staged for deletion",
		slog.String("date", target),
		slog.Int("sheets", len(result.DeletedSheets)))
	return result, nil
}

// DeleteRange deletes every column whose header parses to a day in
// [start, end] from all sheets except excluded. Sheets need not agree.
func (r *Rollback) DeleteRange(ctx context.Context, wb *workbook.Workbook, start, end time.Time, excluded []string) (domain.RangeResult, error) {
	start, end = day(start), day(end)
	result := domain.RangeResult{
		Start:    matrix.FormatLabel(start),
		End:      matrix.FormatLabel(end),
		PerSheet: map[string]int{},
	}
	if start.After(end) {
		return result, apperrors.NewAppValidationError(fmt.Sprintf("start %s is after end %s", result.Start, result.End))
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, s := range excluded {
		skip[s] = struct{}{}
	}

	for _, sheet := range wb.Sheets() {
		if _, ok := skip[sheet]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		cells, err := wb.HeaderCells(sheet)
		if err != nil {
			return result, fmt.Errorf("read header of %s: %w", sheet, err)
		}

		var cols []int
		for i, c := range cells {
			t, ok := matrix.HeaderDate(c)
			if !ok {
				continue
			}
			if !t.Before(start) && !t.After(end) {
				cols = append(cols, matrix.FirstDataColumn+i)
			}
		}

		// right to left so earlier positions stay valid
		sort.Sort(sort.Reverse(sort.IntSlice(cols)))
		for _, col := range cols {
			if err := wb.DeleteColumnAt(sheet, col); err != nil {
				return result, fmt.Errorf("delete column %d of %s: %w", col, sheet, err)
			}
		}

		result.PerSheet[sheet] = len(cols)
		result.Total += len(cols)
		if len(cols) > 0 {
			r.logger.InfoContext(ctx, "range columns staged for deletion",
				slog.String("sheet", sheet), slog.Int("columns", len(cols)))
		}
	}
	return result, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
