package engine

import (
	"context"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/ingest"
	"stockmatrix/internal/matrix"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// Sheets lists the sheets of the store.
func (e *Engine) Sheets(ctx context.Context, storePath string) ([]string, error) {
	wb, err := workbook.Open(e.storePath(storePath), e.workbookOptions())
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Sheets(), ctx.Err()
}

// Matrix loads one sheet of the store.
func (e *Engine) Matrix(ctx context.Context, storePath, sheet string) (*matrix.TimeMatrix, error) {
	wb, err := workbook.Open(e.storePath(storePath), e.workbookOptions())
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	if !wb.HasSheet(sheet) {
		return nil, apperrors.NewMissingSheetError(sheet)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wb.LoadMatrix(sheet)
}

// Header loads the date labels and symbol keys of one sheet.
func (e *Engine) Header(ctx context.Context, storePath, sheet string) (*workbook.Header, error) {
	wb, err := workbook.Open(e.storePath(storePath), e.workbookOptions())
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	if !wb.HasSheet(sheet) {
		return nil, apperrors.NewMissingSheetError(sheet)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wb.LoadHeader(sheet)
}

// Symbols reads the symbol catalog sheet.
func (e *Engine) Symbols(ctx context.Context, storePath string) ([]domain.Symbol, error) {
	wb, err := workbook.Open(e.storePath(storePath), e.workbookOptions())
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ingest.LoadCatalog(wb, e.cfg.Store.CatalogSheet)
}
