package http

import (
	"context"

	"stockmatrix/internal/matrix"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

// StoreReader is the read side of the engine. An empty storePath selects
// the configured store.
type StoreReader interface {
	Sheets(ctx context.Context, storePath string) ([]string, error)
	Matrix(ctx context.Context, storePath, sheet string) (*matrix.TimeMatrix, error)
	Header(ctx context.Context, storePath, sheet string) (*workbook.Header, error)
	Symbols(ctx context.Context, storePath string) ([]domain.Symbol, error)
}

// LedgerReader exposes the run history. It is optional.
type LedgerReader interface {
	Runs(ctx context.Context, limit int) ([]domain.RunRecord, error)
	Columns(ctx context.Context, sheet string) ([]domain.ColumnRecord, error)
}
