package rollback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/shared/testutil"
	"stockmatrix/internal/workbook"
)

func sheet(name string, dates ...interface{}) testutil.Sheet {
	header := append([]interface{}{"display name", "symbol key"}, dates...)
	row := []interface{}{"Samsung", "005930"}
	for i := range dates {
		row = append(row, i+1)
	}
	return testutil.Sheet{Name: name, Rows: [][]interface{}{header, row}}
}

func openStore(t *testing.T, sheets ...testutil.Sheet) (*workbook.Workbook, string) {
	t.Helper()
	path := testutil.WriteWorkbook(t, t.TempDir(), "store.xlsx", sheets...)
	wb, err := workbook.Open(path, workbook.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })
	return wb, path
}

func TestDeleteLatest_Disagreement(t *testing.T) {
	wb, path := openStore(t,
		sheet("A", "20241231", "20250101"),
		sheet("B", "20250101", "20250102"),
	)
	logger, logs := testutil.NewTestLogger(t)

	result, err := New(logger).DeleteLatest(context.Background(), wb, []string{"A", "B"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSheetsDisagree)
	assert.Equal(t, map[string]string{"A": "20250101", "B": "20250102"}, result.Observed)
	assert.Empty(t, result.DeletedDate)
	assert.False(t, wb.Dirty(), "nothing staged")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, result.Observed, appErr.Context["observed"])

	_, found := logs.Find("disagree")
	assert.True(t, found)

	assert.Len(t, testutil.ReadRows(t, path, "A")[0], 4)
	assert.Len(t, testutil.ReadRows(t, path, "B")[0], 4)
}

func TestDeleteLatest_Agreement(t *testing.T) {
	wb, path := openStore(t,
		sheet("A", "20250101", "20250102", "20250103"),
		sheet("B", "20250103", "20250102"),
		sheet("C", "20250103"),
	)

	result, err := New(nil).DeleteLatest(context.Background(), wb, []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "20250103", result.DeletedDate)
	assert.Equal(t, []string{"A", "B"}, result.DeletedSheets)
	require.NoError(t, wb.Save())

	assert.Equal(t, []string{"display name", "symbol key", "20250101", "20250102"}, testutil.ReadRows(t, path, "A")[0])
	assert.Equal(t, []string{"Samsung", "005930", "1", "2"}, testutil.ReadRows(t, path, "A")[1])
	assert.Equal(t, []string{"display name", "symbol key", "20250102"}, testutil.ReadRows(t, path, "B")[0])
	assert.Equal(t, []string{"Samsung", "005930", "2"}, testutil.ReadRows(t, path, "B")[1])
	assert.Len(t, testutil.ReadRows(t, path, "C")[0], 3, "unlisted sheet untouched")
}

func TestDeleteLatest_SkipsUndatedAndMissing(t *testing.T) {
	wb, _ := openStore(t,
		sheet("A", "2025-01-03"),
		sheet("notes", "memo"),
	)

	result, err := New(nil).DeleteLatest(context.Background(), wb, []string{"A", "notes", "gone"})
	require.NoError(t, err)
	assert.Equal(t, "20250103", result.DeletedDate)
	assert.Equal(t, []string{"notes"}, result.Skipped)
	assert.Equal(t, []string{"gone"}, result.Missing)
	assert.Equal(t, []string{"A"}, result.DeletedSheets)
}

func TestDeleteLatest_NothingResolvable(t *testing.T) {
	tests := []struct {
		name   string
		sheets []string
	}{
		{"no listed sheet exists", []string{"x", "y"}},
		{"no dates anywhere", []string{"notes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb, _ := openStore(t, sheet("notes", "memo"))
			_, err := New(nil).DeleteLatest(context.Background(), wb, tt.sheets)
			assert.ErrorIs(t, err, apperrors.ErrNoResolvableDates)
			assert.False(t, wb.Dirty())
		})
	}
}

func TestLatestDate_NumericNotPositional(t *testing.T) {
	wb, _ := openStore(t, sheet("A", "20250105", "20250103"))

	latest, ok, err := LatestDate(wb, "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20250105", latest)
}

func TestDeleteRange(t *testing.T) {
	wb, path := openStore(t,
		sheet("catalog", "20250102"),
		sheet("close", "20250101", "2025-01-02", 45660, "2025/1/4", "memo"),
		sheet("z20", "20250105"),
	)
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 4, 23, 0, 0, 0, time.UTC)

	result, err := New(nil).DeleteRange(context.Background(), wb, start, end, []string{"catalog"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"close": 3, "z20": 0}, result.PerSheet)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, "20250102", result.Start)
	assert.Equal(t, "20250104", result.End)
	require.NoError(t, wb.Save())

	assert.Equal(t, []string{"display name", "symbol key", "20250101", "memo"}, testutil.ReadRows(t, path, "close")[0])
	assert.Equal(t, []string{"Samsung", "005930", "1", "5"}, testutil.ReadRows(t, path, "close")[1])
	assert.Len(t, testutil.ReadRows(t, path, "catalog")[0], 3, "excluded sheet untouched")
}

func TestDeleteRange_TextSerialIsNotADate(t *testing.T) {
	wb, path := openStore(t,
		sheet("close", "45000", 45000),
	)
	day := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)

	result, err := New(nil).DeleteRange(context.Background(), wb, day, day, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PerSheet["close"], "only the numeric serial matches")
	require.NoError(t, wb.Save())

	assert.Equal(t, []string{"display name", "symbol key", "45000"}, testutil.ReadRows(t, path, "close")[0])
	assert.Equal(t, []string{"Samsung", "005930", "1"}, testutil.ReadRows(t, path, "close")[1])
}

func TestDeleteLatest_DateCells(t *testing.T) {
	jan := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	wb, path := openStore(t,
		sheet("close", jan(2), jan(3)),
		sheet("gap", "20250102", "20250103"),
	)

	result, err := New(nil).DeleteLatest(context.Background(), wb, []string{"close", "gap"})
	require.NoError(t, err)
	assert.Equal(t, "20250103", result.DeletedDate)
	assert.Equal(t, map[string]string{"close": "20250103", "gap": "20250103"}, result.Observed)
	require.NoError(t, wb.Save())

	assert.Len(t, testutil.ReadRows(t, path, "close")[0], 3)
	assert.Len(t, testutil.ReadRows(t, path, "gap")[0], 3)
}

func TestDeleteRange_StartAfterEnd(t *testing.T) {
	wb, _ := openStore(t, sheet("close", "20250101"))

	_, err := New(nil).DeleteRange(context.Background(), wb,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.Error(t, err)
	typ, _ := apperrors.TypeOf(err)
	assert.Equal(t, apperrors.ErrTypeValidation, typ)
}
