package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockmatrix/internal/config"
	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
	"stockmatrix/internal/shared/testutil"
	"stockmatrix/internal/workbook"
	"stockmatrix/pkg/contracts/domain"
)

type fakeStore struct {
	sheets  map[string]*matrix.TimeMatrix
	order   []string
	symbols []domain.Symbol
	err     error
	paths   []string
}

func newFakeStore() *fakeStore {
	z := matrix.New([]string{"20240101", "20240102", "20240103"})
	row := z.AddRow("SAM", "Samsung")
	row.Values[0] = matrix.Number(0.5)
	row.Values[2] = matrix.Number(-1.25)
	row = z.AddRow("HYN", "Hynix")
	row.Values[1] = matrix.Number(2)

	return &fakeStore{
		sheets:  map[string]*matrix.TimeMatrix{"z 20": z},
		order:   []string{"catalog", "z 20"},
		symbols: []domain.Symbol{{Key: "SAM", Name: "Samsung"}, {Key: "HYN", Name: "Hynix"}},
	}
}

func (f *fakeStore) Sheets(_ context.Context, storePath string) ([]string, error) {
	f.paths = append(f.paths, storePath)
	return f.order, f.err
}

func (f *fakeStore) Matrix(_ context.Context, _ string, sheet string) (*matrix.TimeMatrix, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.sheets[sheet]
	if !ok {
		return nil, apperrors.NewMissingSheetError(sheet)
	}
	return m, nil
}

func (f *fakeStore) Header(ctx context.Context, storePath, sheet string) (*workbook.Header, error) {
	m, err := f.Matrix(ctx, storePath, sheet)
	if err != nil {
		return nil, err
	}
	h := &workbook.Header{Cells: m.Header, Labels: m.HeaderText()}
	for _, r := range m.Rows {
		h.Keys = append(h.Keys, r.Key)
	}
	return h, nil
}

func (f *fakeStore) Symbols(context.Context, string) ([]domain.Symbol, error) {
	return f.symbols, f.err
}

type fakeLedger struct {
	runs      []domain.RunRecord
	columns   []domain.ColumnRecord
	lastLimit int
}

func (f *fakeLedger) Runs(_ context.Context, limit int) ([]domain.RunRecord, error) {
	f.lastLimit = limit
	return f.runs, nil
}

func (f *fakeLedger) Columns(_ context.Context, sheet string) ([]domain.ColumnRecord, error) {
	var out []domain.ColumnRecord
	for _, c := range f.columns {
		if c.Sheet == sheet {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestRouter(t *testing.T, store StoreReader, ledger LedgerReader) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	opts := RouterOptions{
		Store:     store,
		StorePath: "data/store.xlsx",
		Logger:    logger,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("matrix_merge_total 1\n"))
		}),
	}
	if ledger != nil {
		opts.Ledger = ledger
	}
	return NewRouter(opts)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthz(t *testing.T) {
	store := newFakeStore()
	rec := get(t, newTestRouter(t, store, nil), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Store.Readable)
	assert.Equal(t, 2, resp.Store.Sheets)
	assert.Equal(t, []string{"data/store.xlsx"}, store.paths)
}

func TestHealthz_StoreMissing(t *testing.T) {
	store := newFakeStore()
	store.err = apperrors.NewMissingStoreError("data/store.xlsx", nil)
	rec := get(t, newTestRouter(t, store, nil), "/healthz")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "unavailable", resp.Status)
	assert.False(t, resp.Store.Readable)
	assert.Contains(t, resp.Store.Error, "does not exist")
}

func TestListSheets(t *testing.T) {
	rec := get(t, newTestRouter(t, newFakeStore(), nil), "/api/v1/sheets")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sheets []domain.SheetSummary `json:"sheets"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, []domain.SheetSummary{{Name: "catalog"}, {Name: "z 20"}}, resp.Sheets)
}

func TestGetSheet(t *testing.T) {
	h := newTestRouter(t, newFakeStore(), nil)

	tests := []struct {
		name       string
		path       string
		wantHeader []string
		wantRows   int
		wantFirst  []interface{}
	}{
		{
			name:       "full sheet",
			path:       "/api/v1/sheets/z%2020",
			wantHeader: []string{"20240101", "20240102", "20240103"},
			wantRows:   2,
			wantFirst:  []interface{}{0.5, nil, -1.25},
		},
		{
			name:       "last two dates",
			path:       "/api/v1/sheets/z%2020?last=2",
			wantHeader: []string{"20240102", "20240103"},
			wantRows:   2,
			wantFirst:  []interface{}{nil, -1.25},
		},
		{
			name:       "single symbol",
			path:       "/api/v1/sheets/z%2020?symbol=HYN",
			wantHeader: []string{"20240101", "20240102", "20240103"},
			wantRows:   1,
			wantFirst:  []interface{}{nil, 2.0, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var view domain.SheetView
			decode(t, rec, &view)
			assert.Equal(t, "z 20", view.Sheet)
			assert.Equal(t, tt.wantHeader, view.Header)
			require.Len(t, view.Rows, tt.wantRows)
			assert.Equal(t, tt.wantFirst, view.Rows[0].Values)
		})
	}
}

func TestGetSheet_Errors(t *testing.T) {
	h := newTestRouter(t, newFakeStore(), nil)

	tests := []struct {
		name     string
		path     string
		status   int
		wantCode string
	}{
		{"missing sheet", "/api/v1/sheets/nope", http.StatusNotFound, "MISSING_SHEET"},
		{"bad last", "/api/v1/sheets/z%2020?last=zero", http.StatusBadRequest, "VALIDATION"},
		{"negative last", "/api/v1/sheets/z%2020?last=-1", http.StatusBadRequest, "VALIDATION"},
		{"unknown symbol", "/api/v1/sheets/z%2020?symbol=XYZ", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)

			var problem map[string]interface{}
			decode(t, rec, &problem)
			assert.Equal(t, tt.wantCode, problem["error_code"])
			assert.NotEmpty(t, problem["trace_id"])
		})
	}
}

func TestGetHeader(t *testing.T) {
	rec := get(t, newTestRouter(t, newFakeStore(), nil), "/api/v1/sheets/z%2020/header")

	require.Equal(t, http.StatusOK, rec.Code)
	var view domain.HeaderView
	decode(t, rec, &view)
	assert.Equal(t, []string{"SAM", "HYN"}, view.Keys)
	assert.Equal(t, "20240103", view.Latest)
}

func TestListSymbols(t *testing.T) {
	rec := get(t, newTestRouter(t, newFakeStore(), nil), "/api/v1/symbols")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Symbols []domain.Symbol `json:"symbols"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Symbols, 2)
}

func TestLedgerRoutes(t *testing.T) {
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{
		runs: []domain.RunRecord{{RunID: "r1", Operation: "compute", Status: "succeeded", StartedAt: now}},
		columns: []domain.ColumnRecord{
			{Sheet: "z 20", Date: "20240103", FormulaVersion: "z20/v1", RunID: "r1", WrittenAt: now},
			{Sheet: "gap", Date: "20240103", FormulaVersion: "gap/v1", RunID: "r1", WrittenAt: now},
		},
	}
	h := newTestRouter(t, newFakeStore(), ledger)

	rec := get(t, h, "/api/v1/runs?limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	decode(t, rec, &runs)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "r1", runs.Runs[0].RunID)
	assert.Equal(t, maxRunLimit, ledger.lastLimit)

	rec = get(t, h, "/api/v1/sheets/z%2020/provenance")
	require.Equal(t, http.StatusOK, rec.Code)
	var prov struct {
		Sheet   string                `json:"sheet"`
		Columns []domain.ColumnRecord `json:"columns"`
	}
	decode(t, rec, &prov)
	assert.Equal(t, "z 20", prov.Sheet)
	require.Len(t, prov.Columns, 1)
	assert.Equal(t, "z20/v1", prov.Columns[0].FormulaVersion)
}

func TestLedgerRoutes_Disabled(t *testing.T) {
	h := newTestRouter(t, newFakeStore(), nil)

	for _, path := range []string{"/api/v1/runs", "/api/v1/sheets/z%2020/provenance"} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRouter_MetricsAndFallbacks(t *testing.T) {
	h := newTestRouter(t, newFakeStore(), nil)

	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "matrix_merge_total")

	rec = get(t, h, "/api/v1/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sheets", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get(t, h, "/api/v1/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "store_layout")
}

func TestRouter_RateLimited(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewRouter(RouterOptions{
		Store:     newFakeStore(),
		Logger:    logger,
		RateLimit: config.RateLimitConfig{Enabled: true, RPS: 0.01, Burst: 1},
	})

	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/sheets").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/v1/sheets").Code)
	// health checks bypass the limiter
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}
