package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockmatrix/internal/config"
	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/ledger"
	"stockmatrix/internal/matrix"
	"stockmatrix/internal/shared/testutil"
	"stockmatrix/pkg/contracts/domain"
)

func labels(n int) []string {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := range out {
		out[i] = matrix.FormatLabel(start.AddDate(0, 0, i))
	}
	return out
}

func priceSheet(name string, n int) testutil.Sheet {
	header := []interface{}{"display name", "symbol key"}
	samsung := []interface{}{"Samsung", "005930"}
	hynix := []interface{}{"Hynix", "000660"}
	for i, l := range labels(n) {
		header = append(header, l)
		samsung = append(samsung, 100)
		hynix = append(hynix, 100+i)
	}
	return testutil.Sheet{Name: name, Rows: [][]interface{}{header, samsung, hynix}}
}

func newStore(t *testing.T, sheets ...testutil.Sheet) string {
	t.Helper()
	return testutil.WriteWorkbook(t, t.TempDir(), "store.xlsx", sheets...)
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *testutil.CaptureHandler) {
	t.Helper()
	logger, capture := testutil.NewTestLogger(t)
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "default.xlsx")
	return New(cfg, append([]Option{WithLogger(logger)}, opts...)...), capture
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func byIndicator(reports []domain.UpdateReport) map[string]domain.UpdateReport {
	out := map[string]domain.UpdateReport{}
	for _, r := range reports {
		out[r.Indicator] = r
	}
	return out
}

type fakeRecorder struct {
	mu        sync.Mutex
	began     []string
	finished  map[string]string
	columns   map[string][]string
	versions  map[string]string
	forgotten map[string][]string
	ranges    map[string][2]string
	failAll   bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		finished:  map[string]string{},
		columns:   map[string][]string{},
		versions:  map[string]string{},
		forgotten: map[string][]string{},
		ranges:    map[string][2]string{},
	}
}

var errLedgerDown = errors.New("ledger down")

func (f *fakeRecorder) BeginRun(_ context.Context, runID, op, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errLedgerDown
	}
	f.began = append(f.began, op)
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, runID, status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errLedgerDown
	}
	f.finished[runID] = status
	return nil
}

func (f *fakeRecorder) RecordColumns(_ context.Context, _, sheet, version string, dates []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errLedgerDown
	}
	f.columns[sheet] = append(f.columns[sheet], dates...)
	f.versions[sheet] = version
	return nil
}

func (f *fakeRecorder) ForgetColumns(_ context.Context, sheet string, dates []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten[sheet] = append(f.forgotten[sheet], dates...)
	return len(dates), nil
}

func (f *fakeRecorder) ForgetRange(_ context.Context, sheet, start, end string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges[sheet] = [2]string{start, end}
	return 1, nil
}

func TestComputeAll_CreatesEligibleSheets(t *testing.T) {
	path := newStore(t, priceSheet("close", 25))
	rec := newFakeRecorder()
	e, _ := newEngine(t, WithRecorder(rec))

	reports, err := e.ComputeAll(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, reports, 6)

	got := byIndicator(reports)
	assert.Equal(t, domain.StatusCreated, got["z20"].Status)
	assert.Equal(t, labels(25)[19:], got["z20"].AddedDates)
	assert.Equal(t, "close", got["z20"].SourceSheet)
	assert.Equal(t, domain.StatusCreated, got["gap"].Status)
	assert.Equal(t, 6, got["gap"].AddedDateCount)

	// not enough history yet
	assert.Equal(t, domain.StatusUpToDate, got["z60"].Status)
	assert.Equal(t, domain.StatusUpToDate, got["z120"].Status)
	assert.Equal(t, domain.StatusUpToDate, got["std"].Status)
	// no volume sheet at all
	assert.Equal(t, domain.StatusNoSource, got["quant"].Status)

	assert.ElementsMatch(t, []string{"close", "z20", "gap"}, testutil.SheetNames(t, path))

	rows := testutil.ReadRows(t, path, "z20")
	assert.Equal(t, append([]string{"display name", "symbol key"}, labels(25)[19:]...), rows[0])
	assert.Equal(t, []string{"Samsung", "005930", "0", "0", "0", "0", "0", "0"}, rows[1])

	assert.Equal(t, labels(25)[19:], rec.columns["z20"])
	assert.Equal(t, "zscore.v1(window=20)", rec.versions["z20"])
	assert.Equal(t, []string{OpCompute}, rec.began)
	for _, status := range rec.finished {
		assert.Equal(t, "succeeded", status)
	}
}

func TestComputeAll_RerunIsByteIdentical(t *testing.T) {
	path := newStore(t, priceSheet("close", 25), priceSheet("volume", 65))
	e, _ := newEngine(t)

	_, err := e.ComputeAll(context.Background(), path)
	require.NoError(t, err)
	first := readFile(t, path)
	info, err := os.Stat(path)
	require.NoError(t, err)

	reports, err := e.ComputeAll(context.Background(), path)
	require.NoError(t, err)
	for _, r := range reports {
		assert.False(t, r.Changed(), r.Indicator)
	}

	assert.Equal(t, first, readFile(t, path))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "no save at all")
}

func TestComputeIndicator(t *testing.T) {
	path := newStore(t, priceSheet("close", 22), priceSheet("volume", 61))
	e, _ := newEngine(t)

	report, err := e.ComputeIndicator(context.Background(), path, "QUANT")
	require.NoError(t, err)
	assert.Equal(t, "quant", report.Indicator)
	assert.Equal(t, "volume", report.SourceSheet)
	assert.Equal(t, domain.StatusCreated, report.Status)
	assert.Equal(t, 2, report.AddedDateCount)
	assert.NotContains(t, testutil.SheetNames(t, path), "z20")
}

func TestComputeIndicator_Unknown(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.ComputeIndicator(context.Background(), "", "rsi14")

	typ, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeValidation, typ)
}

func TestCompute_MissingStoreUsesConfiguredPath(t *testing.T) {
	rec := newFakeRecorder()
	e, capture := newEngine(t, WithRecorder(rec))

	_, err := e.ComputeAll(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrMissingStore)
	assert.Contains(t, err.Error(), "default.xlsx")

	_, found := capture.Find("operation failed")
	assert.True(t, found)
	for _, status := range rec.finished {
		assert.Equal(t, "failed", status)
	}
}

func TestCompute_CancelledContextLeavesStore(t *testing.T) {
	path := newStore(t, priceSheet("close", 25))
	before := readFile(t, path)
	e, _ := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ComputeAll(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, readFile(t, path))
}

func TestCompute_LedgerFailureIsAdvisory(t *testing.T) {
	path := newStore(t, priceSheet("close", 21))
	rec := newFakeRecorder()
	rec.failAll = true
	e, capture := newEngine(t, WithRecorder(rec))

	report, err := e.ComputeIndicator(context.Background(), path, "gap")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, report.Status)
	assert.Positive(t, capture.Count(slog.LevelWarn))
}

func TestRollbackLatest_AfterCompute(t *testing.T) {
	path := newStore(t, priceSheet("close", 25))
	rec := newFakeRecorder()
	e, _ := newEngine(t, WithRecorder(rec))
	ctx := context.Background()

	_, err := e.ComputeAll(ctx, path)
	require.NoError(t, err)

	result, err := e.RollbackLatest(ctx, path, nil)
	require.NoError(t, err)

	last := labels(25)[24]
	assert.Equal(t, last, result.DeletedDate)
	assert.ElementsMatch(t, []string{"close", "z20", "gap"}, result.DeletedSheets)
	assert.ElementsMatch(t, []string{"volume", "index", "z60", "z120", "quant", "std"}, result.Missing)
	assert.Equal(t, []string{last}, rec.forgotten["z20"])

	rows := testutil.ReadRows(t, path, "close")
	assert.Len(t, rows[0], 2+24)

	// derived sheets stay in step with the source
	reports, err := e.ComputeAll(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUpToDate, byIndicator(reports)["z20"].Status)
}

func TestRollbackLatest_DisagreementWritesNothing(t *testing.T) {
	path := newStore(t, priceSheet("close", 25), priceSheet("volume", 24))
	before := readFile(t, path)
	e, _ := newEngine(t)

	result, err := e.RollbackLatest(context.Background(), path, []string{"close", "volume"})
	require.ErrorIs(t, err, apperrors.ErrSheetsDisagree)
	assert.Equal(t, map[string]string{"close": labels(25)[24], "volume": labels(24)[23]}, result.Observed)
	assert.Empty(t, result.DeletedDate)
	assert.Equal(t, before, readFile(t, path))
}

func TestRollbackLatest_NothingResolvable(t *testing.T) {
	path := newStore(t, testutil.Sheet{Name: "catalog", Rows: [][]interface{}{{"name", "code"}, {"Samsung", "005930"}}})
	e, _ := newEngine(t)

	_, err := e.RollbackLatest(context.Background(), path, []string{"catalog", "close"})
	assert.ErrorIs(t, err, apperrors.ErrNoResolvableDates)
}

func TestRollbackRange(t *testing.T) {
	path := newStore(t,
		priceSheet("close", 10),
		priceSheet("volume", 10),
		testutil.Sheet{Name: "catalog", Rows: [][]interface{}{{"name", "20250103"}, {"Samsung", "005930"}}},
	)
	rec := newFakeRecorder()
	e, _ := newEngine(t, WithRecorder(rec))

	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	result, err := e.RollbackRange(context.Background(), path, start, end, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"close": 3, "volume": 3}, result.PerSheet)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, [2]string{"20250103", "20250105"}, rec.ranges["close"])

	header := testutil.ReadRows(t, path, "close")[0]
	assert.Equal(t, []string{"display name", "symbol key", "20250101", "20250102", "20250106"}, header[:5])
	assert.Equal(t, "20250103", testutil.ReadRows(t, path, "catalog")[0][1], "catalog excluded")
}

func TestRollbackRange_NothingInRangeDoesNotSave(t *testing.T) {
	path := newStore(t, priceSheet("close", 5))
	info, err := os.Stat(path)
	require.NoError(t, err)
	e, _ := newEngine(t)

	result, err := e.RollbackRange(context.Background(), path,
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestIngest_CreatesStoreThenCompute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.xlsx")
	e, _ := newEngine(t)
	ctx := context.Background()

	var observations []domain.Observation
	for i, l := range labels(21) {
		v := float64(100 + i)
		observations = append(observations, domain.Observation{Date: l, Value: &v})
	}
	report, err := e.Ingest(ctx, path, "close", []domain.ObservationBatch{
		{SymbolKey: "000660", SymbolName: "Hynix", Observations: observations},
	})
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.Len(t, report.AddedDates, 21)

	gap, err := e.ComputeIndicator(ctx, path, "gap")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, gap.Status)
	assert.Equal(t, 2, gap.AddedDateCount)
}

func TestIngest_UnknownField(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Ingest(context.Background(), "", "dividend", nil)

	typ, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeValidation, typ)
}

func TestEngine_WithSQLiteLedger(t *testing.T) {
	path := newStore(t, priceSheet("close", 21))
	l, err := ledger.Open(":memory:", nil)
	require.NoError(t, err)
	defer l.Close()

	e, _ := newEngine(t, WithRecorder(l))
	ctx := context.Background()

	_, err = e.ComputeIndicator(ctx, path, "gap")
	require.NoError(t, err)
	_, err = e.RollbackLatest(ctx, path, []string{"close", "gap"})
	require.NoError(t, err)

	cols, err := l.Columns(ctx, "gap")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, labels(21)[19], cols[0].Date)

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, OpRollbackLatest, runs[0].Operation)
	assert.Equal(t, ledger.RunSucceeded, runs[0].Status)
	assert.Equal(t, labels(21)[20], runs[0].Detail)
}

func TestRead(t *testing.T) {
	path := newStore(t, priceSheet("close", 3))
	e, _ := newEngine(t)
	ctx := context.Background()

	sheets, err := e.Sheets(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, sheets)

	m, err := e.Matrix(ctx, path, "close")
	require.NoError(t, err)
	assert.Equal(t, labels(3), m.Labels())
	assert.Len(t, m.Rows, 2)

	h, err := e.Header(ctx, path, "close")
	require.NoError(t, err)
	assert.Equal(t, []string{"005930", "000660"}, h.Keys)

	_, err = e.Matrix(ctx, path, "gap")
	assert.ErrorIs(t, err, apperrors.ErrMissingSheet)
}
