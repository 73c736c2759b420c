package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
	"stockmatrix/pkg/contracts/domain"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// StoreHandler serves sheets, the symbol catalog and the run history.
type StoreHandler struct {
	store        StoreReader
	ledger       LedgerReader
	storePath    string
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewStoreHandler creates a store handler. ledger may be nil.
func NewStoreHandler(store StoreReader, ledger LedgerReader, storePath string, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *StoreHandler {
	return &StoreHandler{
		store:        store,
		ledger:       ledger,
		storePath:    storePath,
		logger:       logger.With(slog.String("component", "store_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the /api/v1 routes.
func (h *StoreHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.NotFound(h.errorHandler.NotFound)
	r.MethodNotAllowed(h.errorHandler.MethodNotAllowed)

	r.Get("/version", VersionHandler)
	r.Get("/symbols", h.ListSymbols)
	r.Get("/runs", h.ListRuns)

	r.Route("/sheets", func(r chi.Router) {
		r.Get("/", h.ListSheets)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.GetSheet)
			r.Get("/header", h.GetHeader)
			r.Get("/provenance", h.GetProvenance)
		})
	})
	return r
}

type sheetsResponse struct {
	Sheets []domain.SheetSummary `json:"sheets"`
}

// ListSheets returns the sheet names in store order.
func (h *StoreHandler) ListSheets(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.Sheets(r.Context(), h.storePath)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	resp := sheetsResponse{Sheets: make([]domain.SheetSummary, 0, len(names))}
	for _, n := range names {
		resp.Sheets = append(resp.Sheets, domain.SheetSummary{Name: n})
	}
	render.JSON(w, r, resp)
}

// GetSheet returns the values of one sheet. ?last=N keeps the N latest
// date columns in header order; ?symbol=KEY keeps one row.
func (h *StoreHandler) GetSheet(w http.ResponseWriter, r *http.Request) {
	name, err := sheetParam(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	last, err := intQuery(r, "last", 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	m, err := h.store.Matrix(r.Context(), h.storePath, name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	view := buildSheetView(name, m, last)
	if key := r.URL.Query().Get("symbol"); key != "" {
		row, ok := findRow(view.Rows, key)
		if !ok {
			h.errorHandler.HandleError(w, r, apperrors.NewNotFoundError("symbol "+key).
				WithContext("sheet", name))
			return
		}
		view.Rows = []domain.SheetRow{row}
	}
	render.JSON(w, r, view)
}

// GetHeader returns the date labels and symbol keys of a sheet.
func (h *StoreHandler) GetHeader(w http.ResponseWriter, r *http.Request) {
	name, err := sheetParam(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	hdr, err := h.store.Header(r.Context(), h.storePath, name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	view := domain.HeaderView{Sheet: name, Labels: hdr.Labels, Keys: hdr.Keys}
	if latest, ok := matrix.FromHeader(hdr.Cells).Latest(); ok {
		view.Latest = latest
	}
	render.JSON(w, r, view)
}

type provenanceResponse struct {
	Sheet   string                `json:"sheet"`
	Columns []domain.ColumnRecord `json:"columns"`
}

// GetProvenance lists the formula version recorded for each date column.
func (h *StoreHandler) GetProvenance(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		h.errorHandler.HandleError(w, r, apperrors.NewNotFoundError("ledger"))
		return
	}
	name, err := sheetParam(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	cols, err := h.ledger.Columns(r.Context(), name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if cols == nil {
		cols = []domain.ColumnRecord{}
	}
	render.JSON(w, r, provenanceResponse{Sheet: name, Columns: cols})
}

type symbolsResponse struct {
	Symbols []domain.Symbol `json:"symbols"`
}

// ListSymbols returns the symbol catalog.
func (h *StoreHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols(r.Context(), h.storePath)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if symbols == nil {
		symbols = []domain.Symbol{}
	}
	render.JSON(w, r, symbolsResponse{Symbols: symbols})
}

type runsResponse struct {
	Runs []domain.RunRecord `json:"runs"`
}

// ListRuns returns the most recent engine runs, newest first.
func (h *StoreHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		h.errorHandler.HandleError(w, r, apperrors.NewNotFoundError("ledger"))
		return
	}
	limit, err := intQuery(r, "limit", defaultRunLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}
	runs, err := h.ledger.Runs(r.Context(), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	render.JSON(w, r, runsResponse{Runs: runs})
}

func sheetParam(r *http.Request) (string, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", apperrors.NewAppValidationError("invalid sheet name").
			WithContext("name", chi.URLParam(r, "name"))
	}
	return name, nil
}

// intQuery parses a positive integer query parameter, def when absent.
func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.NewAppValidationError(key + " must be a positive integer").
			WithContext(key, raw)
	}
	return n, nil
}

// buildSheetView renders m. With last > 0 only the latest last date
// columns are kept and non-date header cells are dropped.
func buildSheetView(name string, m *matrix.TimeMatrix, last int) domain.SheetView {
	view := domain.SheetView{
		Sheet: name,
		Dates: m.Labels(),
		Rows:  make([]domain.SheetRow, 0, len(m.Rows)),
	}

	var cols []int
	if last > 0 {
		dated := m.Dated()
		if len(dated) > last {
			dated = dated[len(dated)-last:]
		}
		view.Dates = make([]string, 0, len(dated))
		for _, d := range dated {
			cols = append(cols, d.Index)
			view.Dates = append(view.Dates, d.Label)
		}
		view.Header = view.Dates
	} else {
		cols = make([]int, len(m.Header))
		for i := range cols {
			cols[i] = i
		}
		view.Header = m.HeaderText()
	}

	for _, row := range m.Rows {
		out := domain.SheetRow{Key: row.Key, Name: row.Name, Values: make([]interface{}, 0, len(cols))}
		for _, c := range cols {
			out.Values = append(out.Values, row.Value(c).Interface())
		}
		view.Rows = append(view.Rows, out)
	}
	return view
}

func findRow(rows []domain.SheetRow, key string) (domain.SheetRow, bool) {
	for _, r := range rows {
		if r.Key == key {
			return r, true
		}
	}
	return domain.SheetRow{}, false
}
