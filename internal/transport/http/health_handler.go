package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"stockmatrix/pkg/contracts"
)

// HealthHandler reports whether the store can be read.
type HealthHandler struct {
	store     StoreReader
	storePath string
	logger    *slog.Logger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(store StoreReader, storePath string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		storePath: storePath,
		logger:    logger.With(slog.String("component", "health_handler")),
	}
}

// StoreHealth describes the store part of a health response.
type StoreHealth struct {
	Readable bool   `json:"readable"`
	Sheets   int    `json:"sheets"`
	Error    string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Store     StoreHealth `json:"store"`
}

// Healthz answers 200 when the store opens and 503 otherwise.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
	}

	sheets, err := h.store.Sheets(r.Context(), h.storePath)
	if err != nil {
		h.logger.WarnContext(r.Context(), "store not readable", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		resp.Store.Error = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
	} else {
		resp.Store.Readable = true
		resp.Store.Sheets = len(sheets)
	}

	render.JSON(w, r, resp)
}

// VersionHandler returns build information.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
