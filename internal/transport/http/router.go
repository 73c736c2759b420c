package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"stockmatrix/internal/config"
	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/middleware"
)

// RouterOptions carries the dependencies of the API router.
type RouterOptions struct {
	Store     StoreReader
	Ledger    LedgerReader
	StorePath string
	RateLimit config.RateLimitConfig
	// Instrument wraps every request when set.
	Instrument func(http.Handler) http.Handler
	// Metrics serves /metrics when set.
	Metrics      http.Handler
	IncludeStack bool
	Logger       *slog.Logger
}

// NewRouter builds the read-only API.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errs := apperrors.NewErrorHandler(logger, opts.IncludeStack)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if opts.Instrument != nil {
		r.Use(opts.Instrument)
	}
	r.Use(apperrors.NewErrorMiddleware(errs, logger).Handler)

	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)

	health := NewHealthHandler(opts.Store, opts.StorePath, logger)
	r.Get("/healthz", health.Healthz)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(opts.RateLimit.RPS, opts.RateLimit.Burst, errs, logger).Handler)
		}
		r.Mount("/api/v1", NewStoreHandler(opts.Store, opts.Ledger, opts.StorePath, logger, errs).Routes())
	})

	return r
}
