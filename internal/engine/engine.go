// Package engine exposes the store operations: computing indicators,
// rolling back dates and ingesting observations. Every call opens the
// workbook once, stages all changes in memory and saves at most once.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockmatrix/internal/config"
	"stockmatrix/internal/indicator"
	"stockmatrix/internal/infrastructure"
	"stockmatrix/internal/ingest"
	"stockmatrix/internal/merge"
	"stockmatrix/internal/rollback"
	"stockmatrix/internal/workbook"
)

// Operation names used for runs, spans and metrics.
const (
	OpCompute        = "compute"
	OpRollbackLatest = "rollback_latest"
	OpRollbackRange  = "rollback_range"
	OpIngest         = "ingest"
)

// Recorder receives the provenance of every run. Implemented by the ledger.
type Recorder interface {
	BeginRun(ctx context.Context, runID, op, store string) error
	FinishRun(ctx context.Context, runID, status, detail string) error
	RecordColumns(ctx context.Context, runID, sheet, formulaVersion string, dates []string) error
	ForgetColumns(ctx context.Context, sheet string, dates []string) (int, error)
	ForgetRange(ctx context.Context, sheet, start, end string) (int, error)
}

// Engine runs store operations for one configuration.
type Engine struct {
	cfg       *config.Config
	specs     []indicator.Spec
	merger    *merge.Merger
	rollback  *rollback.Rollback
	ingester  *ingest.Ingester
	recorder  Recorder
	telemetry *infrastructure.OTelProviders
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches a provenance recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTelemetry attaches tracing and metrics providers.
func WithTelemetry(p *infrastructure.OTelProviders) Option {
	return func(e *Engine) { e.telemetry = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine for cfg.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.telemetry == nil {
		e.telemetry = infrastructure.NoopProviders()
	}
	e.logger = infrastructure.WithComponent(e.logger, "engine")
	e.specs = indicator.Catalog(cfg.IndicatorParams())
	e.merger = merge.New(cfg.Indicators.Workers, e.logger)
	e.rollback = rollback.New(e.logger)
	e.ingester = ingest.New(cfg.Store.CatalogSheet, e.logger)
	return e
}

// Specs returns the indicators the engine computes, in order.
func (e *Engine) Specs() []indicator.Spec {
	return append([]indicator.Spec(nil), e.specs...)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) storePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return e.cfg.Store.Path
	}
	return path
}

func (e *Engine) workbookOptions() workbook.Options {
	return workbook.Options{
		NameHeader: e.cfg.Store.NameHeader,
		KeyHeader:  e.cfg.Store.KeyHeader,
		Logger:     e.logger,
	}
}

// run tracks one entry-point call.
type run struct {
	id    string
	op    string
	store string
	start time.Time
	span  trace.Span
}

func (e *Engine) begin(ctx context.Context, op, store string) (context.Context, *run) {
	ctx, id := infrastructure.EnsureRunID(ctx)
	ctx, span := e.telemetry.Tracer.Start(ctx, "engine."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", id),
			attribute.String("store", store),
		),
	)
	r := &run{id: id, op: op, store: store, start: time.Now(), span: span}

	if e.recorder != nil {
		if err := e.recorder.BeginRun(ctx, id, op, store); err != nil {
			e.logger.WarnContext(ctx, "ledger unavailable", slog.String("error", err.Error()))
		}
	}
	e.logger.InfoContext(ctx, "operation started", slog.String("operation", op), slog.String("store", store))
	return ctx, r
}

func (e *Engine) finish(ctx context.Context, r *run, detail string, err error) {
	elapsed := time.Since(r.start)
	e.telemetry.Metrics.RecordOperation(ctx, r.op, elapsed, err)

	status := "succeeded"
	if err != nil {
		status = "failed"
		detail = err.Error()
		infrastructure.RecordError(ctx, err)
		e.logger.ErrorContext(ctx, "operation failed",
			slog.String("operation", r.op),
			slog.String("store", r.store),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
	} else {
		e.logger.InfoContext(ctx, "operation finished",
			slog.String("operation", r.op),
			slog.String("store", r.store),
			slog.Duration("duration", elapsed),
			slog.String("detail", detail))
	}

	if e.recorder != nil {
		// Use a fresh context so a cancelled run is still closed out.
		if lerr := e.recorder.FinishRun(context.WithoutCancel(ctx), r.id, status, detail); lerr != nil {
			e.logger.WarnContext(ctx, "ledger finish failed", slog.String("error", lerr.Error()))
		}
	}
	r.span.End()
}

// ledgerWarn logs a failed ledger write. The ledger never fails an operation.
func (e *Engine) ledgerWarn(ctx context.Context, what string, err error) {
	if err != nil {
		e.logger.WarnContext(ctx, "ledger write failed", slog.String("what", what), slog.String("error", err.Error()))
	}
}

func summarize(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

func countDetail(name string, n int) string {
	return fmt.Sprintf("%s:%d", name, n)
}
