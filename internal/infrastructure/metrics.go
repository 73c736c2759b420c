package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds the store-operation instruments.
type EngineMetrics struct {
	MergeTotal        metric.Int64Counter
	ColumnsAppended   metric.Int64Counter
	RollbackTotal     metric.Int64Counter
	OperationDuration metric.Float64Histogram
}

// NewEngineMetrics creates the instruments on meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	mergeTotal, err := meter.Int64Counter(
		"matrix_merge_total",
		metric.WithDescription("Indicator merges by indicator and outcome"),
	)
	if err != nil {
		return nil, err
	}

	columnsAppended, err := meter.Int64Counter(
		"matrix_columns_appended_total",
		metric.WithDescription("Date columns appended per sheet"),
	)
	if err != nil {
		return nil, err
	}

	rollbackTotal, err := meter.Int64Counter(
		"matrix_rollback_total",
		metric.WithDescription("Rollbacks by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		"matrix_operation_duration_seconds",
		metric.WithDescription("Engine operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		MergeTotal:        mergeTotal,
		ColumnsAppended:   columnsAppended,
		RollbackTotal:     rollbackTotal,
		OperationDuration: operationDuration,
	}, nil
}

// RecordMerge counts one merge and the columns it appended to sheet.
func (m *EngineMetrics) RecordMerge(ctx context.Context, indicator, sheet, status string, columns int) {
	if m == nil {
		return
	}
	m.MergeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("indicator", indicator),
		attribute.String("status", status),
	))
	if columns > 0 {
		m.ColumnsAppended.Add(ctx, int64(columns), metric.WithAttributes(
			attribute.String("sheet", sheet),
		))
	}
}

// RecordRollback counts one rollback; kind is "latest" or "range".
func (m *EngineMetrics) RecordRollback(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.RollbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordOperation records the duration of an engine entry point.
func (m *EngineMetrics) RecordOperation(ctx context.Context, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.OperationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}
