package infrastructure

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockmatrix/internal/config"
	"stockmatrix/internal/shared/testutil"
)

func TestInitializeOTel_MetricsExposed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	p, err := InitializeOTel(config.TelemetryConfig{
		EnableMetrics: true,
		TraceExporter: "none",
		ServiceName:   "matrixctl-test",
	}, io.Discard, logger)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	require.NotNil(t, p.PrometheusHTTP)
	ctx := context.Background()
	p.Metrics.RecordMerge(ctx, "z20", "z20", "updated", 2)
	p.Metrics.RecordRollback(ctx, "latest", "success")
	p.Metrics.RecordOperation(ctx, "compute", 150*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	p.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, "matrix_merge_total")
	assert.Contains(t, body, "matrix_columns_appended_total")
	assert.Contains(t, body, "matrix_rollback_total")
	assert.Contains(t, body, "matrix_operation_duration_seconds")
	assert.Contains(t, body, `indicator="z20"`)
}

func TestInitializeOTel_StdoutTraces(t *testing.T) {
	var out bytes.Buffer
	p, err := InitializeOTel(config.TelemetryConfig{
		EnableTracing: true,
		TraceExporter: "stdout",
		ServiceName:   "matrixctl-test",
	}, &out, nil)
	require.NoError(t, err)

	assert.Nil(t, p.PrometheusHTTP)
	_, span := p.Tracer.Start(context.Background(), "engine.compute")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, out.String(), "engine.compute")
}

func TestNoopProviders(t *testing.T) {
	p := NoopProviders()
	require.NotNil(t, p.Metrics)
	ctx, span := p.Tracer.Start(context.Background(), "noop")
	p.Metrics.RecordMerge(ctx, "gap", "gap", "created", 1)
	RecordError(ctx, assert.AnError)
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}
