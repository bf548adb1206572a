package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	return rec
}

func TestTraceRecordsSpans(t *testing.T) {
	rec := withRecorder(t)

	err := Trace(context.Background(), "sync.order", func(ctx context.Context) error {
		_, span := StartSpan(ctx, "fetch.page")
		span.SetAttribute("page", 2)
		span.Finish(nil)
		return nil
	})
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "fetch.page", spans[0].Name())
	assert.Equal(t, "sync.order", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestTraceRecordsError(t *testing.T) {
	rec := withRecorder(t)

	boom := errors.New("boom")
	err := Trace(context.Background(), "upsert", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestInitialize(t *testing.T) {
	shutdown, err := Initialize(TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = Initialize(TracingConfig{Exporter: "jaeger"})
	assert.Error(t, err)

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Exporter = "stdout"
	cfg.Writer = &buf
	shutdown, err = Initialize(cfg)
	require.NoError(t, err)

	_ = Trace(context.Background(), "probe", func(context.Context) error { return nil })
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "probe")
}

func TestSetAttributeTypes(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSpan(context.Background(), "window.fetch")
	span.SetAttribute("start", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	span.SetAttribute("width", 6*time.Hour)
	span.SetAttribute("kinds", []string{"order", "invoice"})
	span.Finish(nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "2024-01-01T00:00:00Z", attrs["start"])
	assert.Equal(t, "6h0m0s", attrs["width"])
	assert.Equal(t, `["order","invoice"]`, attrs["kinds"])
}

func TestLogFields(t *testing.T) {
	withRecorder(t)
	assert.Empty(t, LogFields(context.Background()))

	ctx, span := StartSpan(context.Background(), "probe")
	defer span.Finish(nil)
	fields := LogFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Len(t, fields[0].String, 32)
}
