package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitTracerProvider(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tp, err := InitTracerProvider(context.Background(), "wikiharvest", "test", zap.New(core))
	require.NoError(t, err)

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	ctx, parent := otel.Tracer("test").Start(context.Background(), "orchestrator.Run")
	_, child := otel.Tracer("test").Start(ctx, "orchestrator.batch")
	child.End()
	parent.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	entries := logs.FilterMessage("orchestrator.batch").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, parent.SpanContext().SpanID().String(), fields["parent_id"])
	assert.Equal(t, parent.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Len(t, logs.FilterMessage("orchestrator.Run").All(), 1)
}

func TestLogExporterWritesAttributes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(zap.New(core))))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "orchestrator.seed_batch")
	span.SetAttributes(attribute.Int("wikiharvest.titles", 3))
	span.End()

	entries := logs.FilterMessage("orchestrator.seed_batch").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "3", entries[0].ContextMap()["wikiharvest.titles"])
	assert.NotContains(t, entries[0].ContextMap(), "parent_id")
}

func TestNilLoggerExporter(t *testing.T) {
	assert.NoError(t, NewLogExporter(nil).ExportSpans(context.Background(), nil))
	assert.NoError(t, NewLogExporter(nil).Shutdown(context.Background()))
}
