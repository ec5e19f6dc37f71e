package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpan(t *testing.T) {
	require.NoError(t, Shutdown(context.Background()))
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("scatter", "0.0.1", exporter))
	defer func() { _ = Shutdown(context.Background()) }()

	ctx, parent := StartSpan(context.Background(), "scatter.Evaluate", KindInternal)
	parent.WithString("backend", "remote").WithInt("trials", 5).WithFloat("fitness", 0.25)
	_, child := StartSpan(ctx, "backend.Collect", KindConsumer)
	EndSpan(child, errors.New("collector stopped"))
	EndSpan(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "backend.Collect", spans[0].Name)
	assert.Equal(t, trace.SpanKindConsumer, spans[0].SpanKind)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
	assert.Contains(t, spans[1].Attributes, attribute.Float64("fitness", 0.25))
}

func TestInit_FirstWins(t *testing.T) {
	require.NoError(t, Shutdown(context.Background()))
	first := tracetest.NewInMemoryExporter()
	second := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("scatter", "0.0.1", first))
	require.NoError(t, InitWithExporter("scatter", "0.0.1", second))
	_, span := StartSpan(context.Background(), "local.Score", KindInternal)
	EndSpan(span, nil)

	assert.Len(t, first.GetSpans(), 1)
	assert.Empty(t, second.GetSpans())
	require.NoError(t, Shutdown(context.Background()))
}

func TestNilSpan(t *testing.T) {
	var span *Span
	assert.Nil(t, span.WithString("k", "v").WithInt("n", 1))
	EndSpan(nil, nil)
}
