package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/viant/scatter"

// Kind is the role of a span
type Kind = trace.SpanKind

const (
	// KindInternal marks local work such as aggregation or judging
	KindInternal = trace.SpanKindInternal
	// KindProducer marks trial dispatch
	KindProducer = trace.SpanKindProducer
	// KindConsumer marks result collection
	KindConsumer = trace.SpanKindConsumer
)

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
	output   io.Closer
)

// Init installs a provider exporting to outputFile, or to stdout when
// outputFile is empty. Later calls are no-ops until Shutdown.
func Init(serviceName, serviceVersion, outputFile string) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return nil
	}
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w, output = f, f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return install(serviceName, serviceVersion, exporter)
}

// InitWithExporter installs a provider exporting to exporter. Later calls are
// no-ops until Shutdown.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil || exporter == nil {
		return nil
	}
	return install(serviceName, serviceVersion, exporter)
}

func install(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	))
	if err != nil {
		return err
	}
	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// Shutdown flushes and removes the installed provider
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	provider = nil
	if output != nil {
		if closeErr := output.Close(); err == nil {
			err = closeErr
		}
		output = nil
	}
	return err
}

// Span is a nil-safe handle on an OpenTelemetry span
type Span struct {
	span trace.Span
}

// WithString sets a string attribute
func (s *Span) WithString(key, value string) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.String(key, value))
	}
	return s
}

// WithInt sets an integer attribute
func (s *Span) WithInt(key string, value int) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.Int(key, value))
	}
	return s
}

// WithFloat sets a float attribute
func (s *Span) WithFloat(key string, value float64) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.Float64(key, value))
	}
	return s
}

// StartSpan starts a child of the span carried by ctx
func StartSpan(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithSpanKind(kind))
	return ctx, &Span{span: span}
}

// EndSpan sets the span status from err and ends it
func EndSpan(s *Span, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
