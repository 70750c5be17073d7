// Package observability provides OpenTelemetry tracing for evarc. Logging
// lives in pkg/logger and Prometheus metrics in pkg/metrics; this package
// only owns the trace pipeline and span helpers.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/evarc/evarc/pkg/config"
)

var tracer trace.Tracer = otel.Tracer("evarc")

// Initialize sets up the tracing provider from the tracing section of the
// evarc configuration. When tracing is disabled the global no-op tracer
// stays in place and span helpers become free.
func Initialize(cfg *config.TracingConfig, version string) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout", "":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = tp.Tracer(cfg.ServiceName)

	return nil
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer: %w", err)
		}
	}
	return nil
}

// Span wraps an OpenTelemetry span with batched attribute recording.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span under the global tracer.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span. Attributes are batched and
// applied once at End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the span failed and records the error message.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End applies batched attributes, records the span duration, and ends it.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.SetAttributes(attribute.Int64("duration_ns", time.Since(s.startTime).Nanoseconds()))
	s.span.End()
}

// WriterTracer provides component-scoped tracing for the write path.
type WriterTracer struct {
	component string
}

// NewWriterTracer creates a tracer handle for a component such as "writer"
// or "pipeline".
func NewWriterTracer(component string) *WriterTracer {
	return &WriterTracer{component: component}
}

// StartSpan starts a component-scoped span.
func (wt *WriterTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("%s.%s", wt.component, operation))

	span.SetAttribute("component", wt.component)
	span.SetAttribute("operation", operation)

	return ctx, span
}

// TraceEvent traces processing of a single event through fn. The event
// sequence number is attached as an attribute and errors are recorded on
// the span before being returned unchanged.
func (wt *WriterTracer) TraceEvent(ctx context.Context, seq uint64, operation string, fn func(context.Context) error) error {
	ctx, span := wt.StartSpan(ctx, operation)
	defer span.End()

	span.SetAttribute("event_seq", seq)

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
