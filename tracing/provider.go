package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ProviderOptions configures NewProvider.
type ProviderOptions struct {
	// Enabled turns on OTLP export. A disabled provider records nothing.
	Enabled bool
	// Endpoint is the OTLP/HTTP collector address (host:port).
	Endpoint string
	Insecure bool
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string
	// SampleRatio is the fraction of runs traced (0..1).
	SampleRatio float64
}

// Shutdown flushes and stops a provider.
type Shutdown func(ctx context.Context) error

// NewProvider creates a tracer provider exporting spans over OTLP/HTTP in
// batches. The returned Shutdown must be called before the process exits.
func NewProvider(ctx context.Context, opts ProviderOptions) (trace.TracerProvider, Shutdown, error) {
	if !opts.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	clientOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	)
	return tp, tp.Shutdown, nil
}
