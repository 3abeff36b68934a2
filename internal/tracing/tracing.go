// Package tracing sets up the OpenTelemetry tracer used around lifecycle
// actions and registration calls.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const ServiceName = "living-science-documents"

type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider builds a provider for exporter "stdout", or a no-op one for "off".
func NewProvider(exporter string) (*Provider, error) {
	switch exporter {
	case "", "off":
		return &Provider{tracer: noop.NewTracerProvider().Tracer(ServiceName)}, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return NewProviderWithExporter(exp), nil
	}
	return nil, fmt.Errorf("unsupported trace exporter: %s", exporter)
}

// NewProviderWithExporter registers a batching provider around exp as the global provider.
func NewProviderWithExporter(exp sdktrace.SpanExporter) *Provider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
	otel.SetTracerProvider(tp)
	return &Provider{provider: tp, tracer: tp.Tracer(ServiceName)}
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Nop is the tracer used when none is injected.
func Nop() trace.Tracer {
	return noop.NewTracerProvider().Tracer(ServiceName)
}
