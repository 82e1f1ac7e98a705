// Package telemetry sets up OpenTelemetry tracing for the server.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options configures InitTracer.
type Options struct {
	ServiceName string
	// Output receives exported spans. Defaults to stdout.
	Output io.Writer
	// SampleRatio is the fraction of new traces that are recorded. Values
	// outside (0, 1) record everything. Inbound sampled traces are always kept.
	SampleRatio float64
	Pretty      bool
}

// InitTracer installs a global tracer provider and W3C trace context
// propagation. The returned function flushes pending spans and stops the
// provider.
func InitTracer(opts Options, logger *slog.Logger) (func(context.Context) error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if opts.Pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized",
		slog.String("service", opts.ServiceName),
		slog.Float64("sample_ratio", opts.SampleRatio),
	)

	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
