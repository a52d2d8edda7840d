// Package tracing provides the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/JakeFAU/business-discovery"

var (
	initOnce    sync.Once
	initialized atomic.Bool
	provider    *sdktrace.TracerProvider
	initErr     error
)

// Options configures the tracer provider.
type Options struct {
	ServiceName string
	// Exporter is optional; without one spans are sampled but never leave the
	// process, which keeps trace ids flowing into logs and Pub/Sub attributes.
	Exporter sdktrace.SpanExporter
}

// EnsureInitialized installs the global tracer provider exactly once. Later
// calls return the first result.
func EnsureInitialized(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	initOnce.Do(func() {
		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(opts.ServiceName),
			),
		)
		if err != nil {
			initErr = fmt.Errorf("failed to create resource: %w", err)
			return
		}

		tpOpts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		}
		if opts.Exporter != nil {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(opts.Exporter))
		}

		provider = sdktrace.NewTracerProvider(tpOpts...)
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(
			propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		)
		initialized.Store(true)
	})
	return provider, initErr
}

// Enabled reports whether EnsureInitialized succeeded.
func Enabled() bool {
	return initialized.Load()
}

// Trace runs fn inside a span named name. When tracing was never initialized
// fn runs directly with the caller's context.
func Trace[T any](ctx context.Context, name string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	if !Enabled() {
		return fn(ctx)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// Shutdown flushes and stops the provider if it was installed.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
