// Package telemetry installs an OpenTelemetry tracer provider and offers a
// helper to close spans with their error status.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config controls tracer installation.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string    // OTLP gRPC endpoint; empty selects the stdout exporter
	Output         io.Writer // stdout exporter destination, nil for os.Stdout
	Logger         *slog.Logger
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Init installs a global tracer provider. When disabled it returns a no-op
// shutdown and leaves the default no-op provider in place.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "embedprep"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exp, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	resAttrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		resAttrs = append(resAttrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(resAttrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
			return err
		}
		return nil
	}, nil
}

func newExporter(ctx context.Context, cfg Config, logger *slog.Logger) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		logger.Debug("OTLP endpoint not set, using stdout trace exporter")
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}
	logger.Info("OTLP trace exporter configured", "endpoint", cfg.Endpoint)
	return exp, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
