// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package tracing wires OpenTelemetry for the API process.
//
// Tracing is opt-in. Without an OTLP endpoint the global no-op provider stays
// in place, so spans opened by the auth flows cost nothing.
package tracing

import (
	stdctx "context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes pending spans. It is always non-nil.
type ShutdownFunc func(stdctx.Context) error

/*
Setup registers a global tracer provider exporting to endpoint over OTLP/HTTP.

Parameters:
  - context: context.Context
  - serviceName: string (service.name resource attribute)
  - version: string (service.version resource attribute)
  - endpoint: string (full URL; empty disables tracing)

Returns:
  - ShutdownFunc: Flush hook to defer in main
  - error: Exporter or resource construction failures
*/
func Setup(context stdctx.Context, serviceName, version, endpoint string) (ShutdownFunc, error) {
	noop := func(stdctx.Context) error { return nil }

	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(context, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, fmt.Errorf("tracing: exporter: %w", err)
	}

	res, err := resource.New(context,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("tracing: resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}
