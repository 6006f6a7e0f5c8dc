// Package tracing wires an otel TracerProvider (grounded in the
// AltairaLabs-PromptKit pack member, which instruments its own HTTP
// surface with the otel SDK) and exposes the otelhttp middleware used to
// wrap the chi router's inbound HTTP handlers.
package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func NewProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Wrap instruments handler with otelhttp, labeling spans by operation.
func Wrap(operation string, handler http.Handler) http.Handler {
	return otelhttp.NewHandler(handler, operation)
}
