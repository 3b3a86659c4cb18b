// Package tracingsvc sets up OpenTelemetry tracing exported over OTLP/gRPC.
package tracingsvc

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/trezcool/edusource/core"
)

// Init installs the global tracer provider. Without an OTLP endpoint tracing stays a no-op.
// The returned func flushes and stops the exporter.
func Init(ctx context.Context, conf *core.Config) (func(context.Context) error, error) {
	if conf.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	conn, err := grpc.DialContext(ctx, conf.OTLPEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrap(err, "dialing otlp collector")
	}
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, errors.Wrap(err, "creating otlp exporter")
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(conf.AppName),
			semconv.ServiceVersionKey.String(conf.Build),
			semconv.DeploymentEnvironmentKey.String(conf.Env),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
