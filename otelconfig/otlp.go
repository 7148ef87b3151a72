// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelconfig

import (
	"context"

	"github.com/z5labs/managed"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// OTLPConfig is the config for the OTLP tracer provider.
type OTLPConfig struct {
	Common

	Target string
}

// OTLPOption are options for the OTLP tracer provider.
type OTLPOption interface {
	ApplyOTLP(*OTLPConfig)
}

type otlpOptionFunc func(*OTLPConfig)

func (f otlpOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(cfg)
}

// Target configures the target address of the OTLP collector.
//
// Default is "localhost:4317".
func Target(addr string) OTLPOption {
	return otlpOptionFunc(func(cfg *OTLPConfig) {
		cfg.Target = addr
	})
}

// OTLP returns a managed tracer provider which exports spans over
// gRPC to an OTLP compatible collector. The underlying gRPC connection
// is closed as part of the provider teardown.
func OTLP(opts ...OTLPOption) managed.Managed[*sdktrace.TracerProvider] {
	conn := managed.Closer(func(ctx context.Context) (*grpc.ClientConn, error) {
		cfg := OTLPConfig{
			Target: "localhost:4317",
		}
		for _, opt := range opts {
			opt.ApplyOTLP(&cfg)
		}

		return grpc.DialContext(
			ctx,
			cfg.Target,
			// Note the use of insecure transport here. TLS is recommended in production.
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	})

	return managed.FlatMap(conn, func(cc *grpc.ClientConn) managed.Managed[*sdktrace.TracerProvider] {
		return managed.Shutdowner(func(ctx context.Context) (*sdktrace.TracerProvider, error) {
			cfg := OTLPConfig{}
			for _, opt := range opts {
				opt.ApplyOTLP(&cfg)
			}

			exporter, err := otlptracegrpc.New(
				ctx,
				otlptracegrpc.WithGRPCConn(cc),
			)
			if err != nil {
				return nil, err
			}

			res, err := resource.New(
				ctx,
				resource.WithTelemetrySDK(),
				resource.WithAttributes(
					semconv.ServiceName(cfg.ServiceName),
				),
			)
			if err != nil {
				return nil, err
			}

			tp := sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(res),
			)
			otel.SetTracerProvider(tp)
			return tp, nil
		})
	})
}
