// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig provides managed tracer providers for the OTel SDK.
//
// Building any of the managed values in this package registers the
// provider globally with [otel.SetTracerProvider]. Teardown shuts the
// provider down, flushing any buffered spans.
package otelconfig

import (
	"context"
	"io"
	"os"

	"github.com/z5labs/managed"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Common holds config values shared by every tracer provider.
type Common struct {
	ServiceName string `config:"serviceName"`
}

// CommonOption configures any of the tracer providers in this package.
type CommonOption interface {
	LocalOption
	OTLPOption
	GoogleCloudOption
}

type commonOptionFunc func(*Common)

func (f commonOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(&cfg.Common)
}

// ServiceName configures the service name reported on every span.
func ServiceName(name string) CommonOption {
	return commonOptionFunc(func(c *Common) {
		c.ServiceName = name
	})
}

// LocalConfig is the config for the Local tracer provider.
type LocalConfig struct {
	Common

	Out io.Writer
}

// LocalOption are options for the Local tracer provider.
type LocalOption interface {
	ApplyLocal(*LocalConfig)
}

type localOptionFunc func(*LocalConfig)

func (f localOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(cfg)
}

// Out configures the writer which spans are exported to.
//
// Default is [os.Stdout].
func Out(w io.Writer) LocalOption {
	return localOptionFunc(func(cfg *LocalConfig) {
		cfg.Out = w
	})
}

// Local returns a managed tracer provider which exports spans to a
// local writer. It is meant for development and testing.
func Local(opts ...LocalOption) managed.Managed[*sdktrace.TracerProvider] {
	return managed.Shutdowner(func(ctx context.Context) (*sdktrace.TracerProvider, error) {
		cfg := LocalConfig{
			Out: os.Stdout,
		}
		for _, opt := range opts {
			opt.ApplyLocal(&cfg)
		}

		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(cfg.Out),
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
}
