// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelconfig

import (
	"context"

	"github.com/z5labs/managed"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/api/option"
)

// GoogleCloudConfig is the config for the Google Cloud tracer provider.
type GoogleCloudConfig struct {
	Common

	ProjectId string `config:"projectId"`
}

// GoogleCloudOption are options for the Google Cloud tracer provider.
type GoogleCloudOption interface {
	ApplyGCP(*GoogleCloudConfig)
}

type gcpOptionFunc func(*GoogleCloudConfig)

func (f gcpOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(cfg)
}

// GoogleCloudProjectId configures the Google Cloud Project ID.
func GoogleCloudProjectId(id string) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.ProjectId = id
	})
}

// GoogleCloud returns a managed tracer provider which exports spans
// directly to Cloud Trace.
func GoogleCloud(opts ...GoogleCloudOption) managed.Managed[*sdktrace.TracerProvider] {
	return managed.Shutdowner(func(ctx context.Context) (*sdktrace.TracerProvider, error) {
		cfg := GoogleCloudConfig{}
		for _, opt := range opts {
			opt.ApplyGCP(&cfg)
		}

		exporter, err := texporter.New(
			texporter.WithProjectID(cfg.ProjectId),
			texporter.WithTraceClientOptions([]option.ClientOption{option.WithTelemetryDisabled()}),
		)
		if err != nil {
			return nil, err
		}

		res, err := resource.New(
			ctx,
			resource.WithDetectors(gcp.NewDetector()),
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
