// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package grpc provides managed gRPC servers and client connections.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/z5labs/managed"
	"github.com/z5labs/managed/internal/noop"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type serverOptions struct {
	port       uint
	listener   net.Listener
	logHandler slog.Handler
	registers  []func(*grpc.Server)
	grpcOpts   []grpc.ServerOption
}

// ServerOption configures the managed gRPC server.
type ServerOption func(*serverOptions)

// ListenOnPort will configure the gRPC server to listen on the given port.
//
// Default port is 8080.
func ListenOnPort(port uint) ServerOption {
	return func(so *serverOptions) {
		so.port = port
	}
}

// Listener configures the gRPC server to serve on the given listener
// instead of opening its own.
func Listener(ls net.Listener) ServerOption {
	return func(so *serverOptions) {
		so.listener = ls
	}
}

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) ServerOption {
	return func(so *serverOptions) {
		so.logHandler = h
	}
}

// Service registers a gRPC service with the server.
func Service(register func(*grpc.Server)) ServerOption {
	return func(so *serverOptions) {
		so.registers = append(so.registers, register)
	}
}

// WithServerOptions passes the given options through to the underlying
// [grpc.Server].
func WithServerOptions(opts ...grpc.ServerOption) ServerOption {
	return func(so *serverOptions) {
		so.grpcOpts = append(so.grpcOpts, opts...)
	}
}

// Server returns a managed gRPC server. Building it binds the listener
// and begins serving in the background; teardown stops the server
// gracefully, falling back to a hard stop if the teardown context is
// cancelled first. A gRPC health service is always registered.
func Server(opts ...ServerOption) managed.Managed[*grpc.Server] {
	return managed.New(
		func(ctx context.Context) (*grpc.Server, error) {
			so := &serverOptions{
				port:       8080,
				logHandler: noop.LogHandler{},
			}
			for _, opt := range opts {
				opt(so)
			}

			log := slog.New(so.logHandler)

			ls := so.listener
			if ls == nil {
				var err error
				ls, err = net.Listen("tcp", fmt.Sprintf(":%d", so.port))
				if err != nil {
					log.ErrorContext(ctx, "failed to listen for connections", slog.Any("error", err))
					return nil, err
				}
			}

			s := grpc.NewServer(append(
				so.grpcOpts,
				grpc.StatsHandler(otelgrpc.NewServerHandler()),
			)...)

			grpc_health_v1.RegisterHealthServer(s, grpchealth.NewServer())
			for _, register := range so.registers {
				register(s)
			}

			go func() {
				err := s.Serve(ls)
				if err != nil {
					log.Error("failed to serve connections", slog.Any("error", err))
				}
			}()

			return s, nil
		},
		func(ctx context.Context, s *grpc.Server) error {
			stopped := make(chan struct{})
			go func() {
				defer close(stopped)
				s.GracefulStop()
			}()

			select {
			case <-stopped:
				return nil
			case <-ctx.Done():
				s.Stop()
				return ctx.Err()
			}
		},
	)
}

// Dial returns a managed client connection to the given target.
// Teardown closes the connection.
func Dial(target string, opts ...grpc.DialOption) managed.Managed[*grpc.ClientConn] {
	return managed.Closer(func(ctx context.Context) (*grpc.ClientConn, error) {
		return grpc.DialContext(ctx, target, append(
			opts,
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)...)
	})
}
