// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http provides managed HTTP servers and clients.
package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/z5labs/managed"
	"github.com/z5labs/managed/internal/noop"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type serverOptions struct {
	port       uint
	mux        *http.ServeMux
	logHandler slog.Handler
	tlsConfig  *tls.Config
	listener   net.Listener
}

// ServerOption configures the managed HTTP server.
type ServerOption func(*serverOptions)

// ListenOnPort will configure the HTTP server to listen on the given port.
//
// Default port is 8080.
func ListenOnPort(port uint) ServerOption {
	return func(so *serverOptions) {
		so.port = port
	}
}

// Listener configures the HTTP server to serve on the given listener
// instead of opening its own. The listener is closed along with the
// server.
func Listener(ls net.Listener) ServerOption {
	return func(so *serverOptions) {
		so.listener = ls
	}
}

// Handle registers a [http.Handler] for the given path pattern.
func Handle(pattern string, h http.Handler) ServerOption {
	return func(so *serverOptions) {
		so.mux.Handle(pattern, h)
	}
}

// HandleFunc registers a [http.HandlerFunc] for the given path pattern.
func HandleFunc(pattern string, f func(http.ResponseWriter, *http.Request)) ServerOption {
	return func(so *serverOptions) {
		so.mux.Handle(pattern, http.HandlerFunc(f))
	}
}

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) ServerOption {
	return func(so *serverOptions) {
		so.logHandler = h
	}
}

// TLSConfig configures the HTTP server for TLS.
func TLSConfig(cfg *tls.Config) ServerOption {
	return func(so *serverOptions) {
		so.tlsConfig = cfg
	}
}

// Server returns a managed HTTP server. Building it binds the listener
// and begins serving requests in the background; teardown gracefully
// shuts the server down, waiting for in-flight requests up to any
// deadline on the teardown context.
func Server(opts ...ServerOption) managed.Managed[*http.Server] {
	return managed.Shutdowner(func(ctx context.Context) (*http.Server, error) {
		so := &serverOptions{
			port:       8080,
			mux:        http.NewServeMux(),
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
		if so.tlsConfig != nil {
			ls = tls.NewListener(ls, so.tlsConfig)
		}

		s := &http.Server{
			Addr: ls.Addr().String(),
			Handler: otelhttp.NewHandler(
				so.mux,
				"server",
				otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
			),
		}

		go func() {
			err := s.Serve(ls)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("failed to serve connections", slog.Any("error", err))
			}
		}()

		return s, nil
	})
}
