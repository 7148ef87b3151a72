// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for running programs whose resources
// are deferred to the lifecycle shutdown registry.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/managed/internal/try"
	"github.com/z5labs/managed/lifecycle"

	"golang.org/x/sync/errgroup"
)

// App represents the entry point for user specific code.
type App interface {
	Run(context.Context) error
}

// Func is a func variant of the [App] interface.
type Func func(context.Context) error

// Run implements the [App] interface.
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover wraps the given [App] with panic recovery. Recovered panic
// values are reported as a [managed.PanicError].
func Recover(app App) App {
	return Func(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps the given [App] in an implementation
// that cancels the [context.Context] passed to app.Run if an
// [os.Signal] is received by the running process.
func WithSignalNotifications(app App, signals ...os.Signal) App {
	return Func(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// WithShutdownHooks wraps the given [App] in an implementation that
// runs lc's shutdown hook after app.Run returns, regardless of whether
// Run returned an error or panicked. Hook failures are joined with the
// run error.
func WithShutdownHooks(app App, lc *lifecycle.Context) App {
	return Func(func(ctx context.Context) (err error) {
		defer runShutdownHook(ctx, lc, &err)

		return app.Run(ctx)
	})
}

func runShutdownHook(ctx context.Context, lc *lifecycle.Context, err *error) {
	if lc == nil {
		return
	}

	hookErr := lc.ShutdownHook().Run(ctx)

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}

// Multi takes inspiration from io.MultiWriter to allow users to run
// multiple [App]s concurrently. The first failure cancels the rest.
func Multi(apps ...App) App {
	return Func(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, a := range apps {
			a := a
			g.Go(func() error {
				return a.Run(gctx)
			})
		}
		return g.Wait()
	})
}

// Idle returns an [App] which blocks until its context is cancelled.
// Pair it with [managed.UseUntilShutdown] for programs which only
// serve background resources.
func Idle() App {
	return Func(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
}
