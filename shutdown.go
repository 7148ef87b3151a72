// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package managed

import (
	"context"

	"github.com/z5labs/managed/lifecycle"
)

type untilShutdownOptions struct {
	onSetupError    func(error) error
	onTeardownError func(error) error
}

// UntilShutdownOption configures [UseUntilShutdown].
type UntilShutdownOption func(*untilShutdownOptions)

// OnSetupError intercepts a failure to build the Resource. Whatever
// the func returns is what [UseUntilShutdown] returns, so returning
// nil swallows the failure. The default re-raises the failure as is.
func OnSetupError(f func(error) error) UntilShutdownOption {
	return func(uo *untilShutdownOptions) {
		uo.onSetupError = f
	}
}

// OnTeardownError intercepts a failure from the deferred teardown when
// it eventually runs at shutdown time. The default re-raises the
// failure through the shutdown hook.
func OnTeardownError(f func(error) error) UntilShutdownOption {
	return func(uo *untilShutdownOptions) {
		uo.onTeardownError = f
	}
}

// UseUntilShutdown builds m and, instead of tearing the Resource down
// before returning, registers its teardown on the lifecycle shutdown
// registry. The registry is taken from ctx if a [lifecycle.Context] is
// present, otherwise the process wide default registry is used. It is
// meant for programs which serve a resource until the process is asked
// to stop.
//
// If the build fails no shutdown hook is registered, even when
// [OnSetupError] swallows the failure.
func UseUntilShutdown[T any](ctx context.Context, m Managed[T], opts ...UntilShutdownOption) (T, error) {
	uo := &untilShutdownOptions{
		onSetupError: func(err error) error {
			return err
		},
		onTeardownError: func(err error) error {
			return err
		},
	}
	for _, opt := range opts {
		opt(uo)
	}

	var zero T
	r, err := m.Build(ctx)
	if err != nil {
		return zero, uo.onSetupError(err)
	}

	lc, ok := lifecycle.FromContext(ctx)
	if !ok {
		lc = lifecycle.Default()
	}
	lc.OnShutdown(lifecycle.HookFunc(func(ctx context.Context) error {
		terr := r.Teardown(ctx)
		if terr == nil {
			return nil
		}
		return uo.onTeardownError(terr)
	}))

	return r.Get(), nil
}
