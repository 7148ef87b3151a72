// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package managed

import (
	"context"

	"github.com/z5labs/managed/internal/try"
)

// Use builds m, applies f to the built value and guarantees the
// Resource is torn down exactly once before Use returns, on every exit
// path including a panicking consumer.
//
// If f fails and teardown also fails, the teardown failure is attached
// to f's failure as a [SuppressedError] and f's failure remains
// primary. If only the teardown fails, its failure is returned.
func Use[T, R any](ctx context.Context, m Managed[T], f func(context.Context, T) (R, error)) (R, error) {
	var zero R

	r, err := m.Build(ctx)
	if err != nil {
		return zero, err
	}

	v, err := apply(ctx, r, f)

	terr := r.Teardown(ctx)
	if err != nil {
		return zero, Suppress(err, terr)
	}
	if terr != nil {
		return zero, terr
	}
	return v, nil
}

func apply[T, R any](ctx context.Context, r Resource[T], f func(context.Context, T) (R, error)) (_ R, err error) {
	defer try.Recover(&err)

	return f(ctx, r.Get())
}

// Foreach is [Use] specialized to consumers which only perform side
// effects.
func Foreach[T any](ctx context.Context, m Managed[T], f func(context.Context, T) error) error {
	_, err := Use(ctx, m, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, f(ctx, v)
	})
	return err
}

// Run builds m, immediately tears it down and reports any failure from
// either side. Useful for chains assembled purely for their side
// effects.
func Run[T any](ctx context.Context, m Managed[T]) error {
	return Foreach(ctx, m, func(context.Context, T) error {
		return nil
	})
}
