// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package managed

import (
	"context"
	"errors"
	"io"

	"github.com/z5labs/managed/internal/try"
)

// Managed is a lazy, reusable recipe for producing and later releasing
// a [Resource]. A Managed never holds a resource itself; building the
// same Managed twice runs its setup twice and yields two independent
// Resources.
type Managed[T any] interface {
	Build(context.Context) (Resource[T], error)
}

// Func is a func variant of the [Managed] interface.
type Func[T any] func(context.Context) (Resource[T], error)

// Build implements the [Managed] interface.
func (f Func[T]) Build(ctx context.Context) (Resource[T], error) {
	return f(ctx)
}

// FromResource wraps an already built [Resource]. Build returns the
// given Resource verbatim so, unlike every other constructor, building
// the returned Managed multiple times does not produce independent
// Resources.
func FromResource[T any](r Resource[T]) Managed[T] {
	return Func[T](func(ctx context.Context) (Resource[T], error) {
		return r, nil
	})
}

// Value wraps a plain value which requires no teardown.
func Value[T any](v T) Managed[T] {
	return Func[T](func(ctx context.Context) (Resource[T], error) {
		return NopResource(v), nil
	})
}

// New pairs a setup func with a teardown func. The setup is only
// evaluated when the returned Managed is built and the teardown is
// applied to the value that build produced.
func New[T any](setup func(context.Context) (T, error), teardown func(context.Context, T) error) Managed[T] {
	return Func[T](func(ctx context.Context) (_ Resource[T], err error) {
		defer try.Recover(&err)

		v, err := setup(ctx)
		if err != nil {
			return nil, err
		}
		return NewResource(v, func(ctx context.Context) error {
			return teardown(ctx, v)
		}), nil
	})
}

// FromSetup wraps a setup func whose value requires no teardown.
func FromSetup[T any](setup func(context.Context) (T, error)) Managed[T] {
	return Func[T](func(ctx context.Context) (_ Resource[T], err error) {
		defer try.Recover(&err)

		v, err := setup(ctx)
		if err != nil {
			return nil, err
		}
		return NopResource(v), nil
	})
}

// SetupEffect wraps a side effect to be performed while a chain is
// being set up. It produces no meaningful value, making it useful for
// interleaving logging or signaling between real resources.
func SetupEffect(f func(context.Context) error) Managed[struct{}] {
	return FromSetup(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
}

// TeardownEffect wraps a side effect to be performed while a chain is
// being torn down.
func TeardownEffect(f func(context.Context) error) Managed[struct{}] {
	return New(
		func(context.Context) (struct{}, error) {
			return struct{}{}, nil
		},
		func(ctx context.Context, _ struct{}) error {
			return f(ctx)
		},
	)
}

// Closer wraps a setup func for any value implementing [io.Closer].
// Teardown delegates to the value's Close method.
func Closer[T io.Closer](setup func(context.Context) (T, error)) Managed[T] {
	return New(setup, func(_ context.Context, v T) error {
		return v.Close()
	})
}

// Shutdowner wraps a setup func for any value exposing the
// conventional graceful shutdown capability, for example
// [net/http.Server] and the OTel SDK providers. Teardown delegates to
// the value's Shutdown method.
func Shutdowner[T interface {
	Shutdown(context.Context) error
}](setup func(context.Context) (T, error)) Managed[T] {
	return New(setup, func(ctx context.Context, v T) error {
		return v.Shutdown(ctx)
	})
}

var errNilManaged = errors.New("managed: nil managed")

// FlatMap chains m with f. Building the returned Managed builds m
// first, applies f to the built value and then builds the downstream
// Managed f returned. The composite Resource owns both halves: its
// teardown releases the downstream Resource first and the upstream
// Resource second, and both teardowns are attempted even if the first
// one fails. Two teardown failures are reported together as a
// [TeardownDoubleError].
//
// If f or the downstream build fails, the already built upstream
// Resource is torn down before the failure is returned. A teardown
// failure during that unwind is attached to the original failure as a
// [SuppressedError].
func FlatMap[T, U any](m Managed[T], f func(T) Managed[U]) Managed[U] {
	return Func[U](func(ctx context.Context) (Resource[U], error) {
		rt, err := m.Build(ctx)
		if err != nil {
			return nil, err
		}

		ru, err := buildDownstream(ctx, rt, f)
		if err != nil {
			return nil, Suppress(err, rt.Teardown(ctx))
		}

		return chained[T, U]{rt: rt, ru: ru}, nil
	})
}

func buildDownstream[T, U any](ctx context.Context, rt Resource[T], f func(T) Managed[U]) (_ Resource[U], err error) {
	defer try.Recover(&err)

	mu := f(rt.Get())
	if mu == nil {
		return nil, errNilManaged
	}
	return mu.Build(ctx)
}

type chained[T, U any] struct {
	rt Resource[T]
	ru Resource[U]
}

// Get implements the [Resource] interface.
func (c chained[T, U]) Get() U {
	return c.ru.Get()
}

// Teardown implements the [Resource] interface. The downstream
// Resource is always released before the upstream one and both
// releases are attempted unconditionally.
func (c chained[T, U]) Teardown(ctx context.Context) error {
	uerr := c.ru.Teardown(ctx)
	terr := c.rt.Teardown(ctx)
	if uerr == nil {
		return terr
	}
	if terr == nil {
		return uerr
	}
	return TeardownDoubleError{
		Outer: uerr,
		Inner: terr,
	}
}

// Map transforms the value produced by m with a pure func. It is
// derived from [FlatMap] with a constant downstream.
func Map[T, U any](m Managed[T], f func(T) U) Managed[U] {
	return FlatMap(m, func(v T) Managed[U] {
		return Value(f(v))
	})
}

// Sequence folds a slice of Managed values into a single Managed
// producing the slice of all their values. Setup follows slice order
// and teardown reverses it, per the [FlatMap] chaining rule.
func Sequence[T any](ms []Managed[T]) Managed[[]T] {
	seq := Value[[]T](nil)
	for _, m := range ms {
		m := m
		seq = FlatMap(seq, func(vs []T) Managed[[]T] {
			return Map(m, func(v T) []T {
				return append(vs, v)
			})
		})
	}
	return seq
}
