// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package managed

import "context"

// Resource pairs a built value with its one-shot release action.
//
// Get is pure and may be called any number of times. Teardown must be
// invoked exactly once by the owner of the Resource; the effect of a
// second invocation is unspecified.
type Resource[T any] interface {
	Get() T

	Teardown(context.Context) error
}

type resource[T any] struct {
	value    T
	teardown func(context.Context) error
}

// NewResource returns a Resource holding value whose Teardown invokes
// the given release func.
func NewResource[T any](value T, teardown func(context.Context) error) Resource[T] {
	return resource[T]{
		value:    value,
		teardown: teardown,
	}
}

// NopResource returns a Resource holding a value which requires no teardown.
func NopResource[T any](value T) Resource[T] {
	return resource[T]{
		value: value,
	}
}

// Get implements the [Resource] interface.
func (r resource[T]) Get() T {
	return r.value
}

// Teardown implements the [Resource] interface.
func (r resource[T]) Teardown(ctx context.Context) error {
	if r.teardown == nil {
		return nil
	}
	return r.teardown(ctx)
}
