// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package managed

import (
	"context"
	"fmt"

	"github.com/z5labs/managed/config"
)

// FromConfig returns a Managed which, at build time, reads the given
// config sources and unmarshals the merged result into T. The built
// value requires no teardown.
func FromConfig[T any](srcs ...config.Source) Managed[T] {
	return FromSetup(func(ctx context.Context) (T, error) {
		var cfg T

		m, err := config.Read(srcs...)
		if err != nil {
			return cfg, ConfigReadError{Cause: err}
		}

		err = m.Unmarshal(&cfg)
		if err != nil {
			return cfg, ConfigUnmarshalError{Cause: err}
		}
		return cfg, nil
	})
}

// ConfigReadError occurs if any of the config sources fails to apply.
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError occurs if the merged config values can not be
// unmarshalled into the target type.
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal read config source(s) into custom type: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}
