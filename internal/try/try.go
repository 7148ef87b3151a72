// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try provides deferred helpers for recovering panics and
// closing values into a named error return.
package try

import (
	"errors"
	"fmt"
	"io"
)

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	err, ok := e.Value.(error)
	if !ok {
		return nil
	}
	return err
}

// Recover recovers any panic and joins it, as a [PanicError], onto the
// referenced error. It must be deferred.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}

	perr := PanicError{
		Value: r,
	}
	if *err == nil {
		*err = perr
		return
	}
	*err = errors.Join(*err, perr)
}

// Close closes v, if it is an [io.Closer], and joins any close failure
// onto the referenced error. It must be deferred.
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}
	if *err == nil {
		*err = cerr
		return
	}
	*err = errors.Join(*err, cerr)
}
