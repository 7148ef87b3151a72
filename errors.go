// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package managed

import (
	"fmt"

	"github.com/z5labs/managed/internal/try"
)

// PanicError wraps a value recovered from a panic. Panics raised by
// setup computations, chaining funcs and consumers are recovered and
// reported as this type so the teardown guarantees hold on every exit
// path.
type PanicError = try.PanicError

// TeardownDoubleError represents two independent teardown failures
// from a single unwind. Outer is the failure from the more recently
// attempted teardown. For chains longer than two links, Inner may
// itself be a TeardownDoubleError.
type TeardownDoubleError struct {
	Outer error
	Inner error
}

// Error implements the [builtin.error] interface.
func (e TeardownDoubleError) Error() string {
	return fmt.Sprintf("two teardowns failed: %s: %s", e.Outer, e.Inner)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TeardownDoubleError) Unwrap() []error {
	return []error{e.Outer, e.Inner}
}

// SuppressedError attaches secondary failures to a primary failure
// without displacing it. It is how a teardown failure encountered
// while unwinding after a setup or consumer failure is reported.
type SuppressedError struct {
	Primary    error
	Suppressed []error
}

// Error implements the [builtin.error] interface.
func (e SuppressedError) Error() string {
	s := e.Primary.Error()
	for _, err := range e.Suppressed {
		s += fmt.Sprintf(" (suppressed: %s)", err)
	}
	return s
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
// The primary failure is always first.
func (e SuppressedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Suppressed)+1)
	errs = append(errs, e.Primary)
	return append(errs, e.Suppressed...)
}

// Suppress attaches secondary to primary. If primary is already a
// [SuppressedError] then secondary is appended to it instead of
// nesting a new one.
func Suppress(primary, secondary error) error {
	if secondary == nil {
		return primary
	}
	if primary == nil {
		return secondary
	}

	serr, ok := primary.(SuppressedError)
	if !ok {
		return SuppressedError{
			Primary:    primary,
			Suppressed: []error{secondary},
		}
	}

	// copy before appending so two Suppress calls on the same
	// held error can not write over each other's secondary
	suppressed := make([]error, 0, len(serr.Suppressed)+1)
	suppressed = append(suppressed, serr.Suppressed...)
	serr.Suppressed = append(suppressed, secondary)
	return serr
}
