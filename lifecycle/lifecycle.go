// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle provides the shutdown hook registry used to defer
// resource teardown until the process is asked to terminate.
package lifecycle

import (
	"context"
	"errors"
)

// Hook represents functionality that needs to be performed when the
// process is asked to terminate.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	errs := make([]error, 0, len(mh))
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// MultiHook returns a [Hook] that's the logical concatenation of the
// provided [Hook]s. They're applied sequentially and every hook is
// applied regardless of earlier hook failures.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

// Context is an ordered registry of shutdown hooks. Hooks run in
// registration order; a composite resource chain registered as one
// hook still unwinds itself in reverse setup order, independent of
// this registry's ordering.
//
// A Context performs no internal synchronization. Callers which share
// one across goroutines must serialize access themselves.
type Context struct {
	shutdowns multiHook
}

// OnShutdown registers the given [Hook] to run once when the process
// is asked to stop. It can be called multiple times and all registered
// Hooks are composed, in registration order, into the single Hook
// returned by [Context.ShutdownHook].
func (c *Context) OnShutdown(hook Hook) {
	c.shutdowns = append(c.shutdowns, hook)
}

// ShutdownHook returns the composite [Hook] of every registered hook.
func (c *Context) ShutdownHook() Hook {
	return c.shutdowns
}

type key struct{}

var contextKey = &key{}

// NewContext returns a new [context.Context] containing the lifecycle [Context].
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey, c)
}

// FromContext tries to extract a lifecycle [Context] from the given [context.Context].
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey).(*Context)
	return lc, ok
}

var def Context

// Default returns the process wide registry. It is used by programs
// which do not carry an explicit lifecycle [Context] on their
// [context.Context].
func Default() *Context {
	return &def
}

// OnShutdown registers the given [Hook] on the process wide registry.
func OnShutdown(hook Hook) {
	def.OnShutdown(hook)
}
