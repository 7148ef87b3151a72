// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package queue provides consumer driven patterns which implement the app.App interface.
package queue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/z5labs/managed/app"
	"github.com/z5labs/managed/internal/noop"
	"github.com/z5labs/managed/internal/try"

	"go.opentelemetry.io/otel"
)

// ErrNoItem should be returned by a [Consumer] when no item was
// available. The runners treat it as a signal to poll again instead
// of an error worth reporting.
var ErrNoItem = errors.New("queue: no item")

// Consumer consumes a single item from some external queue.
type Consumer[T any] interface {
	Consume(context.Context) (T, error)
}

// ConsumerFunc is a func variant of the [Consumer] interface.
type ConsumerFunc[T any] func(context.Context) (T, error)

// Consume implements the [Consumer] interface.
func (f ConsumerFunc[T]) Consume(ctx context.Context) (T, error) {
	return f(ctx)
}

// Processor processes a single item previously consumed from some
// external queue.
type Processor[T any] interface {
	Process(context.Context, T) error
}

// ProcessorFunc is a func variant of the [Processor] interface.
type ProcessorFunc[T any] func(context.Context, T) error

// Process implements the [Processor] interface.
func (f ProcessorFunc[T]) Process(ctx context.Context, v T) error {
	return f(ctx, v)
}

type sequentialOptions struct {
	logHandler slog.Handler
}

// SequentialOption are options for the [Sequential] runner.
type SequentialOption interface {
	applySequential(*sequentialOptions)
}

type sequentialOptionFunc func(*sequentialOptions)

func (f sequentialOptionFunc) applySequential(so *sequentialOptions) {
	f(so)
}

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) SequentialOption {
	return sequentialOptionFunc(func(so *sequentialOptions) {
		so.logHandler = h
	})
}

// SequentialRunner consumes and processes one item at a time.
type SequentialRunner[T any] struct {
	log *slog.Logger
	c   Consumer[T]
	p   Processor[T]
}

// Sequential returns a [SequentialRunner] which implements the
// [app.App] interface. It runs until the given context is cancelled.
// Consumer and processor failures are logged, not returned, so a
// single bad item never stops the runner.
func Sequential[T any](c Consumer[T], p Processor[T], opts ...SequentialOption) *SequentialRunner[T] {
	so := &sequentialOptions{
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt.applySequential(so)
	}

	return &SequentialRunner[T]{
		log: slog.New(so.logHandler),
		c:   c,
		p:   p,
	}
}

var _ app.App = (*SequentialRunner[struct{}])(nil)

// Run implements the [app.App] interface.
func (sr *SequentialRunner[T]) Run(ctx context.Context) error {
	tracer := otel.Tracer("queue")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		spanCtx, span := tracer.Start(ctx, "SequentialRunner.Run")
		item, err := consume(spanCtx, sr.c)
		if err != nil {
			if !errors.Is(err, ErrNoItem) {
				sr.log.ErrorContext(spanCtx, "failed to consume", slog.String("error", err.Error()))
			}
			span.End()
			continue
		}

		select {
		case <-ctx.Done():
			span.End()
			return nil
		default:
		}

		err = process(spanCtx, sr.p, item)
		if err != nil {
			sr.log.ErrorContext(spanCtx, "failed to process", slog.String("error", err.Error()))
		}
		span.End()
	}
}

func consume[T any](ctx context.Context, c Consumer[T]) (v T, err error) {
	spanCtx, span := otel.Tracer("queue").Start(ctx, "consume")
	defer span.End()
	defer try.Recover(&err)

	return c.Consume(spanCtx)
}

func process[T any](ctx context.Context, p Processor[T], value T) (err error) {
	spanCtx, span := otel.Tracer("queue").Start(ctx, "process")
	defer span.End()
	defer try.Recover(&err)

	return p.Process(spanCtx, value)
}
