// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package managed provides a composable abstraction for resource
// lifecycles.
//
// The package is built around two core abstractions:
//
//   - Resource[T]: a live value paired with its one-shot release action
//   - Managed[T]: a lazy, reusable recipe for producing and releasing a Resource
//
// # Composition
//
// Managed values chain with [FlatMap]:
//
//	db := managed.Closer(openDB)
//	cache := managed.FlatMap(db, func(db *sql.DB) managed.Managed[*Cache] {
//	    return managed.New(newCache(db), closeCache)
//	})
//
// Building the composite sets resources up outer-to-inner and its
// teardown releases them inner-to-outer, even when individual
// teardowns fail. Independent teardown failures from one unwind are
// aggregated into a [TeardownDoubleError] so none are silently
// dropped.
//
// # Consumption
//
// [Use] builds a chain, applies a consumer func and guarantees the
// chain is torn down before returning:
//
//	n, err := managed.Use(ctx, cache, func(ctx context.Context, c *Cache) (int, error) {
//	    return c.Len(ctx)
//	})
//
// [UseUntilShutdown] instead defers teardown to the lifecycle shutdown
// registry, for programs which serve a resource until the process is
// asked to stop.
package managed
