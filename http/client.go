// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/managed"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type clientOptions struct {
	logger      *zap.Logger
	maxRetries  int
	waitMin     time.Duration
	waitMax     time.Duration
	name        string
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripCount   uint32
	statusCodes []int
}

// ClientOption configures the managed HTTP client.
type ClientOption func(*clientOptions)

// ClientName is the name of the client. It is used to create a named
// logger for logging circuit breaker state changes.
func ClientName(name string) ClientOption {
	return func(co *clientOptions) {
		co.name = name
	}
}

// ClientLogger configures the logger used for circuit breaker state changes.
func ClientLogger(logger *zap.Logger) ClientOption {
	return func(co *clientOptions) {
		co.logger = logger
	}
}

// MaxRetries configures the maximum number of retries per request.
//
// Default is 4.
func MaxRetries(n int) ClientOption {
	return func(co *clientOptions) {
		co.maxRetries = n
	}
}

// MinWaitDuration configures the minimum wait duration between retries.
func MinWaitDuration(d time.Duration) ClientOption {
	return func(co *clientOptions) {
		co.waitMin = d
	}
}

// MaxWaitDuration configures the maximum wait duration between retries.
func MaxWaitDuration(d time.Duration) ClientOption {
	return func(co *clientOptions) {
		co.waitMax = d
	}
}

// CircuitMaxRequests is the maximum number of requests allowed to pass
// through when the circuit breaker is half-open. If it is 0, only 1
// request is allowed.
func CircuitMaxRequests(maxRequests uint32) ClientOption {
	return func(co *clientOptions) {
		co.maxRequests = maxRequests
	}
}

// CircuitInterval is the cyclic period of the closed state for the
// circuit breaker to clear its internal counts. If it is 0, the counts
// are never cleared while closed.
func CircuitInterval(interval time.Duration) ClientOption {
	return func(co *clientOptions) {
		co.interval = interval
	}
}

// CircuitTimeout is the period of the open state, after which the
// circuit breaker becomes half-open. If it is 0, 60 seconds is used.
func CircuitTimeout(timeout time.Duration) ClientOption {
	return func(co *clientOptions) {
		co.timeout = timeout
	}
}

// CircuitTripCount determines the number of consecutive failures
// required to trip the circuit.
func CircuitTripCount(n uint32) ClientOption {
	return func(co *clientOptions) {
		co.tripCount = n
	}
}

// CircuitErrorOnStatusCode registers a HTTP response status code which
// should be counted as an error by the circuit breaker.
//
// Default: 400, 401, 403, 500
func CircuitErrorOnStatusCode(n int) ClientOption {
	return func(co *clientOptions) {
		co.statusCodes = append(co.statusCodes, n)
	}
}

var errStatusCode = errors.New("status code error")

type circuitRoundTripper struct {
	base         http.RoundTripper
	cb           *gobreaker.CircuitBreaker
	onStatusCode func(int) error
}

// RoundTrip implements the [http.RoundTripper] interface.
func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (any, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		return resp, rt.onStatusCode(resp.StatusCode)
	})
	if err != nil && err != errStatusCode {
		return nil, err
	}
	return v.(*http.Response), nil
}

func isConnError(err error) bool {
	switch errors.Unwrap(err).(type) {
	case *net.AddrError, *net.DNSError, *net.OpError:
		return true
	default:
		return false
	}
}

// Client returns a managed HTTP client. The client's transport retries
// transient failures with exponential backoff and trips a circuit
// breaker on consecutive errors. Teardown closes any idle connections
// held by the transport.
func Client(opts ...ClientOption) managed.Managed[*http.Client] {
	return managed.New(
		func(ctx context.Context) (*http.Client, error) {
			co := &clientOptions{
				logger:      zap.NewNop(),
				maxRetries:  4,
				maxRequests: 1,
				timeout:     60 * time.Second,
				tripCount:   5,
			}
			for _, opt := range opts {
				opt(co)
			}

			if len(co.statusCodes) == 0 {
				co.statusCodes = append(
					co.statusCodes,
					http.StatusBadRequest,          // 400
					http.StatusUnauthorized,        // 401
					http.StatusForbidden,           // 403
					http.StatusInternalServerError, // 500
				)
			}
			codes := make(map[int]struct{}, len(co.statusCodes))
			for _, code := range co.statusCodes {
				codes[code] = struct{}{}
			}

			log := co.logger.Named(co.name)

			rc := retryablehttp.NewClient()
			rc.Logger = nil
			rc.RetryMax = co.maxRetries
			if co.waitMin > 0 {
				rc.RetryWaitMin = co.waitMin
			}
			if co.waitMax > 0 {
				rc.RetryWaitMax = co.waitMax
			}

			base := rc.StandardClient()
			base.Transport = &circuitRoundTripper{
				base: base.Transport,
				cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
					Name:        co.name,
					MaxRequests: co.maxRequests,
					Interval:    co.interval,
					Timeout:     co.timeout,
					ReadyToTrip: func(counts gobreaker.Counts) bool {
						return counts.ConsecutiveFailures >= co.tripCount
					},
					OnStateChange: func(name string, from, to gobreaker.State) {
						switch to {
						case gobreaker.StateOpen:
							log.Error("circuit has been opened")
						case gobreaker.StateHalfOpen:
							log.Warn("circuit is now half open and letting some requests through", zap.Uint32("max_requests_allowed_through", co.maxRequests))
						case gobreaker.StateClosed:
							log.Info("circuit has been closed")
						}
					},
					IsSuccessful: func(err error) bool {
						return err == nil || (err != errStatusCode && !isConnError(err))
					},
				}),
				onStatusCode: func(n int) error {
					_, ok := codes[n]
					if !ok {
						return nil
					}
					return errStatusCode
				},
			}

			return base, nil
		},
		func(_ context.Context, c *http.Client) error {
			c.CloseIdleConnections()
			return nil
		},
	)
}
