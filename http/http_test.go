// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/z5labs/managed"

	"github.com/stretchr/testify/assert"
)

func TestServer(t *testing.T) {
	t.Run("will serve requests", func(t *testing.T) {
		t.Run("if a handler is registered", func(t *testing.T) {
			ls, err := net.Listen("tcp", "127.0.0.1:0")
			if !assert.Nil(t, err) {
				return
			}

			m := Server(
				Listener(ls),
				HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
					io.Copy(w, r.Body)
				}),
			)

			body, err := managed.Use(context.Background(), m, func(ctx context.Context, s *http.Server) (string, error) {
				resp, err := http.Post(
					fmt.Sprintf("http://%s/echo", s.Addr),
					"text/plain",
					strings.NewReader("aaaaa"),
				)
				if err != nil {
					return "", err
				}
				defer resp.Body.Close()

				b, err := io.ReadAll(resp.Body)
				return string(b), err
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "aaaaa", body) {
				return
			}
		})
	})

	t.Run("will stop serving", func(t *testing.T) {
		t.Run("if the resource is torn down", func(t *testing.T) {
			ls, err := net.Listen("tcp", "127.0.0.1:0")
			if !assert.Nil(t, err) {
				return
			}

			m := Server(Listener(ls))

			ctx := context.Background()
			res, err := m.Build(ctx)
			if !assert.Nil(t, err) {
				return
			}

			addr := res.Get().Addr
			err = res.Teardown(ctx)
			if !assert.Nil(t, err) {
				return
			}

			_, err = http.Get(fmt.Sprintf("http://%s/", addr))
			if !assert.NotNil(t, err) {
				return
			}
		})
	})

	t.Run("will fail to build", func(t *testing.T) {
		t.Run("if the port is already bound", func(t *testing.T) {
			ls, err := net.Listen("tcp", "127.0.0.1:0")
			if !assert.Nil(t, err) {
				return
			}
			defer ls.Close()

			port := ls.Addr().(*net.TCPAddr).Port
			m := Server(ListenOnPort(uint(port)))

			_, err = m.Build(context.Background())
			if !assert.NotNil(t, err) {
				return
			}
		})
	})
}

func TestClient(t *testing.T) {
	t.Run("will perform requests", func(t *testing.T) {
		t.Run("if the remote responds successfully", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("hello"))
			}))
			defer srv.Close()

			body, err := managed.Use(context.Background(), Client(), func(ctx context.Context, c *http.Client) (string, error) {
				resp, err := c.Get(srv.URL)
				if err != nil {
					return "", err
				}
				defer resp.Body.Close()

				b, err := io.ReadAll(resp.Body)
				return string(b), err
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello", body) {
				return
			}
		})

		t.Run("if the remote responds with an error status code", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			}))
			defer srv.Close()

			m := Client(ClientName("test"))

			status, err := managed.Use(context.Background(), m, func(ctx context.Context, c *http.Client) (int, error) {
				resp, err := c.Get(srv.URL)
				if err != nil {
					return 0, err
				}
				defer resp.Body.Close()
				return resp.StatusCode, nil
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, http.StatusBadRequest, status) {
				return
			}
		})
	})

	t.Run("will trip the circuit", func(t *testing.T) {
		t.Run("if consecutive requests keep failing", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			m := Client(
				ClientName("test"),
				MaxRetries(0),
				CircuitTripCount(2),
			)

			err := managed.Foreach(context.Background(), m, func(ctx context.Context, c *http.Client) error {
				for i := 0; i < 3; i++ {
					resp, err := c.Get(srv.URL)
					if err != nil {
						return err
					}
					resp.Body.Close()
				}
				return nil
			})
			if !assert.NotNil(t, err) {
				return
			}
		})
	})
}
