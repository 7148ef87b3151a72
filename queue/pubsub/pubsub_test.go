// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pubsub

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/z5labs/managed/queue"

	pubsubpb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
)

func withPubsubClient(c pubsubClient) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.pubsub = c
	})
}

type pubsubClientFunc struct {
	pull func(context.Context, *pubsubpb.PullRequest, ...gax.CallOption) (*pubsubpb.PullResponse, error)
	ack  func(context.Context, *pubsubpb.AcknowledgeRequest, ...gax.CallOption) error
}

func (f pubsubClientFunc) Pull(ctx context.Context, req *pubsubpb.PullRequest, opts ...gax.CallOption) (*pubsubpb.PullResponse, error) {
	return f.pull(ctx, req, opts...)
}

func (f pubsubClientFunc) Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest, opts ...gax.CallOption) error {
	return f.ack(ctx, req, opts...)
}

func TestConsumer_Consume(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if pubsub fails to pull messages", func(t *testing.T) {
			pullErr := errors.New("failed to pull messages")
			client := pubsubClientFunc{
				pull: func(ctx context.Context, req *pubsubpb.PullRequest, opts ...gax.CallOption) (*pubsubpb.PullResponse, error) {
					return nil, pullErr
				},
			}

			c := NewConsumer(
				LogHandler(slog.Default().Handler()),
				Subscription("example"),
				MaxNumOfMessages(10),
				withPubsubClient(client),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			msgs, err := c.Consume(ctx)
			if !assert.Equal(t, pullErr, err) {
				return
			}
			if !assert.Len(t, msgs, 0) {
				return
			}
		})

		t.Run("if pubsub returns no messages", func(t *testing.T) {
			client := pubsubClientFunc{
				pull: func(ctx context.Context, req *pubsubpb.PullRequest, opts ...gax.CallOption) (*pubsubpb.PullResponse, error) {
					return &pubsubpb.PullResponse{}, nil
				},
			}

			c := NewConsumer(
				LogHandler(slog.Default().Handler()),
				Subscription("example"),
				withPubsubClient(client),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			msgs, err := c.Consume(ctx)
			if !assert.ErrorIs(t, err, queue.ErrNoItem) {
				return
			}
			if !assert.Len(t, msgs, 0) {
				return
			}
		})
	})

	t.Run("will return messages", func(t *testing.T) {
		t.Run("if pubsub returns a non-empty batch", func(t *testing.T) {
			client := pubsubClientFunc{
				pull: func(ctx context.Context, req *pubsubpb.PullRequest, opts ...gax.CallOption) (*pubsubpb.PullResponse, error) {
					resp := &pubsubpb.PullResponse{
						ReceivedMessages: []*pubsubpb.ReceivedMessage{
							{AckId: "1"},
							{AckId: "2"},
						},
					}
					return resp, nil
				},
			}

			c := NewConsumer(
				LogHandler(slog.Default().Handler()),
				Subscription("example"),
				withPubsubClient(client),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			msgs, err := c.Consume(ctx)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Len(t, msgs, 2) {
				return
			}
		})
	})
}

func TestBatchAcknowledgeProcessor_Process(t *testing.T) {
	t.Run("will acknowledge messages", func(t *testing.T) {
		t.Run("if the inner processor succeeds", func(t *testing.T) {
			var acked []string
			client := pubsubClientFunc{
				ack: func(ctx context.Context, req *pubsubpb.AcknowledgeRequest, opts ...gax.CallOption) error {
					acked = req.AckIds
					return nil
				},
			}

			p := NewBatchAcknowledgeProcessor(
				LogHandler(slog.Default().Handler()),
				Subscription("example"),
				withPubsubClient(client),
				Processor(queue.ProcessorFunc[*pubsubpb.ReceivedMessage](func(ctx context.Context, msg *pubsubpb.ReceivedMessage) error {
					return nil
				})),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := p.Process(ctx, []*pubsubpb.ReceivedMessage{
				{AckId: "1"},
				{AckId: "2"},
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.ElementsMatch(t, []string{"1", "2"}, acked) {
				return
			}
		})
	})

	t.Run("will not acknowledge messages", func(t *testing.T) {
		t.Run("if the inner processor fails for every message", func(t *testing.T) {
			ackCalled := false
			client := pubsubClientFunc{
				ack: func(ctx context.Context, req *pubsubpb.AcknowledgeRequest, opts ...gax.CallOption) error {
					ackCalled = true
					return nil
				},
			}

			p := NewBatchAcknowledgeProcessor(
				LogHandler(slog.Default().Handler()),
				Subscription("example"),
				withPubsubClient(client),
				Processor(queue.ProcessorFunc[*pubsubpb.ReceivedMessage](func(ctx context.Context, msg *pubsubpb.ReceivedMessage) error {
					return errors.New("failed to process message")
				})),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := p.Process(ctx, []*pubsubpb.ReceivedMessage{
				{AckId: "1"},
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, ackCalled) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if pubsub fails to acknowledge the messages", func(t *testing.T) {
			ackErr := errors.New("failed to acknowledge messages")
			client := pubsubClientFunc{
				ack: func(ctx context.Context, req *pubsubpb.AcknowledgeRequest, opts ...gax.CallOption) error {
					return ackErr
				},
			}

			p := NewBatchAcknowledgeProcessor(
				LogHandler(slog.Default().Handler()),
				Subscription("example"),
				withPubsubClient(client),
				Processor(queue.ProcessorFunc[*pubsubpb.ReceivedMessage](func(ctx context.Context, msg *pubsubpb.ReceivedMessage) error {
					return nil
				})),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := p.Process(ctx, []*pubsubpb.ReceivedMessage{
				{AckId: "1"},
			})
			if !assert.Equal(t, ackErr, err) {
				return
			}
		})
	})
}
