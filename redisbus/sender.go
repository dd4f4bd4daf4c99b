/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redisbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-raterelay/relay"
)

// ErrEmptyAddress is returned when a message without an address is sent.
var ErrEmptyAddress = errors.New("message address is empty")

// Sender sends messages to streams.
type Sender struct {
	client redis.UniversalClient
	maxLen int64
}

var _ relay.Sink = (*Sender)(nil)

// NewSender creates a new Sender. If maxLen is positive, every stream is approximately capped to this length.
func NewSender(client redis.UniversalClient, maxLen int64) *Sender {
	return &Sender{client: client, maxLen: maxLen}
}

// Send appends the message to the stream named by its address.
func (s *Sender) Send(ctx context.Context, msg relay.OutgoingMessage) error {
	_, err := s.send(ctx, msg, "")
	return err
}

// SendRequest appends the message to the stream named by its address and asks for the reply to be sent to replyTo.
// It returns the ID of the stream entry.
func (s *Sender) SendRequest(ctx context.Context, msg relay.OutgoingMessage, replyTo string) (string, error) {
	return s.send(ctx, msg, replyTo)
}

func (s *Sender) send(ctx context.Context, msg relay.OutgoingMessage, replyTo string) (string, error) {
	if msg.Address == "" {
		return "", ErrEmptyAddress
	}
	values, err := EncodeRequest(msg, replyTo)
	if err != nil {
		return "", err
	}
	args := &redis.XAddArgs{Stream: msg.Address, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("add message to stream %q: %w", msg.Address, err)
	}
	return id, nil
}
